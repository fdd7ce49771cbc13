package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// Verifier validates provider-issued access tokens against the provider's
// JWKS. Keys are cached in two layers: process memory for the hot path and
// Redis so restarts and sibling instances skip the JWKS fetch. Concurrent
// cache misses for the same JWKS document collapse into a single fetch.
type Verifier struct {
	jwksURL  string
	audience string
	provider *Provider
	store    *Store

	mu        sync.RWMutex
	keys      map[string]json.RawMessage
	fetchedAt time.Time
	ttl       time.Duration

	group singleflight.Group
}

// NewVerifier creates a JWKS-backed token verifier. store may be nil, in
// which case only the in-memory cache is used.
func NewVerifier(jwksURL, audience string, ttl time.Duration, provider *Provider, store *Store) *Verifier {
	return &Verifier{
		jwksURL:  jwksURL,
		audience: audience,
		provider: provider,
		store:    store,
		keys:     make(map[string]json.RawMessage),
		ttl:      ttl,
	}
}

// UserIDFromToken fully verifies the token (signature via JWKS, audience,
// expiry) and returns the subject claim.
func (v *Verifier) UserIDFromToken(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, v.keyfunc(ctx),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKey), errors.Is(err, ErrMissingKeyID), errors.Is(err, ErrProviderUnavailable):
			return "", err
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", errors.Join(ErrTokenExpired, err)
		default:
			return "", errors.Join(ErrInvalidToken, err)
		}
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// CacheInfo exposes cache state for health reporting.
func (v *Verifier) CacheInfo() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return map[string]any{
		"cached_keys": len(v.keys),
		"cache_age":   time.Since(v.fetchedAt).Round(time.Second).String(),
		"expired":     time.Since(v.fetchedAt) > v.ttl,
	}
}

// ClearCache drops all cached keys. Used in tests and for forced rotation.
func (v *Verifier) ClearCache() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys = make(map[string]json.RawMessage)
	v.fetchedAt = time.Time{}
}

func (v *Verifier) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		// Only asymmetric methods are acceptable on this path; HMAC would
		// let a client sign tokens with the public JWKS content.
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
		default:
			return nil, ErrInvalidToken
		}

		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKeyID
		}

		raw, err := v.lookup(ctx, kid)
		if err != nil {
			return nil, err
		}

		jwk, err := jwkset.NewJWKFromRawJSON(raw, jwkset.JWKMarshalOptions{}, jwkset.JWKValidateOptions{})
		if err != nil {
			return nil, errors.Join(ErrUnknownKey, err)
		}
		return jwk.Key(), nil
	}
}

// lookup resolves a JWK by key id: memory first, then Redis, then a
// singleflight-guarded fetch of the whole JWKS document.
func (v *Verifier) lookup(ctx context.Context, kid string) (json.RawMessage, error) {
	v.mu.RLock()
	raw, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) <= v.ttl
	v.mu.RUnlock()
	if ok && fresh {
		return raw, nil
	}

	if v.store != nil {
		if cached, err := v.store.JWK(ctx, kid); err == nil && cached != nil {
			v.remember(kid, cached)
			return cached, nil
		}
	}

	result, err, _ := v.group.Do("jwks", func() (any, error) {
		return v.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}

	keys := result.(map[string]json.RawMessage)
	raw, ok = keys[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return raw, nil
}

// refresh fetches the JWKS document and repopulates both cache layers.
func (v *Verifier) refresh(ctx context.Context) (map[string]json.RawMessage, error) {
	doc, err := v.provider.FetchJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	keys := make(map[string]json.RawMessage, len(parsed.Keys))
	for _, rawKey := range parsed.Keys {
		var header struct {
			KID string `json:"kid"`
		}
		if err := json.Unmarshal(rawKey, &header); err != nil || header.KID == "" {
			continue
		}
		keys[header.KID] = rawKey

		if v.store != nil {
			// Redis cache failures never fail verification.
			_ = v.store.SetJWK(ctx, header.KID, rawKey)
		}
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	return keys, nil
}

func (v *Verifier) remember(kid string, raw json.RawMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.keys) == 0 {
		v.fetchedAt = time.Now()
	}
	v.keys[kid] = raw
}

// VerifyLocal decodes a token signed with the shared symmetric secret. This
// path is independent from the JWKS flow and is not used by the primary
// authentication chain; it exists for first-party tokens minted with
// SECRET_KEY.
func VerifyLocal(tokenString, secret string, algorithms []string) (string, error) {
	if secret == "" {
		return "", ErrNotConfigured
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods(algorithms))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.Join(ErrTokenExpired, err)
		}
		return "", errors.Join(ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
