package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const providerTimeout = 10 * time.Second

// Provider is an HTTP client for a GoTrue-compatible identity provider.
//
// Two credentials are in play: the anon key is used for operations acting on
// behalf of a user (password grant, password recovery), while the service key
// unlocks the admin API (fetch/update/delete arbitrary users) and bypasses
// row-level security on the provider side.
type Provider struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewProvider creates a provider client. baseURL is the provider root, e.g.
// https://project.supabase.co.
func NewProvider(baseURL, anonKey, serviceKey string) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: providerTimeout},
	}
}

// Healthcheck reports whether the provider answers HTTP at all. Any
// response counts as reachable, even an error status; only transport
// failures fail the check.
func (p *Provider) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.anonKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	_ = resp.Body.Close()
	return nil
}

// GetUserByID fetches a user via the admin API.
func (p *Provider) GetUserByID(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	err := p.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(userID), p.serviceKey, nil, &profile)
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, ErrUserNotFound
	}
	return &profile, nil
}

// UpdateUserByID applies admin attribute updates (password, ban_duration,
// metadata) to a user.
func (p *Provider) UpdateUserByID(ctx context.Context, userID string, attrs map[string]any) (*Profile, error) {
	var profile Profile
	err := p.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(userID), p.serviceKey, attrs, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// DeleteUser removes a user via the admin API.
func (p *Provider) DeleteUser(ctx context.Context, userID string) error {
	return p.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(userID), p.serviceKey, nil, nil)
}

// SignInWithPassword performs the password grant. Used internally for
// password verification as well as for the sign-in endpoint.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	body := map[string]any{"email": email, "password": password}
	var token Token
	err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", p.anonKey, body, &token)
	if err != nil {
		var apiErr *providerError
		if errors.As(err, &apiErr) && apiErr.status < http.StatusInternalServerError {
			return nil, errors.Join(ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}
	return &token, nil
}

// Recover sends a password-recovery email. The provider reports success even
// for unknown addresses, so no user existence leaks here.
func (p *Provider) Recover(ctx context.Context, email string) error {
	return p.do(ctx, http.MethodPost, "/auth/v1/recover", p.anonKey, map[string]any{"email": email}, nil)
}

// UpdateUser updates the user owning the given access token. Used to finish
// a password reset with the recovery session token.
func (p *Provider) UpdateUser(ctx context.Context, accessToken string, attrs map[string]any) error {
	return p.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, attrs, nil)
}

// FetchJWKS retrieves the raw JWKS document from the given URL.
func (p *Provider) FetchJWKS(ctx context.Context, jwksURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Join(ErrProviderUnavailable, &providerError{status: resp.StatusCode})
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

type providerError struct {
	status int
	body   string
}

func (e *providerError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("auth provider: status %d: %s", e.status, e.body)
	}
	return fmt.Sprintf("auth provider: status %d", e.status)
}

func (p *Provider) do(ctx context.Context, method, path, key string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Join(ErrUserNotFound, &providerError{status: resp.StatusCode})
	case resp.StatusCode >= http.StatusBadRequest:
		return &providerError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Join(ErrProviderUnavailable, err)
		}
	}
	return nil
}
