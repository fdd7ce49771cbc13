package auth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPolicy = errors.New("auth: invalid policy file")

// Policy declares which roles each route tag requires. Tags absent from the
// policy have no required roles, which means denied access under the
// fail-closed access rule.
//
//	tags:
//	  admin: [admin]
//	  reports: [admin, analyst]
type Policy struct {
	Tags map[string][]string `yaml:"tags"`
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, errors.Join(ErrInvalidPolicy, err)
	}
	if policy.Tags == nil {
		policy.Tags = map[string][]string{}
	}
	return &policy, nil
}
