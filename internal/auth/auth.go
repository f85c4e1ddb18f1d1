// Package auth resolves API keys to principals with roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	RoleQueryRunner   = "query_runner"
	RoleCatalogReader = "catalog_reader"
)

var knownRoles = []string{RoleQueryRunner, RoleCatalogReader}

var ErrForbidden = errors.New("forbidden")

type Identity struct {
	Principal string
	Roles     []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// RequireRole passes when auth is not in use (no identity on ctx) or the
// identity holds any of roles.
func RequireRole(ctx context.Context, roles ...string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	if slices.ContainsFunc(roles, identity.HasRole) {
		return nil
	}
	return fmt.Errorf("%w: one of roles %s required", ErrForbidden, strings.Join(roles, ", "))
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator checks keys against a fixed table parsed from
// configuration.
type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses "key:principal:role|role" entries separated
// by commas. An empty table yields a validator that accepts nothing.
func NewStaticAPIKeyValidator(table string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	for entry := range strings.SplitSeq(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := validator.keys[key]; dup {
			return nil, fmt.Errorf("static key entry %q: duplicate key", entry)
		}
		validator.keys[key] = identity
	}
	return validator, nil
}

func parseKeyEntry(entry string) (string, Identity, error) {
	parts := strings.Split(entry, ":")
	if len(parts) != 3 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:principal:role|role", entry)
	}
	key, principal := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if key == "" || principal == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: empty key/principal", entry)
	}

	var roles []string
	for role := range strings.SplitSeq(parts[2], "|") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if !slices.Contains(knownRoles, role) {
			return "", Identity{}, fmt.Errorf("invalid static key entry %q: unknown role %q", entry, role)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
	}
	slices.Sort(roles)
	return key, Identity{Principal: principal, Roles: slices.Compact(roles)}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
