package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

// ValidationError contains details about a validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of validating a connectivity configuration.
type ValidationResult struct {
	IsValid  bool
	Errors   []error
	Warnings []string
}

// Err joins all validation errors, or returns nil when the config is valid.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return errors.Join(r.Errors...)
}

func (r *ValidationResult) fail(field, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the structural invariants of a connectivity config: every chain is known,
// every token has exactly one origin entry, addresses are hex and hubs exist.
func Validate(cfg *ConnectionsConfig) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	chains := make([]string, 0, len(cfg.Chains))
	for i, c := range cfg.Chains {
		field := fmt.Sprintf("chain[%d]", i)
		if c.Name == "" {
			result.fail(field+".name", "is required")
			continue
		}
		if slices.Contains(chains, c.Name) {
			result.fail(field+".name", "duplicate chain %s", c.Name)
		}
		chains = append(chains, c.Name)
		if c.ChainID <= 0 {
			result.fail(field+".chain_id", "must be positive")
		}
		if len(c.RPCs) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("chain %s has no rpcs", c.Name))
		}
	}
	if !slices.Contains(chains, cfg.Mainnet) {
		result.fail("mainnet", "chain %s is not declared", cfg.Mainnet)
	}

	keynames := make([]string, 0, len(cfg.Tokens))
	for i, t := range cfg.Tokens {
		field := fmt.Sprintf("token[%d]", i)
		if t.Keyname == "" {
			result.fail(field+".keyname", "is required")
			continue
		}
		field = "token." + t.Keyname
		if slices.Contains(keynames, t.Keyname) {
			result.fail(field, "duplicate keyname")
		}
		keynames = append(keynames, t.Keyname)

		if !models.TokenType(t.Type).Valid() {
			result.fail(field+".type", "unsupported token type %q", t.Type)
		}
		if t.Decimals < 0 {
			result.fail(field+".decimals", "must not be negative")
		}
		validateConnections(result, field, t, chains)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func validateConnections(result *ValidationResult, field string, t TokenConfig, chains []string) {
	origins := 0
	present := make([]string, 0, len(t.Connections))
	for _, c := range t.Connections {
		present = append(present, c.Chain)
	}

	for _, c := range t.Connections {
		cf := field + ".connection." + c.Chain
		if !slices.Contains(chains, c.Chain) {
			result.fail(cf, "unknown chain")
		}
		if !c.Clone {
			origins++
			if c.Chain != t.OriginChain {
				result.fail(cf, "non-clone entry on %s but origin is %s", c.Chain, t.OriginChain)
			}
		}
		if c.Address != "" && !common.IsHexAddress(c.Address) {
			result.fail(cf+".address", "invalid address %q", c.Address)
		}
		if c.Wrapper != "" && !common.IsHexAddress(c.Wrapper) {
			result.fail(cf+".wrapper", "invalid address %q", c.Wrapper)
		}
		for dest, hub := range c.Hubs {
			if !slices.Contains(present, dest) {
				result.fail(cf+".hubs", "destination %s has no entry for the token", dest)
			}
			if !slices.Contains(present, hub) {
				result.fail(cf+".hubs", "hub %s has no entry for the token", hub)
			}
		}
	}
	if origins != 1 {
		result.fail(field, "expected exactly one origin entry, found %d", origins)
	}
}
