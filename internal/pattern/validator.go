package pattern

import (
	"fmt"
	"strings"
)

// Validator checks that domain patterns are bare registrable domains.
type Validator struct {
	resolver Resolver
}

// NewValidator returns a Validator backed by r. A nil r selects the
// public suffix list resolver.
func NewValidator(r Resolver) *Validator {
	if r == nil {
		r = PublicSuffixResolver{}
	}
	return &Validator{resolver: r}
}

// IsValidDomainPattern reports whether pattern is acceptable as a domain-type
// entry. "www.example.com" is judged as "example.com"; "mail.example.com" is
// rejected because its registrable domain is "example.com", and "Example.com"
// because it differs from the resolved "example.com".
func (v *Validator) IsValidDomainPattern(pattern string) bool {
	return v.ValidateDomainPattern(pattern) == nil
}

// ValidateDomainPattern is IsValidDomainPattern with the reason for rejection.
func (v *Validator) ValidateDomainPattern(pattern string) error {
	candidate := normalizeDomainCandidate(pattern)
	if candidate == "" {
		return fmt.Errorf("%w: empty domain pattern", ErrInvalidPattern)
	}
	if strings.Contains(candidate, "://") || strings.Contains(candidate, "/") {
		return fmt.Errorf("%w: domain pattern %q must not contain a scheme or path", ErrInvalidPattern, pattern)
	}

	resolved, err := v.resolver.RegistrableDomain(candidate)
	if err != nil {
		return fmt.Errorf("%w: domain pattern %q: %v", ErrInvalidPattern, pattern, err)
	}
	if resolved == "" {
		return fmt.Errorf("%w: domain pattern %q has no registrable domain", ErrInvalidPattern, pattern)
	}
	if resolved != candidate {
		return fmt.Errorf("%w: domain pattern %q is not a registrable domain (did you mean %q?)", ErrInvalidPattern, pattern, resolved)
	}
	return nil
}

// normalizeDomainCandidate trims and strips one leading "www.". Case,
// trailing dots and Unicode forms are left alone, so a pattern is valid only
// when it is already written as the canonical registrable domain.
func normalizeDomainCandidate(pattern string) string {
	return stripWWW(strings.TrimSpace(pattern))
}

var defaultValidator = NewValidator(nil)

// IsValidDomainPattern checks pattern with the public suffix list resolver.
func IsValidDomainPattern(pattern string) bool {
	return defaultValidator.IsValidDomainPattern(pattern)
}
