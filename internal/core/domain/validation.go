package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Address grammar: local part, one @, dotted domain with a 2+ letter TLD.
var validEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if the provided address satisfies the address grammar.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", ErrValidation)
	}
	if len(email) > 254 {
		return fmt.Errorf("%w: email exceeds 254 characters", ErrValidation)
	}
	if !validEmailRegex.MatchString(email) {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, email)
	}
	return nil
}

// ValidNetwork reports whether n belongs to the network-type enum.
func ValidNetwork(n NetworkType) bool {
	switch n {
	case NetworkCloud, NetworkDatacenter, NetworkHybrid, NetworkEdge, NetworkOther:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the recognized funnel statuses.
func ValidStatus(s LeadStatus) bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusRejected, StatusClosed:
		return true
	}
	return false
}

// ValidateLead checks the required fields of a submitted lead. It runs before
// any storage attempt; a failure here is never retried.
func ValidateLead(lead *Lead) error {
	if strings.TrimSpace(lead.Company) == "" {
		return fmt.Errorf("%w: company cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(lead.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if err := ValidateEmail(lead.Email); err != nil {
		return err
	}
	if !ValidNetwork(lead.Network) {
		return fmt.Errorf("%w: unknown network type %q", ErrValidation, lead.Network)
	}
	if lead.Status != "" && !ValidStatus(lead.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, lead.Status)
	}
	return nil
}

// ValidatePatch checks the non-nil fields of an update before it is applied.
func ValidatePatch(patch LeadPatch) error {
	if patch.Company != nil && strings.TrimSpace(*patch.Company) == "" {
		return fmt.Errorf("%w: company cannot be empty", ErrValidation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if patch.Email != nil {
		if err := ValidateEmail(*patch.Email); err != nil {
			return err
		}
	}
	if patch.Network != nil && !ValidNetwork(*patch.Network) {
		return fmt.Errorf("%w: unknown network type %q", ErrValidation, *patch.Network)
	}
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *patch.Status)
	}
	return nil
}
