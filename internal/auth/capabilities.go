package auth

import (
	"github.com/spec-kit/research-portal/internal/domain"
	apperrors "github.com/spec-kit/research-portal/pkg/util"
)

// Capability is a condition a route requires of the authenticated caller.
type Capability uint8

const (
	// CapabilityAuthenticated admits any known role; researchers must be active.
	CapabilityAuthenticated Capability = 1 << iota
	// CapabilityAdmin admits administrators only.
	CapabilityAdmin
	// CapabilityActiveResearcher admits active standard users only.
	CapabilityActiveResearcher
)

// CapabilitySet is the declarative requirement attached to a route.
type CapabilitySet uint8

// Require builds a set from the listed capabilities.
func Require(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

// Has reports whether c is part of the set.
func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

type capabilityCheck func(*domain.Identity) error

// capabilityOrder fixes evaluation order so the reported failure is deterministic.
var capabilityOrder = []Capability{
	CapabilityAuthenticated,
	CapabilityAdmin,
	CapabilityActiveResearcher,
}

var capabilityChecks = map[Capability]capabilityCheck{
	CapabilityAuthenticated: func(id *domain.Identity) error {
		if !id.Role.Valid() {
			return apperrors.ErrForbidden
		}
		if id.Role == domain.RoleResearcher && !id.Active {
			return apperrors.ErrInactiveAccount
		}
		return nil
	},
	CapabilityAdmin: func(id *domain.Identity) error {
		if id.Role != domain.RoleAdmin {
			return apperrors.ErrForbidden
		}
		return nil
	},
	CapabilityActiveResearcher: func(id *domain.Identity) error {
		if id.Role != domain.RoleResearcher {
			return apperrors.ErrForbidden
		}
		if !id.Active {
			return apperrors.ErrInactiveAccount
		}
		return nil
	},
}

// Authorize decides whether identity satisfies every capability in required.
// It is pure: the first failing capability's error is returned.
func Authorize(identity *domain.Identity, required CapabilitySet) error {
	if identity == nil {
		return apperrors.ErrUnknownSubject
	}
	for _, c := range capabilityOrder {
		if !required.Has(c) {
			continue
		}
		if err := capabilityChecks[c](identity); err != nil {
			return err
		}
	}
	return nil
}
