package utils

import (
	"fmt"
	"strings"
)

// MinTierLevel and MaxTierLevel bound the valid approval tier range.
const (
	MinTierLevel = 1
	MaxTierLevel = 5
)

// ValidateTier validates an approval tier level
func ValidateTier(tier int) error {
	if tier < MinTierLevel || tier > MaxTierLevel {
		return fmt.Errorf("tier must be between %d and %d: %d", MinTierLevel, MaxTierLevel, tier)
	}
	return nil
}

// ValidateReason validates a mandatory reason string. Whitespace-only
// reasons are rejected.
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reason must not be empty")
	}
	return nil
}

// ValidateActor validates an actor identity
func ValidateActor(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("actor id must not be empty")
	}
	return nil
}

// ValidateTenant validates a tenant identifier
func ValidateTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id must not be empty")
	}
	return nil
}
