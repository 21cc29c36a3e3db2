package enums

import "fmt"

// DealStatus maps to the deal_status_enum enum in Postgres.
type DealStatus string

const (
	DealStatusUnderwriting DealStatus = "underwriting"
	DealStatusApproved     DealStatus = "approved"
	DealStatusBlocked      DealStatus = "blocked"
	DealStatusActive       DealStatus = "active"
	DealStatusClosed       DealStatus = "closed"
)

var validDealStatuses = []DealStatus{
	DealStatusUnderwriting,
	DealStatusApproved,
	DealStatusBlocked,
	DealStatusActive,
	DealStatusClosed,
}

// IsValid reports whether the value matches the canonical deal status enum.
func (s DealStatus) IsValid() bool {
	for _, candidate := range validDealStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDealStatus converts raw input into DealStatus.
func ParseDealStatus(value string) (DealStatus, error) {
	for _, candidate := range validDealStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deal status %q", value)
}
