package enums

import "fmt"

// BidStatus maps to the bid_status_enum enum in Postgres.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAwarded  BidStatus = "awarded"
	BidStatusRejected BidStatus = "rejected"
)

var validBidStatuses = []BidStatus{
	BidStatusPending,
	BidStatusAwarded,
	BidStatusRejected,
}

// IsValid reports whether the value matches the canonical bid status enum.
func (s BidStatus) IsValid() bool {
	for _, candidate := range validBidStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBidStatus converts raw input into BidStatus.
func ParseBidStatus(value string) (BidStatus, error) {
	for _, candidate := range validBidStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid status %q", value)
}
