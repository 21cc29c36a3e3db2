package enums

import "fmt"

// ChangeOrderStatus maps to the change_order_status_enum enum in Postgres.
type ChangeOrderStatus string

const (
	ChangeOrderStatusProposed ChangeOrderStatus = "proposed"
	ChangeOrderStatusApproved ChangeOrderStatus = "approved"
	ChangeOrderStatusDenied   ChangeOrderStatus = "denied"
)

var validChangeOrderStatuses = []ChangeOrderStatus{
	ChangeOrderStatusProposed,
	ChangeOrderStatusApproved,
	ChangeOrderStatusDenied,
}

// IsValid reports whether the value matches the canonical change order status enum.
func (s ChangeOrderStatus) IsValid() bool {
	for _, candidate := range validChangeOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseChangeOrderStatus converts raw input into ChangeOrderStatus.
func ParseChangeOrderStatus(value string) (ChangeOrderStatus, error) {
	for _, candidate := range validChangeOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change order status %q", value)
}
