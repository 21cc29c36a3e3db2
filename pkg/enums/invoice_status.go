package enums

import "fmt"

// InvoiceStatus maps to the invoice_status_enum enum in Postgres.
// Transitions are forward-only: pending rows resolve into exactly one of the
// decided states and never move back.
type InvoiceStatus string

const (
	InvoiceStatusPending             InvoiceStatus = "pending"
	InvoiceStatusApproved            InvoiceStatus = "approved"
	InvoiceStatusApprovedWithWarning InvoiceStatus = "approved_with_warning"
	InvoiceStatusFlagged             InvoiceStatus = "flagged"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusApproved,
	InvoiceStatusApprovedWithWarning,
	InvoiceStatusFlagged,
}

// IsValid reports whether the value matches the canonical invoice status enum.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDecided reports whether the status is terminal.
func (s InvoiceStatus) IsDecided() bool {
	return s != InvoiceStatusPending && s.IsValid()
}

// ParseInvoiceStatus converts raw input into InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
