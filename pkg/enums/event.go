package enums

import "fmt"

// EventAction maps to the event_action_enum enum in Postgres.
type EventAction string

const (
	EventActionApprove             EventAction = "APPROVE"
	EventActionBlock               EventAction = "BLOCK"
	EventActionAward               EventAction = "AWARD"
	EventActionFlagTier1           EventAction = "FLAG_TIER1"
	EventActionEscalateTier2       EventAction = "ESCALATE_TIER2"
	EventActionApproveChangeOrder  EventAction = "APPROVE_CO"
	EventActionDenyChangeOrder     EventAction = "DENY_CO"
	EventActionRequestCOSimulation EventAction = "REQUEST_CO_SIMULATION"
)

var validEventActions = []EventAction{
	EventActionApprove,
	EventActionBlock,
	EventActionAward,
	EventActionFlagTier1,
	EventActionEscalateTier2,
	EventActionApproveChangeOrder,
	EventActionDenyChangeOrder,
	EventActionRequestCOSimulation,
}

// IsValid reports whether the value matches the canonical event action enum.
func (a EventAction) IsValid() bool {
	for _, candidate := range validEventActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseEventAction converts raw input into EventAction.
func ParseEventAction(value string) (EventAction, error) {
	for _, candidate := range validEventActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event action %q", value)
}

// EventArtifact names the record a gate decision acted on.
type EventArtifact string

const (
	EventArtifactDeal        EventArtifact = "deal"
	EventArtifactBid         EventArtifact = "bid"
	EventArtifactInvoice     EventArtifact = "invoice"
	EventArtifactChangeOrder EventArtifact = "change_order"
)

var validEventArtifacts = []EventArtifact{
	EventArtifactDeal,
	EventArtifactBid,
	EventArtifactInvoice,
	EventArtifactChangeOrder,
}

// IsValid reports whether the value matches the canonical event artifact enum.
func (a EventArtifact) IsValid() bool {
	for _, candidate := range validEventArtifacts {
		if candidate == a {
			return true
		}
	}
	return false
}
