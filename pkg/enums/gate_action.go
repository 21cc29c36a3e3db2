package enums

// GateAction is a follow-up instruction attached to a gate decision for the
// caller or a downstream system to execute.
type GateAction string

const (
	GateActionApproveInvoice       GateAction = "APPROVE_INVOICE"
	GateActionFreezeNoncritical    GateAction = "FREEZE_NONCRITICAL"
	GateActionNotifyPM             GateAction = "NOTIFY_PM"
	GateActionEscalateExec         GateAction = "ESCALATE_EXEC"
	GateActionEnqueueCOGSimulation GateAction = "ENQUEUE_COG_SIMULATION"
	GateActionFreezeAllOptional    GateAction = "FREEZE_ALL_OPTIONAL"
)
