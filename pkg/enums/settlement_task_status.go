package enums

// SettlementTaskStatus tracks a deferred settlement run. Only scheduled tasks
// are claimed; completed and dead are final.
type SettlementTaskStatus string

const (
	SettlementTaskScheduled SettlementTaskStatus = "scheduled"
	SettlementTaskCompleted SettlementTaskStatus = "completed"
	SettlementTaskDead      SettlementTaskStatus = "dead"
)
