package messaging

// Subjects follow {domain}.{resource}.{action}.
const (
	SubjectAlertsCreated = "soc.alerts.created" // alert inserted by the ingestion adapter
	SubjectAlertsScored  = "soc.alerts.scored"  // risk scoring finished for an alert
	SubjectLogsProcessed = "soc.logs.processed" // a log file finished parsing and ingestion
)

// QueueRiskWorkers load-balances alert-created events across scoring workers.
const QueueRiskWorkers = "risk-workers"
