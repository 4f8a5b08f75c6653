package constants

// Intent is what a free-text reply asks the bot to do.
type Intent string

// Stable values (used as metric labels and log attributes).
const (
	IntentConfirm Intent = "CONFIRM" // "sí" / "si"
	IntentReject  Intent = "REJECT"  // "no"
	IntentList    Intent = "LIST"    // contains "registrados"
	IntentUnknown Intent = "UNKNOWN" // anything else
)
