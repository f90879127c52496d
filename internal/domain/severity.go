package domain

// Severity classifies a user-facing notification. Values match the alert
// styles clients render.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
	SeveritySuccess Severity = "success"
)

// ParseSeverity maps a raw value to a Severity, defaulting to info.
func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityWarning, SeverityDanger, SeveritySuccess:
		return Severity(raw)
	default:
		return SeverityInfo
	}
}
