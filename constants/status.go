package constants

// RunStatus is the outcome stored for rows in extraction_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusOK      RunStatus = "OK"      // backend returned a payload
	RunStatusWarning RunStatus = "WARNING" // rejected before any backend call
	RunStatusFailed  RunStatus = "FAILED"  // backend call failed
)
