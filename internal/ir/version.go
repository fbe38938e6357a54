package ir

const (
	// ReportVersion is the schema version stamped on run reports.
	ReportVersion = "1"

	// KernelVersion is the termkernel release.
	KernelVersion = "0.1.0"
)
