package condor

// HTCondor JobStatus codes as used in ClassAds.
const (
	StatusIdle               = 1
	StatusRunning            = 2
	StatusRemoved            = 3
	StatusCompleted          = 4
	StatusHeld               = 5
	StatusTransferringOutput = 6
	StatusSuspended          = 7
)

var statusCodes = map[string]int{
	"idle":                 StatusIdle,
	"running":              StatusRunning,
	"removed":              StatusRemoved,
	"completed":            StatusCompleted,
	"held":                 StatusHeld,
	"transferring_output": StatusTransferringOutput,
	"suspended":            StatusSuspended,
}

var statusNames = map[int]string{
	StatusIdle:               "idle",
	StatusRunning:            "running",
	StatusRemoved:            "removed",
	StatusCompleted:          "completed",
	StatusHeld:               "held",
	StatusTransferringOutput: "transferring_output",
	StatusSuspended:          "suspended",
}

// StatusCode maps a human status name ("running", "held", ...) to its
// ClassAd JobStatus code.
func StatusCode(name string) (int, bool) {
	code, ok := statusCodes[name]
	return code, ok
}

// StatusName maps a ClassAd JobStatus code back to its human name, or
// "unknown" for codes outside the table.
func StatusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "unknown"
}
