package checkin

import "fmt"

// ErrorKind classifies what the visitor is shown.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindLocationUnsupported ErrorKind = "location_unsupported"
	KindLocationDenied      ErrorKind = "location_denied"
	KindLocationFailed      ErrorKind = "location_failed"
	KindSessionRejected     ErrorKind = "session_rejected"
	KindIdentityNotFound    ErrorKind = "identity_not_found"
	KindSubmissionFailed    ErrorKind = "submission_failed"
	KindValidation          ErrorKind = "validation"
	KindWindowClosed        ErrorKind = "window_closed"
)

// Messages is the user-facing copy of a flow.
type Messages struct {
	LocationUnsupported string
	LocationDenied      string
	LocationFailed      string
	SessionRejected     string
	CampusReminder      string
	IdentityNotFound    string
	SubmissionFailed    string
	PhoneRequired       string
	WindowClosed        string
	Marked              string
}

// DefaultMessages returns the standard copy naming campus.
func DefaultMessages(campus string) Messages {
	if campus == "" {
		campus = "the institute campus"
	}
	return Messages{
		LocationUnsupported: fmt.Sprintf("Location is not supported by your browser. Attendance is only allowed at %s.", campus),
		LocationDenied:      fmt.Sprintf("Location access was denied. Please allow location to mark attendance at %s.", campus),
		LocationFailed:      "Could not get your location. Please enable location and try again.",
		SessionRejected:     "Session not found or expired.",
		CampusReminder: fmt.Sprintf("Attendance is only allowed at %s. If you are on campus, allow location and try again. "+
			"Links are only active for a short window during class hours.", campus),
		IdentityNotFound: "No student with this phone number is registered for this session.",
		SubmissionFailed: "Failed to mark.",
		PhoneRequired:    "Enter your registered phone number to mark attendance.",
		WindowClosed:     "Time's up. Link closed.",
		Marked:           "Attendance marked successfully.",
	}
}
