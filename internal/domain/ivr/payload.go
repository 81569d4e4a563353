package ivr

// DigitEvent is posted by the engine after a gather completes.
type DigitEvent struct {
	DTMF        string `json:"dtmf"`
	CallerID    string `json:"callerId"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	UUID        string `json:"uuid,omitempty"`
}

// Call statuses reported on the dial status callback.
const (
	StatusAnswered  = "answered"
	StatusBusy      = "busy"
	StatusNoAnswer  = "noAnswer"
	StatusRinging   = "ringing"
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
)

// CallStatus is the subset of the dial status callback the service reads.
type CallStatus struct {
	UUID        string `json:"uuid,omitempty"`
	Status      string `json:"status"`
	Direction   string `json:"direction,omitempty"`
	HangupCause string `json:"hangupCause,omitempty"`
}
