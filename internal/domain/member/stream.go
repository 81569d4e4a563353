package member

import (
	"fmt"
	"strings"
)

// Stream is the cohort a member registers under.
type Stream string

const (
	StreamMale               Stream = "MALE"
	StreamFemale             Stream = "FEMALE"
	StreamFuture             Stream = "FUTURE"
	StreamSundayClassTeacher Stream = "SUNDAY_CLASS_TEACHER"
)

// AllStreams lists every stream in digit order.
var AllStreams = []Stream{StreamMale, StreamFemale, StreamFuture, StreamSundayClassTeacher}

func ParseStream(s string) (Stream, error) {
	st := Stream(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStreams {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stream %q", s)
}

// StreamFromDigit maps the keypad choice 1..4 to a stream.
func StreamFromDigit(digit string) (Stream, bool) {
	switch strings.TrimSpace(digit) {
	case "1":
		return StreamMale, true
	case "2":
		return StreamFemale, true
	case "3":
		return StreamFuture, true
	case "4":
		return StreamSundayClassTeacher, true
	}
	return "", false
}

// CallFlowEligible is false for the teacher cohort, which never takes part in the telephone flow.
func (s Stream) CallFlowEligible() bool {
	return s == StreamMale || s == StreamFemale || s == StreamFuture
}

// DisplayName is the cohort label used in outgoing messages.
func (s Stream) DisplayName() string {
	switch s {
	case StreamMale:
		return "Boys"
	case StreamFemale:
		return "Girls"
	case StreamFuture:
		return "Future"
	case StreamSundayClassTeacher:
		return "Sunday Class Teachers"
	}
	return string(s)
}
