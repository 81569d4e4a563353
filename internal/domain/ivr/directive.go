// Package ivr holds the control vocabulary exchanged with the telephony engine.
package ivr

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ActionHangup = "hangup"
	ActionPlay   = "play"
	ActionGather = "gather"
	ActionDial   = "Dial"

	// GatherTimeoutMillis is how long the engine waits for a keypress.
	GatherTimeoutMillis = 5000
	// DialTimeoutSeconds is how long the engine rings the sub-admin.
	DialTimeoutSeconds = 30
)

// Audio prompts served under <base>/static.
const (
	AudioAskStream       = "ask-stream.mp3"
	AudioAskUnlocking    = "ask-unlocking.mp3"
	AudioUnregistered    = "unregistered-phone-number.mp3"
	AudioPleaseUnlock    = "please-unlock.mp3"
	AudioAcknowledgement = "attendance-acknowledgement.mp3"
	AudioConfirmation    = "attendance-confirmation.mp3"
	AudioInformNotLocked = "inform-not-locked.mp3"
)

// Directive is one response to the telephony engine.
type Directive interface {
	ActionName() string
}

type Hangup struct {
	Action string `json:"action"`
}

type Prompt struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

type Play struct {
	Action  string `json:"action"`
	URL     string `json:"url"`
	FlowURL string `json:"flowUrl"`
}

type Gather struct {
	Action    string `json:"action"`
	MinDigits int    `json:"minDigits"`
	MaxDigits int    `json:"maxDigits"`
	Timeout   int    `json:"timeout"`
	Prompt    Prompt `json:"prompt"`
	FlowURL   string `json:"flow_url"`
}

type Dial struct {
	Action        string   `json:"action"`
	CallerID      string   `json:"callerId"`
	Numbers       []string `json:"numbers"`
	Timeout       int      `json:"timeout"`
	CallStatusURL string   `json:"callStatusUrl,omitempty"`
	FlowURL       string   `json:"flowUrl"`
}

func (Hangup) ActionName() string { return ActionHangup }
func (Play) ActionName() string   { return ActionPlay }
func (Gather) ActionName() string { return ActionGather }
func (Dial) ActionName() string   { return ActionDial }

// Flow builds directives whose URLs point back at this service.
type Flow struct {
	BaseURL string
}

func NewFlow(baseURL string) Flow {
	return Flow{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (f Flow) audio(file string) string {
	return fmt.Sprintf("%s/static/%s", f.BaseURL, file)
}

func (f Flow) Hangup() Hangup {
	return Hangup{Action: ActionHangup}
}

// Play plays a prompt and then follows the hangup sink.
func (f Flow) Play(file string) Play {
	return Play{Action: ActionPlay, URL: f.audio(file), FlowURL: f.BaseURL + "/ivr/hangup"}
}

// GatherDigit asks for exactly one keypress and posts it to next (a path with optional query).
func (f Flow) GatherDigit(promptFile, next string) Gather {
	return Gather{
		Action:    ActionGather,
		MinDigits: 1,
		MaxDigits: 1,
		Timeout:   GatherTimeoutMillis,
		Prompt:    Prompt{Action: ActionPlay, URL: f.audio(promptFile)},
		FlowURL:   f.BaseURL + next,
	}
}

// AskStream is the greeting of every inbound call.
func (f Flow) AskStream() Gather {
	return f.GatherDigit(AudioAskStream, "/ivr/checkpoint")
}

// AskUnlocking offers the unlock path for a stream.
func (f Flow) AskUnlocking(stream string) Gather {
	return f.GatherDigit(AudioAskUnlocking, "/unlock?stream="+url.QueryEscape(stream))
}

// DialSubAdmin rings the approving sub-admin and reports the outcome for memberID.
func (f Flow) DialSubAdmin(callerID, number string, memberID int64) Dial {
	return Dial{
		Action:        ActionDial,
		CallerID:      callerID,
		Numbers:       []string{number},
		Timeout:       DialTimeoutSeconds,
		CallStatusURL: fmt.Sprintf("%s/unlock/status?id=%d", f.BaseURL, memberID),
		FlowURL:       f.BaseURL + "/ivr/hangup",
	}
}
