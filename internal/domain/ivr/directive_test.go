package ivr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, d Directive) string {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return string(b)
}

func TestDirectiveWireShapes(t *testing.T) {
	f := NewFlow("https://ivr.example.org/")

	assert.JSONEq(t, `{"action":"hangup"}`, encode(t, f.Hangup()))

	assert.JSONEq(t, `{"action":"play","url":"https://ivr.example.org/static/please-unlock.mp3","flowUrl":"https://ivr.example.org/ivr/hangup"}`,
		encode(t, f.Play(AudioPleaseUnlock)))

	assert.JSONEq(t, `{"action":"gather","minDigits":1,"maxDigits":1,"timeout":5000,
		"prompt":{"action":"play","url":"https://ivr.example.org/static/ask-stream.mp3"},
		"flow_url":"https://ivr.example.org/ivr/checkpoint"}`,
		encode(t, f.AskStream()))

	assert.JSONEq(t, `{"action":"Dial","callerId":"08012345678","numbers":["+919800000001"],"timeout":30,
		"callStatusUrl":"https://ivr.example.org/unlock/status?id=42","flowUrl":"https://ivr.example.org/ivr/hangup"}`,
		encode(t, f.DialSubAdmin("08012345678", "+919800000001", 42)))
}

func TestAskUnlockingCarriesStream(t *testing.T) {
	g := NewFlow("http://localhost:8080").AskUnlocking("FUTURE")
	assert.Equal(t, "http://localhost:8080/unlock?stream=FUTURE", g.FlowURL)
	assert.Equal(t, "http://localhost:8080/static/ask-unlocking.mp3", g.Prompt.URL)
	assert.Equal(t, ActionGather, g.ActionName())
}
