package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/colloquy/core"
)

func TestParseTermination(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		terminate bool
		message   string
	}{
		{"plain json", `{"terminate": true, "message": "done"}`, true, "done"},
		{"not json", "not json", false, "not json"},
		{"fenced", "```json\n{\"terminate\": false, \"message\": \"ok\"}\n```", false, "ok"},
		{"empty", "   ", false, ""},
		{"surrounding prose", "Sure! {\"terminate\": true, \"message\": \" wrap up \"} thanks", true, "wrap up"},
		{"missing message", `{"terminate": true}`, false, `{"terminate": true}`},
		{"non string message", `{"terminate": true, "message": 3}`, false, `{"terminate": true, "message": 3}`},
		{"broken json", "  {\"terminate\": tru  ", false, "{\"terminate\": tru"},
		{"nested braces", `{"terminate": false, "message": "use {x}"}`, false, "use {x}"},
		{"string terminate", `{"terminate": "true", "message": "done"}`, true, "done"},
		{"numeric terminate", `{"terminate": 1, "message": "done"}`, true, "done"},
		{"zero terminate", `{"terminate": 0, "message": "go on"}`, false, "go on"},
		{"empty string terminate", `{"terminate": "", "message": "go on"}`, false, "go on"},
		{"null terminate", `{"terminate": null, "message": "go on"}`, false, "go on"},
		{"absent terminate", `{"message": "go on"}`, false, "go on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, msg := ParseTermination(tt.in)
			assert.Equal(t, tt.terminate, term)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestAppendContract(t *testing.T) {
	early := AppendContract("  Be brief. ", false)
	assert.Contains(t, early, "Be brief.\n\nOutput MUST be valid JSON:")
	assert.Contains(t, early, "conclude early")
	assert.NotContains(t, early, "Set terminate=true.")

	final := AppendContract("", true)
	assert.True(t, len(final) > 0 && final[0] == 'O')
	assert.Contains(t, final, "You must provide the synthesis/summary now.\nSet terminate=true.")
}

func TestDefaultFacilitatorPrompt(t *testing.T) {
	assert.Contains(t, DefaultFacilitatorPrompt(core.RoleModerator), "debate")
	assert.Contains(t, DefaultFacilitatorPrompt(core.RoleSynthesizer), "next steps")
	assert.Empty(t, DefaultFacilitatorPrompt(core.RoleAgent))
}

func TestStripSpeakerPrefix(t *testing.T) {
	assert.Equal(t, "Hello there", StripSpeakerPrefix("Agent A: Hello there", "Agent A"))
	assert.Equal(t, "Hi", StripSpeakerPrefix("Agent A : Hi", "Agent A"))
	assert.Equal(t, "Agent A: twice", StripSpeakerPrefix("Agent A: Agent A: twice", "Agent A"))
	assert.Equal(t, "agent a: lower", StripSpeakerPrefix("agent a: lower", "Agent A"))
	assert.Equal(t, "I think Agent A: no", StripSpeakerPrefix("I think Agent A: no", "Agent A"))
	assert.Equal(t, "Agent Alpha says", StripSpeakerPrefix("Agent Alpha says", "Agent A"))
}
