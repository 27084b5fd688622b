package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{
		Topic:     "Is AI sentient?",
		Mode:      ModeDebate,
		TurnLimit: 2,
		Agents: []ActorConfig{
			{Name: "Agent A", Model: "gpt-4o-mini", Provider: ProviderOpenAI},
			{Name: "Agent B", Model: "claude-3-sonnet", Provider: ProviderAnthropic},
		},
	}
}

func TestRequest_ValidateOK(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Validate())
	assert.Equal(t, 4, req.ActorTurnBudget())
}

func TestRequest_ValidateRejects(t *testing.T) {
	temp := 3.0
	cases := map[string]func(r *Request){
		"empty topic":     func(r *Request) { r.Topic = "  " },
		"bad mode":        func(r *Request) { r.Mode = "chaos" },
		"zero turns":      func(r *Request) { r.TurnLimit = 0 },
		"too many turns":  func(r *Request) { r.TurnLimit = MaxTurnLimit + 1 },
		"one agent":       func(r *Request) { r.Agents = r.Agents[:1] },
		"duplicate names": func(r *Request) { r.Agents[1].Name = "agent a" },
		"bad provider":    func(r *Request) { r.Agents[0].Provider = "acme" },
		"missing model":   func(r *Request) { r.Agents[0].Model = "" },
		"bad side":        func(r *Request) { r.Agents[0].DebateSide = "neutral" },
		"hot temperature": func(r *Request) { r.Agents[0].Temperature = &temp },
		"negative tokens": func(r *Request) { r.Agents[0].MaxTokens = -1 },
		"moderator model": func(r *Request) { r.Moderator.Enabled = true },
		"synth frequency": func(r *Request) { r.Synthesizer = FacilitatorConfig{Enabled: true, Model: "m", FrequencyTurns: 21} },
		"long persona":    func(r *Request) { r.Agents[0].Persona = strings.Repeat("p", MaxPersonaLength+1) },
		"long duty":       func(r *Request) { r.Agents[1].Responsibility = strings.Repeat("r", MaxDutyLength+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			req.Agents = append([]ActorConfig(nil), req.Agents...)
			mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestRequest_ValidateTextCaps(t *testing.T) {
	req := validRequest()
	req.Agents = append([]ActorConfig(nil), req.Agents...)
	req.Agents[0].Persona = strings.Repeat("é", MaxPersonaLength)
	req.Agents[1].Responsibility = strings.Repeat("r", MaxDutyLength)
	require.NoError(t, req.Validate())

	req.Agents[0].Persona += "x"
	var ve *ValidationError
	require.ErrorAs(t, req.Validate(), &ve)
	assert.Contains(t, ve.Error(), "agents[0].persona")
}

func TestRequest_DecodeFlattenedParams(t *testing.T) {
	raw := `{
		"topic": "t", "mode": "collaboration", "turn_limit": 1,
		"agents": [
			{"name": "A", "model": "m", "provider": "ollama", "temperature": 0.2, "context_size": 8192},
			{"name": "B", "model": "m", "provider": "openai", "responsibility": "budget"}
		],
		"synthesizer": {"enabled": true, "model": "m", "frequency_turns": 3}
	}`
	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	require.NoError(t, req.Validate())

	require.NotNil(t, req.Agents[0].Temperature)
	assert.InDelta(t, 0.2, *req.Agents[0].Temperature, 1e-9)
	assert.Equal(t, 8192, req.Agents[0].ContextSize)
	assert.Equal(t, "budget", req.Agents[1].Responsibility)
	assert.True(t, req.Synthesizer.Active())
	assert.Equal(t, 3, req.Synthesizer.Frequency())
	assert.False(t, req.Moderator.Active())
	assert.Equal(t, DefaultFrequency, req.Moderator.Frequency())
}

func TestFacilitatorConfig_DisplayName(t *testing.T) {
	assert.Equal(t, DefaultModerator, FacilitatorConfig{}.DisplayName(DefaultModerator))
	assert.Equal(t, "Morris", FacilitatorConfig{Name: " Morris "}.DisplayName(DefaultModerator))
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("missing %s key", "OpenAI")
	assert.Equal(t, "missing OpenAI key", err.Error())
	assert.True(t, IsConfigError(err))
	assert.False(t, IsConfigError(assert.AnError))
}
