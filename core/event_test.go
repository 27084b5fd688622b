package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Text(t *testing.T) {
	for _, r := range []Role{RoleAgent, RoleModerator, RoleSynthesizer} {
		b, err := r.MarshalText()
		require.NoError(t, err)

		var back Role
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, r, back)
	}

	var r Role
	assert.Error(t, r.UnmarshalText([]byte("narrator")))
	_, err := Role(0).MarshalText()
	assert.Error(t, err)

	assert.Equal(t, ModeratorID, RoleModerator.AgentID())
	assert.Equal(t, SynthesizerID, RoleSynthesizer.AgentID())
	assert.True(t, RoleSynthesizer.IsFacilitator())
	assert.False(t, RoleAgent.IsFacilitator())
}

func TestEvent_Constructors(t *testing.T) {
	ev := NewTypingEvent("Agent A", 3)
	assert.Equal(t, KindStatus, ev.Kind())
	st, ok := ev.StatusOf()
	require.True(t, ok)
	assert.Equal(t, StatusTyping, st)

	msg := TranscriptMessage{Role: RoleModerator, Name: "Moderator", Content: "c", Turn: 4, Model: "m", AgentID: ModeratorID}
	mev := NewMessageEvent(msg)
	assert.Equal(t, KindMessage, mev.Kind())
	_, ok = mev.StatusOf()
	assert.False(t, ok)

	assert.Equal(t, EventKind(""), Event{}.Kind())
}

func TestPayload_JSON(t *testing.T) {
	b, err := json.Marshal(NewTokenEvent("A", 1, "hi", RoleAgent, 1).Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A","turn":1,"token":"hi","role":"agent","agent_id":1}`, string(b))

	b, err = json.Marshal(NewStatusEvent(StatusStarted).Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"started"}`, string(b))
}

func TestDecodePayload(t *testing.T) {
	events := []Event{
		NewStatusEvent(StatusStarted),
		NewTypingEvent("Ann", 2),
		NewTokenEvent("Ann", 2, "Hi", RoleAgent, 1),
		NewMessageEvent(TranscriptMessage{Role: RoleModerator, Name: "Mod", Content: "ok", Turn: 3, Model: "m", AgentID: ModeratorID}),
		NewErrorEvent("boom"),
	}
	for _, ev := range events {
		data, err := json.Marshal(ev.Payload)
		require.NoError(t, err)

		p, err := DecodePayload(ev.Kind(), data)
		require.NoError(t, err)
		assert.Equal(t, ev.Payload, p)
	}

	_, err := DecodePayload("telemetry", []byte(`{}`))
	assert.Error(t, err)
	_, err = DecodePayload(KindToken, []byte(`{"role": "narrator"}`))
	assert.Error(t, err)
}
