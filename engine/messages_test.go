package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/internal/testutil"
	"github.com/hupe1980/colloquy/model"
	"github.com/hupe1980/colloquy/prompt"
)

func TestBuildMessages_Opener(t *testing.T) {
	req := testutil.NewRequestBuilder("tea").Agent("Ann", "m").Agent("Bob", "m").Build()
	msgs := BuildMessages(req, prompt.Speaker{Role: core.RoleAgent, Name: "Ann", AgentID: 1}, nil)

	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are Ann.")
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: prompt.Opener}, msgs[1])
}

func TestBuildMessages_Alternation(t *testing.T) {
	req := testutil.NewRequestBuilder("tea").Agent("Ann", "m").Agent("Bob", "m").Agent("Cid", "m").Build()
	transcript := []core.TranscriptMessage{
		{Role: core.RoleAgent, Name: "Ann", Content: "a1", Turn: 1, AgentID: 1},
		{Role: core.RoleAgent, Name: "Bob", Content: "b1", Turn: 2, AgentID: 2},
		{Role: core.RoleAgent, Name: "Cid", Content: "c1", Turn: 3, AgentID: 3},
		{Role: core.RoleModerator, Name: "Moderator", Content: "m1", Turn: 4, AgentID: core.ModeratorID},
		{Role: core.RoleAgent, Name: "Ann", Content: "a2", Turn: 5, AgentID: 1},
	}

	msgs := BuildMessages(req, prompt.Speaker{Role: core.RoleAgent, Name: "Bob", AgentID: 2}, transcript)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Ann: a1"}, msgs[1])
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "b1"}, msgs[2])
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Cid: c1\nModerator: m1\nAnn: a2"}, msgs[3])
}

func TestBuildMessages_SelfFirst(t *testing.T) {
	req := testutil.NewRequestBuilder("tea").Agent("Ann", "m").Agent("Bob", "m").Build()
	transcript := []core.TranscriptMessage{
		{Role: core.RoleAgent, Name: "Ann", Content: "a1", Turn: 1, AgentID: 1},
		{Role: core.RoleAgent, Name: "Bob", Content: "b1", Turn: 2, AgentID: 2},
	}

	msgs := BuildMessages(req, prompt.Speaker{Role: core.RoleAgent, Name: "Ann", AgentID: 1}, transcript)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, prompt.Opener, msgs[1].Content)
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "a1"}, msgs[2])
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Bob: b1"}, msgs[3])
}

func TestBuildMessages_FacilitatorIdentity(t *testing.T) {
	req := testutil.NewRequestBuilder("tea").Agent("Ann", "m").Agent("Bob", "m").Moderator("mod", 1).Build()
	transcript := []core.TranscriptMessage{
		{Role: core.RoleAgent, Name: "Ann", Content: "a1", Turn: 1, AgentID: 1},
		{Role: core.RoleModerator, Name: "Moderator", Content: "m1", Turn: 2, AgentID: core.ModeratorID},
		{Role: core.RoleAgent, Name: "Bob", Content: "b1", Turn: 3, AgentID: 2},
	}

	msgs := BuildMessages(req, prompt.Speaker{Role: core.RoleModerator, Name: "Moderator", AgentID: core.ModeratorID}, transcript)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, "Participants are: Ann, Bob.")
	assert.Equal(t, "Ann: a1", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Bob: b1", msgs[3].Content)
}
