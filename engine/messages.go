package engine

import (
	"strings"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/model"
	"github.com/hupe1980/colloquy/prompt"
)

// BuildMessages constructs the ordered context for sp. The speaker's own
// earlier messages become assistant turns; everything said by others in
// between is merged into one user turn of "<name>: <content>" lines so the
// context strictly alternates.
func BuildMessages(req *core.Request, sp prompt.Speaker, transcript []core.TranscriptMessage) []model.Message {
	msgs := []model.Message{{Role: model.RoleSystem, Content: prompt.SystemPrompt(req, sp)}}

	var other []string
	flush := func() {
		if len(other) == 0 {
			return
		}
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: strings.TrimSpace(strings.Join(other, "\n"))})
		other = nil
	}

	for _, m := range transcript {
		if m.Role == sp.Role && m.AgentID == sp.AgentID {
			flush()
			if len(msgs) == 1 {
				// The first turn after the system message must be a user turn.
				msgs = append(msgs, model.Message{Role: model.RoleUser, Content: prompt.Opener})
			}
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: m.Content})
			continue
		}
		other = append(other, m.Name+": "+m.Content)
	}
	flush()

	if len(msgs) == 1 {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: prompt.Opener})
	}

	return msgs
}
