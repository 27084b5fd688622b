package engine

import (
	"strings"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/prompt"
	"github.com/hupe1980/colloquy/session"
)

// RunFacilitator runs one moderator or synthesizer turn. turn is the index of
// the last executed turn; the updated index is returned. Failures are
// published as error + status{error} before being returned.
func (x *Executor) RunFacilitator(
	st *session.State,
	role core.Role,
	cfg core.FacilitatorConfig,
	turn int,
	transcript *core.Transcript,
	finalCall bool,
) (terminated bool, newTurn int, err error) {
	fallback := core.DefaultModerator
	if role == core.RoleSynthesizer {
		fallback = core.DefaultSynthesizer
	}

	base := strings.TrimSpace(cfg.SystemPrompt)
	if base == "" {
		base = prompt.DefaultFacilitatorPrompt(role)
	}

	turn++
	terminated, err = x.ExecuteTurn(st, TurnSpec{
		Role:         role,
		Name:         cfg.DisplayName(fallback),
		Model:        cfg.Model,
		Provider:     cfg.Provider,
		SystemPrompt: prompt.AppendContract(base, finalCall),
		Params:       cfg.GenerationParams,
		AgentID:      role.AgentID(),
		Turn:         turn,
	}, transcript)
	if err != nil {
		x.logger.Warn("facilitator turn failed", "simulation_id", st.ID(), "role", role.String(), "error", err)
		publishFailure(st, role, err)
		return false, turn, err
	}

	return terminated, turn, nil
}
