package prompt

import (
	"fmt"
	"strings"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/internal/util"
)

// Opener is sent as the only user message when a speaker has nothing to
// respond to yet.
const Opener = "Let's begin."

// Speaker identifies who the rendered prompt is for.
type Speaker struct {
	Role    core.Role
	Name    string
	AgentID int
	// Override replaces the configured system prompt when non-empty.
	Override string
}

// Vars are the placeholders available to prompt text.
type Vars struct {
	Topic string
	Stage string
	Name  string
	Mode  core.Mode
}

// SystemPrompt renders the leading system message for sp.
func SystemPrompt(req *core.Request, sp Speaker) string {
	vars := Vars{Topic: req.Topic, Stage: req.Stage, Name: sp.Name, Mode: req.Mode}
	actor := actorFor(req, sp)

	base := strings.TrimSpace(sp.Override)
	if base == "" && actor != nil {
		base = strings.TrimSpace(actor.SystemPrompt)
	}
	base = strings.TrimSpace(util.RenderTemplateOrRaw(base, vars))

	var parts []string
	if stage := strings.TrimSpace(req.Stage); stage != "" {
		parts = append(parts, "Setting:\n"+util.RenderTemplateOrRaw(stage, vars))
	}

	if sp.Role == core.RoleAgent {
		parts = append(parts, fmt.Sprintf("You are %s.", sp.Name))
		if base != "" {
			parts = append(parts, base)
		}
		if actor != nil && strings.TrimSpace(actor.Persona) != "" {
			parts = append(parts, "Persona: "+strings.TrimSpace(actor.Persona))
		}

		others := make([]string, 0, len(req.Agents))
		for i, a := range req.Agents {
			if i+1 != sp.AgentID {
				others = append(others, a.Name)
			}
		}
		switch len(others) {
		case 0:
		case 1:
			parts = append(parts, fmt.Sprintf("You are speaking with %s.", others[0]))
		default:
			parts = append(parts, "You are speaking with: "+strings.Join(others, ", ")+".")
		}

		if req.Moderator.Enabled {
			parts = append(parts, fmt.Sprintf("%s is present to moderate the discussion.", req.Moderator.DisplayName(core.DefaultModerator)))
		}
		if req.Synthesizer.Enabled {
			parts = append(parts, fmt.Sprintf("%s is present to synthesize the results.", req.Synthesizer.DisplayName(core.DefaultSynthesizer)))
		}
	} else {
		names := make([]string, len(req.Agents))
		for i, a := range req.Agents {
			names[i] = a.Name
		}
		parts = append(parts, "Participants are: "+strings.Join(names, ", ")+".")
	}

	parts = append(parts, "Topic:\n"+req.Topic)

	if actor != nil {
		switch req.Mode {
		case core.ModeDebate:
			parts = append(parts, fmt.Sprintf("Your position: argue %s the topic.", debateSide(actor.DebateSide, sp.AgentID)))
		case core.ModeCollaboration:
			if r := strings.TrimSpace(actor.Responsibility); r != "" {
				parts = append(parts, "Your responsibility: "+r)
			}
		}
	}

	if sp.Role != core.RoleAgent {
		parts = append(parts, fmt.Sprintf("You are %s.", sp.Name))
		if base != "" {
			parts = append(parts, base)
		}
	}

	return strings.Join(parts, "\n\n")
}

func actorFor(req *core.Request, sp Speaker) *core.ActorConfig {
	if sp.Role != core.RoleAgent || sp.AgentID < 1 || sp.AgentID > len(req.Agents) {
		return nil
	}
	return &req.Agents[sp.AgentID-1]
}

// debateSide resolves the side an actor argues. Unset sides alternate by
// actor id: odd ids argue for, even ids against.
func debateSide(side core.DebateSide, agentID int) string {
	if side == "" {
		if agentID%2 == 1 {
			side = core.SideFor
		} else {
			side = core.SideAgainst
		}
	}
	if side == core.SideFor {
		return "FOR"
	}
	return "AGAINST"
}
