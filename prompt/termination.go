package prompt

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/colloquy/core"
)

const (
	moderatorDefault   = "Summarize the debate neutrally and suggest the next focus/questions."
	synthesizerDefault = "Summarize progress, merge duplicates, and list next steps using only what participants already said."

	contractHeader = "Output MUST be valid JSON:\n{\"terminate\": false, \"message\": \"<your text>\"}\n\n"
	contractFinal  = "The discussion is now complete. You must provide the synthesis/summary now.\nSet terminate=true."
	contractEarly  = "If you have enough information to conclude early, set terminate=true and provide the concluding summary."
)

// DefaultFacilitatorPrompt returns the built-in instruction for a
// facilitator role, or "" for actors.
func DefaultFacilitatorPrompt(role core.Role) string {
	switch role {
	case core.RoleModerator:
		return moderatorDefault
	case core.RoleSynthesizer:
		return synthesizerDefault
	default:
		return ""
	}
}

// AppendContract appends the JSON termination instructions to base. The
// wording demands a conclusion when finalCall is set.
func AppendContract(base string, finalCall bool) string {
	contract := contractHeader + contractEarly
	if finalCall {
		contract = contractHeader + contractFinal
	}
	base = strings.TrimSpace(base)
	if base == "" {
		return contract
	}
	return base + "\n\n" + contract
}

// ParseTermination reads a facilitator reply of the form
// {"terminate": bool, "message": string}, optionally wrapped in a code fence.
// Anything that does not decode degrades to (false, trimmed text). A
// non-boolean terminate value is read by truthiness.
func ParseTermination(text string) (terminate bool, message string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, ""
	}

	raw := trimmed
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimSpace(strings.Trim(raw, "`"))
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return false, trimmed
	}

	var payload struct {
		Terminate any     `json:"terminate"`
		Message   *string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil || payload.Message == nil {
		return false, trimmed
	}

	return truthy(payload.Terminate), strings.TrimSpace(*payload.Message)
}

// truthy reports whether a decoded JSON value counts as set: true, a
// non-zero number, or a non-empty string, array or object.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return false
}

// StripSpeakerPrefix removes one leading "<name>:" echo from content.
func StripSpeakerPrefix(content, name string) string {
	if name == "" || !strings.HasPrefix(content, name) {
		return content
	}
	rest := strings.TrimLeft(content[len(name):], " \t")
	if !strings.HasPrefix(rest, ":") {
		return content
	}
	return strings.TrimLeft(rest[1:], " \t\r\n")
}
