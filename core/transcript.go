package core

// TranscriptMessage is one finalized turn. It is never mutated after creation.
type TranscriptMessage struct {
	Role    Role   `json:"role"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Turn    int    `json:"turn"`
	Model   string `json:"model"`
	AgentID int    `json:"agent_id"`
}

// Transcript accumulates messages during a run. It is owned by a single
// orchestration goroutine and is not safe for concurrent mutation.
type Transcript struct {
	messages []TranscriptMessage
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Append adds a finalized message.
func (t *Transcript) Append(m TranscriptMessage) { t.messages = append(t.messages, m) }

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.messages) }

// Messages returns the accumulated messages. Callers must not modify the slice.
func (t *Transcript) Messages() []TranscriptMessage { return t.messages }

// TranscriptRecord is the sealed transcript of a finished run.
type TranscriptRecord struct {
	SimulationID string              `json:"simulation_id"`
	Topic        string              `json:"topic"`
	Mode         Mode                `json:"mode"`
	Messages     []TranscriptMessage `json:"messages"`
}
