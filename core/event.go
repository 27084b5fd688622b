package core

import (
	"encoding/json"
	"fmt"
)

// EventKind tags the variant of a simulation event.
type EventKind string

const (
	KindStatus  EventKind = "status"
	KindToken   EventKind = "token"
	KindMessage EventKind = "message"
	KindError   EventKind = "error"
)

// Status values carried by status events.
type Status string

const (
	StatusConnected Status = "connected"
	StatusStarted   Status = "started"
	StatusTyping    Status = "typing"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
)

// Payload is the closed set of event bodies. Concrete payload types implement
// the unexported isPayload marker.
type Payload interface {
	Kind() EventKind
	isPayload()
}

// StatusPayload announces a lifecycle transition. Name and Turn are set for
// typing notifications only.
type StatusPayload struct {
	Status Status `json:"status"`
	Name   string `json:"name,omitempty"`
	Turn   int    `json:"turn,omitempty"`
}

// Kind implements Payload.
func (StatusPayload) Kind() EventKind { return KindStatus }
func (StatusPayload) isPayload()      {}

// TokenPayload carries one incremental chunk of generated text.
type TokenPayload struct {
	Name    string `json:"name"`
	Turn    int    `json:"turn"`
	Token   string `json:"token"`
	Role    Role   `json:"role"`
	AgentID int    `json:"agent_id"`
}

// Kind implements Payload.
func (TokenPayload) Kind() EventKind { return KindToken }
func (TokenPayload) isPayload()      {}

// MessagePayload mirrors a finalized transcript entry.
type MessagePayload struct {
	Name    string `json:"name"`
	Turn    int    `json:"turn"`
	Content string `json:"content"`
	Role    Role   `json:"role"`
	Model   string `json:"model"`
	AgentID int    `json:"agent_id"`
}

// Kind implements Payload.
func (MessagePayload) Kind() EventKind { return KindMessage }
func (MessagePayload) isPayload()      {}

// ErrorPayload carries a user facing failure description.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Kind implements Payload.
func (ErrorPayload) Kind() EventKind { return KindError }
func (ErrorPayload) isPayload()      {}

// Event is the immutable envelope delivered to subscribers. Seq is assigned
// by the publishing run and increases by one per published event so that a
// consumer can detect dropped events.
type Event struct {
	Seq     uint64
	Payload Payload
}

// Kind returns the payload kind.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// NewStatusEvent creates an unsequenced status event.
func NewStatusEvent(s Status) Event { return Event{Payload: StatusPayload{Status: s}} }

// NewTypingEvent announces that name started producing turn.
func NewTypingEvent(name string, turn int) Event {
	return Event{Payload: StatusPayload{Status: StatusTyping, Name: name, Turn: turn}}
}

// NewErrorEvent creates an error event with a user facing message.
func NewErrorEvent(msg string) Event { return Event{Payload: ErrorPayload{Message: msg}} }

// NewTokenEvent creates a token event.
func NewTokenEvent(name string, turn int, token string, role Role, agentID int) Event {
	return Event{Payload: TokenPayload{Name: name, Turn: turn, Token: token, Role: role, AgentID: agentID}}
}

// NewMessageEvent mirrors m as a message event.
func NewMessageEvent(m TranscriptMessage) Event {
	return Event{Payload: MessagePayload{
		Name:    m.Name,
		Turn:    m.Turn,
		Content: m.Content,
		Role:    m.Role,
		Model:   m.Model,
		AgentID: m.AgentID,
	}}
}

// StatusOf returns the status of a status event.
func (e Event) StatusOf() (Status, bool) {
	sp, ok := e.Payload.(StatusPayload)
	if !ok {
		return "", false
	}
	return sp.Status, true
}

// DecodePayload parses the JSON body of an event of the given kind.
func DecodePayload(kind EventKind, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindStatus:
		var v StatusPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindToken:
		var v TokenPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindMessage:
		var v MessagePayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindError:
		var v ErrorPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}
