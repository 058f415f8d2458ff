package messages

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/yysun/agent-world-sub006/pkg/uuidx"
)

// SenderKind classifies who produced a message. The set is closed: every
// message is resolved to exactly one of these at ingress and routing decisions
// switch on it.
type SenderKind uint8

const (
	KindHuman SenderKind = iota + 1
	KindAgent
	KindSystem
)

func (k SenderKind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindAgent:
		return "agent"
	case KindSystem:
		return "system"
	default:
		return fmt.Sprintf("senderkind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SenderKind) MarshalText() ([]byte, error) {
	switch k {
	case KindHuman, KindAgent, KindSystem:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown sender kind: %d", uint8(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SenderKind) UnmarshalText(data []byte) error {
	switch string(data) {
	case "human":
		*k = KindHuman
	case "agent":
		*k = KindAgent
	case "system":
		*k = KindSystem
	default:
		return fmt.Errorf("unknown sender kind: %q", data)
	}
	return nil
}

// Sender identifies the originator of a message together with its
// classification.
type Sender struct {
	Kind SenderKind `json:"kind"`
	Name string     `json:"name"`
}

func Human(name string) Sender {
	return Sender{Kind: KindHuman, Name: name}
}

func Agent(name string) Sender {
	return Sender{Kind: KindAgent, Name: name}
}

// System returns the sender used for world-originated messages. System
// messages carry no participant name.
func System() Sender {
	return Sender{Kind: KindSystem, Name: "system"}
}

func (s Sender) IsHuman() bool  { return s.Kind == KindHuman }
func (s Sender) IsAgent() bool  { return s.Kind == KindAgent }
func (s Sender) IsSystem() bool { return s.Kind == KindSystem }

// Message is an immutable conversation entry. Once built it is only ever
// copied, never mutated.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	SessionID string          `json:"session_id,omitempty"`
	Sender    Sender          `json:"sender"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// New builds a message with a fresh v7 id and the current time.
func New(sessionID string, sender Sender, content string) Message {
	return Message{
		ID:        uuidx.New(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
