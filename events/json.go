package events

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	messageJSON     = []byte(`{"type":"message"}`)
	streamStartJSON = []byte(`{"type":"stream.start"}`)
	streamChunkJSON = []byte(`{"type":"stream.chunk"}`)
	streamEndJSON   = []byte(`{"type":"stream.end"}`)
	streamErrorJSON = []byte(`{"type":"stream.error"}`)
	diagnosticJSON  = []byte(`{"type":"diagnostic"}`)
)

// ToJSON serializes any bus event with its type discriminator.
func ToJSON(event Event) ([]byte, error) {
	switch event := event.(type) {
	case Message, StreamStart, StreamChunk, StreamEnd, StreamError, Diagnostic:
		return json.Marshal(event)
	default:
		return nil, fmt.Errorf("unknown event type: %T", event)
	}
}

// FromJSON deserializes a bus event based on its type discriminator.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	switch kind := gjson.GetBytes(data, "type").String(); kind {
	case "message":
		var e Message
		return e, json.Unmarshal(data, &e)
	case "stream.start":
		var e StreamStart
		return e, json.Unmarshal(data, &e)
	case "stream.chunk":
		var e StreamChunk
		return e, json.Unmarshal(data, &e)
	case "stream.end":
		var e StreamEnd
		return e, json.Unmarshal(data, &e)
	case "stream.error":
		var e StreamError
		return e, json.Unmarshal(data, &e)
	case "diagnostic":
		var e Diagnostic
		return e, json.Unmarshal(data, &e)
	default:
		return nil, fmt.Errorf("missing or unknown event type: %q", kind)
	}
}

// MarshalJSON implements custom JSON marshaling for Message.
func (e Message) MarshalJSON() ([]byte, error) {
	result := messageJSON

	var err error
	result, err = sjson.SetBytes(result, "message_id", e.MessageID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "session_id", e.SessionID)
	if err != nil {
		return nil, err
	}

	senderBytes, err := json.Marshal(e.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sender: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "sender", senderBytes)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "content", e.Content)
	if err != nil {
		return nil, err
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Message.
func (e *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if msgType := gjson.GetBytes(data, "type"); !msgType.Exists() || msgType.String() != "message" {
		return fmt.Errorf("missing or invalid type, expected 'message'")
	}

	messageID := gjson.GetBytes(data, "message_id")
	if !messageID.Exists() {
		return fmt.Errorf("missing required field 'message_id'")
	}
	if err := e.MessageID.UnmarshalText([]byte(messageID.String())); err != nil {
		return fmt.Errorf("invalid message_id: %w", err)
	}

	e.SessionID = gjson.GetBytes(data, "session_id").String()

	sender := gjson.GetBytes(data, "sender")
	if !sender.Exists() {
		return fmt.Errorf("missing required field 'sender'")
	}
	if err := json.Unmarshal([]byte(sender.Raw), &e.Sender); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	e.Content = gjson.GetBytes(data, "content").String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling for StreamStart.
func (e StreamStart) MarshalJSON() ([]byte, error) {
	return marshalStreamHeader(streamStartJSON, e.MessageID.String(), e.SessionID, e.Agent, e.Timestamp.String(), e.Timestamp.IsZero())
}

// UnmarshalJSON implements custom JSON unmarshaling for StreamStart.
func (e *StreamStart) UnmarshalJSON(data []byte) error {
	header, err := unmarshalStreamHeader(data, "stream.start")
	if err != nil {
		return err
	}
	e.MessageID = header.messageID
	e.SessionID = header.sessionID
	e.Agent = header.agent
	e.Timestamp = header.timestamp
	return nil
}

// MarshalJSON implements custom JSON marshaling for StreamChunk.
func (e StreamChunk) MarshalJSON() ([]byte, error) {
	result, err := marshalStreamHeader(streamChunkJSON, e.MessageID.String(), e.SessionID, e.Agent, e.Timestamp.String(), e.Timestamp.IsZero())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delta", e.Delta)
}

// UnmarshalJSON implements custom JSON unmarshaling for StreamChunk.
func (e *StreamChunk) UnmarshalJSON(data []byte) error {
	header, err := unmarshalStreamHeader(data, "stream.chunk")
	if err != nil {
		return err
	}
	e.MessageID = header.messageID
	e.SessionID = header.sessionID
	e.Agent = header.agent
	e.Timestamp = header.timestamp
	e.Delta = gjson.GetBytes(data, "delta").String()
	return nil
}

// MarshalJSON implements custom JSON marshaling for StreamEnd.
func (e StreamEnd) MarshalJSON() ([]byte, error) {
	result, err := marshalStreamHeader(streamEndJSON, e.MessageID.String(), e.SessionID, e.Agent, e.Timestamp.String(), e.Timestamp.IsZero())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "content", e.Content)
	if err != nil {
		return nil, err
	}

	if e.Usage.Exists() {
		result, err = sjson.SetRawBytes(result, "usage", []byte(e.Usage.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for StreamEnd.
func (e *StreamEnd) UnmarshalJSON(data []byte) error {
	header, err := unmarshalStreamHeader(data, "stream.end")
	if err != nil {
		return err
	}
	e.MessageID = header.messageID
	e.SessionID = header.sessionID
	e.Agent = header.agent
	e.Timestamp = header.timestamp
	e.Content = gjson.GetBytes(data, "content").String()
	if usage := gjson.GetBytes(data, "usage"); usage.Exists() {
		e.Usage = usage
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for StreamError.
func (e StreamError) MarshalJSON() ([]byte, error) {
	result, err := marshalStreamHeader(streamErrorJSON, e.MessageID.String(), e.SessionID, e.Agent, e.Timestamp.String(), e.Timestamp.IsZero())
	if err != nil {
		return nil, err
	}
	// The field is always present so a zero Err survives a round trip.
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	result, err = sjson.SetBytes(result, "error", msg)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for StreamError.
func (e *StreamError) UnmarshalJSON(data []byte) error {
	header, err := unmarshalStreamHeader(data, "stream.error")
	if err != nil {
		return err
	}
	e.MessageID = header.messageID
	e.SessionID = header.sessionID
	e.Agent = header.agent
	e.Timestamp = header.timestamp

	if errMsg := gjson.GetBytes(data, "error"); errMsg.Exists() && errMsg.String() != "" {
		e.Err = errors.New(errMsg.String())
	} else {
		e.Err = nil
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for Diagnostic.
func (e Diagnostic) MarshalJSON() ([]byte, error) {
	result := diagnosticJSON

	var err error
	if e.SessionID != "" {
		result, err = sjson.SetBytes(result, "session_id", e.SessionID)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "scope", e.Scope)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "detail", e.Detail)
	if err != nil {
		return nil, err
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Diagnostic.
func (e *Diagnostic) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	if msgType := gjson.GetBytes(data, "type"); !msgType.Exists() || msgType.String() != "diagnostic" {
		return fmt.Errorf("missing or invalid type, expected 'diagnostic'")
	}

	e.SessionID = gjson.GetBytes(data, "session_id").String()
	e.Scope = gjson.GetBytes(data, "scope").String()
	e.Detail = gjson.GetBytes(data, "detail").String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return nil
}

type streamHeader struct {
	messageID uuid.UUID
	sessionID string
	agent     string
	timestamp strfmt.DateTime
}

func marshalStreamHeader(base []byte, messageID, sessionID, agent, timestamp string, zeroTime bool) ([]byte, error) {
	result, err := sjson.SetBytes(base, "message_id", messageID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "session_id", sessionID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "agent", agent)
	if err != nil {
		return nil, err
	}

	if !zeroTime {
		result, err = sjson.SetBytes(result, "timestamp", timestamp)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func unmarshalStreamHeader(data []byte, expected string) (streamHeader, error) {
	var header streamHeader
	if !gjson.ValidBytes(data) {
		return header, fmt.Errorf("invalid json: %s", data)
	}

	if msgType := gjson.GetBytes(data, "type"); !msgType.Exists() || msgType.String() != expected {
		return header, fmt.Errorf("missing or invalid type, expected %q", expected)
	}

	messageID := gjson.GetBytes(data, "message_id")
	if !messageID.Exists() {
		return header, fmt.Errorf("missing required field 'message_id'")
	}
	if err := header.messageID.UnmarshalText([]byte(messageID.String())); err != nil {
		return header, fmt.Errorf("invalid message_id: %w", err)
	}

	header.sessionID = gjson.GetBytes(data, "session_id").String()
	header.agent = gjson.GetBytes(data, "agent").String()

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := header.timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return header, fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	return header, nil
}
