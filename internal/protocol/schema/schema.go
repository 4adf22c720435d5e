package schema

import (
	"fmt"

	"github.com/danmuck/unitconsole/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs.
const (
	MsgHello           uint32 = 1
	MsgHelloAck        uint32 = 2
	MsgTreeSync        uint32 = 3
	MsgSuggestRequest  uint32 = 4
	MsgSuggestResponse uint32 = 5
	MsgExecuteRequest  uint32 = 6
	MsgExecuteResult   uint32 = 7
)

// Field IDs.
const (
	FieldSessionID  uint16 = 1
	FieldClient     uint16 = 2
	FieldController uint16 = 3

	FieldNode           uint16 = 10
	FieldNodeName       uint16 = 11
	FieldNodeSummary    uint16 = 12
	FieldNodeDescriptor uint16 = 13

	FieldInput  uint16 = 20
	FieldCursor uint16 = 21

	FieldRangeStart uint16 = 30
	FieldRangeEnd   uint16 = 31
	FieldSuggestion uint16 = 32

	FieldOutput       uint16 = 40
	FieldErrorKind    uint16 = 41
	FieldErrorMessage uint16 = 42
	FieldErrorCursor  uint16 = 43
)

// MsgNode is the pseudo message type used to validate nested tree nodes.
const MsgNode uint32 = 1000

var messageNames = map[uint32]string{
	MsgHello:           "hello",
	MsgHelloAck:        "hello.ack",
	MsgTreeSync:        "tree.sync",
	MsgSuggestRequest:  "suggest.request",
	MsgSuggestResponse: "suggest.response",
	MsgExecuteRequest:  "execute.request",
	MsgExecuteResult:   "execute.result",
	MsgNode:            "tree.node",
}

// Name returns the dotted message name, or "unknown".
func Name(messageType uint32) string {
	if n, ok := messageNames[messageType]; ok {
		return n
	}
	return "unknown"
}

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgHello: {
		{FieldSessionID, tlv.TypeString},
		{FieldClient, tlv.TypeString},
	},
	MsgHelloAck: {
		{FieldSessionID, tlv.TypeString},
		{FieldController, tlv.TypeString},
	},
	MsgTreeSync: {},
	MsgNode: {
		{FieldNodeName, tlv.TypeString},
		{FieldNodeSummary, tlv.TypeString},
	},
	MsgSuggestRequest: {
		{FieldInput, tlv.TypeString},
		{FieldCursor, tlv.TypeU32},
	},
	MsgSuggestResponse: {
		{FieldRangeStart, tlv.TypeU32},
		{FieldRangeEnd, tlv.TypeU32},
	},
	MsgExecuteRequest: {
		{FieldInput, tlv.TypeString},
	},
	MsgExecuteResult: {
		{FieldOutput, tlv.TypeString},
		{FieldErrorKind, tlv.TypeString},
	},
}

// Validate enforces required fields and their types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Str("message", Name(messageType)).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Str("message", Name(messageType)).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	log.Trace().Str("message", Name(messageType)).Int("fields", len(fields)).Msg("schema.Validate ok")
	return nil
}
