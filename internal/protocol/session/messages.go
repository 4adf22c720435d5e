package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/unitconsole/internal/protocol/frame"
	"github.com/danmuck/unitconsole/internal/protocol/schema"
	"github.com/danmuck/unitconsole/internal/protocol/tlv"
	"github.com/google/uuid"
)

// Execute result error kinds.
const (
	ErrorKindNone     = "ok"
	ErrorKindParse    = "parse"
	ErrorKindNoMatch  = "no_match"
	ErrorKindInternal = "internal"
)

var (
	ErrInvalidMessage    = errors.New("session: invalid message")
	ErrUnexpectedMessage = errors.New("session: unexpected message type")
)

// Message is any session payload that can be framed.
type Message interface {
	MessageType() uint32
	Fields() ([]tlv.Field, error)
}

// Hello opens a session from the shell.
type Hello struct {
	SessionID uuid.UUID
	Client    string
}

func (Hello) MessageType() uint32 { return schema.MsgHello }

func (h Hello) Fields() ([]tlv.Field, error) {
	if h.SessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: hello missing session_id", ErrInvalidMessage)
	}
	if strings.TrimSpace(h.Client) == "" {
		return nil, fmt.Errorf("%w: hello missing client", ErrInvalidMessage)
	}
	return []tlv.Field{
		tlv.String(schema.FieldSessionID, h.SessionID.String()),
		tlv.String(schema.FieldClient, h.Client),
	}, nil
}

// HelloAck accepts a session.
type HelloAck struct {
	SessionID  uuid.UUID
	Controller string
}

func (HelloAck) MessageType() uint32 { return schema.MsgHelloAck }

func (a HelloAck) Fields() ([]tlv.Field, error) {
	if a.SessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: hello.ack missing session_id", ErrInvalidMessage)
	}
	return []tlv.Field{
		tlv.String(schema.FieldSessionID, a.SessionID.String()),
		tlv.String(schema.FieldController, a.Controller),
	}, nil
}

// Node is one command with its binary argument descriptor.
type Node struct {
	Name       string
	Summary    string
	Descriptor []byte
}

// TreeSync carries the controller's command tree.
type TreeSync struct {
	Nodes []Node
}

func (TreeSync) MessageType() uint32 { return schema.MsgTreeSync }

func (s TreeSync) Fields() ([]tlv.Field, error) {
	fields := make([]tlv.Field, 0, len(s.Nodes))
	for i, n := range s.Nodes {
		if strings.TrimSpace(n.Name) == "" {
			return nil, fmt.Errorf("%w: tree.sync node[%d] missing name", ErrInvalidMessage, i)
		}
		inner := []tlv.Field{
			tlv.String(schema.FieldNodeName, n.Name),
			tlv.String(schema.FieldNodeSummary, n.Summary),
		}
		if len(n.Descriptor) > 0 {
			inner = append(inner, tlv.Bytes(schema.FieldNodeDescriptor, n.Descriptor))
		}
		fields = append(fields, tlv.Nested(schema.FieldNode, inner))
	}
	return fields, nil
}

// SuggestRequest asks for completions of Input typed up to Cursor.
type SuggestRequest struct {
	Input  string
	Cursor uint32
}

func (SuggestRequest) MessageType() uint32 { return schema.MsgSuggestRequest }

func (r SuggestRequest) Fields() ([]tlv.Field, error) {
	if int(r.Cursor) > len(r.Input) {
		return nil, fmt.Errorf("%w: suggest.request cursor past input", ErrInvalidMessage)
	}
	return []tlv.Field{
		tlv.String(schema.FieldInput, r.Input),
		tlv.U32(schema.FieldCursor, r.Cursor),
	}, nil
}

// SuggestResponse carries completions sharing one range.
type SuggestResponse struct {
	Start uint32
	End   uint32
	Texts []string
}

func (SuggestResponse) MessageType() uint32 { return schema.MsgSuggestResponse }

func (r SuggestResponse) Fields() ([]tlv.Field, error) {
	if r.End < r.Start {
		return nil, fmt.Errorf("%w: suggest.response range end before start", ErrInvalidMessage)
	}
	fields := []tlv.Field{
		tlv.U32(schema.FieldRangeStart, r.Start),
		tlv.U32(schema.FieldRangeEnd, r.End),
	}
	for _, text := range r.Texts {
		fields = append(fields, tlv.String(schema.FieldSuggestion, text))
	}
	return fields, nil
}

// ExecuteRequest runs Input on the controller.
type ExecuteRequest struct {
	Input string
}

func (ExecuteRequest) MessageType() uint32 { return schema.MsgExecuteRequest }

func (r ExecuteRequest) Fields() ([]tlv.Field, error) {
	return []tlv.Field{tlv.String(schema.FieldInput, r.Input)}, nil
}

// ExecuteResult is the outcome of one ExecuteRequest.
type ExecuteResult struct {
	Output       string
	ErrorKind    string
	ErrorMessage string
	ErrorCursor  uint32
}

func (ExecuteResult) MessageType() uint32 { return schema.MsgExecuteResult }

func (r ExecuteResult) OK() bool {
	return r.ErrorKind == "" || r.ErrorKind == ErrorKindNone
}

func (r ExecuteResult) Fields() ([]tlv.Field, error) {
	kind := r.ErrorKind
	if kind == "" {
		kind = ErrorKindNone
	}
	switch kind {
	case ErrorKindNone, ErrorKindParse, ErrorKindNoMatch, ErrorKindInternal:
	default:
		return nil, fmt.Errorf("%w: execute.result error kind %q", ErrInvalidMessage, kind)
	}
	fields := []tlv.Field{
		tlv.String(schema.FieldOutput, r.Output),
		tlv.String(schema.FieldErrorKind, kind),
	}
	if kind != ErrorKindNone {
		fields = append(fields,
			tlv.String(schema.FieldErrorMessage, r.ErrorMessage),
			tlv.U32(schema.FieldErrorCursor, r.ErrorCursor),
		)
	}
	return fields, nil
}

// IsResponse reports whether msg travels controller -> shell.
func IsResponse(msg Message) bool {
	switch msg.MessageType() {
	case schema.MsgHelloAck, schema.MsgTreeSync, schema.MsgSuggestResponse, schema.MsgExecuteResult:
		return true
	default:
		return false
	}
}

// EncodeFrame validates msg and returns its framed bytes.
func EncodeFrame(messageID uint64, msg Message, limits frame.Limits) ([]byte, error) {
	fields, err := msg.Fields()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(msg.MessageType(), fields); err != nil {
		return nil, err
	}
	var flags uint32
	if IsResponse(msg) {
		flags |= frame.FlagIsResponse
	}
	if r, ok := msg.(ExecuteResult); ok && !r.OK() {
		flags |= frame.FlagIsError
	}
	return frame.Encode(frame.Frame{
		Header: frame.Header{
			MessageID:   messageID,
			MessageType: msg.MessageType(),
			Flags:       flags,
		},
		Payload: tlv.EncodeFields(fields),
	}, limits)
}

func decodeFields(f frame.Frame, messageType uint32) ([]tlv.Field, error) {
	if f.Header.MessageType != messageType {
		return nil, fmt.Errorf("%w: got %s want %s",
			ErrUnexpectedMessage, schema.Name(f.Header.MessageType), schema.Name(messageType))
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func DecodeHello(f frame.Frame) (Hello, error) {
	fields, err := decodeFields(f, schema.MsgHello)
	if err != nil {
		return Hello{}, err
	}
	id, err := sessionID(fields)
	if err != nil {
		return Hello{}, err
	}
	return Hello{SessionID: id, Client: requiredString(fields, schema.FieldClient)}, nil
}

func DecodeHelloAck(f frame.Frame) (HelloAck, error) {
	fields, err := decodeFields(f, schema.MsgHelloAck)
	if err != nil {
		return HelloAck{}, err
	}
	id, err := sessionID(fields)
	if err != nil {
		return HelloAck{}, err
	}
	return HelloAck{SessionID: id, Controller: requiredString(fields, schema.FieldController)}, nil
}

func DecodeTreeSync(f frame.Frame) (TreeSync, error) {
	fields, err := decodeFields(f, schema.MsgTreeSync)
	if err != nil {
		return TreeSync{}, err
	}
	raw := tlv.GetFields(fields, schema.FieldNode)
	out := TreeSync{Nodes: make([]Node, 0, len(raw))}
	for i, nf := range raw {
		if err := tlv.MustType(nf, tlv.TypeBytes); err != nil {
			return TreeSync{}, err
		}
		inner, err := tlv.DecodeFields(nf.Value)
		if err != nil {
			return TreeSync{}, fmt.Errorf("tree.sync node[%d]: %w", i, err)
		}
		if err := schema.Validate(schema.MsgNode, inner); err != nil {
			return TreeSync{}, fmt.Errorf("tree.sync node[%d]: %w", i, err)
		}
		node := Node{
			Name:    requiredString(inner, schema.FieldNodeName),
			Summary: requiredString(inner, schema.FieldNodeSummary),
		}
		if df, ok := tlv.GetField(inner, schema.FieldNodeDescriptor); ok {
			if err := tlv.MustType(df, tlv.TypeBytes); err != nil {
				return TreeSync{}, err
			}
			node.Descriptor = df.Value
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out, nil
}

func DecodeSuggestRequest(f frame.Frame) (SuggestRequest, error) {
	fields, err := decodeFields(f, schema.MsgSuggestRequest)
	if err != nil {
		return SuggestRequest{}, err
	}
	cursor, err := requiredU32(fields, schema.FieldCursor)
	if err != nil {
		return SuggestRequest{}, err
	}
	req := SuggestRequest{Input: requiredString(fields, schema.FieldInput), Cursor: cursor}
	if int(req.Cursor) > len(req.Input) {
		return SuggestRequest{}, fmt.Errorf("%w: suggest.request cursor past input", ErrInvalidMessage)
	}
	return req, nil
}

func DecodeSuggestResponse(f frame.Frame) (SuggestResponse, error) {
	fields, err := decodeFields(f, schema.MsgSuggestResponse)
	if err != nil {
		return SuggestResponse{}, err
	}
	start, err := requiredU32(fields, schema.FieldRangeStart)
	if err != nil {
		return SuggestResponse{}, err
	}
	end, err := requiredU32(fields, schema.FieldRangeEnd)
	if err != nil {
		return SuggestResponse{}, err
	}
	resp := SuggestResponse{Start: start, End: end}
	for _, sf := range tlv.GetFields(fields, schema.FieldSuggestion) {
		text, err := sf.AsString()
		if err != nil {
			return SuggestResponse{}, err
		}
		resp.Texts = append(resp.Texts, text)
	}
	return resp, nil
}

func DecodeExecuteRequest(f frame.Frame) (ExecuteRequest, error) {
	fields, err := decodeFields(f, schema.MsgExecuteRequest)
	if err != nil {
		return ExecuteRequest{}, err
	}
	return ExecuteRequest{Input: requiredString(fields, schema.FieldInput)}, nil
}

func DecodeExecuteResult(f frame.Frame) (ExecuteResult, error) {
	fields, err := decodeFields(f, schema.MsgExecuteResult)
	if err != nil {
		return ExecuteResult{}, err
	}
	res := ExecuteResult{
		Output:    requiredString(fields, schema.FieldOutput),
		ErrorKind: requiredString(fields, schema.FieldErrorKind),
	}
	if res.OK() {
		return res, nil
	}
	if mf, ok := tlv.GetField(fields, schema.FieldErrorMessage); ok {
		if res.ErrorMessage, err = mf.AsString(); err != nil {
			return ExecuteResult{}, err
		}
	}
	if cf, ok := tlv.GetField(fields, schema.FieldErrorCursor); ok {
		if res.ErrorCursor, err = cf.AsU32(); err != nil {
			return ExecuteResult{}, err
		}
	}
	return res, nil
}

func sessionID(fields []tlv.Field) (uuid.UUID, error) {
	id, err := uuid.Parse(requiredString(fields, schema.FieldSessionID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: session_id: %v", ErrInvalidMessage, err)
	}
	return id, nil
}

// requiredString reads a field schema.Validate already checked.
func requiredString(fields []tlv.Field, id uint16) string {
	f, _ := tlv.GetField(fields, id)
	return string(f.Value)
}

func requiredU32(fields []tlv.Field, id uint16) (uint32, error) {
	f, _ := tlv.GetField(fields, id)
	return f.AsU32()
}
