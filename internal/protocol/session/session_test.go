package session

import (
	"bytes"
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/danmuck/unitconsole/internal/protocol/frame"
	"github.com/danmuck/unitconsole/internal/protocol/schema"
	"github.com/danmuck/unitconsole/internal/testutil/testlog"
	"github.com/google/uuid"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	b := NewBackoff(cfg, nil)
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("attempt%d got=%v want=%v", i+1, got, w)
		}
	}
	if b.Attempt() != len(want) {
		t.Fatalf("unexpected attempt count %d", b.Attempt())
	}
	b.Reset()
	if got := b.Next(); got != 250*time.Millisecond {
		t.Fatalf("reset did not restart: %v", got)
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Backoff
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt <= 8; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < 0 || got > time.Duration(1.5*float64(cfg.MaxDelay)) {
			t.Fatalf("attempt%d out of bounds: %v", attempt, got)
		}
	}
	if NextBackoffDelay(BackoffConfig{}, 3, rng) != 0 {
		t.Fatalf("zero config should not delay")
	}
}

func roundTrip(t *testing.T, id uint64, msg Message) frame.Frame {
	t.Helper()
	b, err := EncodeFrame(id, msg, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("encode %T: %v", msg, err)
	}
	f, err := frame.ReadFrame(bytes.NewReader(b), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read %T: %v", msg, err)
	}
	if f.Header.MessageID != id {
		t.Fatalf("message id not echoed: %d", f.Header.MessageID)
	}
	if f.Header.IsResponse() != IsResponse(msg) {
		t.Fatalf("%T response flag=%v", msg, f.Header.IsResponse())
	}
	return f
}

func TestHandshakeMessagesRoundTrip(t *testing.T) {
	testlog.Start(t)
	sid := uuid.New()
	hello, err := DecodeHello(roundTrip(t, 1, Hello{SessionID: sid, Client: "shellctl"}))
	if err != nil || hello.SessionID != sid || hello.Client != "shellctl" {
		t.Fatalf("hello: %+v err=%v", hello, err)
	}
	ack, err := DecodeHelloAck(roundTrip(t, 1, HelloAck{SessionID: sid, Controller: "unitctl"}))
	if err != nil || ack.SessionID != sid || ack.Controller != "unitctl" {
		t.Fatalf("hello.ack: %+v err=%v", ack, err)
	}
	if _, err := EncodeFrame(1, Hello{Client: "x"}, frame.DefaultLimits()); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage for nil session id, got %v", err)
	}
}

func TestTreeSyncRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := TreeSync{Nodes: []Node{
		{Name: "dump", Summary: "dump one unit", Descriptor: []byte{1, 2, 3}},
		{Name: "ping", Summary: ""},
	}}
	got, err := DecodeTreeSync(roundTrip(t, 1, in))
	if err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(got.Nodes) != 2 || got.Nodes[0].Name != "dump" || string(got.Nodes[0].Descriptor) != "\x01\x02\x03" {
		t.Fatalf("unexpected tree: %+v", got)
	}
	if got.Nodes[1].Descriptor != nil {
		t.Fatalf("argument-less node grew a descriptor: %+v", got.Nodes[1])
	}
	empty, err := DecodeTreeSync(roundTrip(t, 2, TreeSync{}))
	if err != nil || len(empty.Nodes) != 0 {
		t.Fatalf("empty tree: %+v err=%v", empty, err)
	}
}

func TestSuggestAndExecuteRoundTrip(t *testing.T) {
	testlog.Start(t)
	req, err := DecodeSuggestRequest(roundTrip(t, 5, SuggestRequest{Input: "dump @L", Cursor: 7}))
	if err != nil || req.Input != "dump @L" || req.Cursor != 7 {
		t.Fatalf("suggest.request: %+v err=%v", req, err)
	}
	if _, err := EncodeFrame(5, SuggestRequest{Input: "x", Cursor: 4}, frame.DefaultLimits()); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected cursor bound error, got %v", err)
	}

	resp, err := DecodeSuggestResponse(roundTrip(t, 5, SuggestResponse{Start: 5, End: 7, Texts: []string{"@Lumberjack", "@lumber"}}))
	if err != nil || resp.Start != 5 || resp.End != 7 || len(resp.Texts) != 2 || resp.Texts[1] != "@lumber" {
		t.Fatalf("suggest.response: %+v err=%v", resp, err)
	}

	exec, err := DecodeExecuteRequest(roundTrip(t, 6, ExecuteRequest{Input: "shutdown ~advanced"}))
	if err != nil || exec.Input != "shutdown ~advanced" {
		t.Fatalf("execute.request: %+v err=%v", exec, err)
	}

	okFrame := roundTrip(t, 6, ExecuteResult{Output: "stopped 2"})
	if okFrame.Header.Flags&frame.FlagIsError != 0 {
		t.Fatalf("ok result flagged as error")
	}
	ok, err := DecodeExecuteResult(okFrame)
	if err != nil || !ok.OK() || ok.Output != "stopped 2" {
		t.Fatalf("execute.result ok: %+v err=%v", ok, err)
	}

	failFrame := roundTrip(t, 7, ExecuteResult{ErrorKind: ErrorKindNoMatch, ErrorMessage: "no units matching '#4'", ErrorCursor: 5})
	if failFrame.Header.Flags&frame.FlagIsError == 0 {
		t.Fatalf("failed result not flagged")
	}
	fail, err := DecodeExecuteResult(failFrame)
	if err != nil || fail.OK() || fail.ErrorKind != ErrorKindNoMatch || fail.ErrorCursor != 5 {
		t.Fatalf("execute.result fail: %+v err=%v", fail, err)
	}
	if _, err := EncodeFrame(7, ExecuteResult{ErrorKind: "weird"}, frame.DefaultLimits()); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected invalid kind error, got %v", err)
	}
}

func TestDecodeRejectsWrongType(t *testing.T) {
	testlog.Start(t)
	f := roundTrip(t, 1, ExecuteRequest{Input: "x"})
	if _, err := DecodeSuggestRequest(f); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("expected ErrUnexpectedMessage, got %v", err)
	}
	f.Payload = nil
	var vErr schema.ValidationError
	if _, err := DecodeExecuteRequest(f); !errors.As(err, &vErr) {
		t.Fatalf("expected schema.ValidationError, got %v", err)
	}
}

func TestPendingLifecycle(t *testing.T) {
	testlog.Start(t)
	p := NewPending()
	now := time.Unix(1700000000, 0)
	ch, err := p.Add(3, schema.MsgSuggestRequest, now)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := p.Get(3); !ok || len(p.List()) != 1 {
		t.Fatalf("pending request not tracked")
	}
	if p.Resolve(frame.Frame{Header: frame.Header{MessageID: 9}}) {
		t.Fatalf("unexpected resolve of unknown id")
	}
	if !p.Resolve(frame.Frame{Header: frame.Header{MessageID: 3, MessageType: schema.MsgSuggestResponse}}) {
		t.Fatalf("resolve failed")
	}
	if f := <-ch; f.Header.MessageType != schema.MsgSuggestResponse {
		t.Fatalf("unexpected frame: %+v", f.Header)
	}

	waiting, _ := p.Add(4, schema.MsgExecuteRequest, now)
	cause := errors.New("connection lost")
	p.Close(cause)
	if _, ok := <-waiting; ok {
		t.Fatalf("expected closed channel")
	}
	if _, err := p.Add(5, schema.MsgExecuteRequest, now); !errors.Is(err, cause) {
		t.Fatalf("expected close cause, got %v", err)
	}
	if !errors.Is(p.Err(), cause) {
		t.Fatalf("unexpected Err: %v", p.Err())
	}
}

func TestConnSendReceive(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	cfg := DefaultConfig()
	left, right := NewConn(a, cfg), NewConn(b, cfg)
	defer left.Close()
	defer right.Close()

	id := left.NextID()
	errc := make(chan error, 1)
	go func() { errc <- left.Send(id, ExecuteRequest{Input: "list"}) }()

	f, err := right.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("send: %v", err)
	}
	req, err := DecodeExecuteRequest(f)
	if err != nil || req.Input != "list" || f.Header.MessageID != id {
		t.Fatalf("unexpected request: %+v id=%d err=%v", req, f.Header.MessageID, err)
	}

	if _, err := right.Receive(20 * time.Millisecond); err == nil {
		t.Fatalf("expected read timeout")
	}
}
