package controller

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/unitconsole/internal/argsync"
	"github.com/danmuck/unitconsole/internal/protocol/session"
	"github.com/danmuck/unitconsole/internal/testutil/testlog"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func fixtureRegistry(t *testing.T) *unit.Registry {
	t.Helper()
	reg := unit.NewRegistry()
	for _, u := range []unit.Unit{
		{Handle: 7, ID: 1, Label: "Lumberjack", Category: unit.Advanced, Running: true},
		{Handle: 8, ID: 2, Label: "Miner", Category: unit.Advanced},
		{Handle: 9, ID: 3, Category: unit.Normal, Running: true},
		{Handle: 12, ID: 4, Label: "Guard", Category: unit.Command},
	} {
		require.NoError(t, reg.Add(u))
	}
	return reg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.ControllerID = "ctl-test"
	svc, err := NewService(cfg, fixtureRegistry(t))
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresRegistry(t *testing.T) {
	testlog.Start(t)
	_, err := NewService(DefaultServiceConfig(), nil)
	require.ErrorIs(t, err, ErrNilRegistry)
}

func TestTreeListsBuiltinCommands(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	nodes, err := svc.Tree()
	require.NoError(t, err)
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
		require.NotEmpty(t, n.Descriptor, n.Name)
		_, err := argsync.Default().Decode(n.Descriptor)
		require.NoError(t, err, n.Name)
	}
	require.Equal(t, []string{"dump", "list", "shutdown", "turnon"}, names)
}

func TestExecuteCommands(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		input  string
		kind   string
		output string
		msg    string
	}{
		{name: "dump handle", input: "dump 7", kind: session.ErrorKindNone, output: "7 #1 @Lumberjack ~Advanced on"},
		{name: "dump id", input: "dump #4", kind: session.ErrorKindNone, output: "12 #4 @Guard ~Command off"},
		{name: "dump unlabeled", input: "dump 9", kind: session.ErrorKindNone, output: "9 #3 @- ~Normal on"},
		{name: "dump no match", input: "dump @Nobody", kind: session.ErrorKindNoMatch, msg: "no units matching '@Nobody'"},
		{name: "dump missing argument", input: "dump", kind: session.ErrorKindParse},
		{name: "list all", input: "list", kind: session.ErrorKindNone, output: strings.Join([]string{
			"7 #1 @Lumberjack ~Advanced on",
			"8 #2 @Miner ~Advanced off",
			"9 #3 @- ~Normal on",
			"12 #4 @Guard ~Command off",
		}, "\n")},
		{name: "list category folded", input: "list ~command", kind: session.ErrorKindNone, output: "12 #4 @Guard ~Command off"},
		{name: "list tolerates empty", input: "list @Nobody", kind: session.ErrorKindNone, output: "no units"},
		{name: "shutdown requires selector", input: "shutdown", kind: session.ErrorKindParse, msg: missingSelector},
		{name: "unknown command", input: "frobnicate 1", kind: session.ErrorKindParse, msg: "unknown command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t)
			res := svc.Execute(ctx, tc.input)
			require.Equal(t, tc.kind, res.ErrorKind, res.ErrorMessage)
			if tc.output != "" {
				require.Equal(t, tc.output, res.Output)
			}
			if tc.msg != "" {
				require.Contains(t, res.ErrorMessage, tc.msg)
			}
		})
	}
}

func TestExecuteParseErrorCarriesCursor(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	res := svc.Execute(context.Background(), "shutdown")
	require.Equal(t, session.ErrorKindParse, res.ErrorKind)
	require.Equal(t, uint32(len("shutdown")), res.ErrorCursor)
}

func TestShutdownAndTurnOnUpdateRegistry(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	ctx := context.Background()

	res := svc.Execute(ctx, "shutdown ~advanced 9 7")
	require.True(t, res.OK(), res.ErrorMessage)
	require.Equal(t, "7 stopped\n8 already stopped\n9 stopped", res.Output)
	for _, h := range []int32{7, 8, 9} {
		u, ok := svc.Units().Get(h)
		require.True(t, ok)
		require.False(t, u.Running, "handle %d", h)
	}

	res = svc.Execute(ctx, "turnon @Miner")
	require.True(t, res.OK(), res.ErrorMessage)
	require.Equal(t, "8 started", res.Output)
	u, _ := svc.Units().Get(8)
	require.True(t, u.Running)

	res = svc.Execute(ctx, "turnon 8 @Nobody")
	require.Equal(t, session.ErrorKindNoMatch, res.ErrorKind)
}

func TestSelectorsResolveLazily(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	ctx := context.Background()

	require.Equal(t, session.ErrorKindNoMatch, svc.Execute(ctx, "dump 20").ErrorKind)
	require.NoError(t, svc.Units().Add(unit.Unit{Handle: 20, ID: 9, Category: unit.Normal}))
	res := svc.Execute(ctx, "dump 20")
	require.True(t, res.OK(), res.ErrorMessage)
	require.Equal(t, "20 #9 @- ~Normal off", res.Output)
}

func TestSuggest(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		start uint32
		end   uint32
		texts []string
	}{
		{name: "command names", input: "sh", start: 0, end: 2, texts: []string{"shutdown"}},
		{name: "labels", input: "dump @", start: 5, end: 6, texts: []string{"@Guard", "@Lumberjack", "@Miner"}},
		{name: "ids", input: "dump #", start: 5, end: 6, texts: []string{"#1", "#2", "#3", "#4"}},
		{name: "categories after element", input: "shutdown 7 ~", start: 11, end: 12, texts: []string{"~Advanced", "~Command", "~Normal"}},
		{name: "label prefix folded", input: "list @m", start: 5, end: 7, texts: []string{"@Miner"}},
		{name: "unknown command", input: "zzz ", start: 4, end: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := svc.Suggest(ctx, tc.input, len(tc.input))
			require.Equal(t, tc.start, resp.Start)
			require.Equal(t, tc.end, resp.End)
			require.Equal(t, tc.texts, resp.Texts)
		})
	}
}

func TestSuggestClampsCursor(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	resp := svc.Suggest(context.Background(), "dump @Mi", 100)
	require.Equal(t, []string{"@Miner"}, resp.Texts)
}

func handshake(t *testing.T, c *session.Conn) []session.Node {
	t.Helper()
	id := c.NextID()
	sid := uuid.New()
	require.NoError(t, c.Send(id, session.Hello{SessionID: sid, Client: "test-shell"}))

	f, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, id, f.Header.MessageID)
	ack, err := session.DecodeHelloAck(f)
	require.NoError(t, err)
	require.Equal(t, sid, ack.SessionID)
	require.Equal(t, "ctl-test", ack.Controller)

	f, err = c.Receive(2 * time.Second)
	require.NoError(t, err)
	tree, err := session.DecodeTreeSync(f)
	require.NoError(t, err)
	return tree.Nodes
}

func TestHandleConnSession(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	serverSide, clientSide := net.Pipe()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.HandleConn(context.Background(), serverSide) }()

	c := session.NewConn(clientSide, session.DefaultConfig())
	nodes := handshake(t, c)
	require.Len(t, nodes, 4)

	id := c.NextID()
	require.NoError(t, c.Send(id, session.SuggestRequest{Input: "dump @L", Cursor: 7}))
	f, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, id, f.Header.MessageID)
	sugg, err := session.DecodeSuggestResponse(f)
	require.NoError(t, err)
	require.Equal(t, []string{"@Lumberjack"}, sugg.Texts)

	id = c.NextID()
	require.NoError(t, c.Send(id, session.ExecuteRequest{Input: "shutdown 7"}))
	f, err = c.Receive(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, id, f.Header.MessageID)
	res, err := session.DecodeExecuteResult(f)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "7 stopped", res.Output)
	require.Equal(t, int64(1), svc.SessionCount())

	id = c.NextID()
	require.NoError(t, c.Send(id, session.ExecuteRequest{Input: "dump @Nobody"}))
	f, err = c.Receive(2 * time.Second)
	require.NoError(t, err)
	res, err = session.DecodeExecuteResult(f)
	require.NoError(t, err)
	require.Equal(t, session.ErrorKindNoMatch, res.ErrorKind)

	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after client close")
	}
	require.Equal(t, int64(0), svc.SessionCount())
}

func TestHandleConnRejectsNonHelloOpening(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.HandleConn(context.Background(), serverSide) }()

	c := session.NewConn(clientSide, session.DefaultConfig())
	require.NoError(t, c.Send(c.NextID(), session.ExecuteRequest{Input: "list"}))
	err := <-errCh
	require.True(t, errors.Is(err, session.ErrUnexpectedMessage), "err=%v", err)
}

func TestHandleConnRejectsUnexpectedMessage(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.HandleConn(context.Background(), serverSide) }()

	c := session.NewConn(clientSide, session.DefaultConfig())
	handshake(t, c)
	require.NoError(t, c.Send(c.NextID(), session.Hello{SessionID: uuid.New(), Client: "again"}))
	require.ErrorIs(t, <-errCh, session.ErrUnexpectedMessage)
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	svc := newTestService(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()

	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer raw.Close()
	c := session.NewConn(raw, session.DefaultConfig())
	handshake(t, c)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}
