package controller

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/unitconsole/internal/argsync"
	"github.com/danmuck/unitconsole/internal/console"
	"github.com/danmuck/unitconsole/internal/observability"
	"github.com/danmuck/unitconsole/internal/protocol/schema"
	"github.com/danmuck/unitconsole/internal/protocol/session"
	"github.com/danmuck/unitconsole/internal/reader"
	"github.com/danmuck/unitconsole/internal/selector"
	"github.com/danmuck/unitconsole/internal/suggest"
	"github.com/danmuck/unitconsole/internal/unit"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilRegistry      = errors.New("controller: unit registry required")
	ErrListenAddrNeeded = errors.New("controller: listen address required")
)

// ServiceConfig defines controller runtime settings.
type ServiceConfig struct {
	ControllerID    string
	ListenAddr      string
	AdminListenAddr string
	AdminToken      string
	CORSOrigins     []string
	UnitsFile       string
	Session         session.Config
}

func DefaultServiceConfig() ServiceConfig {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "controller"
	}
	return ServiceConfig{
		ControllerID:    host,
		ListenAddr:      "127.0.0.1:7420",
		AdminListenAddr: "127.0.0.1:7421",
		Session:         session.DefaultConfig(),
	}
}

// Service holds the live registry and answers shell sessions.
type Service struct {
	cfg     ServiceConfig
	units   *unit.Registry
	console *console.Console
	codecs  *argsync.Registry
	source  unit.Privileged
	started time.Time

	connMu   sync.Mutex
	conns    map[net.Conn]struct{}
	sessions atomic.Int64
}

// NewService builds a controller over units with the builtin command set.
func NewService(cfg ServiceConfig, units *unit.Registry) (*Service, error) {
	if units == nil {
		return nil, ErrNilRegistry
	}
	if strings.TrimSpace(cfg.ControllerID) == "" {
		cfg.ControllerID = DefaultServiceConfig().ControllerID
	}
	s := &Service{
		cfg:     cfg,
		units:   units,
		console: console.New(),
		codecs:  argsync.Default(),
		source:  unit.NewPrivileged(units),
		started: time.Now(),
		conns:   make(map[net.Conn]struct{}),
	}
	if err := registerCommands(s); err != nil {
		return nil, err
	}
	// Fail at startup rather than on the first hello.
	if _, err := s.Tree(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) Units() *unit.Registry {
	return s.units
}

func (s *Service) Console() *console.Console {
	return s.console
}

// Codecs returns the descriptor registry used for tree sync.
func (s *Service) Codecs() *argsync.Registry {
	return s.codecs
}

func (s *Service) Started() time.Time {
	return s.started
}

// SessionCount returns the number of open shell sessions.
func (s *Service) SessionCount() int64 {
	return s.sessions.Load()
}

// Tree exports the command table in wire form.
func (s *Service) Tree() ([]session.Node, error) {
	nodes, err := s.console.Tree(s.codecs)
	if err != nil {
		return nil, err
	}
	out := make([]session.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, session.Node{Name: n.Name, Summary: n.Summary, Descriptor: n.Descriptor})
	}
	return out, nil
}

// Execute runs one console line with controller privileges.
func (s *Service) Execute(ctx context.Context, input string) session.ExecuteResult {
	start := time.Now()
	out, err := s.console.Execute(ctx, s.source, input)
	res := executeResult(out, err)
	observability.RecordConsoleRequest("execute", s.commandLabel(input), res.ErrorKind, time.Since(start))
	if res.ErrorKind == session.ErrorKindInternal {
		log.Error().Str("input", input).Err(err).Msg("controller.execute failed")
	} else {
		log.Debug().Str("input", input).Str("outcome", res.ErrorKind).Msg("controller.execute")
	}
	return res
}

// Suggest completes input typed up to cursor with controller privileges.
func (s *Service) Suggest(ctx context.Context, input string, cursor int) session.SuggestResponse {
	start := time.Now()
	cursor = min(max(cursor, 0), len(input))
	if s.cfg.Session.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Session.RequestTimeout)
		defer cancel()
	}
	outcome := "ok"
	list, err := s.console.Suggest(ctx, s.source, input, cursor).Get(ctx)
	if err != nil {
		outcome = "error"
		log.Warn().Str("input", input).Int("cursor", cursor).Err(err).Msg("controller.suggest failed")
		list = suggest.Empty()
	}
	observability.RecordConsoleRequest("suggest", s.commandLabel(input), outcome, time.Since(start))
	return suggestResponse(list, cursor)
}

// Run listens on ListenAddr and serves sessions until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.ListenAddr) == "" {
		return ErrListenAddrNeeded
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().
		Str("controller", s.cfg.ControllerID).
		Str("addr", ln.Addr().String()).
		Int("units", s.units.Len()).
		Msg("controller.service listening")
	return s.Serve(ctx, ln)
}

// Serve accepts shell sessions on ln until ctx ends.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrackConn(conn)
			if err := s.HandleConn(ctx, conn); err != nil {
				log.Warn().Str("remote", conn.RemoteAddr().String()).Err(err).Msg("controller.session ended")
			}
		}()
	}
}

// HandleConn runs one shell session on raw and closes it on return.
// Suggest and execute requests are answered concurrently.
func (s *Service) HandleConn(ctx context.Context, raw net.Conn) error {
	conn := session.NewConn(raw, s.cfg.Session)
	defer conn.Close()

	hello, err := s.handshake(conn)
	if err != nil {
		return err
	}
	active := s.sessions.Add(1)
	observability.SessionOpened()
	log.Info().
		Str("session_id", hello.SessionID.String()).
		Str("client", hello.Client).
		Str("remote", conn.RemoteAddr()).
		Int64("active", active).
		Msg("controller.session accepted")

	reason := "closed"
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
		remaining := s.sessions.Add(-1)
		observability.SessionClosed(reason)
		log.Info().
			Str("session_id", hello.SessionID.String()).
			Str("reason", reason).
			Int64("active", remaining).
			Msg("controller.session closed")
	}()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		f, err := conn.Receive(s.cfg.Session.IdleTimeout)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				reason = "shutdown"
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
				return nil
			case isTimeout(err):
				reason = "idle"
				return nil
			}
			reason = "error"
			return err
		}
		id := f.Header.MessageID
		switch f.Header.MessageType {
		case schema.MsgSuggestRequest:
			req, err := session.DecodeSuggestRequest(f)
			if err != nil {
				reason = "protocol"
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := s.Suggest(ctx, req.Input, int(req.Cursor))
				s.reply(conn, id, resp)
			}()
		case schema.MsgExecuteRequest:
			req, err := session.DecodeExecuteRequest(f)
			if err != nil {
				reason = "protocol"
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.reply(conn, id, s.Execute(ctx, req.Input))
			}()
		default:
			reason = "protocol"
			log.Warn().
				Str("message_type", schema.Name(f.Header.MessageType)).
				Str("session_id", hello.SessionID.String()).
				Msg("controller.session unexpected message")
			return session.ErrUnexpectedMessage
		}
	}
}

func (s *Service) handshake(conn *session.Conn) (session.Hello, error) {
	f, err := conn.Receive(s.cfg.Session.HandshakeTimeout)
	if err != nil {
		return session.Hello{}, err
	}
	hello, err := session.DecodeHello(f)
	if err != nil {
		return session.Hello{}, err
	}
	nodes, err := s.Tree()
	if err != nil {
		return session.Hello{}, err
	}
	ack := session.HelloAck{SessionID: hello.SessionID, Controller: s.cfg.ControllerID}
	if err := conn.Send(f.Header.MessageID, ack); err != nil {
		return session.Hello{}, err
	}
	if err := conn.Send(f.Header.MessageID, session.TreeSync{Nodes: nodes}); err != nil {
		return session.Hello{}, err
	}
	return hello, nil
}

func (s *Service) reply(conn *session.Conn, id uint64, msg session.Message) {
	if err := conn.Send(id, msg); err != nil {
		log.Debug().Uint64("message_id", id).Err(err).Msg("controller.session reply dropped")
	}
}

// commandLabel names the command a line targets for metrics.
func (s *Service) commandLabel(input string) string {
	r := reader.New(input)
	r.SkipWhitespace()
	name := r.ReadUnquotedString()
	if _, ok := s.console.Lookup(name); ok {
		return name
	}
	return ""
}

func (s *Service) trackConn(c net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Service) untrackConn(c net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, c)
}

func (s *Service) closeAllConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func executeResult(out string, err error) session.ExecuteResult {
	if err == nil {
		return session.ExecuteResult{Output: out, ErrorKind: session.ErrorKindNone}
	}
	if pe, ok := reader.AsParseError(err); ok {
		return session.ExecuteResult{
			ErrorKind:    session.ErrorKindParse,
			ErrorMessage: pe.Error(),
			ErrorCursor:  uint32(pe.Cursor),
		}
	}
	var nm *selector.NoMatchError
	if errors.As(err, &nm) {
		return session.ExecuteResult{ErrorKind: session.ErrorKindNoMatch, ErrorMessage: nm.Error()}
	}
	return session.ExecuteResult{ErrorKind: session.ErrorKindInternal, ErrorMessage: err.Error()}
}

func suggestResponse(list suggest.Suggestions, cursor int) session.SuggestResponse {
	if list.IsEmpty() {
		return session.SuggestResponse{Start: uint32(cursor), End: uint32(cursor)}
	}
	return session.SuggestResponse{
		Start: uint32(list.Range.Start),
		End:   uint32(list.Range.End),
		Texts: list.Texts(),
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
