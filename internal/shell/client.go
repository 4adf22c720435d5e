package shell

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/unitconsole/internal/args"
	"github.com/danmuck/unitconsole/internal/argsync"
	"github.com/danmuck/unitconsole/internal/console"
	"github.com/danmuck/unitconsole/internal/protocol/frame"
	"github.com/danmuck/unitconsole/internal/protocol/session"
	"github.com/danmuck/unitconsole/internal/suggest"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddrRequired    = errors.New("shell: controller address required")
	ErrDialFailed      = errors.New("shell: controller unreachable")
	ErrSessionMismatch = errors.New("shell: hello.ack session id mismatch")
	ErrClosed          = errors.New("shell: session closed")
	ErrRemote          = errors.New("shell: controller rejected command")
)

// RemoteError is a failed ExecuteResult surfaced as an error.
type RemoteError struct {
	Kind    string
	Message string
	Cursor  uint32
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}

// Config defines shell connection settings.
type Config struct {
	Addr    string
	Client  string
	Session session.Config
}

func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:7420",
		Client:  "shellctl",
		Session: session.DefaultConfig(),
	}
}

// Client is one live session with a controller.
type Client struct {
	cfg        Config
	conn       *session.Conn
	pending    *session.Pending
	codecs     *argsync.Registry
	console    *console.Console
	sessionID  uuid.UUID
	controller string

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to cfg.Addr, retrying failed dials with backoff up to
// Session.MaxDialAttempts times. Handshake failures are not retried.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, ErrAddrRequired
	}
	attempts := max(cfg.Session.MaxDialAttempts, 1)
	backoff := session.NewBackoff(cfg.Session.Backoff, rand.New(rand.NewSource(time.Now().UnixNano())))
	dialer := net.Dialer{Timeout: cfg.Session.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := dialer.DialContext(ctx, "tcp", cfg.Addr)
		if err == nil {
			return NewClient(raw, cfg)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := backoff.Next()
		log.Warn().
			Str("addr", cfg.Addr).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("shell.dial failed")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrDialFailed, cfg.Addr, attempts, lastErr)
}

// NewClient runs the handshake on raw and mirrors the controller's command
// tree. raw is closed when the handshake fails.
func NewClient(raw net.Conn, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Client) == "" {
		cfg.Client = DefaultConfig().Client
	}
	c := &Client{
		cfg:       cfg,
		conn:      session.NewConn(raw, cfg.Session),
		pending:   session.NewPending(),
		codecs:    argsync.Default(),
		sessionID: uuid.New(),
		done:      make(chan struct{}),
	}
	nodes, err := c.handshake()
	if err != nil {
		_ = c.conn.Close()
		return nil, err
	}
	mirror, err := console.Mirror(nodes, c.codecs, c.forward)
	if err != nil {
		_ = c.conn.Close()
		return nil, err
	}
	c.console = mirror
	log.Info().
		Str("session_id", c.sessionID.String()).
		Str("controller", c.controller).
		Int("commands", len(nodes)).
		Msg("shell.session established")
	go c.readLoop()
	return c, nil
}

func (c *Client) handshake() ([]console.Node, error) {
	id := c.conn.NextID()
	if err := c.conn.Send(id, session.Hello{SessionID: c.sessionID, Client: c.cfg.Client}); err != nil {
		return nil, err
	}
	f, err := c.conn.Receive(c.cfg.Session.HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	ack, err := session.DecodeHelloAck(f)
	if err != nil {
		return nil, err
	}
	if ack.SessionID != c.sessionID {
		return nil, fmt.Errorf("%w: got %s", ErrSessionMismatch, ack.SessionID)
	}
	c.controller = ack.Controller

	f, err = c.conn.Receive(c.cfg.Session.HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	tree, err := session.DecodeTreeSync(f)
	if err != nil {
		return nil, err
	}
	nodes := make([]console.Node, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		nodes = append(nodes, console.Node{Name: n.Name, Summary: n.Summary, Descriptor: n.Descriptor})
	}
	return nodes, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		f, err := c.conn.Receive(0)
		if err != nil {
			c.pending.Close(fmt.Errorf("%w: %v", ErrClosed, err))
			log.Debug().Str("session_id", c.sessionID.String()).Err(err).Msg("shell.session read loop ended")
			return
		}
		if f.Header.Flags&frame.FlagIsResponse == 0 {
			log.Warn().Uint32("message_type", f.Header.MessageType).Msg("shell.session unexpected request frame")
			continue
		}
		if !c.pending.Resolve(f) {
			log.Debug().Uint64("message_id", f.Header.MessageID).Msg("shell.session unmatched response")
		}
	}
}

func (c *Client) SessionID() uuid.UUID {
	return c.sessionID
}

// Controller is the id the controller announced in hello.ack.
func (c *Client) Controller() string {
	return c.controller
}

// Console returns the mirrored command table.
func (c *Client) Console() *console.Console {
	return c.console
}

// Source returns the execution source used for mirrored parsing. It can
// not see units and forwards registry-backed suggestions.
func (c *Client) Source() args.Source {
	return remoteSource{client: c}
}

// Execute parses line against the mirror and runs it on the controller.
// Local syntax errors are *reader.ParseError; controller failures are
// *RemoteError.
func (c *Client) Execute(ctx context.Context, line string) (string, error) {
	return c.console.Execute(ctx, c.Source(), line)
}

// Complete returns suggestions for line typed up to cursor.
func (c *Client) Complete(ctx context.Context, line string, cursor int) (suggest.Suggestions, error) {
	return c.console.Suggest(ctx, c.Source(), line, cursor).Get(ctx)
}

// ExecuteRemote sends line to the controller without local parsing.
func (c *Client) ExecuteRemote(ctx context.Context, line string) (session.ExecuteResult, error) {
	f, err := c.roundTrip(ctx, session.ExecuteRequest{Input: line})
	if err != nil {
		return session.ExecuteResult{}, err
	}
	return session.DecodeExecuteResult(f)
}

// SuggestRemote asks the controller to complete line typed up to cursor.
func (c *Client) SuggestRemote(ctx context.Context, line string, cursor int) (session.SuggestResponse, error) {
	f, err := c.roundTrip(ctx, session.SuggestRequest{Input: line, Cursor: uint32(cursor)})
	if err != nil {
		return session.SuggestResponse{}, err
	}
	return session.DecodeSuggestResponse(f)
}

// Done is closed once the session's read loop has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) forward(ctx context.Context, inv console.Invocation) (string, error) {
	res, err := c.ExecuteRemote(ctx, inv.Input)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return res.Output, &RemoteError{Kind: res.ErrorKind, Message: res.ErrorMessage, Cursor: res.ErrorCursor}
	}
	return res.Output, nil
}

func (c *Client) roundTrip(ctx context.Context, msg session.Message) (frame.Frame, error) {
	if c.cfg.Session.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Session.RequestTimeout)
		defer cancel()
	}
	id := c.conn.NextID()
	reply, err := c.pending.Add(id, msg.MessageType(), time.Now())
	if err != nil {
		return frame.Frame{}, err
	}
	if err := c.conn.Send(id, msg); err != nil {
		c.pending.Remove(id)
		return frame.Frame{}, err
	}
	select {
	case f, ok := <-reply:
		if !ok {
			return frame.Frame{}, c.pending.Err()
		}
		return f, nil
	case <-ctx.Done():
		c.pending.Remove(id)
		return frame.Frame{}, ctx.Err()
	}
}
