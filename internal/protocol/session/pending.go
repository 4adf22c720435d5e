package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/unitconsole/internal/protocol/frame"
)

var ErrPendingClosed = errors.New("session: pending table closed")

// PendingRequest tracks one request awaiting its response frame.
type PendingRequest struct {
	MessageID   uint64
	MessageType uint32
	SentAt      time.Time
	reply       chan frame.Frame
}

// Pending routes response frames to waiting requests by message id.
type Pending struct {
	mu     sync.Mutex
	items  map[uint64]PendingRequest
	closed error
}

func NewPending() *Pending {
	return &Pending{items: make(map[uint64]PendingRequest)}
}

// Add registers a request and returns the channel its response arrives on.
// The channel is closed without a value when the table closes.
func (p *Pending) Add(messageID uint64, messageType uint32, at time.Time) (<-chan frame.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return nil, p.closed
	}
	item := PendingRequest{
		MessageID:   messageID,
		MessageType: messageType,
		SentAt:      at,
		reply:       make(chan frame.Frame, 1),
	}
	p.items[messageID] = item
	return item.reply, nil
}

// Resolve delivers f to the request sharing its message id.
func (p *Pending) Resolve(f frame.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[f.Header.MessageID]
	if !ok {
		return false
	}
	delete(p.items, f.Header.MessageID)
	item.reply <- f
	return true
}

// Remove forgets a request, typically after its caller gave up.
func (p *Pending) Remove(messageID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, messageID)
}

// Close fails every waiting request and rejects new ones with err.
func (p *Pending) Close(err error) {
	if err == nil {
		err = ErrPendingClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return
	}
	p.closed = err
	for id, item := range p.items {
		close(item.reply)
		delete(p.items, id)
	}
}

// Err returns the close cause, or nil while open.
func (p *Pending) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pending) Get(messageID uint64) (PendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[messageID]
	return item, ok
}

func (p *Pending) List() []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingRequest, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MessageID < out[j].MessageID
	})
	return out
}
