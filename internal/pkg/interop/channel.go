package interop

import "sync"

// ChannelTransport is an in-process bridge for embedding the engine in the
// same process as the game logic, and for tests. The peer reads what Send
// produced via Drain and injects inbound messages via Inject.
type ChannelTransport struct {
	mu      sync.Mutex
	out     []Message
	in      []Message
	closed  bool
	maxHeld int
}

// NewChannelTransport creates an in-process bridge holding at most maxHeld
// messages per direction; older messages are dropped first once full.
func NewChannelTransport(maxHeld int) *ChannelTransport {
	if maxHeld <= 0 {
		maxHeld = 256
	}
	return &ChannelTransport{maxHeld: maxHeld}
}

func (t *ChannelTransport) Send(id int32, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.out = append(t.out, Message{ID: id, Payload: append([]byte(nil), payload...)})
	if len(t.out) > t.maxHeld {
		t.out = t.out[len(t.out)-t.maxHeld:]
	}
	return nil
}

func (t *ChannelTransport) Poll() ([]Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.in
	t.in = nil
	return msgs, nil
}

// Inject queues messages for the engine's next Poll.
func (t *ChannelTransport) Inject(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.in = append(t.in, msgs...)
	if len(t.in) > t.maxHeld {
		t.in = t.in[len(t.in)-t.maxHeld:]
	}
}

// Drain returns everything sent by the engine since the last call.
func (t *ChannelTransport) Drain() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.out
	t.out = nil
	return msgs
}

func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
