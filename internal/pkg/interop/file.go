package interop

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileTransport is the file-based bridge. Outbound messages accumulate in a
// stream file that is atomically replaced on every send; the game side
// deletes the file once it has consumed a batch. Inbound messages are polled
// from a second file the game side writes, which is removed after a
// successful read.
type FileTransport struct {
	mu      sync.Mutex
	outPath string
	inPath  string
	pending []Message
	closed  bool
}

// NewFileTransport creates a bridge writing to outPath and polling inPath.
func NewFileTransport(outPath, inPath string) *FileTransport {
	return &FileTransport{outPath: outPath, inPath: inPath}
}

// Send appends a message to the outbound batch and rewrites the stream file.
// A vanished file means the previous batch was consumed, so the batch resets
// before the append.
func (t *FileTransport) Send(id int32, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	if _, err := os.Stat(t.outPath); os.IsNotExist(err) {
		t.pending = t.pending[:0]
	}
	t.pending = append(t.pending, Message{ID: id, Payload: append([]byte(nil), payload...)})

	tmp := t.outPath + ".tmp"
	if err := os.WriteFile(tmp, EncodeStream(t.pending), 0o644); err != nil {
		return errors.Wrap(err, "write bridge stream failed")
	}
	return errors.Wrap(os.Rename(tmp, t.outPath), "publish bridge stream failed")
}

// Poll reads and removes the inbound stream file. A missing file is the
// normal idle case.
func (t *FileTransport) Poll() ([]Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("transport closed")
	}
	data, err := os.ReadFile(t.inPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read bridge stream failed")
	}
	if err := os.Remove(t.inPath); err != nil {
		return nil, errors.Wrap(err, "consume bridge stream failed")
	}
	msgs, err := DecodeStream(data)
	return msgs, errors.Wrap(err, "decode bridge stream failed")
}

// Close removes the outbound stream file and rejects further use.
func (t *FileTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	err := os.Remove(t.outPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove bridge stream failed")
	}
	return nil
}
