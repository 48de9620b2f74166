package email

import (
	"context"
	"sync"
)

// Recorder keeps sent messages in memory. FailFor makes sends to the listed recipients fail.
type Recorder struct {
	mu      sync.Mutex
	sent    []Message
	FailFor map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{FailFor: map[string]error{}}
}

func (r *Recorder) Configured() bool { return true }

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, to := range msg.To {
		if err, ok := r.FailFor[to]; ok {
			return err
		}
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
