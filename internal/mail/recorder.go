// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package mail

import (
	"context"
	"net/url"
	"sync"
)

// Recorder is an in-memory Sender that keeps every message. It can be told
// to fail the next sends.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	failures []error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailNext queues errors returned by the following sends, in order.
func (r *Recorder) FailNext(errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, errs...)
}

// Send records msg or returns the next queued failure.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the delivered messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// LastToken returns the token in the most recent message of kind sent to
// address, or "" if there is none.
func (r *Recorder) LastToken(kind Kind, address string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		msg := r.messages[i]
		if msg.Kind != kind || msg.To != address {
			continue
		}
		m := hrefPattern.FindStringSubmatch(msg.HTML)
		if len(m) != 2 {
			return ""
		}
		u, err := url.Parse(m[1])
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}
	return ""
}
