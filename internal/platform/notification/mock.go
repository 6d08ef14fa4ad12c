package notification

import (
	"context"
	"sync"
)

// Call is one message a MockSender accepted.
type Call struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// MockSender records sends on either channel. Set an error with Fail to make
// subsequent sends return it.
type MockSender struct {
	mu    sync.Mutex
	calls []Call
	err   error
}

func (m *MockSender) SendEmail(_ context.Context, to, subject, body string) error {
	return m.record(Call{Channel: ChannelEmail, To: to, Subject: subject, Body: body})
}

func (m *MockSender) SendWhatsApp(_ context.Context, to, body string) error {
	return m.record(Call{Channel: ChannelWhatsApp, To: to, Body: body})
}

func (m *MockSender) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.err
}

// Fail makes later sends return err; nil restores success.
func (m *MockSender) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Calls returns a copy of the recorded sends.
func (m *MockSender) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
