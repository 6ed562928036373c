package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("fills the sender address and reports success", func(t *testing.T) {
		sender := &recordingSender{}
		d := NewDispatcher(sender, "noreply@example.com", time.Second, nil)

		_, err := d.Dispatch(context.Background(), Message{To: "a@x.com", Subject: "hi", Text: "body"}).Await()
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "noreply@example.com", sender.sent[0].From)
	})

	t.Run("reports sender failure", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("smtp down")}
		d := NewDispatcher(sender, "noreply@example.com", time.Second, nil)

		_, err := d.Dispatch(context.Background(), Message{To: "a@x.com", Subject: "hi"}).Await()
		require.EqualError(t, err, "smtp down")
	})

	t.Run("rejects a message without recipient", func(t *testing.T) {
		sender := &recordingSender{}
		d := NewDispatcher(sender, "noreply@example.com", time.Second, nil)

		_, err := d.Dispatch(context.Background(), Message{Subject: "hi"}).Await()
		require.ErrorIs(t, err, ErrInvalidMessage)
		assert.Empty(t, sender.sent)
	})
}

func TestTemplates(t *testing.T) {
	t.Parallel()
	tpl := Templates{AppName: "Caltex", Origin: "https://app.example.com/"}

	msg, err := tpl.Verification("a@x.com", "A", "ABCDEF", "24h0m0s")
	require.NoError(t, err)
	assert.Equal(t, "Caltex account verification", msg.Subject)
	assert.Contains(t, msg.Text, "ABCDEF")
	assert.Contains(t, msg.Text, "https://app.example.com/verify")

	msg, err = tpl.PasswordReset("a@x.com", "A", "XYZ", "1h0m0s")
	require.NoError(t, err)
	assert.Equal(t, "Caltex password reset", msg.Subject)
	assert.Contains(t, msg.Text, "Your reset code is: XYZ")
}
