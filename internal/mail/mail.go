// Package mail delivers account emails through a pluggable Sender.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-account-auth/internal/async"
)

var ErrInvalidMessage = errors.New("invalid mail message")

type Message struct {
	To      string
	From    string
	Subject string
	Text    string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers one message. Failures are opaque to callers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher hands messages to a Sender in the background and reports the
// outcome through a future.
type Dispatcher struct {
	sender  Sender
	from    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(sender Sender, from string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, from: from, timeout: timeout, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) *async.Future[struct{}] {
	if msg.From == "" {
		msg.From = d.from
	}
	if err := msg.Validate(); err != nil {
		return async.Resolved(struct{}{}, err)
	}

	return async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Warn("mail dispatch failed", "to", msg.To, "subject", msg.Subject, "error", err)
			return struct{}{}, err
		}
		d.logger.Debug("mail dispatched", "to", msg.To, "subject", msg.Subject, "duration_ms", time.Since(start).Milliseconds())
		return struct{}{}, nil
	})
}
