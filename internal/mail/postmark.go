package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var ErrPostmarkConfig = errors.New("postmark server token is required")

type PostmarkSender struct {
	client *postmark.Client
	tag    string
}

func NewPostmarkSender(serverToken string, accountToken string, tag string) (*PostmarkSender, error) {
	if serverToken == "" {
		return nil, ErrPostmarkConfig
	}
	return &PostmarkSender{client: postmark.NewClient(serverToken, accountToken), tag: tag}, nil
}

func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      s.tag,
		TextBody: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
