package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackSender публикует оповещения в канал Slack; the recipient is the channel ID
type SlackSender struct {
	client *slack.Client
}

func NewSlackSender(client *slack.Client) *SlackSender {
	return &SlackSender{client: client}
}

func (s *SlackSender) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrNoRecipient
	}
	if _, _, err := s.client.PostMessageContext(ctx, msg.Recipient, slack.MsgOptionText(msg.Body, false)); err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}
