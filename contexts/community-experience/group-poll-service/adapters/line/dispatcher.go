package lineadapter

import (
	"context"
	"fmt"
	"strings"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/ports"

	"github.com/google/uuid"
)

// Dispatcher delivers engine output through the Messaging API. Replies use the
// event's reply token; broadcasts are pushes to the group or room.
type Dispatcher struct {
	Client *Client
}

func (d Dispatcher) Reply(ctx context.Context, replyToken string, messages ...entities.OutboundMessage) error {
	if strings.TrimSpace(replyToken) == "" {
		return fmt.Errorf("%w: reply token is required", domainerrors.ErrInvalidInput)
	}
	payload, err := toLineMessages(messages)
	if err != nil {
		return err
	}
	if err := d.Client.Reply(ctx, replyToken, payload); err != nil {
		return fmt.Errorf("%w: %w", domainerrors.ErrDispatchFailed, err)
	}
	return nil
}

func (d Dispatcher) Broadcast(ctx context.Context, conversationID string, msg entities.OutboundMessage) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", domainerrors.ErrInvalidInput)
	}
	payload, err := toLineMessage(msg)
	if err != nil {
		return err
	}
	if err := d.Client.Push(ctx, conversationID, []message{payload}, uuid.NewString()); err != nil {
		return fmt.Errorf("%w: %w", domainerrors.ErrDispatchFailed, err)
	}
	return nil
}

var _ ports.Dispatcher = Dispatcher{}
