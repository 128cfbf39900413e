package lineadapter

import (
	"context"

	"pollbot/contexts/community-experience/group-poll-service/ports"
)

// Directory reads group and room rosters from the Messaging API. The API
// only serves verified or premium accounts.
type Directory struct {
	Client *Client
}

func (d Directory) ListMemberPage(ctx context.Context, conversationID string, cursor string) (ports.MemberPage, error) {
	ids, next, err := d.Client.MemberIDs(ctx, conversationID, cursor)
	if err != nil {
		return ports.MemberPage{}, err
	}
	return ports.MemberPage{ParticipantIDs: ids, Next: next}, nil
}

var _ ports.MemberDirectory = Directory{}
