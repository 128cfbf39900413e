package ports

import (
	"context"
	"encoding/json"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
)

// PollStore holds at most one active poll per conversation.
type PollStore interface {
	GetPoll(ctx context.Context, conversationID string) (entities.Poll, bool, error)
	SavePoll(ctx context.Context, poll entities.Poll) error
	DeletePoll(ctx context.Context, conversationID string) error
	ListOpenConversations(ctx context.Context) ([]string, error)
}

// MemberRegistry stores participants seen in a conversation. It only grows.
type MemberRegistry interface {
	AddMember(ctx context.Context, conversationID string, participantID string) error
	ListMembers(ctx context.Context, conversationID string) ([]string, error)
}

type MemberPage struct {
	ParticipantIDs []string
	Next           string
}

// MemberDirectory is an external, paginated roster lookup. An empty Next
// cursor ends the listing.
type MemberDirectory interface {
	ListMemberPage(ctx context.Context, conversationID string, cursor string) (MemberPage, error)
}

// MembershipTracker resolves the known set used for status and reminders.
// Exactly one implementation is active per deployment.
type MembershipTracker interface {
	Observe(ctx context.Context, conversationID string, participantID string) error
	Register(ctx context.Context, conversationID string, participantID string) error
	KnownMembers(ctx context.Context, conversationID string) ([]string, error)
	Mode() string
}

// Dispatcher delivers outbound messages. Reply answers the triggering event;
// Broadcast pushes to the whole conversation.
type Dispatcher interface {
	Reply(ctx context.Context, replyToken string, messages ...entities.OutboundMessage) error
	Broadcast(ctx context.Context, conversationID string, message entities.OutboundMessage) error
}

type ResultArchive interface {
	ArchiveClosedPoll(ctx context.Context, record entities.ClosedPollRecord) error
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EventDedupStore remembers keys for a TTL. Remember reports whether the key
// had already been seen.
type EventDedupStore interface {
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
