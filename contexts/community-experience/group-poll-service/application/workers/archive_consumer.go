package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "pollbot/contexts/community-experience/group-poll-service/application"
	"pollbot/contexts/community-experience/group-poll-service/application/commands"
	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

const (
	defaultArchiveCG       = "group-poll-archive-cg"
	defaultArchiveDedupTTL = 24 * time.Hour
)

// ArchiveConsumer stores the result of every closed poll.
type ArchiveConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Archive       ports.ResultArchive
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

type closedPollPayload struct {
	PollID         string    `json:"poll_id"`
	ConversationID string    `json:"conversation_id"`
	Topic          string    `json:"topic"`
	Options        []string  `json:"options"`
	Counts         []int     `json:"counts"`
	VoterCount     int       `json:"voter_count"`
	KnownCount     int       `json:"known_count"`
	OpenedBy       string    `json:"opened_by"`
	OpenedAt       time.Time `json:"opened_at"`
	ClosedBy       string    `json:"closed_by"`
	ClosedAt       time.Time `json:"closed_at"`
}

func (c ArchiveConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled || c.Archive == nil {
		logger.Info("archive consumer disabled",
			"event", "group_poll_archive_consumer_disabled",
			"module", "community-experience/group-poll-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultArchiveCG
	}
	if err := c.Subscriber.Subscribe(ctx, commands.EventPollClosed, group, c.handlePollClosed); err != nil {
		logger.Error("archive consumer subscribe failed",
			"event", "group_poll_archive_consumer_subscribe_failed",
			"module", "community-experience/group-poll-service",
			"layer", "worker",
			"topic", commands.EventPollClosed,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("archive consumer subscription active",
		"event", "group_poll_archive_consumer_started",
		"module", "community-experience/group-poll-service",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c ArchiveConsumer) handlePollClosed(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Dedup != nil {
		seen, err := c.Dedup.Remember(ctx, "archive:"+event.EventID, c.dedupTTL())
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("poll.closed replay skipped",
				"event", "group_poll_closed_replayed",
				"module", "community-experience/group-poll-service",
				"layer", "worker",
				"event_id", event.EventID,
			)
			return nil
		}
	}

	var payload closedPollPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("poll.closed payload decode failed",
			"event", "group_poll_closed_decode_failed",
			"module", "community-experience/group-poll-service",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	record := entities.ClosedPollRecord{
		PollID:         strings.TrimSpace(payload.PollID),
		ConversationID: strings.TrimSpace(payload.ConversationID),
		Topic:          payload.Topic,
		Options:        payload.Options,
		Counts:         payload.Counts,
		VoterCount:     payload.VoterCount,
		KnownCount:     payload.KnownCount,
		OpenedBy:       payload.OpenedBy,
		OpenedAt:       payload.OpenedAt.UTC(),
		ClosedBy:       payload.ClosedBy,
		ClosedAt:       payload.ClosedAt.UTC(),
	}
	if err := c.Archive.ArchiveClosedPoll(ctx, record); err != nil {
		logger.Error("poll archive failed",
			"event", "group_poll_archive_failed",
			"module", "community-experience/group-poll-service",
			"layer", "worker",
			"event_id", event.EventID,
			"poll_id", record.PollID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("poll archived",
		"event", "group_poll_archived",
		"module", "community-experience/group-poll-service",
		"layer", "worker",
		"event_id", event.EventID,
		"poll_id", record.PollID,
		"voter_count", record.VoterCount,
	)
	return nil
}

func (c ArchiveConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return defaultArchiveDedupTTL
	}
	return c.DedupTTL
}
