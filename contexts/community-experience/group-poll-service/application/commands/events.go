package commands

import (
	"encoding/json"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/ports"
)

const (
	EventPollOpened = "poll.opened"
	EventPollClosed = "poll.closed"
)

func newPollEnvelope(
	eventID string,
	eventType string,
	conversationID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Poll events are partitioned by conversation so consumers see open and
	// close for the same chat in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "group-poll-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "conversation_id",
		PartitionKey:     conversationID,
		Data:             payload,
	}, nil
}
