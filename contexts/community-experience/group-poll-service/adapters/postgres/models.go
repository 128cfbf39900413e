package postgresadapter

import (
	"encoding/json"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
)

type rosterMemberModel struct {
	ConversationID string    `gorm:"column:conversation_id;primaryKey"`
	ParticipantID  string    `gorm:"column:participant_id;primaryKey"`
	JoinedAt       time.Time `gorm:"column:joined_at"`
}

func (rosterMemberModel) TableName() string {
	return "group_poll_roster"
}

type closedPollModel struct {
	PollID         string    `gorm:"column:poll_id;primaryKey"`
	ConversationID string    `gorm:"column:conversation_id;index"`
	Topic          string    `gorm:"column:topic"`
	Options        string    `gorm:"column:options;type:jsonb"`
	Counts         string    `gorm:"column:counts;type:jsonb"`
	VoterCount     int       `gorm:"column:voter_count"`
	KnownCount     int       `gorm:"column:known_count"`
	OpenedBy       string    `gorm:"column:opened_by"`
	OpenedAt       time.Time `gorm:"column:opened_at"`
	ClosedBy       string    `gorm:"column:closed_by"`
	ClosedAt       time.Time `gorm:"column:closed_at;index"`
	ArchivedAt     time.Time `gorm:"column:archived_at"`
}

func (closedPollModel) TableName() string {
	return "group_poll_results"
}

func closedPollModelFromEntity(record entities.ClosedPollRecord, archivedAt time.Time) (closedPollModel, error) {
	options, err := json.Marshal(record.Options)
	if err != nil {
		return closedPollModel{}, err
	}
	counts, err := json.Marshal(record.Counts)
	if err != nil {
		return closedPollModel{}, err
	}
	return closedPollModel{
		PollID:         record.PollID,
		ConversationID: record.ConversationID,
		Topic:          record.Topic,
		Options:        string(options),
		Counts:         string(counts),
		VoterCount:     record.VoterCount,
		KnownCount:     record.KnownCount,
		OpenedBy:       record.OpenedBy,
		OpenedAt:       record.OpenedAt.UTC(),
		ClosedBy:       record.ClosedBy,
		ClosedAt:       record.ClosedAt.UTC(),
		ArchivedAt:     archivedAt.UTC(),
	}, nil
}

func (m closedPollModel) toEntity() entities.ClosedPollRecord {
	record := entities.ClosedPollRecord{
		PollID:         m.PollID,
		ConversationID: m.ConversationID,
		Topic:          m.Topic,
		VoterCount:     m.VoterCount,
		KnownCount:     m.KnownCount,
		OpenedBy:       m.OpenedBy,
		OpenedAt:       m.OpenedAt.UTC(),
		ClosedBy:       m.ClosedBy,
		ClosedAt:       m.ClosedAt.UTC(),
	}
	_ = json.Unmarshal([]byte(m.Options), &record.Options)
	_ = json.Unmarshal([]byte(m.Counts), &record.Counts)
	return record
}
