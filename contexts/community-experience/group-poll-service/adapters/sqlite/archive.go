package sqliteadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
	CREATE TABLE IF NOT EXISTS group_poll_results (
		poll_id         TEXT PRIMARY KEY,
		conversation_id TEXT    NOT NULL,
		topic           TEXT    NOT NULL,
		options         TEXT    NOT NULL,
		counts          TEXT    NOT NULL,
		voter_count     INTEGER NOT NULL,
		known_count     INTEGER NOT NULL,
		opened_by       TEXT    NOT NULL DEFAULT '',
		opened_at       TEXT    NOT NULL,
		closed_by       TEXT    NOT NULL DEFAULT '',
		closed_at       TEXT    NOT NULL,
		archived_at     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_group_poll_results_conversation
		ON group_poll_results (conversation_id, closed_at);
`

// Archive keeps closed poll results in a local SQLite file for single node
// deployments without Postgres.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewArchive(db *sql.DB, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite archive migration: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

func (a *Archive) ArchiveClosedPoll(ctx context.Context, record entities.ClosedPollRecord) error {
	options, err := json.Marshal(record.Options)
	if err != nil {
		return a.logError("group_poll_sqlite_archive_encode_failed", err, "poll_id", record.PollID)
	}
	counts, err := json.Marshal(record.Counts)
	if err != nil {
		return a.logError("group_poll_sqlite_archive_encode_failed", err, "poll_id", record.PollID)
	}
	_, err = a.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO group_poll_results
			(poll_id, conversation_id, topic, options, counts, voter_count, known_count,
			 opened_by, opened_at, closed_by, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(record.PollID),
		strings.TrimSpace(record.ConversationID),
		record.Topic,
		string(options),
		string(counts),
		record.VoterCount,
		record.KnownCount,
		record.OpenedBy,
		formatTime(record.OpenedAt),
		record.ClosedBy,
		formatTime(record.ClosedAt),
	)
	if err != nil {
		return a.logError("group_poll_sqlite_archive_failed", err,
			"poll_id", record.PollID,
			"conversation_id", record.ConversationID,
		)
	}
	return nil
}

// ListClosedPolls returns the newest results of a conversation first.
func (a *Archive) ListClosedPolls(ctx context.Context, conversationID string, limit int) ([]entities.ClosedPollRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT poll_id, conversation_id, topic, options, counts, voter_count, known_count,
		       opened_by, opened_at, closed_by, closed_at
		FROM group_poll_results
		WHERE conversation_id = ?
		ORDER BY closed_at DESC
		LIMIT ?`, strings.TrimSpace(conversationID), limit)
	if err != nil {
		return nil, a.logError("group_poll_sqlite_list_failed", err, "conversation_id", conversationID)
	}
	defer rows.Close()

	var items []entities.ClosedPollRecord
	for rows.Next() {
		var (
			record             entities.ClosedPollRecord
			options, counts    string
			openedAt, closedAt string
		)
		if err := rows.Scan(
			&record.PollID,
			&record.ConversationID,
			&record.Topic,
			&options,
			&counts,
			&record.VoterCount,
			&record.KnownCount,
			&record.OpenedBy,
			&openedAt,
			&record.ClosedBy,
			&closedAt,
		); err != nil {
			return nil, a.logError("group_poll_sqlite_scan_failed", err, "conversation_id", conversationID)
		}
		_ = json.Unmarshal([]byte(options), &record.Options)
		_ = json.Unmarshal([]byte(counts), &record.Counts)
		record.OpenedAt = parseTime(openedAt)
		record.ClosedAt = parseTime(closedAt)
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, a.logError("group_poll_sqlite_list_failed", err, "conversation_id", conversationID)
	}
	return items, nil
}

func (a *Archive) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-experience/group-poll-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	a.logger.Error("group poll sqlite archive operation failed", fields...)
	return err
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

var _ ports.ResultArchive = (*Archive)(nil)
