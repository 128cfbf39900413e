package sqliteadapter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	archive, err := NewArchive(db, nil)
	require.NoError(t, err)
	return archive
}

func closedRecord(pollID string, conversationID string, closedAt time.Time) entities.ClosedPollRecord {
	return entities.ClosedPollRecord{
		PollID:         pollID,
		ConversationID: conversationID,
		Topic:          "Lunch " + pollID,
		Options:        []string{"Pizza", "Sushi"},
		Counts:         []int{2, 1},
		VoterCount:     3,
		KnownCount:     4,
		OpenedBy:       "Uopener",
		OpenedAt:       closedAt.Add(-time.Hour),
		ClosedBy:       "Ucloser",
		ClosedAt:       closedAt,
	}
}

func TestArchiveRoundTripsNewestFirst(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, time.July, 1, 12, 0, 0, 123456789, time.UTC)

	require.NoError(t, archive.ArchiveClosedPoll(ctx, closedRecord("p1", "C1", base)))
	require.NoError(t, archive.ArchiveClosedPoll(ctx, closedRecord("p2", "C1", base.Add(time.Minute))))
	require.NoError(t, archive.ArchiveClosedPoll(ctx, closedRecord("p3", "C2", base)))

	records, err := archive.ListClosedPolls(ctx, "C1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "p2", records[0].PollID)
	require.Equal(t, "p1", records[1].PollID)

	got := records[1]
	require.Equal(t, []string{"Pizza", "Sushi"}, got.Options)
	require.Equal(t, []int{2, 1}, got.Counts)
	require.Equal(t, 3, got.VoterCount)
	require.Equal(t, 4, got.KnownCount)
	require.True(t, got.ClosedAt.Equal(base))
	require.True(t, got.OpenedAt.Equal(base.Add(-time.Hour)))
}

func TestArchiveIgnoresReplayedPoll(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	record := closedRecord("p1", "C1", time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, archive.ArchiveClosedPoll(ctx, record))
	replay := record
	replay.Topic = "changed"
	require.NoError(t, archive.ArchiveClosedPoll(ctx, replay))

	records, err := archive.ListClosedPolls(ctx, "C1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Lunch p1", records[0].Topic)
}

func TestFormatTimeSortsLexically(t *testing.T) {
	early := formatTime(time.Date(2026, time.July, 1, 12, 0, 0, 0, time.UTC))
	late := formatTime(time.Date(2026, time.July, 1, 12, 0, 0, 500, time.UTC))
	require.Less(t, early, late)
	require.True(t, parseTime("garbage").IsZero())
}
