package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRosterPageSize = 500

// Repository persists the member roster and archived poll results. Active
// polls are never stored here.
type Repository struct {
	db       *gorm.DB
	logger   *slog.Logger
	pageSize int
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:       db,
		logger:   logger,
		pageSize: defaultRosterPageSize,
	}
}

// WithPageSize sets the roster page size used by ListMemberPage.
func (r *Repository) WithPageSize(size int) *Repository {
	if size > 0 {
		r.pageSize = size
	}
	return r
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&rosterMemberModel{}, &closedPollModel{})
}

func (r *Repository) AddMember(ctx context.Context, conversationID string, participantID string) error {
	conversationID = strings.TrimSpace(conversationID)
	participantID = strings.TrimSpace(participantID)
	if conversationID == "" || participantID == "" {
		return nil
	}
	row := rosterMemberModel{
		ConversationID: conversationID,
		ParticipantID:  participantID,
		JoinedAt:       time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if create.Error != nil {
		return r.logError("group_poll_repo_add_member_failed", create.Error,
			"conversation_id", conversationID,
		)
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, conversationID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&rosterMemberModel{}).
		Where("conversation_id = ?", strings.TrimSpace(conversationID)).
		Order("participant_id ASC").
		Pluck("participant_id", &ids).Error; err != nil {
		return nil, r.logError("group_poll_repo_list_members_failed", err,
			"conversation_id", strings.TrimSpace(conversationID),
		)
	}
	return ids, nil
}

// ListMemberPage pages the roster by participant id. The cursor is the last
// id of the previous page.
func (r *Repository) ListMemberPage(ctx context.Context, conversationID string, cursor string) (ports.MemberPage, error) {
	tx := r.db.WithContext(ctx).
		Model(&rosterMemberModel{}).
		Where("conversation_id = ?", strings.TrimSpace(conversationID))
	if strings.TrimSpace(cursor) != "" {
		tx = tx.Where("participant_id > ?", strings.TrimSpace(cursor))
	}

	var ids []string
	if err := tx.Order("participant_id ASC").Limit(r.pageSize+1).Pluck("participant_id", &ids).Error; err != nil {
		return ports.MemberPage{}, r.logError("group_poll_repo_list_member_page_failed", err,
			"conversation_id", strings.TrimSpace(conversationID),
		)
	}
	page := ports.MemberPage{ParticipantIDs: ids}
	if len(ids) > r.pageSize {
		page.ParticipantIDs = ids[:r.pageSize]
		page.Next = ids[r.pageSize-1]
	}
	return page, nil
}

// ArchiveClosedPoll inserts one result row. Replays of the same poll id are
// accepted without rewriting the row.
func (r *Repository) ArchiveClosedPoll(ctx context.Context, record entities.ClosedPollRecord) error {
	row, err := closedPollModelFromEntity(record, time.Now().UTC())
	if err != nil {
		return r.logError("group_poll_repo_archive_encode_failed", err, "poll_id", record.PollID)
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("group_poll_repo_archive_failed", err,
			"poll_id", record.PollID,
			"conversation_id", record.ConversationID,
		)
	}
	return nil
}

func (r *Repository) ListClosedPolls(ctx context.Context, conversationID string, limit int) ([]entities.ClosedPollRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []closedPollModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", strings.TrimSpace(conversationID)).
		Order("closed_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("group_poll_repo_list_closed_failed", err,
			"conversation_id", strings.TrimSpace(conversationID),
		)
	}
	items := make([]entities.ClosedPollRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-experience/group-poll-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("group poll repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.MemberRegistry = (*Repository)(nil)
var _ ports.MemberDirectory = (*Repository)(nil)
var _ ports.ResultArchive = (*Repository)(nil)
