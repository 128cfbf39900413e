package workers

import (
	"context"
	"errors"
	"log/slog"

	application "pollbot/contexts/community-experience/group-poll-service/application"
	"pollbot/contexts/community-experience/group-poll-service/application/commands"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

type Reminder interface {
	Remind(ctx context.Context, conversationID string) (commands.Result, error)
}

// SweepReport summarizes one pass over every conversation with an open poll.
type SweepReport struct {
	Conversations int `json:"conversations"`
	Reminded      int `json:"reminded"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	Notified      int `json:"notified"`
}

// ReminderSweep fires a remind for each open poll. One failing conversation
// does not stop the pass.
type ReminderSweep struct {
	Polls    ports.PollStore
	Reminder Reminder
	Logger   *slog.Logger
}

func (j ReminderSweep) RunOnce(ctx context.Context) (SweepReport, error) {
	logger := application.ResolveLogger(j.Logger)
	conversations, err := j.Polls.ListOpenConversations(ctx)
	if err != nil {
		logger.Error("reminder sweep listing failed",
			"event", "group_poll_sweep_list_failed",
			"module", "community-experience/group-poll-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return SweepReport{}, err
	}

	report := SweepReport{Conversations: len(conversations)}
	for _, conversationID := range conversations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := j.Reminder.Remind(ctx, conversationID)
		switch {
		case err != nil:
			report.Failed++
			logger.Warn("reminder sweep conversation failed",
				"event", "group_poll_sweep_conversation_failed",
				"module", "community-experience/group-poll-service",
				"layer", "worker",
				"conversation_id", conversationID,
				"error", err.Error(),
			)
			continue
		case errors.Is(result.Outcome, domainerrors.ErrNoActivePoll),
			errors.Is(result.Outcome, domainerrors.ErrNothingToRemind):
			report.Skipped++
		case result.Outcome != nil:
			report.Failed++
		default:
			report.Reminded++
		}
		report.Notified += result.Notified
	}

	logger.Info("reminder sweep completed",
		"event", "group_poll_sweep_completed",
		"module", "community-experience/group-poll-service",
		"layer", "worker",
		"conversations", report.Conversations,
		"reminded", report.Reminded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"notified", report.Notified,
	)
	return report, nil
}
