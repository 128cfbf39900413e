package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "pollbot/contexts/community-experience/group-poll-service/application"
	"pollbot/contexts/community-experience/group-poll-service/application/queries"
	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/domain/services"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

const (
	DefaultQuickReplyLimit = 13
	DefaultExternalTimeout = 5 * time.Second
)

var fallbackLocks = NewConversationLocks()

// InboundMessage is one text event as seen by the engine. The boundary layer
// builds it from the transport payload.
type InboundMessage struct {
	ConversationID string
	ParticipantID  string
	GroupContext   bool
	Text           string
	ReplyToken     string
	EventID        string
}

// Result describes what a command did. Outcome carries the domain sentinel
// for usage, range, state and no-op outcomes; it is nil on success.
type Result struct {
	Intent           services.IntentKind
	Outcome          error
	Replied          bool
	ReplyFailed      bool
	Broadcasts       int
	FailedBroadcasts int
	Notified         int
}

// PollUseCase is the per-conversation poll state machine.
type PollUseCase struct {
	Polls            ports.PollStore
	Members          ports.MembershipTracker
	Dispatcher       ports.Dispatcher
	Events           ports.EventPublisher
	Locks            *ConversationLocks
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	MentionBatchSize int
	QuickReplyLimit  int
	ExternalTimeout  time.Duration
	Logger           *slog.Logger
}

// HandleMessage parses and applies one inbound text. Every command sends at
// most one reply; unrecognized text in a group gets none. Errors returned
// here are infrastructure failures; the participant has already been given
// a generic reply.
func (uc PollUseCase) HandleMessage(ctx context.Context, msg InboundMessage) (Result, error) {
	logger := application.ResolveLogger(uc.Logger)
	msg.ConversationID = strings.TrimSpace(msg.ConversationID)
	msg.ParticipantID = strings.TrimSpace(msg.ParticipantID)
	intent := services.ParseCommand(msg.Text)

	if !msg.GroupContext {
		result := Result{Intent: intent.Kind, Outcome: domainerrors.ErrPrivateContext}
		uc.reply(ctx, msg, &result, entities.OutboundMessage{Text: replyPrivateContext})
		return result, nil
	}
	if msg.ConversationID == "" {
		return Result{Intent: intent.Kind, Outcome: domainerrors.ErrInvalidInput}, domainerrors.ErrInvalidInput
	}

	unlock := uc.locks().Lock(msg.ConversationID)
	defer unlock()

	if msg.ParticipantID != "" {
		if err := uc.Members.Observe(ctx, msg.ConversationID, msg.ParticipantID); err != nil {
			logger.Warn("member observation failed",
				"event", "group_poll_member_observe_failed",
				"module", "community-experience/group-poll-service",
				"layer", "application",
				"conversation_id", msg.ConversationID,
				"participant", services.MaskParticipantID(msg.ParticipantID),
				"error", err.Error(),
			)
		}
	}

	var (
		result Result
		reply  entities.OutboundMessage
		err    error
	)
	switch intent.Kind {
	case services.IntentHelp:
		result, reply = Result{Intent: intent.Kind}, entities.OutboundMessage{Text: replyHelp}
	case services.IntentJoin:
		result, reply, err = uc.join(ctx, msg)
	case services.IntentOpenPoll:
		result, reply, err = uc.openPoll(ctx, msg, intent)
	case services.IntentVote:
		result, reply, err = uc.vote(ctx, msg, intent)
	case services.IntentUnvote:
		result, reply, err = uc.unvote(ctx, msg, intent)
	case services.IntentStatus:
		result, reply, err = uc.status(ctx, msg)
	case services.IntentStats:
		result, reply, err = uc.stats(ctx, msg)
	case services.IntentRemind:
		result, reply, err = uc.remindFromChat(ctx, msg)
	case services.IntentClose:
		result, reply, err = uc.closePoll(ctx, msg)
	default:
		return Result{Intent: services.IntentUnrecognized}, nil
	}
	result.Intent = intent.Kind

	if err != nil {
		logger.Error("poll command failed",
			"event", "group_poll_command_failed",
			"module", "community-experience/group-poll-service",
			"layer", "application",
			"conversation_id", msg.ConversationID,
			"intent", string(intent.Kind),
			"error", err.Error(),
		)
		reply = entities.OutboundMessage{Text: replyGenericFailure}
	}
	uc.reply(ctx, msg, &result, reply)

	logger.Info("poll command handled",
		"event", "group_poll_command_handled",
		"module", "community-experience/group-poll-service",
		"layer", "application",
		"conversation_id", msg.ConversationID,
		"participant", services.MaskParticipantID(msg.ParticipantID),
		"intent", string(intent.Kind),
		"outcome", outcomeLabel(result.Outcome),
		"broadcasts", result.Broadcasts,
		"failed_broadcasts", result.FailedBroadcasts,
	)
	return result, err
}

// Remind mentions the non-voters of the conversation's open poll without a
// triggering chat message. The reminder sweep uses it.
func (uc PollUseCase) Remind(ctx context.Context, conversationID string) (Result, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Result{Intent: services.IntentRemind, Outcome: domainerrors.ErrInvalidInput}, domainerrors.ErrInvalidInput
	}
	unlock := uc.locks().Lock(conversationID)
	defer unlock()

	result, err := uc.remind(ctx, conversationID)
	result.Intent = services.IntentRemind
	return result, err
}

func (uc PollUseCase) join(ctx context.Context, msg InboundMessage) (Result, entities.OutboundMessage, error) {
	if msg.ParticipantID == "" {
		return Result{Outcome: domainerrors.ErrInvalidInput}, entities.OutboundMessage{Text: replyGenericFailure}, nil
	}
	if err := uc.Members.Register(ctx, msg.ConversationID, msg.ParticipantID); err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if uc.Members.Mode() == MembershipModeDirectory {
		return Result{}, entities.OutboundMessage{Text: replyJoinedDirectory}, nil
	}
	return Result{}, entities.OutboundMessage{Text: replyJoined}, nil
}

func (uc PollUseCase) openPoll(ctx context.Context, msg InboundMessage, intent services.Intent) (Result, entities.OutboundMessage, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(intent.Options) == 0 {
		return Result{Outcome: domainerrors.ErrMissingOptions}, entities.OutboundMessage{Text: replyPollUsage}, nil
	}
	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	now := uc.now()
	poll, err := entities.NewPoll(pollID, msg.ConversationID, intent.Topic, intent.Options, msg.ParticipantID, now)
	if err != nil {
		return Result{Outcome: err}, entities.OutboundMessage{Text: replyPollUsage}, nil
	}

	_, replaced, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}

	uc.publish(ctx, EventPollOpened, poll.PollID, msg.ConversationID, now, map[string]any{
		"poll_id":         poll.PollID,
		"conversation_id": poll.ConversationID,
		"topic":           poll.Topic,
		"options":         poll.Options,
		"opened_by":       poll.OpenedBy,
		"opened_at":       poll.OpenedAt,
		"replaced":        replaced,
	})

	logger.Info("poll opened",
		"event", "group_poll_opened",
		"module", "community-experience/group-poll-service",
		"layer", "application",
		"conversation_id", poll.ConversationID,
		"poll_id", poll.PollID,
		"option_count", poll.OptionCount(),
		"replaced", replaced,
	)
	return Result{}, entities.OutboundMessage{
		Text:         openedReply(poll),
		QuickReplies: openedQuickReplies(poll, uc.quickReplyLimit()),
	}, nil
}

func (uc PollUseCase) vote(ctx context.Context, msg InboundMessage, intent services.Intent) (Result, entities.OutboundMessage, error) {
	poll, found, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	}
	if len(intent.Indices) == 0 {
		return Result{Outcome: domainerrors.ErrMissingIndices}, entities.OutboundMessage{Text: replyVoteUsage}, nil
	}
	if msg.ParticipantID == "" {
		return Result{Outcome: domainerrors.ErrInvalidInput}, entities.OutboundMessage{Text: replyGenericFailure}, nil
	}

	accepted, err := poll.Vote(msg.ParticipantID, intent.Indices)
	if errors.Is(err, domainerrors.ErrIndexOutOfRange) {
		return Result{Outcome: err}, entities.OutboundMessage{Text: replyOutOfRange}, nil
	}
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	return Result{}, entities.OutboundMessage{Text: votedReply(poll, accepted)}, nil
}

func (uc PollUseCase) unvote(ctx context.Context, msg InboundMessage, intent services.Intent) (Result, entities.OutboundMessage, error) {
	poll, found, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	}
	if len(intent.Indices) == 0 {
		return Result{Outcome: domainerrors.ErrMissingIndices}, entities.OutboundMessage{Text: replyUnvoteUsage}, nil
	}

	removed := poll.Unvote(msg.ParticipantID, intent.Indices)
	if len(removed) == 0 {
		return Result{Outcome: domainerrors.ErrNothingToCancel}, entities.OutboundMessage{Text: replyNothingToCancel}, nil
	}
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	return Result{}, entities.OutboundMessage{Text: unvotedReply(removed)}, nil
}

func (uc PollUseCase) status(ctx context.Context, msg InboundMessage) (Result, entities.OutboundMessage, error) {
	poll, found, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	}
	known, err := uc.knownMembers(ctx, msg.ConversationID)
	if err != nil {
		return Result{Outcome: domainerrors.ErrDirectoryUnavailable}, entities.OutboundMessage{Text: replyDirectoryFailed}, nil
	}
	return Result{}, entities.OutboundMessage{Text: statusReply(queries.Summarize(poll, known))}, nil
}

func (uc PollUseCase) stats(ctx context.Context, msg InboundMessage) (Result, entities.OutboundMessage, error) {
	poll, found, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	}
	return Result{}, entities.OutboundMessage{Text: statsReply(queries.Summarize(poll, nil))}, nil
}

func (uc PollUseCase) remindFromChat(ctx context.Context, msg InboundMessage) (Result, entities.OutboundMessage, error) {
	result, err := uc.remind(ctx, msg.ConversationID)
	if err != nil {
		return result, entities.OutboundMessage{}, err
	}
	switch {
	case errors.Is(result.Outcome, domainerrors.ErrNoActivePoll):
		return result, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	case errors.Is(result.Outcome, domainerrors.ErrDirectoryUnavailable):
		return result, entities.OutboundMessage{Text: replyDirectoryFailed}, nil
	case errors.Is(result.Outcome, domainerrors.ErrNothingToRemind):
		return result, entities.OutboundMessage{Text: replyNothingToRemind}, nil
	}
	return result, entities.OutboundMessage{Text: remindedReply(result.Notified, result.FailedBroadcasts)}, nil
}

// remind expects the conversation lock to be held.
func (uc PollUseCase) remind(ctx context.Context, conversationID string) (Result, error) {
	poll, found, err := uc.Polls.GetPoll(ctx, conversationID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, nil
	}
	known, err := uc.knownMembers(ctx, conversationID)
	if err != nil {
		return Result{Outcome: domainerrors.ErrDirectoryUnavailable}, nil
	}
	summary := queries.Summarize(poll, known)
	if len(summary.NonVoters) == 0 {
		return Result{Outcome: domainerrors.ErrNothingToRemind}, nil
	}

	result := Result{}
	uc.broadcastMentions(ctx, conversationID, remindPrefix(poll.Topic), summary.NonVoters, &result)
	if result.Broadcasts == 0 {
		result.Outcome = domainerrors.ErrDispatchFailed
	}
	return result, nil
}

// closePoll broadcasts the final tally, then either mentions the non-voters or
// celebrates, and always removes the poll afterwards.
func (uc PollUseCase) closePoll(ctx context.Context, msg InboundMessage) (Result, entities.OutboundMessage, error) {
	logger := application.ResolveLogger(uc.Logger)
	poll, found, err := uc.Polls.GetPoll(ctx, msg.ConversationID)
	if err != nil {
		return Result{}, entities.OutboundMessage{}, err
	}
	if !found {
		return Result{Outcome: domainerrors.ErrNoActivePoll}, entities.OutboundMessage{Text: replyNoActivePoll}, nil
	}

	result := Result{}
	known, knownErr := uc.knownMembers(ctx, msg.ConversationID)
	summary := queries.Summarize(poll, known)

	uc.broadcast(ctx, msg.ConversationID, entities.OutboundMessage{Text: closeTally(summary)}, &result)
	switch {
	case knownErr != nil:
		result.Outcome = domainerrors.ErrDirectoryUnavailable
	case len(summary.NonVoters) > 0:
		uc.broadcastMentions(ctx, msg.ConversationID, closingRemindPrefix(poll.Topic), summary.NonVoters, &result)
	default:
		uc.broadcast(ctx, msg.ConversationID, entities.OutboundMessage{Text: replyCelebration}, &result)
	}
	if result.Outcome == nil && result.FailedBroadcasts > 0 {
		result.Outcome = domainerrors.ErrDispatchFailed
	}

	if err := uc.Polls.DeletePoll(ctx, msg.ConversationID); err != nil {
		return result, entities.OutboundMessage{}, err
	}

	closedAt := uc.now()
	uc.publish(ctx, EventPollClosed, poll.PollID, msg.ConversationID, closedAt, map[string]any{
		"poll_id":         poll.PollID,
		"conversation_id": poll.ConversationID,
		"topic":           poll.Topic,
		"options":         poll.Options,
		"counts":          summary.Counts(),
		"voter_count":     summary.VoterCount(),
		"known_count":     summary.KnownCount,
		"opened_by":       poll.OpenedBy,
		"opened_at":       poll.OpenedAt,
		"closed_by":       msg.ParticipantID,
		"closed_at":       closedAt,
	})

	logger.Info("poll closed",
		"event", "group_poll_closed",
		"module", "community-experience/group-poll-service",
		"layer", "application",
		"conversation_id", msg.ConversationID,
		"poll_id", poll.PollID,
		"voter_count", summary.VoterCount(),
		"non_voter_count", len(summary.NonVoters),
		"failed_broadcasts", result.FailedBroadcasts,
	)
	return result, entities.OutboundMessage{
		Text: closedReply(poll.Topic, result.FailedBroadcasts, knownErr != nil),
	}, nil
}

func (uc PollUseCase) knownMembers(ctx context.Context, conversationID string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.externalTimeout())
	defer cancel()
	known, err := uc.Members.KnownMembers(callCtx, conversationID)
	if err != nil {
		application.ResolveLogger(uc.Logger).Warn("known members lookup failed",
			"event", "group_poll_known_members_failed",
			"module", "community-experience/group-poll-service",
			"layer", "application",
			"conversation_id", conversationID,
			"membership_mode", uc.Members.Mode(),
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrDirectoryUnavailable, err)
	}
	return known, nil
}

func (uc PollUseCase) broadcastMentions(
	ctx context.Context,
	conversationID string,
	prefix string,
	participantIDs []string,
	result *Result,
) {
	for _, message := range services.BuildMentionBatches(prefix, participantIDs, uc.mentionBatchSize()) {
		if uc.broadcast(ctx, conversationID, message, result) {
			result.Notified += len(message.Mentions)
		}
	}
}

func (uc PollUseCase) broadcast(ctx context.Context, conversationID string, message entities.OutboundMessage, result *Result) bool {
	callCtx, cancel := context.WithTimeout(ctx, uc.externalTimeout())
	defer cancel()
	if err := uc.Dispatcher.Broadcast(callCtx, conversationID, message); err != nil {
		result.FailedBroadcasts++
		application.ResolveLogger(uc.Logger).Warn("broadcast failed",
			"event", "group_poll_broadcast_failed",
			"module", "community-experience/group-poll-service",
			"layer", "application",
			"conversation_id", conversationID,
			"mention_count", len(message.Mentions),
			"error", err.Error(),
		)
		return false
	}
	result.Broadcasts++
	return true
}

func (uc PollUseCase) reply(ctx context.Context, msg InboundMessage, result *Result, message entities.OutboundMessage) {
	if strings.TrimSpace(message.Text) == "" || strings.TrimSpace(msg.ReplyToken) == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, uc.externalTimeout())
	defer cancel()
	if err := uc.Dispatcher.Reply(callCtx, msg.ReplyToken, message); err != nil {
		result.ReplyFailed = true
		application.ResolveLogger(uc.Logger).Warn("reply failed",
			"event", "group_poll_reply_failed",
			"module", "community-experience/group-poll-service",
			"layer", "application",
			"conversation_id", msg.ConversationID,
			"error", err.Error(),
		)
		return
	}
	result.Replied = true
}

func (uc PollUseCase) publish(ctx context.Context, eventType string, pollID string, conversationID string, at time.Time, data map[string]any) {
	if uc.Events == nil {
		return
	}
	logger := application.ResolveLogger(uc.Logger)
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		eventID = pollID + ":" + eventType
	}
	envelope, err := newPollEnvelope(eventID, eventType, conversationID, at, data)
	if err == nil {
		err = uc.Events.Publish(ctx, eventType, envelope)
	}
	if err != nil {
		logger.Warn("poll event publish failed",
			"event", "group_poll_event_publish_failed",
			"module", "community-experience/group-poll-service",
			"layer", "application",
			"event_type", eventType,
			"poll_id", pollID,
			"error", err.Error(),
		)
	}
}

func (uc PollUseCase) locks() *ConversationLocks {
	if uc.Locks == nil {
		return fallbackLocks
	}
	return uc.Locks
}

func (uc PollUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc PollUseCase) mentionBatchSize() int {
	if uc.MentionBatchSize <= 0 {
		return services.DefaultMentionBatchSize
	}
	return uc.MentionBatchSize
}

func (uc PollUseCase) quickReplyLimit() int {
	if uc.QuickReplyLimit <= 0 {
		return DefaultQuickReplyLimit
	}
	return uc.QuickReplyLimit
}

func (uc PollUseCase) externalTimeout() time.Duration {
	if uc.ExternalTimeout <= 0 {
		return DefaultExternalTimeout
	}
	return uc.ExternalTimeout
}

func outcomeLabel(outcome error) string {
	if outcome == nil {
		return "ok"
	}
	return outcome.Error()
}
