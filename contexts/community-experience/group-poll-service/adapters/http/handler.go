package httpadapter

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/application/commands"
	"pollbot/contexts/community-experience/group-poll-service/application/workers"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/domain/services"
	"pollbot/contexts/community-experience/group-poll-service/ports"
	httptransport "pollbot/contexts/community-experience/group-poll-service/transport/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultWebhookDedupTTL = 10 * time.Minute

	sourceTypeUser  = "user"
	sourceTypeGroup = "group"
	sourceTypeRoom  = "room"
)

type Handler struct {
	Polls       commands.PollUseCase
	Sweep       workers.ReminderSweep
	Dedup       ports.EventDedupStore
	DedupTTL    time.Duration
	SweepSecret string
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// WebhookHandler godoc
// @Summary Receive LINE webhook events
// @Description Verifies X-Line-Signature and runs every text message event through the poll engine. Invalid signatures are acknowledged and ignored.
// @Tags group-poll-service
// @Accept json
// @Produce json
// @Param X-Line-Signature header string true "Base64 HMAC-SHA256 of the body"
// @Param request body httptransport.WebhookRequest true "LINE webhook body"
// @Success 200 {object} httptransport.WebhookResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /webhook [post]
//
// Other event types are counted as ignored. Per-event failures are logged and
// never fail the whole delivery, so LINE does not redeliver the batch.
func (h Handler) WebhookHandler(ctx context.Context, req httptransport.WebhookRequest) (httptransport.WebhookResponse, error) {
	logger := h.logger()
	resp := httptransport.WebhookResponse{Received: len(req.Events)}
	for _, event := range req.Events {
		msg, ok := toInboundMessage(event)
		if !ok {
			resp.Ignored++
			continue
		}
		if h.alreadySeen(ctx, event.WebhookEventID) {
			resp.Duplicates++
			logger.Debug("webhook event replay skipped",
				"event", "group_poll_webhook_replayed",
				"module", "community-experience/group-poll-service",
				"layer", "adapter",
				"webhook_event_id", event.WebhookEventID,
				"is_redelivery", event.DeliveryContext.IsRedelivery,
			)
			continue
		}
		h.handleMessage(ctx, msg)
		resp.Handled++
	}
	return resp, nil
}

// SweepHandler godoc
// @Summary Remind non-voters of every open poll
// @Description Runs one reminder sweep. Disabled (404) when no secret is configured.
// @Tags group-poll-service
// @Produce json
// @Param secret query string true "Shared sweep secret"
// @Success 200 {object} httptransport.SweepResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /tasks/remind-sweep [get]
func (h Handler) SweepHandler(ctx context.Context, secret string) (httptransport.SweepResponse, error) {
	configured := strings.TrimSpace(h.SweepSecret)
	if configured == "" {
		return httptransport.SweepResponse{}, domainerrors.ErrSweepDisabled
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(configured)) != 1 {
		h.logger().Warn("reminder sweep rejected",
			"event", "group_poll_sweep_forbidden",
			"module", "community-experience/group-poll-service",
			"layer", "adapter",
		)
		return httptransport.SweepResponse{}, domainerrors.ErrSweepForbidden
	}

	ctx, span := h.tracer().Start(ctx, "group_poll.remind_sweep")
	defer span.End()
	report, err := h.Sweep.RunOnce(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return httptransport.SweepResponse{}, err
	}
	span.SetAttributes(
		attribute.Int("sweep.conversations", report.Conversations),
		attribute.Int("sweep.notified", report.Notified),
	)
	return httptransport.SweepResponse{
		Conversations: report.Conversations,
		Reminded:      report.Reminded,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		Notified:      report.Notified,
	}, nil
}

func (h Handler) handleMessage(ctx context.Context, msg commands.InboundMessage) {
	ctx, span := h.tracer().Start(ctx, "group_poll.handle_message",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", msg.ConversationID),
		attribute.String("webhook.event_id", msg.EventID),
		attribute.Bool("conversation.group", msg.GroupContext),
	)

	result, err := h.Polls.HandleMessage(ctx, msg)
	span.SetAttributes(attribute.String("poll.intent", string(result.Intent)))
	if result.Outcome != nil {
		span.SetAttributes(attribute.String("poll.outcome", result.Outcome.Error()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger().Error("webhook message handling failed",
			"event", "group_poll_webhook_message_failed",
			"module", "community-experience/group-poll-service",
			"layer", "adapter",
			"conversation_id", msg.ConversationID,
			"participant", services.MaskParticipantID(msg.ParticipantID),
			"webhook_event_id", msg.EventID,
			"error", err.Error(),
		)
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (h Handler) alreadySeen(ctx context.Context, eventID string) bool {
	if h.Dedup == nil || strings.TrimSpace(eventID) == "" {
		return false
	}
	ttl := h.DedupTTL
	if ttl <= 0 {
		ttl = defaultWebhookDedupTTL
	}
	seen, err := h.Dedup.Remember(ctx, "webhook:"+strings.TrimSpace(eventID), ttl)
	if err != nil {
		h.logger().Warn("webhook dedup lookup failed",
			"event", "group_poll_webhook_dedup_failed",
			"module", "community-experience/group-poll-service",
			"layer", "adapter",
			"webhook_event_id", eventID,
			"error", err.Error(),
		)
		return false
	}
	return seen
}

// toInboundMessage keeps text messages only. Group and room sources are
// group context; a one-to-one chat is keyed by the user id.
func toInboundMessage(event httptransport.WebhookEvent) (commands.InboundMessage, bool) {
	if event.Type != "message" || event.Message == nil || event.Message.Type != "text" {
		return commands.InboundMessage{}, false
	}
	msg := commands.InboundMessage{
		ParticipantID: strings.TrimSpace(event.Source.UserID),
		Text:          event.Message.Text,
		ReplyToken:    strings.TrimSpace(event.ReplyToken),
		EventID:       strings.TrimSpace(event.WebhookEventID),
	}
	switch event.Source.Type {
	case sourceTypeGroup:
		msg.ConversationID = strings.TrimSpace(event.Source.GroupID)
		msg.GroupContext = true
	case sourceTypeRoom:
		msg.ConversationID = strings.TrimSpace(event.Source.RoomID)
		msg.GroupContext = true
	case sourceTypeUser:
		msg.ConversationID = msg.ParticipantID
	default:
		return commands.InboundMessage{}, false
	}
	return msg, true
}

func (h Handler) tracer() trace.Tracer {
	if h.Tracer == nil {
		return noop.NewTracerProvider().Tracer("noop")
	}
	return h.Tracer
}

func (h Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
