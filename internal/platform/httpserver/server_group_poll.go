package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	lineadapter "pollbot/contexts/community-experience/group-poll-service/adapters/line"
	grouppolldomainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	grouppollhttp "pollbot/contexts/community-experience/group-poll-service/transport/http"
)

func writeGroupPollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, grouppollhttp.ErrorResponse{Code: code, Message: message})
}

func writeGroupPollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grouppolldomainerrors.ErrSweepDisabled):
		writeGroupPollError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, grouppolldomainerrors.ErrSweepForbidden):
		writeGroupPollError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, grouppolldomainerrors.ErrInvalidInput):
		writeGroupPollError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeGroupPollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// handleGroupPollWebhook acknowledges unsigned or mis-signed deliveries with
// 200 so LINE does not retry them, and drops their events.
func (s *Server) handleGroupPollWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeGroupPollError(w, http.StatusBadRequest, "invalid_request", "unable to read request body")
		return
	}
	if !lineadapter.ValidateSignature(r.Header.Get(lineadapter.SignatureHeader), body, s.channelSecret) {
		s.logger.Warn("webhook signature rejected",
			"event", "group_poll_webhook_signature_rejected",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"has_signature", r.Header.Get(lineadapter.SignatureHeader) != "",
		)
		writeJSON(w, http.StatusOK, grouppollhttp.WebhookResponse{})
		return
	}

	var req grouppollhttp.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeGroupPollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	// Commands run to completion even if LINE hangs up early.
	resp, err := s.groupPoll.Handler.WebhookHandler(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writeGroupPollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGroupPollSweep(w http.ResponseWriter, r *http.Request) {
	resp, err := s.groupPoll.Handler.SweepHandler(context.WithoutCancel(r.Context()), r.URL.Query().Get("secret"))
	if err != nil {
		writeGroupPollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
