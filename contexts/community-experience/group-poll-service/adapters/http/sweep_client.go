package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	httptransport "pollbot/contexts/community-experience/group-poll-service/transport/http"
)

const defaultSweepClientTimeout = 30 * time.Second

// RemoteSweepTrigger calls a running API's sweep endpoint. The worker process
// uses it since active polls live in the API process memory.
type RemoteSweepTrigger struct {
	TargetURL  string
	Secret     string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (t RemoteSweepTrigger) Trigger(ctx context.Context) (httptransport.SweepResponse, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target, err := url.Parse(strings.TrimSpace(t.TargetURL))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return httptransport.SweepResponse{}, fmt.Errorf("%w: sweep target url %q", domainerrors.ErrInvalidInput, t.TargetURL)
	}
	query := target.Query()
	query.Set("secret", t.Secret)
	target.RawQuery = query.Encode()

	client := t.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSweepClientTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return httptransport.SweepResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("remote sweep call failed",
			"event", "group_poll_remote_sweep_failed",
			"module", "community-experience/group-poll-service",
			"layer", "adapter",
			"target_host", target.Host,
			"error", err.Error(),
		)
		return httptransport.SweepResponse{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return httptransport.SweepResponse{}, domainerrors.ErrSweepDisabled
	case http.StatusForbidden:
		return httptransport.SweepResponse{}, domainerrors.ErrSweepForbidden
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return httptransport.SweepResponse{}, fmt.Errorf("sweep endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out httptransport.SweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return httptransport.SweepResponse{}, fmt.Errorf("decode sweep response: %w", err)
	}
	return out, nil
}
