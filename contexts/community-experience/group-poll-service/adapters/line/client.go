package lineadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultAPIBaseURL     = "https://api.line.me"
	defaultRequestTimeout = 10 * time.Second
	maxErrorBody          = 4 << 10

	replyPath = "/v2/bot/message/reply"
	pushPath  = "/v2/bot/message/push"
)

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

type Config struct {
	BaseURL      string
	ChannelToken string
	HTTPClient   *http.Client
	Tracer       trace.Tracer
	Logger       *slog.Logger
}

// Client is a thin Messaging API client covering reply, push and member ids.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.ChannelToken),
		http:    httpClient,
		tracer:  tracer,
		logger:  logger,
	}
}

type replyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []message `json:"messages"`
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []message `json:"messages"`
}

type memberIDsResponse struct {
	MemberIDs []string `json:"memberIds"`
	Next      string   `json:"next,omitempty"`
}

func (c *Client) Reply(ctx context.Context, replyToken string, messages []message) error {
	return c.do(ctx, http.MethodPost, replyPath, nil, replyRequest{
		ReplyToken: strings.TrimSpace(replyToken),
		Messages:   messages,
	}, nil)
}

// Push sends to a user, group or room. retryKey makes a retried push
// idempotent on the LINE side.
func (c *Client) Push(ctx context.Context, to string, messages []message, retryKey string) error {
	headers := http.Header{}
	if strings.TrimSpace(retryKey) != "" {
		headers.Set("X-Line-Retry-Key", retryKey)
	}
	return c.do(ctx, http.MethodPost, pushPath, headers, pushRequest{
		To:       strings.TrimSpace(to),
		Messages: messages,
	}, nil)
}

// MemberIDs returns one page of member ids. Group ids start with "C" and
// room ids with "R"; each has its own endpoint.
func (c *Client) MemberIDs(ctx context.Context, conversationID string, start string) ([]string, string, error) {
	conversationID = strings.TrimSpace(conversationID)
	kind := "group"
	if strings.HasPrefix(conversationID, "R") {
		kind = "room"
	}
	path := fmt.Sprintf("/v2/bot/%s/%s/members/ids", kind, url.PathEscape(conversationID))
	if strings.TrimSpace(start) != "" {
		path += "?start=" + url.QueryEscape(start)
	}
	var out memberIDsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, "", err
	}
	return out.MemberIDs, out.Next, nil
}

func (c *Client) do(ctx context.Context, method string, path string, headers http.Header, body any, out any) error {
	endpoint := path
	if idx := strings.Index(endpoint, "?"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	ctx, span := c.tracer.Start(ctx, "line."+strings.ToLower(method)+" "+endpointLabel(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	span.SetAttributes(attribute.String("line.endpoint", endpointLabel(endpoint)))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return c.fail(span, endpoint, fmt.Errorf("encode line request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.fail(span, endpoint, fmt.Errorf("build line request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(span, endpoint, fmt.Errorf("call line api: %w", err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(span, endpoint, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpointLabel(endpoint),
			Message:    strings.TrimSpace(string(raw)),
		})
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return c.fail(span, endpoint, fmt.Errorf("decode line response: %w", err))
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) fail(span trace.Span, endpoint string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("line api call failed",
		"event", "group_poll_line_call_failed",
		"module", "community-experience/group-poll-service",
		"layer", "adapter",
		"endpoint", endpointLabel(endpoint),
		"error", err.Error(),
	)
	return err
}

// endpointLabel drops conversation ids from member lookups so span names stay
// low cardinality.
func endpointLabel(path string) string {
	if strings.HasSuffix(path, "/members/ids") {
		if strings.HasPrefix(path, "/v2/bot/room/") {
			return "/v2/bot/room/{id}/members/ids"
		}
		return "/v2/bot/group/{id}/members/ids"
	}
	return path
}
