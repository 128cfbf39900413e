package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookRequest is the LINE Messaging API webhook body.
type WebhookRequest struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

type WebhookEvent struct {
	Type            string          `json:"type"`
	Mode            string          `json:"mode,omitempty"`
	Timestamp       int64           `json:"timestamp"`
	WebhookEventID  string          `json:"webhookEventId"`
	ReplyToken      string          `json:"replyToken,omitempty"`
	Source          EventSource     `json:"source"`
	Message         *EventMessage   `json:"message,omitempty"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
}

type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type WebhookResponse struct {
	Received   int `json:"received"`
	Handled    int `json:"handled"`
	Duplicates int `json:"duplicates"`
	Ignored    int `json:"ignored"`
}

type SweepResponse struct {
	Conversations int `json:"conversations"`
	Reminded      int `json:"reminded"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	Notified      int `json:"notified"`
}
