package entities

import "time"

// MentionSpan marks an inline "@" reference. Offset and Length count UTF-16
// code units of the message text.
type MentionSpan struct {
	Offset        int
	Length        int
	ParticipantID string
}

// QuickReply is a one-tap action rendered under a message.
type QuickReply struct {
	Label string
	Text  string
}

type OutboundMessage struct {
	Text         string
	Mentions     []MentionSpan
	QuickReplies []QuickReply
}

// ClosedPollRecord is the archived result of a closed poll.
type ClosedPollRecord struct {
	PollID         string
	ConversationID string
	Topic          string
	Options        []string
	Counts         []int
	VoterCount     int
	KnownCount     int
	OpenedBy       string
	OpenedAt       time.Time
	ClosedBy       string
	ClosedAt       time.Time
}
