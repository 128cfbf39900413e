package lineadapter

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
)

const (
	maxQuickReplyItems = 13
	maxQuickReplyLabel = 20
	maxReplyMessages   = 5
)

type message struct {
	Type         string                  `json:"type"`
	Text         string                  `json:"text"`
	Substitution map[string]substitution `json:"substitution,omitempty"`
	QuickReply   *quickReply             `json:"quickReply,omitempty"`
}

type substitution struct {
	Type      string    `json:"type"`
	Mentionee mentionee `json:"mentionee"`
}

type mentionee struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type quickReply struct {
	Items []quickReplyItem `json:"items"`
}

type quickReplyItem struct {
	Type   string        `json:"type"`
	Action messageAction `json:"action"`
}

type messageAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// toLineMessage renders plain text as a "text" message and text with mention
// spans as "textV2", replacing each span with a {mN} placeholder. Literal
// braces outside spans are doubled.
func toLineMessage(out entities.OutboundMessage) (message, error) {
	msg := message{Type: "text", Text: out.Text}
	if len(out.Mentions) > 0 {
		text, substitutions, err := substituteMentions(out.Text, out.Mentions)
		if err != nil {
			return message{}, err
		}
		msg = message{Type: "textV2", Text: text, Substitution: substitutions}
	}
	if len(out.QuickReplies) > 0 {
		msg.QuickReply = toQuickReply(out.QuickReplies)
	}
	return msg, nil
}

func toLineMessages(outs []entities.OutboundMessage) ([]message, error) {
	if len(outs) == 0 || len(outs) > maxReplyMessages {
		return nil, fmt.Errorf("%w: reply carries %d messages", domainerrors.ErrInvalidInput, len(outs))
	}
	messages := make([]message, 0, len(outs))
	for _, out := range outs {
		msg, err := toLineMessage(out)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func substituteMentions(text string, spans []entities.MentionSpan) (string, map[string]substitution, error) {
	ordered := append([]entities.MentionSpan(nil), spans...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	units := utf16.Encode([]rune(text))
	substitutions := make(map[string]substitution, len(ordered))
	var b strings.Builder
	cursor := 0
	for i, span := range ordered {
		end := span.Offset + span.Length
		if span.Offset < cursor || span.Length <= 0 || end > len(units) {
			return "", nil, fmt.Errorf("%w: mention span %d out of bounds", domainerrors.ErrInvalidInput, i)
		}
		b.WriteString(escapeBraces(string(utf16.Decode(units[cursor:span.Offset]))))
		key := fmt.Sprintf("m%d", i+1)
		fmt.Fprintf(&b, "{%s}", key)
		substitutions[key] = substitution{
			Type:      "mention",
			Mentionee: mentionee{Type: "user", UserID: span.ParticipantID},
		}
		cursor = end
	}
	b.WriteString(escapeBraces(string(utf16.Decode(units[cursor:]))))
	return b.String(), substitutions, nil
}

func escapeBraces(value string) string {
	value = strings.ReplaceAll(value, "{", "{{")
	return strings.ReplaceAll(value, "}", "}}")
}

func toQuickReply(items []entities.QuickReply) *quickReply {
	count := min(len(items), maxQuickReplyItems)
	out := &quickReply{Items: make([]quickReplyItem, 0, count)}
	for _, item := range items[:count] {
		out.Items = append(out.Items, quickReplyItem{
			Type: "action",
			Action: messageAction{
				Type:  "message",
				Label: truncateRunes(item.Label, maxQuickReplyLabel),
				Text:  item.Text,
			},
		})
	}
	return out
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
