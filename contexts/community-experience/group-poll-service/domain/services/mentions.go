package services

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
)

const (
	DefaultMentionBatchSize = 20
	mentionSeparator        = "、"
	maskEllipsis            = "…"
)

// BuildMentionBatches splits participants into chunks of at most batchSize and
// renders one message per chunk. Order of participants is preserved.
func BuildMentionBatches(prefix string, participantIDs []string, batchSize int) []entities.OutboundMessage {
	if batchSize <= 0 {
		batchSize = DefaultMentionBatchSize
	}
	messages := make([]entities.OutboundMessage, 0, (len(participantIDs)+batchSize-1)/batchSize)
	for start := 0; start < len(participantIDs); start += batchSize {
		end := min(start+batchSize, len(participantIDs))
		messages = append(messages, BuildMentionMessage(prefix, participantIDs[start:end]))
	}
	return messages
}

// BuildMentionMessage renders "prefix @user1、@user2" with one span per tag.
func BuildMentionMessage(prefix string, participantIDs []string) entities.OutboundMessage {
	var body strings.Builder
	body.WriteString(prefix)
	body.WriteString(" ")
	offset := UTF16Len(body.String())

	spans := make([]entities.MentionSpan, 0, len(participantIDs))
	for i, participantID := range participantIDs {
		tag := fmt.Sprintf("@user%d", i+1)
		length := UTF16Len(tag)
		spans = append(spans, entities.MentionSpan{
			Offset:        offset,
			Length:        length,
			ParticipantID: participantID,
		})
		body.WriteString(tag)
		offset += length
		if i != len(participantIDs)-1 {
			body.WriteString(mentionSeparator)
			offset += UTF16Len(mentionSeparator)
		}
	}
	return entities.OutboundMessage{Text: body.String(), Mentions: spans}
}

// UTF16Len counts UTF-16 code units, the unit LINE uses for text offsets.
func UTF16Len(value string) int {
	return len(utf16.Encode([]rune(value)))
}

// MaskParticipantID keeps a short prefix and suffix so transcripts never carry
// the full platform id. Ids shorter than 8 characters keep only their first
// character.
func MaskParticipantID(participantID string) string {
	runes := []rune(participantID)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) < 8 {
		return string(runes[:1]) + maskEllipsis
	}
	return string(runes[:6]) + maskEllipsis + string(runes[len(runes)-4:])
}
