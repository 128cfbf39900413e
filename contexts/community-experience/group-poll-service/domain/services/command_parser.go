package services

import (
	"regexp"
	"strconv"
	"strings"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
)

type IntentKind string

const (
	IntentOpenPoll     IntentKind = "open_poll"
	IntentVote         IntentKind = "vote"
	IntentUnvote       IntentKind = "unvote"
	IntentStatus       IntentKind = "status"
	IntentStats        IntentKind = "stats"
	IntentRemind       IntentKind = "remind"
	IntentClose        IntentKind = "close"
	IntentJoin         IntentKind = "join"
	IntentHelp         IntentKind = "help"
	IntentUnrecognized IntentKind = "unrecognized"
)

const (
	optionSeparator    = "|"
	fullWidthSeparator = "｜"
	commaSeparator     = ","
	pollKeyword        = "/poll"
	voteKeyword        = "/vote"
	unvoteKeyword      = "/unvote"
)

// Intent is the structured form of one command. Topic and Options are set for
// IntentOpenPoll, Indices (one-based, in the order typed) for vote/unvote.
type Intent struct {
	Kind    IntentKind
	Topic   string
	Options []string
	Indices []int
}

var (
	digitRuns   = regexp.MustCompile(`\d+`)
	pollPayload = regexp.MustCompile(`(?is)^/poll\s*(.*)$`)
)

var exactCommands = map[string]IntentKind{
	"/help":   IntentHelp,
	"help":    IntentHelp,
	"指令":      IntentHelp,
	"/join":   IntentJoin,
	"/status": IntentStatus,
	"/stats":  IntentStats,
	"/remind": IntentRemind,
	"/close":  IntentClose,
}

// ParseCommand maps raw chat text to exactly one intent. Text that is not a
// command yields IntentUnrecognized.
func ParseCommand(text string) Intent {
	text = strings.TrimSpace(text)
	if kind, ok := exactCommands[text]; ok {
		return Intent{Kind: kind}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, pollKeyword):
		topic, options := parsePollPayload(text)
		return Intent{Kind: IntentOpenPoll, Topic: topic, Options: options}
	case strings.HasPrefix(lower, unvoteKeyword):
		return Intent{Kind: IntentUnvote, Indices: ParseIndices(text)}
	case strings.HasPrefix(lower, voteKeyword):
		return Intent{Kind: IntentVote, Indices: ParseIndices(text)}
	default:
		return Intent{Kind: IntentUnrecognized}
	}
}

// parsePollPayload splits "topic | a, b" (or the full-width bar). Without a
// bar, the first comma segment becomes the topic when at least two segments
// exist; otherwise the whole payload is the topic and no options are returned.
func parsePollPayload(text string) (string, []string) {
	match := pollPayload.FindStringSubmatch(text)
	if match == nil {
		return entities.DefaultTopic, nil
	}
	payload := strings.TrimSpace(match[1])
	payload = strings.ReplaceAll(payload, fullWidthSeparator, optionSeparator)

	var topic, optionPart string
	if before, after, found := strings.Cut(payload, optionSeparator); found {
		topic = strings.TrimSpace(before)
		optionPart = strings.TrimSpace(after)
	} else {
		parts := strings.Split(payload, commaSeparator)
		if len(parts) < 2 {
			return defaultTopic(payload), nil
		}
		topic = strings.TrimSpace(parts[0])
		optionPart = strings.Join(parts[1:], commaSeparator)
	}

	options := entities.NormalizeOptions(strings.Split(optionPart, commaSeparator))
	return defaultTopic(topic), options
}

// ParseIndices extracts every run of decimal digits as a one-based index.
// Runs too large for an int are dropped.
func ParseIndices(text string) []int {
	runs := digitRuns.FindAllString(text, -1)
	indices := make([]int, 0, len(runs))
	for _, run := range runs {
		value, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		indices = append(indices, value)
	}
	return indices
}

func defaultTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return entities.DefaultTopic
	}
	return topic
}
