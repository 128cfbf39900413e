package entities

import (
	"sort"
	"strings"
	"time"

	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
)

const DefaultTopic = "Untitled poll"

// Poll is the single active poll of a conversation. Ballots map a participant
// to the zero-based option indices they currently selected, kept sorted and
// unique. An empty ballot counts as "not voted".
type Poll struct {
	PollID         string
	ConversationID string
	Topic          string
	Options        []string
	Ballots        map[string][]int
	OpenedBy       string
	OpenedAt       time.Time
}

// OptionTally is the per-option breakdown in display order. Index is one-based.
type OptionTally struct {
	Index  int
	Option string
	Count  int
	Voters []string
}

func NewPoll(pollID string, conversationID string, topic string, options []string, openedBy string, now time.Time) (Poll, error) {
	normalized := NormalizeOptions(options)
	if len(normalized) == 0 {
		return Poll{}, domainerrors.ErrMissingOptions
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	return Poll{
		PollID:         strings.TrimSpace(pollID),
		ConversationID: strings.TrimSpace(conversationID),
		Topic:          topic,
		Options:        normalized,
		Ballots:        make(map[string][]int),
		OpenedBy:       strings.TrimSpace(openedBy),
		OpenedAt:       now.UTC(),
	}, nil
}

// NormalizeOptions trims every option, drops empty ones and collapses
// duplicates keeping the first occurrence.
func NormalizeOptions(options []string) []string {
	seen := make(map[string]struct{}, len(options))
	out := make([]string, 0, len(options))
	for _, option := range options {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		if _, ok := seen[option]; ok {
			continue
		}
		seen[option] = struct{}{}
		out = append(out, option)
	}
	return out
}

func (p Poll) OptionCount() int {
	return len(p.Options)
}

// Vote unions the in-range one-based indices into the participant's ballot and
// returns the accepted indices (one-based, sorted). Re-voting an index is a
// no-op for the ballot but still reported.
func (p *Poll) Vote(participantID string, indices []int) ([]int, error) {
	picked := make(map[int]struct{}, len(indices))
	for _, index := range indices {
		if index >= 1 && index <= len(p.Options) {
			picked[index] = struct{}{}
		}
	}
	if len(picked) == 0 {
		return nil, domainerrors.ErrIndexOutOfRange
	}
	if p.Ballots == nil {
		p.Ballots = make(map[string][]int)
	}

	selected := toSet(p.Ballots[participantID])
	accepted := make([]int, 0, len(picked))
	for index := range picked {
		selected[index-1] = struct{}{}
		accepted = append(accepted, index)
	}
	sort.Ints(accepted)
	p.Ballots[participantID] = fromSet(selected)
	return accepted, nil
}

// Unvote removes the one-based indices that are in range and currently
// selected. Indices that are not selected are skipped. The returned slice is
// one-based and sorted; an empty result leaves the ballot untouched.
func (p *Poll) Unvote(participantID string, indices []int) []int {
	current, ok := p.Ballots[participantID]
	if !ok || len(current) == 0 {
		return nil
	}
	selected := toSet(current)
	removed := make([]int, 0, len(indices))
	for _, index := range indices {
		if index < 1 || index > len(p.Options) {
			continue
		}
		if _, ok := selected[index-1]; !ok {
			continue
		}
		delete(selected, index-1)
		removed = append(removed, index)
	}
	if len(removed) == 0 {
		return nil
	}
	sort.Ints(removed)
	p.Ballots[participantID] = fromSet(selected)
	return removed
}

// Ballot returns a copy of the participant's zero-based selections.
func (p Poll) Ballot(participantID string) []int {
	return append([]int(nil), p.Ballots[participantID]...)
}

func (p Poll) HasVoted(participantID string) bool {
	return len(p.Ballots[participantID]) > 0
}

// Voters lists participants with a non-empty ballot, sorted.
func (p Poll) Voters() []string {
	voters := make([]string, 0, len(p.Ballots))
	for participantID, ballot := range p.Ballots {
		if len(ballot) > 0 {
			voters = append(voters, participantID)
		}
	}
	sort.Strings(voters)
	return voters
}

// NonVoters is the known set minus the voters, sorted and de-duplicated.
func (p Poll) NonVoters(known []string) []string {
	seen := make(map[string]struct{}, len(known))
	out := make([]string, 0, len(known))
	for _, participantID := range known {
		participantID = strings.TrimSpace(participantID)
		if participantID == "" || p.HasVoted(participantID) {
			continue
		}
		if _, ok := seen[participantID]; ok {
			continue
		}
		seen[participantID] = struct{}{}
		out = append(out, participantID)
	}
	sort.Strings(out)
	return out
}

// Tally counts, per option in display order, the participants whose ballot
// contains it. Voter ids are raw and sorted; rendering must mask them.
func (p Poll) Tally() []OptionTally {
	tallies := make([]OptionTally, len(p.Options))
	for i, option := range p.Options {
		tallies[i] = OptionTally{Index: i + 1, Option: option}
	}
	for _, participantID := range p.Voters() {
		for _, index := range p.Ballots[participantID] {
			if index < 0 || index >= len(tallies) {
				continue
			}
			tallies[index].Count++
			tallies[index].Voters = append(tallies[index].Voters, participantID)
		}
	}
	return tallies
}

func (p Poll) Clone() Poll {
	out := p
	out.Options = append([]string(nil), p.Options...)
	out.Ballots = make(map[string][]int, len(p.Ballots))
	for participantID, ballot := range p.Ballots {
		out.Ballots[participantID] = append([]int(nil), ballot...)
	}
	return out
}

func toSet(values []int) map[int]struct{} {
	set := make(map[int]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

func fromSet(set map[int]struct{}) []int {
	values := make([]int, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Ints(values)
	return values
}
