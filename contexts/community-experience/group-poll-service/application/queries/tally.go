package queries

import "pollbot/contexts/community-experience/group-poll-service/domain/entities"

// Summary is the read model shared by status, stats, remind and close.
type Summary struct {
	Topic      string
	Tallies    []entities.OptionTally
	Voters     []string
	NonVoters  []string
	KnownCount int
}

// Summarize derives tallies and the non-voter set from a poll snapshot and the
// known members at query time.
func Summarize(poll entities.Poll, known []string) Summary {
	nonVoters := poll.NonVoters(known)
	return Summary{
		Topic:      poll.Topic,
		Tallies:    poll.Tally(),
		Voters:     poll.Voters(),
		NonVoters:  nonVoters,
		KnownCount: countDistinct(known),
	}
}

func (s Summary) VoterCount() int {
	return len(s.Voters)
}

// Counts returns the vote count per option in display order.
func (s Summary) Counts() []int {
	counts := make([]int, len(s.Tallies))
	for i, tally := range s.Tallies {
		counts[i] = tally.Count
	}
	return counts
}

func countDistinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		seen[value] = struct{}{}
	}
	return len(seen)
}
