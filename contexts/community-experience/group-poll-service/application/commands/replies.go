package commands

import (
	"fmt"
	"strconv"
	"strings"

	"pollbot/contexts/community-experience/group-poll-service/application/queries"
	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/domain/services"
)

const (
	replyHelp = "👉 Commands:\n" +
		"/poll Topic | option1, option2, ...  open a new poll (| or ｜)\n" +
		"/vote <numbers>    vote, e.g. /vote 1 or /vote 1 3\n" +
		"/unvote <numbers>  cancel a selection, e.g. /unvote 2\n" +
		"/status            progress (how many voted)\n" +
		"/stats             per-option breakdown\n" +
		"/remind            mention members who have not voted\n" +
		"/close             final tally, mention non-voters, reset\n" +
		"/join              register yourself so reminders can reach you"

	replyPrivateContext  = "Please add me to a group to use polls. (/help lists the commands)"
	replyJoined          = "You are registered for this conversation's polls and can be reminded."
	replyJoinedDirectory = "Members are read from the group roster, so you are already included."
	replyPollUsage       = "Usage:\n/poll Lunch | Pizza, Sushi, Noodles\n(separate options with commas; the bar may be | or ｜)"
	replyVoteUsage       = "Please give option numbers, e.g. /vote 1 or /vote 1 3"
	replyUnvoteUsage     = "Please give the numbers to cancel, e.g. /unvote 2"
	replyNoActivePoll    = "There is no active poll. Start one with /poll Topic | option1, option2"
	replyOutOfRange      = "Option number out of range."
	replyNothingToCancel = "Nothing to cancel."
	replyNothingToRemind = "There is nobody to remind (or no known members yet)."
	replyDirectoryFailed = "Could not read the member list right now. Please try again later."
	replyGenericFailure  = "Something went wrong. Please try again later."
	replyCelebration     = "🎉 Every known member has voted. Great job!"
	noVotersPlaceholder  = "(none)"
	voterSeparator       = "、"
)

func openedReply(poll entities.Poll) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗳️ New poll: %s\nOptions:\n", poll.Topic)
	for i, option := range poll.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, option)
	}
	b.WriteString("\nTap a quick reply or send /vote <number> to vote.\n")
	b.WriteString("(Multi-select: /vote 1 3. Quiet members can send /join to be reminded.)")
	return b.String()
}

func openedQuickReplies(poll entities.Poll, limit int) []entities.QuickReply {
	count := min(len(poll.Options), max(limit, 0))
	items := make([]entities.QuickReply, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, entities.QuickReply{
			Label: fmt.Sprintf("%d. %s", i+1, poll.Options[i]),
			Text:  fmt.Sprintf("/vote %d", i+1),
		})
	}
	return items
}

func votedReply(poll entities.Poll, accepted []int) string {
	parts := make([]string, 0, len(accepted))
	for _, index := range accepted {
		parts = append(parts, fmt.Sprintf("%d. %s", index, poll.Options[index-1]))
	}
	return "✅ Vote registered: " + strings.Join(parts, ", ")
}

func unvotedReply(removed []int) string {
	parts := make([]string, 0, len(removed))
	for _, index := range removed {
		parts = append(parts, strconv.Itoa(index))
	}
	return "🗑️ Cancelled: " + strings.Join(parts, ", ")
}

func statusReply(summary queries.Summary) string {
	return fmt.Sprintf("🗳️ %s\nVoted: %d (known members: %d)", summary.Topic, summary.VoterCount(), summary.KnownCount)
}

// tallyText renders one line per option with masked voter ids.
func tallyText(header string, summary queries.Summary) string {
	lines := make([]string, 0, len(summary.Tallies)+1)
	lines = append(lines, header)
	for _, tally := range summary.Tallies {
		detail := noVotersPlaceholder
		if len(tally.Voters) > 0 {
			masked := make([]string, 0, len(tally.Voters))
			for _, participantID := range tally.Voters {
				masked = append(masked, services.MaskParticipantID(participantID))
			}
			detail = strings.Join(masked, voterSeparator)
		}
		lines = append(lines, fmt.Sprintf("%d. %s - %d vote(s) [%s]", tally.Index, tally.Option, tally.Count, detail))
	}
	return strings.Join(lines, "\n")
}

func statsReply(summary queries.Summary) string {
	return tallyText(fmt.Sprintf("📊 %s breakdown:", summary.Topic), summary)
}

func closeTally(summary queries.Summary) string {
	return tallyText(fmt.Sprintf("📦 %s final result:", summary.Topic), summary)
}

func remindPrefix(topic string) string {
	return fmt.Sprintf("Reminder for %s, please vote:", topic)
}

func closingRemindPrefix(topic string) string {
	return fmt.Sprintf("%s is closed. You did not vote:", topic)
}

func remindedReply(notified int, failed int) string {
	if failed > 0 {
		return fmt.Sprintf("Reminded %d known non-voter(s); %d message(s) could not be delivered.", notified, failed)
	}
	return fmt.Sprintf("Reminded %d known non-voter(s).", notified)
}

func closedReply(topic string, failed int, directoryFailed bool) string {
	text := fmt.Sprintf("Poll %q is closed.", topic)
	if directoryFailed {
		text += " The member list was unavailable, so nobody was mentioned."
	}
	if failed > 0 {
		text += fmt.Sprintf(" %d broadcast(s) could not be delivered.", failed)
	}
	return text
}
