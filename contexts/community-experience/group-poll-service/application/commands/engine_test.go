package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"
	"pollbot/contexts/community-experience/group-poll-service/domain/services"
	"pollbot/contexts/community-experience/group-poll-service/ports"

	"github.com/stretchr/testify/require"
)

const (
	testConversation = "C1234567890"
	opener           = "U0000000000000000000000000000opener"
	voterB           = "U0000000000000000000000000000voterb"
)

type engineFixture struct {
	uc         PollUseCase
	store      *fakeStore
	dispatcher *fakeDispatcher
	events     *recordingPublisher
}

func newEngineFixture() engineFixture {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	events := &recordingPublisher{}
	return engineFixture{
		uc: PollUseCase{
			Polls:      store,
			Members:    ObservedMembership{Registry: store},
			Dispatcher: dispatcher,
			Events:     events,
			Locks:      NewConversationLocks(),
			Clock:      fixedClock{now: time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)},
			IDGen:      &sequenceIDs{},
		},
		store:      store,
		dispatcher: dispatcher,
		events:     events,
	}
}

func groupMessage(participantID string, text string) InboundMessage {
	return InboundMessage{
		ConversationID: testConversation,
		ParticipantID:  participantID,
		GroupContext:   true,
		Text:           text,
		ReplyToken:     "reply-token",
	}
}

func (f engineFixture) send(t *testing.T, participantID string, text string) Result {
	t.Helper()
	result, err := f.uc.HandleMessage(context.Background(), groupMessage(participantID, text))
	require.NoError(t, err)
	return result
}

func TestOpenPollRepliesWithOptionsAndQuickReplies(t *testing.T) {
	f := newEngineFixture()

	result := f.send(t, opener, "/poll Lunch | Pizza, Sushi, Pizza")

	require.Equal(t, services.IntentOpenPoll, result.Intent)
	require.NoError(t, result.Outcome)
	require.True(t, result.Replied)

	poll, ok := f.store.poll(testConversation)
	require.True(t, ok)
	require.Equal(t, "Lunch", poll.Topic)
	require.Equal(t, []string{"Pizza", "Sushi"}, poll.Options)
	require.Equal(t, opener, poll.OpenedBy)

	reply := f.dispatcher.replies[0].messages[0]
	require.Contains(t, reply.Text, "Lunch")
	require.Contains(t, reply.Text, "1. Pizza")
	require.Contains(t, reply.Text, "2. Sushi")
	require.Equal(t, []entities.QuickReply{
		{Label: "1. Pizza", Text: "/vote 1"},
		{Label: "2. Sushi", Text: "/vote 2"},
	}, reply.QuickReplies)

	require.Len(t, f.events.events, 1)
	require.Equal(t, EventPollOpened, f.events.events[0].EventType)
	require.Equal(t, testConversation, f.events.events[0].PartitionKey)
}

func TestOpenPollCapsQuickReplies(t *testing.T) {
	f := newEngineFixture()
	options := make([]string, 15)
	for i := range options {
		options[i] = fmt.Sprintf("Option %d", i+1)
	}

	f.send(t, opener, "/poll Many | "+strings.Join(options, ", "))

	reply := f.dispatcher.replies[0].messages[0]
	require.Len(t, reply.QuickReplies, DefaultQuickReplyLimit)
	require.Contains(t, reply.Text, "15. Option 15")
}

func TestOpenPollWithoutOptionsRepliesUsage(t *testing.T) {
	f := newEngineFixture()

	result := f.send(t, opener, "/poll Lunch")

	require.ErrorIs(t, result.Outcome, domainerrors.ErrMissingOptions)
	require.Equal(t, replyPollUsage, f.dispatcher.lastReply())
	_, ok := f.store.poll(testConversation)
	require.False(t, ok)
}

func TestOpenPollReplacesActivePoll(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, voterB, "/vote 1")

	f.send(t, opener, "/poll Dinner | Curry, Ramen, Tacos")

	poll, ok := f.store.poll(testConversation)
	require.True(t, ok)
	require.Equal(t, "Dinner", poll.Topic)
	require.False(t, poll.HasVoted(voterB))
	require.Len(t, f.events.events, 2)
	require.Contains(t, string(f.events.events[1].Data), `"replaced":true`)
}

func TestVoteRegistersSelectedOptions(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi, Noodles")

	result := f.send(t, voterB, "/vote 1 3")

	require.NoError(t, result.Outcome)
	require.Equal(t, "✅ Vote registered: 1. Pizza, 3. Noodles", f.dispatcher.lastReply())
	poll, _ := f.store.poll(testConversation)
	require.Equal(t, []int{0, 2}, poll.Ballot(voterB))
}

func TestVoteOutcomes(t *testing.T) {
	f := newEngineFixture()

	result := f.send(t, voterB, "/vote 1")
	require.ErrorIs(t, result.Outcome, domainerrors.ErrNoActivePoll)
	require.Equal(t, replyNoActivePoll, f.dispatcher.lastReply())

	f.send(t, opener, "/poll Lunch | Pizza, Sushi")

	result = f.send(t, voterB, "/vote")
	require.ErrorIs(t, result.Outcome, domainerrors.ErrMissingIndices)
	require.Equal(t, replyVoteUsage, f.dispatcher.lastReply())

	result = f.send(t, voterB, "/vote 7")
	require.ErrorIs(t, result.Outcome, domainerrors.ErrIndexOutOfRange)
	require.Equal(t, replyOutOfRange, f.dispatcher.lastReply())

	poll, _ := f.store.poll(testConversation)
	require.False(t, poll.HasVoted(voterB))
}

func TestUnvoteOfUnselectedIndexIsNoOp(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi, Noodles")
	f.send(t, voterB, "/vote 1 3")

	result := f.send(t, voterB, "/unvote 2")

	require.ErrorIs(t, result.Outcome, domainerrors.ErrNothingToCancel)
	require.Equal(t, replyNothingToCancel, f.dispatcher.lastReply())
	poll, _ := f.store.poll(testConversation)
	require.Equal(t, []int{0, 2}, poll.Ballot(voterB))

	result = f.send(t, voterB, "/unvote 3")
	require.NoError(t, result.Outcome)
	require.Equal(t, "🗑️ Cancelled: 3", f.dispatcher.lastReply())
	poll, _ = f.store.poll(testConversation)
	require.Equal(t, []int{0}, poll.Ballot(voterB))
}

func TestStatusAndStatsReplies(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, voterB, "/vote 2")

	f.send(t, opener, "/status")
	require.Equal(t, "🗳️ Lunch\nVoted: 1 (known members: 2)", f.dispatcher.lastReply())

	f.send(t, opener, "/stats")
	stats := f.dispatcher.lastReply()
	require.Contains(t, stats, "1. Pizza - 0 vote(s) [(none)]")
	require.Contains(t, stats, "2. Sushi - 1 vote(s) ["+services.MaskParticipantID(voterB)+"]")
	require.NotContains(t, stats, voterB)
}

func TestRemindBatchesNonVoterMentions(t *testing.T) {
	f := newEngineFixture()
	f.uc.MentionBatchSize = 20
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, opener, "/vote 1")
	for i := 0; i < 25; i++ {
		require.NoError(t, f.store.AddMember(context.Background(), testConversation, fmt.Sprintf("Umember%02d", i)))
	}

	result := f.send(t, opener, "/remind")

	require.NoError(t, result.Outcome)
	require.Equal(t, 2, result.Broadcasts)
	require.Equal(t, 25, result.Notified)
	require.Len(t, f.dispatcher.broadcasts, 2)
	require.Len(t, f.dispatcher.broadcasts[0].Mentions, 20)
	require.Len(t, f.dispatcher.broadcasts[1].Mentions, 5)
	require.Equal(t, "Reminded 25 known non-voter(s).", f.dispatcher.lastReply())
}

func TestRemindOutcomes(t *testing.T) {
	f := newEngineFixture()

	result, err := f.uc.Remind(context.Background(), testConversation)
	require.NoError(t, err)
	require.ErrorIs(t, result.Outcome, domainerrors.ErrNoActivePoll)

	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, opener, "/vote 2")

	result = f.send(t, opener, "/remind")
	require.ErrorIs(t, result.Outcome, domainerrors.ErrNothingToRemind)
	require.Equal(t, replyNothingToRemind, f.dispatcher.lastReply())
	require.Empty(t, f.dispatcher.broadcasts)

	f.send(t, voterB, "hello")
	f.dispatcher.failBroadcast = func(int, entities.OutboundMessage) bool { return true }
	result, err = f.uc.Remind(context.Background(), testConversation)
	require.NoError(t, err)
	require.ErrorIs(t, result.Outcome, domainerrors.ErrDispatchFailed)
	require.Equal(t, 1, result.FailedBroadcasts)
}

func TestCloseBroadcastsTallyThenMentionsAndResets(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, opener, "/vote 1")
	f.send(t, voterB, "/help")

	result := f.send(t, opener, "/close")

	require.NoError(t, result.Outcome)
	require.Len(t, f.dispatcher.broadcasts, 2)
	require.Contains(t, f.dispatcher.broadcasts[0].Text, "Lunch final result:")
	require.Contains(t, f.dispatcher.broadcasts[0].Text, "1. Pizza - 1 vote(s) ["+services.MaskParticipantID(opener)+"]")
	require.Empty(t, f.dispatcher.broadcasts[0].Mentions)
	require.Len(t, f.dispatcher.broadcasts[1].Mentions, 1)
	require.Equal(t, voterB, f.dispatcher.broadcasts[1].Mentions[0].ParticipantID)
	require.Equal(t, `Poll "Lunch" is closed.`, f.dispatcher.lastReply())

	_, ok := f.store.poll(testConversation)
	require.False(t, ok)
	last := f.events.events[len(f.events.events)-1]
	require.Equal(t, EventPollClosed, last.EventType)
	require.Contains(t, string(last.Data), `"counts":[1,0]`)

	status := f.send(t, opener, "/status")
	require.ErrorIs(t, status.Outcome, domainerrors.ErrNoActivePoll)
	require.Equal(t, replyNoActivePoll, f.dispatcher.lastReply())
}

func TestCloseCelebratesWhenEveryoneVoted(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, opener, "/vote 2")

	f.send(t, opener, "/close")

	require.Len(t, f.dispatcher.broadcasts, 2)
	require.Equal(t, replyCelebration, f.dispatcher.broadcasts[1].Text)
}

func TestCloseDeletesPollWhenBroadcastFails(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.dispatcher.failBroadcast = func(attempt int, _ entities.OutboundMessage) bool { return attempt == 0 }

	result := f.send(t, opener, "/close")

	require.ErrorIs(t, result.Outcome, domainerrors.ErrDispatchFailed)
	require.Equal(t, 1, result.FailedBroadcasts)
	_, ok := f.store.poll(testConversation)
	require.False(t, ok)
	require.Contains(t, f.dispatcher.lastReply(), "could not be delivered")
}

func TestCloseWithDirectoryFailureSkipsMentions(t *testing.T) {
	f := newEngineFixture()
	f.uc.Members = DirectoryMembership{Directory: &fakeDirectory{err: errors.New("roster api down")}}
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")

	result := f.send(t, opener, "/close")

	require.ErrorIs(t, result.Outcome, domainerrors.ErrDirectoryUnavailable)
	require.Len(t, f.dispatcher.broadcasts, 1)
	require.Contains(t, f.dispatcher.broadcasts[0].Text, "final result")
	require.Contains(t, f.dispatcher.lastReply(), "member list was unavailable")
	_, ok := f.store.poll(testConversation)
	require.False(t, ok)
}

func TestStatusUsesDirectoryRoster(t *testing.T) {
	f := newEngineFixture()
	f.uc.Members = DirectoryMembership{Directory: &fakeDirectory{pages: []ports.MemberPage{
		{ParticipantIDs: []string{opener, "Ux"}, Next: "page-1"},
		{ParticipantIDs: []string{"Uy"}},
	}}}
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")
	f.send(t, opener, "/vote 1")

	f.send(t, opener, "/status")

	require.Equal(t, "🗳️ Lunch\nVoted: 1 (known members: 3)", f.dispatcher.lastReply())
}

func TestPrivateContextAlwaysRepliesWithGroupHint(t *testing.T) {
	f := newEngineFixture()
	msg := groupMessage(opener, "/poll Lunch | Pizza, Sushi")
	msg.GroupContext = false
	msg.ConversationID = opener

	result, err := f.uc.HandleMessage(context.Background(), msg)

	require.NoError(t, err)
	require.ErrorIs(t, result.Outcome, domainerrors.ErrPrivateContext)
	require.Equal(t, replyPrivateContext, f.dispatcher.lastReply())
	_, ok := f.store.poll(opener)
	require.False(t, ok)
	require.Empty(t, f.store.members)
}

func TestUnrecognizedTextIsObservedWithoutReply(t *testing.T) {
	f := newEngineFixture()

	result := f.send(t, voterB, "good morning")

	require.Equal(t, services.IntentUnrecognized, result.Intent)
	require.False(t, result.Replied)
	require.Empty(t, f.dispatcher.replies)
	members, err := f.store.ListMembers(context.Background(), testConversation)
	require.NoError(t, err)
	require.Equal(t, []string{voterB}, members)
}

func TestJoinRepliesPerMembershipMode(t *testing.T) {
	f := newEngineFixture()
	f.send(t, voterB, "/join")
	require.Equal(t, replyJoined, f.dispatcher.lastReply())

	f.uc.Members = DirectoryMembership{Directory: &fakeDirectory{}}
	f.send(t, voterB, "/join")
	require.Equal(t, replyJoinedDirectory, f.dispatcher.lastReply())
}

func TestStoreFailureRepliesGenericMessage(t *testing.T) {
	f := newEngineFixture()
	f.store.getErr = errors.New("store offline")

	result, err := f.uc.HandleMessage(context.Background(), groupMessage(opener, "/status"))

	require.Error(t, err)
	require.True(t, result.Replied)
	require.Equal(t, replyGenericFailure, f.dispatcher.lastReply())
}

func TestReplyFailureIsReported(t *testing.T) {
	f := newEngineFixture()
	f.dispatcher.replyErr = errors.New("reply token expired")

	result := f.send(t, opener, "/help")

	require.True(t, result.ReplyFailed)
	require.False(t, result.Replied)
}

func TestConcurrentVotesAreNotLost(t *testing.T) {
	f := newEngineFixture()
	f.send(t, opener, "/poll Lunch | Pizza, Sushi")

	const voters = 40
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.uc.HandleMessage(context.Background(), groupMessage(fmt.Sprintf("Uvoter%02d", i), fmt.Sprintf("/vote %d", i%2+1)))
		}(i)
	}
	wg.Wait()

	poll, _ := f.store.poll(testConversation)
	require.Len(t, poll.Voters(), voters)
	require.Zero(t, f.uc.Locks.active())
}
