package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/ports"
)

type fakeStore struct {
	mu      sync.Mutex
	polls   map[string]entities.Poll
	members map[string]map[string]struct{}
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		polls:   make(map[string]entities.Poll),
		members: make(map[string]map[string]struct{}),
	}
}

func (s *fakeStore) GetPoll(_ context.Context, conversationID string) (entities.Poll, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return entities.Poll{}, false, s.getErr
	}
	poll, ok := s.polls[conversationID]
	if !ok {
		return entities.Poll{}, false, nil
	}
	return poll.Clone(), true, nil
}

func (s *fakeStore) SavePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[poll.ConversationID] = poll.Clone()
	return nil
}

func (s *fakeStore) DeletePoll(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.polls, conversationID)
	return nil
}

func (s *fakeStore) ListOpenConversations(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.polls))
	for conversationID := range s.polls {
		out = append(out, conversationID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) AddMember(_ context.Context, conversationID string, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[conversationID] == nil {
		s.members[conversationID] = make(map[string]struct{})
	}
	s.members[conversationID][participantID] = struct{}{}
	return nil
}

func (s *fakeStore) ListMembers(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.members[conversationID]))
	for participantID := range s.members[conversationID] {
		out = append(out, participantID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) poll(conversationID string) (entities.Poll, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[conversationID]
	return poll, ok
}

type sentReply struct {
	token    string
	messages []entities.OutboundMessage
}

type fakeDispatcher struct {
	mu            sync.Mutex
	replies       []sentReply
	broadcasts    []entities.OutboundMessage
	attempts      int
	replyErr      error
	failBroadcast func(attempt int, message entities.OutboundMessage) bool
}

func (d *fakeDispatcher) Reply(_ context.Context, replyToken string, messages ...entities.OutboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.replyErr != nil {
		return d.replyErr
	}
	d.replies = append(d.replies, sentReply{token: replyToken, messages: messages})
	return nil
}

func (d *fakeDispatcher) Broadcast(_ context.Context, _ string, message entities.OutboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	attempt := d.attempts
	d.attempts++
	if d.failBroadcast != nil && d.failBroadcast(attempt, message) {
		return errors.New("push rejected")
	}
	d.broadcasts = append(d.broadcasts, message)
	return nil
}

func (d *fakeDispatcher) lastReply() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.replies) == 0 {
		return ""
	}
	return d.replies[len(d.replies)-1].messages[0].Text
}

type fakeDirectory struct {
	pages []ports.MemberPage
	err   error
	calls int
}

func (d *fakeDirectory) ListMemberPage(_ context.Context, _ string, cursor string) (ports.MemberPage, error) {
	d.calls++
	if d.err != nil {
		return ports.MemberPage{}, d.err
	}
	index := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "page-%d", &index)
	}
	if index >= len(d.pages) {
		return ports.MemberPage{}, nil
	}
	return d.pages[index], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.EventEnvelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDs) NewID(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
