package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
	"pollbot/contexts/community-experience/group-poll-service/ports"

	"github.com/google/uuid"
)

// Store keeps active polls, observed members and archived results in
// process memory. Polls are cloned on the way in and out so callers never
// share ballot maps with the store.
type Store struct {
	mu sync.RWMutex

	polls    map[string]entities.Poll
	members  map[string]map[string]struct{}
	archived map[string]entities.ClosedPollRecord
}

func NewStore() *Store {
	return &Store{
		polls:    make(map[string]entities.Poll),
		members:  make(map[string]map[string]struct{}),
		archived: make(map[string]entities.ClosedPollRecord),
	}
}

func (s *Store) GetPoll(_ context.Context, conversationID string) (entities.Poll, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[strings.TrimSpace(conversationID)]
	if !ok {
		return entities.Poll{}, false, nil
	}
	return poll.Clone(), true, nil
}

func (s *Store) SavePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[strings.TrimSpace(poll.ConversationID)] = poll.Clone()
	return nil
}

func (s *Store) DeletePoll(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.polls, strings.TrimSpace(conversationID))
	return nil
}

func (s *Store) ListOpenConversations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]string, 0, len(s.polls))
	for conversationID := range s.polls {
		items = append(items, conversationID)
	}
	sort.Strings(items)
	return items, nil
}

func (s *Store) AddMember(_ context.Context, conversationID string, participantID string) error {
	conversationID = strings.TrimSpace(conversationID)
	participantID = strings.TrimSpace(participantID)
	if conversationID == "" || participantID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[conversationID]
	if !ok {
		set = make(map[string]struct{})
		s.members[conversationID] = set
	}
	set[participantID] = struct{}{}
	return nil
}

func (s *Store) ListMembers(_ context.Context, conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.members[strings.TrimSpace(conversationID)]
	items := make([]string, 0, len(set))
	for participantID := range set {
		items = append(items, participantID)
	}
	sort.Strings(items)
	return items, nil
}

func (s *Store) ArchiveClosedPoll(_ context.Context, record entities.ClosedPollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Options = append([]string(nil), record.Options...)
	record.Counts = append([]int(nil), record.Counts...)
	s.archived[strings.TrimSpace(record.PollID)] = record
	return nil
}

// ArchivedPolls returns archived results ordered by close time.
func (s *Store) ArchivedPolls() []entities.ClosedPollRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ClosedPollRecord, 0, len(s.archived))
	for _, record := range s.archived {
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ClosedAt.Equal(items[j].ClosedAt) {
			return items[i].PollID < items[j].PollID
		}
		return items[i].ClosedAt.Before(items[j].ClosedAt)
	})
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PollStore = (*Store)(nil)
var _ ports.MemberRegistry = (*Store)(nil)
var _ ports.ResultArchive = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
