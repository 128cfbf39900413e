package memory

import (
	"context"
	"testing"
	"time"

	"pollbot/contexts/community-experience/group-poll-service/domain/entities"
)

func TestStoreClonesPollsInAndOut(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	poll, err := entities.NewPoll("p1", "C1", "Lunch", []string{"Pizza", "Sushi"}, "Ua", time.Now())
	if err != nil {
		t.Fatalf("new poll: %v", err)
	}
	if err := store.SavePoll(ctx, poll); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := poll.Vote("Ua", []int{1}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	stored, ok, err := store.GetPoll(ctx, "C1")
	if err != nil || !ok {
		t.Fatalf("expected stored poll, ok=%v err=%v", ok, err)
	}
	if stored.HasVoted("Ua") {
		t.Fatalf("stored poll must not see caller mutations")
	}

	if _, err := stored.Vote("Ub", []int{2}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	again, _, _ := store.GetPoll(ctx, "C1")
	if again.HasVoted("Ub") {
		t.Fatalf("returned poll must not alias the stored one")
	}
}

func TestStoreListsOpenConversationsAndDeletes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, conversationID := range []string{"C2", "C1"} {
		poll, _ := entities.NewPoll("p-"+conversationID, conversationID, "T", []string{"A"}, "U", time.Now())
		if err := store.SavePoll(ctx, poll); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	open, _ := store.ListOpenConversations(ctx)
	if len(open) != 2 || open[0] != "C1" || open[1] != "C2" {
		t.Fatalf("unexpected open conversations %v", open)
	}

	if err := store.DeletePoll(ctx, "C1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetPoll(ctx, "C1"); ok {
		t.Fatalf("expected poll to be deleted")
	}
}

func TestStoreMembersAreDeduplicated(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.AddMember(ctx, "C1", "Ub")
	_ = store.AddMember(ctx, "C1", " Ua ")
	_ = store.AddMember(ctx, "C1", "Ub")
	_ = store.AddMember(ctx, "C1", "")
	_ = store.AddMember(ctx, "C2", "Uz")

	members, err := store.ListMembers(ctx, "C1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 || members[0] != "Ua" || members[1] != "Ub" {
		t.Fatalf("unexpected members %v", members)
	}
}

func TestStoreArchivedPollsOrderedByCloseTime(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	_ = store.ArchiveClosedPoll(ctx, entities.ClosedPollRecord{PollID: "late", ClosedAt: base.Add(time.Hour)})
	_ = store.ArchiveClosedPoll(ctx, entities.ClosedPollRecord{PollID: "early", ClosedAt: base})
	_ = store.ArchiveClosedPoll(ctx, entities.ClosedPollRecord{PollID: "early", ClosedAt: base})

	archived := store.ArchivedPolls()
	if len(archived) != 2 || archived[0].PollID != "early" || archived[1].PollID != "late" {
		t.Fatalf("unexpected archive order %+v", archived)
	}
}
