package store

import (
	"testing"

	"vestnik/internal/models"
)

func TestUpsertMessage_Monotonic(t *testing.T) {
	s := New()

	if !s.UpsertMessage("room1", models.Message{Seq: 5, Conversation: "room1", Text: "a"}) {
		t.Fatal("first message should apply")
	}
	if s.UpsertMessage("room1", models.Message{Seq: 5, Conversation: "room1", Text: "a"}) {
		t.Error("duplicate seq should be ignored")
	}
	if s.UpsertMessage("room1", models.Message{Seq: 3, Conversation: "room1", Text: "old"}) {
		t.Error("stale seq should be ignored")
	}
	if !s.UpsertMessage("room1", models.Message{Seq: 6, Conversation: "room1", Text: "b"}) {
		t.Error("newer seq should apply")
	}

	if got := s.Cursor("room1"); got != 6 {
		t.Errorf("expected cursor 6, got %d", got)
	}
	if got := len(s.Messages("room1")); got != 2 {
		t.Errorf("expected 2 messages, got %d", got)
	}
}

func TestUpsertMessage_OptimisticBypassesCursor(t *testing.T) {
	s := New()
	s.UpsertMessage("p1", models.Message{Seq: 10, Conversation: "p1", Text: "in"})

	ok := s.UpsertMessage("p1", models.Message{
		Conversation: "p1",
		Text:         "mine",
		Optimistic:   true,
	})
	if !ok {
		t.Fatal("optimistic message should always apply")
	}
	if got := s.Cursor("p1"); got != 10 {
		t.Errorf("optimistic message must not move the cursor, got %d", got)
	}
}

func TestUpsertMessage_ScopesAreIndependent(t *testing.T) {
	s := New()
	s.UpsertMessage(models.AggregateConversation, models.Message{Seq: 7, Conversation: "roomX"})

	// The same global seq fetched later under the room's own scope applies
	// fresh: each fetch scope owns its cursor.
	if !s.UpsertMessage("roomX", models.Message{Seq: 7, Conversation: "roomX"}) {
		t.Error("room scope has its own cursor")
	}
}

func TestReplaceRooms_Wholesale(t *testing.T) {
	s := New()
	s.ReplaceRooms([]models.Room{
		{ID: "a", Name: "Alpha", Joined: true},
		{ID: "b", Name: "Beta"},
	})
	s.ReplaceRooms([]models.Room{
		{ID: "b", Name: "Beta renamed"},
	})

	if _, ok := s.Room("a"); ok {
		t.Error("room absent from snapshot should be dropped")
	}
	room, ok := s.Room("b")
	if !ok {
		t.Fatal("room b missing")
	}
	if room.Name != "Beta renamed" {
		t.Errorf("expected replaced attributes, got %q", room.Name)
	}
}

func TestReplaceRooms_NilMeansUnchanged(t *testing.T) {
	s := New()
	s.ReplaceRooms([]models.Room{{ID: "a", Name: "Alpha"}})
	s.ReplaceRooms(nil)

	if _, ok := s.Room("a"); !ok {
		t.Error("nil snapshot must not clear the table")
	}
}

func TestReplacePeers_Wholesale(t *testing.T) {
	s := New()
	s.ReplacePeers([]models.Peer{{ID: "p1", Nickname: "old"}})
	s.ReplacePeers([]models.Peer{{ID: "p1"}, {ID: "p2"}})

	peer, ok := s.Peer("p1")
	if !ok {
		t.Fatal("peer p1 missing")
	}
	if peer.Nickname != "" {
		t.Error("peer attributes must be replaced, not merged")
	}
	if got := len(s.Peers()); got != 2 {
		t.Errorf("expected 2 peers, got %d", got)
	}
}

func TestResetCursor(t *testing.T) {
	s := New()
	s.UpsertMessage("room1", models.Message{Seq: 9, Conversation: "room1"})
	s.ResetCursor("room1")

	if got := s.Cursor("room1"); got != 0 {
		t.Errorf("expected cursor 0 after reset, got %d", got)
	}
	if got := len(s.Messages("room1")); got != 0 {
		t.Errorf("expected empty log after reset, got %d", got)
	}
	// full replay applies again
	if !s.UpsertMessage("room1", models.Message{Seq: 9, Conversation: "room1"}) {
		t.Error("replayed message should apply after reset")
	}
}

func TestAdvanceCursor_NeverBackwards(t *testing.T) {
	s := New()
	s.AdvanceCursor("room1", 10)
	s.AdvanceCursor("room1", 4)
	if got := s.Cursor("room1"); got != 10 {
		t.Errorf("expected cursor 10, got %d", got)
	}
}

func TestUpdateRoom(t *testing.T) {
	s := New()
	s.ReplaceRooms([]models.Room{{ID: "a", Name: "Alpha"}})

	if !s.UpdateRoom("a", func(r *models.Room) { r.SetMembership(models.MembershipPending) }) {
		t.Fatal("update on existing room should succeed")
	}
	room, _ := s.Room("a")
	if room.Membership() != models.MembershipPending {
		t.Errorf("expected pending, got %s", room.Membership())
	}
	if s.UpdateRoom("missing", func(r *models.Room) {}) {
		t.Error("update on missing room should report false")
	}
}

func TestSetProfile_Merges(t *testing.T) {
	s := New()
	s.SetProfile(models.Profile{ID: "me1", Name: "anon-1"})
	s.SetProfile(models.Profile{Nickname: "nick"})

	p := s.Profile()
	if p.ID != "me1" || p.Name != "anon-1" || p.Nickname != "nick" {
		t.Errorf("unexpected profile: %+v", p)
	}
}
