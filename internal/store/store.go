package store

import (
	"sort"
	"sync"

	"github.com/c-pro/geche"

	"vestnik/internal/models"
)

// Store is the canonical in-memory representation of the session: rooms,
// peers, applied messages, per-scope cursors and the active conversation.
// All mutators preserve the sequence-id monotonicity invariant; concurrent
// access from the two polling loops is serialized here.
type Store struct {
	mu sync.RWMutex

	rooms geche.Geche[string, models.Room]
	peers geche.Geche[string, models.Peer]

	// messages applied so far, per conversation, in application order
	messages map[string][]models.Message

	// cursors holds the highest applied sequence id per conversation scope,
	// including the aggregate scope.
	cursors map[string]int64

	active string
	me     models.Profile
}

func New() *Store {
	return &Store{
		rooms:    geche.NewMapCache[string, models.Room](),
		peers:    geche.NewMapCache[string, models.Peer](),
		messages: make(map[string][]models.Message),
		cursors:  make(map[string]int64),
		active:   models.AggregateConversation,
	}
}

// ReplaceRooms replaces the room table wholesale from a server snapshot.
// The snapshot is authoritative for existence and attributes; no per-field
// merging happens. A nil snapshot means "unchanged" and is a no-op.
func (s *Store) ReplaceRooms(snapshot []models.Room) {
	if snapshot == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := geche.NewMapCache[string, models.Room]()
	for _, r := range snapshot {
		if r.ID == "" {
			continue
		}
		fresh.Set(r.ID, r)
	}
	s.rooms = fresh
}

// ReplacePeers replaces the peer table wholesale, like ReplaceRooms.
func (s *Store) ReplacePeers(snapshot []models.Peer) {
	if snapshot == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := geche.NewMapCache[string, models.Peer]()
	for _, p := range snapshot {
		if p.ID == "" {
			continue
		}
		fresh.Set(p.ID, p)
	}
	s.peers = fresh
}

// UpsertMessage appends a message to the log of the given fetch scope.
// Server-assigned messages with a sequence id at or below the scope cursor
// are dropped silently: re-applied batches from overlapping polls must be
// no-ops. Optimistic local messages (Seq 0) bypass the cursor check.
func (s *Store) UpsertMessage(scope string, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope == "" {
		scope = models.AggregateConversation
	}
	if !msg.Optimistic {
		if msg.Seq <= s.cursors[scope] {
			return false
		}
		s.cursors[scope] = msg.Seq
	}
	s.messages[scope] = append(s.messages[scope], msg)
	return true
}

// Cursor returns the highest applied sequence id for the scope.
func (s *Store) Cursor(scope string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[scope]
}

// AdvanceCursor raises the scope cursor; it never moves backwards.
func (s *Store) AdvanceCursor(scope string, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.cursors[scope] {
		s.cursors[scope] = seq
	}
}

// ResetCursor zeroes the scope cursor and clears its applied log, forcing a
// full replay on the next fetch. Used on conversation switch.
func (s *Store) ResetCursor(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[scope] = 0
	delete(s.messages, scope)
}

// ActiveConversation returns the currently displayed conversation id.
func (s *Store) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveConversation switches the displayed conversation.
func (s *Store) SetActiveConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
}

// Room looks up a single room by id.
func (s *Store) Room(id string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, err := s.rooms.Get(id)
	return r, err == nil
}

// UpdateRoom applies fn to a stored room, if present. Used by membership
// transitions; room existence itself is only ever decided by snapshots or
// discovery events.
func (s *Store) UpdateRoom(id string, fn func(*models.Room)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.rooms.Get(id)
	if err != nil {
		return false
	}
	fn(&r)
	s.rooms.Set(id, r)
	return true
}

// PutRoom inserts or overwrites a room record directly, for room creation
// responses and discovery events.
func (s *Store) PutRoom(r models.Room) {
	if r.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms.Set(r.ID, r)
}

// Peer looks up a single peer by id.
func (s *Store) Peer(id string) (models.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.peers.Get(id)
	return p, err == nil
}

// Rooms returns a name-sorted copy of the room table.
func (s *Store) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.rooms.Snapshot()
	out := make([]models.Room, 0, len(snapshot))
	for _, r := range snapshot {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Peers returns an id-sorted copy of the peer table.
func (s *Store) Peers() []models.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.peers.Snapshot()
	out := make([]models.Peer, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Messages returns a copy of the applied log for one conversation scope.
func (s *Store) Messages(scope string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[scope]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

// SetProfile merges the self profile reported by the server.
func (s *Store) SetProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID != "" {
		s.me.ID = p.ID
	}
	if p.Name != "" {
		s.me.Name = p.Name
	}
	s.me.Nickname = p.Nickname
}

// Profile returns the last known self profile.
func (s *Store) Profile() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}
