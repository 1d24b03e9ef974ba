package models

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

// AggregateConversation is the reserved conversation identifier for the
// "all conversations" home view.
const AggregateConversation = "all"

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type Membership string

const (
	MembershipNone    Membership = "not-joined"
	MembershipPending Membership = "pending"
	MembershipJoined  Membership = "joined"
)

// Message represents a single unit of conversation content. Seq is assigned
// by the server; optimistic local copies carry Seq 0 until their echo arrives.
type Message struct {
	Seq          int64     `json:"id"`
	Direction    Direction `json:"direction"`
	Conversation string    `json:"room"`
	PeerID       string    `json:"peer_id"`
	Text         string    `json:"text"`
	Timestamp    int64     `json:"ts"`
	Optimistic   bool      `json:"optimistic,omitempty"`
	LocalID      string    `json:"-"`
}

// Room represents a named, possibly access-controlled conversation.
type Room struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MemberCount  int      `json:"member_count"`
	MaxMembers   int      `json:"max_members,omitempty"`
	Locked       bool     `json:"locked"`
	IsOwner      bool     `json:"is_owner"`
	OwnerID      string   `json:"owner_id,omitempty"`
	Discoverable bool     `json:"discoverable"`
	Members      []string `json:"members,omitempty"`

	// The server reports membership as two booleans.
	Joined  bool `json:"joined"`
	Pending bool `json:"pending"`
}

// Membership collapses the wire booleans into the three-state machine value.
func (r Room) Membership() Membership {
	switch {
	case r.Joined:
		return MembershipJoined
	case r.Pending:
		return MembershipPending
	default:
		return MembershipNone
	}
}

// SetMembership writes a machine state back into the wire booleans.
func (r *Room) SetMembership(m Membership) {
	r.Joined = m == MembershipJoined
	r.Pending = m == MembershipPending
}

// Peer represents a directly addressable counterpart.
type Peer struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
	LastSeen int64  `json:"last_seen,omitempty"`
	Addr     string `json:"ip,omitempty"` // display only
}

// Profile is the local identity as reported by the server.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type RoomEventType string

const (
	RoomEventJoined     RoomEventType = "room_joined"
	RoomEventJoinDenied RoomEventType = "room_join_denied"
	RoomEventDiscovered RoomEventType = "room_discovered"
	RoomEventKicked     RoomEventType = "room_kicked"
)

// RoomEvent is a discrete membership event delivered inside a delta batch.
type RoomEvent struct {
	Type   RoomEventType `json:"type"`
	RoomID string        `json:"room_id"`
	Name   string        `json:"name,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// StateResponse is one delta batch: everything one incremental fetch returns.
// A nil Rooms or Peers slice means "unchanged", not "empty".
type StateResponse struct {
	Me         *Profile    `json:"me,omitempty"`
	Rooms      []Room      `json:"rooms"`
	Peers      []Peer      `json:"peers"`
	Messages   []Message   `json:"messages"`
	RoomEvents []RoomEvent `json:"room_events"`
}

// CreateRoomRequest carries the room creation parameters.
type CreateRoomRequest struct {
	Name         string `json:"name"`
	Password     string `json:"password,omitempty"`
	MaxMembers   int    `json:"max_members"`
	Discoverable bool   `json:"discoverable"`
}
