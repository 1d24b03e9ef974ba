// Package engine drives incremental state synchronization against the chat
// server: it schedules the polling loops, merges delta batches into the model
// store, reconciles optimistic sends and applies membership transitions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vestnik/internal/api"
	"vestnik/internal/content"
	"vestnik/internal/models"
	"vestnik/internal/notify"
	"vestnik/internal/store"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotJoined    = errors.New("room not joined")
)

const (
	maxNicknameLen = 32
	maxRoomNameLen = 40
	minPasswordLen = 4
	minRoomMembers = 2
	maxRoomMembers = 200
	defaultMembers = 12
)

// Preferences is the read surface of the local block/mute lists.
type Preferences interface {
	IsBlocked(peerID string) bool
	IsMuted(conversation string) bool
}

// Toaster receives transient informational notices. The rendering layer
// provides the real implementation; a nil Toaster discards them.
type Toaster interface {
	Toast(text string)
}

type Config struct {
	Client             api.Fetcher
	Prefs              Preferences
	Toaster            Toaster
	Logger             *slog.Logger
	ForegroundInterval time.Duration
	BackgroundInterval time.Duration
	MaxUploadBytes     int64
}

// Engine owns the session state and is the only legal mutation path for both
// server deltas and user actions.
type Engine struct {
	store   *store.Store
	pending *store.PendingLedger
	unread  *notify.Aggregator
	client  api.Fetcher
	prefs   Preferences
	toaster Toaster
	log     *slog.Logger

	fgInterval time.Duration
	bgInterval time.Duration
	maxUpload  int64

	// mergeMu serializes batch application across the two polling loops.
	mergeMu sync.Mutex

	// one in-flight guard per cadence: a tick that finds its guard held is
	// skipped, never queued
	fgFetching atomic.Bool
	bgFetching atomic.Bool

	// wakes the foreground loop for an immediate forced fetch
	forceCh chan struct{}

	now func() time.Time
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ForegroundInterval <= 0 {
		cfg.ForegroundInterval = time.Second
	}
	if cfg.BackgroundInterval <= 0 {
		cfg.BackgroundInterval = 2 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Engine{
		store:      store.New(),
		pending:    store.NewPendingLedger(store.DefaultPendingLimit),
		unread:     notify.NewAggregator(),
		client:     cfg.Client,
		prefs:      cfg.Prefs,
		toaster:    cfg.Toaster,
		log:        logger,
		fgInterval: cfg.ForegroundInterval,
		bgInterval: cfg.BackgroundInterval,
		maxUpload:  cfg.MaxUploadBytes,
		forceCh:    make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Store exposes the read-only model snapshots for consumers.
func (e *Engine) Store() *store.Store {
	return e.store
}

// ActiveConversation returns the conversation currently displayed.
func (e *Engine) ActiveConversation() string {
	return e.store.ActiveConversation()
}

// SwitchConversation changes the displayed conversation, clears its unread
// state, resets its replay cursor and triggers an immediate forced fetch.
// Switching to a room that is not joined is refused; joining is a separate
// action.
func (e *Engine) SwitchConversation(id string) error {
	if id == e.store.ActiveConversation() {
		return nil
	}
	if room, ok := e.store.Room(id); ok && room.Membership() != models.MembershipJoined {
		return fmt.Errorf("%w: %s", ErrNotJoined, id)
	}

	e.store.SetActiveConversation(id)
	e.store.ResetCursor(id)
	e.unread.MarkRead(id)
	e.unread.ClearConversation(id)
	e.forceFetch()
	return nil
}

// MarkRead zeroes one conversation's unread counter, or all of them for the
// aggregate identifier.
func (e *Engine) MarkRead(conversation string) {
	e.unread.MarkRead(conversation)
}

// Unread returns the counter for a conversation; the aggregate id yields the
// derived sum.
func (e *Engine) Unread(conversation string) int {
	return e.unread.Unread(conversation)
}

// UnreadCounters returns all counters including the derived aggregate.
func (e *Engine) UnreadCounters() map[string]int {
	return e.unread.Counters()
}

// Notifications returns the coalesced notification feed, hiding entries for
// blocked peers and muted conversations at read time.
func (e *Engine) Notifications() []notify.GroupedNotification {
	return e.unread.Grouped(func(n notify.Notification) bool {
		if e.prefs == nil {
			return true
		}
		return !e.prefs.IsBlocked(n.Conversation) && !e.prefs.IsMuted(n.Conversation)
	})
}

// Peers returns the peer table with blocked peers filtered out.
func (e *Engine) Peers() []models.Peer {
	peers := e.store.Peers()
	if e.prefs == nil {
		return peers
	}
	kept := peers[:0]
	for _, p := range peers {
		if !e.prefs.IsBlocked(p.ID) {
			kept = append(kept, p)
		}
	}
	return kept
}

// Rooms returns the room table snapshot.
func (e *Engine) Rooms() []models.Room {
	return e.store.Rooms()
}

// Messages returns the applied log for a conversation scope.
func (e *Engine) Messages(scope string) []models.Message {
	return e.store.Messages(scope)
}

// SendText registers a pending send, inserts the optimistic message into the
// active conversation and posts the payload. A send failure surfaces as a
// toast; the optimistic message is not retracted and there is no retry.
func (e *Engine) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	target := e.store.ActiveConversation()
	e.pending.Register(text, target)
	e.store.UpsertMessage(target, models.Message{
		Direction:    models.DirectionOut,
		Conversation: target,
		PeerID:       "me",
		Text:         text,
		Timestamp:    e.now().Unix(),
		Optimistic:   true,
		LocalID:      uuid.NewString(),
	})

	if err := e.client.Send(ctx, target, text); err != nil {
		e.toast("Send failed")
		return err
	}
	return nil
}

// SendFile uploads the file, wraps the server reference into a file payload
// and sends it through the regular text channel.
func (e *Engine) SendFile(ctx context.Context, name string, data []byte) error {
	if int64(len(data)) > e.maxUpload {
		e.toast("File too large")
		return fmt.Errorf("file exceeds %d bytes", e.maxUpload)
	}

	result, err := e.client.Upload(ctx, name, data)
	if err != nil {
		e.toast("Upload failed")
		return err
	}
	payload, err := content.EncodeFile(result.Name, data, result.URL)
	if err != nil {
		return err
	}
	return e.SendText(ctx, payload)
}

// CreateRoom validates the request, creates the room and records its
// snapshot fragment.
func (e *Engine) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.New("room name required")
	}
	if len([]rune(req.Name)) > maxRoomNameLen {
		return nil, fmt.Errorf("room name too long (max %d)", maxRoomNameLen)
	}
	if req.Password != "" && len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("password too short (min %d)", minPasswordLen)
	}
	if req.MaxMembers <= 0 {
		req.MaxMembers = defaultMembers
	}
	if req.MaxMembers < minRoomMembers {
		req.MaxMembers = minRoomMembers
	}
	if req.MaxMembers > maxRoomMembers {
		req.MaxMembers = maxRoomMembers
	}

	room, err := e.client.CreateRoom(ctx, req)
	if err != nil {
		e.toast("Room creation failed")
		return nil, err
	}
	e.store.PutRoom(*room)
	e.toast("Room created")
	return room, nil
}

// JoinRoom requests membership. The transition to pending is optimistic;
// the server confirms through a later room event or snapshot.
func (e *Engine) JoinRoom(ctx context.Context, roomID, password string) error {
	if err := e.client.JoinRoom(ctx, roomID, password); err != nil {
		e.toast("Join failed")
		return err
	}
	e.store.UpdateRoom(roomID, func(r *models.Room) {
		if r.Membership() == models.MembershipNone {
			r.SetMembership(models.MembershipPending)
		}
	})
	e.toast("Join request sent")
	return nil
}

// LeaveRoom leaves the room, zeroes its unread state and falls back to the
// aggregate view when the left room was active.
func (e *Engine) LeaveRoom(ctx context.Context, roomID string) error {
	if err := e.client.LeaveRoom(ctx, roomID); err != nil {
		e.toast("Leave failed")
		return err
	}
	e.store.UpdateRoom(roomID, func(r *models.Room) {
		r.SetMembership(models.MembershipNone)
	})
	e.unread.MarkRead(roomID)
	e.unread.ClearConversation(roomID)
	if e.store.ActiveConversation() == roomID {
		e.switchHome()
	}
	e.toast("Left room")
	return nil
}

// KickMember removes a member from an owned room and forces a refresh so the
// member list catches up.
func (e *Engine) KickMember(ctx context.Context, roomID, memberID string) error {
	if err := e.client.KickMember(ctx, roomID, memberID); err != nil {
		e.toast("Kick failed")
		return err
	}
	e.forceFetch()
	e.toast("Member removed")
	return nil
}

// SetNickname updates the local identity.
func (e *Engine) SetNickname(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if len([]rune(nickname)) > maxNicknameLen {
		return fmt.Errorf("nickname too long (max %d)", maxNicknameLen)
	}
	profile, err := e.client.SetNickname(ctx, nickname)
	if err != nil {
		e.toast("Nickname update failed")
		return err
	}
	if profile != nil {
		e.store.SetProfile(*profile)
	}
	return nil
}

// switchHome navigates to the aggregate view and schedules a forced fetch.
func (e *Engine) switchHome() {
	e.store.SetActiveConversation(models.AggregateConversation)
	e.store.ResetCursor(models.AggregateConversation)
	e.forceFetch()
}

func (e *Engine) forceFetch() {
	select {
	case e.forceCh <- struct{}{}:
	default:
	}
}

func (e *Engine) toast(text string) {
	if e.toaster != nil {
		e.toaster.Toast(text)
	}
}

func (e *Engine) conversationLabel(conv string) string {
	if conv == models.AggregateConversation {
		return "Home"
	}
	if room, ok := e.store.Room(conv); ok && room.Name != "" {
		return room.Name
	}
	if peer, ok := e.store.Peer(conv); ok && peer.Nickname != "" {
		return peer.Nickname
	}
	if len(conv) > 8 {
		return conv[:8]
	}
	return conv
}
