package engine

import (
	"vestnik/internal/content"
	"vestnik/internal/models"
	"vestnik/internal/notify"
)

// Apply merges one delta batch fetched for the given conversation scope.
// Batch processing order is fixed:
//
//  1. profile and room/peer snapshots (wholesale replacement; nil means
//     unchanged)
//  2. access-revoked check for the active conversation
//  3. messages in sequence order: pending-echo suppression, block filtering,
//     then store upsert — but only while the batch scope still matches the
//     active conversation (a stale response for an abandoned conversation
//     must not touch the current view)
//  4. cursor advance for the batch scope
//  5. unread/notification dispatch for inbound messages off the active
//     conversation
//  6. membership events, in event order
//
// Re-applying a batch is a no-op thanks to the per-scope monotonicity check.
func (e *Engine) Apply(scope string, batch *models.StateResponse) {
	if batch == nil {
		return
	}
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()

	if batch.Me != nil {
		e.store.SetProfile(*batch.Me)
	}
	e.store.ReplaceRooms(batch.Rooms)
	e.store.ReplacePeers(batch.Peers)

	// The active room may have vanished from the snapshot or lost its
	// membership; keep rendering it would show a room the user can no
	// longer see.
	active := e.store.ActiveConversation()
	if room, ok := e.store.Room(active); ok && room.Membership() == models.MembershipNone {
		e.log.Info("access to active room revoked", "room", active)
		e.switchHome()
		active = models.AggregateConversation
	}

	scopeMatches := scope == active
	var highest int64
	for _, msg := range batch.Messages {
		if msg.Seq > highest {
			highest = msg.Seq
		}

		conv := msg.Conversation
		if conv == "" {
			conv = msg.PeerID
		}
		blocked := msg.Direction == models.DirectionIn && e.prefs != nil && e.prefs.IsBlocked(msg.PeerID)

		if scopeMatches {
			switch {
			case msg.Direction == models.DirectionOut && !msg.Optimistic && e.pending.TryConsume(msg.Text, conv):
				// the echo of an optimistic message already rendered
			case blocked:
			default:
				e.store.UpsertMessage(scope, msg)
			}
		}

		// Unread accounting belongs to the aggregate scope only: it is the
		// one scope whose batches carry off-active traffic exactly once.
		// Counting from room-scoped batches as well would double-count
		// against the background loop when a stale response straggles in.
		if scope == models.AggregateConversation && msg.Direction == models.DirectionIn && !blocked && conv != active {
			e.dispatchUnread(msg, conv)
		}
	}
	if highest > 0 {
		e.store.AdvanceCursor(scope, highest)
	}

	e.applyRoomEvents(batch.RoomEvents)
}

func (e *Engine) dispatchUnread(msg models.Message, conv string) {
	muted := e.prefs != nil && e.prefs.IsMuted(conv)

	// Direct conversations group by the peer's network locator so repeated
	// pings from one host coalesce; rooms group by their id.
	groupKey := conv
	if _, isRoom := e.store.Room(conv); !isRoom {
		if peer, ok := e.store.Peer(msg.PeerID); ok && peer.Addr != "" {
			groupKey = peer.Addr
		}
	}

	e.unread.OnInboundMessage(
		msg,
		e.conversationLabel(conv),
		content.Excerpt(msg.Text, notify.ExcerptLen),
		groupKey,
		muted,
	)
}

// applyRoomEvents drives the membership state machine. Transitions happen
// only through these discrete events or explicit user actions, never
// inferred from message traffic.
func (e *Engine) applyRoomEvents(events []models.RoomEvent) {
	for _, event := range events {
		switch event.Type {
		case models.RoomEventJoined:
			e.store.UpdateRoom(event.RoomID, func(r *models.Room) {
				r.SetMembership(models.MembershipJoined)
			})
			e.toast("Joined " + eventLabel(event))

		case models.RoomEventJoinDenied:
			e.store.UpdateRoom(event.RoomID, func(r *models.Room) {
				r.SetMembership(models.MembershipNone)
			})
			if event.Reason != "" {
				e.toast(event.Reason)
			} else {
				e.toast("Join denied")
			}

		case models.RoomEventDiscovered:
			if _, ok := e.store.Room(event.RoomID); !ok {
				e.store.PutRoom(models.Room{
					ID:           event.RoomID,
					Name:         event.Name,
					Discoverable: true,
				})
			}
			e.toast("New room: " + eventLabel(event))

		case models.RoomEventKicked:
			e.store.UpdateRoom(event.RoomID, func(r *models.Room) {
				r.SetMembership(models.MembershipNone)
			})
			if event.Reason != "" {
				e.toast(event.Reason)
			} else {
				e.toast("Removed from room")
			}
			e.unread.MarkRead(event.RoomID)
			if event.RoomID != "" && e.store.ActiveConversation() == event.RoomID {
				e.switchHome()
			}

		default:
			e.log.Debug("unknown room event", "type", string(event.Type))
		}
	}
}

func eventLabel(event models.RoomEvent) string {
	if event.Name != "" {
		return event.Name
	}
	return "room"
}
