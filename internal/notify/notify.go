// Package notify derives per-conversation unread counters and a bounded
// notification feed from merged deltas.
package notify

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"vestnik/internal/models"
)

// FeedLimit caps the notification feed at the most recent entries.
const FeedLimit = 6

// ExcerptLen is the maximum notification text length.
const ExcerptLen = 48

// Notification is one entry of the feed. GroupKey is the peer network
// locator for direct conversations, else the conversation id; coalescing by
// GroupKey happens at read time, never on the stored list.
type Notification struct {
	ID           string
	Conversation string
	Label        string
	Text         string
	Timestamp    int64
	GroupKey     string
}

// GroupedNotification is the read-time coalesced projection of the feed.
type GroupedNotification struct {
	Notification
	Count int
}

// Aggregator maintains unread counters and the notification feed. The
// aggregate counter for models.AggregateConversation is always recomputed
// from the per-conversation entries, never mutated independently.
type Aggregator struct {
	mu     sync.Mutex
	unread map[string]int
	feed   []Notification // most recent first
}

func NewAggregator() *Aggregator {
	return &Aggregator{unread: make(map[string]int)}
}

// OnInboundMessage records an inbound message that targets a conversation
// other than the active one: the conversation's unread counter increments by
// exactly one, and unless the conversation is muted a notification is
// prepended to the feed.
func (a *Aggregator) OnInboundMessage(msg models.Message, label, excerpt, groupKey string, muted bool) {
	conv := msg.Conversation
	if conv == "" {
		conv = msg.PeerID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.unread[conv]++

	if muted {
		return
	}
	if groupKey == "" {
		groupKey = conv
	}
	a.feed = append([]Notification{{
		ID:           uuid.NewString(),
		Conversation: conv,
		Label:        label,
		Text:         excerpt,
		Timestamp:    msg.Timestamp,
		GroupKey:     groupKey,
	}}, a.feed...)
	if len(a.feed) > FeedLimit {
		a.feed = a.feed[:FeedLimit]
	}
}

// Unread returns the counter for one conversation. The aggregate id yields
// the sum over all other conversations.
func (a *Aggregator) Unread(conversation string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if conversation == models.AggregateConversation {
		return a.totalLocked()
	}
	return a.unread[conversation]
}

// Counters returns a copy of all per-conversation counters plus the derived
// aggregate entry.
func (a *Aggregator) Counters() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.unread)+1)
	for conv, n := range a.unread {
		if conv == models.AggregateConversation {
			continue
		}
		out[conv] = n
	}
	out[models.AggregateConversation] = a.totalLocked()
	return out
}

func (a *Aggregator) totalLocked() int {
	total := 0
	for conv, n := range a.unread {
		if conv == models.AggregateConversation {
			continue
		}
		total += n
	}
	return total
}

// MarkRead zeroes one conversation counter, or every counter for the
// aggregate id.
func (a *Aggregator) MarkRead(conversation string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if conversation == models.AggregateConversation {
		a.unread = make(map[string]int)
		return
	}
	delete(a.unread, conversation)
}

// Feed returns the raw notification feed, most recent first, filtered by the
// supplied predicate (used to hide blocked or muted conversations without
// mutating stored entries). A nil predicate keeps everything.
func (a *Aggregator) Feed(keep func(Notification) bool) []Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Notification, 0, len(a.feed))
	for _, n := range a.feed {
		if keep != nil && !keep(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Grouped coalesces the feed by group key at read time: one entry per key
// carrying the count and the most recent text and timestamp, sorted most
// recent first. The stored feed is untouched.
func (a *Aggregator) Grouped(keep func(Notification) bool) []GroupedNotification {
	items := a.Feed(keep)

	byKey := make(map[string]*GroupedNotification)
	order := make([]string, 0, len(items))
	for _, n := range items {
		g, ok := byKey[n.GroupKey]
		if !ok {
			byKey[n.GroupKey] = &GroupedNotification{Notification: n, Count: 1}
			order = append(order, n.GroupKey)
			continue
		}
		g.Count++
		if n.Timestamp > g.Timestamp {
			g.Text = n.Text
			g.Timestamp = n.Timestamp
			g.Label = n.Label
		}
	}

	out := make([]GroupedNotification, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// ClearConversation drops one conversation's notifications, or the whole
// feed for the aggregate id.
func (a *Aggregator) ClearConversation(conversation string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if conversation == models.AggregateConversation {
		a.feed = nil
		return
	}
	kept := a.feed[:0]
	for _, n := range a.feed {
		if n.Conversation != conversation {
			kept = append(kept, n)
		}
	}
	a.feed = kept
}
