package services

import (
	"sync"
)

// Availability is the live slot triple for one tournament. Filled
// counts registrations in {pending, approved}.
type Availability struct {
	TournamentID string `json:"tournament_id"`
	Key          string `json:"key"`
	Capacity     int    `json:"capacity"`
	Filled       int64  `json:"filled"`
	Remaining    int64  `json:"remaining"`
}

// subscriberBuffer bounds per-subscriber delivery. A stalled consumer
// loses intermediate deltas (the latest one wins), it never blocks the
// publisher or other subscribers.
const subscriberBuffer = 8

// FeedSubscription is one observer's handle on a tournament's
// availability stream. Read from C; call Close when done.
type FeedSubscription struct {
	C chan Availability

	feed         *AvailabilityFeed
	tournamentID string
	once         sync.Once
}

// Close detaches the subscription from the feed. Safe to call more
// than once. The channel is not closed so a racing Publish can never
// send on a closed channel.
func (s *FeedSubscription) Close() {
	s.once.Do(func() {
		s.feed.unsubscribe(s)
	})
}

// AvailabilityFeed fans availability snapshots out to any number of
// subscribers, keyed by tournament ID. Publishers call Publish only
// after their database transaction has committed; the feed itself
// never touches the store and never holds a lock while delivering.
type AvailabilityFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[*FeedSubscription]struct{}
	latest map[string]Availability
}

func NewAvailabilityFeed() *AvailabilityFeed {
	return &AvailabilityFeed{
		subs:   make(map[string]map[*FeedSubscription]struct{}),
		latest: make(map[string]Availability),
	}
}

// Subscribe registers an observer for one tournament. The channel only
// carries snapshots published after this call; a late subscriber takes
// its starting snapshot from a direct read (or Latest) so it can never
// see a cached value that is older than that read.
func (f *AvailabilityFeed) Subscribe(tournamentID string) *FeedSubscription {
	sub := &FeedSubscription{
		C:            make(chan Availability, subscriberBuffer),
		feed:         f,
		tournamentID: tournamentID,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs[tournamentID] == nil {
		f.subs[tournamentID] = make(map[*FeedSubscription]struct{})
	}
	f.subs[tournamentID][sub] = struct{}{}

	return sub
}

// Latest returns the last published snapshot for a tournament, if any.
func (f *AvailabilityFeed) Latest(tournamentID string) (Availability, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.latest[tournamentID]
	return snap, ok
}

// Publish delivers a snapshot to every subscriber of its tournament.
// Delivery is non-blocking: when a subscriber's buffer is full the
// oldest buffered snapshot is dropped in favor of the new one. The
// drain-then-send is retried a few times so a racing publisher filling
// the buffer back up cannot starve the newest snapshot; if contention
// outlasts the retries, Latest still holds the newest value and the
// reconciliation broadcast re-delivers it.
func (f *AvailabilityFeed) Publish(a Availability) {
	f.mu.Lock()
	f.latest[a.TournamentID] = a
	targets := make([]*FeedSubscription, 0, len(f.subs[a.TournamentID]))
	for sub := range f.subs[a.TournamentID] {
		targets = append(targets, sub)
	}
	f.mu.Unlock()

	for _, sub := range targets {
		for tries := 0; tries < 4; tries++ {
			select {
			case sub.C <- a:
			default:
				select {
				case <-sub.C:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount reports how many observers one tournament has.
func (f *AvailabilityFeed) SubscriberCount(tournamentID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[tournamentID])
}

func (f *AvailabilityFeed) unsubscribe(sub *FeedSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[sub.tournamentID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(f.subs, sub.tournamentID)
		}
	}
}
