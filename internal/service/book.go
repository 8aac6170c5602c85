package service

import (
	"sync"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/truck-ledger-bfa-go/internal/ledger"
)

// Book is an immutable snapshot of the ledger: every trip known to the
// service and their running all-time summary. Changes produce a new Book with
// the next version; a Book handed to a reader is never modified.
type Book struct {
	Version uint64
	Trips   []domain.TripRecord
	Total   ledger.Summary

	index map[string]int
}

func newBook(version uint64, trips []domain.TripRecord) *Book {
	b := &Book{
		Version: version,
		Trips:   trips,
		Total:   ledger.Summarize(trips),
		index:   make(map[string]int, len(trips)),
	}
	for i, t := range trips {
		b.index[t.ID] = i
	}
	return b
}

// Get returns the trip with the given id.
func (b *Book) Get(id string) (domain.TripRecord, bool) {
	i, ok := b.index[id]
	if !ok {
		return domain.TripRecord{}, false
	}
	return b.Trips[i], true
}

// put returns the next Book with trip added, or replacing the stored trip
// with the same id. New trips go first, matching the newest-first listing.
func (b *Book) put(trip domain.TripRecord) *Book {
	next := &Book{Version: b.Version + 1, Total: b.Total.Clone()}

	if i, ok := b.index[trip.ID]; ok {
		next.Trips = make([]domain.TripRecord, len(b.Trips))
		copy(next.Trips, b.Trips)
		next.Trips[i] = trip
		next.index = b.index
		next.Total.Replace(b.Trips[i], trip)
		return next
	}

	next.Trips = make([]domain.TripRecord, 0, len(b.Trips)+1)
	next.Trips = append(next.Trips, trip)
	next.Trips = append(next.Trips, b.Trips...)
	next.Total.Add(trip)
	next.reindex()
	return next
}

// remove returns the next Book without the trip. Removing an unknown id
// still advances the version.
func (b *Book) remove(id string) *Book {
	next := &Book{Version: b.Version + 1, Total: b.Total.Clone()}

	i, ok := b.index[id]
	if !ok {
		next.Trips = b.Trips
		next.index = b.index
		return next
	}

	next.Trips = make([]domain.TripRecord, 0, len(b.Trips)-1)
	next.Trips = append(next.Trips, b.Trips[:i]...)
	next.Trips = append(next.Trips, b.Trips[i+1:]...)
	next.Total.Remove(b.Trips[i])
	next.reindex()
	return next
}

func (b *Book) reindex() {
	b.index = make(map[string]int, len(b.Trips))
	for i, t := range b.Trips {
		b.index[t.ID] = i
	}
}

// keyedLock serializes mutations per trip id without blocking: a second
// caller for a busy id is turned away instead of queued.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]struct{})}
}

func (k *keyedLock) TryLock(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, busy := k.held[id]; busy {
		return false
	}
	k.held[id] = struct{}{}
	return true
}

func (k *keyedLock) Unlock(id string) {
	k.mu.Lock()
	delete(k.held, id)
	k.mu.Unlock()
}
