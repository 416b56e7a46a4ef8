package bus

import (
	"sync"
	"time"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
	"github.com/DarkPhilosophy/snapify/pkg/log"
)

// Event is a lifecycle notification published by the core. Delivery order
// per item follows the operation order that produced the events; no order
// is guaranteed across distinct items.
type Event interface {
	Kind() string
}

// ItemDetected announces a file that passed classification, before the
// store insert completed. TempRef is a throwaway correlation id.
type ItemDetected struct {
	TempRef string
	Path    string
}

func (ItemDetected) Kind() string { return "item_detected" }

// ItemAdded announces a freshly persisted item.
type ItemAdded struct {
	Item *models.MediaItem
}

func (ItemAdded) Kind() string { return "item_added" }

// ItemUpdated announces a state change on a tracked item, including the
// periodic countdown refresh while a deadline is armed.
type ItemUpdated struct {
	Item      *models.MediaItem
	Remaining time.Duration
}

func (ItemUpdated) Kind() string { return "item_updated" }

// ItemDeleted announces that an item was retired and its row removed.
type ItemDeleted struct {
	ID uint
}

func (ItemDeleted) Kind() string { return "item_deleted" }

// LibraryRescanned is the single aggregate event emitted by a full rescan.
type LibraryRescanned struct {
	Added int
}

func (LibraryRescanned) Kind() string { return "library_rescanned" }

// Bus fans events out to all current subscribers. Publishing never blocks:
// events for a subscriber with a full buffer are dropped.
type Bus struct {
	mutex  sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
	log    log.LoggerService
}

func NewBus(logger log.LoggerService) *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		log:  logger,
	}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns the event channel plus a cancel function. Cancelling closes the
// channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.next
	b.next++

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer space.
func (b *Bus) Publish(event Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
			if b.log != nil {
				b.log.Debug("Dropped '%s' event for slow subscriber", event.Kind())
			}
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}
