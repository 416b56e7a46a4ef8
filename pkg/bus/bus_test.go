package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus(nil)

	first, cancelFirst := b.Subscribe(4)
	second, cancelSecond := b.Subscribe(4)
	defer cancelFirst()
	defer cancelSecond()

	b.Publish(ItemDeleted{ID: 7})

	ev := <-first
	deleted, ok := ev.(ItemDeleted)
	require.True(t, ok)
	assert.Equal(t, uint(7), deleted.ID)

	ev = <-second
	deleted, ok = ev.(ItemDeleted)
	require.True(t, ok)
	assert.Equal(t, uint(7), deleted.ID)
}

func TestBusCancelClosesChannel(t *testing.T) {
	b := NewBus(nil)

	ch, cancel := b.Subscribe(1)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	b.Publish(LibraryRescanned{Added: 1})

	// Cancelling twice is harmless.
	cancel()
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	b := NewBus(nil)

	ch, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(ItemDeleted{ID: 1})
	b.Publish(ItemDeleted{ID: 2})

	ev := <-ch
	assert.Equal(t, uint(1), ev.(ItemDeleted).ID)

	select {
	case ev := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", ev)
	default:
	}
}

func TestBusClose(t *testing.T) {
	b := NewBus(nil)

	ch, _ := b.Subscribe(1)
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publish and Subscribe after close are no-ops.
	b.Publish(ItemDeleted{ID: 1})
	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
