package notify

import (
	"sync"
	"time"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
	"github.com/DarkPhilosophy/snapify/pkg/log"
)

// Notifier is the contract for the external decision/notification surface.
// The core computes countdowns regardless of notification settings; the
// notifier decides what actually reaches the user.
type Notifier interface {
	// CanPrompt reports whether a manual decision surface can be shown.
	// When it cannot, the pipeline falls back to automatic scheduling so
	// an item is never left untracked indefinitely.
	CanPrompt() bool

	// Countdown surfaces the remaining time for a marked item.
	Countdown(item *models.MediaItem, remaining time.Duration)

	// Cancel withdraws any outstanding notification for the item.
	Cancel(id uint)

	// Dismiss suppresses further notifications for the item without
	// touching its stored state.
	Dismiss(id uint)
}

// LogNotifier is the default Notifier: it writes countdowns to the log and
// tracks dismissals in memory.
type LogNotifier struct {
	mutex     sync.Mutex
	dismissed map[uint]struct{}
	enabled   bool
	log       log.LoggerService
}

func NewLogNotifier(logger log.LoggerService, enabled bool) *LogNotifier {
	return &LogNotifier{
		dismissed: make(map[uint]struct{}),
		enabled:   enabled,
		log:       logger,
	}
}

// CanPrompt always reports false: the log surface cannot collect a
// decision, so manual-mode items fall back to automatic scheduling.
func (n *LogNotifier) CanPrompt() bool {
	return false
}

func (n *LogNotifier) Countdown(item *models.MediaItem, remaining time.Duration) {
	if !n.enabled {
		return
	}

	n.mutex.Lock()
	_, skip := n.dismissed[item.ID]
	n.mutex.Unlock()
	if skip {
		return
	}

	n.log.Info("Item %d (%s) will be deleted in %s", item.ID, item.FileName, remaining.Round(time.Second))
}

func (n *LogNotifier) Cancel(id uint) {
	n.mutex.Lock()
	delete(n.dismissed, id)
	n.mutex.Unlock()
}

func (n *LogNotifier) Dismiss(id uint) {
	n.mutex.Lock()
	n.dismissed[id] = struct{}{}
	n.mutex.Unlock()
}
