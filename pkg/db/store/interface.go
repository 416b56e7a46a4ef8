package store

import (
	"context"
	"errors"
	"time"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("item not found")

// ItemStore defines the interface for database operations
type ItemStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// InsertItem inserts a new item. Inserting a path that is already
	// tracked is a no-op and reports inserted == false; the existing row
	// keeps its kept flag and deadline untouched.
	InsertItem(ctx context.Context, item *models.MediaItem) (bool, error)

	GetItem(ctx context.Context, id uint) (*models.MediaItem, error)
	GetItemByPath(ctx context.Context, path string) (*models.MediaItem, error)
	UpdateItem(ctx context.Context, item *models.MediaItem) error

	// MarkItem sets the deletion deadline and work id on an item that is
	// not kept. Fails with ErrNotFound if the row is missing or kept.
	MarkItem(ctx context.Context, id uint, deadline time.Time, workID string) error

	// KeepItem flags the item as kept and clears any deadline.
	KeepItem(ctx context.Context, id uint) error

	// UnkeepItem clears the kept flag; the item returns to the unscheduled
	// state with no deadline.
	UnkeepItem(ctx context.Context, id uint) error

	// DeleteItem removes the row and reports whether it existed. Losing a
	// race to another deleter is not an error.
	DeleteItem(ctx context.Context, id uint) (bool, error)

	// ListExpired returns all items whose deadline is at or before now and
	// which are not kept.
	ListExpired(ctx context.Context, now time.Time) ([]models.MediaItem, error)

	// ListMarked returns all items carrying a deadline.
	ListMarked(ctx context.Context) ([]models.MediaItem, error)

	ListItems(ctx context.Context) ([]models.MediaItem, error)
	CountByPath(ctx context.Context, path string) (int64, error)
}
