package models

import (
	"time"
)

// MediaItem represents one tracked screenshot or recording.
//
// A row exists from the moment a file is detected until it is retired;
// retirement hard-deletes the row, there is no soft delete. DeletionAt is
// the single source of truth for scheduling: in-memory timers are always
// derivable from it.
type MediaItem struct {
	ID       uint   `gorm:"primaryKey"`
	FilePath string `gorm:"type:text;not null;uniqueIndex"`
	FileName string `gorm:"type:text;not null"`
	FileSize int64  `gorm:"not null"`

	// DeletionAt is the absolute deadline after which the item is eligible
	// for deletion. nil means the item is unscheduled (or kept).
	DeletionAt *time.Time `gorm:"index"`

	// IsKept marks an item the user decided to preserve. A kept item must
	// never carry a deadline.
	IsKept bool `gorm:"default:false;not null"`

	// ContentURI is an optional platform handle, preferred over FilePath
	// when removing the file.
	ContentURI    string `gorm:"type:text"`
	ThumbnailPath string `gorm:"type:text"`

	// DeletionWorkID correlates an armed deadline with the scheduling pass
	// that set it. Purely bookkeeping; never interpreted.
	DeletionWorkID string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Marked reports whether the item carries a live deadline.
func (m *MediaItem) Marked() bool {
	return !m.IsKept && m.DeletionAt != nil
}

// Expired reports whether the item is past its deadline at the given time.
func (m *MediaItem) Expired(now time.Time) bool {
	return m.Marked() && !m.DeletionAt.After(now)
}
