package sched

import (
	"os"
	"sync"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
)

// FileDeleter removes the physical file behind an item.
type FileDeleter interface {
	Remove(item *models.MediaItem) error
}

// OSDeleter removes files through the filesystem. When an item carries a
// platform content handle and a URIRemover is configured, the handle is
// tried first and the filesystem path is the fallback; this matches scoped
// storage platforms where the handle is the only reliable route.
type OSDeleter struct {
	URIRemover func(uri string) error
}

func (d OSDeleter) Remove(item *models.MediaItem) error {
	if item.ContentURI != "" && d.URIRemover != nil {
		if err := d.URIRemover(item.ContentURI); err == nil {
			return nil
		}
	}

	err := os.Remove(item.FilePath)
	if err == nil || os.IsNotExist(err) {
		// A path that is already gone counts as deleted.
		return nil
	}
	return err
}

// keyedMutex hands out one mutex per item id with reference counting, so
// retirement serializes per id without any cross-id blocking and entries
// are freed once the last holder releases.
type keyedMutex struct {
	mutex sync.Mutex
	locks map[uint]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() keyedMutex {
	return keyedMutex{locks: make(map[uint]*refLock)}
}

func (k *keyedMutex) acquire(id uint) *refLock {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	lock, ok := k.locks[id]
	if !ok {
		lock = &refLock{}
		k.locks[id] = lock
	}
	lock.refs++
	return lock
}

func (k *keyedMutex) release(id uint, lock *refLock) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	lock.refs--
	if lock.refs <= 0 {
		delete(k.locks, id)
	}
}
