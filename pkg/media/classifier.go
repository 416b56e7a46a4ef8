package media

import (
	"path/filepath"
	"strings"
	"sync"
)

// Result is the outcome of classifying a detected path.
type Result int

const (
	// Reject means the path is out of scope and must be ignored.
	Reject Result = iota
	// Accept means the path is a tracked media file under a watched folder.
	Accept
	// NotReady means the file looks in-scope but is still being written;
	// the caller should re-query once after a short delay.
	NotReady
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".heic": {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".webm": {},
	".gif":  {},
	".mov":  {},
}

// pendingSuffixes mark files the OS has not finished flushing.
var pendingSuffixes = []string{".pending", ".tmp", ".part", ".crdownload"}

// Classifier decides whether a detected file is in scope: it must live
// under one of the watched folders and carry a known image or video
// extension. Safe for concurrent use; SetFolders swaps the folder set.
type Classifier struct {
	mutex   sync.RWMutex
	folders []string
}

func NewClassifier(folders []string) *Classifier {
	c := &Classifier{}
	c.SetFolders(folders)
	return c
}

// SetFolders replaces the watched folder set.
func (c *Classifier) SetFolders(folders []string) {
	cleaned := make([]string, 0, len(folders))
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(folder))
	}

	c.mutex.Lock()
	c.folders = cleaned
	c.mutex.Unlock()
}

// Folders returns a copy of the watched folder set.
func (c *Classifier) Folders() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	folders := make([]string, len(c.folders))
	copy(folders, c.folders)
	return folders
}

// Classify evaluates a single path.
func (c *Classifier) Classify(path string) Result {
	if path == "" {
		return Reject
	}

	path = filepath.Clean(path)
	if !c.underWatchedFolder(path) {
		return Reject
	}

	name := filepath.Base(path)
	if pending(name) {
		return NotReady
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return Accept
	}
	if _, ok := videoExtensions[ext]; ok {
		return Accept
	}

	return Reject
}

func (c *Classifier) underWatchedFolder(path string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, folder := range c.folders {
		if path == folder {
			continue
		}
		if strings.HasPrefix(path, folder+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func pending(name string) bool {
	lower := strings.ToLower(name)

	// Android media store writes ".pending-<ts>-<name>" markers.
	if strings.HasPrefix(lower, ".pending") {
		return true
	}

	for _, suffix := range pendingSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
