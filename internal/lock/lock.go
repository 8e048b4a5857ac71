// Package lock provides an exclusive lock that keeps two extendctl
// processes from regenerating the same data directory at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside the data directory.
const FileName = "regenerate.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// File is a held lock. The operating system drops it when the holding
// process exits, so a file left behind by a crashed run does not block.
type File struct {
	fl *flock.Flock
}

// Acquire takes an advisory lock on the file at path, creating it when
// missing, and records the holder's pid and acquisition time in it. If
// another process holds the lock Acquire fails with ErrLocked and reports
// the recorded holder.
func Acquire(path string) (*File, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		holder, _ := os.ReadFile(path)
		return nil, fmt.Errorf("%w: %s (%s)", ErrLocked, path, strings.TrimSpace(string(holder)))
	}
	info := fmt.Sprintf("pid %d since %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(info), 0o644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &File{fl: fl}, nil
}

// Path returns the lock file path.
func (l *File) Path() string {
	return l.fl.Path()
}

// Release drops the lock. The file stays in place for the next holder.
// Releasing twice is a no-op.
func (l *File) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	err := l.fl.Unlock()
	l.fl = nil
	if err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}
