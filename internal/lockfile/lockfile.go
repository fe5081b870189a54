// Package lockfile guards a ShopChat state directory against a second server
// process. SQLite files and the whatsmeow device session must have a single writer.
//
// The lock is an flock(2) on a file in the directory, so the kernel drops it
// when the holder exits, even on a crash.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FileName is the lock file created inside the state directory.
const FileName = "shopchat.lock"

// ErrLocked is wrapped by the error Acquire returns when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another ShopChat process")

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// HeldError describes the current holder of a lock.
type HeldError struct {
	Path string
	PID  int
	// Running is only meaningful when PID > 0.
	Running bool
}

func (e *HeldError) Error() string {
	holder := "unknown process"
	if e.PID > 0 {
		state := "running"
		if !e.Running {
			state = "not running, stale lock"
		}
		holder = fmt.Sprintf("pid %d (%s)", e.PID, state)
	}
	return fmt.Sprintf("%s: %s held by %s; remove the file only if no server uses this directory", ErrLocked, e.Path, holder)
}

func (e *HeldError) Unwrap() error { return ErrLocked }

// Acquire creates dir if needed and takes an exclusive, non-blocking lock on it.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, FileName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		held := &HeldError{Path: path, PID: readPID(path)}
		if held.PID > 0 {
			held.Running = processRunning(held.PID)
		}
		slog.Error("lockfile.Acquire: state directory already locked", "lock_path", path, "holder_pid", held.PID)
		return nil, held
	}

	// Truncate only after winning the lock so a loser never wipes the holder's pid.
	if err := f.Truncate(0); err == nil {
		_, err = f.WriteString("pid=" + strconv.Itoa(os.Getpid()) + "\n")
		if err != nil {
			slog.Warn("lockfile.Acquire: failed to record pid", "lock_path", path, "error", err)
		}
	}

	slog.Debug("lockfile.Acquire: lock held", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks and removes the lock file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	os.Remove(l.path)
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	slog.Debug("lockfile.Release: lock released", "lock_path", l.path)
	return err
}

// readPID returns the pid recorded in a lock file, or 0.
func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return parsePID(string(data))
}

func parsePID(content string) int {
	_, rest, ok := strings.Cut(content, "pid=")
	if !ok {
		return 0
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// processRunning probes pid with signal 0.
func processRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
