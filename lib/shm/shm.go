// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// attachAttempts bounds the create/attach race: a process that loses
// the creation race can also lose the attach race if the creator is
// removed between the two system calls. Each retry restarts from
// creation, so a handful of attempts is plenty.
const attachAttempts = 5

// Segment is a shared memory segment backed by a fixed-size tmpfs
// file, mapped shared into the process. The same name opened by
// multiple processes (or multiple times within one process) yields
// views of the same physical pages, and the advisory lock taken by
// WithLock excludes every other open of the file.
type Segment struct {
	path    string
	file    *os.File
	data    []byte
	created bool

	// mu serializes WithLock within a single process. flock excludes
	// by open file description, so two goroutines sharing one Segment
	// would otherwise both pass the kernel lock.
	mu sync.Mutex

	closed bool
}

// Open creates or attaches to the named segment in directory. The
// first opener creates the file with the given mode and becomes the
// segment owner; Created reports which side of the race this call
// landed on. The file is sized to size bytes and mapped shared.
//
// Failure to create or attach is fatal to coordination: callers are
// expected to treat an error here as unrecoverable.
func Open(directory, name string, size int, mode os.FileMode) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shm: segment size must be positive, got %d", size)
	}

	path := filepath.Join(directory, name)

	for attempt := 0; attempt < attachAttempts; attempt++ {
		file, created, err := createOrAttach(path, mode)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Lost both races: the file vanished between the
				// exclusive create failing and the plain open. Retry
				// from creation.
				continue
			}
			return nil, err
		}

		segment, err := mapSegment(path, file, created, size)
		if err != nil {
			file.Close()
			return nil, err
		}
		return segment, nil
	}

	return nil, fmt.Errorf("shm: segment %s kept vanishing during attach", path)
}

// createOrAttach opens the segment file, reporting whether this call
// created it.
func createOrAttach(path string, mode os.FileMode) (*os.File, bool, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err == nil {
		// World-accessible segments need the mode applied despite the
		// process umask, or a second user could not attach.
		if chmodErr := file.Chmod(mode); chmodErr != nil {
			file.Close()
			os.Remove(path)
			return nil, false, fmt.Errorf("shm: setting mode on segment %s: %w", path, chmodErr)
		}
		return file, true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, false, fmt.Errorf("shm: creating segment %s: %w", path, err)
	}

	file, err = os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("shm: attaching to segment %s: %w", path, err)
	}
	return file, false, nil
}

// mapSegment sizes the file and maps it shared.
func mapSegment(path string, file *os.File, created bool, size int) (*Segment, error) {
	// Truncate to the agreed size. For the creator this allocates the
	// zero-filled pages; for an attacher racing a creator that has not
	// truncated yet, it is an idempotent no-op at the same size.
	if err := file.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("shm: sizing segment %s: %w", path, err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mapping segment %s: %w", path, err)
	}

	return &Segment{
		path:    path,
		file:    file,
		data:    data,
		created: created,
	}, nil
}

// Created reports whether this process created the segment file (and
// therefore owns its initialization).
func (s *Segment) Created() bool {
	return s.created
}

// Path returns the filesystem path of the segment file.
func (s *Segment) Path() string {
	return s.path
}

// Size returns the length in bytes of the mapped region.
func (s *Segment) Size() int {
	return len(s.data)
}

// WithLock acquires the exclusive cross-process lock, invokes fn with
// the mapped segment bytes, and releases the lock before returning, on
// the success path, the error path, and a panic inside fn alike.
// The byte slice is only valid for the duration of the call; fn must
// not retain it.
func (s *Segment) WithLock(fn func(data []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("shm: segment %s is closed", s.path)
	}

	if err := flock(s.file, unix.LOCK_EX); err != nil {
		return fmt.Errorf("shm: locking segment %s: %w", s.path, err)
	}
	defer flock(s.file, unix.LOCK_UN)

	return fn(s.data)
}

// Close unmaps the segment and closes the file. The segment file
// itself is left in place for other processes; tmpfs reclaims it at
// reboot. Close is not safe to call concurrently with WithLock
// callers on other goroutines still in flight.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := unix.Munmap(s.data); err != nil {
		firstErr = fmt.Errorf("shm: unmapping segment %s: %w", s.path, err)
	}
	s.data = nil

	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shm: closing segment %s: %w", s.path, err)
	}
	return firstErr
}

// flock retries the lock operation through signal interruptions.
func flock(file *os.File, how int) error {
	for {
		err := unix.Flock(int(file.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
