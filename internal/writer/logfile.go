// Package writer implements the out-of-process consumer of the shared
// ring: the main loop that drains frames into a staging buffer and
// flushes them to a rotating log file (or standard output), grounded on
// the LoggerSlave/LogFile pair in original_source/uberlogger.cpp.
package writer

import (
	"fmt"
	"os"

	"github.com/hyp3rd/ewrap"
)

// logFile owns the base log path and its numbered archives, mirroring
// original_source/uberlogger.cpp's LogFile class. Unlike the original,
// which names archives with an embedded UTC timestamp
// (ArchiveFilename()), archives here are named with a plain numbered
// suffix ".1" (most recent) through ".K" — spec.md's external-interface
// section pins this exact scheme, so the archive-naming strategy is
// redesigned here rather than carried over verbatim.
type logFile struct {
	path        string
	maxSize     int64
	maxArchives int

	f    *os.File
	size int64
}

func newLogFile(path string, maxSize int64, maxArchives int) *logFile {
	return &logFile{path: path, maxSize: maxSize, maxArchives: maxArchives}
}

// open ensures the base file is open, recording its current size — the
// Go analogue of LogFile::Open, which lseeks to the end of an existing
// file rather than truncating it.
func (lf *logFile) open() error {
	if lf.f != nil {
		return nil
	}
	f, err := os.OpenFile(lf.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return ewrap.Wrap(err, "writer: open log file")
	}
	size, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		f.Close()
		return ewrap.Wrap(err, "writer: seek to end of log file")
	}
	lf.f = f
	lf.size = size
	return nil
}

func (lf *logFile) close() {
	if lf.f == nil {
		return
	}
	_ = lf.f.Close()
	lf.f = nil
	lf.size = 0
}

// write appends b to the file, rotating first if it would push the file
// past maxSize, and retrying the write once (after a close+reopen) if
// the first attempt fails — grounded on LogFile::Write's "closing and
// opening again is the best thing we can try" comment for a lost-then-
// restored filesystem.
func (lf *logFile) write(b []byte) error {
	if err := lf.open(); err != nil {
		return err
	}
	if lf.maxSize > 0 && lf.size+int64(len(b)) > lf.maxSize {
		if err := lf.rollOver(); err != nil {
			return err
		}
		if err := lf.open(); err != nil {
			return err
		}
	}
	if len(b) == 0 {
		return nil
	}

	n, err := lf.f.Write(b)
	if err != nil {
		lf.close()
		if openErr := lf.open(); openErr != nil {
			return ewrap.Wrap(openErr, "writer: reopen log file after write failure")
		}
		n, err = lf.f.Write(b)
	}
	lf.size += int64(n)
	if err != nil {
		return ewrap.Wrap(err, "writer: write log file")
	}
	return nil
}

// rollOver closes the current file, shifts archives .1..maxArchives-1 up
// by one suffix (dropping the oldest), and renames the base file to
// .1 — grounded on LogFile::RollOver, with a single retry on rename
// failure per spec.md's error-handling design ("rotation errors cause
// one retry then abort").
func (lf *logFile) rollOver() error {
	lf.close()
	if lf.maxArchives <= 0 {
		return os.Remove(lf.path)
	}

	oldest := lf.archivePath(lf.maxArchives)
	_ = os.Remove(oldest)

	for i := lf.maxArchives - 1; i >= 1; i-- {
		from, to := lf.archivePath(i), lf.archivePath(i+1)
		if err := retryOnce(func() error { return renameIfExists(from, to) }); err != nil {
			return ewrap.Wrapf(err, "writer: shift archive %s", from)
		}
	}

	dest := lf.archivePath(1)
	if err := retryOnce(func() error { return os.Rename(lf.path, dest) }); err != nil {
		return ewrap.Wrapf(err, "writer: rename %s to %s", lf.path, dest)
	}
	return nil
}

// retryOnce runs fn, and on failure runs it exactly one more time,
// returning that second attempt's result — the shape spec.md's error-
// handling design calls for at every rotation rename.
func retryOnce(fn func() error) error {
	if err := fn(); err != nil {
		return fn()
	}
	return nil
}

func renameIfExists(from, to string) error {
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Rename(from, to)
}

// archivePath returns <path>.<n>, exactly as spec.md's external-interface
// section defines archive naming — a plain numeric suffix appended to
// the full base path, unlike the original's extension-aware, timestamp-
// embedding ArchiveFilename().
func (lf *logFile) archivePath(n int) string {
	return fmt.Sprintf("%s.%d", lf.path, n)
}
