package fs

import (
	"bytes"
	"errors"
	"os"
)

// ErrSimulatedWriteFailure is returned by every durable write FailingWriter
// intercepts.
var ErrSimulatedWriteFailure = errors.New("fs: simulated write failure")

// FailingWriter wraps an FS and makes every WriteFileAtomic call fail durably
// (the rename that would publish the new content never happens), while every
// other operation passes through unchanged. It exists so tests can check
// that a failed flush leaves previously durable content readable, without a
// general-purpose fault-injection subsystem.
type FailingWriter struct {
	fs     FS
	writer *AtomicWriter
}

// NewFailingWriter wraps fs so that WriteFileAtomic always fails.
// Panics if fs is nil.
func NewFailingWriter(fs FS) *FailingWriter {
	if fs == nil {
		panic("fs is nil")
	}

	w := &FailingWriter{fs: fs}
	w.writer = NewAtomicWriter(w)

	return w
}

// WriteFileAtomic routes through AtomicWriter so the temp-file-plus-rename
// sequence runs for real, but the final rename (see Rename below) always
// fails; AtomicWriter then removes the temp file, and path is left untouched.
func (w *FailingWriter) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return w.writer.Write(path, bytes.NewReader(data), AtomicWriteOptions{Perm: perm})
}

// Rename always fails. AtomicWriter.Write calls this to publish the temp
// file it just wrote and synced, so failing it simulates a durable write
// that never lands.
func (w *FailingWriter) Rename(oldpath, newpath string) error {
	return ErrSimulatedWriteFailure
}

func (w *FailingWriter) Open(path string) (File, error)   { return w.fs.Open(path) }
func (w *FailingWriter) Create(path string) (File, error) { return w.fs.Create(path) }

func (w *FailingWriter) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return w.fs.OpenFile(path, flag, perm)
}

func (w *FailingWriter) ReadFile(path string) ([]byte, error) { return w.fs.ReadFile(path) }

func (w *FailingWriter) WriteFile(path string, data []byte, perm os.FileMode) error {
	return w.fs.WriteFile(path, data, perm)
}

func (w *FailingWriter) ReadDir(path string) ([]os.DirEntry, error) { return w.fs.ReadDir(path) }

func (w *FailingWriter) MkdirAll(path string, perm os.FileMode) error {
	return w.fs.MkdirAll(path, perm)
}

func (w *FailingWriter) Stat(path string) (os.FileInfo, error) { return w.fs.Stat(path) }
func (w *FailingWriter) Exists(path string) (bool, error)       { return w.fs.Exists(path) }
func (w *FailingWriter) Remove(path string) error               { return w.fs.Remove(path) }
func (w *FailingWriter) RemoveAll(path string) error            { return w.fs.RemoveAll(path) }

// Compile-time interface check.
var _ FS = (*FailingWriter)(nil)
