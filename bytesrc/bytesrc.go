// Package bytesrc implements the plain byte-source and sink adapters
// spec.md §6 names as out-of-core collaborators: wrappers over
// in-memory strings/byte slices and files that satisfy io.ByteReader
// and io.Writer, the two interfaces markup.ParseXML/ParseHTML and
// markup.WriteXML/WriteHTML consume.
//
// Most of these are thin enough that callers can reach for bytes.Reader
// or os.Open directly; this package exists for the one case the
// standard library doesn't cover as a single call — a file source that
// hands back its own close handle, as spec.md §6 specifies ("File
// adapters return a paired close-handle; the caller controls closure").
package bytesrc

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
)

// String returns an io.ByteReader over s.
func String(s string) io.ByteReader {
	return strings.NewReader(s)
}

// Bytes returns an io.ByteReader over b.
func Bytes(b []byte) io.ByteReader {
	return bytes.NewReader(b)
}

// FileSource is a byte source over an open file, plus the close handle
// spec.md §6 requires the caller hold and release explicitly.
type FileSource struct {
	f *os.File
	r *bufio.Reader
}

// OpenFile opens name and returns a FileSource positioned at its start.
// The caller must call Close when done reading.
func OpenFile(name string) (*FileSource, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &FileSource{f: f, r: bufio.NewReader(f)}, nil
}

// ReadByte implements io.ByteReader.
func (s *FileSource) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

// Close releases the underlying file handle.
func (s *FileSource) Close() error {
	return s.f.Close()
}

// FileSink is a sink over an open file, plus its close handle.
type FileSink struct {
	f *os.File
	w *bufio.Writer
}

// CreateFile creates (or truncates) name and returns a FileSink. The
// caller must call Close when done writing, which also flushes.
func CreateFile(name string) (*FileSink, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, w: bufio.NewWriter(f)}, nil
}

// Write implements io.Writer.
func (s *FileSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Close flushes buffered output and releases the underlying file
// handle.
func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
