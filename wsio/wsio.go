// Package wsio adapts a github.com/gorilla/websocket connection to the
// plain io.ByteReader / io.Writer interfaces markup.ParseXML/ParseHTML
// and markup.WriteXML/WriteHTML consume, the networked analogue of the
// file-based byte-source/sink adapters spec.md §6 describes as
// out-of-core. Grounded on the WebSocket handling in the teacher's
// pages.Handler.ServeHTTP (wsUpgrader.Upgrade, ws.NextReader/NextWriter),
// reused here for streaming markup over a connection instead of
// streaming rendered component output.
package wsio

import (
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// Source reads the text/binary messages of a WebSocket connection as a
// single continuous byte stream, pulling a new message with NextReader
// only once the previous one is exhausted.
type Source struct {
	conn *websocket.Conn
	cur  io.Reader
}

// NewSource wraps conn for reading.
func NewSource(conn *websocket.Conn) *Source {
	return &Source{conn: conn}
}

// ReadByte implements io.ByteReader, fetching the next WebSocket message
// when the current one runs out.
func (s *Source) ReadByte() (byte, error) {
	var buf [1]byte
	for {
		if s.cur == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					return 0, io.EOF
				}
				return 0, fmt.Errorf("wsio: next reader: %w", err)
			}
			s.cur = r
		}
		n, err := s.cur.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err == io.EOF {
			s.cur = nil
			continue
		}
		if err != nil {
			return 0, err
		}
	}
}

// Sink buffers bytes written to it and flushes them as one WebSocket
// text message per Flush call, mirroring the teacher's one-message-
// per-render loop (ws.NextWriter, render, w.Close).
type Sink struct {
	conn *websocket.Conn
	buf  []byte
}

// NewSink wraps conn for writing.
func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

// Write implements io.Writer, buffering until Flush.
func (s *Sink) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Flush sends everything written so far as one text message and resets
// the buffer.
func (s *Sink) Flush() error {
	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return fmt.Errorf("wsio: next writer: %w", err)
	}
	if _, err := w.Write(s.buf); err != nil {
		return err
	}
	s.buf = s.buf[:0]
	return w.Close()
}
