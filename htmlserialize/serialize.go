// Package htmlserialize implements the HTML5 serializer (spec.md
// §4.H): it consumes a stream.Stream[core.Located] and writes
// well-formed HTML. Text is escaped with golang.org/x/net/html.EscapeString,
// the same entity-table collaborator the html package's tokenizer uses
// to unescape it — serialization and parsing share one escaping
// authority.
package htmlserialize

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	netHTML "golang.org/x/net/html"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// rawTextElements' text content is written verbatim: it was never
// entity-escaped on the way in and must not be escaped on the way out.
var rawTextElements = map[string]bool{"script": true, "style": true}

// Writer serializes a Located signal stream as HTML.
type Writer struct {
	w           *bufio.Writer
	opts        core.Options
	stack       []string
	pendingVoid string // name of a void element awaiting its matching EndElement
}

func (wr *Writer) reportBadContent(loc core.Location, where string) error {
	if wr.opts.Report == nil {
		return nil
	}
	return wr.opts.Report(loc, &core.BadContent{Where: where})
}

// NewWriter constructs a Writer over w.
func NewWriter(w io.Writer, opts core.Options) *Writer {
	return &Writer{w: bufio.NewWriter(w), opts: opts}
}

// Write drains sig, writing each signal to w.
func Write(w io.Writer, sig *stream.Stream[core.Located], opts core.Options) error {
	wr := NewWriter(w, opts)
	if err := stream.Iter(sig, wr.writeOne); err != nil {
		return err
	}
	return wr.w.Flush()
}

func (wr *Writer) inRawText() bool {
	return len(wr.stack) > 0 && rawTextElements[wr.stack[len(wr.stack)-1]]
}

func (wr *Writer) writeOne(loc core.Located) error {
	s := loc.Signal
	if wr.pendingVoid != "" {
		matches := s.Kind == core.KindEndElement && s.Name.Local == wr.pendingVoid
		if matches {
			wr.pendingVoid = ""
		} else if err := wr.reportBadContent(loc.Loc, wr.pendingVoid); err != nil {
			return err
		}
	}
	switch s.Kind {
	case core.KindDoctype:
		return wr.writeDoctype(s.Doctype)
	case core.KindComment:
		_, err := fmt.Fprintf(wr.w, "<!--%s-->", s.CommentBody)
		return err
	case core.KindText:
		text := s.String()
		if wr.inRawText() {
			if closing := "</" + wr.stack[len(wr.stack)-1]; strings.Contains(strings.ToLower(text), closing) {
				if err := wr.reportBadContent(loc.Loc, wr.stack[len(wr.stack)-1]); err != nil {
					return err
				}
			}
		} else {
			text = netHTML.EscapeString(text)
		}
		_, err := wr.w.WriteString(text)
		return err
	case core.KindStartElement:
		return wr.writeStart(s)
	case core.KindEndElement:
		return wr.writeEnd(s)
	}
	return nil
}

func (wr *Writer) writeDoctype(d core.Doctype) error {
	_, err := wr.w.WriteString("<!DOCTYPE " + d.Name + ">")
	return err
}

// unquotedSafe reports whether v contains none of the characters that
// force double-quoting a serialized attribute value (spec.md §4.H).
func unquotedSafe(v string) bool {
	return v != "" && !strings.ContainsAny(v, " \t\n\r\f\"'=<>`")
}

func (wr *Writer) writeAttr(a core.Attribute) error {
	if a.Value == "" || a.Value == a.Name.Local {
		_, err := wr.w.WriteString(" " + a.Name.Local)
		return err
	}
	escaped := netHTML.EscapeString(a.Value)
	if unquotedSafe(escaped) {
		_, err := fmt.Fprintf(wr.w, " %s=%s", a.Name.Local, escaped)
		return err
	}
	_, err := fmt.Fprintf(wr.w, ` %s="%s"`, a.Name.Local, escaped)
	return err
}

func (wr *Writer) writeStart(s core.Signal) error {
	name := s.Name.Local
	if _, err := wr.w.WriteString("<" + name); err != nil {
		return err
	}
	for _, a := range s.Attr {
		if err := wr.writeAttr(a); err != nil {
			return err
		}
	}
	if _, err := wr.w.WriteString(">"); err != nil {
		return err
	}
	if voidElements[name] {
		wr.pendingVoid = name
	} else {
		wr.stack = append(wr.stack, name)
	}
	return nil
}

func (wr *Writer) writeEnd(s core.Signal) error {
	name := s.Name.Local
	if voidElements[name] {
		return nil
	}
	if n := len(wr.stack); n > 0 && wr.stack[n-1] == name {
		wr.stack = wr.stack[:n-1]
	}
	_, err := wr.w.WriteString("</" + name + ">")
	return err
}
