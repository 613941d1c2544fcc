// Package xmlserialize implements the XML serializer (spec.md §4.G): it
// consumes a stream.Stream[core.Located] of signals and writes
// well-formed XML to an io.Writer, re-escaping text and attribute
// values and re-deriving xmlns declarations from the Name.Space values
// it's handed (the inverse of the xml package's namespace resolution).
package xmlserialize

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

// scopeFrame tracks the prefix bindings declared by one open element,
// so EndElement can tell which ones to let go out of scope.
type scopeFrame struct {
	name  string
	ns    string
	added []string // prefixes (or "" for default) bound at this depth
}

// Writer serializes a Located signal stream as XML.
type Writer struct {
	w        *bufio.Writer
	opts     core.Options
	stack    []scopeFrame
	bindings map[string]string // prefix -> uri, current scope
	nextAuto int
	lastLoc  core.Location
}

// NewWriter constructs a Writer over w.
func NewWriter(w io.Writer, opts core.Options) *Writer {
	return &Writer{w: bufio.NewWriter(w), opts: opts, bindings: map[string]string{}}
}

// Write drains sig, writing each signal to w. It returns the first
// error from either the signal stream or the underlying writer.
func Write(w io.Writer, sig *stream.Stream[core.Located], opts core.Options) error {
	wr := NewWriter(w, opts)
	if err := wr.writeAll(sig); err != nil {
		return err
	}
	return wr.w.Flush()
}

// writeAll drains sig, then enforces spec.md §4.G's balance guarantee:
// if the stream ended with elements still open (a truncated or
// recovered-but-unbalanced input), it reports UnexpectedEOI and
// synthesizes the missing EndElements so the output is never malformed
// even when the input signal stream itself was not.
func (wr *Writer) writeAll(sig *stream.Stream[core.Located]) error {
	if err := stream.Iter(sig, wr.writeOne); err != nil {
		return err
	}
	if len(wr.stack) == 0 {
		return nil
	}
	if wr.opts.Report != nil {
		if err := wr.opts.Report(wr.lastLoc, &core.UnexpectedEOI{Where: "element content"}); err != nil {
			return err
		}
	}
	for len(wr.stack) > 0 {
		f := wr.stack[len(wr.stack)-1]
		if err := wr.writeEnd(core.EndElement(core.Name{Space: f.ns, Local: f.name})); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeOne(loc core.Located) error {
	wr.lastLoc = loc.Loc
	s := loc.Signal
	switch s.Kind {
	case core.KindXMLDeclaration:
		return wr.writeXMLDecl(s.XMLDecl)
	case core.KindDoctype:
		return wr.writeDoctype(s.Doctype)
	case core.KindComment:
		_, err := fmt.Fprintf(wr.w, "<!--%s-->", s.CommentBody)
		return err
	case core.KindProcessingInstruction:
		_, err := fmt.Fprintf(wr.w, "<?%s %s?>", s.PITarget, s.PIBody)
		return err
	case core.KindText:
		_, err := wr.w.WriteString(escapeText(s.String()))
		return err
	case core.KindStartElement:
		return wr.writeStart(loc.Loc, s)
	case core.KindEndElement:
		return wr.writeEnd(s)
	}
	return nil
}

func (wr *Writer) writeXMLDecl(d core.XMLDeclaration) error {
	version := d.Version
	if version == "" {
		version = "1.0"
	}
	_, err := fmt.Fprintf(wr.w, `<?xml version="%s"`, version)
	if err != nil {
		return err
	}
	if d.HasEncoding {
		if _, err := fmt.Fprintf(wr.w, ` encoding="%s"`, d.Encoding); err != nil {
			return err
		}
	}
	if d.HasStandalone {
		v := "no"
		if d.Standalone {
			v = "yes"
		}
		if _, err := fmt.Fprintf(wr.w, ` standalone="%s"`, v); err != nil {
			return err
		}
	}
	_, err = wr.w.WriteString("?>")
	return err
}

func (wr *Writer) writeDoctype(d core.Doctype) error {
	if _, err := wr.w.WriteString("<!DOCTYPE " + d.Name); err != nil {
		return err
	}
	if d.HasPublic {
		if _, err := fmt.Fprintf(wr.w, ` PUBLIC "%s"`, d.Public); err != nil {
			return err
		}
		if d.HasSystem {
			if _, err := fmt.Fprintf(wr.w, ` "%s"`, d.System); err != nil {
				return err
			}
		}
	} else if d.HasSystem {
		if _, err := fmt.Fprintf(wr.w, ` SYSTEM "%s"`, d.System); err != nil {
			return err
		}
	}
	_, err := wr.w.WriteString(">")
	return err
}

// resolvePrefix finds (or invents) the prefix bound to uri in the
// current scope, consulting Options.Prefix for URIs with no binding.
func (wr *Writer) resolvePrefix(uri string) (prefix string, declare bool, ok bool) {
	if uri == "" {
		return "", false, true
	}
	for p, u := range wr.bindings {
		if u == uri {
			return p, false, true
		}
	}
	if wr.opts.Prefix != nil {
		p, ok := wr.opts.Prefix(uri)
		if !ok {
			return "", false, false
		}
		return p, true, true
	}
	if cur, bound := wr.bindings[""]; !bound || cur == uri {
		return "", true, true
	}
	prefix = "ns" + strconv.Itoa(wr.nextAuto)
	wr.nextAuto++
	return prefix, true, true
}

func (wr *Writer) writeStart(loc core.Location, s core.Signal) error {
	frame := scopeFrame{name: s.Name.Local, ns: s.Name.Space}

	prefix, declare, ok := wr.resolvePrefix(s.Name.Space)
	if !ok {
		if wr.opts.Report != nil {
			if err := wr.opts.Report(loc, &core.BadNamespace{Detail: "no prefix for " + s.Name.Space}); err != nil {
				return err
			}
		}
	}
	if declare {
		wr.bindings[prefix] = s.Name.Space
		frame.added = append(frame.added, prefix)
	}

	tag := qualify(prefix, s.Name.Local)
	if _, err := wr.w.WriteString("<" + tag); err != nil {
		return err
	}
	if declare {
		attrName := "xmlns"
		if prefix != "" {
			attrName = "xmlns:" + prefix
		}
		if _, err := fmt.Fprintf(wr.w, ` %s="%s"`, attrName, escapeAttr(s.Name.Space)); err != nil {
			return err
		}
	}
	for _, a := range s.Attr {
		aprefix := ""
		if a.Name.Space != "" {
			p, decl, ok := wr.resolvePrefix(a.Name.Space)
			if ok {
				aprefix = p
				if decl {
					wr.bindings[p] = a.Name.Space
					frame.added = append(frame.added, p)
					if _, err := fmt.Fprintf(wr.w, ` xmlns:%s="%s"`, p, escapeAttr(a.Name.Space)); err != nil {
						return err
					}
				}
			} else if wr.opts.Report != nil {
				if err := wr.opts.Report(loc, &core.BadNamespace{Detail: "no prefix for " + a.Name.Space}); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintf(wr.w, ` %s="%s"`, qualify(aprefix, a.Name.Local), escapeAttr(a.Value)); err != nil {
			return err
		}
	}
	if _, err := wr.w.WriteString(">"); err != nil {
		return err
	}
	wr.stack = append(wr.stack, frame)
	return nil
}

func (wr *Writer) writeEnd(s core.Signal) error {
	var frame scopeFrame
	if n := len(wr.stack); n > 0 {
		frame = wr.stack[n-1]
		wr.stack = wr.stack[:n-1]
	}
	prefix := ""
	for p, u := range wr.bindings {
		if u == s.Name.Space {
			prefix = p
			break
		}
	}
	if _, err := wr.w.WriteString("</" + qualify(prefix, s.Name.Local) + ">"); err != nil {
		return err
	}
	for _, p := range frame.added {
		delete(wr.bindings, p)
	}
	return nil
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func escapeText(s string) string {
	var b []byte
	buf := newEscapeBuf(&b)
	_ = xml.EscapeText(buf, []byte(s))
	return string(b)
}

func escapeAttr(s string) string {
	return escapeText(s)
}

type escapeBuf struct{ b *[]byte }

func newEscapeBuf(b *[]byte) *escapeBuf { return &escapeBuf{b: b} }

func (e *escapeBuf) Write(p []byte) (int, error) {
	*e.b = append(*e.b, p...)
	return len(p), nil
}
