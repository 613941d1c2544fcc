// Package markup is a streaming, error-recovering parser and serializer
// for HTML and XML. Given a byte stream of unknown encoding, ParseXML and
// ParseHTML produce a lazy stream.Stream of parsing signals paired with
// source locations. WriteXML and WriteHTML consume such a signal stream
// and produce a well-formed byte stream.
//
// The package never buffers the whole input and never builds an
// in-memory document tree: each signal is produced only as the previous
// one is consumed, and malformed input is recovered from best-effort
// rather than rejected outright. See the xml and html subpackages for
// the tokenizer/tree-constructor state machines this package wires
// together, and encoding for the byte-decoding layer beneath both.
package markup

import (
	"bufio"
	"io"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/encoding"
	"github.com/gomarkup/markup/html"
	"github.com/gomarkup/markup/htmlserialize"
	"github.com/gomarkup/markup/stream"
	"github.com/gomarkup/markup/xml"
	"github.com/gomarkup/markup/xmlserialize"
)

// Re-exported data-model types, so callers only ever need to import
// this one package for the common case.
type (
	Location       = core.Location
	Name           = core.Name
	Attribute      = core.Attribute
	Kind           = core.Kind
	Doctype        = core.Doctype
	XMLDeclaration = core.XMLDeclaration
	Signal         = core.Signal
	Located        = core.Located
	Context        = core.Context
	Options        = core.Options
)

// Re-exported error types (spec.md §7's closed taxonomy).
type (
	DecodingError     = core.DecodingError
	BadToken          = core.BadToken
	UnexpectedEOI     = core.UnexpectedEOI
	BadDocument       = core.BadDocument
	UnmatchedStartTag = core.UnmatchedStartTag
	UnmatchedEndTag   = core.UnmatchedEndTag
	BadNamespace      = core.BadNamespace
	MisnestedTag      = core.MisnestedTag
	BadContent        = core.BadContent
)

// Document is the Document parse context.
var Document = core.Document

// Fragment returns a Fragment parse context for the given element name.
func Fragment(name string) Context { return core.Fragment(name) }

// RenderError renders a location-qualified parse error as "[line:col]
// kind: operand" (spec.md §7).
func RenderError(loc Location, err error) string { return core.RenderError(loc, err) }

func byteReaderOf(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

func effectiveContext(opts Options) Context {
	if opts.Context.IsSet {
		return opts.Context
	}
	return Document
}

func errStream(err error) *stream.Stream[Located] {
	return stream.FromFunc(func() (stream.Item[Located], error) {
		return stream.Item[Located]{}, err
	})
}

// ParseXML decodes src (auto-detecting its encoding unless
// opts.Decoder is set) and parses it as XML, per spec.md §4.C/§4.D.
func ParseXML(src io.Reader, opts Options) *stream.Stream[Located] {
	dec, rest, _, err := encoding.Detect(byteReaderOf(src), false, opts.Decoder, core.EffectiveLogger(opts))
	if err != nil {
		return errStream(err)
	}
	runes := dec.Decode(rest, opts.Report)
	return xml.Parse(runes, opts, effectiveContext(opts))
}

// ParseHTML decodes src (auto-detecting its encoding unless
// opts.Decoder is set, defaulting to Windows-1252 per spec.md §4.B.2)
// and parses it as HTML5, per spec.md §4.E/§4.F. Unlike ParseXML, an
// unset opts.Context is not forced to Document here: the html package
// itself auto-detects a Fragment context from the first tag when none
// is given (spec.md §8 scenario 5).
func ParseHTML(src io.Reader, opts Options) *stream.Stream[Located] {
	dec, rest, _, err := encoding.Detect(byteReaderOf(src), true, opts.Decoder, core.EffectiveLogger(opts))
	if err != nil {
		return errStream(err)
	}
	runes := dec.Decode(rest, opts.Report)
	return html.Parse(runes, opts, opts.Context)
}

// WriteXML serializes sig as XML to w (spec.md §4.G).
func WriteXML(w io.Writer, sig *stream.Stream[Located], opts Options) error {
	return xmlserialize.Write(w, sig, opts)
}

// WriteHTML serializes sig as HTML5 to w (spec.md §4.H).
func WriteHTML(w io.Writer, sig *stream.Stream[Located], opts Options) error {
	return htmlserialize.Write(w, sig, opts)
}
