// Package core holds the data model shared by every other package of
// the module: source locations, expanded names, the Signal sum type and
// its Located pairing, Options, the TextDecoder interface and the error
// taxonomy. Package markup re-exports these types alongside its ParseXML,
// ParseHTML, WriteXML and WriteHTML entry points; the xml and html
// subpackages hold the tokenizer/tree-constructor state machines.
package core

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gomarkup/markup/stream"
)

// Location is a 1-based (line, column) position in the source. Line
// increments only on U+000A; column counts code points since the last
// line break (or since the start of input), 1-based.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Less reports whether l sorts strictly before o.
func (l Location) Less(o Location) bool {
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Column < o.Column
}

// Name is an expanded element or attribute name: a namespace URI (empty
// for the null namespace, e.g. every HTML name and every unprefixed XML
// name with no default namespace in scope) paired with a local name.
type Name struct {
	Space string
	Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Attribute is a single attribute: its expanded Name and the decoded
// string value. Order of Attribute values within a StartElement's Attr slice is the
// order they appeared in the source tag.
type Attribute struct {
	Name  Name
	Value string
}

// Kind discriminates the Signal sum type.
type Kind int

const (
	KindStartElement Kind = iota
	KindEndElement
	KindText
	KindDoctype
	KindXMLDeclaration
	KindProcessingInstruction
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindStartElement:
		return "StartElement"
	case KindEndElement:
		return "EndElement"
	case KindText:
		return "Text"
	case KindDoctype:
		return "Doctype"
	case KindXMLDeclaration:
		return "XmlDeclaration"
	case KindProcessingInstruction:
		return "ProcessingInstruction"
	case KindComment:
		return "Comment"
	default:
		return "Unknown"
	}
}

// Doctype carries the components of a DOCTYPE declaration. Each string
// field is nil-able via the accompanying Has* flag because XML and HTML
// both allow a bare "<!DOCTYPE html>" with no public/system identifier.
type Doctype struct {
	Name     string
	HasName  bool
	Public   string
	HasPublic bool
	System   string
	HasSystem bool
	// Raw is the verbatim internal subset text, when present (XML only).
	Raw string
	// ForceQuirks is set by the HTML tokenizer per the specification's
	// quirks table when the combination of public/system identifiers is
	// known to be a legacy, quirks-mode-triggering doctype.
	ForceQuirks bool
}

// XMLDeclaration carries the components of an `<?xml ... ?>` declaration.
type XMLDeclaration struct {
	Version      string
	Encoding     string
	HasEncoding  bool
	Standalone   bool
	HasStandalone bool
}

// Signal is a single parsing event. Exactly one of the Kind-tagged
// fields below is meaningful for a given value of Kind; a Kind field
// plus accessor methods keeps this a closed sum type without resorting
// to an interface and a type switch at every call site.
type Signal struct {
	Kind Kind

	// StartElement / EndElement
	Name Name
	Attr []Attribute

	// Text: logical text is the concatenation of Text. Split into more
	// than one string only when a single string would have exceeded an
	// implementation-defined maximum length; this module never splits
	// (Go strings have no practical length ceiling worth chunking for),
	// so Text always holds exactly one element for KindText signals.
	Text []string

	// Doctype
	Doctype Doctype

	// XmlDeclaration
	XMLDecl XMLDeclaration

	// ProcessingInstruction
	PITarget string
	PIBody   string

	// Comment
	CommentBody string
}

// StartElement builds a StartElement signal.
func StartElement(name Name, attr []Attribute) Signal {
	return Signal{Kind: KindStartElement, Name: name, Attr: attr}
}

// EndElement builds an EndElement signal.
func EndElement(name Name) Signal {
	return Signal{Kind: KindEndElement, Name: name}
}

// Text builds a Text signal from a single logical string.
func Text(s string) Signal {
	return Signal{Kind: KindText, Text: []string{s}}
}

// String returns the logical text of a Text signal, concatenating Text.
func (s Signal) String() string {
	if s.Kind != KindText {
		return ""
	}
	if len(s.Text) == 1 {
		return s.Text[0]
	}
	out := ""
	for _, p := range s.Text {
		out += p
	}
	return out
}

// Located pairs a Signal with the Location it started at.
type Located struct {
	Loc    Location
	Signal Signal
}

// Context fixes the parse context for an HTML or XML fragment parse: the
// document-level grammar, or a named element context the fragment is
// notionally parsed inside of.
type Context struct {
	// Fragment is empty for Document context, or an element local name
	// (e.g. "td", "svg") for Fragment context. Auto-detection (the zero
	// Context) only applies to HTML; XML always defaults to Document.
	Fragment string
	IsSet    bool
}

// Document is the Document parse context.
var Document = Context{IsSet: true}

// Fragment returns a Fragment parse context for the given element name.
func Fragment(name string) Context {
	return Context{Fragment: name, IsSet: true}
}

// Options configures a parse or write operation. All fields are
// optional; the zero Options selects automatic encoding detection, no
// error reporting, auto-detected context, and the built-in entity/
// namespace/prefix behavior described per field below.
type Options struct {
	// Report is called for every recoverable or fatal parse error,
	// before the recovery it describes takes effect. Report may return
	// an error (or panic, for callers that prefer that idiom via a
	// deferred recover in their own Report); either propagates out of
	// the Stream.Next call in progress and the stream fails permanently
	// from then on.
	Report func(Location, error) error

	// Decoder, if set, bypasses automatic encoding detection.
	Decoder TextDecoder

	// Namespace is consulted by the XML parser when a prefix has no
	// binding in scope. Returning ("", false) reports BadNamespace and
	// the prefix is treated as the empty namespace.
	Namespace func(prefix string) (uri string, ok bool)

	// Entity is consulted by the XML parser for entity references it
	// does not recognize itself (anything beyond the five built-ins and
	// numeric references). The returned string is inserted as literal
	// decoded text.
	Entity func(name string) (value string, ok bool)

	// Context fixes the parse context. The zero value auto-detects.
	Context Context

	// Prefix is consulted by the XML writer when a URI has no prefix
	// bound in the current scope. Returning ("", false) reports
	// BadNamespace.
	Prefix func(uri string) (prefix string, ok bool)

	// Logger receives internal diagnostic events that are not
	// spec-defined parse errors (e.g. "encoding switched after reading
	// XML declaration"). Defaults to a logger that discards everything.
	Logger *slog.Logger
}

// PositionedRune pairs a decoded code point with its Location, the unit
// the encoding layer streams and every tokenizer above it consumes.
type PositionedRune struct {
	Loc Location
	R   rune
}

// TextDecoder turns a byte stream into a located code-point stream. See
// package encoding for the built-in implementations and the automatic
// detection algorithm.
type TextDecoder interface {
	Decode(r io.ByteReader, report func(Location, error) error) *stream.Stream[PositionedRune]
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// EffectiveLogger returns o.Logger, or a logger that discards
// everything if the caller didn't supply one. Used at package
// boundaries (markup.ParseXML and markup.ParseHTML, which hand it to
// encoding.Detect, and the html tree constructor) so every internal
// diagnostic log call has a non-nil target.
func EffectiveLogger(o Options) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return discardLogger
}
