package core

import "fmt"

// DecodingError reports an illegal byte sequence encountered by a
// decoder. Bytes holds the raw offending bytes (Error renders them in
// hex); Encoding names the decoder in use.
type DecodingError struct {
	Bytes    []byte
	Encoding string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("illegal byte sequence %x for encoding %s", e.Bytes, e.Encoding)
}

// BadToken reports a local syntactic problem. Where names the tokenizer
// state or production the problem was found in; Suggestion, if
// non-empty, is a short human fix-it phrase that completes "should ..."
// in the rendered message (e.g. "be replaced with '&amp;'").
type BadToken struct {
	Token      string
	Where      string
	Suggestion string
}

func (e *BadToken) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("in %s: unexpected %q", e.Where, e.Token)
	}
	return fmt.Sprintf("in %s: %q should %s", e.Where, e.Token, e.Suggestion)
}

// UnexpectedEOI reports input ending in the middle of a construct (a
// tag, a comment, a character reference, ...). Where names the construct.
type UnexpectedEOI struct {
	Where string
}

func (e *UnexpectedEOI) Error() string {
	return fmt.Sprintf("unexpected end of input in %s", e.Where)
}

// BadDocument reports a document-level structural problem: more than one
// root element, content after the root closes, and similar.
type BadDocument struct {
	Detail string
}

func (e *BadDocument) Error() string { return e.Detail }

// UnmatchedStartTag reports a start tag left open by a non-matching end
// tag elsewhere in the stack (XML recovery: every open descendant down
// to and including Name is force-closed).
type UnmatchedStartTag struct {
	Name string
}

func (e *UnmatchedStartTag) Error() string {
	return fmt.Sprintf("start tag %q was never closed", e.Name)
}

// UnmatchedEndTag reports an end tag with no corresponding open start
// tag anywhere on the stack; it is dropped.
type UnmatchedEndTag struct {
	Name string
}

func (e *UnmatchedEndTag) Error() string {
	return fmt.Sprintf("end tag %q does not match any open element", e.Name)
}

// BadNamespace reports a prefix or URI that could not be resolved: an
// XML parser prefix with no xmlns binding and no Options.Namespace
// answer, or an XML writer URI with no Options.Prefix answer.
type BadNamespace struct {
	Detail string
}

func (e *BadNamespace) Error() string { return e.Detail }

// MisnestedTag reports a content-model violation the HTML tree
// constructor resolved by implicitly closing elements: What is the
// triggering tag, Where is the element it could not nest inside.
type MisnestedTag struct {
	What  string
	Where string
}

func (e *MisnestedTag) Error() string {
	return fmt.Sprintf("%q is misnested inside %q", e.What, e.Where)
}

// BadContent reports disallowed content inside an element: stray text
// that triggered foster parenting, content between a void element's
// start and end tag, a raw-text element containing its own closing
// sequence.
type BadContent struct {
	Where string
}

func (e *BadContent) Error() string {
	return fmt.Sprintf("disallowed content in %q", e.Where)
}

// RenderError renders a location-qualified parse error as described in
// spec.md §7: "[line:col] kind: operand".
func RenderError(loc Location, err error) string {
	kind, operand := classify(err)
	return fmt.Sprintf("[%s] %s: %s", loc, kind, operand)
}

func classify(err error) (kind, operand string) {
	switch e := err.(type) {
	case *DecodingError:
		return "DecodingError", e.Error()
	case *BadToken:
		return "BadToken", e.Error()
	case *UnexpectedEOI:
		return "UnexpectedEoi", e.Where
	case *BadDocument:
		return "BadDocument", e.Detail
	case *UnmatchedStartTag:
		return "UnmatchedStartTag", e.Name
	case *UnmatchedEndTag:
		return "UnmatchedEndTag", e.Name
	case *BadNamespace:
		return "BadNamespace", e.Detail
	case *MisnestedTag:
		return "MisnestedTag", e.Error()
	case *BadContent:
		return "BadContent", e.Where
	default:
		return "Error", err.Error()
	}
}
