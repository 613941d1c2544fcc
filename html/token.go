// Package html implements the HTML5 tokenizer and tree constructor
// (spec.md §4.E and §4.F): components E and F of the core. Named
// character references are resolved with golang.org/x/net/html's entity
// table (UnescapeString) rather than a hand-rolled one — spec.md §1
// calls out entity tables as a legitimate external collaborator, and
// HTML's few thousand named references are exactly that.
package html

import (
	"strings"
	"unicode"

	netHTML "golang.org/x/net/html"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

type tokenKind int

const (
	tokStartTag tokenKind = iota
	tokEndTag
	tokText
	tokComment
	tokDoctype
	tokEOF
)

type rawAttr struct {
	Name  string
	Value string
	Loc   core.Location
}

type token struct {
	kind        tokenKind
	loc         core.Location
	name        string
	attrs       []rawAttr
	selfClosing bool
	text        string
	doctype     core.Doctype
}

// voidElements never have an end tag or children.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// rawTextElements' content is scanned verbatim up to the matching end
// tag; no entity resolution, no nested tags.
var rawTextElements = map[string]bool{"script": true, "style": true}

// rcdataElements' content has entities resolved but no nested tags.
var rcdataElements = map[string]bool{"textarea": true, "title": true}

// Tokenizer turns a located rune stream into HTML tokens. rawMode,
// when non-empty, names the raw-text/RCDATA element whose content the
// next Next call scans verbatim via readRawOrRCDATA (set by the tree
// constructor right after it opens such an element).
type Tokenizer struct {
	runes   *stream.Stream[core.PositionedRune]
	report  func(core.Location, error) error
	rawMode string
}

func NewTokenizer(runes *stream.Stream[core.PositionedRune], report func(core.Location, error) error) *Tokenizer {
	return &Tokenizer{runes: runes, report: report}
}

// SetRawMode switches the tokenizer into raw-text or RCDATA scanning
// for the named element, or back to normal data scanning when name=="".
func (t *Tokenizer) SetRawMode(name string) { t.rawMode = name }

func (t *Tokenizer) reportErr(loc core.Location, err error) error {
	if t.report == nil {
		return nil
	}
	return t.report(loc, err)
}

func (t *Tokenizer) read() (core.PositionedRune, bool, error) {
	it, err := t.runes.Next()
	if err != nil {
		return core.PositionedRune{}, false, err
	}
	if it.End {
		return core.PositionedRune{}, false, nil
	}
	return it.Value, true, nil
}

func (t *Tokenizer) peek() (core.PositionedRune, bool, error) {
	it, err := t.runes.Peek()
	if err != nil {
		return core.PositionedRune{}, false, err
	}
	if it.End {
		return core.PositionedRune{}, false, nil
	}
	return it.Value, true, nil
}

func (t *Tokenizer) push(pr core.PositionedRune) {
	t.runes.Push(stream.Of(pr))
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func lowerTagName(s string) string { return strings.ToLower(s) }

// Next returns the next token, or a tokEOF token at end of input.
func (t *Tokenizer) Next() (token, error) {
	if t.rawMode != "" {
		return t.readRawOrRCDATA()
	}

	start, ok, err := t.read()
	if err != nil {
		return token{}, err
	}
	if !ok {
		return token{kind: tokEOF}, nil
	}
	if start.R != '<' {
		return t.readText(start)
	}

	nxt, ok, err := t.peek()
	if err != nil {
		return token{}, err
	}
	if !ok {
		if err := t.reportErr(start.Loc, &core.UnexpectedEOI{Where: "tag"}); err != nil {
			return token{}, err
		}
		return token{kind: tokText, loc: start.Loc, text: "<"}, nil
	}

	switch {
	case nxt.R == '/':
		t.read()
		return t.readEndTag(start.Loc)
	case nxt.R == '!':
		t.read()
		return t.readMarkupDecl(start.Loc)
	case isASCIIAlpha(nxt.R):
		return t.readStartTag(start.Loc)
	default:
		// Not a recognized construct: "<" is literal text (spec.md's
		// "bogus-tag text" recovery).
		if err := t.reportErr(start.Loc, &core.BadToken{Token: "<", Where: "text", Suggestion: "be escaped as '&lt;'"}); err != nil {
			return token{}, err
		}
		return t.readText(start)
	}
}

func (t *Tokenizer) readText(first core.PositionedRune) (token, error) {
	var b strings.Builder
	loc := first.Loc
	b.WriteRune(first.R)
	for {
		nx, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok || nx.R == '<' {
			break
		}
		rr, _, _ := t.read()
		b.WriteRune(rr.R)
	}
	return token{kind: tokText, loc: loc, text: netHTML.UnescapeString(b.String())}, nil
}

// readRawOrRCDATA scans verbatim until the matching "</name" end tag,
// resolving entities only in RCDATA mode.
func (t *Tokenizer) readRawOrRCDATA() (token, error) {
	name := t.rawMode
	var b strings.Builder
	loc := core.Location{Line: 1, Column: 1}
	haveLoc := false
	closeTag := "</" + name
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok {
			t.rawMode = ""
			txt := b.String()
			if rcdataElements[name] {
				txt = netHTML.UnescapeString(txt)
			}
			return token{kind: tokText, loc: loc, text: txt}, nil
		}
		if !haveLoc {
			loc = pr.Loc
			haveLoc = true
		}
		if pr.R == '<' && t.matchesEndTag(closeTag) {
			t.rawMode = ""
			txt := b.String()
			if rcdataElements[name] {
				txt = netHTML.UnescapeString(txt)
			}
			return token{kind: tokText, loc: loc, text: txt}, nil
		}
		rr, _, _ := t.read()
		b.WriteRune(rr.R)
	}
}

// matchesEndTag peeks ahead (without consuming) to check whether the
// rune stream starting at the current '<' spells out closeTag
// case-insensitively followed by space, '/', '>' or EOF.
func (t *Tokenizer) matchesEndTag(closeTag string) bool {
	var consumed []core.PositionedRune
	ok := true
	for _, want := range closeTag {
		pr, present, err := t.peek()
		if err != nil || !present || unicode.ToLower(pr.R) != unicode.ToLower(want) {
			ok = false
			break
		}
		rr, _, _ := t.read()
		consumed = append(consumed, rr)
	}
	if ok {
		pr, present, _ := t.peek()
		if present && !isSpace(pr.R) && pr.R != '/' && pr.R != '>' {
			ok = false
		}
	}
	for i := len(consumed) - 1; i >= 0; i-- {
		t.push(consumed[i])
	}
	return ok
}

func (t *Tokenizer) readName() (string, error) {
	var b strings.Builder
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if b.Len() == 0 {
			if !isASCIIAlpha(pr.R) {
				break
			}
		} else if isSpace(pr.R) || pr.R == '>' || pr.R == '/' || pr.R == '=' {
			break
		}
		rr, _, _ := t.read()
		b.WriteRune(rr.R)
	}
	return b.String(), nil
}

func (t *Tokenizer) skipSpace() error {
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return err
		}
		if !ok || !isSpace(pr.R) {
			return nil
		}
		t.read()
	}
}

func (t *Tokenizer) readStartTag(loc core.Location) (token, error) {
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	name = lowerTagName(name)
	tok := token{kind: tokStartTag, loc: loc, name: name}
	seen := map[string]bool{}
	for {
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		pr, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok {
			if err := t.reportErr(loc, &core.UnexpectedEOI{Where: "tag"}); err != nil {
				return token{}, err
			}
			return tok, nil
		}
		if pr.R == '>' {
			t.read()
			return tok, nil
		}
		if pr.R == '/' {
			t.read()
			if pr2, ok2, _ := t.peek(); ok2 && pr2.R == '>' {
				t.read()
			}
			tok.selfClosing = true
			return tok, nil
		}
		attrLoc := pr.Loc
		attrName, err := t.readAttrName()
		if err != nil {
			return token{}, err
		}
		if attrName == "" {
			t.read()
			continue
		}
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		val := ""
		if pr3, ok3, err3 := t.peek(); err3 != nil {
			return token{}, err3
		} else if ok3 && pr3.R == '=' {
			t.read()
			if err := t.skipSpace(); err != nil {
				return token{}, err
			}
			val, err = t.readAttrValue()
			if err != nil {
				return token{}, err
			}
		}
		attrName = strings.ToLower(attrName)
		if seen[attrName] {
			if err := t.reportErr(attrLoc, &core.BadDocument{Detail: "duplicate attribute " + attrName}); err != nil {
				return token{}, err
			}
			continue
		}
		seen[attrName] = true
		tok.attrs = append(tok.attrs, rawAttr{Name: attrName, Value: val, Loc: attrLoc})
	}
}

func (t *Tokenizer) readAttrName() (string, error) {
	var b strings.Builder
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return "", err
		}
		if !ok || isSpace(pr.R) || pr.R == '>' || pr.R == '/' || pr.R == '=' {
			break
		}
		rr, _, _ := t.read()
		b.WriteRune(rr.R)
	}
	return b.String(), nil
}

func (t *Tokenizer) readAttrValue() (string, error) {
	pr, ok, err := t.peek()
	if err != nil {
		return "", err
	}
	quote := rune(0)
	if ok && (pr.R == '"' || pr.R == '\'') {
		quote = pr.R
		t.read()
	}
	var b strings.Builder
	for {
		pr2, ok2, err2 := t.peek()
		if err2 != nil {
			return "", err2
		}
		if !ok2 {
			break
		}
		if quote != 0 {
			if pr2.R == quote {
				t.read()
				break
			}
		} else if isSpace(pr2.R) || pr2.R == '>' {
			break
		}
		rr, _, _ := t.read()
		b.WriteRune(rr.R)
	}
	return netHTML.UnescapeString(b.String()), nil
}

func (t *Tokenizer) readEndTag(loc core.Location) (token, error) {
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	name = lowerTagName(name)
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	// Consume (and report) any attribute-shaped junk before '>'.
	var junk strings.Builder
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok || pr.R == '>' {
			break
		}
		rr, _, _ := t.read()
		junk.WriteRune(rr.R)
	}
	if junk.Len() > 0 {
		if err := t.reportErr(loc, &core.BadToken{Token: junk.String(), Where: "end tag"}); err != nil {
			return token{}, err
		}
	}
	if pr, ok, _ := t.peek(); ok && pr.R == '>' {
		t.read()
	} else if err := t.reportErr(loc, &core.BadToken{Token: name, Where: "end tag", Suggestion: "be followed by '>'"}); err != nil {
		return token{}, err
	}
	return token{kind: tokEndTag, loc: loc, name: name}, nil
}

func (t *Tokenizer) readUntil(terminator string) (string, bool, error) {
	var b strings.Builder
	tail := ""
	for {
		pr, ok, err := t.read()
		if err != nil {
			return "", false, err
		}
		if !ok {
			return b.String(), false, nil
		}
		b.WriteRune(pr.R)
		tail += string(pr.R)
		if len(tail) > len(terminator) {
			tail = tail[len(tail)-len(terminator):]
		}
		if tail == terminator {
			return b.String()[:b.Len()-len(terminator)], true, nil
		}
	}
}

func (t *Tokenizer) consumeLiteral(lit string) bool {
	var consumed []core.PositionedRune
	for _, want := range lit {
		pr, ok, err := t.peek()
		if err != nil || !ok || unicode.ToUpper(pr.R) != unicode.ToUpper(want) {
			for i := len(consumed) - 1; i >= 0; i-- {
				t.push(consumed[i])
			}
			return false
		}
		rr, _, _ := t.read()
		consumed = append(consumed, rr)
	}
	return true
}

func (t *Tokenizer) readMarkupDecl(loc core.Location) (token, error) {
	if t.consumeLiteral("--") {
		body, closed, err := t.readUntil("-->")
		if err != nil {
			return token{}, err
		}
		if !closed {
			if err := t.reportErr(loc, &core.UnexpectedEOI{Where: "comment"}); err != nil {
				return token{}, err
			}
		}
		return token{kind: tokComment, loc: loc, text: body}, nil
	}
	if t.consumeLiteral("[CDATA[") {
		body, _, err := t.readUntil("]]>")
		if err != nil {
			return token{}, err
		}
		return token{kind: tokText, loc: loc, text: body}, nil
	}
	if t.consumeLiteral("DOCTYPE") {
		return t.readDoctype(loc)
	}
	body, _, err := t.readUntil(">")
	if err != nil {
		return token{}, err
	}
	if err := t.reportErr(loc, &core.BadToken{Token: body, Where: "declaration"}); err != nil {
		return token{}, err
	}
	return t.Next()
}

func (t *Tokenizer) readDoctype(loc core.Location) (token, error) {
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	d := core.Doctype{Name: lowerTagName(name), HasName: name != ""}
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	if t.consumeLiteral("PUBLIC") {
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		pub, err := t.readQuotedLiteral()
		if err != nil {
			return token{}, err
		}
		d.Public, d.HasPublic = pub, true
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		if pr, ok, _ := t.peek(); ok && (pr.R == '"' || pr.R == '\'') {
			sys, err := t.readQuotedLiteral()
			if err != nil {
				return token{}, err
			}
			d.System, d.HasSystem = sys, true
		}
	} else if t.consumeLiteral("SYSTEM") {
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		sys, err := t.readQuotedLiteral()
		if err != nil {
			return token{}, err
		}
		d.System, d.HasSystem = sys, true
	}
	d.ForceQuirks = isQuirksDoctype(d)
	_, _, err = t.readUntil(">")
	if err != nil {
		return token{}, err
	}
	return token{kind: tokDoctype, loc: loc, doctype: d}, nil
}

// isQuirksDoctype applies the small part of the HTML quirks-mode table
// worth tracking here: a doctype is "not html5" if it's not the bare
// "<!DOCTYPE html>" and has no recognized public/system identifier.
func isQuirksDoctype(d core.Doctype) bool {
	if !d.HasPublic && !d.HasSystem {
		return !strings.EqualFold(d.Name, "html")
	}
	return strings.HasPrefix(strings.ToLower(d.Public), "-//w3c//dtd html 3")
}

func (t *Tokenizer) readQuotedLiteral() (string, error) {
	pr, ok, err := t.peek()
	if err != nil || !ok || (pr.R != '"' && pr.R != '\'') {
		return "", err
	}
	quote := pr.R
	t.read()
	var b strings.Builder
	for {
		pr2, ok2, err2 := t.read()
		if err2 != nil {
			return "", err2
		}
		if !ok2 || pr2.R == quote {
			return b.String(), nil
		}
		b.WriteRune(pr2.R)
	}
}
