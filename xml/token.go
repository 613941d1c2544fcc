// Package xml implements the XML tokenizer and tree constructor
// (spec.md §4.C and §4.D): components C and D of the core. It never
// buffers the whole input — Tokenizer.Next pulls runes from a
// stream.Stream[core.PositionedRune] one at a time and Parse wraps a
// Parser (and its Tokenizer) in a lazy stream.Stream[core.Located].
package xml

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

type tokenKind int

const (
	tokStartTag tokenKind = iota
	tokEndTag
	tokText
	tokComment
	tokCDATA
	tokPI
	tokDoctype
	tokXMLDecl
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
	piTarget    string
	piBody      string
	doctype     core.Doctype
	xmlDecl     core.XMLDeclaration
}

// builtinEntities are the five entities XML itself defines.
var builtinEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// Tokenizer turns a located rune stream into XML tokens.
type Tokenizer struct {
	runes  *stream.Stream[core.PositionedRune]
	report func(core.Location, error) error
	entity func(name string) (string, bool)
}

func NewTokenizer(runes *stream.Stream[core.PositionedRune], report func(core.Location, error) error, entity func(string) (string, bool)) *Tokenizer {
	return &Tokenizer{runes: runes, report: report, entity: entity}
}

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

const maxEntityNameLen = 32

// isNameStartChar/isNameChar are a pragmatic ASCII-plus-letters subset
// of the XML Name production: every Unicode letter may start a name,
// letters/digits/.-_: may continue it.
func isNameStartChar(r rune) bool {
	return r == '_' || r == ':' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStartChar(r) || unicode.IsDigit(r) || r == '-' || r == '.'
}

// resolveEntity consumes the name/digits and trailing ';' of a
// character reference already positioned just after '&'. On success it
// returns the decoded text and true. On failure (no entity-shaped token
// found) it pushes every rune it consumed back, unconsumed, and returns
// false so the caller can treat '&' as a literal character.
func (t *Tokenizer) resolveEntity() (string, bool, error) {
	var consumed []core.PositionedRune
	defer func() {
		for i := len(consumed) - 1; i >= 0; i-- {
			t.push(consumed[i])
		}
	}()

	pr, ok, err := t.peek()
	if err != nil || !ok {
		return "", false, err
	}

	if pr.R == '#' {
		digits, _, e := t.read()
		if e != nil {
			return "", false, e
		}
		consumed = append(consumed, digits)
		hex := false
		pr2, ok2, e2 := t.peek()
		if e2 != nil {
			return "", false, e2
		}
		if ok2 && (pr2.R == 'x' || pr2.R == 'X') {
			hex = true
			xr, _, e3 := t.read()
			if e3 != nil {
				return "", false, e3
			}
			consumed = append(consumed, xr)
		}
		var num strings.Builder
		for {
			pr3, ok3, e3 := t.peek()
			if e3 != nil {
				return "", false, e3
			}
			if !ok3 {
				return "", false, nil
			}
			if pr3.R == ';' {
				semi, _, _ := t.read()
				consumed = append(consumed, semi)
				break
			}
			isDigit := pr3.R >= '0' && pr3.R <= '9'
			isHexDigit := hex && ((pr3.R >= 'a' && pr3.R <= 'f') || (pr3.R >= 'A' && pr3.R <= 'F'))
			if !isDigit && !isHexDigit || num.Len() >= 8 {
				return "", false, nil
			}
			num.WriteRune(pr3.R)
			rr, _, _ := t.read()
			consumed = append(consumed, rr)
		}
		if num.Len() == 0 {
			return "", false, nil
		}
		base := 10
		if hex {
			base = 16
		}
		v, perr := strconv.ParseInt(num.String(), base, 32)
		if perr != nil {
			return "", false, nil
		}
		consumed = nil // success: don't push back, these runes are consumed
		return string(rune(v)), true, nil
	}

	if !isNameStartChar(pr.R) {
		return "", false, nil
	}
	var name strings.Builder
	for {
		pr3, ok3, e3 := t.peek()
		if e3 != nil {
			return "", false, e3
		}
		if !ok3 {
			return "", false, nil
		}
		if pr3.R == ';' {
			semi, _, _ := t.read()
			consumed = append(consumed, semi)
			break
		}
		if !isNameChar(pr3.R) || name.Len() >= maxEntityNameLen {
			return "", false, nil
		}
		name.WriteRune(pr3.R)
		rr, _, _ := t.read()
		consumed = append(consumed, rr)
	}
	n := name.String()
	if v, ok := builtinEntities[n]; ok {
		consumed = nil
		return v, true, nil
	}
	if t.entity != nil {
		if v, ok := t.entity(n); ok {
			consumed = nil
			return v, true, nil
		}
	}
	return "", false, nil
}

// Next returns the next token, or a tokEOF token at end of input.
func (t *Tokenizer) Next() (token, error) {
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
	case nxt.R == '?':
		t.read()
		return t.readPI(start.Loc)
	case nxt.R == '!':
		t.read()
		return t.readMarkupDecl(start.Loc)
	default:
		return t.readStartTag(start.Loc)
	}
}

func (t *Tokenizer) readText(first core.PositionedRune) (token, error) {
	var b strings.Builder
	loc := first.Loc
	r := first.R
	for {
		if r == '&' {
			val, ok, err := t.resolveEntity()
			if err != nil {
				return token{}, err
			}
			if ok {
				b.WriteString(val)
			} else {
				pr2, ok2, err2 := t.peek()
				if err2 != nil {
					return token{}, err2
				}
				suggestion := "be replaced with '&amp;'"
				if ok2 && pr2.R == '#' {
					suggestion = "use a valid numeric character reference"
				}
				if err := t.reportErr(loc, &core.BadToken{Token: "&", Where: "text", Suggestion: suggestion}); err != nil {
					return token{}, err
				}
				b.WriteByte('&')
			}
		} else {
			b.WriteRune(r)
		}

		nx, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok || nx.R == '<' {
			break
		}
		rr, _, _ := t.read()
		r = rr.R
	}
	return token{kind: tokText, loc: loc, text: b.String()}, nil
}

func (t *Tokenizer) readName() (string, error) {
	var b strings.Builder
	for {
		pr, ok, err := t.peek()
		if err != nil {
			return "", err
		}
		if !ok || !isNameChar(pr.R) && b.Len() > 0 {
			break
		}
		if !ok {
			break
		}
		if b.Len() == 0 && !isNameStartChar(pr.R) {
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
		if !ok || !isXMLSpace(pr.R) {
			return nil
		}
		t.read()
	}
}

func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func (t *Tokenizer) readStartTag(loc core.Location) (token, error) {
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
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
			pr2, ok2, err2 := t.peek()
			if err2 != nil {
				return token{}, err2
			}
			if ok2 && pr2.R == '>' {
				t.read()
			} else if err := t.reportErr(loc, &core.BadToken{Token: "/", Where: "tag", Suggestion: "be followed by '>'"}); err != nil {
				return token{}, err
			}
			tok.selfClosing = true
			return tok, nil
		}
		attrLoc := pr.Loc
		attrName, err := t.readName()
		if err != nil {
			return token{}, err
		}
		if attrName == "" {
			// Unrecognized character in a tag: skip it and report.
			t.read()
			if err := t.reportErr(attrLoc, &core.BadToken{Token: string(pr.R), Where: "tag"}); err != nil {
				return token{}, err
			}
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
		} else if err := t.reportErr(attrLoc, &core.BadToken{Token: attrName, Where: "attribute", Suggestion: "have a value"}); err != nil {
			return token{}, err
		}
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
			if err := t.reportErr(pr.Loc, &core.UnexpectedEOI{Where: "attribute value"}); err != nil {
				return "", err
			}
			return b.String(), nil
		}
		if quote != 0 {
			if pr2.R == quote {
				t.read()
				return b.String(), nil
			}
		} else if isXMLSpace(pr2.R) || pr2.R == '>' {
			return b.String(), nil
		}
		if pr2.R == '&' {
			t.read()
			val, ok3, err3 := t.resolveEntity()
			if err3 != nil {
				return "", err3
			}
			if ok3 {
				b.WriteString(val)
			} else {
				if err := t.reportErr(pr2.Loc, &core.BadToken{Token: "&", Where: "attribute value", Suggestion: "be replaced with '&amp;'"}); err != nil {
					return "", err
				}
				b.WriteByte('&')
			}
			continue
		}
		rr, _, _ := t.read()
		if rr.R == '<' {
			if err := t.reportErr(rr.Loc, &core.BadToken{Token: "<", Where: "attribute value", Suggestion: "be replaced with '&lt;'"}); err != nil {
				return "", err
			}
		}
		b.WriteRune(rr.R)
	}
}

func (t *Tokenizer) readEndTag(loc core.Location) (token, error) {
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	pr, ok, err := t.peek()
	if err != nil {
		return token{}, err
	}
	if ok && pr.R == '>' {
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

func (t *Tokenizer) readPI(loc core.Location) (token, error) {
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	body, closed, err := t.readUntil("?>")
	if err != nil {
		return token{}, err
	}
	if !closed {
		if err := t.reportErr(loc, &core.UnexpectedEOI{Where: "processing instruction"}); err != nil {
			return token{}, err
		}
	}
	if strings.EqualFold(name, "xml") {
		return token{kind: tokXMLDecl, loc: loc, xmlDecl: parseXMLDecl(body)}, nil
	}
	return token{kind: tokPI, loc: loc, piTarget: name, piBody: strings.TrimSpace(body)}, nil
}

func parseXMLDecl(body string) core.XMLDeclaration {
	var decl core.XMLDeclaration
	decl.Version = "1.0"
	get := func(attr string) (string, bool) {
		idx := strings.Index(body, attr+"=")
		if idx < 0 {
			return "", false
		}
		rest := body[idx+len(attr)+1:]
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			return "", false
		}
		q := rest[0]
		if q != '"' && q != '\'' {
			return "", false
		}
		end := strings.IndexByte(rest[1:], q)
		if end < 0 {
			return "", false
		}
		return rest[1 : 1+end], true
	}
	if v, ok := get("version"); ok {
		decl.Version = v
	}
	if v, ok := get("encoding"); ok {
		decl.Encoding = v
		decl.HasEncoding = true
	}
	if v, ok := get("standalone"); ok {
		decl.HasStandalone = true
		decl.Standalone = v == "yes"
	}
	return decl
}

func (t *Tokenizer) readMarkupDecl(loc core.Location) (token, error) {
	// Already consumed "<!". Disambiguate "--" (comment), "[CDATA["
	// (CDATA section), "DOCTYPE" or a bare "<!...>" declaration subset.
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
		body, closed, err := t.readUntil("]]>")
		if err != nil {
			return token{}, err
		}
		if !closed {
			if err := t.reportErr(loc, &core.UnexpectedEOI{Where: "CDATA section"}); err != nil {
				return token{}, err
			}
		}
		return token{kind: tokCDATA, loc: loc, text: body}, nil
	}
	if t.consumeLiteral("DOCTYPE") {
		return t.readDoctype(loc)
	}
	// Unknown declaration subset: consume to matching '>' best-effort.
	body, _, err := t.readUntil(">")
	if err != nil {
		return token{}, err
	}
	if err := t.reportErr(loc, &core.BadToken{Token: body, Where: "declaration"}); err != nil {
		return token{}, err
	}
	return t.Next()
}

func (t *Tokenizer) consumeLiteral(lit string) bool {
	var consumed []core.PositionedRune
	for _, want := range lit {
		pr, ok, err := t.peek()
		if err != nil || !ok || pr.R != want {
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

func (t *Tokenizer) readDoctype(loc core.Location) (token, error) {
	if err := t.skipSpace(); err != nil {
		return token{}, err
	}
	name, err := t.readName()
	if err != nil {
		return token{}, err
	}
	d := core.Doctype{Name: name, HasName: name != ""}
	for {
		if err := t.skipSpace(); err != nil {
			return token{}, err
		}
		pr, ok, err := t.peek()
		if err != nil {
			return token{}, err
		}
		if !ok {
			if err := t.reportErr(loc, &core.UnexpectedEOI{Where: "doctype"}); err != nil {
				return token{}, err
			}
			return token{kind: tokDoctype, loc: loc, doctype: d}, nil
		}
		switch {
		case pr.R == '>':
			t.read()
			return token{kind: tokDoctype, loc: loc, doctype: d}, nil
		case pr.R == '[':
			t.read()
			raw, _, err := t.readUntil("]")
			if err != nil {
				return token{}, err
			}
			d.Raw = raw
		default:
			kw, err := t.readName()
			if err != nil {
				return token{}, err
			}
			if kw == "" {
				t.read()
				continue
			}
			if err := t.skipSpace(); err != nil {
				return token{}, err
			}
			val, err := t.readQuotedLiteral()
			if err != nil {
				return token{}, err
			}
			switch strings.ToUpper(kw) {
			case "PUBLIC":
				d.Public, d.HasPublic = val, true
				if err := t.skipSpace(); err != nil {
					return token{}, err
				}
				if pr2, ok2, _ := t.peek(); ok2 && (pr2.R == '"' || pr2.R == '\'') {
					sys, err := t.readQuotedLiteral()
					if err != nil {
						return token{}, err
					}
					d.System, d.HasSystem = sys, true
				}
			case "SYSTEM":
				d.System, d.HasSystem = val, true
			}
		}
	}
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
