package html

import (
	"strings"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

const (
	svgNS  = "http://www.w3.org/2000/svg"
	mathNS = "http://www.w3.org/1998/Math/MathML"
)

type insertionMode int

const (
	miInitial insertionMode = iota
	miBeforeHTML
	miBeforeHead
	miInHead
	miAfterHead
	miInBody
	miInTable
	miText
	miAfterBody
	miAfterAfterBody
)

type frame struct {
	name  string
	ns    string // "", svgNS or mathNS
	attrs []core.Attribute
}

// formattingElements lists the WHATWG "formatting" category: inline
// elements whose misnesting is common enough in real documents (and
// spec.md §8's own worked example) that a plain force-close would
// visibly mis-render text. closeFormattingTo reopens these after an
// out-of-order end tag instead of just reporting and dropping them.
var formattingElements = map[string]bool{
	"a": true, "b": true, "big": true, "code": true, "em": true,
	"font": true, "i": true, "nobr": true, "s": true, "small": true,
	"strike": true, "strong": true, "tt": true, "u": true,
}

// htmlBreakoutTags lists the start-tag names that, per spec.md §4.F.4,
// always pop back out of SVG/MathML foreign content into the HTML
// namespace rather than nesting inside it. Abridged from the WHATWG
// table: the attribute-conditioned "font" case (only breaks out when it
// carries color/face/size) is treated as an unconditional break here,
// a documented simplification (see DESIGN.md).
var htmlBreakoutTags = map[string]bool{
	"b": true, "big": true, "blockquote": true, "body": true, "br": true,
	"center": true, "code": true, "dd": true, "div": true, "dl": true,
	"dt": true, "em": true, "embed": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "head": true, "hr": true, "i": true,
	"img": true, "li": true, "listing": true, "menu": true, "meta": true,
	"nobr": true, "ol": true, "p": true, "pre": true, "ruby": true, "s": true,
	"small": true, "span": true, "strong": true, "strike": true, "sub": true,
	"sup": true, "table": true, "tt": true, "u": true, "ul": true, "var": true,
}

// autoCloseOnReopen lists the elements that implicitly close an
// already-open element of the same kind when a new one of that kind
// starts (spec.md's "p", "li", "dd"/"dt", table-row/cell family).
var autoCloseOnReopen = map[string][]string{
	"p":        {"p"},
	"li":       {"li"},
	"dt":       {"dd", "dt"},
	"dd":       {"dd", "dt"},
	"option":   {"option"},
	"optgroup": {"optgroup", "option"},
	"tr":       {"tr"},
	"td":       {"td", "th"},
	"th":       {"td", "th"},
}

// closesPOnStart lists start tags that implicitly close an open <p>
// (the HTML5 "special" category, abridged to commonly-used elements).
var closesPOnStart = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"div": true, "dl": true, "fieldset": true, "figure": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "hr": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"ul": true,
}

// Parser is the HTML5 tree constructor (spec.md §4.F): a pragmatic
// subset of the WHATWG algorithm built around the insertion modes that
// matter for real documents (initial/before-html/before-head/in-head/
// after-head/in-body/in-table/text/after-body), svg and MathML foreign
// content by namespace switching, void and raw-text/RCDATA elements,
// and implicit html/head/body insertion and p/li/dd-dt/table-cell
// auto-closing. It does not implement the full 23-mode grammar or the
// general formatting-element adoption agency algorithm; misnesting of
// non-formatting elements force-closes down to the matching ancestor,
// reporting MisnestedTag, and misnesting of the common inline
// formatting elements (see formattingElements) is repaired by
// closeFormattingTo, which reopens them after the close instead of
// dropping them.
//
// Foreign content is narrower than spec.md §4.F.4 in two ways this
// constructor does not claim to cover: it has no HTML/MathML text
// integration-point flag (so an element like MathML's annotation-xml
// or mtext is not treated as a partial re-entry point into HTML
// parsing rules), and no SVG tag-name case-adjustment table (so
// camelCase SVG names like "viewBox" or "clipPath" pass through
// untouched rather than being restored from their lowercased tokens).
// It does implement the HTML-breakout rule: htmlBreakoutTags pop the
// parser back to the HTML namespace before such a start tag nests.
type Parser struct {
	tok    *Tokenizer
	opts   core.Options
	report func(core.Location, error) error

	mode       insertionMode
	modeBeforeText insertionMode
	stack      []frame
	isFragment bool
	fragCtx    string

	pendingTok *token
	pendingErr error

	pending  []core.Located
	textBuf  strings.Builder
	textLoc  core.Location
	haveText bool

	done bool
}

// fragmentInferenceFromOrphanTag maps a start tag name that cannot
// stand as a fragment's own outermost element (it belongs under a
// specific ancestor per the content model) to the ancestor fragment
// context to infer when it is the very first tag of a Document-context
// parse with no explicit Context (spec.md §8 scenario 5).
var fragmentInferenceFromOrphanTag = map[string]string{
	"td": "tr", "th": "tr",
	"tr":      "tbody",
	"tbody":   "table",
	"thead":   "table",
	"tfoot":   "table",
	"caption": "table",
	"colgroup": "table",
	"col":      "colgroup",
	"option":   "select",
	"optgroup": "select",
}

func reportFunc(opts core.Options) func(core.Location, error) error {
	return func(loc core.Location, err error) error {
		if opts.Report == nil {
			return nil
		}
		return opts.Report(loc, err)
	}
}

// NewParser constructs a Parser over a located rune stream.
func NewParser(runes *stream.Stream[core.PositionedRune], opts core.Options, ctx core.Context) *Parser {
	rf := reportFunc(opts)
	p := &Parser{opts: opts, report: rf}
	p.tok = NewTokenizer(runes, rf)
	if !ctx.IsSet {
		ctx = p.autoDetectContext(opts)
	}
	if ctx.IsSet && ctx.Fragment != "" {
		p.isFragment = true
		p.fragCtx = ctx.Fragment
		p.mode = fragmentStartMode(ctx.Fragment)
		p.stack = append(p.stack, frame{name: ctx.Fragment})
	} else {
		p.mode = miInitial
	}
	return p
}

// autoDetectContext peeks the first token off the tokenizer (holding it
// in p.pendingTok for advance to replay) and, if it is a start tag with
// no legal content model as a top-level element, infers the Fragment
// context its ancestor implies (spec.md §8 scenario 5). Any other first
// token — text, a doctype, an ordinary element — means ordinary
// Document parsing; the token is still held in p.pendingTok and
// replayed exactly once rather than re-read.
func (p *Parser) autoDetectContext(opts core.Options) core.Context {
	tok, err := p.tok.Next()
	if err != nil {
		p.pendingErr = err
		return core.Document
	}
	p.pendingTok = &tok
	if tok.kind == tokStartTag {
		if inferred, ok := fragmentInferenceFromOrphanTag[tok.name]; ok {
			core.EffectiveLogger(opts).Debug("fragment context auto-detected", "tag", tok.name, "context", inferred)
			return core.Fragment(inferred)
		}
	}
	return core.Document
}

// Parse wraps a Parser in a lazy stream.Stream[core.Located].
func Parse(runes *stream.Stream[core.PositionedRune], opts core.Options, ctx core.Context) *stream.Stream[core.Located] {
	p := NewParser(runes, opts, ctx)
	return stream.FromFunc(p.step)
}

func fragmentStartMode(ctx string) insertionMode {
	switch ctx {
	case "html":
		return miBeforeHead
	case "head":
		return miInHead
	case "body", "":
		return miInBody
	default:
		return miInBody
	}
}

func (p *Parser) step() (stream.Item[core.Located], error) {
	for {
		if len(p.pending) > 0 {
			sig := p.pending[0]
			p.pending = p.pending[1:]
			return stream.Item[core.Located]{Value: sig}, nil
		}
		if p.done {
			return stream.Item[core.Located]{End: true}, nil
		}
		if err := p.advance(); err != nil {
			return stream.Item[core.Located]{}, err
		}
	}
}

func (p *Parser) emit(loc core.Location, sig core.Signal) {
	p.pending = append(p.pending, core.Located{Loc: loc, Signal: sig})
}

func (p *Parser) flushText() {
	if !p.haveText {
		return
	}
	p.emit(p.textLoc, core.Text(p.textBuf.String()))
	p.textBuf.Reset()
	p.haveText = false
}

func (p *Parser) bufferText(loc core.Location, s string) {
	if s == "" {
		return
	}
	if !p.haveText {
		p.textLoc = loc
		p.haveText = true
	}
	p.textBuf.WriteString(s)
}

func (p *Parser) top() (frame, bool) {
	if len(p.stack) == 0 {
		return frame{}, false
	}
	return p.stack[len(p.stack)-1], true
}

func (p *Parser) currentNamespace() string {
	if f, ok := p.top(); ok {
		return f.ns
	}
	return ""
}

func (p *Parser) inStack(name string) bool {
	for _, f := range p.stack {
		if f.name == name {
			return true
		}
	}
	return false
}

func (p *Parser) push(loc core.Location, name string, attrs []core.Attribute, ns string) {
	p.stack = append(p.stack, frame{name: name, ns: ns, attrs: attrs})
	p.emit(loc, core.StartElement(core.Name{Space: ns, Local: name}, attrs))
}

// closeTo force-closes elements down to and including the named one. It
// reports MisnestedTag for every intervening element it had to close.
func (p *Parser) closeTo(loc core.Location, name string) bool {
	idx := -1
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	for i := len(p.stack) - 1; i >= idx; i-- {
		f := p.stack[i]
		if i > idx {
			p.report(loc, &core.MisnestedTag{What: name, Where: f.name})
		}
		p.emit(loc, core.EndElement(core.Name{Space: f.ns, Local: f.name}))
	}
	p.stack = p.stack[:idx]
	return true
}

// closeOne closes just the top element, used for implicit closes like
// an open <p> before a block element starts.
func (p *Parser) closeOne(loc core.Location) {
	if len(p.stack) == 0 {
		return
	}
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.emit(loc, core.EndElement(core.Name{Space: f.ns, Local: f.name}))
}

// closeFormattingTo closes down to and including the named formatting
// element. When every element above it is itself a formatting element
// (spec.md §8 scenario 3's "<b>2<i>3</b>4</i>5" shape), this is not a
// content-model violation — it reopens the intervening elements, in
// their original order and with their original attributes, immediately
// after the close, so subsequent content still nests inside them and
// no MisnestedTag is reported. Otherwise it falls back to closeTo.
func (p *Parser) closeFormattingTo(loc core.Location, name string) bool {
	idx := -1
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	if idx == len(p.stack)-1 {
		return p.closeTo(loc, name)
	}
	for i := idx + 1; i < len(p.stack); i++ {
		if !formattingElements[p.stack[i].name] {
			return p.closeTo(loc, name)
		}
	}
	reopen := append([]frame(nil), p.stack[idx+1:]...)
	for i := len(p.stack) - 1; i >= idx; i-- {
		f := p.stack[i]
		p.emit(loc, core.EndElement(core.Name{Space: f.ns, Local: f.name}))
	}
	p.stack = p.stack[:idx]
	for _, f := range reopen {
		p.push(loc, f.name, f.attrs, f.ns)
	}
	return true
}

// closeEndTag dispatches an end tag's close to closeFormattingTo for
// formatting elements, closeTo otherwise.
func (p *Parser) closeEndTag(loc core.Location, name string) bool {
	if formattingElements[name] {
		return p.closeFormattingTo(loc, name)
	}
	return p.closeTo(loc, name)
}

// breakOutOfForeignContent implements spec.md §4.F.4's HTML-breakout
// rule: encountering one of htmlBreakoutTags while inside SVG/MathML
// content reports the misnesting against the nearest foreign ancestor
// and pops every foreign frame before the new element is inserted in
// the HTML namespace.
func (p *Parser) breakOutOfForeignContent(loc core.Location, triggering string) {
	top, ok := p.top()
	if !ok || top.ns == "" || !htmlBreakoutTags[triggering] {
		return
	}
	p.report(loc, &core.MisnestedTag{What: triggering, Where: top.name})
	for {
		f, ok := p.top()
		if !ok || f.ns == "" {
			return
		}
		p.closeOne(loc)
	}
}

func (p *Parser) advance() error {
	if p.pendingErr != nil {
		err := p.pendingErr
		p.pendingErr = nil
		return err
	}
	var tok token
	var err error
	if p.pendingTok != nil {
		tok = *p.pendingTok
		p.pendingTok = nil
	} else {
		tok, err = p.tok.Next()
		if err != nil {
			return err
		}
	}
	if tok.kind == tokEOF {
		p.flushText()
		for len(p.stack) > 0 {
			p.closeOne(tok.loc)
		}
		p.done = true
		return nil
	}
	for {
		consumed, err := p.dispatch(tok)
		if err != nil {
			return err
		}
		if consumed {
			return nil
		}
	}
}

func (p *Parser) dispatch(tok token) (bool, error) {
	switch p.mode {
	case miInitial:
		return p.inInitial(tok)
	case miBeforeHTML:
		return p.inBeforeHTML(tok)
	case miBeforeHead:
		return p.inBeforeHead(tok)
	case miInHead:
		return p.inHead(tok)
	case miAfterHead:
		return p.inAfterHead(tok)
	case miInBody:
		return p.inBody(tok)
	case miInTable:
		return p.inTable(tok)
	case miText:
		return p.inText(tok)
	case miAfterBody:
		return p.inAfterBody(tok)
	case miAfterAfterBody:
		return p.inAfterAfterBody(tok)
	}
	return true, nil
}

func (p *Parser) inInitial(tok token) (bool, error) {
	switch tok.kind {
	case tokDoctype:
		p.emit(tok.loc, core.Signal{Kind: core.KindDoctype, Doctype: tok.doctype})
		p.mode = miBeforeHTML
		return true, nil
	case tokText:
		if strings.TrimSpace(tok.text) == "" {
			return true, nil
		}
	case tokComment:
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	}
	p.mode = miBeforeHTML
	return false, nil
}

func (p *Parser) inBeforeHTML(tok token) (bool, error) {
	switch {
	case tok.kind == tokStartTag && tok.name == "html":
		p.push(tok.loc, "html", convertAttrs(tok.attrs, ""), "")
		p.mode = miBeforeHead
		return true, nil
	case tok.kind == tokComment:
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		return true, nil
	}
	p.push(tok.loc, "html", nil, "")
	p.mode = miBeforeHead
	return false, nil
}

func (p *Parser) inBeforeHead(tok token) (bool, error) {
	switch {
	case tok.kind == tokStartTag && tok.name == "head":
		p.push(tok.loc, "head", convertAttrs(tok.attrs, ""), "")
		p.mode = miInHead
		return true, nil
	case tok.kind == tokComment:
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		return true, nil
	}
	p.push(tok.loc, "head", nil, "")
	p.mode = miInHead
	return false, nil
}

var headElements = map[string]bool{
	"base": true, "basefont": true, "bgsound": true, "link": true,
	"meta": true, "title": true, "noscript": true, "noframes": true,
	"style": true, "script": true, "template": true,
}

func (p *Parser) inHead(tok token) (bool, error) {
	switch {
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		p.bufferText(tok.loc, tok.text)
		return true, nil
	case tok.kind == tokComment:
		p.flushText()
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	case tok.kind == tokStartTag && headElements[tok.name]:
		p.flushText()
		p.push(tok.loc, tok.name, convertAttrs(tok.attrs, ""), "")
		if rawTextElements[tok.name] || rcdataElements[tok.name] {
			p.tok.SetRawMode(tok.name)
			p.modeBeforeText = miInHead
			p.mode = miText
		} else if tok.selfClosing || voidElements[tok.name] {
			p.closeOne(tok.loc)
		}
		return true, nil
	case tok.kind == tokEndTag && tok.name == "head":
		p.flushText()
		p.closeTo(tok.loc, "head")
		p.mode = miAfterHead
		return true, nil
	}
	p.flushText()
	p.closeTo(tok.loc, "head")
	p.mode = miAfterHead
	return false, nil
}

func (p *Parser) inAfterHead(tok token) (bool, error) {
	switch {
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		p.bufferText(tok.loc, tok.text)
		return true, nil
	case tok.kind == tokComment:
		p.flushText()
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	case tok.kind == tokStartTag && tok.name == "body":
		p.flushText()
		p.push(tok.loc, "body", convertAttrs(tok.attrs, ""), "")
		p.mode = miInBody
		return true, nil
	}
	p.flushText()
	p.push(tok.loc, "body", nil, "")
	p.mode = miInBody
	return false, nil
}

func convertAttrs(attrs []rawAttr, ns string) []core.Attribute {
	out := make([]core.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, core.Attribute{Name: core.Name{Space: ns, Local: a.Name}, Value: a.Value})
	}
	return out
}

func (p *Parser) inBody(tok token) (bool, error) {
	switch tok.kind {
	case tokText:
		p.bufferText(tok.loc, tok.text)
		return true, nil

	case tokComment:
		p.flushText()
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil

	case tokStartTag:
		p.flushText()
		return p.startTagInBody(tok)

	case tokEndTag:
		p.flushText()
		if !p.isFragment && tok.name == "html" {
			p.mode = miAfterBody
			return false, nil
		}
		if !p.closeEndTag(tok.loc, tok.name) {
			p.report(tok.loc, &core.UnmatchedEndTag{Name: tok.name})
		} else if len(p.stack) == 0 && !p.isFragment {
			p.mode = miAfterBody
		}
		return true, nil
	}
	return true, nil
}

func (p *Parser) startTagInBody(tok token) (bool, error) {
	name := tok.name

	p.breakOutOfForeignContent(tok.loc, name)

	if name == "table" {
		for _, c := range autoCloseOnReopen[name] {
			if p.inStack(c) {
				p.closeTo(tok.loc, c)
			}
		}
		ns := p.currentNamespace()
		p.push(tok.loc, name, convertAttrs(tok.attrs, ns), ns)
		p.mode = miInTable
		return true, nil
	}

	if closesPOnStart[name] && p.inStack("p") {
		p.closeTo(tok.loc, "p")
	}
	if closers, ok := autoCloseOnReopen[name]; ok {
		for _, c := range closers {
			if f, ok := p.top(); ok && f.name == c {
				p.closeOne(tok.loc)
				break
			}
		}
	}

	ns := p.currentNamespace()
	switch name {
	case "svg":
		ns = svgNS
	case "math":
		ns = mathNS
	}

	p.push(tok.loc, name, convertAttrs(tok.attrs, ns), ns)

	if rawTextElements[name] || rcdataElements[name] {
		p.tok.SetRawMode(name)
		p.modeBeforeText = miInBody
		p.mode = miText
		return true, nil
	}
	if tok.selfClosing || voidElements[name] {
		p.closeOne(tok.loc)
	}
	return true, nil
}

func (p *Parser) inText(tok token) (bool, error) {
	switch tok.kind {
	case tokText:
		p.bufferText(tok.loc, tok.text)
		return true, nil
	case tokEndTag:
		p.flushText()
		p.closeTo(tok.loc, tok.name)
		p.mode = p.modeBeforeText
		return true, nil
	default:
		p.mode = p.modeBeforeText
		return false, nil
	}
}

// inTableCellContext reports whether the nearest table-related ancestor
// above the current insertion point is a cell or caption, meaning
// ordinary content (not just row/cell structure) belongs here.
func (p *Parser) inTableCellContext() bool {
	for i := len(p.stack) - 1; i >= 0; i-- {
		switch p.stack[i].name {
		case "td", "th", "caption":
			return true
		case "table":
			return false
		}
	}
	return false
}

func (p *Parser) inTable(tok token) (bool, error) {
	if p.inTableCellContext() {
		switch tok.kind {
		case tokText:
			p.bufferText(tok.loc, tok.text)
			return true, nil
		case tokComment:
			p.flushText()
			p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
			return true, nil
		case tokStartTag:
			p.flushText()
			return p.startTagInBody(tok)
		case tokEndTag:
			p.flushText()
			if !p.closeEndTag(tok.loc, tok.name) {
				p.report(tok.loc, &core.UnmatchedEndTag{Name: tok.name})
			}
			return true, nil
		}
		return true, nil
	}

	switch tok.kind {
	case tokText:
		trimmed := strings.TrimSpace(tok.text)
		if trimmed == "" {
			p.bufferText(tok.loc, tok.text)
			return true, nil
		}
		// Foster parenting: stray non-whitespace text directly inside a
		// table (outside any cell) is reported and dropped rather than
		// inserted as a table child.
		p.report(tok.loc, &core.BadContent{Where: "table"})
		return true, nil

	case tokComment:
		p.flushText()
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil

	case tokStartTag:
		switch tok.name {
		case "caption", "colgroup", "tbody", "thead", "tfoot", "tr", "td", "th", "col":
			p.flushText()
			for _, c := range autoCloseOnReopen[tok.name] {
				if p.inStack(c) {
					p.closeTo(tok.loc, c)
				}
			}
			ns := p.currentNamespace()
			p.push(tok.loc, tok.name, convertAttrs(tok.attrs, ns), ns)
			if tok.selfClosing || voidElements[tok.name] {
				p.closeOne(tok.loc)
			}
			return true, nil
		}
		p.flushText()
		p.report(tok.loc, &core.BadContent{Where: "table"})
		return true, nil

	case tokEndTag:
		p.flushText()
		if tok.name == "table" {
			p.closeTo(tok.loc, "table")
			p.mode = miInBody
			return true, nil
		}
		if p.inStack(tok.name) {
			p.closeTo(tok.loc, tok.name)
			return true, nil
		}
		p.report(tok.loc, &core.UnmatchedEndTag{Name: tok.name})
		return true, nil
	}
	return true, nil
}

func (p *Parser) inAfterBody(tok token) (bool, error) {
	switch {
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		return p.inBody(tok)
	case tok.kind == tokComment:
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	case tok.kind == tokEndTag && tok.name == "html":
		p.mode = miAfterAfterBody
		return true, nil
	}
	p.mode = miInBody
	return false, nil
}

func (p *Parser) inAfterAfterBody(tok token) (bool, error) {
	switch {
	case tok.kind == tokText && strings.TrimSpace(tok.text) == "":
		return true, nil
	case tok.kind == tokComment:
		p.emit(tok.loc, core.Signal{Kind: core.KindComment, CommentBody: tok.text})
		return true, nil
	}
	p.report(tok.loc, &core.BadDocument{Detail: "content after </html>"})
	return true, nil
}
