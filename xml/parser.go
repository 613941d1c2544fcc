package xml

import (
	"strings"

	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

const (
	xmlNamespaceURI   = "http://www.w3.org/XML/1998/namespace"
	xmlnsNamespaceURI = "http://www.w3.org/2000/xmlns/"
)

type elementFrame struct {
	rawName string
	name    core.Name
}

// Parser is the XML tree constructor (spec.md §4.D): it drives a
// Tokenizer and assembles StartElement/EndElement pairing, namespace
// resolution, document-grammar enforcement and text-run coalescing into
// a stream of Located signals.
type Parser struct {
	tok    *Tokenizer
	opts   core.Options
	ctx    core.Context
	report func(core.Location, error) error

	stack   []elementFrame
	nsStack []map[string]string // parallel to stack; bindings added at that depth

	pending []core.Located
	textBuf strings.Builder
	textLoc core.Location
	haveText bool

	isFragment bool
	sawXMLDecl bool
	firstToken bool
	sawRoot    bool
	rootClosed bool
	done       bool
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
	p := &Parser{opts: opts, ctx: ctx, report: rf}
	p.tok = NewTokenizer(runes, rf, opts.Entity)
	if ctx.IsSet && ctx.Fragment != "" {
		// Fragment context: several top-level nodes are allowed and no
		// implicit root element is opened or closed.
		p.isFragment = true
	}
	return p
}

// Parse wraps a Parser in a lazy stream.Stream[core.Located].
func Parse(runes *stream.Stream[core.PositionedRune], opts core.Options, ctx core.Context) *stream.Stream[core.Located] {
	p := NewParser(runes, opts, ctx)
	return stream.FromFunc(p.step)
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
	if !p.haveText {
		p.textLoc = loc
		p.haveText = true
	}
	p.textBuf.WriteString(s)
}

func (p *Parser) depth() int { return len(p.stack) }

// advance reads exactly one token and appends zero or more Located
// signals to p.pending (or marks p.done at end of input).
func (p *Parser) advance() error {
	tk, err := p.tok.Next()
	if err != nil {
		return err
	}

	if tk.kind == tokEOF {
		p.flushText()
		for i := len(p.stack) - 1; i >= 0; i-- {
			f := p.stack[i]
			p.report(tk.loc, &core.UnmatchedStartTag{Name: f.rawName})
			p.emit(tk.loc, core.EndElement(f.name))
		}
		p.stack = nil
		p.nsStack = nil
		p.done = true
		return nil
	}

	wasFirst := !p.firstToken
	p.firstToken = true

	switch tk.kind {
	case tokXMLDecl:
		p.flushText()
		if !wasFirst || p.sawXMLDecl {
			p.report(tk.loc, &core.BadDocument{Detail: "XML declaration must be the first thing in the document"})
			return nil
		}
		p.sawXMLDecl = true
		p.emit(tk.loc, core.Signal{Kind: core.KindXMLDeclaration, XMLDecl: tk.xmlDecl})
		return nil

	case tokDoctype:
		p.flushText()
		if p.sawRoot && !p.isFragment {
			p.report(tk.loc, &core.BadDocument{Detail: "doctype declaration must precede the root element"})
			return nil
		}
		p.emit(tk.loc, core.Signal{Kind: core.KindDoctype, Doctype: tk.doctype})
		return nil

	case tokComment:
		p.flushText()
		p.emit(tk.loc, core.Signal{Kind: core.KindComment, CommentBody: tk.text})
		return nil

	case tokPI:
		p.flushText()
		p.emit(tk.loc, core.Signal{Kind: core.KindProcessingInstruction, PITarget: tk.piTarget, PIBody: tk.piBody})
		return nil

	case tokText:
		if p.depth() == 0 && !p.isFragment && strings.TrimSpace(tk.text) != "" {
			p.report(tk.loc, &core.BadDocument{Detail: "character data outside the root element"})
			return nil
		}
		p.bufferText(tk.loc, tk.text)
		return nil

	case tokCDATA:
		if p.depth() == 0 && !p.isFragment {
			p.report(tk.loc, &core.BadDocument{Detail: "CDATA section outside the root element"})
			return nil
		}
		p.bufferText(tk.loc, tk.text)
		return nil

	case tokStartTag:
		p.flushText()
		if p.rootClosed && !p.isFragment {
			p.report(tk.loc, &core.BadDocument{Detail: "multiple root elements"})
		}
		p.sawRoot = true
		p.openElement(tk)
		return nil

	case tokEndTag:
		p.flushText()
		p.closeElement(tk)
		return nil
	}
	return nil
}

func (p *Parser) openElement(tk token) {
	scope := map[string]string{}
	for _, a := range tk.attrs {
		switch {
		case a.Name == "xmlns":
			scope[""] = a.Value
		case strings.HasPrefix(a.Name, "xmlns:"):
			scope[a.Name[len("xmlns:"):]] = a.Value
		}
	}
	p.nsStack = append(p.nsStack, scope)

	name := p.resolveElementName(tk.loc, tk.name)
	out := make([]core.Attribute, 0, len(tk.attrs))
	for _, a := range tk.attrs {
		switch {
		case a.Name == "xmlns":
			out = append(out, core.Attribute{Name: core.Name{Space: xmlnsNamespaceURI, Local: "xmlns"}, Value: a.Value})
		case strings.HasPrefix(a.Name, "xmlns:"):
			out = append(out, core.Attribute{Name: core.Name{Space: xmlnsNamespaceURI, Local: a.Name[len("xmlns:"):]}, Value: a.Value})
		default:
			out = append(out, core.Attribute{Name: p.resolveAttrName(a.Loc, a.Name), Value: a.Value})
		}
	}

	frame := elementFrame{rawName: tk.name, name: name}
	p.stack = append(p.stack, frame)
	p.emit(tk.loc, core.StartElement(name, out))

	if tk.selfClosing {
		p.stack = p.stack[:len(p.stack)-1]
		p.nsStack = p.nsStack[:len(p.nsStack)-1]
		p.emit(tk.loc, core.EndElement(name))
		if p.depth() == 0 {
			p.rootClosed = true
		}
	}
}

func (p *Parser) closeElement(tk token) {
	idx := -1
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].rawName == tk.name {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.report(tk.loc, &core.UnmatchedEndTag{Name: tk.name})
		return
	}
	for i := len(p.stack) - 1; i >= idx; i-- {
		f := p.stack[i]
		if i > idx {
			p.report(tk.loc, &core.UnmatchedStartTag{Name: f.rawName})
		}
		p.emit(tk.loc, core.EndElement(f.name))
	}
	p.stack = p.stack[:idx]
	p.nsStack = p.nsStack[:idx]
	if p.depth() == 0 {
		p.rootClosed = true
	}
}

func (p *Parser) lookupPrefix(prefix string) (string, bool) {
	for i := len(p.nsStack) - 1; i >= 0; i-- {
		if uri, ok := p.nsStack[i][prefix]; ok {
			return uri, true
		}
	}
	if p.opts.Namespace != nil {
		return p.opts.Namespace(prefix)
	}
	return "", false
}

func (p *Parser) resolveElementName(loc core.Location, raw string) core.Name {
	prefix, local := splitQName(raw)
	if prefix == "xml" {
		return core.Name{Space: xmlNamespaceURI, Local: local}
	}
	if uri, ok := p.lookupPrefix(prefix); ok {
		return core.Name{Space: uri, Local: local}
	}
	if prefix != "" {
		p.report(loc, &core.BadNamespace{Detail: "unbound prefix " + prefix})
	}
	return core.Name{Local: local}
}

func (p *Parser) resolveAttrName(loc core.Location, raw string) core.Name {
	prefix, local := splitQName(raw)
	if prefix == "" {
		// Unprefixed attributes never inherit the default namespace.
		return core.Name{Local: local}
	}
	if prefix == "xml" {
		return core.Name{Space: xmlNamespaceURI, Local: local}
	}
	if uri, ok := p.lookupPrefix(prefix); ok {
		return core.Name{Space: uri, Local: local}
	}
	p.report(loc, &core.BadNamespace{Detail: "unbound prefix " + prefix})
	return core.Name{Local: local}
}

func splitQName(raw string) (prefix, local string) {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return "", raw
}
