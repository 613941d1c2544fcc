// Package xmltree is an out-of-core helper (spec.md §6: "tree-building
// helpers may be layered on top, but are not part of the core") that
// folds a stream.Stream[core.Located] into an in-memory
// github.com/beevik/etree document, for callers who want random access
// or XPath-style querying rather than the core's one-pass signal
// stream.
//
// Build never appears in the core packages (xml, html, xmlserialize,
// htmlserialize): it is a convenience layered on top, the same relationship
// the teacher's chtml.Parse has to beevik/etree, just run in reverse
// (there, etree.Document.ReadFrom builds the tree directly from bytes;
// here, the tree is built from an already-decoded signal stream so it
// can sit downstream of either ParseXML or ParseHTML).
package xmltree

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/gomarkup/markup/core"
	"github.com/gomarkup/markup/stream"
)

// scope tracks which namespace URIs are bound to which prefixes in the
// element currently being built, mirroring xmlserialize's resolvePrefix
// but writing into etree attributes instead of bytes.
type scope struct {
	bindings map[string]string // prefix -> uri
	nextAuto int
}

// Build drains sig and returns the document it describes. StartElement/
// EndElement signals nest normally; a stream with more than one
// top-level element (as a Fragment parse can produce) gets every one
// appended as a root-level sibling, since etree.Document has no single-
// root requirement of its own.
func Build(sig *stream.Stream[core.Located]) (*etree.Document, error) {
	doc := etree.NewDocument()
	b := &builder{doc: doc, sc: &scope{bindings: map[string]string{}}}
	b.stack = []*etree.Element{nil} // nil sentinel: children attach to doc
	if err := stream.Iter(sig, b.step); err != nil {
		return nil, err
	}
	if len(b.stack) != 1 {
		return nil, fmt.Errorf("xmltree: %d element(s) still open at end of stream", len(b.stack)-1)
	}
	return doc, nil
}

type builder struct {
	doc   *etree.Document
	stack []*etree.Element
	sc    *scope
}

func (b *builder) top() *etree.Element {
	return b.stack[len(b.stack)-1]
}

func (b *builder) createElement(tag string) *etree.Element {
	if parent := b.top(); parent != nil {
		return parent.CreateElement(tag)
	}
	return b.doc.CreateElement(tag)
}

func (b *builder) step(loc core.Located) error {
	s := loc.Signal
	switch s.Kind {
	case core.KindXMLDeclaration:
		d := s.XMLDecl
		version := d.Version
		if version == "" {
			version = "1.0"
		}
		inst := `version="` + version + `"`
		if d.HasEncoding {
			inst += ` encoding="` + d.Encoding + `"`
		}
		b.doc.CreateProcInst("xml", inst)
	case core.KindDoctype:
		b.doc.CreateDirective(doctypeDirective(s.Doctype))
	case core.KindComment:
		if parent := b.top(); parent != nil {
			parent.CreateComment(s.CommentBody)
		} else {
			b.doc.CreateComment(s.CommentBody)
		}
	case core.KindProcessingInstruction:
		if parent := b.top(); parent != nil {
			parent.CreateProcInst(s.PITarget, s.PIBody)
		} else {
			b.doc.CreateProcInst(s.PITarget, s.PIBody)
		}
	case core.KindText:
		if parent := b.top(); parent != nil {
			parent.CreateText(s.String())
		}
	case core.KindStartElement:
		tag, declare := b.sc.resolve(s.Name.Space)
		el := b.createElement(qualify(tag, s.Name.Local))
		if declare {
			attrName := "xmlns"
			if tag != "" {
				attrName = "xmlns:" + tag
			}
			el.CreateAttr(attrName, s.Name.Space)
		}
		for _, a := range s.Attr {
			aprefix := ""
			if a.Name.Space != "" {
				aprefix, _ = b.sc.resolve(a.Name.Space)
			}
			el.CreateAttr(qualify(aprefix, a.Name.Local), a.Value)
		}
		b.stack = append(b.stack, el)
	case core.KindEndElement:
		if len(b.stack) > 1 {
			b.stack = b.stack[:len(b.stack)-1]
		}
	}
	return nil
}

func (sc *scope) resolve(uri string) (prefix string, declare bool) {
	if uri == "" {
		return "", false
	}
	for p, u := range sc.bindings {
		if u == uri {
			return p, false
		}
	}
	if cur, bound := sc.bindings[""]; !bound || cur == uri {
		sc.bindings[""] = uri
		return "", true
	}
	p := "ns" + strconv.Itoa(sc.nextAuto)
	sc.nextAuto++
	sc.bindings[p] = uri
	return p, true
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func doctypeDirective(d core.Doctype) string {
	s := "DOCTYPE " + d.Name
	if d.HasPublic {
		s += ` PUBLIC "` + d.Public + `"`
		if d.HasSystem {
			s += ` "` + d.System + `"`
		}
	} else if d.HasSystem {
		s += ` SYSTEM "` + d.System + `"`
	}
	return s
}
