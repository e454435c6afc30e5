// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"strings"

	"github.com/sprout-pm/sprout/version"
)

// Parse parses a single abstract spec:
//
//	name[@versions][+variant|~variant|-variant|variant=value]*[%compiler[@versions]]
//	    [arch=platform-os-target|platform=p|os=o|target=t][/hash] [^dependency]*
//
// The name may be omitted, producing an anonymous spec such as "+debug@1.0:".
func Parse(text string) (*Spec, error) {
	roots, err := ParseMany(text)
	if err != nil {
		return nil, err
	}
	switch len(roots) {
	case 0:
		return nil, &ParseError{Text: text, Msg: "empty spec"}
	case 1:
		return roots[0], nil
	}
	return nil, &ParseError{Text: text, Msg: "expected a single spec"}
}

// MustParse is like Parse, but panics on error.
func MustParse(text string) *Spec {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseMany parses whitespace separated root specs, each with its own "^"
// dependencies: "hdf5+mpi ^mpich zlib@1.2".
func ParseMany(text string) ([]*Spec, error) {
	p := &parser{text: text}
	return p.parse()
}

type parser struct {
	text string
	pos  int

	roots []*Spec
	root  *Spec
	cur   *Spec
}

func (p *parser) errorf(msg string) error {
	return &ParseError{Text: p.text, Pos: p.pos, Msg: msg}
}

func (p *parser) eof() bool {
	return p.pos >= len(p.text)
}

func (p *parser) peek() byte {
	return p.text[p.pos]
}

func (p *parser) skipSpace() bool {
	start := p.pos
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
	return p.pos > start
}

// take consumes bytes while ok holds and returns them.
func (p *parser) take(ok func(byte) bool) string {
	start := p.pos
	for !p.eof() && ok(p.peek()) {
		p.pos++
	}
	return p.text[start:p.pos]
}

// node returns the node attributes currently apply to, creating an anonymous
// root if nothing has been named yet.
func (p *parser) node() *Spec {
	if p.cur == nil {
		p.startRoot("")
	}
	return p.cur
}

func (p *parser) startRoot(name string) {
	p.root = New(name)
	p.cur = p.root
	p.roots = append(p.roots, p.root)
}

func (p *parser) parse() ([]*Spec, error) {
	spaced := true
	for {
		if p.skipSpace() {
			spaced = true
		}
		if p.eof() {
			break
		}

		var err error
		switch c := p.peek(); {
		case c == '^':
			err = p.parseDependency()
		case c == '@':
			err = p.parseVersions()
		case c == '+':
			err = p.parseBoolVariant(true)
		case c == '~':
			err = p.parseBoolVariant(false)
		case c == '-' && spaced:
			err = p.parseBoolVariant(false)
		case c == '%':
			err = p.parseCompiler()
		case c == '/':
			err = p.parseHash()
		case isNameByte(c):
			err = p.parseWord(spaced)
		default:
			err = p.errorf("unexpected character " + string(c))
		}
		if err != nil {
			return nil, err
		}
		spaced = false
	}
	return p.roots, nil
}

func (p *parser) parseDependency() error {
	p.pos++
	p.skipSpace()
	name := p.take(isNameByte)
	if name == "" {
		return p.errorf("expected a package name after ^")
	}
	if p.root == nil {
		p.startRoot("")
	}
	if _, has := p.root.Dependency(name); has {
		return p.errorf("duplicate dependency " + name)
	}
	dep := p.root.g.NewNode(name)
	if err := p.root.g.Link(p.root, dep, 0); err != nil {
		return err
	}
	p.cur = dep
	return nil
}

func (p *parser) parseVersions() error {
	p.pos++
	n := p.node()
	if !n.Versions.IsAny() {
		return p.errorf("multiple version constraints on " + displayName(n.Name))
	}
	body := p.take(isVersionByte)
	vs, err := version.ParseSet(body)
	if err != nil {
		return p.errorf(err.Error())
	}
	n.Versions = vs
	return nil
}

func (p *parser) parseBoolVariant(on bool) error {
	p.pos++
	name := p.take(isNameByte)
	if name == "" {
		return p.errorf("expected a variant name")
	}
	return p.setVariant(p.node(), BoolVariant(name, on))
}

func (p *parser) setVariant(n *Spec, v VariantValue) error {
	if old, has := n.Variants[v.Name]; has && !old.equal(v) {
		return p.errorf("conflicting values for variant " + v.Name)
	}
	return n.SetVariant(v)
}

func (p *parser) parseCompiler() error {
	p.pos++
	n := p.node()
	if n.Compiler.Name != "" {
		return p.errorf("multiple compilers on " + displayName(n.Name))
	}
	name := p.take(isNameByte)
	if name == "" {
		return p.errorf("expected a compiler name after %")
	}
	n.Compiler.Name = name
	if !p.eof() && p.peek() == '@' {
		p.pos++
		vs, err := version.ParseSet(p.take(isVersionByte))
		if err != nil {
			return p.errorf(err.Error())
		}
		n.Compiler.Versions = vs
	}
	return nil
}

func (p *parser) parseHash() error {
	p.pos++
	h := strings.ToLower(p.take(isAlnum))
	if h == "" {
		return p.errorf("expected a hash after /")
	}
	p.node().Hash = h
	return nil
}

// parseWord handles a bare word: either key=value on the current node, or the
// name of a new root spec.
func (p *parser) parseWord(spaced bool) error {
	start := p.pos
	word := p.take(isNameByte)
	if p.eof() || p.peek() != '=' {
		if !spaced && p.cur != nil {
			p.pos = start
			return p.errorf("unexpected name " + word)
		}
		p.startRoot(word)
		return nil
	}

	p.pos++
	value := p.take(isValueByte)
	if value == "" {
		return p.errorf("expected a value for " + word)
	}

	n := p.node()
	switch word {
	case "arch", "architecture":
		a, err := ParseArch(value)
		if err != nil {
			return p.errorf(err.Error())
		}
		n.Arch = a
	case "platform":
		n.Arch.Platform = value
	case "os":
		n.Arch.OS = value
	case "target":
		n.Arch.Target = value
	default:
		values := strings.Split(value, ",")
		for _, v := range values {
			if v == "" {
				return p.errorf("empty value for variant " + word)
			}
		}
		return p.setVariant(n, NewVariant(word, len(values) > 1, values...))
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNameByte(c byte) bool {
	return isAlnum(c) || c == '_' || c == '-' || c == '.'
}

func isVersionByte(c byte) bool {
	return isAlnum(c) || strings.IndexByte("._-:,=", c) >= 0
}

func isValueByte(c byte) bool {
	return isAlnum(c) || strings.IndexByte("._-:,", c) >= 0
}
