// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package repo holds package definitions, the recipes describing every
// version, variant, dependency, conflict and virtual a package declares, and
// the repository that serves them to the concretizer.
package repo

import (
	"crypto/sha256"
	"encoding/base32"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
	yaml "gopkg.in/yaml.v2"
)

// BuildSystem identifies the family of build steps a package uses.
type BuildSystem uint8

// Build system families.
const (
	Bundle BuildSystem = iota
	Makefile
	Autotools
	CMake
)

var buildSystemNames = map[BuildSystem]string{
	Bundle:    "bundle",
	Makefile:  "makefile",
	Autotools: "autotools",
	CMake:     "cmake",
}

func (b BuildSystem) String() string {
	return buildSystemNames[b]
}

// ParseBuildSystem converts a recipe build system name. The empty string is
// Bundle.
func ParseBuildSystem(name string) (BuildSystem, error) {
	if name == "" {
		return Bundle, nil
	}
	for b, n := range buildSystemNames {
		if n == strings.ToLower(name) {
			return b, nil
		}
	}
	return Bundle, errors.Errorf("unknown build system %q", name)
}

// Source says where the code of a package comes from. At most one field is
// expected to be set.
type Source struct {
	Git  string
	URL  string
	Path string
}

// VersionDecl is one declared version of a package.
type VersionDecl struct {
	Version    version.Version
	Preferred  bool
	Deprecated bool
	Tag        string
	Commit     string
}

// VariantDecl declares a build option.
type VariantDecl struct {
	Name        string
	Default     []string
	Values      []string // nil means any value is allowed
	Multi       bool
	Bool        bool
	Description string
}

// DefaultValue returns the value the variant takes when nothing constrains
// it.
func (v VariantDecl) DefaultValue() spec.VariantValue {
	if v.Bool {
		return spec.BoolVariant(v.Name, len(v.Default) == 1 && v.Default[0] == "true")
	}
	return spec.NewVariant(v.Name, v.Multi, v.Default...)
}

// Allows reports whether vv is a legal value for the variant.
func (v VariantDecl) Allows(vv spec.VariantValue) bool {
	if len(vv.Values) == 0 {
		return false
	}
	if !v.Multi && len(vv.Values) != 1 {
		return false
	}
	allowed := v.Values
	if v.Bool {
		allowed = []string{"false", "true"}
	}
	if allowed == nil {
		return true
	}
	for _, val := range vv.Values {
		found := false
		for _, a := range allowed {
			if a == val {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Alternatives returns the values worth trying for an unconstrained variant,
// default first. Open and multi-valued variants only offer their default.
func (v VariantDecl) Alternatives() []spec.VariantValue {
	def := v.DefaultValue()
	out := []spec.VariantValue{def}
	switch {
	case v.Bool:
		out = append(out, spec.BoolVariant(v.Name, def.Value() != "true"))
	case !v.Multi && v.Values != nil:
		for _, val := range v.Values {
			if val != def.Value() {
				out = append(out, spec.NewVariant(v.Name, false, val))
			}
		}
	}
	return out
}

// Dependency is a depends_on directive. When is an anonymous spec; nil means
// the dependency always applies.
type Dependency struct {
	Spec  *spec.Spec
	When  *spec.Spec
	Types spec.DepType
}

// Applies reports whether the condition holds for the depender s.
func (d Dependency) Applies(s *spec.Spec) bool {
	return holds(d.When, s)
}

// MayApply reports whether the condition could still hold for some
// concretization of s.
func (d Dependency) MayApply(s *spec.Spec) bool {
	return mayHold(d.When, s)
}

// Conflict is a conflicts directive: a package matching When must not also
// match Spec.
type Conflict struct {
	Spec *spec.Spec
	When *spec.Spec
	Msg  string
}

// Applies reports whether s is in conflict.
func (c Conflict) Applies(s *spec.Spec) bool {
	return holds(c.When, s) && s.Satisfies(c.Spec)
}

// Provide is a provides directive.
type Provide struct {
	Virtual *spec.Spec
	When    *spec.Spec
}

// Applies reports whether s provides the virtual.
func (p Provide) Applies(s *spec.Spec) bool {
	return holds(p.When, s)
}

// MayApply reports whether some concretization of s could provide the
// virtual.
func (p Provide) MayApply(s *spec.Spec) bool {
	return mayHold(p.When, s)
}

func holds(when, s *spec.Spec) bool {
	return when == nil || s.Satisfies(when)
}

func mayHold(when, s *spec.Spec) bool {
	return when == nil || s.Intersects(when)
}

// Definition is the recipe of one package. Build it with Package and the
// directive methods; once the repository freezes it, directives panic.
type Definition struct {
	Name         string
	Homepage     string
	Versions     []VersionDecl
	Variants     map[string]VariantDecl
	Dependencies []Dependency
	Conflicts    []Conflict
	Provides     []Provide
	BuildSystem  BuildSystem
	Source       Source

	frozen bool
	hash   string
}

// Package starts the definition of a package.
func Package(name string) *Definition {
	return &Definition{Name: name}
}

func (d *Definition) mutate() {
	if d.frozen {
		panic("cannot modify frozen definition of " + d.Name)
	}
}

// VersionOption adjusts a version directive.
type VersionOption func(*VersionDecl)

// Preferred marks a version as preferred over newer ones.
func Preferred() VersionOption {
	return func(v *VersionDecl) { v.Preferred = true }
}

// Deprecated marks a version as deprecated.
func Deprecated() VersionOption {
	return func(v *VersionDecl) { v.Deprecated = true }
}

// Tag sets the VCS tag of a version.
func Tag(tag string) VersionOption {
	return func(v *VersionDecl) { v.Tag = tag }
}

// Commit sets the VCS commit of a version.
func Commit(rev string) VersionOption {
	return func(v *VersionDecl) { v.Commit = rev }
}

// Version declares a version.
func (d *Definition) Version(v string, opts ...VersionOption) *Definition {
	must(d.addVersion(v, opts...))
	return d
}

func (d *Definition) addVersion(v string, opts ...VersionOption) error {
	d.mutate()
	pv, err := version.NewVersion(v)
	if err != nil {
		return errors.Wrapf(err, "%s: bad version", d.Name)
	}
	if _, has := d.VersionDecl(pv); has {
		return errors.Errorf("%s: version %s declared twice", d.Name, v)
	}
	decl := VersionDecl{Version: pv}
	for _, o := range opts {
		o(&decl)
	}
	d.Versions = append(d.Versions, decl)
	return nil
}

// VariantOption adjusts a variant directive.
type VariantOption func(*VariantDecl)

// Values restricts a variant to the given values.
func Values(values ...string) VariantOption {
	return func(v *VariantDecl) { v.Values = append([]string(nil), values...) }
}

// Multi allows a variant to hold several values at once.
func Multi() VariantOption {
	return func(v *VariantDecl) { v.Multi = true }
}

// Description documents a variant.
func Description(text string) VariantOption {
	return func(v *VariantDecl) { v.Description = text }
}

// Variant declares a variant with the given default. A default of "true" or
// "false" with no restricted values makes a boolean variant; multi-valued
// defaults are comma separated.
func (d *Definition) Variant(name, def string, opts ...VariantOption) *Definition {
	must(d.addVariant(name, def, opts...))
	return d
}

// BoolVariant declares a boolean variant.
func (d *Definition) BoolVariant(name string, def bool, opts ...VariantOption) *Definition {
	if def {
		return d.Variant(name, "true", opts...)
	}
	return d.Variant(name, "false", opts...)
}

func (d *Definition) addVariant(name, def string, opts ...VariantOption) error {
	d.mutate()
	if _, has := d.Variants[name]; has {
		return errors.Errorf("%s: variant %s declared twice", d.Name, name)
	}
	decl := VariantDecl{Name: name}
	if def != "" {
		decl.Default = strings.Split(def, ",")
	}
	for _, o := range opts {
		o(&decl)
	}
	decl.Bool = decl.Values == nil && !decl.Multi && (def == "true" || def == "false")
	if len(decl.Default) == 0 {
		return errors.Errorf("%s: variant %s has no default", d.Name, name)
	}
	if !decl.Allows(decl.DefaultValue()) {
		return errors.Errorf("%s: default %q of variant %s is not an allowed value", d.Name, def, name)
	}

	if d.Variants == nil {
		d.Variants = make(map[string]VariantDecl)
	}
	d.Variants[name] = decl
	return nil
}

// DepOption adjusts a depends_on directive.
type DepOption func(*depOpts)

type depOpts struct {
	when  string
	types spec.DepType
}

// When makes a directive conditional on an anonymous spec such as "+mpi" or
// "@2:".
func When(cond string) DepOption {
	return func(o *depOpts) { o.when = cond }
}

// Type sets the dependency types; the default is build and link.
func Type(types spec.DepType) DepOption {
	return func(o *depOpts) { o.types = types }
}

// DependsOn declares a dependency.
func (d *Definition) DependsOn(text string, opts ...DepOption) *Definition {
	var o depOpts
	for _, f := range opts {
		f(&o)
	}
	must(d.addDependency(text, o.when, o.types))
	return d
}

func (d *Definition) addDependency(text, when string, types spec.DepType) error {
	d.mutate()
	s, err := spec.Parse(text)
	if err != nil {
		return errors.Wrapf(err, "%s: bad dependency", d.Name)
	}
	if s.Anonymous() {
		return errors.Errorf("%s: dependency %q has no package name", d.Name, text)
	}
	if len(s.Dependencies()) != 0 {
		return errors.Errorf("%s: dependency %q may not carry ^ constraints", d.Name, text)
	}
	w, err := parseWhen(d.Name, when)
	if err != nil {
		return err
	}
	if types == 0 {
		types = spec.DefaultDepTypes
	}
	d.Dependencies = append(d.Dependencies, Dependency{Spec: s, When: w, Types: types})
	return nil
}

// Conflict declares that the package may not match text while when holds.
func (d *Definition) Conflict(text, when, msg string) *Definition {
	must(d.addConflict(text, when, msg))
	return d
}

func (d *Definition) addConflict(text, when, msg string) error {
	d.mutate()
	s, err := spec.Parse(text)
	if err != nil {
		return errors.Wrapf(err, "%s: bad conflict", d.Name)
	}
	if !s.Anonymous() && s.Name != d.Name {
		return errors.Errorf("%s: conflict %q names another package", d.Name, text)
	}
	if len(s.Dependencies()) != 0 {
		return errors.Errorf("%s: conflict %q may not carry ^ constraints", d.Name, text)
	}
	w, err := parseWhen(d.Name, when)
	if err != nil {
		return err
	}
	d.Conflicts = append(d.Conflicts, Conflict{Spec: s, When: w, Msg: msg})
	return nil
}

// Provide declares that the package implements a virtual package, such as
// "mpi@3:", while when holds.
func (d *Definition) Provide(virtual, when string) *Definition {
	must(d.addProvide(virtual, when))
	return d
}

func (d *Definition) addProvide(virtual, when string) error {
	d.mutate()
	v, err := spec.Parse(virtual)
	if err != nil {
		return errors.Wrapf(err, "%s: bad provides", d.Name)
	}
	if v.Anonymous() {
		return errors.Errorf("%s: provides %q has no virtual name", d.Name, virtual)
	}
	w, err := parseWhen(d.Name, when)
	if err != nil {
		return err
	}
	d.Provides = append(d.Provides, Provide{Virtual: v, When: w})
	return nil
}

// Builds sets the build system.
func (d *Definition) Builds(b BuildSystem) *Definition {
	d.mutate()
	d.BuildSystem = b
	return d
}

// From sets the source of the package.
func (d *Definition) From(src Source) *Definition {
	d.mutate()
	d.Source = src
	return d
}

func parseWhen(pkg, when string) (*spec.Spec, error) {
	if when == "" {
		return nil, nil
	}
	w, err := spec.Parse(when)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: bad condition", pkg)
	}
	if !w.Anonymous() && w.Name != pkg {
		return nil, errors.Errorf("%s: condition %q names another package", pkg, when)
	}
	if len(w.Dependencies()) != 0 {
		return nil, errors.Errorf("%s: condition %q may not carry ^ constraints", pkg, when)
	}
	w.Name = ""
	return w, nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// VersionDecl returns the declaration of v, if v was declared.
func (d *Definition) VersionDecl(v version.Version) (VersionDecl, bool) {
	for _, decl := range d.Versions {
		if decl.Version.Equal(v) {
			return decl, true
		}
	}
	return VersionDecl{}, false
}

// DeclaredVersions returns every declared version, newest first.
func (d *Definition) DeclaredVersions() []version.Version {
	out := make([]version.Version, len(d.Versions))
	for k, decl := range d.Versions {
		out[k] = decl.Version
	}
	version.SortNewestFirst(out)
	return out
}

// VariantNames returns the declared variant names in sorted order.
func (d *Definition) VariantNames() []string {
	names := make([]string, 0, len(d.Variants))
	for n := range d.Variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProvidesVirtual reports whether any provides directive names virtual.
func (d *Definition) ProvidesVirtual(virtual string) bool {
	for _, p := range d.Provides {
		if p.Virtual.Name == virtual {
			return true
		}
	}
	return false
}

// MarkMulti flags the variants s sets that d declares multi-valued, so that
// "languages=c" reads as at least c rather than exactly c. A nil s is
// ignored.
func (d *Definition) MarkMulti(s *spec.Spec) {
	if s == nil {
		return
	}
	for _, n := range s.Variants.Names() {
		if d.Variants[n].Multi {
			// Directive specs are never frozen.
			_ = s.MarkMulti(n)
		}
	}
}

// Frozen reports whether the definition can no longer be modified.
func (d *Definition) Frozen() bool {
	return d.frozen
}

// Freeze validates the definition, computes its content hash and makes it
// immutable.
func (d *Definition) Freeze() error {
	if d.frozen {
		return nil
	}
	if d.Name == "" {
		return errors.New("package definition has no name")
	}
	for _, dep := range d.Dependencies {
		if dep.Spec.Name == d.Name {
			return errors.Errorf("%s depends on itself", d.Name)
		}
		d.MarkMulti(dep.When)
	}
	for _, c := range d.Conflicts {
		d.MarkMulti(c.Spec)
		d.MarkMulti(c.When)
	}
	for _, p := range d.Provides {
		d.MarkMulti(p.When)
	}
	h, err := d.contentHash()
	if err != nil {
		return err
	}
	d.hash = h
	d.frozen = true
	return nil
}

// Hash returns the content hash of a frozen definition.
func (d *Definition) Hash() string {
	return d.hash
}

type defDoc struct {
	Name         string       `yaml:"name"`
	BuildSystem  string       `yaml:"build_system"`
	Source       Source       `yaml:"source"`
	Versions     []versionDoc `yaml:"versions"`
	Variants     []variantDoc `yaml:"variants"`
	Dependencies [][3]string  `yaml:"depends_on"`
	Conflicts    [][3]string  `yaml:"conflicts"`
	Provides     [][2]string  `yaml:"provides"`
}

type versionDoc struct {
	Version    string `yaml:"version"`
	Preferred  bool   `yaml:"preferred"`
	Deprecated bool   `yaml:"deprecated"`
	Tag        string `yaml:"tag"`
	Commit     string `yaml:"commit"`
}

type variantDoc struct {
	Name    string   `yaml:"name"`
	Default []string `yaml:"default"`
	Values  []string `yaml:"values"`
	Multi   bool     `yaml:"multi"`
}

func condString(s *spec.Spec) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func (d *Definition) contentHash() (string, error) {
	doc := defDoc{
		Name:        d.Name,
		BuildSystem: d.BuildSystem.String(),
		Source:      d.Source,
	}
	for _, v := range d.Versions {
		doc.Versions = append(doc.Versions, versionDoc{
			Version:    v.Version.String(),
			Preferred:  v.Preferred,
			Deprecated: v.Deprecated,
			Tag:        v.Tag,
			Commit:     v.Commit,
		})
	}
	for _, n := range d.VariantNames() {
		v := d.Variants[n]
		doc.Variants = append(doc.Variants, variantDoc{Name: n, Default: v.Default, Values: v.Values, Multi: v.Multi})
	}
	for _, dep := range d.Dependencies {
		doc.Dependencies = append(doc.Dependencies, [3]string{dep.Spec.String(), condString(dep.When), dep.Types.String()})
	}
	for _, c := range d.Conflicts {
		doc.Conflicts = append(doc.Conflicts, [3]string{c.Spec.String(), condString(c.When), c.Msg})
	}
	for _, p := range d.Provides {
		doc.Provides = append(doc.Provides, [2]string{p.Virtual.String(), condString(p.When)})
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to hash definition of %s", d.Name)
	}
	sum := sha256.Sum256(b)
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))[:spec.HashLen], nil
}
