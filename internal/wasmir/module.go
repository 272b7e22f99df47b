// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

import "fmt"

// Features records which WebAssembly proposals a [Module] requires. The
// compiler always needs all of these; [Module.EnableRequiredFeatures]
// sets them in one call.
type Features struct {
	GC            bool
	Exceptions    bool
	TailCall      bool
	ReferenceTypes bool
	BulkMemory    bool
}

// ExportKind discriminates what an [Export] names.
type ExportKind uint8

const (
	ExportFunc ExportKind = iota
	ExportTag
	ExportGlobal
)

// Export names a module-internal entity for consumption by the host.
type Export struct {
	Name string
	Kind ExportKind
	Func *Func
	Tag  *Tag
}

// Import describes a host-provided function that the module calls.
// Mode§6.1/§6.3: in linked-chunk ("minimal") mode, the runtime library's
// own helpers are imported this way too, from module "runtime".
type Import struct {
	Module string
	Name   string
	Sig    *HeapType // FuncKind
	// LocalName is the name call sites use to refer to this import; it
	// defaults to Name.
	LocalName string
}

// Tag is a WebAssembly exception tag. The compiler installs exactly one,
// the Lua error tag, carrying a single anyref payload.
type Tag struct {
	Name   string
	Params []ValType
}

// DataSegment is a passive or active chunk of initializer bytes, used to
// back string literals via array.new_data.
type DataSegment struct {
	Name string
	Data []byte
}

// Local is one declared local slot of a [Func].
type Local struct {
	Type ValType
	Name string
}

// Func is a WebAssembly function definition.
type Func struct {
	Name    string
	Sig     *HeapType // FuncKind
	Locals  []Local   // beyond the parameters named by Sig
	Body    []*Instr
	Exported bool
}

// Module is the WebAssembly module under construction.
type Module struct {
	Features Features

	types     []*HeapType
	typeIndex map[*HeapType]int

	Funcs   []*Func
	Imports []*Import
	Exports []*Export
	Tags    []*Tag
	Data    []*DataSegment

	funcIndex map[string]int
	labelNo   int
	dataNo    int
}

// NewModule returns an empty module with no types or functions installed.
func NewModule() *Module {
	return &Module{
		typeIndex: make(map[*HeapType]int),
		funcIndex: make(map[string]int),
	}
}

// EnableRequiredFeatures turns on every WebAssembly proposal this compiler
// targets (§3): GC, exception-handling, tail-call, reference-types, and
// bulk-memory.
func (m *Module) EnableRequiredFeatures() {
	m.Features = Features{GC: true, Exceptions: true, TailCall: true, ReferenceTypes: true, BulkMemory: true}
}

// AddType installs ht into the module's type group, assigning it a stable
// index. Calling AddType again with an already-installed type is a no-op
// and returns the existing index; this lets the Runtime Type Registry and
// the runtime library generator both reference shared types (the
// reference-array type, the upvalue type) without coordinating
// installation order.
func (m *Module) AddType(ht *HeapType) int {
	if idx, ok := m.typeIndex[ht]; ok {
		return idx
	}
	idx := len(m.types)
	ht.index = idx
	m.types = append(m.types, ht)
	m.typeIndex[ht] = idx
	return idx
}

// Types returns the installed type group in installation order.
func (m *Module) Types() []*HeapType { return m.types }

// AddFunc installs f into the module's function index space, and its
// signature into the type group.
func (m *Module) AddFunc(f *Func) int {
	if f.Sig != nil {
		m.AddType(f.Sig)
	}
	idx := len(m.Funcs)
	m.Funcs = append(m.Funcs, f)
	if f.Name != "" {
		m.funcIndex[f.Name] = idx
	}
	return idx
}

// FuncIndex looks up a previously added function by name.
func (m *Module) FuncIndex(name string) (int, bool) {
	idx, ok := m.funcIndex[name]
	return idx, ok
}

// AddImport declares an imported function and returns it. Imported
// functions share the function index space with [Func] values defined by
// AddFunc, consistent with how call sites address either uniformly by
// name.
func (m *Module) AddImport(imp *Import) *Import {
	if imp.LocalName == "" {
		imp.LocalName = imp.Name
	}
	m.AddType(imp.Sig)
	m.Imports = append(m.Imports, imp)
	return imp
}

// AddTag installs a new exception tag.
func (m *Module) AddTag(tag *Tag) *Tag {
	m.Tags = append(m.Tags, tag)
	return tag
}

// Export records that name should be visible to the host.
func (m *Module) ExportFunc(f *Func, name string) {
	f.Exported = true
	m.Exports = append(m.Exports, &Export{Name: name, Kind: ExportFunc, Func: f})
}

// ExportTag records that a tag should be visible to the host, so that
// uncaught Lua errors can be caught at the module boundary (§6.4).
func (m *Module) ExportTag(tag *Tag, name string) {
	m.Exports = append(m.Exports, &Export{Name: name, Kind: ExportTag, Tag: tag})
}

// AddDataSegment installs a passive data segment holding data and returns
// its symbolic name, for use with [Builder.ArrayNewData].
func (m *Module) AddDataSegment(data []byte) string {
	name := fmt.Sprintf("data%d", m.dataNo)
	m.dataNo++
	m.Data = append(m.Data, &DataSegment{Name: name, Data: data})
	return name
}

// NewLabel returns a fresh block/loop label built from prefix, unique
// within the module. Labels only need to be unique per function in wasm
// proper, but a module-wide counter is simpler to reason about and costs
// nothing since labels never reach the binary (serialization is out of
// scope here).
func (m *Module) NewLabel(prefix string) string {
	m.labelNo++
	return fmt.Sprintf("%s%d", prefix, m.labelNo)
}
