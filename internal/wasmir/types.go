// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

// Kind discriminates the shape of a [ValType].
type Kind uint8

const (
	I32 Kind = iota
	I64
	F32
	F64
	// AnyRef is the nullable top reference type used for every Lua value.
	AnyRef
	// ExternRef is the host-opaque reference type used to marshal bytes
	// across the module boundary (see [6.3] of the host import contract).
	ExternRef
	// Ref is a non-null reference to a specific heap type.
	Ref
	// RefNull is a nullable reference to a specific heap type.
	RefNull
	// FuncRef is a reference to a function signature's heap type, used
	// to model the `funcref` slot of a closure struct.
	FuncRef
	// None is wasm's "no value" block/result type.
	None
)

// ValType is a WebAssembly value type: either one of the numeric/generic
// reference kinds, or a concrete reference to a [HeapType] installed in
// a [Module] (Ref/RefNull/FuncRef).
type ValType struct {
	Kind Kind
	Heap *HeapType
}

func Num(k Kind) ValType { return ValType{Kind: k} }

var (
	ValI32    = ValType{Kind: I32}
	ValI64    = ValType{Kind: I64}
	ValF64    = ValType{Kind: F64}
	ValAnyRef = ValType{Kind: AnyRef}
	ValExtern = ValType{Kind: ExternRef}
	ValNone   = ValType{Kind: None}
)

// RefType returns a non-null reference type to ht.
func RefType(ht *HeapType) ValType { return ValType{Kind: Ref, Heap: ht} }

// NullableRefType returns a nullable reference type to ht.
func NullableRefType(ht *HeapType) ValType { return ValType{Kind: RefNull, Heap: ht} }

// HeapKind discriminates the three GC composite type shapes this compiler
// needs, plus the function-signature shape used by closures.
type HeapKind uint8

const (
	StructKind HeapKind = iota
	ArrayKind
	FuncKind
)

// PackedKind describes narrowed storage for an array element or struct
// field, mirroring wasm GC's packed-field support (used for Lua strings,
// which are arrays of i8).
type PackedKind uint8

const (
	Unpacked PackedKind = iota
	PackedI8
	PackedI16
)

// FieldType describes one struct field, or (for an [ArrayKind] heap type)
// the single element type.
type FieldType struct {
	Name    string
	Type    ValType
	Mutable bool
	Packed  PackedKind
}

// HeapType is one member of the module's recursive GC type group, or a
// function signature used as a call target's type.
type HeapType struct {
	Name    string
	Kind    HeapKind
	Fields  []FieldType // StructKind: fields in declaration order. ArrayKind: exactly one, the element type.
	Params  []ValType   // FuncKind only
	Results []ValType   // FuncKind only

	index int // assigned once installed into a Module; -1 until then
}

// Index returns the type section index assigned to ht by [Module.AddType].
// It panics if ht has not been installed yet.
func (ht *HeapType) Index() int {
	if ht.index < 0 {
		panic("wasmir: heap type " + ht.Name + " not installed into a module")
	}
	return ht.index
}

func newHeapType(name string, kind HeapKind) *HeapType {
	return &HeapType{Name: name, Kind: kind, index: -1}
}

// StructType declares a new struct heap type with the given fields. It is
// not installed into any module until passed to [Module.AddType].
func StructType(name string, fields ...FieldType) *HeapType {
	ht := newHeapType(name, StructKind)
	ht.Fields = fields
	return ht
}

// ArrayType declares a new array heap type with the given element field
// (conventionally named "elem").
func ArrayType(name string, elem FieldType) *HeapType {
	ht := newHeapType(name, ArrayKind)
	ht.Fields = []FieldType{elem}
	return ht
}

// FuncType declares a new function-signature heap type.
func FuncType(name string, params, results []ValType) *HeapType {
	ht := newHeapType(name, FuncKind)
	ht.Params = params
	ht.Results = results
	return ht
}
