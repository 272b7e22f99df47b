// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

// ValueTag discriminates the runtime representation of a Lua value (§3.1).
// Nil has no heap type of its own: it is represented by the null
// reference and is never a member of a value-tag dispatch's cast list
// (§4.2.1); it is tested separately with ref.is_null.
type ValueTag uint8

const (
	TagNil ValueTag = iota
	TagBoolean
	TagInteger
	TagNumber
	TagString
	TagFunction
	TagTable
	TagUserdata
	TagThread
)

func (t ValueTag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagBoolean:
		return "boolean"
	case TagInteger:
		return "integer"
	case TagNumber:
		return "number"
	case TagString:
		return "string"
	case TagFunction:
		return "function"
	case TagTable:
		return "table"
	case TagUserdata:
		return "userdata"
	case TagThread:
		return "thread"
	default:
		return "?"
	}
}

// Registry is the closed set of WebAssembly GC heap types that realise
// the Lua value model, plus the module's single error tag. It is built
// once per module by [Build] and then shared read-only by the runtime
// library generator and the code generator.
type Registry struct {
	// RefArray is a mutable array of nullable anyref, used for multi-return
	// bundles, vararg, the table array-part, and closure upvalue-arrays
	// of... no: UpvalueArray is its own type, see below. RefArray backs
	// argument/result arrays and the table's array-part.
	RefArray *HeapType
	// Upvalue is the single-field mutable cell that boxes a captured
	// local so that sibling closures observe the same mutations.
	Upvalue *HeapType
	// UpvalueArray is the immutable array of non-null Upvalue references
	// that makes up a closure's captured environment.
	UpvalueArray *HeapType
	// LuaFunc is the function-signature heap type shared by every
	// compiled Lua function: (upvalues, args) -> args.
	LuaFunc *HeapType
	// Closure pairs a funcref of type LuaFunc with its UpvalueArray.
	Closure *HeapType
	Integer *HeapType
	Number  *HeapType
	// Str is an immutable array of packed i8: Lua string bytes.
	Str *HeapType
	// HashEntry and HashArray back a table's hash-part: an append-only
	// array of key/value pairs probed by linear scan (§4.2.6).
	HashEntry *HeapType
	HashArray *HeapType
	Table     *HeapType
	// Userdata and Thread are opaque stand-ins; neither library support
	// is implemented beyond the basic library (§1 Non-goals), but both
	// tags must exist so value-tag dispatch remains exhaustive.
	Userdata *HeapType
	Thread   *HeapType

	ByTag map[ValueTag]*HeapType

	ErrorTag *Tag
}

// typeName returns the stable debug name the registry assigns to each
// heap type, independent of any particular module instance.
func typeName(tag ValueTag) string {
	return "lua_" + tag.String()
}

// Build installs the full recursive type group into mod, in the order a
// hand-written GC type section would declare it (leaf types before the
// composites that reference them), and returns the populated [Registry].
//
// Build can only fail if the underlying module builder itself rejects
// the type group (§4.1); this in-memory IR never does, so the error
// return always reports nil. It is kept so a future serializer-backed
// Module can surface a real validation failure without changing this
// function's signature.
func Build(mod *Module) (*Registry, error) {
	r := &Registry{ByTag: make(map[ValueTag]*HeapType)}

	r.RefArray = ArrayType("ref_array", FieldType{Name: "elem", Type: ValAnyRef, Mutable: true})
	r.Upvalue = StructType("upvalue", FieldType{Name: "value", Type: ValAnyRef, Mutable: true})
	r.UpvalueArray = ArrayType("upvalue_array", FieldType{Name: "elem", Type: RefType(r.Upvalue), Mutable: false})
	r.LuaFunc = FuncType("lua_func", []ValType{RefType(r.UpvalueArray), RefType(r.RefArray)}, []ValType{RefType(r.RefArray)})
	r.Closure = StructType(typeName(TagFunction),
		FieldType{Name: "func", Type: RefType(r.LuaFunc), Mutable: false},
		FieldType{Name: "upvalues", Type: RefType(r.UpvalueArray), Mutable: false},
	)
	r.Integer = StructType(typeName(TagInteger), FieldType{Name: "value", Type: ValI64, Mutable: false})
	r.Number = StructType(typeName(TagNumber), FieldType{Name: "value", Type: ValF64, Mutable: false})
	r.Str = ArrayType(typeName(TagString), FieldType{Name: "elem", Type: ValI32, Mutable: false, Packed: PackedI8})
	r.HashEntry = StructType("hash_entry",
		FieldType{Name: "key", Type: ValAnyRef, Mutable: false},
		FieldType{Name: "value", Type: ValAnyRef, Mutable: true},
	)
	r.HashArray = ArrayType("hash_array", FieldType{Name: "elem", Type: RefType(r.HashEntry), Mutable: true})
	r.Table = StructType(typeName(TagTable),
		FieldType{Name: "array_part", Type: NullableRefType(r.RefArray), Mutable: true},
		FieldType{Name: "hash_part", Type: NullableRefType(r.HashArray), Mutable: true},
		FieldType{Name: "metatable", Type: ValAnyRef, Mutable: true},
	)
	r.Userdata = StructType(typeName(TagUserdata), FieldType{Name: "data", Type: ValAnyRef, Mutable: true})
	r.Thread = StructType(typeName(TagThread), FieldType{Name: "data", Type: ValAnyRef, Mutable: true})

	for _, ht := range []*HeapType{
		r.RefArray, r.Upvalue, r.UpvalueArray, r.LuaFunc, r.Closure,
		r.Integer, r.Number, r.Str, r.HashEntry, r.HashArray, r.Table,
		r.Userdata, r.Thread,
	} {
		mod.AddType(ht)
	}

	r.ByTag[TagInteger] = r.Integer
	r.ByTag[TagNumber] = r.Number
	r.ByTag[TagString] = r.Str
	r.ByTag[TagFunction] = r.Closure
	r.ByTag[TagTable] = r.Table
	r.ByTag[TagUserdata] = r.Userdata
	r.ByTag[TagThread] = r.Thread

	r.ErrorTag = mod.AddTag(&Tag{Name: "error", Params: []ValType{ValAnyRef}})

	mod.EnableRequiredFeatures()

	return r, nil
}

// TagOf returns the value tag whose heap type is ht, and whether one was
// found. Boolean and nil are not present (they have no heap type).
func (r *Registry) TagOf(ht *HeapType) (ValueTag, bool) {
	for tag, t := range r.ByTag {
		if t == ht {
			return tag, true
		}
	}
	return TagNil, false
}
