// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

// Op is the structural shape of an [Instr]. Plain arithmetic and
// comparison instructions are not individually enumerated here; they are
// carried as a [NumOp] mnemonic on an OpBinary/OpUnary/OpConvert node,
// the same way the rest of the toolchain's instruction set is open-ended
// without needing a case in this package for every wasm opcode.
type Op uint8

const (
	OpNop Op = iota
	OpUnreachable
	OpConstI32
	OpConstI64
	OpConstF64
	OpRefNull
	OpRefFunc
	OpRefI31
	OpI31Get
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpStructNew
	OpStructGet
	OpStructSet
	OpArrayNew
	OpArrayNewFixed
	OpArrayNewData
	OpArrayGet
	OpArraySet
	OpArrayLen
	OpArrayCopy
	OpRefCast
	OpRefTest
	OpRefIsNull
	OpIsI31
	OpBlock
	OpLoop
	OpIf
	OpBr
	OpBrIf
	OpBrOnNull
	OpBrOnNonNull
	OpBrOnCast
	OpBrOnCastFail
	OpReturn
	OpCall
	OpCallRef
	OpReturnCall
	OpReturnCallRef
	OpThrow
	OpTryTable
	OpDrop
	OpBinary
	OpUnary
	OpConvert
)

// NumOp is a wasm numeric instruction mnemonic, e.g. "i64.add", "f64.lt",
// "i64.extend_i32_u". Carrying the mnemonic as a string keeps this IR from
// needing a Go constant for every arithmetic opcode in the spec while
// still reading like the instruction it denotes.
type NumOp string

const (
	AddI64  NumOp = "i64.add"
	SubI64  NumOp = "i64.sub"
	MulI64  NumOp = "i64.mul"
	DivSI64 NumOp = "i64.div_s"
	RemSI64 NumOp = "i64.rem_s"
	AndI64  NumOp = "i64.and"
	OrI64   NumOp = "i64.or"
	XorI64  NumOp = "i64.xor"
	ShlI64  NumOp = "i64.shl"
	ShrSI64 NumOp = "i64.shr_s"
	EqI64   NumOp = "i64.eq"
	NeI64   NumOp = "i64.ne"
	LtSI64  NumOp = "i64.lt_s"
	GtSI64  NumOp = "i64.gt_s"
	LeSI64  NumOp = "i64.le_s"
	GeSI64  NumOp = "i64.ge_s"
	EqzI64  NumOp = "i64.eqz"

	AddF64 NumOp = "f64.add"
	SubF64 NumOp = "f64.sub"
	MulF64 NumOp = "f64.mul"
	DivF64 NumOp = "f64.div"
	NegF64 NumOp = "f64.neg"
	EqF64  NumOp = "f64.eq"
	NeF64  NumOp = "f64.ne"
	LtF64  NumOp = "f64.lt"
	GtF64  NumOp = "f64.gt"
	LeF64  NumOp = "f64.le"
	GeF64  NumOp = "f64.ge"
	FloorF64 NumOp = "f64.floor"

	EqI32   NumOp = "i32.eq"
	NeI32   NumOp = "i32.ne"
	AndI32  NumOp = "i32.and"
	OrI32   NumOp = "i32.or"
	XorI32  NumOp = "i32.xor"
	EqzI32  NumOp = "i32.eqz"
	AddI32  NumOp = "i32.add"
	SubI32  NumOp = "i32.sub"
	LtSI32  NumOp = "i32.lt_s"
	GeSI32  NumOp = "i32.ge_s"

	ShrUI64 NumOp = "i64.shr_u"

	ConvertI64ToF64 NumOp = "f64.convert_i64_s"
	TruncF64ToI64   NumOp = "i64.trunc_f64_s"
	WrapI64ToI32    NumOp = "i32.wrap_i64"
	ExtendI32ToI64  NumOp = "i64.extend_i32_s"
	ExtendI32ToI64U NumOp = "i64.extend_i32_u"
	RefEq           NumOp = "ref.eq"
)

// Catch pairs one exception tag with the label to branch to, for a
// try_table block (OpTryTable).
type Catch struct {
	Tag   *Tag
	Label string
	// CatchAll, when Tag is nil, matches any exception (used by the
	// chunk wrapper's top-level catch, §4.6/§7).
	CatchAll bool
}

// Instr is one node of an expression tree. Only the fields relevant to
// Op are populated; see the [Builder] constructors for the contract of
// each shape.
type Instr struct {
	Op    Op
	Type  ValType
	NumOp NumOp

	I64 int64
	F64 float64

	Index int    // local/global/field/data-segment/type index, depending on Op
	Name  string // call target, label, import, or data-segment name

	Heap *HeapType

	Args  []*Instr
	Body  []*Instr
	Else  []*Instr
	Catches []Catch
}

// Builder constructs [Instr] trees against a specific [Module], so that
// constructors needing fresh labels or data segments can allocate them.
type Builder struct {
	Mod *Module
}

func NewBuilder(mod *Module) *Builder { return &Builder{Mod: mod} }

func (b *Builder) Nop() *Instr { return &Instr{Op: OpNop, Type: ValNone} }

func (b *Builder) Unreachable() *Instr { return &Instr{Op: OpUnreachable, Type: ValNone} }

func (b *Builder) I64Const(v int64) *Instr { return &Instr{Op: OpConstI64, Type: ValI64, I64: v} }

func (b *Builder) I32Const(v int32) *Instr {
	return &Instr{Op: OpConstI32, Type: ValI32, I64: int64(v)}
}

func (b *Builder) F64Const(v float64) *Instr { return &Instr{Op: OpConstF64, Type: ValF64, F64: v} }

// RefNull returns the null reference, standing in for Lua nil (§3.1).
func (b *Builder) RefNull(t ValType) *Instr { return &Instr{Op: OpRefNull, Type: t} }

// RefFunc produces a non-null funcref to the module function named name,
// typed sig — how a closure value is built for a function that has no
// enclosing Lua function (a library function, or any closure whose body
// the code generator has already emitted as a standalone [Func]).
func (b *Builder) RefFunc(name string, sig *HeapType) *Instr {
	return &Instr{Op: OpRefFunc, Type: RefType(sig), Name: name, Heap: sig}
}

// RefI31 boxes an i32 into the unboxed 31-bit representation used for
// Lua booleans.
func (b *Builder) RefI31(v *Instr) *Instr {
	return &Instr{Op: OpRefI31, Type: ValAnyRef, Args: []*Instr{v}}
}

// I31Get unboxes an i31ref back to i32 (listed as i31.get_s; Lua
// booleans are 0 or 1, so the sign extension never matters).
func (b *Builder) I31Get(v *Instr) *Instr {
	return &Instr{Op: OpI31Get, Type: ValI32, Args: []*Instr{v}}
}

func (b *Builder) LocalGet(index int, t ValType) *Instr {
	return &Instr{Op: OpLocalGet, Type: t, Index: index}
}

func (b *Builder) LocalSet(index int, v *Instr) *Instr {
	return &Instr{Op: OpLocalSet, Type: ValNone, Index: index, Args: []*Instr{v}}
}

func (b *Builder) LocalTee(index int, v *Instr, t ValType) *Instr {
	return &Instr{Op: OpLocalTee, Type: t, Index: index, Args: []*Instr{v}}
}

// StructNew allocates an instance of ht, a [StructKind] heap type, with
// one initializer expression per field in declaration order.
func (b *Builder) StructNew(ht *HeapType, fields ...*Instr) *Instr {
	return &Instr{Op: OpStructNew, Type: RefType(ht), Heap: ht, Args: fields}
}

func (b *Builder) StructGet(ht *HeapType, field int, ref *Instr) *Instr {
	return &Instr{Op: OpStructGet, Type: ht.Fields[field].Type, Heap: ht, Index: field, Args: []*Instr{ref}}
}

func (b *Builder) StructSet(ht *HeapType, field int, ref, value *Instr) *Instr {
	return &Instr{Op: OpStructSet, Type: ValNone, Heap: ht, Index: field, Args: []*Instr{ref, value}}
}

// ArrayNew allocates an array of ht (an [ArrayKind] heap type) of length
// size, every element initialized to init.
func (b *Builder) ArrayNew(ht *HeapType, size, init *Instr) *Instr {
	return &Instr{Op: OpArrayNew, Type: RefType(ht), Heap: ht, Args: []*Instr{size, init}}
}

// ArrayNewFixed allocates an array of ht with exactly the given elements.
func (b *Builder) ArrayNewFixed(ht *HeapType, elems ...*Instr) *Instr {
	return &Instr{Op: OpArrayNewFixed, Type: RefType(ht), Heap: ht, Args: elems}
}

// ArrayNewData allocates an array of ht initialized from the named data
// segment, used to materialize string literals (§4.5).
func (b *Builder) ArrayNewData(ht *HeapType, dataName string, offset, length *Instr) *Instr {
	return &Instr{Op: OpArrayNewData, Type: RefType(ht), Heap: ht, Name: dataName, Args: []*Instr{offset, length}}
}

func (b *Builder) ArrayGet(ht *HeapType, ref, index *Instr) *Instr {
	return &Instr{Op: OpArrayGet, Type: ht.Fields[0].Type, Heap: ht, Args: []*Instr{ref, index}}
}

func (b *Builder) ArraySet(ht *HeapType, ref, index, value *Instr) *Instr {
	return &Instr{Op: OpArraySet, Type: ValNone, Heap: ht, Args: []*Instr{ref, index, value}}
}

func (b *Builder) ArrayLen(ref *Instr) *Instr {
	return &Instr{Op: OpArrayLen, Type: ValI32, Args: []*Instr{ref}}
}

// ArrayCopy copies length elements from src[srcIdx:] to dst[dstIdx:],
// used to implement vararg tail slicing and table array-part growth.
func (b *Builder) ArrayCopy(dst *HeapType, dstRef, dstIdx *Instr, src *HeapType, srcRef, srcIdx, length *Instr) *Instr {
	return &Instr{Op: OpArrayCopy, Type: ValNone, Heap: dst, Args: []*Instr{dstRef, dstIdx, srcRef, srcIdx, length}}
}

// RefCast attempts a downcast to t, trapping on failure. Where the tag is
// not known in advance, this compiler tests it with RefTest and casts
// afterwards; it never emits BrOnCast.
func (b *Builder) RefCast(t ValType, v *Instr) *Instr {
	return &Instr{Op: OpRefCast, Type: t, Args: []*Instr{v}}
}

func (b *Builder) RefTest(t ValType, v *Instr) *Instr {
	return &Instr{Op: OpRefTest, Type: ValI32, Heap: t.Heap, Args: []*Instr{v}}
}

// IsNull reports whether v is the null reference.
func (b *Builder) IsNull(v *Instr) *Instr {
	return &Instr{Op: OpRefIsNull, Type: ValI32, Args: []*Instr{v}}
}

// IsI31 reports whether v is an unboxed i31 reference: this is how Lua
// booleans (§3.1, boxed via [Builder.RefI31]) are distinguished from the
// struct/array heap types without a heap type of their own to ref.test
// against.
func (b *Builder) IsI31(v *Instr) *Instr {
	return &Instr{Op: OpIsI31, Type: ValI32, Args: []*Instr{v}}
}

// Block wraps body in a labelled block of result type t. An empty label
// means the block cannot be branched to directly.
func (b *Builder) Block(label string, t ValType, body ...*Instr) *Instr {
	return &Instr{Op: OpBlock, Type: t, Name: label, Body: body}
}

func (b *Builder) Loop(label string, t ValType, body ...*Instr) *Instr {
	return &Instr{Op: OpLoop, Type: t, Name: label, Body: body}
}

// If returns an if/else expression. els may be nil for a statement-form if.
func (b *Builder) If(t ValType, cond *Instr, then []*Instr, els []*Instr) *Instr {
	return &Instr{Op: OpIf, Type: t, Args: []*Instr{cond}, Body: then, Else: els}
}

func (b *Builder) Br(label string) *Instr { return &Instr{Op: OpBr, Type: ValNone, Name: label} }

func (b *Builder) BrIf(label string, cond *Instr) *Instr {
	return &Instr{Op: OpBrIf, Type: ValNone, Name: label, Args: []*Instr{cond}}
}

// BrOnNull branches to label if ref is null, otherwise leaves ref
// (narrowed non-null) on the stack.
func (b *Builder) BrOnNull(label string, ref *Instr, nonNullType ValType) *Instr {
	return &Instr{Op: OpBrOnNull, Type: nonNullType, Name: label, Args: []*Instr{ref}}
}

func (b *Builder) BrOnNonNull(label string, ref *Instr) *Instr {
	return &Instr{Op: OpBrOnNonNull, Type: ValNone, Name: label, Args: []*Instr{ref}}
}

// BrOnCast branches to label with ref narrowed to target when the
// downcast succeeds; otherwise falls through with ref at its original
// type. This is the primitive the value-tag dispatch pattern (§4.2.1) is
// built from.
func (b *Builder) BrOnCast(label string, target ValType, ref *Instr) *Instr {
	return &Instr{Op: OpBrOnCast, Type: target, Name: label, Args: []*Instr{ref}}
}

func (b *Builder) Return(v *Instr) *Instr {
	args := []*Instr{}
	if v != nil {
		args = []*Instr{v}
	}
	return &Instr{Op: OpReturn, Type: ValNone, Args: args}
}

func (b *Builder) Call(name string, t ValType, args ...*Instr) *Instr {
	return &Instr{Op: OpCall, Type: t, Name: name, Args: args}
}

// CallRef performs an indirect call through a funcref value of the
// given signature.
func (b *Builder) CallRef(sig *HeapType, funcref *Instr, args ...*Instr) *Instr {
	result := ValNone
	if len(sig.Results) == 1 {
		result = sig.Results[0]
	}
	return &Instr{Op: OpCallRef, Type: result, Heap: sig, Args: append(append([]*Instr{}, args...), funcref)}
}

// ReturnCallRef is CallRef's tail-call form: the trampoline `invoke` goes
// through so that calling a Lua closure never grows the wasm call stack,
// however deep the Lua-level recursion (§4.2's invoke helper).
func (b *Builder) ReturnCallRef(sig *HeapType, funcref *Instr, args ...*Instr) *Instr {
	return &Instr{Op: OpReturnCallRef, Type: ValNone, Heap: sig, Args: append(append([]*Instr{}, args...), funcref)}
}

// ReturnCall performs a tail call, required so that Lua's unbounded
// recursion (e.g. trampolining through `invoke`) does not grow the wasm
// call stack.
func (b *Builder) ReturnCall(name string, args ...*Instr) *Instr {
	return &Instr{Op: OpReturnCall, Type: ValNone, Name: name, Args: args}
}

func (b *Builder) Throw(tag *Tag, value *Instr) *Instr {
	return &Instr{Op: OpThrow, Type: ValNone, Name: tag.Name, Args: []*Instr{value}}
}

// TryTable wraps body, dispatching any thrown tag in catches.
func (b *Builder) TryTable(t ValType, body []*Instr, catches []Catch) *Instr {
	return &Instr{Op: OpTryTable, Type: t, Body: body, Catches: catches}
}

func (b *Builder) Drop(v *Instr) *Instr {
	return &Instr{Op: OpDrop, Type: ValNone, Args: []*Instr{v}}
}

func (b *Builder) Binary(op NumOp, t ValType, l, r *Instr) *Instr {
	return &Instr{Op: OpBinary, Type: t, NumOp: op, Args: []*Instr{l, r}}
}

func (b *Builder) Unary(op NumOp, t ValType, v *Instr) *Instr {
	return &Instr{Op: OpUnary, Type: t, NumOp: op, Args: []*Instr{v}}
}

func (b *Builder) Convert(op NumOp, t ValType, v *Instr) *Instr {
	return &Instr{Op: OpConvert, Type: t, NumOp: op, Args: []*Instr{v}}
}

// Seq folds a list of instructions down to a single expression: zero
// instructions become a Nop, one is passed through unchanged (matching
// the teacher's make_block convention of avoiding a pointless wrapper
// block), and more are wrapped in an unlabelled block.
func (b *Builder) Seq(t ValType, instrs ...*Instr) *Instr {
	switch len(instrs) {
	case 0:
		return b.Nop()
	case 1:
		return instrs[0]
	default:
		return b.Block("", t, instrs...)
	}
}
