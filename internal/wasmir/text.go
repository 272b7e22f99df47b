// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

import (
	"fmt"
	"io"
	"strings"
)

// WriteText dumps m as an indented, s-expression-flavored listing of its
// types, tags, imports, and function bodies. It is not WAT: field and
// instruction shapes are rendered the way this IR keeps them rather than
// reconstructed into the textual grammar a real encoder would need to
// target, and there is no reader for it. It exists so that -t has
// something legible to print; turning it into bytes for a .wasm file is
// the serialiser's job, and stays out of scope.
func (m *Module) WriteText(w io.Writer) error {
	p := &textPrinter{w: w}
	p.printf("(module")
	p.indent++
	for _, ht := range m.types {
		p.printHeapType(ht)
	}
	for _, tag := range m.Tags {
		p.printf("(tag $%s %s)", tag.Name, valTypes(tag.Params))
	}
	for _, imp := range m.Imports {
		local := imp.LocalName
		if local == "" {
			local = imp.Name
		}
		p.printf("(import %q %q (func $%s (type %d)))", imp.Module, imp.Name, local, imp.Sig.Index())
	}
	for _, f := range m.Funcs {
		p.printFunc(f)
	}
	for _, ex := range m.Exports {
		switch ex.Kind {
		case ExportFunc:
			p.printf("(export %q (func $%s))", ex.Name, ex.Func.Name)
		case ExportTag:
			p.printf("(export %q (tag $%s))", ex.Name, ex.Tag.Name)
		case ExportGlobal:
			p.printf("(export %q (global))", ex.Name)
		}
	}
	for _, d := range m.Data {
		p.printf("(data $%s %d bytes)", d.Name, len(d.Data))
	}
	p.indent--
	p.printf(")")
	return p.err
}

type textPrinter struct {
	w      io.Writer
	indent int
	err    error
}

func (p *textPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, err := fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
	if err != nil {
		p.err = err
	}
}

func (p *textPrinter) printHeapType(ht *HeapType) {
	switch ht.Kind {
	case StructKind:
		var fields []string
		for _, f := range ht.Fields {
			fields = append(fields, fmt.Sprintf("(field $%s %s)", f.Name, valType(f.Type)))
		}
		p.printf("(type $%s (struct %s))", ht.Name, strings.Join(fields, " "))
	case ArrayKind:
		p.printf("(type $%s (array %s))", ht.Name, valType(ht.Fields[0].Type))
	case FuncKind:
		p.printf("(type $%s (func (param %s) (result %s)))", ht.Name, valTypes(ht.Params), valTypes(ht.Results))
	}
}

func (p *textPrinter) printFunc(f *Func) {
	p.printf("(func $%s (type %d)", f.Name, f.Sig.Index())
	p.indent++
	for i, l := range f.Locals {
		p.printf("(local %d $%s %s)", i, l.Name, valType(l.Type))
	}
	p.printInstrs(f.Body)
	p.indent--
	p.printf(")")
}

func (p *textPrinter) printInstrs(instrs []*Instr) {
	for _, in := range instrs {
		p.printInstr(in)
	}
}

func (p *textPrinter) printInstr(in *Instr) {
	head := in.opName()
	switch in.Op {
	case OpBlock, OpLoop:
		p.printf("(%s $%s", head, in.Name)
		p.indent++
		p.printInstrs(in.Body)
		p.indent--
		p.printf(")")
	case OpIf:
		p.printf("(%s", head)
		p.indent++
		p.printInstrs(in.Args)
		p.printf("(then")
		p.indent++
		p.printInstrs(in.Body)
		p.indent--
		p.printf(")")
		if len(in.Else) > 0 {
			p.printf("(else")
			p.indent++
			p.printInstrs(in.Else)
			p.indent--
			p.printf(")")
		}
		p.indent--
		p.printf(")")
	case OpTryTable:
		var catches []string
		for _, c := range in.Catches {
			if c.CatchAll {
				catches = append(catches, fmt.Sprintf("(catch_all %s)", c.Label))
			} else {
				catches = append(catches, fmt.Sprintf("(catch $%s %s)", c.Tag.Name, c.Label))
			}
		}
		p.printf("(try_table %s", strings.Join(catches, " "))
		p.indent++
		p.printInstrs(in.Body)
		p.indent--
		p.printf(")")
	default:
		p.printf("(%s%s)", head, in.argSuffix())
		p.printInstrs(in.Args)
	}
}

// opName renders the mnemonic used by [printInstr]'s head line.
func (in *Instr) opName() string {
	switch in.Op {
	case OpBinary, OpUnary, OpConvert:
		return string(in.NumOp)
	case OpNop:
		return "nop"
	case OpUnreachable:
		return "unreachable"
	case OpConstI32:
		return "i32.const"
	case OpConstI64:
		return "i64.const"
	case OpConstF64:
		return "f64.const"
	case OpRefNull:
		return "ref.null"
	case OpRefFunc:
		return "ref.func"
	case OpRefI31:
		return "ref.i31"
	case OpI31Get:
		return "i31.get_s"
	case OpLocalGet:
		return "local.get"
	case OpLocalSet:
		return "local.set"
	case OpLocalTee:
		return "local.tee"
	case OpGlobalGet:
		return "global.get"
	case OpGlobalSet:
		return "global.set"
	case OpStructNew:
		return "struct.new"
	case OpStructGet:
		return "struct.get"
	case OpStructSet:
		return "struct.set"
	case OpArrayNew:
		return "array.new"
	case OpArrayNewFixed:
		return "array.new_fixed"
	case OpArrayNewData:
		return "array.new_data"
	case OpArrayGet:
		return "array.get"
	case OpArraySet:
		return "array.set"
	case OpArrayLen:
		return "array.len"
	case OpArrayCopy:
		return "array.copy"
	case OpRefCast:
		return "ref.cast"
	case OpRefTest:
		return "ref.test"
	case OpRefIsNull:
		return "ref.is_null"
	case OpIsI31:
		return "ref.test i31"
	case OpBr:
		return "br"
	case OpBrIf:
		return "br_if"
	case OpBrOnNull:
		return "br_on_null"
	case OpBrOnNonNull:
		return "br_on_non_null"
	case OpBrOnCast:
		return "br_on_cast"
	case OpBrOnCastFail:
		return "br_on_cast_fail"
	case OpReturn:
		return "return"
	case OpCall:
		return "call"
	case OpCallRef:
		return "call_ref"
	case OpReturnCall:
		return "return_call"
	case OpReturnCallRef:
		return "return_call_ref"
	case OpThrow:
		return "throw"
	case OpDrop:
		return "drop"
	default:
		return "?"
	}
}

// argSuffix renders an instruction's scalar operands (constants, indices,
// names) that printInstr's default case doesn't otherwise show.
func (in *Instr) argSuffix() string {
	switch in.Op {
	case OpConstI32, OpConstI64:
		return fmt.Sprintf(" %d", in.I64)
	case OpConstF64:
		return fmt.Sprintf(" %g", in.F64)
	case OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		return fmt.Sprintf(" %d", in.Index)
	case OpCall, OpReturnCall, OpRefFunc:
		return fmt.Sprintf(" $%s", in.Name)
	case OpBr, OpBrIf, OpBrOnNull, OpBrOnNonNull:
		return fmt.Sprintf(" %s", in.Name)
	case OpStructNew, OpStructGet, OpStructSet, OpArrayNew, OpArrayNewFixed, OpArrayNewData, OpArrayGet, OpArraySet, OpArrayCopy, OpRefTest, OpBrOnCast:
		if in.Heap != nil {
			return fmt.Sprintf(" $%s", in.Heap.Name)
		}
	case OpRefCast, OpRefNull:
		return fmt.Sprintf(" %s", valType(in.Type))
	case OpThrow:
		return fmt.Sprintf(" $%s", in.Name)
	}
	return ""
}

func valType(v ValType) string {
	switch v.Kind {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case AnyRef:
		return "anyref"
	case ExternRef:
		return "externref"
	case FuncRef:
		return "funcref"
	case Ref:
		return fmt.Sprintf("(ref $%s)", v.Heap.Name)
	case RefNull:
		return fmt.Sprintf("(ref null $%s)", v.Heap.Name)
	case None:
		return ""
	default:
		return "?"
	}
}

func valTypes(vs []ValType) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = valType(v)
	}
	return strings.Join(out, " ")
}
