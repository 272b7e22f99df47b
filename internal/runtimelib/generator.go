// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package runtimelib

import (
	"fmt"

	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// Mode selects how Finalize emits the helpers that ended up required,
// mirroring the three forms described in §6.1/§6.3.
type Mode int

const (
	// ModeStandalone defines every required helper as a plain internal
	// function local to the module (the default -m standalone).
	ModeStandalone Mode = iota
	// ModeMinimal imports every required helper by name from a host
	// module called "runtime" instead of defining it (-m minimal), so
	// many modules compiled from the same program can share one copy.
	ModeMinimal
	// ModeRuntime defines every helper, required or not, and exports
	// each one under its catalogue name, producing the shared module a
	// ModeMinimal build imports from (-m runtime).
	ModeRuntime
)

// entry is one catalogue row: a helper's signature and the function that
// builds its body.
type entry struct {
	params []wasmir.ValType
	result wasmir.ValType
	// locals declares every local slot build's body addresses beyond the
	// parameters (wasm locals carry a static type, so this can't be
	// inferred from a LocalGet/LocalSet index alone).
	locals []wasmir.Local
	build  func(g *Generator) []*wasmir.Instr
}

// Generator is the Runtime Library Generator (§4.2). It is shared by every
// call site the code generator produces: the first reference to a helper
// marks it required; Finalize, called once after the whole program has
// been lowered, emits exactly the helpers that turned out to be needed.
type Generator struct {
	Mod   *wasmir.Module
	Types *wasmir.Registry
	B     *wasmir.Builder

	mode     Mode
	required map[Key]bool
	catalog  map[Key]entry
	funcName map[Key]string

	hostImports map[string]string
}

// New returns a Generator ready to receive Require/Call calls. mode is
// fixed for the lifetime of the Generator since it determines whether
// Call targets a local definition or a host import, and that decision
// must be consistent across every call site.
func New(mod *wasmir.Module, types *wasmir.Registry, mode Mode) *Generator {
	g := &Generator{
		Mod:         mod,
		Types:       types,
		B:           wasmir.NewBuilder(mod),
		mode:        mode,
		required:    make(map[Key]bool),
		funcName:    make(map[Key]string),
		hostImports: make(map[string]string),
	}
	g.catalog = g.buildCatalog()
	return g
}

// Require marks key as needed by the module being compiled, and returns
// the symbol name call sites should address it by. It is idempotent.
func (g *Generator) Require(key Key) string {
	g.required[key] = true
	if name, ok := g.funcName[key]; ok {
		return name
	}
	name := key.name()
	g.funcName[key] = name
	return name
}

// Call builds a call expression to key, implicitly requiring it.
func (g *Generator) Call(key Key, args ...*wasmir.Instr) *wasmir.Instr {
	name := g.Require(key)
	e := g.catalog[key]
	return g.B.Call(name, e.result, args...)
}

// ResultType reports the value type Call(key, ...) produces, without
// requiring it. Code generation needs this to size block result types
// before a Call node exists (e.g. in an expression position guarded by a
// short-circuit branch).
func (g *Generator) ResultType(key Key) wasmir.ValType {
	return g.catalog[key].result
}

// Finalize installs every required helper (ModeRuntime: every helper,
// required or not) into the module, in the fixed catalogue order (§5),
// either as a defined function or, under ModeMinimal, as an import from
// module "runtime". It must be called exactly once, after every call site
// in the program has already run through Call/Require.
func (g *Generator) Finalize() error {
	built := make(map[Key]bool)

	ensure := func(key Key) error {
		if built[key] {
			return nil
		}
		e, ok := g.catalog[key]
		if !ok {
			return fmt.Errorf("runtimelib: no catalogue entry for key %d", key)
		}
		name := g.funcName[key]
		if name == "" {
			name = key.name()
			g.funcName[key] = name
		}
		built[key] = true // before building the body: a helper never needs itself, but mark early regardless

		sig := wasmir.FuncType("runtime_"+name, e.params, resultsOf(e.result))

		if g.mode == ModeMinimal {
			g.Mod.AddImport(&wasmir.Import{Module: "runtime", Name: name, Sig: sig, LocalName: name})
			return nil
		}

		fn := &wasmir.Func{
			Name:   name,
			Sig:    sig,
			Locals: e.locals,
			Body:   e.build(g),
		}
		g.Mod.AddFunc(fn)
		if g.mode == ModeRuntime {
			g.Mod.ExportFunc(fn, name)
		}
		return nil
	}

	// A helper's build may itself call Call/Require on a further key (e.g.
	// len probing the table through table_get):
	// repeat full passes in fixed catalogue order until nothing new turns
	// up, so emission order never depends on which helper happened to
	// discover a dependency first.
	for progressed := true; progressed; {
		progressed = false
		for _, key := range allKeys {
			needed := g.required[key] || g.mode == ModeRuntime
			if !needed || built[key] {
				continue
			}
			if err := ensure(key); err != nil {
				return err
			}
			progressed = true
		}
	}
	return nil
}

func resultsOf(t wasmir.ValType) []wasmir.ValType {
	if t == wasmir.ValNone {
		return nil
	}
	return []wasmir.ValType{t}
}
