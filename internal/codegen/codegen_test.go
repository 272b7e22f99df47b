// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package codegen_test

import (
	"strings"
	"testing"

	"github.com/wumbo-lang/wumbo/internal/basiclib"
	"github.com/wumbo-lang/wumbo/internal/chunk"
	"github.com/wumbo-lang/wumbo/internal/codegen"
	"github.com/wumbo-lang/wumbo/internal/parser"
	"github.com/wumbo-lang/wumbo/internal/runtimelib"
	"github.com/wumbo-lang/wumbo/internal/wasmir"
)

// compileSource runs the full front end (parse, scope analysis, codegen,
// chunk wrapping, runtime library finalization) over src and reports any
// error, the way cmd/wumbo itself does.
func compileSource(t *testing.T, src string) (*wasmir.Module, *wasmir.Registry) {
	t.Helper()
	mod := wasmir.NewModule()
	types, err := wasmir.Build(mod)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rt := runtimelib.New(mod, types, runtimelib.ModeStandalone)

	block, err := parser.Parse(strings.NewReader(src), "test.lua")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	body, err := codegen.Compile(mod, types, rt, block)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	chunk.Wrap(mod, types, rt, body, basiclib.Install)
	if err := rt.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return mod, types
}

func TestCompileSimplePrograms(t *testing.T) {
	tests := []string{
		`print(1 + 2)`,
		`local x = 1
		 local function inc() x = x + 1; return x end
		 inc(); inc()`,
		`local t = {1, 2, 3, x = 4}
		 for k, v in pairs(t) do print(k, v) end`,
		`for i = 1, 10 do
		   if i % 2 == 0 then goto continue end
		   print(i)
		   ::continue::
		 end`,
		`local i = 0
		 ::top::
		 i = i + 1
		 if i < 3 then goto top end
		 print(i)`,
		`local function fact(n)
		   if n == 0 then return 1 end
		   return n * fact(n - 1)
		 end
		 print(fact(5))`,
		`local obj = {}
		 function obj:greet(name) return "hi " .. name end
		 print(obj:greet("lua"))`,
		`local function f(...) return select("#", ...) end
		 print(f(1, 2, 3))`,
	}
	for _, src := range tests {
		mod, _ := compileSource(t, src)
		if len(mod.Funcs) == 0 {
			t.Errorf("compile(%q): no functions emitted", src)
		}
		foundInit := false
		for _, f := range mod.Funcs {
			if f.Name == "*init" {
				foundInit = true
				if len(f.Body) == 0 {
					t.Errorf("compile(%q): *init has an empty body", src)
				}
			}
		}
		if !foundInit {
			t.Errorf("compile(%q): chunk.Wrap did not install *init", src)
		}
	}
}

func TestCompileEmitsTextWithoutError(t *testing.T) {
	mod, _ := compileSource(t, `print("hello, world")`)
	var out strings.Builder
	if err := mod.WriteText(&out); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(out.String(), "(export \"start\"") {
		t.Errorf("WriteText output missing the start export:\n%s", out.String())
	}
}

func TestCompileRejectsBreakOutsideLoop(t *testing.T) {
	mod := wasmir.NewModule()
	types, err := wasmir.Build(mod)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rt := runtimelib.New(mod, types, runtimelib.ModeStandalone)

	block, err := parser.Parse(strings.NewReader("break"), "test.lua")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := codegen.Compile(mod, types, rt, block); err == nil {
		t.Fatal("Compile(break outside loop): want error, got nil")
	}
}
