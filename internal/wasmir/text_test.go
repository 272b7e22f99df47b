// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

import (
	"strings"
	"testing"
)

func TestWriteTextSmoke(t *testing.T) {
	mod := NewModule()
	mod.EnableRequiredFeatures()
	types, err := Build(mod)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	b := NewBuilder(mod)
	f := &Func{
		Name: "answer",
		Sig:  types.LuaFunc,
		Body: []*Instr{
			b.Return(b.RefI31(b.I32Const(42))),
		},
	}
	mod.AddFunc(f)
	mod.ExportFunc(f, "answer")

	var out strings.Builder
	if err := mod.WriteText(&out); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	text := out.String()
	for _, want := range []string{"(module", "(func $answer", "i32.const 42", "ref.i31", "(export \"answer\""} {
		if !strings.Contains(text, want) {
			t.Errorf("WriteText output missing %q; got:\n%s", want, text)
		}
	}
}
