// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package wasmir is the in-memory representation of the WebAssembly module
// under construction: value types, the recursive GC heap-type group,
// functions, and the expression trees inside them.
//
// wasmir models the instruction set the way an expression-tree builder
// (rather than a flat byte-code assembler) does: each [Instr] owns its
// operands, mirroring the structured-control-flow shape of WebAssembly
// itself. Turning a [Module] into a binary or text encoding, optimizing
// it, or validating it against a particular embedder is the job of a
// downstream serializer that this package does not implement; wasmir's
// contract ends at producing a well-typed module value.
package wasmir
