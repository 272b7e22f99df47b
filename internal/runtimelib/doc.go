// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

// Package runtimelib is the Runtime Library Generator (§4.2): a catalogue
// of helper functions implementing Lua's dynamically-typed operations
// over the [wasmir] value model, emitted into the module on demand.
//
// The code generator never inlines a multi-tag operation itself; it calls
// [Generator.Call] for a [Key] and lets this package own the branching.
// Exactly which helpers end up in the module, and whether they are
// defined locally or imported from a host-provided "runtime" module, is
// decided once by [Generator.Finalize] according to the selected [Mode]
// (§6.1's -m flag: standalone, minimal, runtime).
package runtimelib
