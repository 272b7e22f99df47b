// Copyright 2025 The Wumbo Authors
// SPDX-License-Identifier: MIT

package wasmir

// SwitchValue builds the canonical tag-dispatch expression described in
// §4.2.1: given a way to (re)read an anyref value, try the null case, then
// each cast in casts in turn, and fall back to defaultCase if none match.
//
// reread is called once per probe (null check, then one ref.test/ref.cast
// pair per cast) and must produce a cheap, side-effect-free read of the
// same value each time — a LocalGet, typically, since the value being
// dispatched is almost always already bound to a parameter or helper
// local by the caller (§4.4's function-stack bookkeeping owns allocating
// that local, not this package).
//
// This lowers the dispatch as nested if/ref.test rather than the
// block-and-br_on_cast chain the original hand-written helper library
// uses: both encode the same tags-in-order-then-default semantics, and
// the nested-if form composes more simply with the rest of this package's
// expression-tree builders. Either is a faithful reading of §4.2.1; the
// block-chain form only pays for itself when a serializer wants to avoid
// re-reading the scrutinee, and this package has no serializer.
func (b *Builder) SwitchValue(
	resultType ValType,
	reread func() *Instr,
	casts []ValueTag,
	heapOf func(ValueTag) *HeapType,
	nilCase func() *Instr,
	tagCase func(tag ValueTag, narrowed *Instr) *Instr,
	defaultCase func() *Instr,
) *Instr {
	var build func(i int) *Instr
	build = func(i int) *Instr {
		if i == len(casts) {
			return defaultCase()
		}
		tag := casts[i]
		ht := heapOf(tag)
		test := b.RefTest(RefType(ht), reread())
		narrowed := b.RefCast(RefType(ht), reread())
		return b.If(resultType, test, []*Instr{tagCase(tag, narrowed)}, []*Instr{build(i + 1)})
	}
	return b.If(resultType, b.IsNull(reread()), []*Instr{nilCase()}, []*Instr{build(0)})
}
