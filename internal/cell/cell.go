// Package cell implements the packed terminal cell and its style table
// (spec §3.1-3.2, §4.1): a 64-bit value type {rune, style id, attrs}
// with bitwise equality, plus a monotonically-growing, never-shrinking
// style intern table.
package cell

const (
	runeBits  = 32
	styleBits = 24
	attrBits  = 8

	styleShift = attrBits
	runeShift  = attrBits + styleBits

	styleMask = uint64(1)<<styleBits - 1
	attrMask  = uint64(1)<<attrBits - 1
)

// Packed is a 64-bit payload: {unicode scalar: 32 bits, style_id: 24
// bits, minor attribute bits: 8}. Cells are value types; equality is
// bitwise, matching spec §3.1 exactly.
type Packed uint64

// Pack combines a rune, style id, and minor attribute bits into a
// Packed cell. styleID is truncated to 24 bits and attrs to 8 bits.
func Pack(r rune, styleID StyleID, attrs uint8) Packed {
	return Packed(uint64(uint32(r))<<runeShift | (uint64(styleID)&styleMask)<<styleShift | uint64(attrs)&attrMask)
}

// Rune extracts the unicode scalar.
func (p Packed) Rune() rune {
	return rune(uint32(uint64(p) >> runeShift))
}

// StyleID extracts the interned style id.
func (p Packed) StyleID() StyleID {
	return StyleID((uint64(p) >> styleShift) & styleMask)
}

// Attrs extracts the minor attribute bits (BufferCell.Flags
// equivalent: bold/italic/underline/inverse).
func (p Packed) Attrs() uint8 {
	return uint8(uint64(p) & attrMask)
}

// Minor attribute bit flags, matching the SGR handling in
// pkg/terminal/buffer.go handleSGR.
const (
	AttrBold uint8 = 1 << iota
	AttrItalic
	AttrUnderline
	AttrInverse
)

// Blank is the default empty cell: space, default style, no attrs.
var Blank = Pack(' ', DefaultStyleID, 0)
