package syringe

import "github.com/xyproto/syringe/internal/winpe"

// pointerSize returns the width in bytes of a pointer/address in a
// process or module of the given bitness.
func (b Bitness) pointerSize() uintptr {
	if b == Bitness32 {
		return 4
	}
	return 8
}

// fromPEBitness maps internal/winpe's notion of bitness (derived from an
// image's optional header magic) onto this package's Bitness, which also
// describes live processes.
func fromPEBitness(b winpe.Bitness) Bitness {
	if b == winpe.Bitness32 {
		return Bitness32
	}
	return Bitness64
}
