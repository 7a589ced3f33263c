// Package graycode produces the synchronization codes that the clock writes to
// the acquisition device each time a recordable event fires.
//
// Consecutive codes differ in exactly one bit, so a device sampling the lines
// while they change can never observe a value that is neither the old code
// nor the new one.
package graycode

import (
	"errors"
	"fmt"
	"sync"
)

// The range of code widths supported by the digital output lines.
const (
	MinWidth = 8
	MaxWidth = 16
)

// ErrInvalidWidth is returned when a generator is requested with a width
// outside [MinWidth, MaxWidth].
var ErrInvalidWidth = errors.New("graycode: invalid code width")

// Source produces a monotonically advancing sequence of synchronization codes.
type Source interface {
	// Next advances the sequence and returns the new code.
	Next() uint32

	// Width returns the number of output bits used by the codes.
	Width() int
}

// Generator is the default Source. It counts from 1 and wraps modulo
// 2^width, passing through 0, which keeps the one-bit property across the
// wrap.
type Generator struct {
	lock    sync.Mutex
	width   int
	mask    uint32
	counter uint32
}

// New creates a Generator with the given number of bits.
func New(width int) (*Generator, error) {
	if width < MinWidth || width > MaxWidth {
		return nil, fmt.Errorf(
			"%w: %d, must be within [%d, %d]",
			ErrInvalidWidth, width, MinWidth, MaxWidth,
		)
	}

	g := &Generator{
		width: width,
		mask:  uint32(1)<<uint(width) - 1,
	}

	return g, nil
}

// Next returns the next code in the sequence.
func (g *Generator) Next() uint32 {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.counter = (g.counter + 1) & g.mask

	return Encode(g.counter)
}

// Width returns the number of bits of the codes.
func (g *Generator) Width() int {
	return g.width
}

// Encode converts a binary counter value to its reflected Gray code.
func Encode(n uint32) uint32 {
	return n ^ (n >> 1)
}

// Decode converts a Gray code back to the binary counter value.
func Decode(code uint32) uint32 {
	n := code
	for shift := code >> 1; shift != 0; shift >>= 1 {
		n ^= shift
	}

	return n
}

var _ Source = (*Generator)(nil)
