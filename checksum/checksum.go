package checksum

import (
	"github.com/pkg/errors"
	"strings"
)

const (
	// inputCharset is the set of characters a descriptor may contain,
	// grouped so that the position within a group of 32 is the low
	// 5 bits fed to the polymod.
	inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
		"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
		"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

	// checksumCharset is the bech32 character set the checksum is
	// written in.
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

	// Length is the number of characters in a descriptor checksum.
	Length = 8
)

// MismatchError is returned when a descriptor carries a checksum which
// does not match its contents.
type MismatchError struct {
	Expected string
	Got      string
}

func (e *MismatchError) Error() string {
	return "Invalid checksum '" + e.Got + "', expected '" + e.Expected + "'"
}

// InvalidCharacterError is returned when a descriptor contains a
// character outside of the descriptor charset.
type InvalidCharacterError struct {
	Char rune
}

func (e *InvalidCharacterError) Error() string {
	return "Invalid character in checksum: '" + string(e.Char) + "'"
}

func polyMod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ val
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// Checksum computes the 8 character checksum of a descriptor string
// which does not include a checksum itself.
func Checksum(desc string) (string, error) {
	c := uint64(1)
	cls := uint64(0)
	clsCount := 0

	for _, ch := range desc {
		pos := strings.IndexRune(inputCharset, ch)
		if pos < 0 {
			return "", &InvalidCharacterError{Char: ch}
		}

		c = polyMod(c, uint64(pos)&31)
		cls = cls*3 + uint64(pos>>5)
		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}
	for j := 0; j < Length; j++ {
		c = polyMod(c, 0)
	}
	c ^= 1

	var sum [Length]byte
	for j := 0; j < Length; j++ {
		sum[j] = checksumCharset[(c>>(5*(7-j)))&31]
	}

	return string(sum[:]), nil
}

// Verify checks the checksum suffix of s, if there is one, and returns
// the descriptor without it. A descriptor without a '#' is returned
// unchanged.
func Verify(s string) (string, error) {
	for _, ch := range s {
		if ch > 0x7f {
			return "", errors.Errorf("Invalid character in descriptor: '%c'", ch)
		}
	}

	parts := strings.Split(s, "#")
	switch len(parts) {
	case 1:
		return s, nil
	case 2:
	default:
		return "", errors.New("Multiple '#' symbols in descriptor")
	}

	desc, got := parts[0], parts[1]
	if len(got) != Length {
		return "", errors.Errorf("Expected %d character checksum, not %d characters", Length, len(got))
	}

	expected, err := Checksum(desc)
	if err != nil {
		return "", err
	}
	if expected != got {
		return "", &MismatchError{Expected: expected, Got: got}
	}

	return desc, nil
}

// Append returns desc followed by '#' and its checksum.
func Append(desc string) (string, error) {
	sum, err := Checksum(desc)
	if err != nil {
		return "", err
	}
	return desc + "#" + sum, nil
}
