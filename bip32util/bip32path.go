package bip32util

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pkg/errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrPathAlreadyMaxDepth is returned when the
	// BIP32 key has reached it's theoretical maximum
	// depth of 255, since additional derivations cannot
	// safely be serialized in a uint8
	ErrPathAlreadyMaxDepth = errors.New("Cannot create child path, currently at max BIP32 depth")
)

const (
	hardenedSymbol    = "'"
	hardenedSymbolAlt = "h"
	maxBip32Depth     = math.MaxUint8
)

// Path is a sequence of BIP32 child indices, relative to whichever key
// it is applied to. Descriptors write it as `44'/0'/0'` or `44h/0h/0h`.
type Path struct {
	Path []uint32
}

// NewPathFromString parses a relative derivation path. The empty string
// is the empty path.
func NewPathFromString(path string) (*Path, error) {
	if path == "" {
		return &Path{Path: []uint32{}}, nil
	}

	pieces := strings.Split(path, "/")
	if len(pieces) > maxBip32Depth {
		return nil, errors.Errorf("The provided path exceeds the maximum number of allowed derivations: %d", maxBip32Depth)
	}

	indices := make([]uint32, len(pieces))
	for i, segment := range pieces {
		sequence, err := SequenceFromSegment(segment)
		if err != nil {
			return nil, err
		}
		indices[i] = sequence
	}

	return &Path{Path: indices}, nil
}

// SequenceFromSegment parses one step of a path, which is hardened if
// it ends in ' or h.
func SequenceFromSegment(segment string) (uint32, error) {
	hardened := false
	if strings.HasSuffix(segment, hardenedSymbol) || strings.HasSuffix(segment, hardenedSymbolAlt) {
		hardened = true
		segment = segment[:len(segment)-1]
	}
	if segment == "" {
		return 0, errors.New("Empty BIP32 derivation step")
	}
	if strings.ContainsAny(segment, hardenedSymbol+hardenedSymbolAlt) {
		return 0, errors.Errorf("Improperly formatted BIP32 derivation (cannot contain multiple ' characters)")
	}
	if segment[0] == '+' || segment[0] == '-' {
		return 0, errors.Errorf("Invalid BIP32 derivation step: %s", segment)
	}

	sequence, err := strconv.ParseUint(segment, 10, 31)
	if err != nil {
		return 0, err
	}

	if hardened {
		sequence += hdkeychain.HardenedKeyStart
	}
	return uint32(sequence), nil
}

// Child attempts to append another sequence
// number to the path array, returning a new
// structure
func (p *Path) Child(sequence uint32) (*Path, error) {
	if p.Depth()+1 > maxBip32Depth {
		return nil, ErrPathAlreadyMaxDepth
	}

	indices := make([]uint32, 0, p.Depth()+1)
	indices = append(indices, p.Path...)
	indices = append(indices, sequence)

	return &Path{Path: indices}, nil
}

// Extend appends all of other to p.
func (p *Path) Extend(other *Path) (*Path, error) {
	if p.Depth()+other.Depth() > maxBip32Depth {
		return nil, ErrPathAlreadyMaxDepth
	}

	indices := make([]uint32, 0, p.Depth()+other.Depth())
	indices = append(indices, p.Path...)
	indices = append(indices, other.Path...)

	return &Path{Path: indices}, nil
}

// Depth returns the current depth of the path
func (p *Path) Depth() int {
	return len(p.Path)
}

// IsHardened reports whether any step of the path is hardened, which
// means it can't be derived from a public key.
func (p *Path) IsHardened() bool {
	for _, sequence := range p.Path {
		if IsHardened(sequence) {
			return true
		}
	}
	return false
}

// IsHardened returns whether the provided
// sequence has the leftmost bit set.
func IsHardened(sequence uint32) bool {
	return sequence&hdkeychain.HardenedKeyStart != 0
}

// PathSegmentFromSequence is used for serializing the
// sequence parameter from a Path into a string. The
// function returns the sequence number as a string, with
// the hardened symbol if the sequence is hardened.
func PathSegmentFromSequence(sequence uint32) string {
	if IsHardened(sequence) {
		return strconv.FormatUint(uint64(sequence-hdkeychain.HardenedKeyStart), 10) + hardenedSymbol
	}
	return strconv.FormatUint(uint64(sequence), 10)
}

// String encodes the Path structure into a string that
// is human readable, eg, 9999'/0/1
func (p *Path) String() string {
	steps := make([]string, p.Depth())
	for i, sequence := range p.Path {
		steps[i] = PathSegmentFromSequence(sequence)
	}
	return strings.Join(steps, "/")
}
