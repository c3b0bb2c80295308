package descriptor

import (
	"github.com/btccom/btcdescriptor/checksum"
	"github.com/btccom/btcdescriptor/expression"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btccom/btcdescriptor/policy"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"strconv"
)

// Descriptor is an output descriptor over keys of type K. Operations
// which produce scripts, addresses or witnesses need the keys to be
// miniscript.Definite and fail with miniscript.ErrNotDefinite otherwise.
type Descriptor[K miniscript.Key] interface {
	// ScriptPubKey is the output script.
	ScriptPubKey() ([]byte, error)

	// UnsignedScriptSig is the script sig of a spending input, which
	// is empty for native segwit outputs.
	UnsignedScriptSig() []byte

	// ExplicitScript is the script revealed when spending.
	ExplicitScript() ([]byte, error)

	// ScriptCode is the script committed to by BIP143 signatures.
	ScriptCode() ([]byte, error)

	Address(params *chaincfg.Params) (btcutil.Address, error)

	// Satisfaction returns the witness and script sig spending the
	// output with the data from s.
	Satisfaction(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error)
	SatisfactionMalleable(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error)

	// MaxSatisfactionWeight bounds the weight a satisfaction adds to a
	// transaction input.
	MaxSatisfactionWeight() (int, error)

	SanityCheck() error
	ForEachKey(pred func(K) bool) bool
	Lift() *policy.Policy

	// ToStringNoChecksum is the canonical string without the checksum,
	// String appends it.
	ToStringNoChecksum() string
	String() string
}

// SyntaxError is returned when a descriptor string does not have the
// structure of the descriptor it is parsed as.
type SyntaxError struct {
	Name    string
	NumArgs int
	Context string
}

func (e *SyntaxError) Error() string {
	return e.Name + "(" + strconv.Itoa(e.NumArgs) + " args) while parsing " + e.Context
}

// withChecksum appends the checksum to a descriptor string. Keys whose
// string form leaves the checksum charset can't be checksummed, those
// descriptors print without one.
func withChecksum(desc string) string {
	s, err := checksum.Append(desc)
	if err != nil {
		log.Warnf("Printing %q without checksum: %v", desc, err)
		return desc
	}
	return s
}

// parseTree verifies the checksum, if present, and parses the rest. The
// descriptor must be printable with a checksum even when none is given.
func parseTree(s string) (*expression.Tree, error) {
	desc, err := checksum.Verify(s)
	if err != nil {
		return nil, err
	}
	if _, err := checksum.Checksum(desc); err != nil {
		return nil, err
	}
	return expression.Parse(desc)
}

// Parse reads a wsh() or wpkh() descriptor, with or without checksum.
func Parse[K miniscript.Key](s string, parseKey miniscript.KeyParser[K]) (Descriptor[K], error) {
	tree, err := parseTree(s)
	if err != nil {
		return nil, err
	}

	var desc Descriptor[K]
	switch tree.Name {
	case "wsh":
		desc, err = wshFromTree(tree, parseKey)
	case "wpkh":
		desc, err = wpkhFromTree(tree, parseKey)
	default:
		return nil, &SyntaxError{Name: tree.Name, NumArgs: len(tree.Args), Context: "descriptor"}
	}
	if err != nil {
		return nil, err
	}

	log.Debugf("Parsed descriptor %s", desc)
	return desc, nil
}

// Translate maps the keys of a wsh() or wpkh() descriptor with t.
func Translate[P miniscript.Key, Q miniscript.Key](d Descriptor[P], t miniscript.Translator[P, Q]) (Descriptor[Q], error) {
	switch d := d.(type) {
	case *Wsh[P]:
		wsh, err := TranslateWsh(d, t)
		if err != nil {
			return nil, err
		}
		return wsh, nil
	case *Wpkh[P]:
		wpkh, err := TranslateWpkh(d, t)
		if err != nil {
			return nil, err
		}
		return wpkh, nil
	default:
		return nil, errors.Errorf("cannot translate descriptor %s", d)
	}
}

// Equal compares descriptors by their canonical string.
func Equal[K miniscript.Key](a, b Descriptor[K]) bool {
	return a.ToStringNoChecksum() == b.ToStringNoChecksum()
}

func varIntLen(n int) int {
	return wire.VarIntSerializeSize(uint64(n))
}
