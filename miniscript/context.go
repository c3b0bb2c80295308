package miniscript

import (
	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxScriptSize is the consensus limit on the size of a script.
	MaxScriptSize = 10000

	// MaxStandardWitnessScriptSize is the maximum size in bytes of a
	// standard witnessScript.
	MaxStandardWitnessScriptSize = 3600

	// MaxOpsPerScript is the maximum number of non-push operations per
	// script.
	MaxOpsPerScript = 201

	// MaxStandardWitnessStackItems is the maximum number of witness
	// stack items, excluding the witness script, relayed by standard
	// nodes.
	MaxStandardWitnessStackItems = 100

	// multisigMaxKeys is the maximum number of keys in a multisig.
	multisigMaxKeys = 20
)

// Checkable is the view of a script the context rules are evaluated
// against.
type Checkable interface {
	String() string
	ScriptSize() int
	MaxOpCount() int
	MaxSatisfactionWitnessElements() (int, error)

	topLevel() bool
	contextKeys() []Key
}

// SegwitV0 carries the rules for scripts executed as P2WSH witness
// scripts.
type SegwitV0 struct{}

// Segwitv0 is the segwit v0 context.
var Segwitv0 SegwitV0

// CheckKey rejects uncompressed keys.
func (SegwitV0) CheckKey(k Key) error {
	if k.IsUncompressed() {
		return &ContextError{Kind: CompressedOnly, Detail: k.String()}
	}
	return nil
}

// KeyLen is the size of the key push in a script.
func (SegwitV0) KeyLen(k Key) int {
	if k.IsUncompressed() {
		return 1 + uncompressedKeyLen
	}
	return 1 + compressedKeyLen
}

// CheckGlobalConsensusValidity checks the whole script against the
// consensus rules: script size and key formats.
func (c SegwitV0) CheckGlobalConsensusValidity(ms Checkable) error {
	if ms.ScriptSize() > MaxScriptSize {
		return &ContextError{Kind: MaxScriptSizeExceeded}
	}
	for _, k := range ms.contextKeys() {
		if err := c.CheckKey(k); err != nil {
			return err
		}
	}
	return nil
}

// CheckGlobalPolicyValidity checks the whole script against the
// standardness rules.
func (SegwitV0) CheckGlobalPolicyValidity(ms Checkable) error {
	if ms.ScriptSize() > MaxStandardWitnessScriptSize {
		return &ContextError{Kind: MaxWitnessScriptSizeExceeded}
	}
	return nil
}

// CheckLocalConsensusValidity checks the spending paths against the
// consensus op count limit.
func (SegwitV0) CheckLocalConsensusValidity(ms Checkable) error {
	if ms.MaxOpCount() > MaxOpsPerScript {
		return &ContextError{Kind: MaxOpCountExceeded}
	}
	return nil
}

// CheckLocalPolicyValidity checks the spending paths against the
// standard witness stack limit.
func (SegwitV0) CheckLocalPolicyValidity(ms Checkable) error {
	elems, err := ms.MaxSatisfactionWitnessElements()
	if err != nil {
		return err
	}
	if elems-1 > MaxStandardWitnessStackItems {
		return &ContextError{Kind: MaxWitnessItemsExceeded}
	}
	return nil
}

func (c SegwitV0) CheckGlobalValidity(ms Checkable) error {
	if err := c.CheckGlobalConsensusValidity(ms); err != nil {
		return err
	}
	return c.CheckGlobalPolicyValidity(ms)
}

func (c SegwitV0) CheckLocalValidity(ms Checkable) error {
	if err := c.CheckLocalConsensusValidity(ms); err != nil {
		return err
	}
	return c.CheckLocalPolicyValidity(ms)
}

// TopLevelChecks is run on every script before it is accepted as a
// witness script: it must be of type B and pass the global checks.
func (c SegwitV0) TopLevelChecks(ms Checkable) error {
	if !ms.topLevel() {
		return &ContextError{Kind: NonTopLevel, Detail: ms.String()}
	}
	return c.CheckGlobalValidity(ms)
}

// CheckWitness checks a satisfaction, excluding the witness script,
// against the standard stack item limit.
func (SegwitV0) CheckWitness(witness wire.TxWitness) error {
	if len(witness) > MaxStandardWitnessStackItems {
		return &ContextError{Kind: MaxWitnessItemsExceeded}
	}
	return nil
}
