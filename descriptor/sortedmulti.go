package descriptor

import (
	"bytes"
	"github.com/btccom/btcdescriptor/expression"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btccom/btcdescriptor/policy"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"sort"
	"strconv"
	"strings"
)

// SortedMulti is a k-of-n CHECKMULTISIG whose keys are sorted by their
// serialization when the script is built. The keys keep the order they
// were given in for printing.
type SortedMulti[K miniscript.Key] struct {
	k    int
	keys []K

	// node is the multi() fragment over the keys in input order. It
	// has the same shape as the sorted script, so it is used for sizes
	// and analysis.
	node *miniscript.Miniscript[K]
}

// NewSortedMulti creates a sortedmulti(k,...) for use in a P2WSH
// script.
func NewSortedMulti[K miniscript.Key](k int, keys []K) (*SortedMulti[K], error) {
	node, err := miniscript.NewMulti(k, keys)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := miniscript.Segwitv0.CheckKey(key); err != nil {
			return nil, err
		}
	}
	if err := miniscript.Segwitv0.CheckLocalValidity(node); err != nil {
		return nil, err
	}

	return &SortedMulti[K]{k: k, keys: append([]K(nil), keys...), node: node}, nil
}

func (sm *SortedMulti[K]) K() int {
	return sm.k
}

// Keys returns the keys in the order they were given.
func (sm *SortedMulti[K]) Keys() []K {
	return append([]K(nil), sm.keys...)
}

// sorted returns the multi() fragment with the keys sorted by their
// serialization.
func (sm *SortedMulti[K]) sorted() (*miniscript.Miniscript[K], error) {
	type sortKey struct {
		key        K
		serialized []byte
	}

	sortKeys := make([]sortKey, len(sm.keys))
	for i, key := range sm.keys {
		pk, err := miniscript.ToPublicKey(key)
		if err != nil {
			return nil, err
		}
		sortKeys[i] = sortKey{key: key, serialized: pk.Serialize()}
	}
	sort.SliceStable(sortKeys, func(i, j int) bool {
		return bytes.Compare(sortKeys[i].serialized, sortKeys[j].serialized) < 0
	})

	keys := make([]K, len(sortKeys))
	for i, sk := range sortKeys {
		keys[i] = sk.key
	}
	return miniscript.NewMulti(sm.k, keys)
}

// Encode returns the CHECKMULTISIG script over the sorted keys.
func (sm *SortedMulti[K]) Encode() ([]byte, error) {
	node, err := sm.sorted()
	if err != nil {
		return nil, err
	}
	return node.Encode()
}

// Satisfy returns the multisig witness for the sorted key order,
// excluding the witness script.
func (sm *SortedMulti[K]) Satisfy(s miniscript.Satisfier[K]) (wire.TxWitness, error) {
	node, err := sm.sorted()
	if err != nil {
		return nil, err
	}
	return node.Satisfy(s)
}

func (sm *SortedMulti[K]) ScriptSize() int {
	return sm.node.ScriptSize()
}

func (sm *SortedMulti[K]) MaxOpCount() int {
	return sm.node.MaxOpCount()
}

// MaxSatisfactionWitnessElements is k signatures, the CHECKMULTISIG
// dummy element and the witness script.
func (sm *SortedMulti[K]) MaxSatisfactionWitnessElements() int {
	return 2 + sm.k
}

// MaxSatisfactionSize is the dummy element plus k signatures with their
// length prefix.
func (sm *SortedMulti[K]) MaxSatisfactionSize() int {
	return 1 + 73*sm.k
}

func (sm *SortedMulti[K]) kind() WshKind {
	return WshSortedMulti
}

func (sm *SortedMulti[K]) encode() ([]byte, error) {
	return sm.Encode()
}

// satisfy ignores allowMalleable, multisig witnesses are never
// malleable.
func (sm *SortedMulti[K]) satisfy(s miniscript.Satisfier[K], allowMalleable bool) (wire.TxWitness, error) {
	return sm.Satisfy(s)
}

func (sm *SortedMulti[K]) maxSatisfaction() (int, int, int, error) {
	return sm.ScriptSize(), sm.MaxSatisfactionWitnessElements(), sm.MaxSatisfactionSize(), nil
}

func (sm *SortedMulti[K]) SanityCheck() error {
	return sm.node.SanityCheck()
}

func (sm *SortedMulti[K]) ForEachKey(pred func(K) bool) bool {
	return sm.node.ForEachKey(pred)
}

// Lift returns thresh(k, keyhashes...).
func (sm *SortedMulti[K]) Lift() *policy.Policy {
	subs := make([]*policy.Policy, len(sm.keys))
	for i, key := range sm.keys {
		subs[i] = policy.KeyHash(key.PubKeyHash())
	}
	return policy.Threshold(sm.k, subs...)
}

func (sm *SortedMulti[K]) String() string {
	var b strings.Builder
	b.WriteString("sortedmulti(")
	b.WriteString(strconv.Itoa(sm.k))
	for _, key := range sm.keys {
		b.WriteByte(',')
		b.WriteString(key.String())
	}
	b.WriteByte(')')
	return b.String()
}

// TranslateSortedMulti maps every key of sm with t.PK.
func TranslateSortedMulti[P miniscript.Key, Q miniscript.Key](sm *SortedMulti[P], t miniscript.Translator[P, Q]) (*SortedMulti[Q], error) {
	keys := make([]Q, len(sm.keys))
	for i, key := range sm.keys {
		q, err := t.PK(key)
		if err != nil {
			return nil, err
		}
		keys[i] = q
	}
	return NewSortedMulti(sm.k, keys)
}

func sortedMultiFromTree[K miniscript.Key](tree *expression.Tree, parseKey miniscript.KeyParser[K]) (*SortedMulti[K], error) {
	if len(tree.Args) == 0 {
		return nil, errors.New("sortedmulti needs a threshold")
	}

	k, err := expression.Terminal(tree.Args[0], expression.ParseNum)
	if err != nil {
		return nil, err
	}

	keys := make([]K, 0, len(tree.Args)-1)
	for _, arg := range tree.Args[1:] {
		key, err := expression.Terminal(arg, parseKey)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return NewSortedMulti(int(k), keys)
}
