package descriptor

import (
	"github.com/btccom/btcdescriptor/expression"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btccom/btcdescriptor/policy"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/fastsha256"
	"github.com/pkg/errors"
)

// WshKind tells which kind of script a Wsh wraps.
type WshKind int

const (
	WshSortedMulti WshKind = iota
	WshMiniscript
)

func (k WshKind) String() string {
	switch k {
	case WshSortedMulti:
		return "sortedmulti"
	case WshMiniscript:
		return "miniscript"
	default:
		return "unknown"
	}
}

// wshInner is the witness script of a Wsh. *SortedMulti and
// *wshMiniscript are its two implementations.
type wshInner[K miniscript.Key] interface {
	kind() WshKind
	encode() ([]byte, error)
	satisfy(s miniscript.Satisfier[K], allowMalleable bool) (wire.TxWitness, error)
	// maxSatisfaction returns the script size, the witness element
	// count and the witness size of the largest satisfaction.
	maxSatisfaction() (int, int, int, error)
	SanityCheck() error
	ForEachKey(pred func(K) bool) bool
	Lift() *policy.Policy
	String() string
}

var (
	_ wshInner[miniscript.PublicKey] = (*SortedMulti[miniscript.PublicKey])(nil)
	_ wshInner[miniscript.PublicKey] = (*wshMiniscript[miniscript.PublicKey])(nil)
)

type wshMiniscript[K miniscript.Key] struct {
	ms *miniscript.Miniscript[K]
}

func (m *wshMiniscript[K]) kind() WshKind {
	return WshMiniscript
}

func (m *wshMiniscript[K]) encode() ([]byte, error) {
	return m.ms.Encode()
}

func (m *wshMiniscript[K]) satisfy(s miniscript.Satisfier[K], allowMalleable bool) (wire.TxWitness, error) {
	if allowMalleable {
		return m.ms.SatisfyMalleable(s)
	}
	return m.ms.Satisfy(s)
}

func (m *wshMiniscript[K]) maxSatisfaction() (int, int, int, error) {
	elems, err := m.ms.MaxSatisfactionWitnessElements()
	if err != nil {
		return 0, 0, 0, err
	}
	size, err := m.ms.MaxSatisfactionSize()
	if err != nil {
		return 0, 0, 0, err
	}
	return m.ms.ScriptSize(), elems, size, nil
}

func (m *wshMiniscript[K]) SanityCheck() error {
	return m.ms.SanityCheck()
}

func (m *wshMiniscript[K]) ForEachKey(pred func(K) bool) bool {
	return m.ms.ForEachKey(pred)
}

func (m *wshMiniscript[K]) Lift() *policy.Policy {
	return m.ms.Lift()
}

func (m *wshMiniscript[K]) String() string {
	return m.ms.String()
}

// Wsh is a wsh(SCRIPT) descriptor: a P2WSH output whose witness script
// is either a sortedmulti or a miniscript. Only NewWsh, NewWshSortedMulti,
// parsing and translation produce usable values; the zero Wsh wraps
// nothing.
type Wsh[K miniscript.Key] struct {
	inner wshInner[K]
}

// NewWsh wraps a miniscript which passes the segwit v0 top level checks.
func NewWsh[K miniscript.Key](ms *miniscript.Miniscript[K]) (*Wsh[K], error) {
	if err := miniscript.Segwitv0.TopLevelChecks(ms); err != nil {
		return nil, err
	}
	return &Wsh[K]{inner: &wshMiniscript[K]{ms: ms}}, nil
}

// NewWshSortedMulti creates wsh(sortedmulti(k,keys...)).
func NewWshSortedMulti[K miniscript.Key](k int, keys []K) (*Wsh[K], error) {
	sm, err := NewSortedMulti(k, keys)
	if err != nil {
		return nil, err
	}
	return &Wsh[K]{inner: sm}, nil
}

func (w *Wsh[K]) Kind() WshKind {
	return w.inner.kind()
}

// SortedMulti returns the wrapped sortedmulti, or nil for a miniscript.
func (w *Wsh[K]) SortedMulti() *SortedMulti[K] {
	sm, _ := w.inner.(*SortedMulti[K])
	return sm
}

// Miniscript returns the wrapped miniscript, or nil for a sortedmulti.
func (w *Wsh[K]) Miniscript() *miniscript.Miniscript[K] {
	if m, ok := w.inner.(*wshMiniscript[K]); ok {
		return m.ms
	}
	return nil
}

func (w *Wsh[K]) SanityCheck() error {
	if w.inner == nil {
		return errors.New("wsh descriptor wraps no script")
	}
	return w.inner.SanityCheck()
}

// InnerScript is the witness script.
func (w *Wsh[K]) InnerScript() ([]byte, error) {
	return w.inner.encode()
}

// ScriptPubKey is the P2WSH program `OP_0 <sha256(witness script)>`.
func (w *Wsh[K]) ScriptPubKey() ([]byte, error) {
	script, err := w.InnerScript()
	if err != nil {
		return nil, err
	}

	scriptHash := fastsha256.Sum256(script)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(scriptHash[:]).
		Script()
}

// Address returns the P2WSH address on the network given by params.
func (w *Wsh[K]) Address(params *chaincfg.Params) (btcutil.Address, error) {
	script, err := w.InnerScript()
	if err != nil {
		return nil, err
	}

	scriptHash := fastsha256.Sum256(script)
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (w *Wsh[K]) UnsignedScriptSig() []byte {
	return []byte{}
}

func (w *Wsh[K]) ExplicitScript() ([]byte, error) {
	return w.InnerScript()
}

// ScriptCode is the witness script, which BIP143 signatures commit to.
func (w *Wsh[K]) ScriptCode() ([]byte, error) {
	return w.InnerScript()
}

func (w *Wsh[K]) satisfaction(s miniscript.Satisfier[K], allowMalleable bool) (wire.TxWitness, []byte, error) {
	script, err := w.InnerScript()
	if err != nil {
		return nil, nil, err
	}

	witness, err := w.inner.satisfy(s, allowMalleable)
	if err != nil {
		return nil, nil, err
	}

	log.Tracef("Satisfied %s: %v", w.ToStringNoChecksum(), newLogClosure(func() string {
		return spewWitness(witness)
	}))

	witness = append(witness, script)
	return witness, w.UnsignedScriptSig(), nil
}

// Satisfaction returns the smallest non-malleable witness followed by
// the witness script.
func (w *Wsh[K]) Satisfaction(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error) {
	return w.satisfaction(s, false)
}

// SatisfactionMalleable returns the smallest witness followed by the
// witness script, allowing satisfactions a third party could malleate.
func (w *Wsh[K]) SatisfactionMalleable(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error) {
	return w.satisfaction(s, true)
}

// MaxSatisfactionWeight bounds the witness size of a spend: the script
// sig length, the witness script with its length prefix, the witness
// item count and the items themselves.
func (w *Wsh[K]) MaxSatisfactionWeight() (int, error) {
	scriptSize, elems, size, err := w.inner.maxSatisfaction()
	if err != nil {
		return 0, err
	}

	return 4 + varIntLen(scriptSize) + scriptSize + varIntLen(elems) + size, nil
}

func (w *Wsh[K]) ForEachKey(pred func(K) bool) bool {
	return w.inner.ForEachKey(pred)
}

func (w *Wsh[K]) Lift() *policy.Policy {
	return w.inner.Lift()
}

func (w *Wsh[K]) ToStringNoChecksum() string {
	return "wsh(" + w.inner.String() + ")"
}

func (w *Wsh[K]) String() string {
	return withChecksum(w.ToStringNoChecksum())
}

// TranslateWsh maps the keys of w with t. Sorted multisig keys go
// through t.PK. The result passes the same checks as NewWsh and
// NewWshSortedMulti, so a translator producing keys the segwit v0
// context rejects fails here.
func TranslateWsh[P miniscript.Key, Q miniscript.Key](w *Wsh[P], t miniscript.Translator[P, Q]) (*Wsh[Q], error) {
	switch inner := w.inner.(type) {
	case *SortedMulti[P]:
		sm, err := TranslateSortedMulti(inner, t)
		if err != nil {
			return nil, err
		}
		return &Wsh[Q]{inner: sm}, nil
	case *wshMiniscript[P]:
		ms, err := miniscript.Translate(inner.ms, t)
		if err != nil {
			return nil, err
		}
		return NewWsh(ms)
	default:
		return nil, errors.New("wsh descriptor wraps no script")
	}
}

// ParseWsh reads a wsh(SCRIPT) descriptor, with or without checksum.
func ParseWsh[K miniscript.Key](s string, parseKey miniscript.KeyParser[K]) (*Wsh[K], error) {
	tree, err := parseTree(s)
	if err != nil {
		return nil, err
	}
	return wshFromTree(tree, parseKey)
}

func wshFromTree[K miniscript.Key](tree *expression.Tree, parseKey miniscript.KeyParser[K]) (*Wsh[K], error) {
	if tree.Name != "wsh" || len(tree.Args) != 1 {
		return nil, &SyntaxError{Name: tree.Name, NumArgs: len(tree.Args), Context: "wsh descriptor"}
	}

	top := tree.Args[0]
	if top.Name == "sortedmulti" {
		sm, err := sortedMultiFromTree(top, parseKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse sortedmulti")
		}
		return &Wsh[K]{inner: sm}, nil
	}

	ms, err := miniscript.FromTree(top, parseKey)
	if err != nil {
		return nil, err
	}
	return NewWsh(ms)
}
