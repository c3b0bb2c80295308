package descriptor

import (
	"github.com/btccom/btcdescriptor/expression"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btccom/btcdescriptor/policy"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// maxSigLen is the length of the largest DER signature plus sighash
// byte, including its length prefix.
const maxSigLen = 73

// Wpkh is a wpkh(KEY) descriptor: a P2WPKH output for a single
// compressed key.
type Wpkh[K miniscript.Key] struct {
	pk K
}

// NewWpkh creates a P2WPKH descriptor. The key must be compressed.
func NewWpkh[K miniscript.Key](pk K) (*Wpkh[K], error) {
	if err := miniscript.Segwitv0.CheckKey(pk); err != nil {
		return nil, err
	}
	return &Wpkh[K]{pk: pk}, nil
}

// Key returns the key of the descriptor.
func (w *Wpkh[K]) Key() K {
	return w.pk
}

// SanityCheck checks the key is compressed.
func (w *Wpkh[K]) SanityCheck() error {
	return miniscript.Segwitv0.CheckKey(w.pk)
}

func (w *Wpkh[K]) address(params *chaincfg.Params) (*btcutil.AddressWitnessPubKeyHash, error) {
	pk, err := miniscript.ToPublicKey(w.pk)
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressWitnessPubKeyHash(pk.Hash160(), params)
}

// ScriptPubKey is the P2WPKH program `OP_0 <hash160(key)>`. It is the
// same on every network.
func (w *Wpkh[K]) ScriptPubKey() ([]byte, error) {
	addr, err := w.address(&chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// Address returns the P2WPKH address on the network given by params.
func (w *Wpkh[K]) Address(params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := w.address(params)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (w *Wpkh[K]) UnsignedScriptSig() []byte {
	return []byte{}
}

// ExplicitScript is the witness program itself.
func (w *Wpkh[K]) ExplicitScript() ([]byte, error) {
	return w.ScriptPubKey()
}

// ScriptCode is the P2PKH script of the key, which BIP143 signatures
// commit to instead of the witness program.
func (w *Wpkh[K]) ScriptCode() ([]byte, error) {
	pk, err := miniscript.ToPublicKey(w.pk)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressPubKeyHash(pk.Hash160(), &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// Satisfaction returns the witness [signature, key].
func (w *Wpkh[K]) Satisfaction(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error) {
	pk, err := miniscript.ToPublicKey(w.pk)
	if err != nil {
		return nil, nil, err
	}

	sig, ok := s.LookupSig(w.pk)
	if !ok {
		log.Debugf("No signature for wpkh key %s", w.pk)
		return nil, nil, &miniscript.MissingSigError{Key: w.pk.String()}
	}

	witness := wire.TxWitness{sig.Serialize(), pk.Serialize()}
	return witness, w.UnsignedScriptSig(), nil
}

// SatisfactionMalleable is the same as Satisfaction, as a P2WPKH
// witness can't be malleated.
func (w *Wpkh[K]) SatisfactionMalleable(s miniscript.Satisfier[K]) (wire.TxWitness, []byte, error) {
	return w.Satisfaction(s)
}

// MaxSatisfactionWeight counts the script sig length, the witness item
// count, the signature and the key.
func (w *Wpkh[K]) MaxSatisfactionWeight() (int, error) {
	return 4 + 1 + maxSigLen + miniscript.Segwitv0.KeyLen(w.pk), nil
}

func (w *Wpkh[K]) ForEachKey(pred func(K) bool) bool {
	return pred(w.pk)
}

// Lift returns the policy requiring a signature of the key.
func (w *Wpkh[K]) Lift() *policy.Policy {
	return policy.KeyHash(w.pk.PubKeyHash())
}

func (w *Wpkh[K]) ToStringNoChecksum() string {
	return "wpkh(" + w.pk.String() + ")"
}

func (w *Wpkh[K]) String() string {
	return withChecksum(w.ToStringNoChecksum())
}

// TranslateWpkh maps the key of w with t.PK. A translator must not map a
// compressed key to an uncompressed one.
func TranslateWpkh[P miniscript.Key, Q miniscript.Key](w *Wpkh[P], t miniscript.Translator[P, Q]) (*Wpkh[Q], error) {
	pk, err := t.PK(w.pk)
	if err != nil {
		return nil, err
	}

	translated, err := NewWpkh(pk)
	if err != nil {
		panic("translator produced an uncompressed key: " + err.Error())
	}
	return translated, nil
}

// ParseWpkh reads a wpkh(KEY) descriptor, with or without checksum.
func ParseWpkh[K miniscript.Key](s string, parseKey miniscript.KeyParser[K]) (*Wpkh[K], error) {
	tree, err := parseTree(s)
	if err != nil {
		return nil, err
	}
	return wpkhFromTree(tree, parseKey)
}

func wpkhFromTree[K miniscript.Key](tree *expression.Tree, parseKey miniscript.KeyParser[K]) (*Wpkh[K], error) {
	if tree.Name != "wpkh" || len(tree.Args) != 1 {
		return nil, &SyntaxError{Name: tree.Name, NumArgs: len(tree.Args), Context: "wpkh descriptor"}
	}

	pk, err := expression.Terminal(tree.Args[0], parseKey)
	if err != nil {
		return nil, err
	}
	return NewWpkh(pk)
}
