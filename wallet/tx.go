package wallet

import (
	"encoding/hex"
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"sync"
)

// InputSatisfier satisfies the descriptor locking one input of a
// transaction. Signatures are requested from the SignatureProvider as
// the satisfier asks for them, over the BIP143 sighash of the
// descriptor's script code.
type InputSatisfier struct {
	sync.Mutex
	checker    *checker
	scriptCode []byte
	hashType   txscript.SigHashType
	signer     SignatureProvider
	preimages  *Preimages

	sigHash []byte
	sigs    map[string]*miniscript.Signature
}

// NewInputSatisfier creates an InputSatisfier for input nIn of tx,
// which spends prevOut locked with desc.
func NewInputSatisfier(tx *wire.MsgTx, nIn int, prevOut *wire.TxOut,
	desc descriptor.Descriptor[miniscript.PublicKey], signer SignatureProvider,
	hashType txscript.SigHashType) (*InputSatisfier, error) {

	c, err := newChecker(tx, nIn, prevOut)
	if err != nil {
		return nil, err
	}

	scriptCode, err := desc.ScriptCode()
	if err != nil {
		return nil, err
	}

	return &InputSatisfier{
		checker:    c,
		scriptCode: scriptCode,
		hashType:   hashType,
		signer:     signer,
		preimages:  NewPreimages(),
		sigs:       make(map[string]*miniscript.Signature),
	}, nil
}

// AddPreimage makes preimage available to hash-locks.
func (s *InputSatisfier) AddPreimage(preimage []byte) {
	s.preimages.Add(preimage)
}

// Signatures returns the signatures produced so far, by public key.
func (s *InputSatisfier) Signatures() *SignatureMap {
	s.Lock()
	defer s.Unlock()

	sigs := NewSignatureMap()
	for key, sig := range s.sigs {
		sigs.sigs[key] = sig
	}
	return sigs
}

// getSigHash returns the sighash, computing it on first use
func (s *InputSatisfier) getSigHash() ([]byte, error) {
	if s.sigHash == nil {
		hash, err := s.checker.GetSigHash(s.scriptCode, s.hashType)
		if err != nil {
			return nil, err
		}
		s.sigHash = hash
	}
	return s.sigHash, nil
}

// LookupSig implements miniscript.Satisfier. A signing failure is
// logged and treated as a missing signature.
func (s *InputSatisfier) LookupSig(key miniscript.PublicKey) (*miniscript.Signature, bool) {
	s.Lock()
	defer s.Unlock()

	if sig, ok := s.sigs[key.String()]; ok {
		return sig, true
	}

	hash, err := s.getSigHash()
	if err != nil {
		log.Errorf("Failed to compute sighash for input %d: %v", s.checker.nIn, err)
		return nil, false
	}

	signature, known, err := s.signer.Sign(key, hash)
	if !known {
		return nil, false
	}
	if err != nil {
		log.Errorf("Failed to sign input %d with key %s: %v", s.checker.nIn, key, err)
		return nil, false
	}

	sig := &miniscript.Signature{HashType: s.hashType, Signature: signature}
	s.sigs[key.String()] = sig
	return sig, true
}

func (s *InputSatisfier) LookupSha256(hash []byte) ([]byte, bool) {
	return s.preimages.LookupSha256(hash)
}

func (s *InputSatisfier) LookupHash256(hash []byte) ([]byte, bool) {
	return s.preimages.LookupHash256(hash)
}

func (s *InputSatisfier) LookupRipemd160(hash []byte) ([]byte, bool) {
	return s.preimages.LookupRipemd160(hash)
}

func (s *InputSatisfier) LookupHash160(hash []byte) ([]byte, bool) {
	return s.preimages.LookupHash160(hash)
}

// CheckOlder checks the relative lock time against the input's
// sequence.
func (s *InputSatisfier) CheckOlder(n uint32) bool {
	tx := s.checker.tx
	return miniscript.CheckOlder(n, tx.Version, tx.TxIn[s.checker.nIn].Sequence)
}

// CheckAfter checks the absolute lock time against the transaction's
// lock time.
func (s *InputSatisfier) CheckAfter(n uint32) bool {
	tx := s.checker.tx
	return miniscript.CheckAfter(n, tx.LockTime, tx.TxIn[s.checker.nIn].Sequence)
}

// SignatureMap is a satisfier of already collected signatures, keyed
// by public key.
type SignatureMap struct {
	miniscript.BaseSatisfier[miniscript.PublicKey]
	sigs map[string]*miniscript.Signature
}

func NewSignatureMap() *SignatureMap {
	return &SignatureMap{sigs: make(map[string]*miniscript.Signature)}
}

// Add sets the signature for pubKey.
func (m *SignatureMap) Add(pubKey miniscript.PublicKey, sig *miniscript.Signature) {
	m.sigs[pubKey.String()] = sig
}

// Len returns the number of signatures held.
func (m *SignatureMap) Len() int {
	return len(m.sigs)
}

func (m *SignatureMap) LookupSig(key miniscript.PublicKey) (*miniscript.Signature, bool) {
	sig, ok := m.sigs[key.String()]
	return sig, ok
}

// FinalizeInput satisfies desc with satisfier and writes the witness and
// script sig to input nIn of tx.
func FinalizeInput(tx *wire.MsgTx, nIn int, desc descriptor.Descriptor[miniscript.PublicKey],
	satisfier miniscript.Satisfier[miniscript.PublicKey]) error {

	if nIn < 0 || nIn > len(tx.TxIn)-1 {
		return errors.Errorf("Input %d does not exist in transaction", nIn)
	}

	witness, scriptSig, err := desc.Satisfaction(satisfier)
	if err != nil {
		return errors.Wrapf(err, "unable to satisfy input %d", nIn)
	}

	tx.TxIn[nIn].Witness = witness
	tx.TxIn[nIn].SignatureScript = scriptSig

	log.Debugf("Finalized input %d with %s", nIn, desc)
	log.Tracef("Witness for input %d: %v", nIn, newLogClosure(func() string {
		items := make([]string, len(witness))
		for i, item := range witness {
			items[i] = hex.EncodeToString(item)
		}
		return spew.Sdump(items)
	}))
	return nil
}

// VerifyInput runs the script engine on input nIn of tx, which spends
// prevOut.
func VerifyInput(tx *wire.MsgTx, nIn int, prevOut *wire.TxOut) error {
	c, err := newChecker(tx, nIn, prevOut)
	if err != nil {
		return err
	}

	vm, err := txscript.NewEngine(
		prevOut.PkScript, tx, nIn, txscript.StandardVerifyFlags,
		nil, c.sigHashes, prevOut.Value, c.fetcher,
	)
	if err != nil {
		return err
	}
	return vm.Execute()
}
