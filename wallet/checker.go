package wallet

import (
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// validSignature is an internal structure for capturing
// the fields of a valid signature
type validSignature struct {
	pubKey miniscript.PublicKey
	sig    *miniscript.Signature
	hash   []byte
}

// checkTxSig verifies sig against the hash
func checkTxSig(sig *miniscript.Signature, pubKey miniscript.PublicKey, hash []byte) (*validSignature, error) {
	if sig.Signature.Verify(hash, pubKey.Key) {
		return &validSignature{
			pubKey: pubKey,
			sig:    sig,
			hash:   hash,
		}, nil
	}

	return nil, errors.New("Invalid signature")
}

// checker computes BIP143 sighashes for a segwit v0 input and
// verifies signatures against them.
type checker struct {
	tx        *wire.MsgTx
	nIn       int
	amount    int64
	fetcher   txscript.PrevOutputFetcher
	sigHashes *txscript.TxSigHashes
}

// newChecker creates a checker for input nIn of tx, which spends
// prevOut.
func newChecker(tx *wire.MsgTx, nIn int, prevOut *wire.TxOut) (*checker, error) {
	if nIn < 0 || nIn > len(tx.TxIn)-1 {
		return nil, errors.New("no input at this index")
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(prevOut.PkScript, prevOut.Value)
	return &checker{
		tx:        tx,
		nIn:       nIn,
		amount:    prevOut.Value,
		fetcher:   fetcher,
		sigHashes: txscript.NewTxSigHashes(tx, fetcher),
	}, nil
}

// GetSigHash returns the BIP143 sighash committing to scriptCode.
func (c *checker) GetSigHash(scriptCode []byte, hashType txscript.SigHashType) ([]byte, error) {
	return txscript.CalcWitnessSigHash(scriptCode, c.sigHashes, hashType, c.tx, c.nIn, c.amount)
}

// CheckSig verifies a serialized signature against a public key
func (c *checker) CheckSig(scriptCode []byte, pubKey miniscript.PublicKey, vchSig []byte) (*validSignature, error) {
	sig, err := miniscript.ParseSignature(vchSig)
	if err != nil {
		return nil, errors.Wrap(err, "checker failed to parse signature")
	}

	hash, err := c.GetSigHash(scriptCode, sig.HashType)
	if err != nil {
		return nil, errors.Wrap(err, "checker failed to create sighash")
	}

	return checkTxSig(sig, pubKey, hash)
}
