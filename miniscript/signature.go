package miniscript

import (
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

// Signature captures a parsed ECDSA signature and the sighash type it
// commits to.
type Signature struct {
	HashType  txscript.SigHashType
	Signature *ecdsa.Signature
}

// ParseSignature takes a witness signature (DER plus sighash byte) and
// parses a Signature.
func ParseSignature(sig []byte) (*Signature, error) {
	if len(sig) < 1 {
		return nil, errors.New("Signature too short")
	}

	hashType := txscript.SigHashType(sig[len(sig)-1])
	signature, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return nil, err
	}

	return &Signature{
		HashType:  hashType,
		Signature: signature,
	}, nil
}

// Serialize produces the witness element: the DER signature followed by
// the sighash type.
func (sig *Signature) Serialize() []byte {
	ecSig := sig.Signature.Serialize()
	return append(ecSig, byte(sig.HashType))
}
