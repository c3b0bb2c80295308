package wallet

import (
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/wire"
)

// ExtractSignatures recovers the signatures present in the witness of
// input nIn of tx for the keys of desc. Each witness item is checked
// against each key not yet matched, so only valid signatures are
// returned.
func ExtractSignatures(tx *wire.MsgTx, nIn int, prevOut *wire.TxOut,
	desc descriptor.Descriptor[miniscript.PublicKey]) (*SignatureMap, error) {

	c, err := newChecker(tx, nIn, prevOut)
	if err != nil {
		return nil, err
	}

	scriptCode, err := desc.ScriptCode()
	if err != nil {
		return nil, err
	}

	var keys []miniscript.PublicKey
	desc.ForEachKey(func(k miniscript.PublicKey) bool {
		keys = append(keys, k)
		return true
	})

	sigs := NewSignatureMap()
	matched := make(map[int]bool, len(keys))
	for _, item := range tx.TxIn[nIn].Witness {
		// DER signatures with sighash byte are 9 to 73 bytes
		if len(item) < 9 || len(item) > 73 {
			continue
		}

		for i, key := range keys {
			if matched[i] {
				continue
			}

			valid, err := c.CheckSig(scriptCode, key, item)
			if err != nil {
				continue
			}

			sigs.Add(valid.pubKey, valid.sig)
			matched[i] = true
			break
		}
	}

	log.Debugf("Extracted %d signatures from input %d", sigs.Len(), nIn)
	return sigs, nil
}
