package wallet

import (
	"github.com/btccom/btcdescriptor/descriptor"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	_assert "github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const prevAmount = int64(150000)

func withKeys(s string) string {
	return strings.NewReplacer(
		"K1", key1, "K2", key2, "K3", key3,
		"SHA", testSha256, "H256", testHash256, "R160", testRipemd160, "H160", testHash160,
	).Replace(s)
}

func mustDescriptor(t *testing.T, s string) descriptor.Descriptor[miniscript.PublicKey] {
	desc, err := descriptor.Parse(withKeys(s), miniscript.ParsePublicKey)
	_assert.NoError(t, err, s)
	return desc
}

// spendingTx creates a transaction with a single input spending an
// output locked with desc.
func spendingTx(t *testing.T, desc descriptor.Descriptor[miniscript.PublicKey], sequence uint32, lockTime uint32) (*wire.MsgTx, *wire.TxOut) {
	pkScript, err := desc.ScriptPubKey()
	_assert.NoError(t, err)
	prevOut := wire.NewTxOut(prevAmount, pkScript)

	tx := wire.NewMsgTx(2)
	prevHash := chainhash.DoubleHashH([]byte(desc.String()))
	txIn := wire.NewTxIn(wire.NewOutPoint(&prevHash, 1), nil, nil)
	txIn.Sequence = sequence
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(prevAmount-2000, pkScript))
	tx.LockTime = lockTime

	return tx, prevOut
}

func TestFinalizeInput(t *testing.T) {
	fixtures := []struct {
		desc     string
		wifs     []string
		sequence uint32
		lockTime uint32
		preimage bool
	}{
		{desc: "wpkh(K1)", wifs: []string{wif1}},
		{desc: "wsh(pk(K1))", wifs: []string{wif1}},
		{desc: "wsh(pkh(K2))", wifs: []string{wif2}},
		{desc: "wsh(sortedmulti(2,K3,K2,K1))", wifs: []string{wif1, wif3}},
		{desc: "wsh(multi(2,K1,K2,K3))", wifs: []string{wif1, wif2, wif3}},
		{desc: "wsh(or_d(pk(K1),and_v(v:pk(K2),older(144))))", wifs: []string{wif2}, sequence: 144},
		{desc: "wsh(and_v(v:pk(K1),sha256(SHA)))", wifs: []string{wif1}, preimage: true},
		{desc: "wsh(and_v(v:pk(K1),hash256(H256)))", wifs: []string{wif1}, preimage: true},
		{desc: "wsh(and_v(v:pk(K1),ripemd160(R160)))", wifs: []string{wif1}, preimage: true},
		{desc: "wsh(and_v(v:pk(K1),hash160(H160)))", wifs: []string{wif1}, preimage: true},
		{desc: "wsh(and_v(v:pk(K1),after(500000)))", wifs: []string{wif1}, sequence: wire.MaxTxInSequenceNum - 1, lockTime: 500000},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.desc, func(t *testing.T) {
			desc := mustDescriptor(t, fixture.desc)

			sequence := fixture.sequence
			if sequence == 0 {
				sequence = wire.MaxTxInSequenceNum
			}
			tx, prevOut := spendingTx(t, desc, sequence, fixture.lockTime)

			provider, err := NewPrivKeyProvider(fixture.wifs...)
			_assert.NoError(t, err)

			satisfier, err := NewInputSatisfier(tx, 0, prevOut, desc, provider, txscript.SigHashAll)
			_assert.NoError(t, err)
			if fixture.preimage {
				satisfier.AddPreimage(testPreimage())
			}

			_assert.NoError(t, FinalizeInput(tx, 0, desc, satisfier))
			_assert.NoError(t, VerifyInput(tx, 0, prevOut))
		})
	}
}

func TestFinalizeInputErrors(t *testing.T) {
	desc := mustDescriptor(t, "wsh(pk(K1))")

	t.Run("missing key", func(t *testing.T) {
		tx, prevOut := spendingTx(t, desc, wire.MaxTxInSequenceNum, 0)
		provider, err := NewPrivKeyProvider(wif2)
		_assert.NoError(t, err)

		satisfier, err := NewInputSatisfier(tx, 0, prevOut, desc, provider, txscript.SigHashAll)
		_assert.NoError(t, err)

		err = FinalizeInput(tx, 0, desc, satisfier)
		var missing *miniscript.MissingSigError
		_assert.True(t, errors.As(err, &missing))
		_assert.Equal(t, key1, missing.Key)
		_assert.Nil(t, tx.TxIn[0].Witness)
	})

	t.Run("timelock not reached", func(t *testing.T) {
		timelocked := mustDescriptor(t, "wsh(and_v(v:pk(K1),older(144)))")
		tx, prevOut := spendingTx(t, timelocked, 143, 0)
		provider, err := NewPrivKeyProvider(wif1)
		_assert.NoError(t, err)

		satisfier, err := NewInputSatisfier(tx, 0, prevOut, timelocked, provider, txscript.SigHashAll)
		_assert.NoError(t, err)

		err = FinalizeInput(tx, 0, timelocked, satisfier)
		_assert.True(t, errors.Is(err, miniscript.ErrCouldNotSatisfy), "%v", err)
	})

	t.Run("bad input index", func(t *testing.T) {
		tx, prevOut := spendingTx(t, desc, wire.MaxTxInSequenceNum, 0)
		provider, err := NewPrivKeyProvider(wif1)
		_assert.NoError(t, err)

		_, err = NewInputSatisfier(tx, 1, prevOut, desc, provider, txscript.SigHashAll)
		_assert.EqualError(t, err, "no input at this index")

		err = FinalizeInput(tx, 1, desc, NewSignatureMap())
		_assert.EqualError(t, err, "Input 1 does not exist in transaction")
	})
}

func TestVerifyInputRejectsWrongAmount(t *testing.T) {
	desc := mustDescriptor(t, "wpkh(K1)")
	tx, prevOut := spendingTx(t, desc, wire.MaxTxInSequenceNum, 0)

	provider, err := NewPrivKeyProvider(wif1)
	_assert.NoError(t, err)

	satisfier, err := NewInputSatisfier(tx, 0, prevOut, desc, provider, txscript.SigHashAll)
	_assert.NoError(t, err)
	_assert.NoError(t, FinalizeInput(tx, 0, desc, satisfier))

	wrongAmount := wire.NewTxOut(prevOut.Value+1, prevOut.PkScript)
	_assert.Error(t, VerifyInput(tx, 0, wrongAmount))
}

func TestInputSatisfierCachesSignatures(t *testing.T) {
	desc := mustDescriptor(t, "wsh(pk(K1))")
	tx, prevOut := spendingTx(t, desc, wire.MaxTxInSequenceNum, 0)

	provider, err := NewPrivKeyProvider(wif1)
	_assert.NoError(t, err)

	satisfier, err := NewInputSatisfier(tx, 0, prevOut, desc, provider, txscript.SigHashAll)
	_assert.NoError(t, err)

	first, ok := satisfier.LookupSig(mustPubKey(t, key1))
	_assert.True(t, ok)
	second, ok := satisfier.LookupSig(mustPubKey(t, key1))
	_assert.True(t, ok)
	_assert.Same(t, first, second)

	_, ok = satisfier.LookupSig(mustPubKey(t, key2))
	_assert.False(t, ok)

	_assert.Equal(t, 1, satisfier.Signatures().Len())
}
