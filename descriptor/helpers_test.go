package descriptor

import (
	"encoding/hex"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	_assert "github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const (
	key1 = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	key2 = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	key3 = "02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"

	key1Uncompressed = "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"

	hash1 = "751e76e8199196d454941c45d1b3a323f1433bd6"
	hash2 = "06afd46bcdfd22ef94ac122aa11f241244a37ecc"

	// sha256 of 32 bytes of 0x01
	testHash = "72cd6e8422c407fb6d098690f1130b7ded7ec2f7f5e1d30bd9d521f015363793"

	prevAmount = int64(100000)
)

// withKeys replaces the placeholders K1, K2, K3 and H in a descriptor.
func withKeys(s string) string {
	return strings.NewReplacer("K1", key1, "K2", key2, "K3", key3, "H", testHash).Replace(s)
}

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	_assert.NoError(t, err)
	return b
}

func mustParse(t *testing.T, s string) Descriptor[miniscript.PublicKey] {
	desc, err := Parse(withKeys(s), miniscript.ParsePublicKey)
	_assert.NoError(t, err, s)
	return desc
}

func testPrivKey(i byte) *btcec.PrivateKey {
	scalar := make([]byte, 32)
	scalar[31] = i
	priv, _ := btcec.PrivKeyFromBytes(scalar)
	return priv
}

// stringKey is an abstract key which has no public key.
type stringKey string

func (k stringKey) String() string {
	return string(k)
}

func (k stringKey) IsUncompressed() bool {
	return strings.HasPrefix(string(k), "uncompressed")
}

func (k stringKey) PubKeyHash() string {
	return "hash_" + string(k)
}

func parseStringKey(s string) (stringKey, error) {
	return stringKey(s), nil
}

// spendFixture is a transaction spending a single output locked with a
// descriptor. Signatures are produced on request with the BIP143
// sighash over the descriptor's script code.
type spendFixture struct {
	miniscript.BaseSatisfier[miniscript.PublicKey]

	t         *testing.T
	desc      Descriptor[miniscript.PublicKey]
	pkScript  []byte
	tx        *wire.MsgTx
	fetcher   *txscript.CannedPrevOutputFetcher
	sigHashes *txscript.TxSigHashes
	signers   map[string]*btcec.PrivateKey
	preimages map[string][]byte
}

func newSpendFixture(t *testing.T, desc Descriptor[miniscript.PublicKey], sequence uint32, signers ...byte) *spendFixture {
	pkScript, err := desc.ScriptPubKey()
	_assert.NoError(t, err)

	tx := wire.NewMsgTx(2)
	prevHash := chainhash.DoubleHashH([]byte("funding"))
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	tx.TxIn[0].Sequence = sequence
	tx.AddTxOut(wire.NewTxOut(prevAmount-1000, pkScript))

	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, prevAmount)

	f := &spendFixture{
		t:         t,
		desc:      desc,
		pkScript:  pkScript,
		tx:        tx,
		fetcher:   fetcher,
		sigHashes: txscript.NewTxSigHashes(tx, fetcher),
		signers:   map[string]*btcec.PrivateKey{},
		preimages: map[string][]byte{},
	}
	for _, i := range signers {
		priv := testPrivKey(i)
		f.signers[hex.EncodeToString(priv.PubKey().SerializeCompressed())] = priv
	}
	return f
}

func (f *spendFixture) LookupSig(key miniscript.PublicKey) (*miniscript.Signature, bool) {
	priv, ok := f.signers[key.String()]
	if !ok {
		return nil, false
	}

	scriptCode, err := f.desc.ScriptCode()
	_assert.NoError(f.t, err)

	hash, err := txscript.CalcWitnessSigHash(scriptCode, f.sigHashes, txscript.SigHashAll, f.tx, 0, prevAmount)
	_assert.NoError(f.t, err)

	return &miniscript.Signature{HashType: txscript.SigHashAll, Signature: ecdsa.Sign(priv, hash)}, true
}

func (f *spendFixture) LookupSha256(hash []byte) ([]byte, bool) {
	preimage, ok := f.preimages[hex.EncodeToString(hash)]
	return preimage, ok
}

func (f *spendFixture) CheckOlder(n uint32) bool {
	return miniscript.CheckOlder(n, f.tx.Version, f.tx.TxIn[0].Sequence)
}

func (f *spendFixture) CheckAfter(n uint32) bool {
	return miniscript.CheckAfter(n, f.tx.LockTime, f.tx.TxIn[0].Sequence)
}

// execute runs the script engine on the spending input.
func (f *spendFixture) execute() error {
	vm, err := txscript.NewEngine(
		f.pkScript, f.tx, 0, txscript.StandardVerifyFlags,
		nil, f.sigHashes, prevAmount, f.fetcher,
	)
	if err != nil {
		return err
	}
	return vm.Execute()
}
