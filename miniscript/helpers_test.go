package miniscript

import (
	"encoding/hex"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	_assert "github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const (
	key1 = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	key2 = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	key3 = "02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"

	// key1 in uncompressed form
	key1Uncompressed = "0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
		"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8"

	// sha256 of 32 bytes of 0x01
	testHash = "72cd6e8422c407fb6d098690f1130b7ded7ec2f7f5e1d30bd9d521f015363793"
)

// withKeys replaces the placeholders K1, K2, K3 and H in a script.
func withKeys(s string) string {
	return strings.NewReplacer("K1", key1, "K2", key2, "K3", key3, "H", testHash).Replace(s)
}

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	_assert.NoError(t, err)
	return b
}

func testPreimage() []byte {
	return []byte(strings.Repeat("\x01", 32))
}

// testPrivKey returns the private key with scalar i.
func testPrivKey(i byte) (*btcec.PrivateKey, PublicKey) {
	scalar := make([]byte, 32)
	scalar[31] = i
	priv, pub := btcec.PrivKeyFromBytes(scalar)
	return priv, NewPublicKey(pub)
}

func testSig(t *testing.T, i byte) *Signature {
	priv, _ := testPrivKey(i)
	hash := chainhash.DoubleHashB([]byte("btcdescriptor test message"))
	return &Signature{HashType: txscript.SigHashAll, Signature: ecdsa.Sign(priv, hash)}
}

func mustParse(t *testing.T, s string) *Miniscript[PublicKey] {
	ms, err := Parse(withKeys(s), ParsePublicKey)
	_assert.NoError(t, err, s)
	return ms
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

// testSatisfier serves signatures by key, sha256 preimages and a
// relative lock time.
type testSatisfier struct {
	BaseSatisfier[PublicKey]
	sigs      map[string]*Signature
	preimages map[string][]byte
	sequence  uint32
}

func (s *testSatisfier) LookupSig(key PublicKey) (*Signature, bool) {
	sig, ok := s.sigs[key.String()]
	return sig, ok
}

func (s *testSatisfier) LookupSha256(hash []byte) ([]byte, bool) {
	preimage, ok := s.preimages[hex.EncodeToString(hash)]
	return preimage, ok
}

func (s *testSatisfier) CheckOlder(n uint32) bool {
	return CheckOlder(n, 2, s.sequence)
}
