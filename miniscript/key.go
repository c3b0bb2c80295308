package miniscript

import (
	"encoding/hex"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
)

const (
	compressedKeyLen   = 33
	uncompressedKeyLen = 65
)

// ErrNotDefinite is returned by operations which need the serialized
// form of a key, when called on abstract keys.
var ErrNotDefinite = errors.New("key cannot be resolved to a public key")

// Key is any key which can appear in a script. Abstract keys only need
// a printable form and a key hash; only Definite keys can be turned into
// script bytes.
type Key interface {
	String() string
	IsUncompressed() bool
	PubKeyHash() string
}

// Definite is a Key which resolves to a concrete public key.
type Definite interface {
	Key
	ToPublicKey() PublicKey
}

// KeyParser reads a key from its descriptor string form.
type KeyParser[K Key] func(string) (K, error)

// ToPublicKey resolves k, failing with ErrNotDefinite for abstract
// keys.
func ToPublicKey(k Key) (PublicKey, error) {
	definite, ok := k.(Definite)
	if !ok {
		return PublicKey{}, ErrNotDefinite
	}
	return definite.ToPublicKey(), nil
}

// PublicKey is a secp256k1 public key along with the serialization
// format it was found in.
type PublicKey struct {
	Key        *btcec.PublicKey
	Compressed bool
}

// NewPublicKey wraps key for use in compressed form.
func NewPublicKey(key *btcec.PublicKey) PublicKey {
	return PublicKey{Key: key, Compressed: true}
}

// ParsePublicKeyBytes takes keyBytes and produces a PublicKey. Hybrid
// keys are rejected.
func ParsePublicKeyBytes(keyBytes []byte) (PublicKey, error) {
	if len(keyBytes) < 33 {
		return PublicKey{}, errors.New("Invalid length of public key")
	}

	var compressed bool
	switch keyBytes[0] {
	case 0x02, 0x03:
		if len(keyBytes) != compressedKeyLen {
			return PublicKey{}, errors.New("Invalid length of compressed public key")
		}
		compressed = true
	case 0x04:
		if len(keyBytes) != uncompressedKeyLen {
			return PublicKey{}, errors.New("Invalid length of uncompressed public key")
		}
	default:
		return PublicKey{}, errors.New("Invalid prefix for public key")
	}

	key, err := btcec.ParsePubKey(keyBytes)
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "parse PublicKey failed")
	}

	return PublicKey{Key: key, Compressed: compressed}, nil
}

// ParsePublicKey parses a hex encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	keyBytes, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, errors.Wrapf(err, "invalid public key hex %s", s)
	}
	return ParsePublicKeyBytes(keyBytes)
}

// Serialize produces the key in the format it was parsed with.
func (k PublicKey) Serialize() []byte {
	if k.Compressed {
		return k.Key.SerializeCompressed()
	}
	return k.Key.SerializeUncompressed()
}

func (k PublicKey) String() string {
	return hex.EncodeToString(k.Serialize())
}

func (k PublicKey) IsUncompressed() bool {
	return !k.Compressed
}

// Hash160 is the hash committed to by pay-to-pubkey-hash scripts.
func (k PublicKey) Hash160() []byte {
	return btcutil.Hash160(k.Serialize())
}

// PubKeyHash returns the hex encoded Hash160 of the key.
func (k PublicKey) PubKeyHash() string {
	return hex.EncodeToString(k.Hash160())
}

func (k PublicKey) ToPublicKey() PublicKey {
	return k
}

// Equal compares the serialized forms of two keys.
func (k PublicKey) Equal(other PublicKey) bool {
	return k.Compressed == other.Compressed && k.Key.IsEqual(other.Key)
}
