package bip32util

import (
	"encoding/binary"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pkg/errors"
)

var (
	// ErrKeyPathMismatch is returned by NewBip32Key when the path is
	// not as deep as the key.
	ErrKeyPathMismatch = errors.New("key matched with wrong path, both should equal")

	// ErrBadRootKey is returned by NewBip32MasterKey for keys with a
	// depth or parent fingerprint.
	ErrBadRootKey = errors.New("root key must have a depth and parent fingerprint of 0")

	// ErrKeyIsAlreadyPublic is returned by ToPublic for neutered keys.
	ErrKeyIsAlreadyPublic = errors.New("key is already public")
)

// Key is an extended key together with the path it sits at below its
// master key. hdkeychain only records the depth, the path is needed to
// write key origins.
type Key struct {
	Key  *hdkeychain.ExtendedKey
	Path *Path
}

// NewBip32MasterKey wraps a master key, at the empty path.
func NewBip32MasterKey(key *hdkeychain.ExtendedKey) (*Key, error) {
	if key.Depth() != 0 || key.ParentFingerprint() != 0 {
		return nil, ErrBadRootKey
	}

	return NewBip32Key(key, &Path{Path: []uint32{}})
}

// NewBip32Key wraps key which was derived at path.
func NewBip32Key(key *hdkeychain.ExtendedKey, path *Path) (*Key, error) {
	if int(key.Depth()) != path.Depth() {
		return nil, ErrKeyPathMismatch
	}

	return &Key{Key: key, Path: path}, nil
}

// Child derives the key at sequence below k.
func (k *Key) Child(sequence uint32) (*Key, error) {
	childPath, err := k.Path.Child(sequence)
	if err != nil {
		return nil, err
	}

	child, err := k.Key.Derive(sequence)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive %s", PathSegmentFromSequence(sequence))
	}

	return &Key{Key: child, Path: childPath}, nil
}

// DerivePath derives the key at path relative to k.
func (k *Key) DerivePath(path *Path) (*Key, error) {
	fullPath, err := k.Path.Extend(path)
	if err != nil {
		return nil, err
	}

	derived, err := Derive(k.Key, path)
	if err != nil {
		return nil, err
	}

	return &Key{Key: derived, Path: fullPath}, nil
}

func (k *Key) IsPrivate() bool {
	return k.Key.IsPrivate()
}

// ToPublic neuters a private key. The path is kept.
func (k *Key) ToPublic() (*Key, error) {
	if !k.Key.IsPrivate() {
		return nil, ErrKeyIsAlreadyPublic
	}

	neutered, err := k.Key.Neuter()
	if err != nil {
		return nil, err
	}

	return &Key{Key: neutered, Path: k.Path}, nil
}

// Fingerprint identifies k in the origin of keys derived from it.
func (k *Key) Fingerprint() (uint32, error) {
	return Fingerprint(k.Key)
}

// Derive applies each step of path to key.
func Derive(key *hdkeychain.ExtendedKey, path *Path) (*hdkeychain.ExtendedKey, error) {
	derived := key
	for _, sequence := range path.Path {
		var err error
		if derived, err = derived.Derive(sequence); err != nil {
			return nil, errors.Wrapf(err, "failed to derive %s", PathSegmentFromSequence(sequence))
		}
	}
	return derived, nil
}

// Fingerprint returns the first four bytes of the hash160 of key's
// public key, read big endian.
func Fingerprint(key *hdkeychain.ExtendedKey) (uint32, error) {
	pubKey, err := key.ECPubKey()
	if err != nil {
		return 0, err
	}
	return FingerprintOf(pubKey), nil
}

func FingerprintOf(pubKey *btcec.PublicKey) uint32 {
	hash := btcutil.Hash160(pubKey.SerializeCompressed())
	return binary.BigEndian.Uint32(hash[:4])
}
