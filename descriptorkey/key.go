// Package descriptorkey implements the KEY expressions of output
// descriptors: hex public keys and extended public keys, each with an
// optional origin, where extended keys may end in a `*` wildcard.
package descriptorkey

import (
	"encoding/binary"
	"encoding/hex"
	"github.com/btccom/btcdescriptor/bip32util"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/pkg/errors"
	"strings"
)

const wildcard = "*"

// Origin is the `[fingerprint/path]` prefix naming the master key a key
// was derived from.
type Origin struct {
	Fingerprint uint32
	Path        *bip32util.Path
}

func (o *Origin) String() string {
	var fp [4]byte
	binary.BigEndian.PutUint32(fp[:], o.Fingerprint)

	s := "[" + hex.EncodeToString(fp[:])
	if o.Path.Depth() > 0 {
		s += "/" + o.Path.String()
	}
	return s + "]"
}

// Key is a descriptor key. It is either a single public key or an
// extended public key with a derivation path and optional wildcard.
type Key struct {
	origin *Origin

	single *miniscript.PublicKey

	xpub     *hdkeychain.ExtendedKey
	path     *bip32util.Path
	wildcard bool
}

// NewSingle wraps a public key.
func NewSingle(pk miniscript.PublicKey, origin *Origin) Key {
	return Key{origin: origin, single: &pk}
}

// NewExtended wraps an extended public key to be derived along path,
// then at the index given to DeriveAt when wildcard is set.
func NewExtended(xpub *hdkeychain.ExtendedKey, path *bip32util.Path, wildcard bool, origin *Origin) (Key, error) {
	if xpub.IsPrivate() {
		return Key{}, errors.New("extended private keys are not supported")
	}
	if path.IsHardened() {
		return Key{}, errors.Errorf("hardened derivation %s from an extended public key", path)
	}
	return Key{origin: origin, xpub: xpub, path: path, wildcard: wildcard}, nil
}

// Parse reads a key expression.
func Parse(s string) (Key, error) {
	origin, rest, err := parseOrigin(s)
	if err != nil {
		return Key{}, err
	}

	if len(rest) == 66 || len(rest) == 130 {
		pk, err := miniscript.ParsePublicKey(rest)
		if err != nil {
			return Key{}, err
		}
		return NewSingle(pk, origin), nil
	}

	parts := strings.Split(rest, "/")
	xpub, err := hdkeychain.NewKeyFromString(parts[0])
	if err != nil {
		return Key{}, errors.Wrapf(err, "invalid key %s", parts[0])
	}

	steps := parts[1:]
	isWildcard := false
	if len(steps) > 0 {
		switch last := steps[len(steps)-1]; last {
		case wildcard:
			isWildcard = true
			steps = steps[:len(steps)-1]
		case "*'", "*h":
			return Key{}, errors.New("hardened wildcard derivation is not supported")
		}
	}

	if len(steps) == 1 && steps[0] == "" {
		return Key{}, errors.Errorf("Empty derivation step in %s", s)
	}
	path, err := bip32util.NewPathFromString(strings.Join(steps, "/"))
	if err != nil {
		return Key{}, err
	}

	return NewExtended(xpub, path, isWildcard, origin)
}

func parseOrigin(s string) (*Origin, string, error) {
	if !strings.HasPrefix(s, "[") {
		return nil, s, nil
	}

	end := strings.IndexByte(s, ']')
	if end < 0 {
		return nil, "", errors.New("Key origin start '[' character without corresponding ']'")
	}

	parts := strings.SplitN(s[1:end], "/", 2)
	fp, err := hex.DecodeString(parts[0])
	if err != nil || len(fp) != 4 {
		return nil, "", errors.Errorf("Fingerprint '%s' is not 4 bytes of hex", parts[0])
	}

	path := &bip32util.Path{Path: []uint32{}}
	if len(parts) == 2 {
		if parts[1] == "" {
			return nil, "", errors.Errorf("Empty derivation step in key origin %s", s[:end+1])
		}
		if path, err = bip32util.NewPathFromString(parts[1]); err != nil {
			return nil, "", err
		}
	}

	origin := &Origin{Fingerprint: binary.BigEndian.Uint32(fp), Path: path}
	return origin, s[end+1:], nil
}

// Origin returns the key origin, or nil when none was given.
func (k Key) Origin() *Origin {
	return k.origin
}

// IsWildcard reports whether the key ends in `/*`.
func (k Key) IsWildcard() bool {
	return k.wildcard
}

// IsExtended reports whether the key is an extended key.
func (k Key) IsExtended() bool {
	return k.xpub != nil
}

func (k Key) String() string {
	var b strings.Builder
	if k.origin != nil {
		b.WriteString(k.origin.String())
	}

	if k.single != nil {
		b.WriteString(k.single.String())
		return b.String()
	}

	b.WriteString(k.xpub.String())
	if k.path.Depth() > 0 {
		b.WriteString("/")
		b.WriteString(k.path.String())
	}
	if k.wildcard {
		b.WriteString("/" + wildcard)
	}
	return b.String()
}

// IsUncompressed is only true for single uncompressed keys.
func (k Key) IsUncompressed() bool {
	return k.single != nil && k.single.IsUncompressed()
}

// PubKeyHash is the hash160 of the key. Wildcard keys have no single
// hash and are named by their string instead.
func (k Key) PubKeyHash() string {
	if k.wildcard {
		return k.String()
	}

	pk, err := k.DeriveAt(0)
	if err != nil {
		return k.String()
	}
	return pk.PubKeyHash()
}

// DeriveAt returns the public key at index. The index is only used by
// wildcard keys and must be unhardened.
func (k Key) DeriveAt(index uint32) (miniscript.PublicKey, error) {
	if k.single != nil {
		return *k.single, nil
	}

	path := k.path
	if k.wildcard {
		if bip32util.IsHardened(index) {
			return miniscript.PublicKey{}, errors.Errorf("hardened index %d for wildcard key", index)
		}

		var err error
		if path, err = path.Child(index); err != nil {
			return miniscript.PublicKey{}, err
		}
	}

	derived, err := bip32util.Derive(k.xpub, path)
	if err != nil {
		return miniscript.PublicKey{}, err
	}

	pubKey, err := derived.ECPubKey()
	if err != nil {
		return miniscript.PublicKey{}, err
	}
	return miniscript.NewPublicKey(pubKey), nil
}

// FullPath returns the derivation path from the origin's master key,
// when the key has an origin.
func (k Key) FullPath(index uint32) (*bip32util.Path, error) {
	if k.origin == nil {
		return nil, errors.New("key has no origin")
	}
	if k.single != nil {
		return k.origin.Path, nil
	}

	path, err := k.origin.Path.Extend(k.path)
	if err != nil {
		return nil, err
	}
	if k.wildcard {
		return path.Child(index)
	}
	return path, nil
}

// Deriver returns a translator resolving every key at index.
func Deriver(index uint32) miniscript.Translator[Key, miniscript.PublicKey] {
	return miniscript.TranslateFunc[Key, miniscript.PublicKey](func(k Key) (miniscript.PublicKey, error) {
		return k.DeriveAt(index)
	})
}
