package wallet

import (
	"encoding/hex"
	"github.com/btccom/btcdescriptor/bip32util"
	"github.com/btccom/btcdescriptor/miniscript"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"sync"
)

// SignatureProvider is a contract whereby implementations
// accept a public key (to aid in loading the key), and a message
// hash, and will return a signature, whether the key was known,
// or an error
type SignatureProvider interface {
	Sign(pubKey miniscript.PublicKey, hash []byte) (*ecdsa.Signature, bool, error)
}

// PrivKeyProvider is a SignatureProvider holding private keys in memory.
type PrivKeyProvider struct {
	sync.RWMutex
	keys map[string]*btcec.PrivateKey
}

// NewPrivKeyProvider creates a PrivKeyProvider for the keys in the
// provided WIF strings.
func NewPrivKeyProvider(wifs ...string) (*PrivKeyProvider, error) {
	provider := &PrivKeyProvider{keys: make(map[string]*btcec.PrivateKey, len(wifs))}
	for _, s := range wifs {
		wif, err := btcutil.DecodeWIF(s)
		if err != nil {
			return nil, errors.Wrap(err, "invalid WIF")
		}
		if !wif.CompressPubKey {
			return nil, errors.New("WIF is for an uncompressed public key")
		}
		provider.AddKey(wif.PrivKey)
	}
	return provider, nil
}

// AddKey makes priv available for signing.
func (p *PrivKeyProvider) AddKey(priv *btcec.PrivateKey) {
	p.Lock()
	defer p.Unlock()
	p.keys[hex.EncodeToString(priv.PubKey().SerializeCompressed())] = priv
}

// Sign implements SignatureProvider
func (p *PrivKeyProvider) Sign(pubKey miniscript.PublicKey, hash []byte) (*ecdsa.Signature, bool, error) {
	p.RLock()
	priv, ok := p.keys[hex.EncodeToString(pubKey.Key.SerializeCompressed())]
	p.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if len(hash) != 32 {
		return nil, true, errors.Errorf("Invalid sighash length %d", len(hash))
	}

	return ecdsa.Sign(priv, hash), true, nil
}

// Bip32Provider is a SignatureProvider for keys derived from a BIP32
// private key. Keys become available once their path is added.
type Bip32Provider struct {
	*PrivKeyProvider
	key *bip32util.Key
}

// NewBip32Provider creates a Bip32Provider for the private key.
func NewBip32Provider(key *bip32util.Key) (*Bip32Provider, error) {
	if !key.IsPrivate() {
		return nil, errors.New("Bip32Provider requires a private key")
	}

	return &Bip32Provider{
		PrivKeyProvider: &PrivKeyProvider{keys: make(map[string]*btcec.PrivateKey)},
		key:             key,
	}, nil
}

// AddPath derives the key at path, relative to the provider's key,
// and makes it available for signing.
func (p *Bip32Provider) AddPath(path *bip32util.Path) error {
	child, err := p.key.DerivePath(path)
	if err != nil {
		return err
	}

	priv, err := child.Key.ECPrivKey()
	if err != nil {
		return err
	}

	log.Debugf("Loaded key at %s", child.Path)
	p.AddKey(priv)
	return nil
}
