package wallet

import (
	"encoding/hex"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/fastsha256"
	"golang.org/x/crypto/ripemd160"
	"sync"
)

// Preimages serves hash preimages by the sha256, hash256, ripemd160 and
// hash160 of each preimage added.
type Preimages struct {
	sync.RWMutex
	sha256    map[string][]byte
	hash256   map[string][]byte
	ripemd160 map[string][]byte
	hash160   map[string][]byte
}

// NewPreimages creates a Preimages holding the provided values.
func NewPreimages(preimages ...[]byte) *Preimages {
	p := &Preimages{
		sha256:    make(map[string][]byte),
		hash256:   make(map[string][]byte),
		ripemd160: make(map[string][]byte),
		hash160:   make(map[string][]byte),
	}
	for _, preimage := range preimages {
		p.Add(preimage)
	}
	return p
}

// Add indexes preimage under each of its hashes.
func (p *Preimages) Add(preimage []byte) {
	p.Lock()
	defer p.Unlock()

	sha := fastsha256.Sum256(preimage)
	p.sha256[hex.EncodeToString(sha[:])] = preimage
	p.hash256[hex.EncodeToString(chainhash.DoubleHashB(preimage))] = preimage
	p.ripemd160[hex.EncodeToString(ripemd160Hash(preimage))] = preimage
	p.hash160[hex.EncodeToString(btcutil.Hash160(preimage))] = preimage
}

func (p *Preimages) lookup(m map[string][]byte, hash []byte) ([]byte, bool) {
	p.RLock()
	defer p.RUnlock()
	preimage, ok := m[hex.EncodeToString(hash)]
	return preimage, ok
}

func (p *Preimages) LookupSha256(hash []byte) ([]byte, bool) {
	return p.lookup(p.sha256, hash)
}

func (p *Preimages) LookupHash256(hash []byte) ([]byte, bool) {
	return p.lookup(p.hash256, hash)
}

func (p *Preimages) LookupRipemd160(hash []byte) ([]byte, bool) {
	return p.lookup(p.ripemd160, hash)
}

func (p *Preimages) LookupHash160(hash []byte) ([]byte, bool) {
	return p.lookup(p.hash160, hash)
}

func ripemd160Hash(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}
