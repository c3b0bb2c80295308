package miniscript

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// Satisfier is the source of the witness data a satisfaction is built
// from. Lookups report false when the data is not available.
type Satisfier[K Key] interface {
	LookupSig(key K) (*Signature, bool)

	// Preimage lookups take the hash as it appears in the script and
	// return its 32 byte preimage.
	LookupSha256(hash []byte) ([]byte, bool)
	LookupHash256(hash []byte) ([]byte, bool)
	LookupRipemd160(hash []byte) ([]byte, bool)
	LookupHash160(hash []byte) ([]byte, bool)

	// CheckOlder reports whether the spending input satisfies
	// OP_CHECKSEQUENCEVERIFY for n, see the CheckOlder function.
	CheckOlder(n uint32) bool

	// CheckAfter reports whether the spending transaction satisfies
	// OP_CHECKLOCKTIMEVERIFY for n, see the CheckAfter function.
	CheckAfter(n uint32) bool
}

// BaseSatisfier has nothing available. Embed it to implement only some
// of the lookups.
type BaseSatisfier[K Key] struct{}

func (BaseSatisfier[K]) LookupSig(K) (*Signature, bool)        { return nil, false }
func (BaseSatisfier[K]) LookupSha256([]byte) ([]byte, bool)    { return nil, false }
func (BaseSatisfier[K]) LookupHash256([]byte) ([]byte, bool)   { return nil, false }
func (BaseSatisfier[K]) LookupRipemd160([]byte) ([]byte, bool) { return nil, false }
func (BaseSatisfier[K]) LookupHash160([]byte) ([]byte, bool)   { return nil, false }
func (BaseSatisfier[K]) CheckOlder(uint32) bool                { return false }
func (BaseSatisfier[K]) CheckAfter(uint32) bool                { return false }

// SigFunc is a Satisfier which only provides signatures.
type SigFunc[K Key] func(key K) (*Signature, bool)

func (f SigFunc[K]) LookupSig(key K) (*Signature, bool)  { return f(key) }
func (SigFunc[K]) LookupSha256([]byte) ([]byte, bool)    { return nil, false }
func (SigFunc[K]) LookupHash256([]byte) ([]byte, bool)   { return nil, false }
func (SigFunc[K]) LookupRipemd160([]byte) ([]byte, bool) { return nil, false }
func (SigFunc[K]) LookupHash160([]byte) ([]byte, bool)   { return nil, false }
func (SigFunc[K]) CheckOlder(uint32) bool                { return false }
func (SigFunc[K]) CheckAfter(uint32) bool                { return false }

func verifyLockTime(txLockTime uint32, threshold uint32, lockTime uint32) bool {
	if !((txLockTime < threshold && lockTime < threshold) ||
		(txLockTime >= threshold && lockTime >= threshold)) {

		// Can't mix time lock types (blocks vs time).
		return false
	}
	return lockTime <= txLockTime
}

// CheckOlder checks if the OP_CHECKSEQUENCEVERIFY (BIP112, BIP68) call is
// satisfied given the lock time value, the version of the spending
// transaction and the sequence of the input being signed.
func CheckOlder(lockTime uint32, txVersion int32, txInputSequence uint32) bool {
	// See BIP68. Mask off non-consensus bits before doing comparisons.
	lockTimeMask := uint32(wire.SequenceLockTimeIsSeconds | wire.SequenceLockTimeMask)
	return txInputSequence&wire.SequenceLockTimeDisabled == 0 &&
		txVersion >= 2 && verifyLockTime(
		txInputSequence&lockTimeMask,
		wire.SequenceLockTimeIsSeconds,
		lockTime&lockTimeMask,
	)
}

// CheckAfter checks if the OP_CHECKLOCKTIMEVERIFY (BIP65) call is
// satisfied given the lock time value, the nLockTime of the spending
// transaction and the sequence of the input being signed, which must not
// be final.
func CheckAfter(lockTime uint32, txLockTime uint32, txInputSequence uint32) bool {
	return txInputSequence != wire.MaxTxInSequenceNum &&
		verifyLockTime(txLockTime, txscript.LockTimeThreshold, lockTime)
}

// satisfaction is a candidate witness for a fragment, combined bottom-up
// the way Bitcoin Core's InputStack is.
type satisfaction struct {
	// witness is ordered bottom of the stack first.
	witness wire.TxWitness

	// available is false when the data for this option is missing or
	// the option does not exist.
	available bool

	// malleable is set when a third party could replace this witness
	// with another valid one.
	malleable bool

	// hasSig is set when the witness contains a signature, so only the
	// key holders could malleate it.
	hasSig bool
}

var unavailable = satisfaction{}

func stackOf(elems ...[]byte) satisfaction {
	return satisfaction{witness: elems, available: true}
}

func (s satisfaction) and(b satisfaction) satisfaction {
	if !s.available || !b.available {
		return unavailable
	}
	witness := make(wire.TxWitness, 0, len(s.witness)+len(b.witness))
	witness = append(witness, s.witness...)
	return satisfaction{
		witness:   append(witness, b.witness...),
		available: true,
		malleable: s.malleable || b.malleable,
		hasSig:    s.hasSig || b.hasSig,
	}
}

func (s satisfaction) setMalleable() satisfaction {
	s.malleable = true
	return s
}

// or picks one of two options. Unless allowMalleable is set it follows
// the non-malleable rules: an option without a signature must be taken
// over one with a signature, and if neither has a signature the choice
// itself is malleable.
func (s satisfaction) or(b satisfaction, allowMalleable bool) satisfaction {
	if !s.available {
		return b
	}
	if !b.available {
		return s
	}

	if !allowMalleable {
		if !s.hasSig && b.hasSig {
			return s
		}
		if s.hasSig && !b.hasSig {
			return b
		}
		if !s.hasSig && !b.hasSig {
			s.malleable = true
			b.malleable = true
		} else {
			if b.malleable && !s.malleable {
				return s
			}
			if s.malleable && !b.malleable {
				return b
			}
		}
	}

	if s.witness.SerializeSize() <= b.witness.SerializeSize() {
		return s
	}
	return b
}

type satisfactions struct {
	dsat, sat satisfaction
}

type producer[K Key] struct {
	satisfier      Satisfier[K]
	allowMalleable bool

	// missing lists the keys a signature was asked for but not found.
	missing []string
}

func (p *producer[K]) or(a, b satisfaction) satisfaction {
	return a.or(b, p.allowMalleable)
}

func (p *producer[K]) preimage(node *Miniscript[K]) ([]byte, bool) {
	switch node.fragment {
	case f_sha256:
		return p.satisfier.LookupSha256(node.hash)
	case f_hash256:
		return p.satisfier.LookupHash256(node.hash)
	case f_ripemd160:
		return p.satisfier.LookupRipemd160(node.hash)
	default:
		return p.satisfier.LookupHash160(node.hash)
	}
}

func (p *producer[K]) sig(key K) satisfaction {
	sig, ok := p.satisfier.LookupSig(key)
	if !ok {
		p.missing = append(p.missing, key.String())
		return unavailable
	}
	s := stackOf(sig.Serialize())
	s.hasSig = true
	return s
}

// produce is based on ProduceInput() of the Bitcoin Core implementation.
func (p *producer[K]) produce(node *Miniscript[K]) (satisfactions, error) {
	var (
		empty = stackOf()
		zero  = stackOf([]byte{})
		one   = stackOf([]byte{1})
	)

	subs := make([]satisfactions, len(node.args))
	for i, arg := range node.args {
		sub, err := p.produce(arg)
		if err != nil {
			return satisfactions{}, err
		}
		subs[i] = sub
	}

	switch node.fragment {
	case f_0:
		return satisfactions{dsat: empty, sat: unavailable}, nil

	case f_1:
		return satisfactions{dsat: unavailable, sat: empty}, nil

	case f_pk_k:
		return satisfactions{dsat: zero, sat: p.sig(node.keys[0])}, nil

	case f_pk_h:
		key, err := ToPublicKey(node.keys[0])
		if err != nil {
			return satisfactions{}, err
		}
		keyBytes := stackOf(key.Serialize())
		return satisfactions{
			dsat: zero.and(keyBytes),
			sat:  p.sig(node.keys[0]).and(keyBytes),
		}, nil

	case f_older:
		if p.satisfier.CheckOlder(node.num) {
			return satisfactions{dsat: unavailable, sat: empty}, nil
		}
		return satisfactions{dsat: unavailable, sat: unavailable}, nil

	case f_after:
		if p.satisfier.CheckAfter(node.num) {
			return satisfactions{dsat: unavailable, sat: empty}, nil
		}
		return satisfactions{dsat: unavailable, sat: unavailable}, nil

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		sat := unavailable
		if preimage, ok := p.preimage(node); ok {
			if len(preimage) != 32 {
				return satisfactions{}, errors.Errorf("length of %s preimage of %x expected to be 32, got %d",
					node.fragment, node.hash, len(preimage))
			}
			sat = stackOf(preimage)
		}
		return satisfactions{
			// Preimage 0x0000... is assumed invalid.
			dsat: stackOf(make([]byte, 32)).setMalleable(),
			sat:  sat,
		}, nil

	case f_andor:
		x, y, z := subs[0], subs[1], subs[2]
		return satisfactions{
			dsat: p.or(z.dsat.and(x.dsat), y.dsat.and(x.sat)),
			sat:  p.or(y.sat.and(x.sat), z.sat.and(x.dsat)),
		}, nil

	case f_and_v:
		x, y := subs[0], subs[1]
		return satisfactions{
			dsat: y.dsat.and(x.sat),
			sat:  y.sat.and(x.sat),
		}, nil

	case f_and_b:
		x, y := subs[0], subs[1]
		return satisfactions{
			dsat: p.or(p.or(
				y.dsat.and(x.dsat),
				y.sat.and(x.dsat).setMalleable()),
				y.dsat.and(x.sat).setMalleable()),
			sat: y.sat.and(x.sat),
		}, nil

	case f_or_b:
		x, z := subs[0], subs[1]
		return satisfactions{
			dsat: z.dsat.and(x.dsat),
			sat: p.or(p.or(
				z.dsat.and(x.sat),
				z.sat.and(x.dsat)),
				z.sat.and(x.sat).setMalleable()),
		}, nil

	case f_or_c:
		x, z := subs[0], subs[1]
		return satisfactions{
			dsat: unavailable,
			sat:  p.or(x.sat, z.sat.and(x.dsat)),
		}, nil

	case f_or_d:
		x, z := subs[0], subs[1]
		return satisfactions{
			dsat: z.dsat.and(x.dsat),
			sat:  p.or(x.sat, z.sat.and(x.dsat)),
		}, nil

	case f_or_i:
		x, z := subs[0], subs[1]
		return satisfactions{
			dsat: p.or(x.dsat.and(one), z.dsat.and(zero)),
			sat:  p.or(x.sat.and(one), z.sat.and(zero)),
		}, nil

	case f_thresh:
		// sats[j] is the best witness for the subs seen so far with
		// exactly j of them satisfied. The last sub is deepest in the
		// stack, so walk them backwards.
		sats := []satisfaction{empty}
		for i := len(subs) - 1; i >= 0; i-- {
			sub := subs[i]
			next := make([]satisfaction, 0, len(sats)+1)
			next = append(next, sats[0].and(sub.dsat))
			for j := 1; j < len(sats); j++ {
				next = append(next, p.or(sats[j].and(sub.dsat), sats[j-1].and(sub.sat)))
			}
			next = append(next, sats[len(sats)-1].and(sub.sat))
			sats = next
		}

		k := int(node.num)
		dsat := unavailable
		for i, s := range sats {
			if i == k {
				continue
			}
			// Only the all-dissatisfied form is canonical.
			if i != 0 {
				s = s.setMalleable()
			}
			dsat = p.or(dsat, s)
		}
		return satisfactions{dsat: dsat, sat: sats[k]}, nil

	case f_multi:
		// sats[j] is the best witness with j signatures for the keys
		// seen so far, after the dummy element.
		sats := []satisfaction{zero}
		for _, key := range node.keys {
			sig := p.sig(key)
			next := make([]satisfaction, 0, len(sats)+1)
			next = append(next, sats[0])
			for j := 1; j < len(sats); j++ {
				next = append(next, p.or(sats[j], sats[j-1].and(sig)))
			}
			next = append(next, sats[len(sats)-1].and(sig))
			sats = next
		}

		dsat := zero
		for i := uint32(0); i < node.num; i++ {
			dsat = dsat.and(zero)
		}
		return satisfactions{dsat: dsat, sat: sats[node.num]}, nil

	case f_wrap_a, f_wrap_s, f_wrap_c, f_wrap_n:
		return subs[0], nil

	case f_wrap_d:
		return satisfactions{dsat: zero, sat: subs[0].sat.and(one)}, nil

	case f_wrap_v:
		return satisfactions{dsat: unavailable, sat: subs[0].sat}, nil

	case f_wrap_j:
		x := subs[0]
		dsat := zero
		if x.dsat.available && !x.dsat.hasSig {
			dsat = dsat.setMalleable()
		}
		return satisfactions{dsat: dsat, sat: x.sat}, nil

	default:
		return satisfactions{}, errors.Errorf("unrecognized identifier: %s", node.fragment)
	}
}

func (ms *Miniscript[K]) satisfy(s Satisfier[K], allowMalleable bool) (wire.TxWitness, error) {
	var keyErr error
	ms.ForEachKey(func(k K) bool {
		_, keyErr = ToPublicKey(k)
		return keyErr == nil
	})
	if keyErr != nil {
		return nil, keyErr
	}

	p := &producer[K]{satisfier: s, allowMalleable: allowMalleable}
	res, err := p.produce(ms)
	if err != nil {
		return nil, err
	}

	switch {
	case !res.sat.available && len(p.missing) > 0:
		return nil, &MissingSigError{Key: p.missing[0]}
	case !res.sat.available:
		return nil, ErrCouldNotSatisfy
	case res.sat.malleable && !allowMalleable:
		return nil, errors.Wrap(ErrCouldNotSatisfy, "only malleable satisfactions are available")
	}

	if err := Segwitv0.CheckWitness(res.sat.witness); err != nil {
		return nil, err
	}
	return res.sat.witness, nil
}

// Satisfy returns the smallest non-malleable witness, excluding the
// witness script, for the data s has available.
func (ms *Miniscript[K]) Satisfy(s Satisfier[K]) (wire.TxWitness, error) {
	return ms.satisfy(s, false)
}

// SatisfyMalleable returns the smallest witness, excluding the witness
// script, without regard to whether a third party could malleate it.
func (ms *Miniscript[K]) SatisfyMalleable(s Satisfier[K]) (wire.TxWitness, error) {
	return ms.satisfy(s, true)
}
