package miniscript

import (
	"encoding/hex"
	"github.com/btccom/btcdescriptor/policy"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ForEachKey calls pred on every key in script order and reports whether
// it held for all of them. It stops at the first key pred rejects.
func (ms *Miniscript[K]) ForEachKey(pred func(K) bool) bool {
	for _, k := range ms.keys {
		if !pred(k) {
			return false
		}
	}
	for _, arg := range ms.args {
		if !arg.ForEachKey(pred) {
			return false
		}
	}
	return true
}

// Translator maps keys of type P to keys of type Q. PK is used for keys
// in pk_k and multi positions, PKH for keys in pk_h positions.
type Translator[P Key, Q Key] interface {
	PK(P) (Q, error)
	PKH(P) (Q, error)
}

// TranslateFunc is a Translator which maps every key with the same
// function.
type TranslateFunc[P Key, Q Key] func(P) (Q, error)

func (f TranslateFunc[P, Q]) PK(p P) (Q, error)  { return f(p) }
func (f TranslateFunc[P, Q]) PKH(p P) (Q, error) { return f(p) }

// Translate rebuilds ms with its keys mapped by t, stopping at the first
// error. The result is type checked and sized again for the new keys.
func Translate[P Key, Q Key](ms *Miniscript[P], t Translator[P, Q]) (*Miniscript[Q], error) {
	node := &Miniscript[Q]{
		fragment: ms.fragment,
		num:      ms.num,
		hash:     ms.hash,
	}

	mapKey := t.PK
	if ms.fragment == f_pk_h {
		mapKey = t.PKH
	}
	for _, k := range ms.keys {
		q, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		node.keys = append(node.keys, q)
	}

	for _, arg := range ms.args {
		q, err := Translate(arg, t)
		if err != nil {
			return nil, err
		}
		node.args = append(node.args, q)
	}

	return finalize(node)
}

// Lift returns the semantic policy of the script. The policy is not
// normalized.
func (ms *Miniscript[K]) Lift() *policy.Policy {
	lift := func(i int) *policy.Policy {
		return ms.args[i].Lift()
	}

	switch ms.fragment {
	case f_0:
		return policy.Unsatisfiable()
	case f_1:
		return policy.Trivial()
	case f_pk_k, f_pk_h:
		return policy.KeyHash(ms.keys[0].PubKeyHash())
	case f_older:
		return policy.Older(ms.num)
	case f_after:
		return policy.After(ms.num)
	case f_sha256:
		return policy.Sha256(hex.EncodeToString(ms.hash))
	case f_hash256:
		return policy.Hash256(hex.EncodeToString(ms.hash))
	case f_ripemd160:
		return policy.Ripemd160(hex.EncodeToString(ms.hash))
	case f_hash160:
		return policy.Hash160(hex.EncodeToString(ms.hash))
	case f_andor:
		return policy.Or(policy.And(lift(0), lift(1)), lift(2))
	case f_and_v, f_and_b:
		return policy.And(lift(0), lift(1))
	case f_or_b, f_or_c, f_or_d, f_or_i:
		return policy.Or(lift(0), lift(1))
	case f_thresh:
		subs := make([]*policy.Policy, len(ms.args))
		for i := range ms.args {
			subs[i] = lift(i)
		}
		return policy.Threshold(int(ms.num), subs...)
	case f_multi:
		subs := make([]*policy.Policy, len(ms.keys))
		for i, k := range ms.keys {
			subs[i] = policy.KeyHash(k.PubKeyHash())
		}
		return policy.Threshold(int(ms.num), subs...)
	default:
		// wrappers
		return lift(0)
	}
}

type timelocks struct {
	csvHeight, csvTime   bool
	cltvHeight, cltvTime bool

	// mixed is set when a single spending path needs both a height and
	// a time lock of the same kind, which no transaction can satisfy.
	mixed bool
}

func (a timelocks) or(b timelocks) timelocks {
	return timelocks{
		csvHeight:  a.csvHeight || b.csvHeight,
		csvTime:    a.csvTime || b.csvTime,
		cltvHeight: a.cltvHeight || b.cltvHeight,
		cltvTime:   a.cltvTime || b.cltvTime,
		mixed:      a.mixed || b.mixed,
	}
}

func (a timelocks) and(b timelocks) timelocks {
	res := a.or(b)
	res.mixed = res.mixed ||
		(a.csvHeight && b.csvTime) || (a.csvTime && b.csvHeight) ||
		(a.cltvHeight && b.cltvTime) || (a.cltvTime && b.cltvHeight)
	return res
}

func (ms *Miniscript[K]) timelocks() timelocks {
	switch ms.fragment {
	case f_older:
		if ms.num&wire.SequenceLockTimeIsSeconds != 0 {
			return timelocks{csvTime: true}
		}
		return timelocks{csvHeight: true}
	case f_after:
		if ms.num >= txscript.LockTimeThreshold {
			return timelocks{cltvTime: true}
		}
		return timelocks{cltvHeight: true}
	case f_andor:
		x, y, z := ms.args[0].timelocks(), ms.args[1].timelocks(), ms.args[2].timelocks()
		return x.and(y).or(z)
	case f_and_v, f_and_b:
		return ms.args[0].timelocks().and(ms.args[1].timelocks())
	case f_thresh:
		var res timelocks
		for _, arg := range ms.args {
			if ms.num > 1 {
				res = res.and(arg.timelocks())
			} else {
				res = res.or(arg.timelocks())
			}
		}
		return res
	}

	var res timelocks
	for _, arg := range ms.args {
		res = res.or(arg.timelocks())
	}
	return res
}

// SanityCheck checks the properties a script should have before funds
// are sent to it: compressed keys, a signature on every spending path,
// non-malleable satisfactions, spending paths within the resource
// limits, no repeated keys and no spending path mixing height and time
// locks.
func (ms *Miniscript[K]) SanityCheck() error {
	var keyErr error
	ms.ForEachKey(func(k K) bool {
		keyErr = Segwitv0.CheckKey(k)
		return keyErr == nil
	})
	if keyErr != nil {
		return keyErr
	}

	switch {
	case !ms.RequiresSig():
		return &AnalysisError{Kind: SiglessBranch}
	case !ms.IsNonMalleable():
		return &AnalysisError{Kind: Malleable}
	case Segwitv0.CheckLocalValidity(ms) != nil || Segwitv0.CheckGlobalValidity(ms) != nil:
		return &AnalysisError{Kind: BranchExceedResourceLimits}
	case ms.hasRepeatedKeys():
		return &AnalysisError{Kind: RepeatedPubkeys}
	case ms.timelocks().mixed:
		return &AnalysisError{Kind: HeightTimelockCombination}
	}
	return nil
}

func (ms *Miniscript[K]) hasRepeatedKeys() bool {
	seen := map[string]struct{}{}
	return !ms.ForEachKey(func(k K) bool {
		if _, ok := seen[k.String()]; ok {
			return false
		}
		seen[k.String()] = struct{}{}
		return true
	})
}
