package policy

import (
	"strconv"
	"strings"
)

// Type identifies the kind of a semantic policy node.
type Type string

const (
	// Unsatisfiable policy (always fails)
	TypeUnsatisfiable Type = "unsatisfiable"

	// Trivially satisfiable policy (always succeeds)
	TypeTrivial Type = "trivial"

	// Requires a signature matching a public key hash
	TypeKeyHash Type = "keyhash"

	// Absolute locktime constraint
	TypeAfter Type = "after"

	// Relative locktime constraint
	TypeOlder Type = "older"

	TypeSha256    Type = "sha256"
	TypeHash256   Type = "hash256"
	TypeRipemd160 Type = "ripemd160"
	TypeHash160   Type = "hash160"

	// Threshold combination of multiple policies
	TypeThreshold Type = "thresh"
)

// Policy is an abstract policy which corresponds to the semantics of a
// script. Only the fields relevant to Type are set.
type Policy struct {
	Type Type

	// KeyHash is the key hash string, for TypeKeyHash.
	KeyHash string

	// LockTime is the consensus value of an after/older constraint.
	LockTime uint32

	// Hash is the hex encoded hash of a hash-lock.
	Hash string

	// K and Subs describe a threshold.
	K    int
	Subs []*Policy
}

func Unsatisfiable() *Policy {
	return &Policy{Type: TypeUnsatisfiable}
}

func Trivial() *Policy {
	return &Policy{Type: TypeTrivial}
}

// KeyHash returns the policy requiring a signature for the key whose hash
// is h.
func KeyHash(h string) *Policy {
	return &Policy{Type: TypeKeyHash, KeyHash: h}
}

func After(n uint32) *Policy {
	return &Policy{Type: TypeAfter, LockTime: n}
}

func Older(n uint32) *Policy {
	return &Policy{Type: TypeOlder, LockTime: n}
}

func Sha256(h string) *Policy {
	return &Policy{Type: TypeSha256, Hash: h}
}

func Hash256(h string) *Policy {
	return &Policy{Type: TypeHash256, Hash: h}
}

func Ripemd160(h string) *Policy {
	return &Policy{Type: TypeRipemd160, Hash: h}
}

func Hash160(h string) *Policy {
	return &Policy{Type: TypeHash160, Hash: h}
}

// Threshold returns the policy satisfied by any k of subs.
func Threshold(k int, subs ...*Policy) *Policy {
	return &Policy{Type: TypeThreshold, K: k, Subs: subs}
}

// And returns the policy requiring all of subs.
func And(subs ...*Policy) *Policy {
	return Threshold(len(subs), subs...)
}

// Or returns the policy requiring any one of subs.
func Or(subs ...*Policy) *Policy {
	return Threshold(1, subs...)
}

// String renders the policy. Thresholds of all their subs print as
// and(), thresholds of one as or().
func (p *Policy) String() string {
	switch p.Type {
	case TypeUnsatisfiable:
		return "UNSATISFIABLE"
	case TypeTrivial:
		return "TRIVIAL"
	case TypeKeyHash:
		return "pkh(" + p.KeyHash + ")"
	case TypeAfter, TypeOlder:
		return string(p.Type) + "(" + strconv.FormatUint(uint64(p.LockTime), 10) + ")"
	case TypeSha256, TypeHash256, TypeRipemd160, TypeHash160:
		return string(p.Type) + "(" + p.Hash + ")"
	case TypeThreshold:
		subs := make([]string, len(p.Subs))
		for i, sub := range p.Subs {
			subs[i] = sub.String()
		}

		switch p.K {
		case len(p.Subs):
			return "and(" + strings.Join(subs, ",") + ")"
		case 1:
			return "or(" + strings.Join(subs, ",") + ")"
		default:
			return "thresh(" + strconv.Itoa(p.K) + "," + strings.Join(subs, ",") + ")"
		}
	default:
		return "<unknown>"
	}
}

// Keys returns the key hashes the policy refers to, in order of
// appearance.
func (p *Policy) Keys() []string {
	var keys []string
	p.walk(func(node *Policy) {
		if node.Type == TypeKeyHash {
			keys = append(keys, node.KeyHash)
		}
	})
	return keys
}

func (p *Policy) walk(f func(*Policy)) {
	f(p)
	for _, sub := range p.Subs {
		sub.walk(f)
	}
}

// Equal reports whether two policies are structurally identical.
func (p *Policy) Equal(other *Policy) bool {
	if p.Type != other.Type || p.KeyHash != other.KeyHash ||
		p.LockTime != other.LockTime || p.Hash != other.Hash ||
		p.K != other.K || len(p.Subs) != len(other.Subs) {
		return false
	}
	for i := range p.Subs {
		if !p.Subs[i].Equal(other.Subs[i]) {
			return false
		}
	}
	return true
}

// Satisfiable reports whether some assignment of keys, hashes and
// timelocks satisfies the policy.
func (p *Policy) Satisfiable() bool {
	switch p.Type {
	case TypeUnsatisfiable:
		return false
	case TypeThreshold:
		satisfiable := 0
		for _, sub := range p.Subs {
			if sub.Satisfiable() {
				satisfiable++
			}
		}
		return satisfiable >= p.K
	default:
		return true
	}
}
