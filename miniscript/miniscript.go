package miniscript

import (
	"encoding/hex"
	"github.com/btccom/btcdescriptor/expression"
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

const (
	// All fragment identifiers.

	f_0         = "0"         // 0
	f_1         = "1"         // 1
	f_pk_k      = "pk_k"      // pk_k(key)
	f_pk_h      = "pk_h"      // pk_h(key)
	f_pk        = "pk"        // pk(key) = c:pk_k(key)
	f_pkh       = "pkh"       // pkh(key) = c:pk_h(key)
	f_sha256    = "sha256"    // sha256(h)
	f_ripemd160 = "ripemd160" // ripemd160(h)
	f_hash256   = "hash256"   // hash256(h)
	f_hash160   = "hash160"   // hash160(h)
	f_older     = "older"     // older(n)
	f_after     = "after"     // after(n)
	f_andor     = "andor"     // andor(X,Y,Z)
	f_and_v     = "and_v"     // and_v(X,Y)
	f_and_b     = "and_b"     // and_b(X,Y)
	f_and_n     = "and_n"     // and_n(X,Y) = andor(X,Y,0)
	f_or_b      = "or_b"      // or_b(X,Z)
	f_or_c      = "or_c"      // or_c(X,Z)
	f_or_d      = "or_d"      // or_d(X,Z)
	f_or_i      = "or_i"      // or_i(X,Z)
	f_thresh    = "thresh"    // thresh(k,X1,...,Xn)
	f_multi     = "multi"     // multi(k,key1,...,keyn)
	f_wrap_a    = "a"         // a:X
	f_wrap_s    = "s"         // s:X
	f_wrap_c    = "c"         // c:X
	f_wrap_d    = "d"         // d:X
	f_wrap_v    = "v"         // v:X
	f_wrap_j    = "j"         // j:X
	f_wrap_n    = "n"         // n:X
	f_wrap_t    = "t"         // t:X = and_v(X,1)
	f_wrap_l    = "l"         // l:X = or_i(0,X)
	f_wrap_u    = "u"         // u:X = or_i(X,0)

	allWrappers = "asctdvjnlu"
)

// Miniscript is a typed miniscript fragment, generic over the key type.
// Values are immutable once built: every constructor type checks the
// node and computes its script size, op count and satisfaction sizes.
type Miniscript[K Key] struct {
	fragment string

	// num is the argument of older/after or the threshold of
	// thresh/multi.
	num uint32

	// keys holds the key of pk_k/pk_h or the keys of multi.
	keys []K

	// hash is the 32 byte (sha256, hash256) or 20 byte (ripemd160,
	// hash160) hash of a hash-lock.
	hash []byte

	args []*Miniscript[K]

	basicType basicType
	props     properties
	scriptLen int
	opCount   ops
	satSize   stackSize
	dsatSize  stackSize
}

// Parse a miniscript expression for use in a P2WSH witness script.
// Keys are read with parseKey. Only the type system is checked here;
// context limits are applied by Segwitv0.TopLevelChecks.
func Parse[K Key](s string, parseKey KeyParser[K]) (*Miniscript[K], error) {
	tree, err := expression.Parse(s)
	if err != nil {
		return nil, err
	}
	return FromTree(tree, parseKey)
}

// FromTree builds a miniscript from an expression tree. Names may carry
// wrapper prefixes, e.g. `dv:older(144)` is d(v(older(144))). Syntactic
// sugar (pk, pkh, and_n, t:, l:, u:) is replaced by its definition.
func FromTree[K Key](tree *expression.Tree, parseKey KeyParser[K]) (*Miniscript[K], error) {
	var (
		parts                = strings.Split(tree.Name, ":")
		wrappers, identifier string
	)
	switch len(parts) {
	case 1:
		identifier = parts[0]
	case 2:
		wrappers, identifier = parts[0], parts[1]
		if wrappers == "" {
			return nil, errors.Errorf("no wrappers found before colon before identifier: %s", identifier)
		} else if identifier == "" {
			return nil, errors.Errorf("no identifier found after colon after wrappers: %s", wrappers)
		}
	default:
		return nil, errors.Errorf("invalid number of colons in token: %s", tree.Name)
	}

	node, err := fromFragment(identifier, tree.Args, parseKey)
	if err != nil {
		return nil, err
	}

	for i := len(wrappers) - 1; i >= 0; i-- {
		node, err = Wrap(wrappers[i], node)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func fromFragment[K Key](identifier string, args []*expression.Tree, parseKey KeyParser[K]) (*Miniscript[K], error) {
	expectArgs := func(num int) error {
		if len(args) != num {
			return errors.Errorf("%s expects %d arguments, got %d", identifier, num, len(args))
		}
		return nil
	}
	subs := func(trees []*expression.Tree) ([]*Miniscript[K], error) {
		nodes := make([]*Miniscript[K], len(trees))
		for i, tree := range trees {
			node, err := FromTree(tree, parseKey)
			if err != nil {
				return nil, err
			}
			nodes[i] = node
		}
		return nodes, nil
	}

	switch identifier {
	case f_0, f_1:
		if err := expectArgs(0); err != nil {
			return nil, err
		}
		return finalize(&Miniscript[K]{fragment: identifier})

	case f_pk_k, f_pk_h, f_pk, f_pkh:
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		key, err := expression.Terminal[K](args[0], parseKey)
		if err != nil {
			return nil, err
		}
		switch identifier {
		case f_pk_k:
			return PkK(key)
		case f_pk_h:
			return PkH(key)
		case f_pk:
			return Pk(key)
		default:
			return Pkh(key)
		}

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		hash, err := expression.Terminal(args[0], hex.DecodeString)
		if err != nil {
			return nil, err
		}
		return NewHashLock[K](identifier, hash)

	case f_older, f_after:
		if err := expectArgs(1); err != nil {
			return nil, err
		}
		n, err := expression.Terminal(args[0], expression.ParseNum)
		if err != nil {
			return nil, errors.Wrapf(err, "%s(n) => n must be an unsigned integer", identifier)
		}
		if identifier == f_older {
			return Older[K](n)
		}
		return After[K](n)

	case f_andor:
		if err := expectArgs(3); err != nil {
			return nil, err
		}
		nodes, err := subs(args)
		if err != nil {
			return nil, err
		}
		return NewNode(f_andor, nodes...)

	case f_and_n:
		if err := expectArgs(2); err != nil {
			return nil, err
		}
		nodes, err := subs(args)
		if err != nil {
			return nil, err
		}
		falseNode, err := finalize(&Miniscript[K]{fragment: f_0})
		if err != nil {
			return nil, err
		}
		return NewNode(f_andor, nodes[0], nodes[1], falseNode)

	case f_and_v, f_and_b, f_or_b, f_or_c, f_or_d, f_or_i:
		if err := expectArgs(2); err != nil {
			return nil, err
		}
		nodes, err := subs(args)
		if err != nil {
			return nil, err
		}
		return NewNode(identifier, nodes...)

	case f_thresh:
		if len(args) < 2 {
			return nil, errors.Errorf("%s must have at least two arguments", identifier)
		}
		k, err := expression.Terminal(args[0], expression.ParseNum)
		if err != nil {
			return nil, errors.Wrapf(err, "%s(k, ...) => k must be an integer", identifier)
		}
		nodes, err := subs(args[1:])
		if err != nil {
			return nil, err
		}
		return Thresh(int(k), nodes...)

	case f_multi:
		if len(args) < 2 {
			return nil, errors.Errorf("%s must have at least two arguments", identifier)
		}
		k, err := expression.Terminal(args[0], expression.ParseNum)
		if err != nil {
			return nil, errors.Wrapf(err, "%s(k, ...) => k must be an integer", identifier)
		}
		keys := make([]K, len(args)-1)
		for i, arg := range args[1:] {
			keys[i], err = expression.Terminal[K](arg, parseKey)
			if err != nil {
				return nil, err
			}
		}
		return NewMulti(int(k), keys)

	default:
		return nil, errors.Errorf("unrecognized identifier: %s", identifier)
	}
}

// finalize runs the analysis passes on a node whose children are
// already finalized.
func finalize[K Key](node *Miniscript[K]) (*Miniscript[K], error) {
	transformers := []func(*Miniscript[K]) error{
		typeCheck[K],
		canCollapseVerify[K],
		malleabilityCheck[K],
		computeScriptLen[K],
		computeOpCount[K],
		computeStackSize[K],
	}
	for _, transform := range transformers {
		if err := transform(node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// PkK is the pk_k(key) fragment: a bare key push.
func PkK[K Key](key K) (*Miniscript[K], error) {
	return finalize(&Miniscript[K]{fragment: f_pk_k, keys: []K{key}})
}

// PkH is the pk_h(key) fragment: DUP HASH160 <h> EQUALVERIFY.
func PkH[K Key](key K) (*Miniscript[K], error) {
	return finalize(&Miniscript[K]{fragment: f_pk_h, keys: []K{key}})
}

// Pk is c:pk_k(key).
func Pk[K Key](key K) (*Miniscript[K], error) {
	node, err := PkK(key)
	if err != nil {
		return nil, err
	}
	return Wrap('c', node)
}

// Pkh is c:pk_h(key).
func Pkh[K Key](key K) (*Miniscript[K], error) {
	node, err := PkH(key)
	if err != nil {
		return nil, err
	}
	return Wrap('c', node)
}

// Older is the relative timelock fragment.
func Older[K Key](n uint32) (*Miniscript[K], error) {
	if n < 1 || n >= (1<<31) {
		return nil, errors.Errorf("older(n) -> n must 1 ≤ n < 2^31, but got: %d", n)
	}
	return finalize(&Miniscript[K]{fragment: f_older, num: n})
}

// After is the absolute timelock fragment.
func After[K Key](n uint32) (*Miniscript[K], error) {
	if n < 1 || n >= (1<<31) {
		return nil, errors.Errorf("after(n) -> n must 1 ≤ n < 2^31, but got: %d", n)
	}
	return finalize(&Miniscript[K]{fragment: f_after, num: n})
}

// NewHashLock builds one of sha256, hash256, ripemd160 or hash160.
func NewHashLock[K Key](fragment string, hash []byte) (*Miniscript[K], error) {
	var hashLen int
	switch fragment {
	case f_sha256, f_hash256:
		hashLen = 32
	case f_ripemd160, f_hash160:
		hashLen = 20
	default:
		return nil, errors.Errorf("%s is not a hash fragment", fragment)
	}
	if len(hash) != hashLen {
		return nil, errors.Errorf("%s len must be %d, got %d", fragment, hashLen, len(hash))
	}
	return finalize(&Miniscript[K]{fragment: fragment, hash: hash})
}

// NewNode combines sub-fragments with one of andor, and_v, and_b,
// or_b, or_c, or_d or or_i.
func NewNode[K Key](fragment string, args ...*Miniscript[K]) (*Miniscript[K], error) {
	expected := 2
	switch fragment {
	case f_andor:
		expected = 3
	case f_and_v, f_and_b, f_or_b, f_or_c, f_or_d, f_or_i:
	default:
		return nil, errors.Errorf("%s is not a combinator", fragment)
	}
	if len(args) != expected {
		return nil, errors.Errorf("%s expects %d arguments, got %d", fragment, expected, len(args))
	}
	return finalize(&Miniscript[K]{fragment: fragment, args: args})
}

// Thresh is thresh(k,X1,...,Xn).
func Thresh[K Key](k int, subs ...*Miniscript[K]) (*Miniscript[K], error) {
	if k < 1 || k > len(subs) {
		return nil, errors.Errorf("thresh(k) -> k must 1 ≤ k ≤ n, but got: %d", k)
	}
	return finalize(&Miniscript[K]{fragment: f_thresh, num: uint32(k), args: subs})
}

// NewMulti is multi(k,key1,...,keyn) with 1 ≤ k ≤ n ≤ 20.
func NewMulti[K Key](k int, keys []K) (*Miniscript[K], error) {
	if len(keys) > multisigMaxKeys {
		return nil, errors.Errorf("number of multisig keys cannot exceed %d", multisigMaxKeys)
	}
	if k < 1 || k > len(keys) {
		return nil, errors.Errorf("multi(k) -> k must 1 ≤ k ≤ n, but got: %d", k)
	}
	return finalize(&Miniscript[K]{fragment: f_multi, num: uint32(k), keys: append([]K(nil), keys...)})
}

// Wrap applies the wrapper w to node. t, l and u are expanded to
// and_v(X,1), or_i(0,X) and or_i(X,0).
func Wrap[K Key](w byte, node *Miniscript[K]) (*Miniscript[K], error) {
	if !strings.ContainsRune(allWrappers, rune(w)) {
		return nil, errors.Errorf("unknown wrapper: %s", string(w))
	}

	switch string(w) {
	case f_wrap_t:
		trueNode, err := finalize(&Miniscript[K]{fragment: f_1})
		if err != nil {
			return nil, err
		}
		return NewNode(f_and_v, node, trueNode)
	case f_wrap_l, f_wrap_u:
		falseNode, err := finalize(&Miniscript[K]{fragment: f_0})
		if err != nil {
			return nil, err
		}
		if string(w) == f_wrap_l {
			return NewNode(f_or_i, falseNode, node)
		}
		return NewNode(f_or_i, node, falseNode)
	default:
		return finalize(&Miniscript[K]{fragment: string(w), args: []*Miniscript[K]{node}})
	}
}

// ScriptSize is the length of the encoded script. It only depends on
// the shape of the script, so it is available for abstract keys.
func (ms *Miniscript[K]) ScriptSize() int {
	return ms.scriptLen
}

// MaxOpCount is the number of non-push opcodes executed by the most
// expensive satisfaction.
func (ms *Miniscript[K]) MaxOpCount() int {
	return ms.opCount.count + ms.opCount.sat.value
}

// MaxSatisfactionWitnessElements is the maximum number of witness
// elements used to satisfy the script, counting the witness script
// itself.
func (ms *Miniscript[K]) MaxSatisfactionWitnessElements() (int, error) {
	if !ms.satSize.valid {
		return 0, &ContextError{Kind: ImpossibleSatisfaction}
	}
	return ms.satSize.elems + 1, nil
}

// MaxSatisfactionSize is the maximum size of the satisfaction witness
// elements, each counted with its length prefix, excluding the witness
// script.
func (ms *Miniscript[K]) MaxSatisfactionSize() (int, error) {
	if !ms.satSize.valid {
		return 0, &ContextError{Kind: ImpossibleSatisfaction}
	}
	return ms.satSize.bytes, nil
}

// Type returns the basic type (B, V, K or W) followed by all type
// properties.
func (ms *Miniscript[K]) Type() string {
	return string(ms.basicType) + ms.props.String()
}

// RequiresSig reports whether every satisfaction involves a signature.
func (ms *Miniscript[K]) RequiresSig() bool {
	return ms.props.s
}

// IsNonMalleable reports whether a non-malleable satisfaction is
// guaranteed to exist.
func (ms *Miniscript[K]) IsNonMalleable() bool {
	return ms.props.m
}

func (ms *Miniscript[K]) topLevel() bool {
	return ms.basicType == typeB
}

func (ms *Miniscript[K]) contextKeys() []Key {
	var keys []Key
	ms.ForEachKey(func(k K) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// String prints the script in its canonical form, restoring the pk,
// pkh, and_n, t:, l: and u: sugar.
func (ms *Miniscript[K]) String() string {
	var b strings.Builder
	ms.writeTo(&b)
	return b.String()
}

// wrapChar returns the wrapper character if the node prints as a
// wrapper of sub.
func (ms *Miniscript[K]) wrapChar() (byte, *Miniscript[K], bool) {
	switch ms.fragment {
	case f_wrap_a, f_wrap_s, f_wrap_c, f_wrap_d, f_wrap_v, f_wrap_j, f_wrap_n:
		return ms.fragment[0], ms.args[0], true
	case f_and_v:
		if ms.args[1].fragment == f_1 {
			return 't', ms.args[0], true
		}
	case f_or_i:
		if ms.args[1].fragment == f_0 {
			return 'u', ms.args[0], true
		}
		if ms.args[0].fragment == f_0 {
			return 'l', ms.args[1], true
		}
	}
	return 0, nil, false
}

func (ms *Miniscript[K]) writeTo(b *strings.Builder) {
	if ch, sub, ok := ms.wrapChar(); ok {
		if ch == 'c' {
			switch sub.fragment {
			case f_pk_k:
				b.WriteString("pk(" + sub.keys[0].String() + ")")
				return
			case f_pk_h:
				b.WriteString("pkh(" + sub.keys[0].String() + ")")
				return
			}
		}

		b.WriteByte(ch)
		subCh, subSub, subWrapped := sub.wrapChar()
		if !subWrapped || (subCh == 'c' && (subSub.fragment == f_pk_k || subSub.fragment == f_pk_h)) {
			b.WriteByte(':')
		}
		sub.writeTo(b)
		return
	}

	switch ms.fragment {
	case f_0, f_1:
		b.WriteString(ms.fragment)
		return
	case f_pk_k, f_pk_h:
		b.WriteString(ms.fragment + "(" + ms.keys[0].String() + ")")
		return
	case f_older, f_after:
		b.WriteString(ms.fragment + "(" + strconv.FormatUint(uint64(ms.num), 10) + ")")
		return
	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		b.WriteString(ms.fragment + "(" + hex.EncodeToString(ms.hash) + ")")
		return
	case f_multi:
		b.WriteString(f_multi + "(" + strconv.FormatUint(uint64(ms.num), 10))
		for _, k := range ms.keys {
			b.WriteString("," + k.String())
		}
		b.WriteByte(')')
		return
	}

	args := ms.args
	switch {
	case ms.fragment == f_andor && ms.args[2].fragment == f_0:
		b.WriteString(f_and_n + "(")
		args = ms.args[:2]
	case ms.fragment == f_thresh:
		b.WriteString(f_thresh + "(" + strconv.FormatUint(uint64(ms.num), 10) + ",")
	default:
		b.WriteString(ms.fragment + "(")
	}
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		arg.writeTo(b)
	}
	b.WriteByte(')')
}
