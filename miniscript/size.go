package miniscript

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
	"sort"
)

const (
	// Maximum sizes of witness elements, including their length prefix.
	sigSize      = 73 // DER signature, sighash byte and length
	keySize      = 34 // compressed public key and length
	preimageSize = 33 // 32 byte preimage and length
	emptySize    = 1  // empty push
	oneSize      = 2  // 0x01 push
)

func numPushLen(n int64) int {
	numPush, _ := txscript.NewScriptBuilder().AddInt64(n).Script()
	return len(numPush)
}

// Compute the length of the resulting witness script.
func computeScriptLen[K Key](node *Miniscript[K]) error {
	argsSummed := 0
	for _, arg := range node.args {
		argsSummed += arg.scriptLen
	}

	switch node.fragment {
	case f_0, f_1:
		node.scriptLen = 1

	case f_pk_k:
		node.scriptLen = Segwitv0.KeyLen(node.keys[0])

	case f_pk_h:
		node.scriptLen = 24

	case f_older, f_after:
		node.scriptLen = 1 + numPushLen(int64(node.num))

	case f_sha256, f_hash256:
		node.scriptLen = 39

	case f_ripemd160, f_hash160:
		node.scriptLen = 27

	case f_andor, f_or_i, f_or_d, f_wrap_d:
		node.scriptLen = argsSummed + 3

	case f_and_v:
		node.scriptLen = argsSummed

	case f_and_b, f_or_b, f_wrap_s, f_wrap_c, f_wrap_n:
		node.scriptLen = argsSummed + 1

	case f_or_c, f_wrap_a:
		node.scriptLen = argsSummed + 2

	case f_thresh:
		// one OP_ADD per sub after the first, then <k> OP_EQUAL
		node.scriptLen = argsSummed + len(node.args) - 1 + numPushLen(int64(node.num)) + 1

	case f_multi:
		keysLen := 0
		for _, k := range node.keys {
			keysLen += Segwitv0.KeyLen(k)
		}
		node.scriptLen = numPushLen(int64(node.num)) + keysLen + numPushLen(int64(len(node.keys))) + 1

	case f_wrap_v:
		if node.args[0].props.canCollapseVerify {
			node.scriptLen = argsSummed
		} else {
			node.scriptLen = argsSummed + 1
		}

	case f_wrap_j:
		node.scriptLen = argsSummed + 4

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}
	return nil
}

type maxInt struct {
	valid bool
	value int
}

func (m maxInt) and(b maxInt) maxInt {
	if !m.valid || !b.valid {
		return maxInt{}
	}
	return maxInt{valid: true, value: m.value + b.value}
}

func (m maxInt) or(b maxInt) maxInt {
	if !m.valid {
		return b
	}
	if !b.valid || m.value >= b.value {
		return m
	}
	return b
}

type ops struct {
	// count is the number of non-push opcodes.
	count int

	// dsat is the number of keys in possibly executed
	// OP_CHECKMULTISIG(VERIFY)s to dissatisfy.
	dsat maxInt

	// sat is the number of keys in possibly executed
	// OP_CHECKMULTISIG(VERIFY)s to satisfy.
	sat maxInt
}

func computeOpCount[K Key](node *Miniscript[K]) error {
	zero := maxInt{valid: true}
	invalid := maxInt{}

	switch node.fragment {
	case f_0:
		node.opCount = ops{0, zero, invalid}

	case f_1:
		node.opCount = ops{0, invalid, zero}

	case f_pk_k:
		node.opCount = ops{0, zero, zero}

	case f_pk_h:
		node.opCount = ops{3, zero, zero}

	case f_older, f_after:
		node.opCount = ops{1, invalid, zero}

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		node.opCount = ops{4, zero, zero}

	case f_andor:
		x, y, z := node.args[0].opCount, node.args[1].opCount, node.args[2].opCount
		node.opCount = ops{
			3 + x.count + y.count + z.count,
			z.dsat.and(x.dsat),
			y.sat.and(x.sat).or(z.sat.and(x.dsat)),
		}

	case f_and_v:
		x, y := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{x.count + y.count, invalid, y.sat.and(x.sat)}

	case f_and_b:
		x, y := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{1 + x.count + y.count, y.dsat.and(x.dsat), y.sat.and(x.sat)}

	case f_or_b:
		x, z := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{
			1 + x.count + z.count,
			z.dsat.and(x.dsat),
			z.dsat.and(x.sat).or(z.sat.and(x.dsat)),
		}

	case f_or_c:
		x, z := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{2 + x.count + z.count, invalid, x.sat.or(z.sat.and(x.dsat))}

	case f_or_d:
		x, z := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{
			3 + x.count + z.count,
			z.dsat.and(x.dsat),
			x.sat.or(z.sat.and(x.dsat)),
		}

	case f_or_i:
		x, z := node.args[0].opCount, node.args[1].opCount
		node.opCount = ops{3 + x.count + z.count, x.dsat.or(z.dsat), x.sat.or(z.sat)}

	case f_thresh:
		k := int(node.num)
		count := 0
		dsat := zero

		// best[j] is the worst case with j of the subs seen so far
		// satisfied.
		best := []maxInt{zero}
		for _, arg := range node.args {
			count += arg.opCount.count + 1
			dsat = dsat.and(arg.opCount.dsat)

			next := make([]maxInt, len(best)+1)
			for j := range next {
				candidate := invalid
				if j < len(best) {
					candidate = best[j].and(arg.opCount.dsat)
				}
				if j > 0 {
					candidate = candidate.or(best[j-1].and(arg.opCount.sat))
				}
				next[j] = candidate
			}
			best = next
		}
		node.opCount = ops{count, dsat, best[k]}

	case f_multi:
		n := maxInt{valid: true, value: len(node.keys)}
		node.opCount = ops{1, n, n}

	case f_wrap_a:
		x := node.args[0].opCount
		node.opCount = ops{2 + x.count, x.dsat, x.sat}

	case f_wrap_s, f_wrap_c, f_wrap_n:
		x := node.args[0].opCount
		node.opCount = ops{1 + x.count, x.dsat, x.sat}

	case f_wrap_d:
		x := node.args[0].opCount
		node.opCount = ops{3 + x.count, zero, x.sat}

	case f_wrap_v:
		x := node.args[0].opCount
		opVerify := 0
		if !node.args[0].props.canCollapseVerify {
			opVerify = 1
		}
		node.opCount = ops{opVerify + x.count, invalid, x.sat}

	case f_wrap_j:
		x := node.args[0].opCount
		node.opCount = ops{4 + x.count, zero, x.sat}

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}
	return nil
}

// stackSize bounds a witness stack: the number of elements and their
// total size including length prefixes.
type stackSize struct {
	valid bool
	elems int
	bytes int
}

func stack(elems, bytes int) stackSize {
	return stackSize{valid: true, elems: elems, bytes: bytes}
}

func (s stackSize) and(b stackSize) stackSize {
	if !s.valid || !b.valid {
		return stackSize{}
	}
	return stack(s.elems+b.elems, s.bytes+b.bytes)
}

// or bounds either of two stacks.
func (s stackSize) or(b stackSize) stackSize {
	if !s.valid {
		return b
	}
	if !b.valid {
		return s
	}
	return stack(max(s.elems, b.elems), max(s.bytes, b.bytes))
}

// computeStackSize bounds every satisfaction and dissatisfaction the
// satisfier can produce, malleable ones included.
func computeStackSize[K Key](node *Miniscript[K]) error {
	invalid := stackSize{}
	zero := stack(1, emptySize)
	one := stack(1, oneSize)

	switch node.fragment {
	case f_0:
		node.satSize, node.dsatSize = invalid, stack(0, 0)

	case f_1:
		node.satSize, node.dsatSize = stack(0, 0), invalid

	case f_pk_k:
		node.satSize, node.dsatSize = stack(1, sigSize), zero

	case f_pk_h:
		node.satSize, node.dsatSize = stack(2, sigSize+keySize), stack(2, emptySize+keySize)

	case f_older, f_after:
		node.satSize, node.dsatSize = stack(0, 0), invalid

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		node.satSize, node.dsatSize = stack(1, preimageSize), stack(1, preimageSize)

	case f_andor:
		x, y, z := node.args[0], node.args[1], node.args[2]
		node.satSize = y.satSize.and(x.satSize).or(z.satSize.and(x.dsatSize))
		node.dsatSize = z.dsatSize.and(x.dsatSize).or(y.dsatSize.and(x.satSize))

	case f_and_v:
		x, y := node.args[0], node.args[1]
		node.satSize = y.satSize.and(x.satSize)
		node.dsatSize = y.dsatSize.and(x.satSize)

	case f_and_b:
		x, y := node.args[0], node.args[1]
		node.satSize = y.satSize.and(x.satSize)
		node.dsatSize = y.dsatSize.and(x.dsatSize).
			or(y.satSize.and(x.dsatSize)).
			or(y.dsatSize.and(x.satSize))

	case f_or_b:
		x, z := node.args[0], node.args[1]
		node.satSize = z.dsatSize.and(x.satSize).
			or(z.satSize.and(x.dsatSize)).
			or(z.satSize.and(x.satSize))
		node.dsatSize = z.dsatSize.and(x.dsatSize)

	case f_or_c:
		x, z := node.args[0], node.args[1]
		node.satSize = x.satSize.or(z.satSize.and(x.dsatSize))
		node.dsatSize = invalid

	case f_or_d:
		x, z := node.args[0], node.args[1]
		node.satSize = x.satSize.or(z.satSize.and(x.dsatSize))
		node.dsatSize = z.dsatSize.and(x.dsatSize)

	case f_or_i:
		x, z := node.args[0], node.args[1]
		node.satSize = x.satSize.and(one).or(z.satSize.and(zero))
		node.dsatSize = x.dsatSize.and(one).or(z.dsatSize.and(zero))

	case f_thresh:
		node.satSize, node.dsatSize = threshStackSize(node.args, int(node.num))

	case f_multi:
		k := int(node.num)
		node.satSize = stack(k+1, emptySize+k*sigSize)
		node.dsatSize = stack(k+1, (k+1)*emptySize)

	case f_wrap_a, f_wrap_s, f_wrap_c, f_wrap_n:
		x := node.args[0]
		node.satSize, node.dsatSize = x.satSize, x.dsatSize

	case f_wrap_d:
		x := node.args[0]
		node.satSize, node.dsatSize = x.satSize.and(one), zero

	case f_wrap_v:
		node.satSize, node.dsatSize = node.args[0].satSize, invalid

	case f_wrap_j:
		node.satSize, node.dsatSize = node.args[0].satSize, zero

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}
	return nil
}

// threshStackSize bounds thresh(k,...): starting from every sub
// dissatisfied, satisfying j of them adds at most the j largest
// differences between a sub's satisfaction and dissatisfaction. Elements
// and bytes are bounded independently.
func threshStackSize[K Key](args []*Miniscript[K], k int) (stackSize, stackSize) {
	base := stack(0, 0)
	var elemDiffs, byteDiffs []int
	for _, arg := range args {
		base = base.and(arg.dsatSize)
		if arg.satSize.valid && arg.dsatSize.valid {
			elemDiffs = append(elemDiffs, arg.satSize.elems-arg.dsatSize.elems)
			byteDiffs = append(byteDiffs, arg.satSize.bytes-arg.dsatSize.bytes)
		}
	}
	if !base.valid || len(elemDiffs) < k {
		return stackSize{}, base
	}
	sort.Sort(sort.Reverse(sort.IntSlice(elemDiffs)))
	sort.Sort(sort.Reverse(sort.IntSlice(byteDiffs)))

	// with j satisfied subs
	withSats := func(j int) stackSize {
		res := base
		for i := 0; i < j; i++ {
			res.elems += elemDiffs[i]
			res.bytes += byteDiffs[i]
		}
		return res
	}

	dsat := stackSize{}
	for j := 0; j <= len(elemDiffs); j++ {
		if j != k {
			dsat = dsat.or(withSats(j))
		}
	}
	return withSats(k), dsat
}
