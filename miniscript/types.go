package miniscript

import (
	"github.com/pkg/errors"
	"strings"
)

type basicType string

const (
	typeB basicType = "B"
	typeV basicType = "V"
	typeK basicType = "K"
	typeW basicType = "W"
)

type properties struct {
	// Basic type properties.
	z, o, n, d, u bool

	// Malleability properties.
	// If `m`, a non-malleable satisfaction is guaranteed to exist.
	// The purpose of s/f/e is only to compute `m` and can be disregarded
	// afterward.
	m, s, f, e bool

	// canCollapseVerify is set if the rightmost script byte produced by
	// this node is OP_EQUAL, OP_CHECKSIG or OP_CHECKMULTISIG, which a
	// `v` ancestor turns into its VERIFY version.
	canCollapseVerify bool
}

func (p properties) String() string {
	s := strings.Builder{}
	for _, prop := range []struct {
		set bool
		r   rune
	}{
		{p.z, 'z'}, {p.o, 'o'}, {p.n, 'n'}, {p.d, 'd'}, {p.u, 'u'},
		{p.m, 'm'}, {p.s, 's'}, {p.f, 'f'}, {p.e, 'e'},
	} {
		if prop.set {
			s.WriteRune(prop.r)
		}
	}
	return s.String()
}

// expectBasicType is a helper function to check that this node has a
// specific type.
func (ms *Miniscript[K]) expectBasicType(typ basicType) error {
	if ms.basicType != typ {
		return errors.Errorf("expression `%s` expected to have type %s, but is type %s", ms.fragment, typ, ms.basicType)
	}
	return nil
}

func wrongProperties(sub, parent string) error {
	return errors.Errorf("wrong properties on `%s`, argument of `%s`", sub, parent)
}

func typeCheck[K Key](node *Miniscript[K]) error {
	props := &node.props
	switch node.fragment {
	case f_0:
		node.basicType = typeB
		props.z, props.u, props.d = true, true, true

	case f_1:
		node.basicType = typeB
		props.z, props.u = true, true

	case f_pk_k:
		node.basicType = typeK
		props.o, props.n, props.d, props.u = true, true, true, true

	case f_pk_h:
		node.basicType = typeK
		props.n, props.d, props.u = true, true, true

	case f_older, f_after:
		node.basicType = typeB
		props.z = true

	case f_sha256, f_ripemd160, f_hash256, f_hash160:
		node.basicType = typeB
		props.o, props.n, props.d, props.u = true, true, true, true

	case f_andor:
		x, y, z := node.args[0], node.args[1], node.args[2]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.d || !x.props.u {
			return wrongProperties(x.fragment, node.fragment)
		}
		if y.basicType != typeB && y.basicType != typeK && y.basicType != typeV {
			return errors.Errorf("in `%s`, the second argument type is not B, K or V, but: %s", node.fragment, y.basicType)
		}
		if z.basicType != y.basicType {
			return errors.Errorf("in `%s`, the type of the third argument is not the type of the second argument, which is: %s", node.fragment, y.basicType)
		}
		node.basicType = y.basicType
		props.z = x.props.z && y.props.z && z.props.z
		props.o = (x.props.z && y.props.o && z.props.o) || (x.props.o && y.props.z && z.props.z)
		props.u = y.props.u && z.props.u
		props.d = z.props.d

	case f_and_v:
		x, y := node.args[0], node.args[1]
		if err := x.expectBasicType(typeV); err != nil {
			return err
		}
		if y.basicType != typeB && y.basicType != typeK && y.basicType != typeV {
			return errors.Errorf("in `%s`, the second argument type is not B, K or V, but: %s", node.fragment, y.basicType)
		}
		node.basicType = y.basicType
		props.z = x.props.z && y.props.z
		props.o = (x.props.z && y.props.o) || (y.props.z && x.props.o)
		props.n = x.props.n || (x.props.z && y.props.n)
		props.u = y.props.u

	case f_and_b:
		x, y := node.args[0], node.args[1]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if err := y.expectBasicType(typeW); err != nil {
			return err
		}
		node.basicType = typeB
		props.z = x.props.z && y.props.z
		props.o = (x.props.z && y.props.o) || (y.props.z && x.props.o)
		props.n = x.props.n || (x.props.z && y.props.n)
		props.d = x.props.d && y.props.d
		props.u = true

	case f_or_b:
		x, z := node.args[0], node.args[1]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.d {
			return wrongProperties(x.fragment, node.fragment)
		}
		if err := z.expectBasicType(typeW); err != nil {
			return err
		}
		if !z.props.d {
			return wrongProperties(z.fragment, node.fragment)
		}
		node.basicType = typeB
		props.z = x.props.z && z.props.z
		props.o = (x.props.z && z.props.o) || (z.props.z && x.props.o)
		props.d = true
		props.u = true

	case f_or_c:
		x, z := node.args[0], node.args[1]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.d || !x.props.u {
			return wrongProperties(x.fragment, node.fragment)
		}
		if err := z.expectBasicType(typeV); err != nil {
			return err
		}
		node.basicType = typeV
		props.z = x.props.z && z.props.z
		props.o = x.props.o && z.props.z

	case f_or_d:
		x, z := node.args[0], node.args[1]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.d || !x.props.u {
			return wrongProperties(x.fragment, node.fragment)
		}
		if err := z.expectBasicType(typeB); err != nil {
			return err
		}
		node.basicType = typeB
		props.z = x.props.z && z.props.z
		props.o = x.props.o && z.props.z
		props.d = z.props.d
		props.u = z.props.u

	case f_or_i:
		x, z := node.args[0], node.args[1]
		if x.basicType != typeB && x.basicType != typeK && x.basicType != typeV {
			return errors.New("or_i: wrong type of first argument")
		}
		if z.basicType != x.basicType {
			return errors.New("or_i: wrong type of second argument")
		}
		node.basicType = x.basicType
		props.o = x.props.z && z.props.z
		props.u = x.props.u && z.props.u
		props.d = x.props.d || z.props.d

	case f_thresh:
		// X1 is Bdu; others are Wdu
		for i, arg := range node.args {
			expected := typeW
			if i == 0 {
				expected = typeB
			}
			if err := arg.expectBasicType(expected); err != nil {
				return err
			}
			if !arg.props.d || !arg.props.u {
				return errors.Errorf("wrong properties on `%s`, argument #%d of `%s`", arg.fragment, i+1, node.fragment)
			}
		}

		// z=all are z; o=all are z except one is o
		numZ, numO := 0, 0
		for _, arg := range node.args {
			if arg.props.z {
				numZ++
			} else if arg.props.o {
				numO++
			}
		}
		node.basicType = typeB
		props.z = numZ == len(node.args)
		props.o = numZ == len(node.args)-1 && numO == 1
		props.d = true
		props.u = true

	case f_multi:
		node.basicType = typeB
		props.n, props.d, props.u = true, true, true

	case f_wrap_a:
		x := node.args[0]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		node.basicType = typeW
		props.d = x.props.d
		props.u = x.props.u

	case f_wrap_s:
		x := node.args[0]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.o {
			return wrongProperties(x.fragment, node.fragment)
		}
		node.basicType = typeW
		props.d = x.props.d
		props.u = x.props.u

	case f_wrap_c:
		x := node.args[0]
		if err := x.expectBasicType(typeK); err != nil {
			return err
		}
		node.basicType = typeB
		props.o = x.props.o
		props.n = x.props.n
		props.d = x.props.d
		props.u = true

	case f_wrap_d:
		x := node.args[0]
		if err := x.expectBasicType(typeV); err != nil {
			return err
		}
		if !x.props.z {
			return wrongProperties(x.fragment, node.fragment)
		}
		node.basicType = typeB
		props.o, props.n, props.d = true, true, true

	case f_wrap_v:
		x := node.args[0]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		node.basicType = typeV
		props.z = x.props.z
		props.o = x.props.o
		props.n = x.props.n

	case f_wrap_j:
		x := node.args[0]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		if !x.props.n {
			return wrongProperties(x.fragment, node.fragment)
		}
		node.basicType = typeB
		props.o = x.props.o
		props.n = true
		props.d = true
		props.u = x.props.u

	case f_wrap_n:
		x := node.args[0]
		if err := x.expectBasicType(typeB); err != nil {
			return err
		}
		node.basicType = typeB
		props.z = x.props.z
		props.o = x.props.o
		props.n = x.props.n
		props.d = x.props.d
		props.u = true

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}
	return nil
}

func canCollapseVerify[K Key](node *Miniscript[K]) error {
	switch node.fragment {
	case f_sha256, f_ripemd160, f_hash256, f_hash160, f_thresh, f_multi, f_wrap_c:
		node.props.canCollapseVerify = true

	case f_and_v:
		node.props.canCollapseVerify = node.args[1].props.canCollapseVerify

	case f_wrap_s:
		node.props.canCollapseVerify = node.args[0].props.canCollapseVerify
	}
	return nil
}

func malleabilityCheck[K Key](node *Miniscript[K]) error {
	props := &node.props
	switch node.fragment {
	case f_0:
		props.m, props.s, props.e = true, true, true

	case f_1:
		props.m, props.f = true, true

	case f_pk_k, f_pk_h:
		props.m, props.s, props.e = true, true, true

	case f_older, f_after:
		props.m, props.f = true, true

	case f_sha256, f_ripemd160, f_hash256, f_hash160:
		props.m = true

	case f_andor:
		x, y, z := node.args[0].props, node.args[1].props, node.args[2].props
		props.m = x.m && y.m && z.m && (x.e && (x.s || y.s || z.s))
		props.s = z.s && (x.s || y.s)
		props.f = z.f && (x.s || y.f)
		props.e = z.e && (x.s || y.f)

	case f_and_v:
		x, y := node.args[0].props, node.args[1].props
		props.m = x.m && y.m
		props.s = x.s || y.s
		props.f = x.s || y.f

	case f_and_b:
		x, y := node.args[0].props, node.args[1].props
		props.m = x.m && y.m
		props.s = x.s || y.s
		props.f = x.f && y.f || x.s && x.f || y.s && y.f
		props.e = x.e && y.e && x.s && y.s

	case f_or_b:
		x, z := node.args[0].props, node.args[1].props
		props.m = x.m && z.m && (x.e && z.e && (x.s || z.s))
		props.s = x.s && z.s
		props.e = true

	case f_or_c:
		x, z := node.args[0].props, node.args[1].props
		props.m = x.m && z.m && (x.e && (x.s || z.s))
		props.s = x.s && z.s
		props.f = true

	case f_or_d:
		x, z := node.args[0].props, node.args[1].props
		props.m = x.m && z.m && (x.e && (x.s || z.s))
		props.s = x.s && z.s
		props.f = z.f
		props.e = z.e

	case f_or_i:
		x, z := node.args[0].props, node.args[1].props
		props.m = x.m && z.m && (x.s || z.s)
		props.s = x.s && z.s
		props.f = x.f && z.f
		props.e = x.e && z.f || z.e && x.f

	case f_thresh:
		k := int(node.num)
		notSCount := 0
		props.m = true
		props.e = true
		for _, arg := range node.args {
			props.m = props.m && arg.props.m && arg.props.e
			props.e = props.e && arg.props.e && arg.props.s
			if !arg.props.s {
				notSCount++
			}
		}
		props.m = props.m && notSCount <= k
		props.s = notSCount <= k-1

	case f_multi:
		props.m, props.s, props.e = true, true, true

	case f_wrap_a, f_wrap_s, f_wrap_n:
		x := node.args[0].props
		props.m, props.s, props.f, props.e = x.m, x.s, x.f, x.e

	case f_wrap_c:
		x := node.args[0].props
		props.m, props.s, props.f, props.e = x.m, true, x.f, x.e

	case f_wrap_d:
		x := node.args[0].props
		props.m, props.s, props.e = x.m, x.s, true

	case f_wrap_v:
		x := node.args[0].props
		props.m, props.s, props.f = x.m, x.s, true

	case f_wrap_j:
		x := node.args[0].props
		props.m, props.s, props.e = x.m, x.s, x.f

	default:
		return errors.Errorf("unknown identifier: %s", node.fragment)
	}
	return nil
}
