package miniscript

import (
	"encoding/hex"
	_assert "github.com/stretchr/testify/require"
	"testing"
)

func TestEncode(t *testing.T) {
	fixtures := []struct {
		ms     string
		script string
	}{
		{
			ms:     "pk(K1)",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac",
		},
		{
			ms:     "pkh(K1)",
			script: "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac",
		},
		{
			ms:     "and_v(v:pk(K1),pk(K2))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ad2102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac",
		},
		{
			ms:     "or_d(pk(K1),and_v(v:pk(K2),older(144)))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac73642102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ad029000b268",
		},
		{
			ms:     "multi(2,K1,K2,K3)",
			script: "52210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f817982102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee52102f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f953ae",
		},
		{
			ms:     "thresh(2,pk(K1),s:pk(K2),a:pk(K3))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac7c2102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac936b2102f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9ac6c935287",
		},
		{
			ms:     "and_v(v:sha256(H),pk(K1))",
			script: "82012088a82072cd6e8422c407fb6d098690f1130b7ded7ec2f7f5e1d30bd9d521f01536379388210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac",
		},
		{
			ms:     "t:or_c(pk(K1),v:pk(K2))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac642102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ad6851",
		},
		{
			ms:     "andor(pk(K1),older(10),pk(K2))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac642102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac675ab268",
		},
		{
			// only the final OP_EQUAL collapses, not the inner CHECKSIGs
			ms:     "and_v(v:thresh(1,pk(K1),s:pk(K2)),pk(K3))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac7c2102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac9351882102f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9ac",
		},
		{
			ms:     "and_v(v:or_b(pk(K1),s:pk(K2)),pk(K3))",
			script: "210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798ac7c2102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac9b692102f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9ac",
		},
		{
			ms:     "and_v(v:multi(1,K1,K2),after(500000))",
			script: "51210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f817982102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee552af0320a107b1",
		},
		{
			ms:     "or_i(and_v(v:pkh(K1),older(4194305)),pk(K2))",
			script: "6376a914751e76e8199196d454941c45d1b3a323f1433bd688ad03010040b2672102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5ac68",
		},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			ms := mustParse(t, fixture.ms)

			script, err := ms.Encode()
			_assert.NoError(t, err)
			_assert.Equal(t, fixture.script, hex.EncodeToString(script))
			_assert.Equal(t, len(script), ms.ScriptSize())

			_assert.Equal(t, withKeys(fixture.ms), ms.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	fixtures := []struct {
		ms  string
		err string
	}{
		{"pk()", "Expected a name before ')'"},
		{"pk(K1,K2)", "pk expects 1 arguments, got 2"},
		{"older(0)", "older(n) -> n must 1 ≤ n < 2^31, but got: 0"},
		{"older(2147483648)", "older(n) -> n must 1 ≤ n < 2^31, but got: 2147483648"},
		{"after(01)", "after(n) => n must be an unsigned integer: failed to parse terminal 01: Number 01 has leading zeros"},
		{"multi(0,K1)", "multi(k) -> k must 1 ≤ k ≤ n, but got: 0"},
		{"multi(3,K1,K2)", "multi(k) -> k must 1 ≤ k ≤ n, but got: 3"},
		{"thresh(3,pk(K1),s:pk(K2))", "thresh(k) -> k must 1 ≤ k ≤ n, but got: 3"},
		{"sha256(00)", "sha256 len must be 32, got 1"},
		{"foo(K1)", "unrecognized identifier: foo"},
		{"x:pk(K1)", "unknown wrapper: x"},
		{":pk(K1)", "no wrappers found before colon before identifier: pk"},
		{"v:", "no identifier found after colon after wrappers: v"},
		{"a:b:pk(K1)", "invalid number of colons in token: a:b:pk"},
		{"and_v(pk(K1),pk(K2))", "expression `c` expected to have type V, but is type B"},
		{"s:pk_h(K1)", "expression `pk_h` expected to have type B, but is type K"},
		{"d:pk(K1)", "expression `c` expected to have type V, but is type B"},
		{"thresh(1,pk(K1),pk(K2))", "expression `c` expected to have type W, but is type B"},
		{"or_b(pk(K1),s:older(1))", "wrong properties on `older`, argument of `s`"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			_, err := Parse(withKeys(fixture.ms), ParsePublicKey)
			_assert.EqualError(t, err, withKeys(fixture.err))
		})
	}
}

func TestPrintSugar(t *testing.T) {
	fixtures := []struct {
		in  string
		out string
	}{
		{"c:pk_k(K1)", "pk(K1)"},
		{"c:pk_h(K1)", "pkh(K1)"},
		{"and_n(pk(K1),older(1))", "and_n(pk(K1),older(1))"},
		{"andor(pk(K1),older(1),0)", "and_n(pk(K1),older(1))"},
		{"and_v(v:pk(K1),1)", "tv:pk(K1)"},
		{"or_i(0,pk(K1))", "l:pk(K1)"},
		{"or_i(pk(K1),0)", "u:pk(K1)"},
		{"vc:pk_k(K1)", "v:pk(K1)"},
		{"or_b(pk(K1),sln:older(1))", "or_b(pk(K1),sln:older(1))"},
		{"or_d(pk(K1),j:pkh(K2))", "or_d(pk(K1),j:pkh(K2))"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.in, func(t *testing.T) {
			ms, err := Parse(withKeys(fixture.in), parseStringKey)
			_assert.NoError(t, err)
			_assert.Equal(t, withKeys(fixture.out), ms.String())

			again, err := Parse(ms.String(), parseStringKey)
			_assert.NoError(t, err)
			_assert.Equal(t, ms.String(), again.String())
		})
	}
}

func TestTypes(t *testing.T) {
	fixtures := []struct {
		ms  string
		typ string
	}{
		{"pk(K1)", "Bondumse"},
		{"pk_k(K1)", "Kondumse"},
		{"older(144)", "Bzmf"},
		{"v:pk(K1)", "Vonmsf"},
		{"and_v(v:pk(K1),pk(K2))", "Bnumsf"},
		{"sha256(H)", "Bondum"},
		{"multi(2,K1,K2,K3)", "Bndumse"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			ms := mustParse(t, fixture.ms)
			_assert.Equal(t, fixture.typ, ms.Type())
		})
	}
}

func TestSizes(t *testing.T) {
	fixtures := []struct {
		ms         string
		opCount    int
		elems      int
		satSize    int
		scriptSize int
	}{
		{"pk(K1)", 1, 2, 73, 35},
		{"pkh(K1)", 4, 3, 107, 25},
		{"multi(2,K1,K2,K3)", 4, 4, 147, 105},
		{"or_d(pk(K1),and_v(v:pk(K2),older(144)))", 6, 3, 74, 77},
		{"thresh(2,pk(K1),s:pk(K2),a:pk(K3))", 9, 4, 147, 112},
		{"and_v(v:sha256(H),pk(K1))", 5, 3, 106, 74},
		{"or_i(and_v(v:pkh(K1),older(4194305)),pk(K2))", 9, 4, 109, 68},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			ms := mustParse(t, fixture.ms)
			_assert.Equal(t, fixture.opCount, ms.MaxOpCount())
			_assert.Equal(t, fixture.scriptSize, ms.ScriptSize())

			elems, err := ms.MaxSatisfactionWitnessElements()
			_assert.NoError(t, err)
			_assert.Equal(t, fixture.elems, elems)

			size, err := ms.MaxSatisfactionSize()
			_assert.NoError(t, err)
			_assert.Equal(t, fixture.satSize, size)
		})
	}

	t.Run("unsatisfiable", func(t *testing.T) {
		ms := mustParse(t, "0")
		_, err := ms.MaxSatisfactionWitnessElements()
		_assert.EqualError(t, err, "Impossible to satisfy miniscript under the segwit v0 context")
	})
}

func TestAbstractKeys(t *testing.T) {
	ms, err := Parse("or_d(pk(A),and_v(v:pkh(B),older(144)))", parseStringKey)
	_assert.NoError(t, err)

	// sizes only depend on the shape of the script
	_assert.Equal(t, 35+25+4+3, ms.ScriptSize())

	_, err = ms.Encode()
	_assert.Equal(t, ErrNotDefinite, err)

	_, err = ms.Satisfy(BaseSatisfier[stringKey]{})
	_assert.Equal(t, ErrNotDefinite, err)
}
