package miniscript

import (
	"encoding/hex"
	"github.com/pkg/errors"
	_assert "github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const (
	hash1 = "751e76e8199196d454941c45d1b3a323f1433bd6"
	hash2 = "06afd46bcdfd22ef94ac122aa11f241244a37ecc"
	hash3 = "7dd65592d0ab2fe0d0257d571abf032cd9db93dc"
)

func TestForEachKey(t *testing.T) {
	ms := mustParse(t, "or_d(multi(1,K1,K2),and_v(v:pkh(K3),older(10)))")

	var seen []string
	_assert.True(t, ms.ForEachKey(func(k PublicKey) bool {
		seen = append(seen, k.String())
		return true
	}))
	_assert.Equal(t, []string{key1, key2, key3}, seen)

	seen = nil
	_assert.False(t, ms.ForEachKey(func(k PublicKey) bool {
		seen = append(seen, k.String())
		return k.String() != key2
	}))
	_assert.Equal(t, []string{key1, key2}, seen)
}

// recordingTranslator maps stringKeys to the keys of testKeys and records
// which positions they were found in.
type recordingTranslator struct {
	keys      map[stringKey]string
	pk, pkh   []stringKey
	failOnKey stringKey
}

func (r *recordingTranslator) translate(k stringKey) (PublicKey, error) {
	if k == r.failOnKey {
		return PublicKey{}, errors.Errorf("no key for %s", k)
	}
	return ParsePublicKey(r.keys[k])
}

func (r *recordingTranslator) PK(k stringKey) (PublicKey, error) {
	r.pk = append(r.pk, k)
	return r.translate(k)
}

func (r *recordingTranslator) PKH(k stringKey) (PublicKey, error) {
	r.pkh = append(r.pkh, k)
	return r.translate(k)
}

func TestTranslate(t *testing.T) {
	abstract, err := Parse("or_d(pk(A),and_v(v:pkh(B),older(144)))", parseStringKey)
	_assert.NoError(t, err)

	t.Run("maps keys by position", func(t *testing.T) {
		translator := &recordingTranslator{keys: map[stringKey]string{"A": key1, "B": key2}}
		ms, err := Translate[stringKey, PublicKey](abstract, translator)
		_assert.NoError(t, err)
		_assert.Equal(t, []stringKey{"A"}, translator.pk)
		_assert.Equal(t, []stringKey{"B"}, translator.pkh)

		_assert.Equal(t, withKeys("or_d(pk(K1),and_v(v:pkh(K2),older(144)))"), ms.String())
		_assert.Equal(t, abstract.ScriptSize(), ms.ScriptSize())
		_assert.Equal(t, abstract.Type(), ms.Type())

		script, err := ms.Encode()
		_assert.NoError(t, err)
		_assert.Equal(t, ms.ScriptSize(), len(script))
	})

	t.Run("stops at the first error", func(t *testing.T) {
		translator := &recordingTranslator{keys: map[stringKey]string{"A": key1, "B": key2}, failOnKey: "A"}
		_, err := Translate[stringKey, PublicKey](abstract, translator)
		_assert.EqualError(t, err, "no key for A")
		_assert.Empty(t, translator.pkh)
	})

	t.Run("translate func", func(t *testing.T) {
		keys := map[stringKey]string{"A": key3, "B": key1}
		ms, err := Translate[stringKey, PublicKey](abstract, TranslateFunc[stringKey, PublicKey](func(k stringKey) (PublicKey, error) {
			return ParsePublicKey(keys[k])
		}))
		_assert.NoError(t, err)
		_assert.Equal(t, withKeys("or_d(pk(K3),and_v(v:pkh(K1),older(144)))"), ms.String())
	})
}

func TestLift(t *testing.T) {
	fixtures := []struct {
		ms     string
		policy string
	}{
		{"0", "UNSATISFIABLE"},
		{"1", "TRIVIAL"},
		{"pk(K1)", "pkh(" + hash1 + ")"},
		{"pkh(K1)", "pkh(" + hash1 + ")"},
		{"or_d(pk(K1),and_v(v:pk(K2),older(144)))", "or(pkh(" + hash1 + "),and(pkh(" + hash2 + "),older(144)))"},
		{"andor(pk(K1),older(10),pk(K2))", "or(and(pkh(" + hash1 + "),older(10)),pkh(" + hash2 + "))"},
		{"multi(2,K1,K2,K3)", "thresh(2,pkh(" + hash1 + "),pkh(" + hash2 + "),pkh(" + hash3 + "))"},
		{"thresh(2,pk(K1),s:pk(K2),a:pk(K3))", "thresh(2,pkh(" + hash1 + "),pkh(" + hash2 + "),pkh(" + hash3 + "))"},
		{"and_v(v:sha256(H),pk(K1))", "and(sha256(" + testHash + "),pkh(" + hash1 + "))"},
		{"and_v(v:multi(1,K1,K2),after(500000))", "and(or(pkh(" + hash1 + "),pkh(" + hash2 + ")),after(500000))"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			ms := mustParse(t, fixture.ms)
			_assert.Equal(t, fixture.policy, ms.Lift().String())
		})
	}
}

func TestSanityCheck(t *testing.T) {
	hashChain := strings.Repeat("and_v(v:sha256(H),", 51) + "pk(K1)" + strings.Repeat(")", 51)

	fixtures := []struct {
		ms   string
		kind AnalysisErrorKind
		ok   bool
	}{
		{ms: "pk(K1)", ok: true},
		{ms: "or_d(pk(K1),and_v(v:pk(K2),older(144)))", ok: true},
		{ms: "multi(2,K1,K2,K3)", ok: true},
		{ms: "older(144)", kind: SiglessBranch},
		{ms: "or_d(sha256(H),pk(K1))", kind: SiglessBranch},
		{ms: "and_v(v:pk(K1),or_b(sha256(H),a:pk(K2)))", kind: Malleable},
		{ms: hashChain, kind: BranchExceedResourceLimits},
		{ms: "or_b(pk(K1),s:pk(K1))", kind: RepeatedPubkeys},
		{ms: "multi(1,K1,K1)", kind: RepeatedPubkeys},
		{ms: "and_v(v:pk(K1),and_v(v:after(100),after(500000001)))", kind: HeightTimelockCombination},
		{ms: "or_d(pk(K1),or_d(pk(K2),and_v(v:pk(K3),older(4194305))))", ok: true},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.ms, func(t *testing.T) {
			err := mustParse(t, fixture.ms).SanityCheck()
			if fixture.ok {
				_assert.NoError(t, err)
				return
			}

			var analysisErr *AnalysisError
			_assert.True(t, errors.As(err, &analysisErr), "%v", err)
			_assert.Equal(t, fixture.kind, analysisErr.Kind)
		})
	}

	t.Run("uncompressed key", func(t *testing.T) {
		ms, err := Parse("pk("+key1Uncompressed+")", ParsePublicKey)
		_assert.NoError(t, err)

		var contextErr *ContextError
		_assert.True(t, errors.As(ms.SanityCheck(), &contextErr))
		_assert.Equal(t, CompressedOnly, contextErr.Kind)
		_assert.Equal(t, key1Uncompressed, contextErr.Detail)
	})

	t.Run("timelocks in separate branches", func(t *testing.T) {
		ms := mustParse(t, "or_i(and_v(v:pk(K1),after(100)),and_v(v:pk(K2),after(500000001)))")
		_assert.NoError(t, ms.SanityCheck())
	})
}

func TestPublicKey(t *testing.T) {
	t.Run("compressed", func(t *testing.T) {
		key, err := ParsePublicKey(key1)
		_assert.NoError(t, err)
		_assert.False(t, key.IsUncompressed())
		_assert.Equal(t, key1, key.String())
		_assert.Equal(t, hash1, key.PubKeyHash())
		_assert.Equal(t, hash1, hex.EncodeToString(key.Hash160()))
	})

	t.Run("uncompressed", func(t *testing.T) {
		key, err := ParsePublicKey(key1Uncompressed)
		_assert.NoError(t, err)
		_assert.True(t, key.IsUncompressed())
		_assert.Equal(t, key1Uncompressed, key.String())

		compressed, err := ParsePublicKey(key1)
		_assert.NoError(t, err)
		_assert.False(t, key.Equal(compressed))
		_assert.True(t, key.Key.IsEqual(compressed.Key))
	})

	fixtures := []struct {
		key string
		err string
	}{
		{"02", "Invalid length of public key"},
		{"0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f8179800", "Invalid length of compressed public key"},
		{"0679be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", "Invalid prefix for public key"},
		{"0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", "Invalid length of uncompressed public key"},
	}
	for _, fixture := range fixtures {
		t.Run("rejects "+fixture.key, func(t *testing.T) {
			_, err := ParsePublicKey(fixture.key)
			_assert.EqualError(t, err, fixture.err)
		})
	}

	t.Run("rejects bad hex", func(t *testing.T) {
		_, err := ParsePublicKey("zz")
		_assert.Error(t, err)
	})
}

func TestSignature(t *testing.T) {
	sig := testSig(t, 1)
	serialized := sig.Serialize()
	_assert.Equal(t, byte(0x01), serialized[len(serialized)-1])

	parsed, err := ParseSignature(serialized)
	_assert.NoError(t, err)
	_assert.Equal(t, sig.HashType, parsed.HashType)
	_assert.True(t, sig.Signature.IsEqual(parsed.Signature))

	_, err = ParseSignature(nil)
	_assert.EqualError(t, err, "Signature too short")
}
