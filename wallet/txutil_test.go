package wallet

import (
	"encoding/hex"
	_assert "github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const (
	testSha256    = "72cd6e8422c407fb6d098690f1130b7ded7ec2f7f5e1d30bd9d521f015363793"
	testHash256   = "a0d4a0b8484643488c45836275bdcf2ca1bf542239aa6ba72bbc5a5951cfb044"
	testRipemd160 = "422d0010f16ae8539c53eb57a912890244a9eb5a"
	testHash160   = "4b6b2e5444c2639cc0fb7bcea5afba3f3cdce239"
)

func testPreimage() []byte {
	return []byte(strings.Repeat("\x01", 32))
}

func mustHex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	_assert.NoError(t, err)
	return b
}

func TestPreimages(t *testing.T) {
	preimages := NewPreimages(testPreimage())

	fixtures := []struct {
		name   string
		lookup func([]byte) ([]byte, bool)
		hash   string
	}{
		{"sha256", preimages.LookupSha256, testSha256},
		{"hash256", preimages.LookupHash256, testHash256},
		{"ripemd160", preimages.LookupRipemd160, testRipemd160},
		{"hash160", preimages.LookupHash160, testHash160},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			preimage, ok := fixture.lookup(mustHex(t, fixture.hash))
			_assert.True(t, ok)
			_assert.Equal(t, testPreimage(), preimage)

			_, ok = fixture.lookup(make([]byte, len(fixture.hash)/2))
			_assert.False(t, ok)
		})
	}

	t.Run("hashes are not interchangeable", func(t *testing.T) {
		_, ok := preimages.LookupHash256(mustHex(t, testSha256))
		_assert.False(t, ok)
	})
}
