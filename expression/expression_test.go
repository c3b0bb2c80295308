package expression

import (
	_assert "github.com/stretchr/testify/require"
	"strconv"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tree, err := Parse("wsh(and_v(v:pk(A),or_d(pk(B),older(12960))))")
	_assert.NoError(t, err)
	_assert.Equal(t, "wsh", tree.Name)
	_assert.Len(t, tree.Args, 1)

	andV := tree.Args[0]
	_assert.Equal(t, "and_v", andV.Name)
	_assert.Len(t, andV.Args, 2)
	_assert.Equal(t, "v:pk", andV.Args[0].Name)
	_assert.Equal(t, "A", andV.Args[0].Args[0].Name)
	_assert.True(t, andV.Args[0].Args[0].IsTerminal())

	orD := andV.Args[1]
	_assert.Equal(t, "or_d", orD.Name)
	_assert.Equal(t, "older", orD.Args[1].Name)
	_assert.Equal(t, "12960", orD.Args[1].Args[0].Name)

	_assert.Equal(t, "wsh(and_v(v:pk(A),or_d(pk(B),older(12960))))", tree.String())
}

func TestParseKeyOrigins(t *testing.T) {
	s := "wpkh([d34db33f/84'/0'/0']xpub6ERApfZwUNrhLCkDtcHTcxd75RbzS1ed54G1LkBUHQVHQKqhMkhgbmJbZRkrgZw4koxb5JaHWkY4ALHY2grBGRjaDMzQLcgJvLJuZZvRcEL/1/*)"
	tree, err := Parse(s)
	_assert.NoError(t, err)
	_assert.Equal(t, "wpkh", tree.Name)
	_assert.Len(t, tree.Args, 1)
	_assert.True(t, strings.HasPrefix(tree.Args[0].Name, "[d34db33f/84'/0'/0']xpub"))
	_assert.Equal(t, s, tree.String())
}

func TestParseErrors(t *testing.T) {
	fixtures := []string{
		"",
		"wsh(",
		"wsh()",
		"wsh(pk(A)",
		"wsh(pk(A)))",
		"wsh(pk(A))x",
		"(A)",
		"wsh(,A)",
		"wsh(A,)",
		"pk(A)(B)",
		"wpkh(é)",
	}

	for _, fixture := range fixtures {
		t.Run(strconv.Quote(fixture), func(t *testing.T) {
			_, err := Parse(fixture)
			_assert.Error(t, err)
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	deep := strings.Repeat("a(", MaxDepth+1) + "x" + strings.Repeat(")", MaxDepth+1)
	_, err := Parse(deep)
	_assert.Error(t, err)

	ok := strings.Repeat("a(", 10) + "x" + strings.Repeat(")", 10)
	_, err = Parse(ok)
	_assert.NoError(t, err)
}

func TestTerminal(t *testing.T) {
	tree, err := Parse("older(144)")
	_assert.NoError(t, err)

	n, err := Terminal(tree.Args[0], ParseNum)
	_assert.NoError(t, err)
	_assert.Equal(t, uint32(144), n)

	_, err = Terminal(tree, ParseNum)
	_assert.Error(t, err)
}

func TestParseNum(t *testing.T) {
	fixtures := []struct {
		in    string
		out   uint32
		valid bool
	}{
		{"0", 0, true},
		{"1", 1, true},
		{"4294967295", 4294967295, true},
		{"4294967296", 0, false},
		{"01", 0, false},
		{"+1", 0, false},
		{"-1", 0, false},
		{"", 0, false},
		{"1a", 0, false},
	}

	for _, fixture := range fixtures {
		n, err := ParseNum(fixture.in)
		if fixture.valid {
			_assert.NoError(t, err, fixture.in)
			_assert.Equal(t, fixture.out, n)
		} else {
			_assert.Error(t, err, fixture.in)
		}
	}
}
