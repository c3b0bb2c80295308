package expression

import (
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

// MaxDepth bounds the nesting of parentheses accepted by Parse.
const MaxDepth = 402

// Tree is a parsed `name(arg,...)` expression. Leaves have no Args.
type Tree struct {
	Name string
	Args []*Tree
}

// Parse takes an expression string and returns its tree. The whole
// string must be consumed.
func Parse(s string) (*Tree, error) {
	for _, ch := range s {
		if ch > 0x7f {
			return nil, errors.Errorf("Invalid character in expression: '%c'", ch)
		}
	}

	tree, rest, err := parseTree(s, 0)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, errors.Errorf("Unexpected trailing characters: %s", rest)
	}

	return tree, nil
}

func parseTree(s string, depth int) (*Tree, string, error) {
	if depth > MaxDepth {
		return nil, "", errors.Errorf("Expression exceeds maximum depth of %d", MaxDepth)
	}

	end := strings.IndexAny(s, "(),")
	if end < 0 {
		if s == "" {
			return nil, "", errors.New("Empty expression")
		}
		return &Tree{Name: s}, "", nil
	}

	name := s[:end]
	if name == "" {
		return nil, "", errors.Errorf("Expected a name before '%c'", s[end])
	}
	if s[end] != '(' {
		return &Tree{Name: name}, s[end:], nil
	}

	tree := &Tree{Name: name}
	rest := s[end+1:]
	for {
		arg, next, err := parseTree(rest, depth+1)
		if err != nil {
			return nil, "", err
		}
		tree.Args = append(tree.Args, arg)

		if next == "" {
			return nil, "", errors.Errorf("Unclosed parenthesis in %s(", name)
		}
		switch next[0] {
		case ',':
			rest = next[1:]
		case ')':
			return tree, next[1:], nil
		default:
			return nil, "", errors.Errorf("Unexpected '%c' after argument of %s", next[0], name)
		}
	}
}

// String encodes the tree back into its textual form.
func (t *Tree) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}

	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return t.Name + "(" + strings.Join(args, ",") + ")"
}

// IsTerminal returns whether the tree is a leaf.
func (t *Tree) IsTerminal() bool {
	return len(t.Args) == 0
}

// Terminal converts a leaf with conv, failing if the tree has
// arguments.
func Terminal[T any](t *Tree, conv func(string) (T, error)) (T, error) {
	var zero T
	if !t.IsTerminal() {
		return zero, errors.Errorf("Unexpected arguments for terminal %s (%d args)", t.Name, len(t.Args))
	}

	v, err := conv(t.Name)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to parse terminal %s", t.Name)
	}
	return v, nil
}

// ParseNum parses a decimal number which may not carry a sign or
// leading zeros.
func ParseNum(s string) (uint32, error) {
	if len(s) > 1 && s[0] == '0' {
		return 0, errors.Errorf("Number %s has leading zeros", s)
	}
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, errors.Errorf("Invalid number: %q", s)
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
