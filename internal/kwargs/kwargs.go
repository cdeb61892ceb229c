// Package kwargs parses the keyword-argument expressions stored on sync
// schedules.
//
// The accepted grammar is a small literal language: flow mappings
// ({'limit': 10}), flow sequences ([1, 2]), quoted strings, numbers,
// booleans and None/null. Nothing in it is ever evaluated; bare identifiers,
// statements and calls are rejected.
package kwargs

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flightops/flight-data-server/internal/models"
)

var (
	errNotLiteral = errors.New("not a literal")
	errTrailing   = errors.New("unexpected content after the expression")
	errNotMapping = errors.New("expression is not a mapping")
)

// Parse parses expr into Go values: map[string]any, []any, string, int,
// float64, bool or nil. An empty expression parses to an empty mapping.
func Parse(expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return map[string]any{}, nil
	}

	dec := yaml.NewDecoder(strings.NewReader(expr))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidKwargs, err)
	}
	// a document separator must not smuggle in a second expression
	var rest yaml.Node
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidKwargs, errTrailing)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidKwargs, errNotLiteral)
	}

	v, err := literal(doc.Content[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidKwargs, err)
	}
	return v, nil
}

// ParseMapping parses expr and requires the result to be a mapping.
func ParseMapping(expr string) (map[string]any, error) {
	v, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", errNotMapping, v)
	}
	return m, nil
}

// IsNotMapping reports whether err came from ParseMapping rejecting a
// well-formed literal that is not a mapping.
func IsNotMapping(err error) bool {
	return errors.Is(err, errNotMapping)
}

// Validate checks that expr is a well-formed literal. It is what schedule
// writes call; the mapping requirement is enforced when the schedule runs.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

func literal(n *yaml.Node) (any, error) {
	if n.Anchor != "" || n.Style&yaml.TaggedStyle != 0 {
		return nil, fmt.Errorf("line %d: %w: anchors and tags are not allowed", n.Line, errNotLiteral)
	}

	switch n.Kind {
	case yaml.MappingNode:
		if n.Style&yaml.FlowStyle == 0 {
			return nil, fmt.Errorf("line %d: %w: mappings must use braces", n.Line, errNotLiteral)
		}
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			key, err := literal(k)
			if err != nil {
				return nil, err
			}
			switch key.(type) {
			case map[string]any, []any:
				return nil, fmt.Errorf("line %d: %w: unhashable key", k.Line, errNotLiteral)
			}
			val, err := literal(v)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key)] = val
		}
		return out, nil

	case yaml.SequenceNode:
		if n.Style&yaml.FlowStyle == 0 {
			return nil, fmt.Errorf("line %d: %w: lists must use brackets", n.Line, errNotLiteral)
		}
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := literal(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.ScalarNode:
		return scalar(n)

	case yaml.AliasNode:
		return nil, fmt.Errorf("line %d: %w: aliases are not allowed", n.Line, errNotLiteral)
	}

	return nil, fmt.Errorf("line %d: %w", n.Line, errNotLiteral)
}

func scalar(n *yaml.Node) (any, error) {
	if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0 {
		return n.Value, nil
	}

	// Plain scalars must resolve to a non-string type
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return i, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	}

	if n.Value == "None" {
		return nil, nil
	}
	return nil, fmt.Errorf("line %d: %w: unexpected %q", n.Line, errNotLiteral, n.Value)
}
