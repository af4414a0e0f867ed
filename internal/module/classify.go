package module

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the shape of an export.
type Kind int

const (
	KindUnrecognized Kind = iota
	// KindSpec is a mapping with non-empty scalar `id` and `title`.
	KindSpec
	// KindAggregator is a mapping exposing a `tools` sequence.
	KindAggregator
)

func (k Kind) String() string {
	switch k {
	case KindSpec:
		return "spec"
	case KindAggregator:
		return "aggregator"
	default:
		return "unrecognized"
	}
}

// Classify inspects the shape of an export. Aggregators take precedence over specs.
func Classify(n *yaml.Node) Kind {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return KindUnrecognized
	}
	if isSequence(lookup(n, "tools")) {
		return KindAggregator
	}
	if nonEmptyScalar(lookup(n, "id")) && nonEmptyScalar(lookup(n, "title")) {
		return KindSpec
	}
	return KindUnrecognized
}

// FindAggregator returns the first export that is an aggregator, default export first.
func FindAggregator(m *Module) (Export, bool) {
	for _, e := range m.Exports() {
		if Classify(e.Node) == KindAggregator {
			return e, true
		}
	}
	return Export{}, false
}

// Lookup returns the value of key in a mapping export, or nil.
func Lookup(n *yaml.Node, key string) *yaml.Node {
	return lookup(n, key)
}

func nonEmptyScalar(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() != "!!null" && strings.TrimSpace(n.Value) != ""
}
