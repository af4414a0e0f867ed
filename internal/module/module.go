// Package module loads tool definition files as isolated units and inspects their exports.
//
// A file is a YAML (or JSON) document. Its exports are derived from the root mapping:
//   - a `default` key holds the default export and every other top-level key is a named export
//   - a root mapping that itself has an `id` key or a `tools` sequence is the default export as a whole
//   - otherwise every top-level key is a named export
//
// Named exports keep their declaration order.
package module

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/toolpane/toolpane/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultExport is the name reported for the default export.
const DefaultExport = "default"

// ErrNoSpecExport is returned when no export of a module is shaped like a tool spec.
var ErrNoSpecExport = errors.New("no export is shaped like a tool spec")

// Export is one value exposed by a module.
type Export struct {
	Name string
	Node *yaml.Node
}

// Module is a parsed tool definition file.
type Module struct {
	Path    string
	Default *yaml.Node
	Named   []Export
}

// Exports returns the default export (if any) followed by the named exports in order.
func (m *Module) Exports() []Export {
	exports := make([]Export, 0, len(m.Named)+1)
	if m.Default != nil {
		exports = append(exports, Export{Name: DefaultExport, Node: m.Default})
	}
	return append(exports, m.Named...)
}

// Loader reads modules from a filesystem.
type Loader struct {
	fs afero.Fs
}

func NewLoader(fsys afero.Fs) *Loader {
	return &Loader{fs: fsys}
}

// Load reads and parses the file at path.
func (l *Loader) Load(path string) (*Module, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	m, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Parse builds a module from the raw contents of a file.
func Parse(path string, data []byte) (*Module, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	m := &Module{Path: path}
	root := documentRoot(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		// scalars, sequences and empty documents export nothing
		return m, nil
	}

	if def := lookup(root, DefaultExport); def != nil {
		m.Default = def
		m.Named = namedExports(root, DefaultExport)
		return m, nil
	}
	if lookup(root, "id") != nil || isSequence(lookup(root, "tools")) {
		m.Default = root
		return m, nil
	}
	m.Named = namedExports(root, "")
	return m, nil
}

// ExtractSpec returns the first export that is a valid tool spec, preferring the default export.
// When exports look like specs but none validates, the first validation error is returned.
func ExtractSpec(m *Module) (*types.ToolSpec, string, error) {
	specs, errs := ExtractAll(m)
	if len(specs) > 0 {
		return specs[0].Spec, specs[0].Export, nil
	}
	if len(errs) > 0 {
		return nil, "", errs[0]
	}
	return nil, "", fmt.Errorf("%s: %w", m.Path, ErrNoSpecExport)
}

// Extracted is a validated spec together with the export it came from.
type Extracted struct {
	Export string
	Spec   *types.ToolSpec
}

// ExtractAll returns every export shaped like a tool spec that also validates, in export order.
// Exports that look like specs but fail to decode or validate are returned as errors.
func ExtractAll(m *Module) ([]Extracted, []error) {
	var (
		specs []Extracted
		errs  []error
	)
	for _, e := range m.Exports() {
		if Classify(e.Node) != KindSpec {
			continue
		}
		spec, err := DecodeSpec(e.Node)
		if err != nil {
			errs = append(errs, fmt.Errorf("export '%s' of %s: %w", e.Name, m.Path, err))
			continue
		}
		specs = append(specs, Extracted{Export: e.Name, Spec: spec})
	}
	return specs, errs
}

// DecodeSpec decodes a node into a tool spec and validates its structure.
func DecodeSpec(n *yaml.Node) (*types.ToolSpec, error) {
	var spec types.ToolSpec
	if err := n.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to decode tool spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	return resolve(doc.Content[0])
}

// resolve follows aliases so anchors can be reused across exports.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// lookup returns the value of key in a mapping node.
// Keys inherited through `<<` merge keys are found too; explicit keys win.
func lookup(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if isMergeKey(k) {
			merges = append(merges, resolve(n.Content[i+1]))
			continue
		}
		if k.Value == key {
			return resolve(n.Content[i+1])
		}
	}
	for _, m := range merges {
		if m == nil {
			continue
		}
		if m.Kind == yaml.SequenceNode {
			// earlier mappings in a merge sequence take precedence
			for _, item := range m.Content {
				if v := lookup(item, key); v != nil {
					return v
				}
			}
			continue
		}
		if v := lookup(m, key); v != nil {
			return v
		}
	}
	return nil
}

func isMergeKey(k *yaml.Node) bool {
	return k.Kind == yaml.ScalarNode && k.Value == "<<" && (k.Tag == "" || k.Tag == "!!merge" || k.Tag == "tag:yaml.org,2002:merge")
}

func isSequence(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.SequenceNode
}

func namedExports(root *yaml.Node, skip string) []Export {
	var exports []Export
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if name == skip {
			continue
		}
		exports = append(exports, Export{Name: name, Node: resolve(root.Content[i+1])})
	}
	return exports
}
