package charm

import (
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the three shapes a document value can take.
type Kind int

const (
	// Scalar is a single value: string, number, bool, or null.
	Scalar Kind = iota

	// Sequence is an ordered list of documents.
	Sequence

	// Mapping is an ordered set of key/document pairs.
	Mapping
)

// Document is one value in a metadata document. A whole metadata.yaml is a
// Document of kind Mapping; its values are themselves Documents.
// Mappings remember key insertion order so serialization is deterministic.
type Document struct {
	// Kind selects which of the remaining fields is meaningful.
	Kind Kind

	// Value holds the decoded scalar when Kind is Scalar.
	Value interface{}

	// Items holds the elements when Kind is Sequence.
	Items []*Document

	// Keys holds mapping keys in insertion order when Kind is Mapping.
	Keys []string

	// Fields holds the mapping values when Kind is Mapping.
	Fields map[string]*Document
}

// NewMapping returns an empty mapping document.
func NewMapping() *Document {
	return &Document{Kind: Mapping, Fields: make(map[string]*Document)}
}

// Set adds or replaces a mapping field, preserving first-insertion order.
func (d *Document) Set(key string, value *Document) {
	if _, ok := d.Fields[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	d.Fields[key] = value
}

// Get returns the mapping field for key, or nil when absent.
func (d *Document) Get(key string) *Document {
	if d == nil || d.Kind != Mapping {
		return nil
	}
	return d.Fields[key]
}

// DecodeDocument parses YAML data into a Document. An empty input decodes to
// an empty mapping.
func DecodeDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if len(root.Content) == 0 {
		return NewMapping(), nil
	}
	return fromYAML(root.Content[0])
}

// LoadDocument reads and parses the YAML document at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// EncodeDocument serializes a Document back to YAML.
func EncodeDocument(doc *Document) ([]byte, error) {
	node, err := toYAML(doc)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

// SaveDocument serializes doc and writes it to path.
func SaveDocument(path string, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge combines two documents into a new one. Neither input is modified.
// Rules, applied per mapping key present in either side:
//   - key in only one side: carried through
//   - both scalars: layer wins
//   - both sequences: base elements first, then layer elements not already
//     present (order-preserving union)
//   - both mappings: recurse
//   - kinds differ: layer wins outright (metadata schemas evolve; a shape
//     change is not an error)
func Merge(base, layer *Document) *Document {
	if base == nil {
		return layer.Clone()
	}
	if layer == nil {
		return base.Clone()
	}
	if base.Kind != layer.Kind {
		return layer.Clone()
	}

	switch base.Kind {
	case Mapping:
		out := NewMapping()
		for _, key := range base.Keys {
			if lv, ok := layer.Fields[key]; ok {
				out.Set(key, Merge(base.Fields[key], lv))
			} else {
				out.Set(key, base.Fields[key].Clone())
			}
		}
		for _, key := range layer.Keys {
			if _, ok := base.Fields[key]; !ok {
				out.Set(key, layer.Fields[key].Clone())
			}
		}
		return out

	case Sequence:
		out := &Document{Kind: Sequence}
		for _, item := range base.Items {
			out.Items = append(out.Items, item.Clone())
		}
		for _, item := range layer.Items {
			if !containsItem(out.Items, item) {
				out.Items = append(out.Items, item.Clone())
			}
		}
		return out

	default:
		return layer.Clone()
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Kind: d.Kind, Value: d.Value}
	if d.Items != nil {
		out.Items = make([]*Document, len(d.Items))
		for i, item := range d.Items {
			out.Items[i] = item.Clone()
		}
	}
	if d.Fields != nil {
		out.Fields = make(map[string]*Document, len(d.Fields))
		out.Keys = append([]string(nil), d.Keys...)
		for k, v := range d.Fields {
			out.Fields[k] = v.Clone()
		}
	}
	return out
}

// Equal reports whether two documents have the same shape and values.
// Mapping key order is not significant for equality.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case Scalar:
		return reflect.DeepEqual(d.Value, other.Value)
	case Sequence:
		if len(d.Items) != len(other.Items) {
			return false
		}
		for i, item := range d.Items {
			if !item.Equal(other.Items[i]) {
				return false
			}
		}
		return true
	default:
		if len(d.Fields) != len(other.Fields) {
			return false
		}
		for k, v := range d.Fields {
			ov, ok := other.Fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
}

func containsItem(items []*Document, candidate *Document) bool {
	for _, item := range items {
		if item.Equal(candidate) {
			return true
		}
	}
	return false
}

func fromYAML(node *yaml.Node) (*Document, error) {
	switch node.Kind {
	case yaml.MappingNode:
		out := NewMapping()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			value, err := fromYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(key, value)
		}
		return out, nil

	case yaml.SequenceNode:
		out := &Document{Kind: Sequence}
		for _, item := range node.Content {
			value, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, value)
		}
		return out, nil

	case yaml.ScalarNode:
		var value interface{}
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("decoding scalar at line %d: %w", node.Line, err)
		}
		return &Document{Kind: Scalar, Value: value}, nil

	case yaml.AliasNode:
		return fromYAML(node.Alias)

	default:
		return nil, fmt.Errorf("unsupported node kind %v at line %d", node.Kind, node.Line)
	}
}

func toYAML(doc *Document) (*yaml.Node, error) {
	switch doc.Kind {
	case Mapping:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range doc.Keys {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
			valueNode, err := toYAML(doc.Fields[key])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valueNode)
		}
		return node, nil

	case Sequence:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range doc.Items {
			itemNode, err := toYAML(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil

	default:
		node := &yaml.Node{}
		if err := node.Encode(doc.Value); err != nil {
			return nil, fmt.Errorf("encoding scalar %v: %w", doc.Value, err)
		}
		return node, nil
	}
}
