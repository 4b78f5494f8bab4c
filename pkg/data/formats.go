package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/CTAG07/Quicksilver/pkg/convert"
	"github.com/CTAG07/Quicksilver/pkg/escape"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// ReadJSON merges a JSON document into n. Object keys become children in
// document order, array elements become children named by index, scalars
// become values (booleans as "1"/"0"), and null creates a node without a
// value.
func ReadJSON(n *Node, r io.Reader) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := readJSONValue(dec, n); err != nil {
		return fmt.Errorf("failed to decode json data: %w", err)
	}
	return nil
}

func readJSONValue(dec *json.Decoder, n *Node) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", keyTok)
				}
				if err = readJSONValue(dec, n.Create(key)); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err = readJSONValue(dec, n.Create(strconv.Itoa(i))); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected delimiter %v", v)
		}
		// Consume the closing delimiter.
		_, err = dec.Token()
		return err
	case string:
		n.SetValue(v)
	case json.Number:
		n.SetValue(v.String())
	case bool:
		n.SetValue(convert.FromBool(v))
	case nil:
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

// ReadYAML merges a YAML document into n with the same mapping rules as
// ReadJSON. Mapping order is preserved.
func ReadYAML(n *Node, r io.Reader) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode yaml data: %w", err)
	}
	return readYAMLNode(&doc, n)
}

func readYAMLNode(y *yaml.Node, n *Node) error {
	switch y.Kind {
	case yaml.DocumentNode:
		for _, c := range y.Content {
			if err := readYAMLNode(c, n); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(y.Content); i += 2 {
			key := y.Content[i]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if err := readYAMLNode(y.Content[i+1], n.Create(key.Value)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, c := range y.Content {
			if err := readYAMLNode(c, n.Create(strconv.Itoa(i))); err != nil {
				return err
			}
		}
	case yaml.AliasNode:
		return readYAMLNode(y.Alias, n)
	case yaml.ScalarNode:
		switch y.Tag {
		case "!!null":
		case "!!bool":
			var b bool
			if err := y.Decode(&b); err != nil {
				return err
			}
			n.SetValue(convert.FromBool(b))
		default:
			n.SetValue(y.Value)
		}
	}
	return nil
}

// snapshot is the CBOR representation of a node.
type snapshot struct {
	Name     string     `cbor:"1,keyasint"`
	Value    *string    `cbor:"2,keyasint,omitempty"`
	Mode     int        `cbor:"3,keyasint,omitempty"`
	Children []snapshot `cbor:"4,keyasint,omitempty"`
}

func toSnapshot(n *Node) snapshot {
	s := snapshot{Name: n.name, Mode: int(n.mode)}
	if n.hasValue {
		v := n.value
		s.Value = &v
	}
	for _, c := range n.children {
		s.Children = append(s.Children, toSnapshot(c))
	}
	return s
}

func fromSnapshot(s snapshot, parent *Node) *Node {
	var n *Node
	if parent == nil {
		n = &Node{name: s.Name}
	} else {
		n = parent.addChild(s.Name)
	}
	if s.Value != nil {
		n.value = *s.Value
		n.hasValue = true
	}
	n.mode = escape.Mode(s.Mode)
	for _, c := range s.Children {
		fromSnapshot(c, n)
	}
	return n
}

// EncodeCBOR serializes the subtree rooted at n, values and escape states
// included. The encoding is canonical, so equal trees encode to equal bytes.
func EncodeCBOR(n *Node) ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	b, err := encMode.Marshal(toSnapshot(n))
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}
	return b, nil
}

// DecodeCBOR rebuilds a detached tree from EncodeCBOR output.
func DecodeCBOR(b []byte) (*Node, error) {
	var s snapshot
	if err := cbor.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("CBOR decoding failed: %w", err)
	}
	return fromSnapshot(s, nil), nil
}
