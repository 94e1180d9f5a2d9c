package tt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownVariant is returned when a tagged union carries none of the known keys.
var ErrUnknownVariant = errors.New("unknown variant")

// DecodeVariant picks the payload of a single-key tagged union such as {"Leaf": {...}}.
// When several known keys are present the first one in keys wins.
func DecodeVariant(data []byte, keys ...string) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}
	for _, key := range keys {
		if payload, ok := fields[key]; ok {
			return key, payload, nil
		}
	}
	present := make([]string, 0, len(fields))
	for key := range fields {
		present = append(present, key)
	}
	return "", nil, fmt.Errorf("%w: expected one of %v, got %v", ErrUnknownVariant, keys, present)
}

type subtreeJSON struct {
	Delimiter  *Delimiter        `json:"delimiter"`
	TokenTrees []json.RawMessage `json:"token_trees"`
}

// MarshalJSON encodes the subtree with an explicit null delimiter and a non-null
// token_trees array.
func (s Subtree) MarshalJSON() ([]byte, error) {
	trees := make([]json.RawMessage, 0, len(s.TokenTrees))
	for i, tree := range s.TokenTrees {
		data, err := marshalTokenTree(tree)
		if err != nil {
			return nil, fmt.Errorf("token tree %d: %w", i, err)
		}
		trees = append(trees, data)
	}
	return json.Marshal(subtreeJSON{Delimiter: s.Delimiter, TokenTrees: trees})
}

// UnmarshalJSON decodes a subtree and its nested token trees.
func (s *Subtree) UnmarshalJSON(data []byte) error {
	var raw subtreeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	trees := make([]TokenTree, 0, len(raw.TokenTrees))
	for i, item := range raw.TokenTrees {
		tree, err := UnmarshalTokenTree(item)
		if err != nil {
			return fmt.Errorf("token tree %d: %w", i, err)
		}
		trees = append(trees, tree)
	}
	s.Delimiter = raw.Delimiter
	s.TokenTrees = trees
	return nil
}

// MarshalJSON encodes the tree as {"Leaf": {...}}.
func (t LeafTree) MarshalJSON() ([]byte, error) {
	leaf, err := marshalLeaf(t.Leaf)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"Leaf": leaf})
}

// MarshalJSON encodes the tree as {"Subtree": {...}}.
func (t SubtreeTree) MarshalJSON() ([]byte, error) {
	if t.Subtree == nil {
		return nil, errors.New("nil subtree")
	}
	return json.Marshal(map[string]*Subtree{"Subtree": t.Subtree})
}

func marshalTokenTree(tree TokenTree) ([]byte, error) {
	switch t := tree.(type) {
	case LeafTree:
		return t.MarshalJSON()
	case SubtreeTree:
		return t.MarshalJSON()
	default:
		return nil, fmt.Errorf("unsupported token tree %T", tree)
	}
}

func marshalLeaf(leaf Leaf) ([]byte, error) {
	var key string
	switch leaf.(type) {
	case Literal:
		key = "Literal"
	case Punct:
		key = "Punct"
	case Ident:
		key = "Ident"
	default:
		return nil, fmt.Errorf("unsupported leaf %T", leaf)
	}
	payload, err := json.Marshal(leaf)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{key: payload})
}

// UnmarshalTokenTree decodes {"Leaf": ...} or {"Subtree": ...}; Leaf wins if both are present.
func UnmarshalTokenTree(data []byte) (TokenTree, error) {
	key, payload, err := DecodeVariant(data, "Leaf", "Subtree")
	if err != nil {
		return nil, err
	}
	if key == "Leaf" {
		leaf, err := UnmarshalLeaf(payload)
		if err != nil {
			return nil, err
		}
		return LeafTree{Leaf: leaf}, nil
	}
	var sub Subtree
	if err := json.Unmarshal(payload, &sub); err != nil {
		return nil, err
	}
	return SubtreeTree{Subtree: &sub}, nil
}

// UnmarshalLeaf decodes {"Literal": ...}, {"Punct": ...} or {"Ident": ...}, in that priority.
func UnmarshalLeaf(data []byte) (Leaf, error) {
	key, payload, err := DecodeVariant(data, "Literal", "Punct", "Ident")
	if err != nil {
		return nil, err
	}
	switch key {
	case "Literal":
		var l Literal
		err = json.Unmarshal(payload, &l)
		return l, err
	case "Punct":
		var p Punct
		err = json.Unmarshal(payload, &p)
		return p, err
	default:
		var i Ident
		err = json.Unmarshal(payload, &i)
		return i, err
	}
}
