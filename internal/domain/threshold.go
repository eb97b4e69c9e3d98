package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalJSON accepts the object form as well as the shorthands 50 (Number),
// "Retail" (Text) and ["Retail", 0.5] (Set). A list always decodes into Set;
// Bounds reads a two-number list as an in_range operand.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	switch trimmed[0] {
	case '{':
		type plain Threshold
		return json.Unmarshal(trimmed, (*plain)(t))
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		t.Text = &s
	case '[':
		var items []interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		set, err := setFromItems(items)
		if err != nil {
			return err
		}
		t.Set = set
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("threshold must be a number, text, list or object: %w", err)
		}
		t.Number = &n
	}
	return nil
}

// UnmarshalYAML accepts the same shorthands as UnmarshalJSON.
func (t *Threshold) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		type plain Threshold
		return value.Decode((*plain)(t))
	case yaml.SequenceNode:
		var items []interface{}
		if err := value.Decode(&items); err != nil {
			return err
		}
		set, err := setFromItems(items)
		if err != nil {
			return err
		}
		t.Set = set
	case yaml.ScalarNode:
		if value.Tag == "!!int" || value.Tag == "!!float" {
			var n float64
			if err := value.Decode(&n); err != nil {
				return err
			}
			t.Number = &n
			return nil
		}
		if value.Tag == "!!null" {
			return nil
		}
		s := value.Value
		t.Text = &s
	default:
		return fmt.Errorf("unsupported threshold at line %d", value.Line)
	}
	return nil
}

func setFromItems(items []interface{}) ([]string, error) {
	set := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			set = append(set, v)
		case float64:
			set = append(set, FormatNumber(v))
		case int:
			set = append(set, FormatNumber(float64(v)))
		default:
			return nil, fmt.Errorf("unsupported set member %v", item)
		}
	}
	return set, nil
}

// Bounds returns the in_range operand. Min and Max win when both are set;
// otherwise a Set of exactly two numbers, the [10, 60] shorthand, is read as
// [min, max].
func (t Threshold) Bounds() (lo, hi float64, ok bool) {
	if t.Min != nil && t.Max != nil {
		return *t.Min, *t.Max, true
	}
	if t.Min != nil || t.Max != nil || len(t.Set) != 2 {
		return 0, 0, false
	}
	var err error
	if lo, err = strconv.ParseFloat(strings.TrimSpace(t.Set[0]), 64); err != nil {
		return 0, 0, false
	}
	if hi, err = strconv.ParseFloat(strings.TrimSpace(t.Set[1]), 64); err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}
