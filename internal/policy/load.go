package policy

import (
	"bytes"
	"fmt"
	"os"

	"warden/internal/models"

	"gopkg.in/yaml.v3"
)

type policyDoc struct {
	ID            string    `yaml:"id"`
	DefaultAction string    `yaml:"default_action"`
	Rules         []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	ID       string         `yaml:"id"`
	When     predicateDoc   `yaml:"when"`
	Action   string         `yaml:"action"`
	Severity int            `yaml:"severity"`
	Reason   string         `yaml:"reason"`
	Payload  map[string]any `yaml:"payload"`
}

type predicateDoc struct {
	Predicate
}

func (d *predicateDoc) UnmarshalYAML(n *yaml.Node) error {
	p, err := parsePredicate(n)
	if err != nil {
		return err
	}
	d.Predicate = p
	return nil
}

// LoadFile reads a YAML policy from path.
func LoadFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML policy. Unknown fields, predicate keys and actions
// are errors.
func Parse(raw []byte) (*Policy, error) {
	var doc policyDoc
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	defaultAction, err := models.ParseAction(doc.DefaultAction)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", doc.ID, err)
	}
	p := &Policy{ID: doc.ID, DefaultAction: defaultAction}
	for _, rd := range doc.Rules {
		action, err := models.ParseAction(rd.Action)
		if err != nil {
			return nil, fmt.Errorf("policy %s: rule %s: %w", doc.ID, rd.ID, err)
		}
		p.Rules = append(p.Rules, Rule{
			ID:       rd.ID,
			When:     rd.When.Predicate,
			Action:   action,
			Severity: rd.Severity,
			Reason:   rd.Reason,
			Payload:  models.Payload(rd.Payload),
		})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parsePredicate(n *yaml.Node) (Predicate, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: predicate must be a mapping with exactly one key", n.Line)
	}
	key, val := n.Content[0].Value, n.Content[1]

	switch key {
	case "any_of":
		var a struct {
			Path   string   `yaml:"path"`
			Values []string `yaml:"values"`
		}
		if err := decodeFields(val, &a, "path", "values"); err != nil {
			return nil, err
		}
		return AnyOf{Path: a.Path, Values: a.Values}, nil
	case "all_of":
		var paths []string
		if err := val.Decode(&paths); err != nil {
			return nil, fmt.Errorf("line %d: all_of: %w", val.Line, err)
		}
		return AllOf{Paths: paths}, nil
	case "at_least":
		var a struct {
			Path  string `yaml:"path"`
			Level string `yaml:"level"`
		}
		if err := decodeFields(val, &a, "path", "level"); err != nil {
			return nil, err
		}
		return AtLeast{Path: a.Path, Level: a.Level}, nil
	case "below", "above":
		var a struct {
			Path      string  `yaml:"path"`
			Threshold float64 `yaml:"threshold"`
		}
		if err := decodeFields(val, &a, "path", "threshold"); err != nil {
			return nil, err
		}
		if key == "below" {
			return Below{Path: a.Path, Threshold: a.Threshold}, nil
		}
		return Above{Path: a.Path, Threshold: a.Threshold}, nil
	case "equals":
		var a struct {
			Path  string `yaml:"path"`
			Value any    `yaml:"value"`
		}
		if err := decodeFields(val, &a, "path", "value"); err != nil {
			return nil, err
		}
		return Equals{Path: a.Path, Value: a.Value}, nil
	case "and", "or":
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s expects a list", val.Line, key)
		}
		children := make([]Predicate, 0, len(val.Content))
		for _, c := range val.Content {
			p, err := parsePredicate(c)
			if err != nil {
				return nil, err
			}
			children = append(children, p)
		}
		if key == "and" {
			return And(children), nil
		}
		return Or(children), nil
	case "not":
		p, err := parsePredicate(val)
		if err != nil {
			return nil, err
		}
		return Not{Pred: p}, nil
	}
	return nil, fmt.Errorf("line %d: unknown predicate %q", n.Line, key)
}

func decodeFields(n *yaml.Node, out any, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i < len(n.Content); i += 2 {
		k := n.Content[i].Value
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("line %d: unknown field %q", n.Content[i].Line, k)
		}
	}
	return n.Decode(out)
}
