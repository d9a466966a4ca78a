package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

// Defaults applied to a desired state before file or flag values.
const (
	DefaultTTL       = 86400
	DefaultExclusive = true
)

// Content accepts either a single YAML scalar or a sequence of scalars.
type Content []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Content) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*c = nil
			return nil
		}
		*c = Content{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*c = items
		return nil
	}
	return fmt.Errorf("line %d: content must be a string or a list of strings", node.Line)
}

// RecordSpec is the on-disk form of a desired recordset state.
type RecordSpec struct {
	Zone      string  `yaml:"zone"`
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Content   Content `yaml:"content"`
	TTL       int     `yaml:"ttl"`
	Disabled  bool    `yaml:"disabled"`
	Exclusive bool    `yaml:"exclusive"`
	SetPTR    bool    `yaml:"set_ptr"`
	State     string  `yaml:"state"`
}

// DefaultRecordSpec returns a RecordSpec carrying the tool's defaults.
func DefaultRecordSpec() RecordSpec {
	return RecordSpec{
		TTL:       DefaultTTL,
		Exclusive: DefaultExclusive,
		State:     string(dns.StatePresent),
	}
}

// LoadRecordSpec reads a desired recordset state from a YAML file. Fields
// missing from the file keep their defaults.
func LoadRecordSpec(path string) (RecordSpec, error) {
	spec := DefaultRecordSpec()

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading record file: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parsing record file: %w", err)
	}
	return spec, nil
}

// DesiredState converts s into the reconciler's input. The record type is
// upper-cased so "txt" and "TXT" name the same recordset.
func (s RecordSpec) DesiredState() (dns.DesiredState, error) {
	rtype, err := dns.ParseRecordType(s.Type)
	if err != nil {
		return dns.DesiredState{}, &dns.InvalidRequestError{Reason: err.Error()}
	}
	return dns.DesiredState{
		Zone:      s.Zone,
		Name:      s.Name,
		Type:      rtype,
		Content:   append([]string(nil), s.Content...),
		TTL:       s.TTL,
		Disabled:  s.Disabled,
		Exclusive: s.Exclusive,
		SetPTR:    s.SetPTR,
		State:     dns.State(s.State),
	}, nil
}
