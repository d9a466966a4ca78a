package dns

import (
	"context"
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// State is the desired presence of a recordset's content.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// RecordKey identifies a recordset inside a zone. Zone and Name are canonical
// (exactly one trailing dot) once built through NewRecordKey.
type RecordKey struct {
	Zone string
	Name string
	Type RecordType
}

// NewRecordKey qualifies name against zone and canonicalises both.
func NewRecordKey(zone, name string, rtype RecordType) RecordKey {
	return RecordKey{
		Zone: NormalizeName(zone),
		Name: QualifyName(name, zone),
		Type: rtype,
	}
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s (zone %s)", k.Name, k.Type, k.Zone)
}

// DesiredState describes what a single recordset should look like.
type DesiredState struct {
	Zone      string     `json:"zone" yaml:"zone"`
	Name      string     `json:"name" yaml:"name"`
	Type      RecordType `json:"type" yaml:"type"`
	Content   []string   `json:"content" yaml:"content"`
	TTL       int        `json:"ttl" yaml:"ttl"`
	Disabled  bool       `json:"disabled" yaml:"disabled"`
	Exclusive bool       `json:"exclusive" yaml:"exclusive"`
	SetPTR    bool       `json:"set_ptr" yaml:"set_ptr"`
	State     State      `json:"state" yaml:"state"`
}

// Key returns the canonical recordset identity of d.
func (d DesiredState) Key() RecordKey {
	return NewRecordKey(d.Zone, d.Name, d.Type)
}

// Validate reports every self-contradiction in d as a single InvalidRequestError.
func (d DesiredState) Validate() error {
	var errs []error
	if strings.Trim(d.Zone, ".") == "" {
		errs = append(errs, fmt.Errorf("zone is required"))
	}
	if _, err := ParseRecordType(string(d.Type)); err != nil {
		errs = append(errs, err)
	}
	if d.TTL <= 0 {
		errs = append(errs, fmt.Errorf("ttl must be a positive number of seconds, got %d", d.TTL))
	}
	switch d.State {
	case StatePresent:
		if len(d.Content) == 0 {
			errs = append(errs, fmt.Errorf("content is required when state is present"))
		}
	case StateAbsent:
		if len(d.Content) == 0 && !d.Exclusive {
			errs = append(errs, fmt.Errorf("content is required when state is absent and exclusive is false"))
		}
	default:
		errs = append(errs, fmt.Errorf("state must be %q or %q, got %q", StatePresent, StateAbsent, d.State))
	}
	if agg := utilerrors.NewAggregate(errs); agg != nil {
		return &InvalidRequestError{Reason: agg.Error()}
	}
	return nil
}

// Record is one content entry of a recordset as stored by the server.
type Record struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

// Recordset is a snapshot of a stored recordset. TTL is nil when the recordset
// does not exist.
type Recordset struct {
	Name    string     `json:"name"`
	Type    RecordType `json:"type"`
	TTL     *int       `json:"ttl"`
	Records []Record   `json:"records"`
}

// Exists reports whether the snapshot holds any content.
func (r *Recordset) Exists() bool {
	return r != nil && len(r.Records) > 0
}

// Contents returns the content strings in server order.
func (r *Recordset) Contents() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		out = append(out, rec.Content)
	}
	return out
}

// Provider is the management API capability the reconciler works against.
// Every mutation replaces or deletes a whole recordset.
type Provider interface {
	// GetRecordset returns an empty Recordset (no records, nil TTL) when the
	// recordset does not exist.
	GetRecordset(ctx context.Context, key RecordKey) (*Recordset, error)
	// ReplaceRecordset stores records, each with its own disabled flag, as
	// the complete content of the recordset.
	ReplaceRecordset(ctx context.Context, key RecordKey, records []Record, ttl int, setPTR bool) error
	DeleteRecordset(ctx context.Context, key RecordKey) error
}
