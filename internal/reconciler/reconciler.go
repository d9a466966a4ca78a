// Package reconciler converges a single recordset towards a desired state
// with at most one mutating API call per invocation.
package reconciler

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns/content"
)

// Action is the mutation a reconcile decided on.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionReplace Action = "replace"
	ActionDelete  Action = "delete"
)

// Result is the outcome of one Reconcile call.
type Result struct {
	Changed bool   `json:"changed"`
	Action  Action `json:"action"`
	// Content is the complete content list submitted (or, in check mode,
	// that would have been submitted) by a create or replace.
	Content []string `json:"content,omitempty"`
	// Record is the recordset after the call: re-read from the server after a
	// write, predicted in check mode, nil after a delete or when nothing exists.
	Record *dns.Recordset `json:"record"`
}

// Reconciler drives one recordset to its desired state through a dns.Provider.
type Reconciler struct {
	provider  dns.Provider
	log       logr.Logger
	checkMode bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCheckMode makes Reconcile stop right before any mutating call and
// report what it would have done.
func WithCheckMode(enabled bool) Option {
	return func(r *Reconciler) { r.checkMode = enabled }
}

// New returns a Reconciler using provider for reads and writes.
func New(log logr.Logger, provider dns.Provider, opts ...Option) *Reconciler {
	r := &Reconciler{provider: provider, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// plan is the decision taken from a single read.
type plan struct {
	action  Action
	records []dns.Record
	ttl     int
	reason  string
}

func (p plan) contents() []string {
	if len(p.records) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec.Content)
	}
	return out
}

// Reconcile reads the current recordset, decides on the minimal corrective
// action and applies it. Invalid desired states are rejected before any
// remote call. Errors from the provider are returned wrapped but otherwise
// unchanged, and nothing is retried.
func (r *Reconciler) Reconcile(ctx context.Context, desired dns.DesiredState) (*Result, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	key := desired.Key()
	log := r.log.WithValues("name", key.Name, "type", key.Type, "zone", key.Zone)

	current, err := r.provider.GetRecordset(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("could not read record %s: %w", key.Name, err)
	}

	p, err := decide(desired, current)
	if err != nil {
		return nil, fmt.Errorf("could not compare record %s: %w", key.Name, err)
	}

	if p.action == ActionNone {
		log.V(1).Info("recordset in sync", "reason", p.reason)
		res := &Result{Action: ActionNone}
		if current.Exists() {
			res.Record = current
		}
		return res, nil
	}

	log.Info("recordset out of sync", "action", p.action, "reason", p.reason, "checkMode", r.checkMode)
	log.V(1).Info("computed target content", "content", p.contents(), "ttl", p.ttl)

	res := &Result{Changed: true, Action: p.action, Content: p.contents()}
	if r.checkMode {
		if p.action != ActionDelete {
			res.Record = predicted(key, p)
		}
		return res, nil
	}

	if p.action == ActionDelete {
		if err := r.provider.DeleteRecordset(ctx, key); err != nil {
			return nil, fmt.Errorf("could not delete record %s: %w", key.Name, err)
		}
		log.Info("deleted recordset")
		return res, nil
	}

	if err := r.provider.ReplaceRecordset(ctx, key, p.records, p.ttl, desired.SetPTR); err != nil {
		return nil, fmt.Errorf("could not %s record %s: %w", p.action, key.Name, err)
	}
	after, err := r.provider.GetRecordset(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("could not read record %s after %s: %w", key.Name, p.action, err)
	}
	res.Record = after
	log.Info("applied recordset", "action", p.action, "records", len(p.records))
	return res, nil
}

// decide maps (state, exclusive, current) to a plan. It is pure.
func decide(desired dns.DesiredState, current *dns.Recordset) (plan, error) {
	rtype := desired.Type
	want := content.NormalizeAll(rtype, desired.Content)
	existing := current.Contents()

	if desired.State == dns.StateAbsent {
		return decideAbsent(desired, want, current)
	}

	if !current.Exists() {
		return plan{action: ActionCreate, records: withFlag(want, desired.Disabled), ttl: desired.TTL, reason: "recordset does not exist"}, nil
	}

	ttlOK := current.TTL != nil && *current.TTL == desired.TTL
	disabledOK, err := disabledMatches(rtype, current.Records, want, desired.Disabled)
	if err != nil {
		return plan{}, err
	}

	if desired.Exclusive {
		equal, err := content.SetEqual(rtype, want, existing)
		if err != nil {
			return plan{}, err
		}
		if equal && ttlOK && disabledOK {
			return plan{action: ActionNone, reason: "content, ttl and disabled match"}, nil
		}
		return plan{action: ActionReplace, records: withFlag(want, desired.Disabled), ttl: desired.TTL, reason: mismatch(equal, ttlOK, disabledOK)}, nil
	}

	missing, err := content.Missing(rtype, want, existing)
	if err != nil {
		return plan{}, err
	}
	if len(missing) == 0 && ttlOK && disabledOK {
		return plan{action: ActionNone, reason: "all desired content present"}, nil
	}
	kept, err := merge(rtype, current.Records, want, desired.Disabled)
	if err != nil {
		return plan{}, err
	}
	return plan{
		action:  ActionReplace,
		records: append(kept, withFlag(missing, desired.Disabled)...),
		ttl:     desired.TTL,
		reason:  mismatch(len(missing) == 0, ttlOK, disabledOK),
	}, nil
}

func decideAbsent(desired dns.DesiredState, want []string, current *dns.Recordset) (plan, error) {
	if !current.Exists() {
		return plan{action: ActionNone, reason: "recordset already absent"}, nil
	}
	if desired.Exclusive {
		return plan{action: ActionDelete, reason: "exclusive removal of whole recordset"}, nil
	}

	var rest []dns.Record
	for _, rec := range current.Records {
		listed, err := isDesired(desired.Type, rec.Content, want)
		if err != nil {
			return plan{}, err
		}
		if !listed {
			rest = append(rest, rec)
		}
	}
	switch {
	case len(rest) == len(current.Records):
		return plan{action: ActionNone, reason: "no listed content present"}, nil
	case len(rest) == 0:
		return plan{action: ActionDelete, reason: "all remaining content removed"}, nil
	}

	// Removing entries keeps the recordset's own TTL.
	ttl := desired.TTL
	if current.TTL != nil {
		ttl = *current.TTL
	}
	return plan{action: ActionReplace, records: rest, ttl: ttl, reason: "listed content removed"}, nil
}

// disabledMatches reports whether every stored record whose content is
// desired carries the desired disabled flag.
func disabledMatches(rtype dns.RecordType, records []dns.Record, want []string, disabled bool) (bool, error) {
	for _, rec := range records {
		if rec.Disabled == disabled {
			continue
		}
		listed, err := isDesired(rtype, rec.Content, want)
		if err != nil {
			return false, err
		}
		if listed {
			return false, nil
		}
	}
	return true, nil
}

// isDesired reports whether stored content is matched by any desired entry.
func isDesired(rtype dns.RecordType, stored string, want []string) (bool, error) {
	rest, err := content.Without(rtype, []string{stored}, want)
	if err != nil {
		return false, err
	}
	return len(rest) == 0, nil
}

// merge returns the stored records, deduplicated and in order. Records whose
// content is desired take the desired disabled flag; all others keep theirs.
func merge(rtype dns.RecordType, stored []dns.Record, want []string, disabled bool) ([]dns.Record, error) {
	seen := sets.New[string]()
	out := make([]dns.Record, 0, len(stored)+len(want))
	for _, rec := range stored {
		if seen.Has(rec.Content) {
			continue
		}
		seen.Insert(rec.Content)
		listed, err := isDesired(rtype, rec.Content, want)
		if err != nil {
			return nil, err
		}
		if listed {
			rec.Disabled = disabled
		}
		out = append(out, rec)
	}
	return out, nil
}

func withFlag(contents []string, disabled bool) []dns.Record {
	out := make([]dns.Record, 0, len(contents))
	for _, c := range contents {
		out = append(out, dns.Record{Content: c, Disabled: disabled})
	}
	return out
}

func mismatch(contentOK, ttlOK, disabledOK bool) string {
	switch {
	case !contentOK:
		return "content differs"
	case !ttlOK:
		return "ttl differs"
	case !disabledOK:
		return "disabled flag differs"
	}
	return ""
}

func predicted(key dns.RecordKey, p plan) *dns.Recordset {
	ttl := p.ttl
	return &dns.Recordset{Name: key.Name, Type: key.Type, TTL: &ttl, Records: append([]dns.Record(nil), p.records...)}
}
