// Package memory provides an in-memory dns.Provider. It backs tests and
// dry runs that should not touch a real server.
package memory

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

func init() {
	dns.Register("memory", func(log logr.Logger, _ map[string]string) (dns.Provider, error) {
		return New(log), nil
	})
}

// Op names a mutation kept in the history.
type Op string

const (
	OpReplace Op = "replace"
	OpDelete  Op = "delete"
)

// Mutation is a snapshot of a single mutating call, kept for test assertions.
type Mutation struct {
	Op      Op
	Key     dns.RecordKey
	Records []dns.Record
	TTL     int
	SetPTR  bool
}

// Provider is an in-memory recordset store.
type Provider struct {
	mu      sync.Mutex
	sets    map[dns.RecordKey]*dns.Recordset
	history []Mutation
	reads   int
	log     logr.Logger

	// Err, when set, is returned by every call.
	Err error
}

// New returns an empty Provider.
func New(log logr.Logger) *Provider {
	return &Provider{
		sets: make(map[dns.RecordKey]*dns.Recordset),
		log:  log,
	}
}

// Seed stores a recordset without recording a mutation.
func (p *Provider) Seed(key dns.RecordKey, ttl int, records ...dns.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets[key] = &dns.Recordset{
		Name:    key.Name,
		Type:    key.Type,
		TTL:     &ttl,
		Records: append([]dns.Record(nil), records...),
	}
}

// GetRecordset returns a copy of the stored recordset, or an empty one.
func (p *Provider) GetRecordset(_ context.Context, key dns.RecordKey) (*dns.Recordset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.Err != nil {
		return nil, p.Err
	}
	rs, ok := p.sets[key]
	if !ok {
		return &dns.Recordset{Name: key.Name, Type: key.Type, Records: []dns.Record{}}, nil
	}
	ttl := *rs.TTL
	return &dns.Recordset{
		Name:    rs.Name,
		Type:    rs.Type,
		TTL:     &ttl,
		Records: append([]dns.Record(nil), rs.Records...),
	}, nil
}

// ReplaceRecordset overwrites the recordset's content. An empty record list
// removes the recordset, matching PowerDNS REPLACE semantics.
func (p *Provider) ReplaceRecordset(_ context.Context, key dns.RecordKey, records []dns.Record, ttl int, setPTR bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.history = append(p.history, Mutation{
		Op:      OpReplace,
		Key:     key,
		Records: append([]dns.Record(nil), records...),
		TTL:     ttl,
		SetPTR:  setPTR,
	})
	if len(records) == 0 {
		delete(p.sets, key)
		return nil
	}
	records = append([]dns.Record(nil), records...)
	p.sets[key] = &dns.Recordset{Name: key.Name, Type: key.Type, TTL: &ttl, Records: records}
	p.log.V(1).Info("replaced recordset", "key", key.String(), "records", len(records))
	return nil
}

// DeleteRecordset removes the recordset. Deleting a missing recordset is not an error.
func (p *Provider) DeleteRecordset(_ context.Context, key dns.RecordKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.history = append(p.history, Mutation{Op: OpDelete, Key: key})
	delete(p.sets, key)
	p.log.V(1).Info("deleted recordset", "key", key.String())
	return nil
}

// History returns all mutations made so far, oldest first.
func (p *Provider) History() []Mutation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Mutation, len(p.history))
	copy(out, p.history)
	return out
}

// Reads returns the number of GetRecordset calls made so far.
func (p *Provider) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}
