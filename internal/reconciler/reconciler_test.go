package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns/memory"
)

const (
	soaSerial0  = "ns1.example.com. hostmaster.example.com. 0 3600 900 604800 86400"
	soaSerial99 = "ns1.example.com. hostmaster.example.com. 99 3600 900 604800 86400"
)

func desiredA(content ...string) dns.DesiredState {
	return dns.DesiredState{
		Zone:      "example.com",
		Name:      "www",
		Type:      dns.RecordTypeA,
		Content:   content,
		TTL:       300,
		Exclusive: true,
		State:     dns.StatePresent,
	}
}

func records(content ...string) []dns.Record {
	out := make([]dns.Record, 0, len(content))
	for _, c := range content {
		out = append(out, dns.Record{Content: c})
	}
	return out
}

func contents(rs *dns.Recordset) []string {
	if rs == nil {
		return nil
	}
	return rs.Contents()
}

func TestReconcile_Matrix(t *testing.T) {
	tests := []struct {
		name        string
		seed        []string // nil means the recordset does not exist
		seedTTL     int
		desired     func() dns.DesiredState
		wantChanged bool
		wantAction  Action
		wantContent []string // content stored afterwards; nil when deleted/absent
		wantRecord  bool
	}{
		{
			name:        "present creates missing recordset",
			desired:     func() dns.DesiredState { return desiredA("192.0.2.1", "192.0.2.2") },
			wantChanged: true,
			wantAction:  ActionCreate,
			wantContent: []string{"192.0.2.1", "192.0.2.2"},
			wantRecord:  true,
		},
		{
			name:        "exclusive prunes superset",
			seed:        []string{"A", "B", "C"},
			seedTTL:     300,
			desired:     func() dns.DesiredState { return desiredA("A", "B") },
			wantChanged: true,
			wantAction:  ActionReplace,
			wantContent: []string{"A", "B"},
			wantRecord:  true,
		},
		{
			name:        "exclusive exact match is a no-op",
			seed:        []string{"B", "A"},
			seedTTL:     300,
			desired:     func() dns.DesiredState { return desiredA("A", "B") },
			wantAction:  ActionNone,
			wantContent: []string{"B", "A"},
			wantRecord:  true,
		},
		{
			name:        "exclusive ttl change rewrites",
			seed:        []string{"A", "B"},
			seedTTL:     60,
			desired:     func() dns.DesiredState { return desiredA("A", "B") },
			wantChanged: true,
			wantAction:  ActionReplace,
			wantContent: []string{"A", "B"},
			wantRecord:  true,
		},
		{
			name:    "non-exclusive merges",
			seed:    []string{"A"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA("B")
				d.Exclusive = false
				return d
			},
			wantChanged: true,
			wantAction:  ActionReplace,
			wantContent: []string{"A", "B"},
			wantRecord:  true,
		},
		{
			name:    "non-exclusive already present",
			seed:    []string{"A"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA("A")
				d.Exclusive = false
				return d
			},
			wantAction:  ActionNone,
			wantContent: []string{"A"},
			wantRecord:  true,
		},
		{
			name:    "non-exclusive ttl change keeps unrelated entries",
			seed:    []string{"A", "C"},
			seedTTL: 60,
			desired: func() dns.DesiredState {
				d := desiredA("A")
				d.Exclusive = false
				return d
			},
			wantChanged: true,
			wantAction:  ActionReplace,
			wantContent: []string{"A", "C"},
			wantRecord:  true,
		},
		{
			name:    "absent exclusive deletes whole recordset",
			seed:    []string{"A", "B"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA()
				d.State = dns.StateAbsent
				return d
			},
			wantChanged: true,
			wantAction:  ActionDelete,
		},
		{
			name: "absent exclusive on missing recordset",
			desired: func() dns.DesiredState {
				d := desiredA("A")
				d.State = dns.StateAbsent
				return d
			},
			wantAction: ActionNone,
		},
		{
			name:    "absent non-exclusive removes listed entries",
			seed:    []string{"A", "B"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA("A")
				d.State = dns.StateAbsent
				d.Exclusive = false
				return d
			},
			wantChanged: true,
			wantAction:  ActionReplace,
			wantContent: []string{"B"},
			wantRecord:  true,
		},
		{
			name:    "absent non-exclusive deletes when nothing remains",
			seed:    []string{"A", "B"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA("A", "B")
				d.State = dns.StateAbsent
				d.Exclusive = false
				return d
			},
			wantChanged: true,
			wantAction:  ActionDelete,
		},
		{
			name:    "absent non-exclusive without matches",
			seed:    []string{"A", "B"},
			seedTTL: 300,
			desired: func() dns.DesiredState {
				d := desiredA("C")
				d.State = dns.StateAbsent
				d.Exclusive = false
				return d
			},
			wantAction:  ActionNone,
			wantContent: []string{"A", "B"},
			wantRecord:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			desired := tt.desired()
			prov := memory.New(logr.Discard())
			if tt.seed != nil {
				prov.Seed(desired.Key(), tt.seedTTL, records(tt.seed...)...)
			}

			res, err := New(logr.Discard(), prov).Reconcile(ctx, desired)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", res.Changed, tt.wantChanged)
			}
			if res.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", res.Action, tt.wantAction)
			}
			if (res.Record != nil) != tt.wantRecord {
				t.Errorf("Record = %+v, want present=%v", res.Record, tt.wantRecord)
			}
			if diff := cmp.Diff(tt.wantContent, contents(res.Record)); diff != "" {
				t.Errorf("result content mismatch (-want +got):\n%s", diff)
			}

			stored, _ := prov.GetRecordset(ctx, desired.Key())
			if diff := cmp.Diff(tt.wantContent, nilIfEmpty(stored.Contents())); diff != "" {
				t.Errorf("stored content mismatch (-want +got):\n%s", diff)
			}

			mutations := len(prov.History())
			if tt.wantChanged && mutations != 1 {
				t.Errorf("expected exactly one mutation, got %d", mutations)
			}
			if !tt.wantChanged && mutations != 0 {
				t.Errorf("expected no mutation, got %d", mutations)
			}
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestReconcile_Idempotent(t *testing.T) {
	cases := map[string]dns.DesiredState{
		"exclusive":     desiredA("192.0.2.1", "192.0.2.2"),
		"non-exclusive": func() dns.DesiredState { d := desiredA("192.0.2.3"); d.Exclusive = false; return d }(),
		"txt unquoted": func() dns.DesiredState {
			d := desiredA("v=spf1 -all")
			d.Type = dns.RecordTypeTXT
			return d
		}(),
		"aaaa uppercase": func() dns.DesiredState {
			d := desiredA("2001:DB8::1")
			d.Type = dns.RecordTypeAAAA
			return d
		}(),
		"duplicates": desiredA("192.0.2.1", "192.0.2.1"),
		"disabled":   func() dns.DesiredState { d := desiredA("192.0.2.1"); d.Disabled = true; return d }(),
	}

	for name, desired := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			prov := memory.New(logr.Discard())
			prov.Seed(desired.Key(), 300, records("192.0.2.9")...)
			r := New(logr.Discard(), prov)

			first, err := r.Reconcile(ctx, desired)
			if err != nil {
				t.Fatalf("first reconcile: %v", err)
			}
			if !first.Changed {
				t.Fatal("expected first reconcile to change the recordset")
			}
			second, err := r.Reconcile(ctx, desired)
			if err != nil {
				t.Fatalf("second reconcile: %v", err)
			}
			if second.Changed {
				t.Errorf("expected second reconcile to be a no-op, got action %s", second.Action)
			}
		})
	}
}

func TestReconcile_SOAWildcardSerial(t *testing.T) {
	ctx := context.Background()
	desired := desiredA(soaSerial0)
	desired.Name = "@"
	desired.Type = dns.RecordTypeSOA

	prov := memory.New(logr.Discard())
	prov.Seed(desired.Key(), 300, records(soaSerial99)...)

	res, err := New(logr.Discard(), prov).Reconcile(ctx, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Errorf("expected serial 0 to match stored serial, got action %s", res.Action)
	}

	desired.Content = []string{"ns1.example.com. hostmaster.example.com. 100 3600 900 604800 86400"}
	res, err = New(logr.Discard(), prov).Reconcile(ctx, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Error("expected pinned serial to force a rewrite")
	}
}

func TestReconcile_MalformedSOA(t *testing.T) {
	desired := desiredA("ns1.example.com. hostmaster.example.com.")
	desired.Type = dns.RecordTypeSOA

	prov := memory.New(logr.Discard())
	prov.Seed(desired.Key(), 300, records(soaSerial99)...)

	_, err := New(logr.Discard(), prov).Reconcile(context.Background(), desired)
	var malformed *dns.MalformedContentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *dns.MalformedContentError, got %v", err)
	}
	if len(prov.History()) != 0 {
		t.Error("expected no mutation after malformed content")
	}
}

func TestReconcile_DisabledFlagDiffers(t *testing.T) {
	desired := desiredA("192.0.2.1")
	desired.Disabled = true

	prov := memory.New(logr.Discard())
	prov.Seed(desired.Key(), 300, records("192.0.2.1")...)

	res, err := New(logr.Discard(), prov).Reconcile(context.Background(), desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || res.Action != ActionReplace {
		t.Fatalf("expected replace, got changed=%v action=%s", res.Changed, res.Action)
	}
	if !res.Record.Records[0].Disabled {
		t.Error("expected record to be disabled afterwards")
	}
}

func TestReconcile_NonExclusiveKeepsStoredFlags(t *testing.T) {
	seed := []dns.Record{
		{Content: "192.0.2.1", Disabled: true},
		{Content: "192.0.2.2"},
		{Content: "192.0.2.4", Disabled: true},
	}

	tests := []struct {
		name    string
		desired func() dns.DesiredState
		want    []dns.Record
	}{
		{
			name: "present adds without touching other entries",
			desired: func() dns.DesiredState {
				d := desiredA("192.0.2.3")
				d.Exclusive = false
				return d
			},
			want: []dns.Record{
				{Content: "192.0.2.1", Disabled: true},
				{Content: "192.0.2.2"},
				{Content: "192.0.2.4", Disabled: true},
				{Content: "192.0.2.3"},
			},
		},
		{
			name: "present re-enables only the desired entry",
			desired: func() dns.DesiredState {
				d := desiredA("192.0.2.4")
				d.Exclusive = false
				return d
			},
			want: []dns.Record{
				{Content: "192.0.2.1", Disabled: true},
				{Content: "192.0.2.2"},
				{Content: "192.0.2.4"},
			},
		},
		{
			name: "absent keeps the remainder as stored",
			desired: func() dns.DesiredState {
				d := desiredA("192.0.2.2")
				d.Exclusive = false
				d.State = dns.StateAbsent
				return d
			},
			want: []dns.Record{
				{Content: "192.0.2.1", Disabled: true},
				{Content: "192.0.2.4", Disabled: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desired := tt.desired()
			prov := memory.New(logr.Discard())
			prov.Seed(desired.Key(), 300, seed...)

			res, err := New(logr.Discard(), prov).Reconcile(context.Background(), desired)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Changed || res.Action != ActionReplace {
				t.Fatalf("expected replace, got changed=%v action=%s", res.Changed, res.Action)
			}
			stored, _ := prov.GetRecordset(context.Background(), desired.Key())
			if diff := cmp.Diff(tt.want, stored.Records); diff != "" {
				t.Errorf("stored records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconcile_InvalidRequestMakesNoCalls(t *testing.T) {
	prov := memory.New(logr.Discard())
	desired := desiredA()

	_, err := New(logr.Discard(), prov).Reconcile(context.Background(), desired)
	var invalid *dns.InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *dns.InvalidRequestError, got %v", err)
	}
	if prov.Reads() != 0 || len(prov.History()) != 0 {
		t.Errorf("expected no remote calls, got %d reads and %d mutations", prov.Reads(), len(prov.History()))
	}
}

func TestReconcile_CheckMode(t *testing.T) {
	ctx := context.Background()
	desired := desiredA("A", "B")
	prov := memory.New(logr.Discard())
	prov.Seed(desired.Key(), 300, records("A", "B", "C")...)

	res, err := New(logr.Discard(), prov, WithCheckMode(true)).Reconcile(ctx, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || res.Action != ActionReplace {
		t.Fatalf("expected predicted replace, got changed=%v action=%s", res.Changed, res.Action)
	}
	if diff := cmp.Diff([]string{"A", "B"}, contents(res.Record)); diff != "" {
		t.Errorf("predicted content mismatch (-want +got):\n%s", diff)
	}
	if len(prov.History()) != 0 {
		t.Errorf("check mode must not mutate, got %+v", prov.History())
	}
	if prov.Reads() != 1 {
		t.Errorf("expected exactly one read in check mode, got %d", prov.Reads())
	}

	desired.State = dns.StateAbsent
	res, err = New(logr.Discard(), prov, WithCheckMode(true)).Reconcile(ctx, desired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != ActionDelete || res.Record != nil {
		t.Errorf("expected predicted delete with nil record, got %s %+v", res.Action, res.Record)
	}
}

func TestReconcile_DeleteDoesNotReRead(t *testing.T) {
	desired := desiredA()
	desired.State = dns.StateAbsent
	prov := memory.New(logr.Discard())
	prov.Seed(desired.Key(), 300, records("A")...)

	if _, err := New(logr.Discard(), prov).Reconcile(context.Background(), desired); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.Reads() != 1 {
		t.Errorf("expected a single read for a delete, got %d", prov.Reads())
	}
}

func TestReconcile_WriteReReads(t *testing.T) {
	prov := memory.New(logr.Discard())
	if _, err := New(logr.Discard(), prov).Reconcile(context.Background(), desiredA("A")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.Reads() != 2 {
		t.Errorf("expected read, write, re-read; got %d reads", prov.Reads())
	}
}

// failingWrites lets reads through and fails every mutation.
type failingWrites struct {
	*memory.Provider
	err error
}

func (f failingWrites) ReplaceRecordset(context.Context, dns.RecordKey, []dns.Record, int, bool) error {
	return f.err
}

func (f failingWrites) DeleteRecordset(context.Context, dns.RecordKey) error {
	return f.err
}

func TestReconcile_UpstreamErrorsPropagate(t *testing.T) {
	upstream := &dns.UpstreamError{StatusCode: 422, Message: "RRset contains duplicate records"}

	t.Run("read", func(t *testing.T) {
		prov := memory.New(logr.Discard())
		prov.Err = upstream
		_, err := New(logr.Discard(), prov).Reconcile(context.Background(), desiredA("A"))
		assertUpstream(t, err, 422)
	})

	t.Run("write", func(t *testing.T) {
		prov := failingWrites{Provider: memory.New(logr.Discard()), err: upstream}
		_, err := New(logr.Discard(), prov).Reconcile(context.Background(), desiredA("A"))
		assertUpstream(t, err, 422)
	})

	t.Run("check mode skips failing write", func(t *testing.T) {
		prov := failingWrites{Provider: memory.New(logr.Discard()), err: upstream}
		res, err := New(logr.Discard(), prov, WithCheckMode(true)).Reconcile(context.Background(), desiredA("A"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Changed {
			t.Error("expected predicted change")
		}
	})
}

func assertUpstream(t *testing.T, err error, code int) {
	t.Helper()
	var upstream *dns.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *dns.UpstreamError, got %v", err)
	}
	if upstream.StatusCode != code {
		t.Errorf("expected status %d, got %d", code, upstream.StatusCode)
	}
}
