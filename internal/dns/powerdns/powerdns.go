package powerdns

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

func init() {
	dns.Register("powerdns", func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

const (
	changeTypeReplace = "REPLACE"
	changeTypeDelete  = "DELETE"

	defaultTimeout = 30 * time.Second
)

// Provider implements dns.Provider for the PowerDNS Authoritative HTTP API.
type Provider struct {
	baseURL     string
	server      string
	apiKey      string
	apiUsername string
	apiPassword string
	client      *http.Client
	log         logr.Logger
}

// New creates a PowerDNS provider from the given settings map.
// Optional settings: base_url (full API root, e.g. "https://pdns:8081/api/v1";
// otherwise built from protocol, host and port), protocol (default http),
// host (default 127.0.0.1), port (default 8081), server (default localhost),
// api_key, api_username, api_password, skip_tls_verify (default false),
// timeout (default 30s).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		protocol := valueOr(settings["protocol"], "http")
		if protocol != "http" && protocol != "https" {
			return nil, fmt.Errorf("powerdns: invalid protocol %q (want http or https)", protocol)
		}
		baseURL = fmt.Sprintf("%s://%s:%s/api/v1", protocol,
			valueOr(settings["host"], "127.0.0.1"), valueOr(settings["port"], "8081"))
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("powerdns: invalid base_url %q: %w", baseURL, err)
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("powerdns: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:     baseURL,
		server:      valueOr(settings["server"], "localhost"),
		apiKey:      settings["api_key"],
		apiUsername: settings["api_username"],
		apiPassword: settings["api_password"],
		client:      &http.Client{Transport: transport, Timeout: timeout},
		log:         log,
	}, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// zonePath returns the API path of a zone on the configured server.
func (p *Provider) zonePath(zone string) string {
	return fmt.Sprintf("servers/%s/zones/%s", url.PathEscape(p.server), url.PathEscape(zone))
}

// doRequest builds and executes an HTTP request against the PowerDNS API.
// Failures to reach the server are reported as *dns.UpstreamError with status 0.
func (p *Provider) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("powerdns: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := strings.TrimRight(p.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("powerdns: build request: %w", err)
	}

	switch {
	case p.apiKey != "":
		req.Header.Set("X-API-Key", p.apiKey)
	case p.apiUsername != "" && p.apiPassword != "":
		req.SetBasicAuth(p.apiUsername, p.apiPassword)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &dns.UpstreamError{URL: u, Message: err.Error()}
	}
	return resp, nil
}

// handleResponse decodes a successful response into out (when non-nil) and
// turns anything else into a *dns.UpstreamError.
func handleResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &dns.UpstreamError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Message: err.Error()}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &dns.UpstreamError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
		return nil
	case http.StatusNotFound:
		return &dns.UpstreamError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Message: "Not found"}
	}
	return &dns.UpstreamError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Message: errorMessage(data)}
}

// errorMessage extracts the server-provided message from an error body. It
// looks at "error", then "errors", then "msg", and falls back to the raw text.
func errorMessage(data []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, field := range []string{"error", "errors", "msg"} {
			if v, ok := body[field]; ok {
				return flatten(v)
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func flatten(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// zone is the subset of the zone document this provider reads.
type zone struct {
	Name   string  `json:"name"`
	RRsets []rrset `json:"rrsets"`
}

// rrset is a PowerDNS resource record set as sent and received over the API.
type rrset struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	TTL        *int     `json:"ttl,omitempty"`
	ChangeType string   `json:"changetype,omitempty"`
	Records    []record `json:"records"`
}

type record struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
	SetPTR   bool   `json:"set-ptr,omitempty"`
}

type zonePatch struct {
	RRsets []rrset `json:"rrsets"`
}

// GetRecordset fetches the zone filtered to key and returns the matching
// rrset. A missing rrset yields an empty Recordset; a missing zone is an error.
func (p *Provider) GetRecordset(ctx context.Context, key dns.RecordKey) (*dns.Recordset, error) {
	p.log.V(1).Info("reading recordset", "zone", key.Zone, "name", key.Name, "type", key.Type)

	query := url.Values{}
	query.Set("rrset_name", key.Name)
	query.Set("rrset_type", string(key.Type))
	resp, err := p.doRequest(ctx, http.MethodGet, p.zonePath(key.Zone), query, nil)
	if err != nil {
		return nil, err
	}

	var z zone
	if err := handleResponse(resp, &z); err != nil {
		return nil, err
	}

	// Older servers ignore the rrset filters and return the whole zone.
	for _, rr := range z.RRsets {
		if !strings.EqualFold(dns.NormalizeName(rr.Name), key.Name) || !strings.EqualFold(rr.Type, string(key.Type)) {
			continue
		}
		out := &dns.Recordset{Name: key.Name, Type: key.Type, TTL: rr.TTL, Records: make([]dns.Record, 0, len(rr.Records))}
		for _, r := range rr.Records {
			out.Records = append(out.Records, dns.Record{Content: r.Content, Disabled: r.Disabled})
		}
		if len(out.Records) == 0 {
			out.TTL = nil
		}
		return out, nil
	}
	return &dns.Recordset{Name: key.Name, Type: key.Type, Records: []dns.Record{}}, nil
}

// ReplaceRecordset replaces the whole content list of the recordset.
func (p *Provider) ReplaceRecordset(ctx context.Context, key dns.RecordKey, recs []dns.Record, ttl int, setPTR bool) error {
	p.log.Info("replacing recordset", "zone", key.Zone, "name", key.Name, "type", key.Type, "records", len(recs), "ttl", ttl)

	records := make([]record, 0, len(recs))
	for _, r := range recs {
		records = append(records, record{
			Content:  r.Content,
			Disabled: r.Disabled,
			SetPTR:   setPTR && key.Type.SupportsPTR(),
		})
	}
	body := zonePatch{RRsets: []rrset{{
		Name:       key.Name,
		Type:       string(key.Type),
		TTL:        &ttl,
		ChangeType: changeTypeReplace,
		Records:    records,
	}}}

	resp, err := p.doRequest(ctx, http.MethodPatch, p.zonePath(key.Zone), nil, body)
	if err != nil {
		return err
	}
	return handleResponse(resp, nil)
}

// DeleteRecordset removes the recordset from its zone.
func (p *Provider) DeleteRecordset(ctx context.Context, key dns.RecordKey) error {
	p.log.Info("deleting recordset", "zone", key.Zone, "name", key.Name, "type", key.Type)

	body := zonePatch{RRsets: []rrset{{
		Name:       key.Name,
		Type:       string(key.Type),
		ChangeType: changeTypeDelete,
		Records:    []record{},
	}}}

	resp, err := p.doRequest(ctx, http.MethodPatch, p.zonePath(key.Zone), nil, body)
	if err != nil {
		return err
	}
	return handleResponse(resp, nil)
}
