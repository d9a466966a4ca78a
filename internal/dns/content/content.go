// Package content decides whether desired record content is already present
// in a stored recordset, accounting for per-type representation quirks.
package content

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

// wildcardSerial in a desired SOA matches any stored serial. Servers that
// auto-increment serials would otherwise never converge.
const wildcardSerial = "0"

// NormalizeForType rewrites value into the form the API returns for rtype.
// AAAA content is lower-cased. TXT content that is not already wrapped in
// double quotes gets one pair added; quotes inside the value are left alone.
func NormalizeForType(rtype dns.RecordType, value string) string {
	switch rtype {
	case dns.RecordTypeAAAA:
		return strings.ToLower(value)
	case dns.RecordTypeTXT:
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			return value
		}
		return `"` + value + `"`
	}
	return value
}

// NormalizeAll applies NormalizeForType to every value and drops duplicates,
// keeping first-seen order.
func NormalizeAll(rtype dns.RecordType, values []string) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = NormalizeForType(rtype, v)
		if seen.Has(v) {
			continue
		}
		seen.Insert(v)
		out = append(out, v)
	}
	return out
}

// SOASerial returns the serial (third field) of an SOA content string.
func SOASerial(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return "", &dns.MalformedContentError{Type: dns.RecordTypeSOA, Content: content}
	}
	return fields[2], nil
}

// SOAWithoutSerial returns content with its serial field removed.
func SOAWithoutSerial(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return "", &dns.MalformedContentError{Type: dns.RecordTypeSOA, Content: content}
	}
	return strings.Join(append(fields[:2:2], fields[3:]...), " "), nil
}

// ContentMatches reports whether desired is already present in existing.
// An SOA with serial 0 is compared with serials stripped on both sides;
// everything else is exact membership.
func ContentMatches(rtype dns.RecordType, desired string, existing []string) (bool, error) {
	if rtype != dns.RecordTypeSOA {
		return sets.New(existing...).Has(desired), nil
	}

	serial, err := SOASerial(desired)
	if err != nil {
		return false, err
	}
	if serial != wildcardSerial {
		return sets.New(existing...).Has(desired), nil
	}

	want, err := SOAWithoutSerial(desired)
	if err != nil {
		return false, err
	}
	for _, e := range existing {
		got, err := SOAWithoutSerial(e)
		if err != nil {
			return false, err
		}
		if got == want {
			return true, nil
		}
	}
	return false, nil
}

// Missing returns the desired entries that ContentMatches does not find in
// existing, in desired order.
func Missing(rtype dns.RecordType, desired, existing []string) ([]string, error) {
	var out []string
	for _, d := range desired {
		ok, err := ContentMatches(rtype, d, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Without returns the existing entries not matched by any desired entry, in
// existing order.
func Without(rtype dns.RecordType, existing, desired []string) ([]string, error) {
	var out []string
	for _, e := range existing {
		matched, err := matchedByAny(rtype, e, desired)
		if err != nil {
			return nil, err
		}
		if !matched {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetEqual reports whether desired and existing hold the same content when
// both are treated as sets, honouring the SOA serial wildcard.
func SetEqual(rtype dns.RecordType, desired, existing []string) (bool, error) {
	missing, err := Missing(rtype, desired, existing)
	if err != nil || len(missing) > 0 {
		return false, err
	}
	extra, err := Without(rtype, existing, desired)
	if err != nil {
		return false, err
	}
	return len(extra) == 0, nil
}

func matchedByAny(rtype dns.RecordType, existing string, desired []string) (bool, error) {
	for _, d := range desired {
		ok, err := ContentMatches(rtype, d, []string{existing})
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
