package dns

import (
	"fmt"
	"strings"

	mdns "github.com/miekg/dns"
)

// RecordType is a DNS record type as named by the management API.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCAA   RecordType = "CAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeLUA   RecordType = "LUA"
	RecordTypeMX    RecordType = "MX"
	RecordTypeNS    RecordType = "NS"
	RecordTypePTR   RecordType = "PTR"
	RecordTypeSOA   RecordType = "SOA"
	RecordTypeSRV   RecordType = "SRV"
	RecordTypeSSHFP RecordType = "SSHFP"
	RecordTypeTXT   RecordType = "TXT"
)

// supportedTypes lists the types this tool manages. LUA is PowerDNS specific
// and unknown to miekg/dns.
var supportedTypes = map[RecordType]bool{
	RecordTypeA:     true,
	RecordTypeAAAA:  true,
	RecordTypeCAA:   true,
	RecordTypeCNAME: true,
	RecordTypeLUA:   true,
	RecordTypeMX:    true,
	RecordTypeNS:    true,
	RecordTypePTR:   true,
	RecordTypeSOA:   true,
	RecordTypeSRV:   true,
	RecordTypeSSHFP: true,
	RecordTypeTXT:   true,
}

// ParseRecordType upper-cases s and checks it is a supported record type.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(strings.ToUpper(strings.TrimSpace(s)))
	if !supportedTypes[rt] {
		return "", fmt.Errorf("unsupported record type %q", s)
	}
	if rt != RecordTypeLUA {
		if _, ok := mdns.StringToType[string(rt)]; !ok {
			return "", fmt.Errorf("unknown record type %q", s)
		}
	}
	return rt, nil
}

// SupportsPTR reports whether the server can maintain a reverse PTR for rt.
func (rt RecordType) SupportsPTR() bool {
	return rt == RecordTypeA || rt == RecordTypeAAAA
}

// NormalizeName returns name in canonical fully-qualified form with exactly
// one trailing dot. It is idempotent.
// e.g. "example.com" → "example.com."
// e.g. "example.com.." → "example.com."
func NormalizeName(name string) string {
	return mdns.Fqdn(strings.TrimRight(strings.TrimSpace(name), "."))
}

// QualifyName returns the canonical owner name of name inside zone. Names
// that are not already within zone get the zone appended; "" and "@" denote
// the zone apex.
// e.g. ("www", "example.com") → "www.example.com."
// e.g. ("www.example.com.", "example.com") → "www.example.com."
func QualifyName(name, zone string) string {
	zone = NormalizeName(zone)
	name = strings.TrimSpace(name)
	if name == "" || name == "@" {
		return zone
	}
	fqdn := NormalizeName(name)
	if mdns.IsSubDomain(zone, fqdn) {
		return fqdn
	}
	return NormalizeName(strings.TrimRight(name, ".") + "." + zone)
}
