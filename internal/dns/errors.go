package dns

import "fmt"

// UpstreamError is returned for any failed exchange with the management API.
// StatusCode is 0 when no HTTP response was received.
type UpstreamError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request %s failed: %s", e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// InvalidRequestError reports a desired state that contradicts itself.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// MalformedContentError reports record content that lacks fields its type
// requires, e.g. an SOA without a serial.
type MalformedContentError struct {
	Type    RecordType
	Content string
}

func (e *MalformedContentError) Error() string {
	return fmt.Sprintf("malformed %s content %q", e.Type, e.Content)
}
