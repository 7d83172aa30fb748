package script

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidRequest is returned when a RequestSpec cannot be executed as written.
var ErrInvalidRequest = errors.New("invalid request")

// DefaultContentType is applied by the loaders when a case names no content type.
const DefaultContentType = "text/xml"

var methods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"OPTIONS": true,
	"TRACE":   true,
	"CONNECT": true,
}

// Header is one request header. Order is preserved and names may repeat.
type Header struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// RequestSpec describes one scripted request. It is never modified once a run
// has started; every agent reads the same values.
type RequestSpec struct {
	Method         string
	URL            string
	Headers        []Header
	Body           string
	Verify         string
	VerifyNegative string
	Repeat         int
}

// HeaderValue returns the first header matching name, ignoring case.
func (r RequestSpec) HeaderValue(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HasContentType reports whether any header sets the content type.
func (r RequestSpec) HasContentType() bool {
	_, ok := r.HeaderValue("Content-Type")
	return ok
}

// Validate checks the method, the URL and the repeat count.
func (r RequestSpec) Validate() error {
	if !methods[r.Method] {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: url %q is not absolute", ErrInvalidRequest, r.URL)
	}
	if r.Repeat < 1 {
		return fmt.Errorf("%w: repeat must be >= 1, got %d", ErrInvalidRequest, r.Repeat)
	}
	return nil
}

// WithDefaults fills the fields a test case may leave out.
func (r RequestSpec) WithDefaults() RequestSpec {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = "GET"
	}
	r.URL = strings.TrimSpace(r.URL)
	if r.Repeat == 0 {
		r.Repeat = 1
	}
	return r
}

func (r RequestSpec) clone() RequestSpec {
	if r.Headers != nil {
		h := make([]Header, len(r.Headers))
		copy(h, r.Headers)
		r.Headers = h
	}
	return r
}

// Script is an ordered, read-only sequence of request specs.
type Script struct {
	specs []RequestSpec
}

// New copies specs into a Script. Later changes to the caller's slice are not seen.
func New(specs ...RequestSpec) *Script {
	s := &Script{specs: make([]RequestSpec, len(specs))}
	for i, spec := range specs {
		s.specs[i] = spec.clone()
	}
	return s
}

func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.specs)
}

// At returns the spec at index i.
func (s *Script) At(i int) RequestSpec {
	return s.specs[i]
}

// Specs returns a copy of the whole sequence.
func (s *Script) Specs() []RequestSpec {
	if s == nil {
		return nil
	}
	out := make([]RequestSpec, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.clone()
	}
	return out
}

// ParseHeader splits a "Name: value" line.
func ParseHeader(line string) (Header, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return Header{}, fmt.Errorf("%w: malformed header %q", ErrInvalidRequest, line)
	}
	return Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}, nil
}
