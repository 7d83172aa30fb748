package script

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSource is returned when a test case file cannot be parsed.
var ErrInvalidSource = errors.New("invalid test case source")

// Format selects a test case decoder.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

type xmlCases struct {
	Cases []xmlCase `xml:"case"`
}

type xmlCase struct {
	Repeat         string   `xml:"repeat,attr"`
	Method         string   `xml:"method"`
	URL            string   `xml:"url"`
	Body           string   `xml:"body"`
	Verify         string   `xml:"verify"`
	VerifyNegative string   `xml:"verify_negative"`
	Headers        []string `xml:"add_header"`
}

type yamlCases struct {
	Cases []yamlCase `yaml:"cases"`
}

type yamlCase struct {
	Method         string   `yaml:"method"`
	URL            string   `yaml:"url"`
	Body           string   `yaml:"body"`
	Verify         string   `yaml:"verify"`
	VerifyNegative string   `yaml:"verify_negative"`
	Headers        []string `yaml:"headers"`
	Repeat         int      `yaml:"repeat"`
}

// FormatFor picks a decoder from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatXML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: unsupported file extension %q", ErrInvalidSource, filepath.Ext(path))
}

// LoadFile reads a test case file and returns its validated request specs.
func LoadFile(path string) ([]RequestSpec, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(bytes.NewReader(data), format)
}

// Load decodes test cases from r.
func Load(r io.Reader, format Format) ([]RequestSpec, error) {
	var specs []RequestSpec
	var err error
	switch format {
	case FormatXML:
		specs, err = decodeXML(r)
	case FormatYAML:
		specs, err = decodeYAML(r)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidSource, format)
	}
	if err != nil {
		return nil, err
	}

	for i := range specs {
		spec := specs[i].WithDefaults()
		if !spec.HasContentType() {
			spec.Headers = append(spec.Headers, Header{Name: "Content-type", Value: DefaultContentType})
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: case %d: %v", ErrInvalidSource, i+1, err)
		}
		specs[i] = spec
	}
	return specs, nil
}

func decodeXML(r io.Reader) ([]RequestSpec, error) {
	var doc xmlCases
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	specs := make([]RequestSpec, 0, len(doc.Cases))
	for i, c := range doc.Cases {
		repeat := 1
		if s := strings.TrimSpace(c.Repeat); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: case %d: bad repeat %q", ErrInvalidSource, i+1, c.Repeat)
			}
			repeat = n
		}
		headers, err := parseHeaders(c.Headers)
		if err != nil {
			return nil, fmt.Errorf("%w: case %d: %v", ErrInvalidSource, i+1, err)
		}
		specs = append(specs, RequestSpec{
			Method:         c.Method,
			URL:            c.URL,
			Headers:        headers,
			Body:           c.Body,
			Verify:         c.Verify,
			VerifyNegative: c.VerifyNegative,
			Repeat:         repeat,
		})
	}
	return specs, nil
}

func decodeYAML(r io.Reader) ([]RequestSpec, error) {
	var doc yamlCases
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	specs := make([]RequestSpec, 0, len(doc.Cases))
	for i, c := range doc.Cases {
		if c.Repeat < 0 {
			return nil, fmt.Errorf("%w: case %d: bad repeat %d", ErrInvalidSource, i+1, c.Repeat)
		}
		headers, err := parseHeaders(c.Headers)
		if err != nil {
			return nil, fmt.Errorf("%w: case %d: %v", ErrInvalidSource, i+1, err)
		}
		specs = append(specs, RequestSpec{
			Method:         c.Method,
			URL:            c.URL,
			Headers:        headers,
			Body:           c.Body,
			Verify:         c.Verify,
			VerifyNegative: c.VerifyNegative,
			Repeat:         c.Repeat,
		})
	}
	return specs, nil
}

func parseHeaders(lines []string) ([]Header, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	headers := make([]Header, 0, len(lines))
	for _, line := range lines {
		h, err := ParseHeader(line)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}
