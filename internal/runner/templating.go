package runner

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"agentq/internal/script"

	"github.com/google/uuid"
)

// TemplateEngine renders per-request placeholders in URLs, bodies and header
// values.
type TemplateEngine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

// TemplateData is passed to the execution context. AgentID is 1-based.
type TemplateData struct {
	AgentID int
	UUID    string
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
		"uuid":         e.randomUUID,
	}

	return e
}

// Preprocess converts the short placeholders to template field access.
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{agentID}}", "{{.AgentID}}")
	s = strings.ReplaceAll(s, "{{uuid}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.UUID}}")
	return s
}

// Parse returns nil for text without placeholders so it can be sent verbatim.
func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	if !strings.Contains(text, "{{") {
		return nil, nil
	}
	return template.New(name).Funcs(e.funcMap).Parse(e.Preprocess(text))
}

func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// compiledSpec is a RequestSpec with its templates parsed once per run.
type compiledSpec struct {
	spec    script.RequestSpec
	url     *template.Template
	body    *template.Template
	headers []*template.Template
	dynamic bool
}

// verbatim wraps specs without parsing anything.
func verbatim(specs []script.RequestSpec) []compiledSpec {
	out := make([]compiledSpec, len(specs))
	for i, spec := range specs {
		out[i] = compiledSpec{spec: spec}
	}
	return out
}

// Compile parses every template in specs.
func (e *TemplateEngine) Compile(specs []script.RequestSpec) ([]compiledSpec, error) {
	out := make([]compiledSpec, len(specs))
	for i, spec := range specs {
		cs := compiledSpec{spec: spec, headers: make([]*template.Template, len(spec.Headers))}
		var err error
		if cs.url, err = e.Parse(fmt.Sprintf("url-%d", i), spec.URL); err != nil {
			return nil, fmt.Errorf("request %d url: %w", i+1, err)
		}
		if cs.body, err = e.Parse(fmt.Sprintf("body-%d", i), spec.Body); err != nil {
			return nil, fmt.Errorf("request %d body: %w", i+1, err)
		}
		cs.dynamic = cs.url != nil || cs.body != nil
		for j, h := range spec.Headers {
			if cs.headers[j], err = e.Parse(fmt.Sprintf("header-%d-%d", i, j), h.Value); err != nil {
				return nil, fmt.Errorf("request %d header %s: %w", i+1, h.Name, err)
			}
			cs.dynamic = cs.dynamic || cs.headers[j] != nil
		}
		out[i] = cs
	}
	return out, nil
}

// render produces the concrete request for agentID. On error the returned
// request still carries the raw method and URL.
func (c *compiledSpec) render(e *TemplateEngine, agentID int) (Request, error) {
	req := Request{
		Method:  c.spec.Method,
		URL:     c.spec.URL,
		Headers: c.spec.Headers,
		Body:    c.spec.Body,
	}
	if !c.dynamic {
		return req, nil
	}

	data := TemplateData{AgentID: agentID, UUID: uuid.NewString()}
	var err error
	if c.url != nil {
		if req.URL, err = e.Execute(c.url, data); err != nil {
			return Request{Method: c.spec.Method, URL: c.spec.URL}, fmt.Errorf("render url: %w", err)
		}
	}
	if c.body != nil {
		if req.Body, err = e.Execute(c.body, data); err != nil {
			return req, fmt.Errorf("render body: %w", err)
		}
	}
	copied := false
	for j, t := range c.headers {
		if t == nil {
			continue
		}
		if !copied {
			req.Headers = append([]script.Header(nil), c.spec.Headers...)
			copied = true
		}
		if req.Headers[j].Value, err = e.Execute(t, data); err != nil {
			return req, fmt.Errorf("render header %s: %w", req.Headers[j].Name, err)
		}
	}
	return req, nil
}

// --- Functions ---

func (e *TemplateEngine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *TemplateEngine) randomUUID() string {
	return uuid.New().String()
}

func (e *TemplateEngine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *TemplateEngine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if !ok {
		var err error
		if lines, err = e.loadLines(filename); err != nil {
			return "", err
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.Intn(len(lines))], nil
}

func (e *TemplateEngine) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			loaded = append(loaded, line)
		}
	}
	e.fileCache[filename] = loaded
	return loaded, nil
}
