package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<testcases>
  <case>
    <url>http://localhost:8080/</url>
  </case>
  <case repeat="5">
    <method>post</method>
    <url>http://localhost:8080/login</url>
    <body>user=bob&amp;pass=secret</body>
    <add_header>Content-type: application/x-www-form-urlencoded</add_header>
    <add_header>X-Trace: a:b</add_header>
    <verify>Welcome</verify>
    <verify_negative>Error</verify_negative>
  </case>
</testcases>`

func TestLoadXML(t *testing.T) {
	specs, err := Load(strings.NewReader(sampleXML), FormatXML)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	first := specs[0]
	assert.Equal(t, "GET", first.Method)
	assert.Equal(t, 1, first.Repeat)
	ct, ok := first.HeaderValue("content-type")
	require.True(t, ok)
	assert.Equal(t, DefaultContentType, ct)

	second := specs[1]
	assert.Equal(t, "POST", second.Method)
	assert.Equal(t, 5, second.Repeat)
	assert.Equal(t, "user=bob&pass=secret", second.Body)
	assert.Equal(t, "Welcome", second.Verify)
	assert.Equal(t, "Error", second.VerifyNegative)
	assert.Equal(t, []Header{
		{Name: "Content-type", Value: "application/x-www-form-urlencoded"},
		{Name: "X-Trace", Value: "a:b"},
	}, second.Headers)
}

func TestLoadXMLRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"malformed":    `<testcases><case>`,
		"bad repeat":   `<testcases><case repeat="x"><url>http://h/</url></case></testcases>`,
		"zero repeat":  `<testcases><case repeat="0"><url>http://h/</url></case></testcases>`,
		"bad header":   `<testcases><case><url>http://h/</url><add_header>nocolon</add_header></case></testcases>`,
		"relative url": `<testcases><case><url>/path</url></case></testcases>`,
		"bad method":   `<testcases><case><method>FETCH</method><url>http://h/</url></case></testcases>`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src), FormatXML)
			assert.ErrorIs(t, err, ErrInvalidSource)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	src := `
cases:
  - url: http://localhost:8080/api
    method: put
    body: '{"a":1}'
    headers:
      - "Content-Type: application/json"
    repeat: 3
  - url: http://localhost:8080/
`
	specs, err := Load(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "PUT", specs[0].Method)
	assert.Equal(t, 3, specs[0].Repeat)
	assert.Len(t, specs[0].Headers, 1)
	assert.Equal(t, "GET", specs[1].Method)
	assert.Equal(t, 1, specs[1].Repeat)
	assert.True(t, specs[1].HasContentType())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleXML), 0o644))

	specs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, specs, 2)

	_, err = LoadFile(filepath.Join(dir, "cases.txt"))
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = LoadFile(filepath.Join(dir, "missing.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScriptIsolatedFromCaller(t *testing.T) {
	specs := []RequestSpec{{Method: "GET", URL: "http://h/", Repeat: 1, Headers: []Header{{Name: "A", Value: "1"}}}}
	s := New(specs...)
	specs[0].URL = "http://other/"
	specs[0].Headers[0].Value = "2"

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "http://h/", s.At(0).URL)
	assert.Equal(t, "1", s.At(0).Headers[0].Value)
}

func TestValidate(t *testing.T) {
	ok := RequestSpec{Method: "GET", URL: "https://example.com/x", Repeat: 1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Repeat = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRequest)

	bad = ok
	bad.URL = "example.com"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRequest)
}
