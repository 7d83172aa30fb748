package dummy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestContent(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	code, body := get(t, srv, "/content")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Welcome")

	_, body = get(t, srv, "/content?fail=1")
	assert.Contains(t, body, "Error")
	assert.NotContains(t, body, "Welcome")
}

func TestFlakyFailsEveryFifth(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	var failures int
	for i := 0; i < 20; i++ {
		if code, _ := get(t, srv, "/flaky"); code != http.StatusOK {
			failures++
		}
	}
	assert.Equal(t, 4, failures)
}
