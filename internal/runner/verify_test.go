package runner

import (
	"testing"

	"agentq/internal/script"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		spec    script.RequestSpec
		status  int
		body    string
		ok      bool
		reasons []string
	}{
		{name: "no rules", status: 200, body: "anything", ok: true},
		{name: "expected present", spec: script.RequestSpec{Verify: "Welcome"}, status: 200, body: "<h1>Welcome</h1>", ok: true},
		{name: "expected missing", spec: script.RequestSpec{Verify: "Welcome"}, status: 200, body: "Goodbye", reasons: []string{ReasonExpectedMissing}},
		{name: "forbidden present", spec: script.RequestSpec{VerifyNegative: "Error"}, status: 200, body: "Error 42", reasons: []string{ReasonForbiddenFound}},
		{name: "forbidden absent", spec: script.RequestSpec{VerifyNegative: "Error"}, status: 200, body: "fine", ok: true},
		{name: "server error", status: 503, body: "", reasons: []string{"HTTP 503"}},
		{name: "redirect is fine", status: 302, ok: true},
		{name: "no status surfaced", status: 0, ok: true},
		{
			name:    "all reasons in one outcome",
			spec:    script.RequestSpec{Verify: "Welcome", VerifyNegative: "Error"},
			status:  500,
			body:    "Internal Error",
			reasons: []string{"HTTP 500", ReasonExpectedMissing, ReasonForbiddenFound},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(tt.spec, tt.status, []byte(tt.body))
			assert.Equal(t, tt.ok, got.OK)
			assert.Equal(t, tt.reasons, got.Reasons)
		})
	}
}

func TestOutcomeReason(t *testing.T) {
	o := Outcome{Reasons: []string{"HTTP 500", ReasonExpectedMissing}}
	assert.Equal(t, "HTTP 500; expected content not found", o.Reason())
}
