package runner

import (
	"bytes"
	"fmt"
	"strings"

	"agentq/internal/script"
)

const (
	ReasonExpectedMissing = "expected content not found"
	ReasonForbiddenFound  = "forbidden content found"
)

// Outcome is the verdict on one response.
type Outcome struct {
	OK      bool
	Reasons []string
}

// Reason joins every failure reason into one message.
func (o Outcome) Reason() string {
	return strings.Join(o.Reasons, "; ")
}

func failed(reason string) Outcome {
	return Outcome{Reasons: []string{reason}}
}

// Verify checks a response against the spec's content rules. Status codes of
// 400 and above fail. A status of 0 means the transport reported none.
func Verify(spec script.RequestSpec, status int, body []byte) Outcome {
	var reasons []string
	if status >= 400 {
		reasons = append(reasons, fmt.Sprintf("HTTP %d", status))
	}
	if spec.Verify != "" && !bytes.Contains(body, []byte(spec.Verify)) {
		reasons = append(reasons, ReasonExpectedMissing)
	}
	if spec.VerifyNegative != "" && bytes.Contains(body, []byte(spec.VerifyNegative)) {
		reasons = append(reasons, ReasonForbiddenFound)
	}
	return Outcome{OK: len(reasons) == 0, Reasons: reasons}
}
