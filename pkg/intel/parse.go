package intel

import (
	"regexp"
	"strconv"
	"strings"
)

// Verdict is the parsed result of one fallback analysis call.
type Verdict struct {
	Malicious  bool
	Confidence int
	Reason     string
}

var (
	statusRe     = regexp.MustCompile(`(?i)STATUS:\s*(MALICIOUS|SAFE)`)
	confidenceRe = regexp.MustCompile(`(?i)CONFIDENCE:\s*(\d+)`)
	reasonRe     = regexp.MustCompile(`(?is)REASON:\s*(.*)`)
	printableRe  = regexp.MustCompile(`[ -~]{4,}`)
)

const defaultReason = "No explanation provided."

// ParseVerdict scrapes the fixed STATUS/CONFIDENCE/REASON markers out
// of a free-text analysis response. Absent markers default to the safe
// values: malicious=false, confidence 0. Confidence is clamped to
// [0,100].
func ParseVerdict(text string) Verdict {
	v := Verdict{Reason: defaultReason}

	if m := statusRe.FindStringSubmatch(text); m != nil {
		v.Malicious = strings.EqualFold(m[1], "MALICIOUS")
	}

	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			v.Confidence = clamp(n, 0, 100)
		}
	}

	if m := reasonRe.FindStringSubmatch(text); m != nil {
		if reason := strings.TrimSpace(m[1]); reason != "" {
			v.Reason = reason
		}
	}

	return v
}

// ExtractStrings pulls printable-character runs of at least four bytes
// out of binary data, newline joined and truncated to maxLen. Bounds
// the preview handed to the completion endpoint.
func ExtractStrings(data []byte, maxLen int) string {
	words := printableRe.FindAll(data, 2000)
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, string(w))
	}
	preview := strings.Join(parts, "\n")
	if len(preview) > maxLen {
		preview = preview[:maxLen]
	}
	return preview
}

// CleanRuleBody strips markdown code fences the completion endpoint
// tends to wrap synthesized rules in.
func CleanRuleBody(text string) string {
	text = strings.ReplaceAll(text, "```yara", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
