package format

import (
	"regexp"
	"strings"
)

// CodeExtractor finds "<PREFIX>-dddd" order codes in free text.
type CodeExtractor struct {
	prefix string
	re     *regexp.Regexp
}

func NewCodeExtractor(prefix string) *CodeExtractor {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	return &CodeExtractor{
		prefix: prefix,
		re:     regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `-(\d{4})`),
	}
}

func (e *CodeExtractor) Prefix() string { return e.prefix }

// Extract returns the normalised code and true, or "" and false when the
// message carries none.
func (e *CodeExtractor) Extract(message string) (string, bool) {
	m := e.re.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return e.prefix + "-" + m[1], true
}
