package vars

import (
	"regexp"

	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute replaces {{name}} tokens with values. Tokens without a value
// stay in the text verbatim, braces included.
func Substitute(text string, values map[string]string) string {
	if text == "" || len(values) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := values[name]; ok {
			return value
		}
		return match
	})
}

// Placeholders lists the distinct token names in text, in order of first use.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// SubstituteRequest resolves the url, the body and every header value.
// Header keys are left as typed.
func SubstituteRequest(req restmodel.Request, values map[string]string) restmodel.Request {
	out := req.Clone()
	out.URL = Substitute(req.URL, values)
	out.Body = Substitute(req.Body, values)
	for i := range out.Headers {
		out.Headers[i].Value = Substitute(out.Headers[i].Value, values)
	}
	return out
}
