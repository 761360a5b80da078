// Package codegen renders a request model as a source snippet in one of a
// fixed set of languages. Rendering is pure: no I/O, no network.
package codegen

import (
	"strings"

	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

// Escape prepares s for a double-quoted literal. Only backslash, double
// quote, LF and CR are escaped; tabs and everything else pass through.
func Escape(s string) string {
	return escaper.Replace(s)
}

func quote(s string) string {
	return `"` + Escape(s) + `"`
}

// snippet is the request as every renderer sees it.
type snippet struct {
	method  string
	url     string
	headers []restmodel.Header
	body    string
	hasBody bool
}

func newSnippet(req restmodel.Request) snippet {
	s := snippet{
		method: restmodel.NormalizeMethod(req.Method),
		url:    strings.TrimSpace(req.URL),
	}
	for _, h := range req.Headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		s.headers = append(s.headers, h)
	}
	if restmodel.MethodAllowsBody(s.method) && req.Body != "" {
		s.body = req.Body
		s.hasBody = true
	}
	return s
}

// Generate returns "" for a blank URL or a Language outside the set.
func Generate(req restmodel.Request, lang Language) string {
	if strings.TrimSpace(req.URL) == "" {
		return ""
	}
	s := newSnippet(req)
	switch lang {
	case Curl:
		return renderCurl(s)
	case Fetch:
		return renderFetch(s)
	case XHR:
		return renderXHR(s)
	case NodeJS:
		return renderNode(s)
	case Python:
		return renderPython(s)
	case Java:
		return renderJava(s)
	case CSharp:
		return renderCSharp(s)
	case Go:
		return renderGo(s)
	default:
		return ""
	}
}

// GenerateAll renders every language, keyed by name.
func GenerateAll(req restmodel.Request) map[string]string {
	out := make(map[string]string, len(languageNames))
	for _, lang := range Languages() {
		out[lang.String()] = Generate(req, lang)
	}
	return out
}
