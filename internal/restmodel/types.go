package restmodel

import (
	"net/http"
	"strings"
)

type Header struct {
	Key   string `json:"key"   yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Request is the editable request state. Headers keep their order and may
// repeat keys.
type Request struct {
	Method  string   `json:"method"`
	URL     string   `json:"url"`
	Body    string   `json:"body"`
	Headers []Header `json:"headers"`
}

type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

func (r Request) Clone() Request {
	out := r
	if r.Headers != nil {
		out.Headers = append([]Header(nil), r.Headers...)
	}
	return out
}

func NormalizeMethod(method string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(method))
	if trimmed == "" {
		return http.MethodGet
	}
	return trimmed
}

func MethodAllowsBody(method string) bool {
	switch NormalizeMethod(method) {
	case http.MethodGet, http.MethodHead:
		return false
	default:
		return true
	}
}

// FlattenHeaders joins repeated header values with ", ".
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			out[name] = ""
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
