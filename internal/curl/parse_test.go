package curl

import (
	"strings"
	"testing"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

func headerValue(req restmodel.Request, name string) string {
	for _, h := range req.Headers {
		if strings.EqualFold(h.Key, name) {
			return h.Value
		}
	}
	return ""
}

func TestParseCommandSimpleGET(t *testing.T) {
	req, err := ParseCommand("curl https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL != "https://example.com" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if req.Body != "" || len(req.Headers) != 0 {
		t.Fatalf("expected bare request, got %+v", req)
	}
}

func TestParseCommandWithHeadersAndBody(t *testing.T) {
	cmd := "curl -X POST https://api.example.com/users -H 'Content-Type: application/json' --data '{\"name\":\"Sam\"}'"
	req, err := ParseCommand(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if got := headerValue(req, "Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	if req.Body != `{"name":"Sam"}` {
		t.Fatalf("unexpected body %q", req.Body)
	}
}

func TestParseCommandImplicitPost(t *testing.T) {
	req, err := ParseCommand("curl https://example.com --data foo=bar -d baz=qux")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" {
		t.Fatalf("expected POST fallback when data provided, got %s", req.Method)
	}
	if req.Body != "foo=bar&baz=qux" {
		t.Fatalf("expected joined data, got %q", req.Body)
	}
}

func TestParseCommandBasicAuth(t *testing.T) {
	req, err := ParseCommand("curl https://example.com -u user:pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := headerValue(req, "Authorization"); got != "Basic dXNlcjpwYXNz" {
		t.Fatalf("unexpected authorization %q", got)
	}
}

func TestParseCommandGluedValues(t *testing.T) {
	req, err := ParseCommand("curl -XPUT --header='X-Trace: 1' --url=https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "PUT" {
		t.Fatalf("expected PUT, got %s", req.Method)
	}
	if got := headerValue(req, "X-Trace"); got != "1" {
		t.Fatalf("expected glued header, got %q", got)
	}
	if req.URL != "https://example.com/a" {
		t.Fatalf("unexpected url %q", req.URL)
	}
}

func TestParseCommandPromptAndWrappers(t *testing.T) {
	cases := []string{
		"$ curl -sSL https://example.com",
		"sudo curl https://example.com",
		"env HTTPS_PROXY=none curl https://example.com",
		"/usr/bin/curl https://example.com",
	}
	for _, input := range cases {
		req, err := ParseCommand(input)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", input, err)
		}
		if req.URL != "https://example.com" {
			t.Fatalf("%q: unexpected url %q", input, req.URL)
		}
	}
}

func TestParseCommandLineContinuation(t *testing.T) {
	input := "curl https://example.com \\\n  -H 'Accept: text/plain' \\\r\n  -A tester"
	req, err := ParseCommand(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := headerValue(req, "Accept"); got != "text/plain" {
		t.Fatalf("unexpected accept %q", got)
	}
	if got := headerValue(req, "User-Agent"); got != "tester" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestParseCommandGetMovesDataToQuery(t *testing.T) {
	req, err := ParseCommand("curl -G https://example.com/search?lang=en -d q=go -d page=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.URL != "https://example.com/search?lang=en&q=go&page=2" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if req.Body != "" {
		t.Fatalf("expected empty body, got %q", req.Body)
	}
}

func TestParseCommandJSONShortcut(t *testing.T) {
	req, err := ParseCommand(`curl --json '{"a":1}' https://example.com`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" || req.Body != `{"a":1}` {
		t.Fatalf("unexpected request %+v", req)
	}
	if headerValue(req, "Content-Type") != "application/json" || headerValue(req, "Accept") != "application/json" {
		t.Fatalf("expected json headers, got %+v", req.Headers)
	}
}

func TestParseCommandDataURLEncode(t *testing.T) {
	req, err := ParseCommand("curl https://example.com --data-urlencode 'msg=hello world&more'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body != "msg=hello+world%26more" {
		t.Fatalf("unexpected body %q", req.Body)
	}
}

func TestParseCommandHeadAndMiscHeaders(t *testing.T) {
	req, err := ParseCommand("curl -I --compressed -e https://ref.example -b 'sid=1' https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "HEAD" {
		t.Fatalf("expected HEAD, got %s", req.Method)
	}
	if headerValue(req, "Accept-Encoding") == "" {
		t.Fatalf("expected accept-encoding from --compressed")
	}
	if headerValue(req, "Referer") != "https://ref.example" || headerValue(req, "Cookie") != "sid=1" {
		t.Fatalf("unexpected headers %+v", req.Headers)
	}
}

func TestParseCommandANSIQuoting(t *testing.T) {
	req, err := ParseCommand(`curl $'https://example.com/a\x41' -d $'line1\nline2'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.URL != "https://example.com/aA" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if req.Body != "line1\nline2" {
		t.Fatalf("unexpected body %q", req.Body)
	}
}

func TestParseWarnings(t *testing.T) {
	res, err := Parse("curl --frobnicate -o out.txt -X GET -d x=1 https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Request.Body != "" {
		t.Fatalf("expected GET body to be dropped, got %q", res.Request.Body)
	}
	joined := strings.Join(res.Warnings, "\n")
	for _, want := range []string{"--frobnicate", "--output", "GET request body dropped"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning mentioning %q, got %v", want, res.Warnings)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	cases := []string{
		"curl",
		"ls -la",
		"curl 'https://example.com",
		"curl https://example.com -H",
		"",
	}
	for _, input := range cases {
		_, err := ParseCommand(input)
		if err == nil {
			t.Fatalf("%q: expected error", input)
		}
		if errdef.CodeOf(err) != errdef.CodeParse {
			t.Fatalf("%q: expected parse code, got %q", input, errdef.CodeOf(err))
		}
	}
}

func TestSplitTokensKeepsEmptyQuotedWords(t *testing.T) {
	tokens, err := splitTokens(`curl -d '' "a b" c\ d`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"curl", "-d", "", "a b", "c d"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %q", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}
