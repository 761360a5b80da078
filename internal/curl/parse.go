// Package curl turns a pasted curl command line into an editable request.
package curl

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

type optKind int

const (
	optMethod optKind = iota + 1
	optHeader
	optData
	optDataURLEncode
	optJSON
	optHead
	optGet
	optURL
	optUser
	optUserAgent
	optReferer
	optCookie
	optCompressed
	optIgnoredFlag
	optIgnoredValue
)

type optDef struct {
	kind     optKind
	hasValue bool
}

var longOpts = map[string]optDef{
	"request":        {optMethod, true},
	"header":         {optHeader, true},
	"data":           {optData, true},
	"data-ascii":     {optData, true},
	"data-raw":       {optData, true},
	"data-binary":    {optData, true},
	"data-urlencode": {optDataURLEncode, true},
	"json":           {optJSON, true},
	"head":           {optHead, false},
	"get":            {optGet, false},
	"url":            {optURL, true},
	"user":           {optUser, true},
	"user-agent":     {optUserAgent, true},
	"referer":        {optReferer, true},
	"cookie":         {optCookie, true},
	"compressed":     {optCompressed, false},

	"location":        {optIgnoredFlag, false},
	"insecure":        {optIgnoredFlag, false},
	"silent":          {optIgnoredFlag, false},
	"show-error":      {optIgnoredFlag, false},
	"verbose":         {optIgnoredFlag, false},
	"include":         {optIgnoredFlag, false},
	"fail":            {optIgnoredFlag, false},
	"http1.1":         {optIgnoredFlag, false},
	"http2":           {optIgnoredFlag, false},
	"output":          {optIgnoredValue, true},
	"max-time":        {optIgnoredValue, true},
	"connect-timeout": {optIgnoredValue, true},
	"proxy":           {optIgnoredValue, true},
	"cacert":          {optIgnoredValue, true},
	"cert":            {optIgnoredValue, true},
	"key":             {optIgnoredValue, true},
	"form":            {optIgnoredValue, true},
	"upload-file":     {optIgnoredValue, true},
	"write-out":       {optIgnoredValue, true},
	"retry":           {optIgnoredValue, true},
	"resolve":         {optIgnoredValue, true},
	"max-redirs":      {optIgnoredValue, true},
}

var shortOpts = map[byte]string{
	'X': "request",
	'H': "header",
	'd': "data",
	'I': "head",
	'G': "get",
	'u': "user",
	'A': "user-agent",
	'e': "referer",
	'b': "cookie",
	'L': "location",
	'k': "insecure",
	's': "silent",
	'S': "show-error",
	'v': "verbose",
	'i': "include",
	'f': "fail",
	'o': "output",
	'm': "max-time",
	'x': "proxy",
	'E': "cert",
	'F': "form",
	'T': "upload-file",
	'w': "write-out",
}

// Result is a parsed command plus anything it could not represent.
type Result struct {
	Request  restmodel.Request
	Warnings []string
}

type command struct {
	method    string
	urls      []string
	headers   []restmodel.Header
	data      []string
	forceGet  bool
	head      bool
	json      bool
	user      string
	warnings  []string
	seenWarns map[string]struct{}
}

// ParseCommand parses a single curl invocation and drops the warnings.
func ParseCommand(input string) (restmodel.Request, error) {
	res, err := Parse(input)
	if err != nil {
		return restmodel.Request{}, err
	}
	return res.Request, nil
}

func Parse(input string) (Result, error) {
	tokens, err := splitTokens(input)
	if err != nil {
		return Result{}, errdef.Wrap(errdef.CodeParse, err, "tokenize curl command")
	}
	idx := findCurl(tokens)
	if idx < 0 {
		return Result{}, errdef.New(errdef.CodeParse, "no curl command found")
	}

	cmd := &command{}
	if err := cmd.consume(tokens[idx+1:]); err != nil {
		return Result{}, err
	}
	return cmd.build()
}

// findCurl skips prompt markers and wrappers such as sudo or env so a
// copied terminal line still parses.
func findCurl(tokens []string) int {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case "$", "%", ">", "#", "sudo", "command", "time", "noglob", "exec":
			continue
		case "env":
			for i+1 < len(tokens) && strings.Contains(tokens[i+1], "=") {
				i++
			}
			continue
		}
		tok = strings.TrimPrefix(tok, "$")
		if tok == "curl" || strings.HasSuffix(tok, "/curl") || tok == "curl.exe" {
			return i
		}
		if strings.Contains(tok, "=") && !strings.HasPrefix(tok, "-") {
			continue
		}
		return -1
	}
	return -1
}

func (c *command) consume(args []string) error {
	positional := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if positional || arg == "-" || !strings.HasPrefix(arg, "-") {
			c.urls = append(c.urls, arg)
			continue
		}
		if arg == "--" {
			positional = true
			continue
		}
		if arg == "--next" || arg == "-:" {
			c.warn("only the first request of a --next chain is imported")
			return nil
		}

		if strings.HasPrefix(arg, "--") {
			name, val, inline := strings.Cut(arg[2:], "=")
			def, ok := longOpts[name]
			if !ok {
				c.warn(fmt.Sprintf("unsupported option --%s", name))
				continue
			}
			if def.hasValue && !inline {
				if i+1 >= len(args) {
					return errdef.New(errdef.CodeParse, "option --%s requires a value", name)
				}
				i++
				val = args[i]
			}
			c.apply(name, def, val)
			continue
		}

		// Short options may be bundled (-sSL) or carry a glued value (-XPOST).
		flags := arg[1:]
		for j := 0; j < len(flags); j++ {
			name, ok := shortOpts[flags[j]]
			if !ok {
				c.warn(fmt.Sprintf("unsupported option -%c", flags[j]))
				continue
			}
			def := longOpts[name]
			if !def.hasValue {
				c.apply(name, def, "")
				continue
			}
			val := flags[j+1:]
			if val == "" {
				if i+1 >= len(args) {
					return errdef.New(errdef.CodeParse, "option -%c requires a value", flags[j])
				}
				i++
				val = args[i]
			}
			c.apply(name, def, val)
			break
		}
	}
	return nil
}

func (c *command) apply(name string, def optDef, val string) {
	switch def.kind {
	case optMethod:
		c.method = strings.ToUpper(strings.TrimSpace(val))
	case optHeader:
		if h, ok := splitHeader(val); ok {
			c.headers = append(c.headers, h)
		} else {
			c.warn(fmt.Sprintf("ignored malformed header %q", val))
		}
	case optData:
		if strings.HasPrefix(val, "@") && name != "data-raw" {
			c.warn(fmt.Sprintf("file reference %s kept as literal body", val))
		}
		c.data = append(c.data, val)
	case optDataURLEncode:
		c.data = append(c.data, urlEncodeData(val))
	case optJSON:
		c.json = true
		c.data = append(c.data, val)
	case optHead:
		c.head = true
	case optGet:
		c.forceGet = true
	case optURL:
		c.urls = append(c.urls, val)
	case optUser:
		c.user = val
	case optUserAgent:
		c.headers = append(c.headers, restmodel.Header{Key: "User-Agent", Value: val})
	case optReferer:
		c.headers = append(c.headers, restmodel.Header{Key: "Referer", Value: val})
	case optCookie:
		if strings.Contains(val, "=") {
			c.headers = append(c.headers, restmodel.Header{Key: "Cookie", Value: val})
		} else {
			c.warn(fmt.Sprintf("cookie jar file %s ignored", val))
		}
	case optCompressed:
		if !c.hasHeader("Accept-Encoding") {
			c.headers = append(c.headers, restmodel.Header{Key: "Accept-Encoding", Value: "gzip, deflate, br"})
		}
	case optIgnoredFlag:
	case optIgnoredValue:
		c.warn(fmt.Sprintf("option --%s has no request equivalent", name))
	}
}

func (c *command) build() (Result, error) {
	if len(c.urls) == 0 {
		return Result{}, errdef.New(errdef.CodeParse, "curl command has no URL")
	}
	if len(c.urls) > 1 {
		c.warn(fmt.Sprintf("%d URLs given, using the first", len(c.urls)))
	}
	target := c.urls[0]
	body := strings.Join(c.data, "&")

	method := c.method
	switch {
	case method != "":
	case c.head:
		method = http.MethodHead
	case c.forceGet:
		method = http.MethodGet
	case len(c.data) > 0:
		method = http.MethodPost
	default:
		method = http.MethodGet
	}

	if c.forceGet && body != "" {
		target = appendQuery(target, body)
		body = ""
	}

	headers := c.headers
	if c.json {
		if !c.hasHeader("Content-Type") {
			headers = append(headers, restmodel.Header{Key: "Content-Type", Value: "application/json"})
		}
		if !c.hasHeader("Accept") {
			headers = append(headers, restmodel.Header{Key: "Accept", Value: "application/json"})
		}
	}
	if c.user != "" && !c.hasHeader("Authorization") {
		token := base64.StdEncoding.EncodeToString([]byte(c.user))
		headers = append(headers, restmodel.Header{Key: "Authorization", Value: "Basic " + token})
	}

	if body != "" && !restmodel.MethodAllowsBody(method) {
		c.warn(fmt.Sprintf("%s request body dropped", method))
		body = ""
	}

	return Result{
		Request: restmodel.Request{
			Method:  method,
			URL:     target,
			Body:    body,
			Headers: headers,
		},
		Warnings: c.warnings,
	}, nil
}

func (c *command) hasHeader(name string) bool {
	for _, h := range c.headers {
		if strings.EqualFold(h.Key, name) {
			return true
		}
	}
	return false
}

func (c *command) warn(msg string) {
	if c.seenWarns == nil {
		c.seenWarns = make(map[string]struct{})
	}
	if _, ok := c.seenWarns[msg]; ok {
		return
	}
	c.seenWarns[msg] = struct{}{}
	c.warnings = append(c.warnings, msg)
}

func splitHeader(raw string) (restmodel.Header, bool) {
	key, val, ok := strings.Cut(raw, ":")
	if !ok {
		return restmodel.Header{}, false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return restmodel.Header{}, false
	}
	return restmodel.Header{Key: key, Value: strings.TrimSpace(val)}, true
}

// urlEncodeData follows curl's --data-urlencode forms: "content",
// "=content" and "name=content". Only the content part is encoded.
func urlEncodeData(val string) string {
	name, content, ok := strings.Cut(val, "=")
	if !ok {
		return url.QueryEscape(val)
	}
	if name == "" {
		return url.QueryEscape(content)
	}
	return name + "=" + url.QueryEscape(content)
}

func appendQuery(target, query string) string {
	frag := ""
	if i := strings.Index(target, "#"); i >= 0 {
		target, frag = target[:i], target[i:]
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
		if strings.HasSuffix(target, "?") || strings.HasSuffix(target, "&") {
			sep = ""
		}
	}
	return target + sep + query + frag
}
