package codec

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jtacoma/uritemplates"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

const (
	RouteSegment  = "restful"
	RequestIDKey  = "requestId"
	DefaultLocale = "en"

	routeTemplate = "/{locale}/" + RouteSegment + "/{method}/{url}{/body}"
)

// h<n>_key / h<n>_value are held back for a structured header encoding.
var reservedHeaderKey = regexp.MustCompile(`^h\d+_(key|value)$`)

var routeTmpl = mustParseTemplate(routeTemplate)

type Route struct {
	Locale    string
	Request   restmodel.Request
	RequestID string
}

// BuildRoute renders the route as "path?query". Path segments are
// percent-escaped by the template expansion.
func (c *Codec) BuildRoute(r Route) (string, error) {
	path, err := c.BuildPath(r)
	if err != nil {
		return "", err
	}
	query := BuildQuery(r.Request.Headers, r.RequestID)
	if query == "" {
		return path, nil
	}
	return path + "?" + query, nil
}

func (c *Codec) BuildPath(r Route) (string, error) {
	locale := strings.TrimSpace(r.Locale)
	if locale == "" {
		locale = DefaultLocale
	}
	values := map[string]interface{}{
		"locale": locale,
		"method": restmodel.NormalizeMethod(r.Request.Method),
		"url":    c.EncodeURL(r.Request.URL),
	}
	if r.Request.Body != "" {
		if body := c.EncodeURL(r.Request.Body); body != "" {
			values["body"] = body
		}
	}
	path, err := routeTmpl.Expand(values)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeCodec, err, "expand route")
	}
	return path, nil
}

// BuildQuery writes one key=value pair per header in order, skipping blank
// keys, and appends requestId when set.
func BuildQuery(headers []restmodel.Header, requestID string) string {
	parts := make([]string, 0, len(headers)+1)
	for _, h := range headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		parts = append(parts, url.QueryEscape(h.Key)+"="+url.QueryEscape(h.Value))
	}
	if requestID != "" {
		parts = append(parts, RequestIDKey+"="+url.QueryEscape(requestID))
	}
	return strings.Join(parts, "&")
}

// ParseRoute rebuilds a route from an escaped path and raw query. Malformed
// url/body segments decode to "" with a notice; only a path that is not a
// request route at all is an error.
func (c *Codec) ParseRoute(escapedPath, rawQuery string) (Route, error) {
	segments := strings.Split(strings.Trim(escapedPath, "/"), "/")
	if len(segments) < 3 || len(segments) > 5 || segments[1] != RouteSegment {
		return Route{}, errdef.New(errdef.CodeCodec, "not a request route: %q", escapedPath)
	}
	locale, err := url.PathUnescape(segments[0])
	if err != nil {
		return Route{}, errdef.Wrap(errdef.CodeCodec, err, "decode locale")
	}
	method, err := url.PathUnescape(segments[2])
	if err != nil {
		return Route{}, errdef.Wrap(errdef.CodeCodec, err, "decode method")
	}

	route := Route{
		Locale: locale,
		Request: restmodel.Request{
			Method: restmodel.NormalizeMethod(method),
		},
	}
	if len(segments) > 3 {
		route.Request.URL = c.DecodeURL(segments[3])
	}
	if len(segments) > 4 {
		route.Request.Body = c.DecodeURL(segments[4])
	}
	route.Request.Headers, route.RequestID = ParseQuery(rawQuery)
	return route, nil
}

// ParseQuery keeps query order. requestId and reserved h<n>_key/value pairs
// are not headers.
func ParseQuery(rawQuery string) ([]restmodel.Header, string) {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return nil, ""
	}
	var (
		headers   []restmodel.Header
		requestID string
	)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		switch {
		case key == RequestIDKey:
			requestID = value
		case reservedHeaderKey.MatchString(key):
		case key == "":
		default:
			headers = append(headers, restmodel.Header{Key: key, Value: value})
		}
	}
	return headers, requestID
}

func mustParseTemplate(raw string) *uritemplates.UriTemplate {
	tmpl, err := uritemplates.Parse(raw)
	if err != nil {
		panic(err)
	}
	return tmpl
}
