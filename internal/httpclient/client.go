package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/nettrace"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
	HTTP2              bool
}

// CallOptions is what the executor hands over after substitution. Body is
// sent only when non-empty; the caller decides whether a method carries one.
type CallOptions struct {
	Method  string
	Headers []restmodel.Header
	Body    string
}

// Reply is a fully read response.
type Reply struct {
	Status       int
	StatusText   string
	Proto        string
	Headers      http.Header
	Body         []byte
	EffectiveURL string
	Timeline     *nettrace.Timeline
}

func (r *Reply) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Caller performs one HTTP exchange. A non-nil error means no response was
// received at all; HTTP error statuses are not errors.
type Caller interface {
	Call(ctx context.Context, target string, opts CallOptions) (*Reply, error)
}

type CallerFunc func(ctx context.Context, target string, opts CallOptions) (*Reply, error)

func (f CallerFunc) Call(ctx context.Context, target string, opts CallOptions) (*Reply, error) {
	return f(ctx, target, opts)
}

type Client struct {
	opts        Options
	jar         http.CookieJar
	httpFactory func(Options) (*http.Client, error)

	mu     sync.Mutex
	client *http.Client
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{opts: opts, jar: jar}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory allows callers to override how the http.Client is created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
	c.client = nil
}

func (c *Client) httpClient() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	if c.httpFactory == nil {
		return nil, errdef.New(errdef.CodeHTTP, "http client factory unavailable")
	}
	client, err := c.httpFactory(c.opts)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *Client) Call(ctx context.Context, target string, opts CallOptions) (reply *Reply, err error) {
	client, err := c.httpClient()
	if err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	trace := nettrace.NewCollector(nil)
	httpReq, err := http.NewRequestWithContext(nettrace.WithTrace(ctx, trace), restmodel.NormalizeMethod(opts.Method), target, body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeInvalidURL, err, "build request")
	}
	for _, h := range opts.Headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		httpReq.Header.Add(h.Key, h.Value)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "perform request")
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeHTTP, closeErr, "close response body")
		}
	}()

	data, err := io.ReadAll(httpResp.Body)
	trace.End(nettrace.PhaseTransfer, err)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "read response body")
	}

	return &Reply{
		Status:       httpResp.StatusCode,
		StatusText:   reasonPhrase(httpResp),
		Proto:        httpResp.Proto,
		Headers:      httpResp.Header.Clone(),
		Body:         data,
		EffectiveURL: effURL(httpReq, httpResp),
		Timeline:     trace.Timeline(),
	}, nil
}

// reasonPhrase strips the numeric code from "404 Not Found".
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, code))
}

func effURL(req *http.Request, resp *http.Response) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	if req != nil && req.URL != nil {
		return req.URL.String()
	}
	return ""
}
