package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/curl"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

// requestFlags build a request from -X/-H/-d or from a pasted curl line.
type requestFlags struct {
	method  string
	headers []string
	data    string
	curl    string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.method, "request", "X", "", "HTTP method (default GET)")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, `Header "Key: Value", repeatable`)
	fl.StringVarP(&f.data, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	fl.StringVar(&f.curl, "curl", "", "Build the request from a curl command line instead")
}

func (f *requestFlags) build(args []string, stdin io.Reader) (restmodel.Request, []string, error) {
	if f.curl != "" {
		res, err := curl.Parse(f.curl)
		if err != nil {
			return restmodel.Request{}, nil, err
		}
		return res.Request, res.Warnings, nil
	}
	if len(args) == 0 {
		return restmodel.Request{}, nil, fmt.Errorf("a URL argument or --curl is required")
	}
	headers, err := parseHeaders(f.headers)
	if err != nil {
		return restmodel.Request{}, nil, err
	}
	body, err := readData(f.data, stdin)
	if err != nil {
		return restmodel.Request{}, nil, err
	}
	return restmodel.Request{
		Method:  restmodel.NormalizeMethod(f.method),
		URL:     args[0],
		Headers: headers,
		Body:    body,
	}, nil, nil
}

func parseHeaders(raw []string) ([]restmodel.Header, error) {
	out := make([]restmodel.Header, 0, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		out = append(out, restmodel.Header{Key: key, Value: strings.TrimSpace(value)})
	}
	return out, nil
}

func readData(data string, stdin io.Reader) (string, error) {
	switch {
	case data == "@-":
		raw, err := io.ReadAll(stdin)
		return string(raw), err
	case strings.HasPrefix(data, "@"):
		raw, err := os.ReadFile(data[1:])
		return string(raw), err
	default:
		return data, nil
	}
}
