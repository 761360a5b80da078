package codegen

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

func writeJSHeaders(b *strings.Builder, headers []restmodel.Header, indent string) {
	b.WriteString("{\n")
	for i, h := range headers {
		b.WriteString(indent + "  ")
		b.WriteString(quote(h.Key))
		b.WriteString(": ")
		b.WriteString(quote(h.Value))
		if i < len(headers)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent + "}")
}

func renderFetch(s snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch(%s, {\n", quote(s.url))
	fmt.Fprintf(&b, "  method: %s", quote(s.method))
	if len(s.headers) > 0 {
		b.WriteString(",\n  headers: ")
		writeJSHeaders(&b, s.headers, "  ")
	}
	if s.hasBody {
		fmt.Fprintf(&b, ",\n  body: %s", quote(s.body))
	}
	b.WriteString("\n})\n")
	b.WriteString("  .then(response => response.text())\n")
	b.WriteString("  .then(data => console.log(data))\n")
	b.WriteString("  .catch(error => console.error(error));\n")
	return b.String()
}

func renderXHR(s snippet) string {
	var b strings.Builder
	b.WriteString("const xhr = new XMLHttpRequest();\n")
	fmt.Fprintf(&b, "xhr.open(%s, %s);\n", quote(s.method), quote(s.url))
	for _, h := range s.headers {
		fmt.Fprintf(&b, "xhr.setRequestHeader(%s, %s);\n", quote(h.Key), quote(h.Value))
	}
	b.WriteString("xhr.onload = function () {\n")
	b.WriteString("  console.log(xhr.status, xhr.responseText);\n")
	b.WriteString("};\n")
	b.WriteString("xhr.onerror = function () {\n")
	b.WriteString("  console.error(\"Request failed\");\n")
	b.WriteString("};\n")
	if s.hasBody {
		fmt.Fprintf(&b, "xhr.send(%s);\n", quote(s.body))
	} else {
		b.WriteString("xhr.send();\n")
	}
	return b.String()
}

// renderNode splits the URL into hostname/port/path for https.request. An
// URL that does not parse is handed to request() as is.
func renderNode(s snippet) string {
	module := "https"
	u, err := url.Parse(s.url)
	parsed := err == nil && u.Host != ""
	if parsed && u.Scheme == "http" {
		module = "http"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "const %s = require(%s);\n\n", module, quote(module))
	b.WriteString("const options = {\n")
	if parsed {
		fmt.Fprintf(&b, "  hostname: %s,\n", quote(u.Hostname()))
		if port := u.Port(); port != "" {
			fmt.Fprintf(&b, "  port: %s,\n", port)
		}
		fmt.Fprintf(&b, "  path: %s,\n", quote(u.RequestURI()))
	}
	fmt.Fprintf(&b, "  method: %s", quote(s.method))
	if len(s.headers) > 0 {
		b.WriteString(",\n  headers: ")
		writeJSHeaders(&b, s.headers, "  ")
	}
	b.WriteString("\n};\n\n")

	if parsed {
		fmt.Fprintf(&b, "const req = %s.request(options, res => {\n", module)
	} else {
		fmt.Fprintf(&b, "const req = %s.request(%s, options, res => {\n", module, quote(s.url))
	}
	b.WriteString("  let data = \"\";\n")
	b.WriteString("  res.on(\"data\", chunk => {\n")
	b.WriteString("    data += chunk;\n")
	b.WriteString("  });\n")
	b.WriteString("  res.on(\"end\", () => {\n")
	b.WriteString("    console.log(res.statusCode, data);\n")
	b.WriteString("  });\n")
	b.WriteString("});\n\n")
	b.WriteString("req.on(\"error\", error => {\n")
	b.WriteString("  console.error(error);\n")
	b.WriteString("});\n")
	if s.hasBody {
		fmt.Fprintf(&b, "req.write(%s);\n", quote(s.body))
	}
	b.WriteString("req.end();\n")
	return b.String()
}
