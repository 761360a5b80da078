package codegen

import (
	"fmt"
	"strings"
)

// HttpRequestMessage rejects these on request.Headers; they belong to the
// content.
var contentHeaders = map[string]bool{
	"content-type":        true,
	"content-length":      true,
	"content-encoding":    true,
	"content-language":    true,
	"content-disposition": true,
}

func renderCSharp(s snippet) string {
	var b strings.Builder
	b.WriteString("using System;\n")
	b.WriteString("using System.Net.Http;\n")
	if s.hasBody {
		b.WriteString("using System.Text;\n")
	}
	b.WriteString("using System.Threading.Tasks;\n\n")
	b.WriteString("class Program\n{\n")
	b.WriteString("    static async Task Main()\n    {\n")
	b.WriteString("        using var client = new HttpClient();\n")
	fmt.Fprintf(&b, "        using var request = new HttpRequestMessage(new HttpMethod(%s), %s);\n", quote(s.method), quote(s.url))

	var deferred []int
	for i, h := range s.headers {
		if s.hasBody && contentHeaders[strings.ToLower(strings.TrimSpace(h.Key))] {
			deferred = append(deferred, i)
			continue
		}
		fmt.Fprintf(&b, "        request.Headers.TryAddWithoutValidation(%s, %s);\n", quote(h.Key), quote(h.Value))
	}
	if s.hasBody {
		fmt.Fprintf(&b, "        request.Content = new StringContent(%s, Encoding.UTF8);\n", quote(s.body))
		for _, i := range deferred {
			h := s.headers[i]
			fmt.Fprintf(&b, "        request.Content.Headers.Remove(%s);\n", quote(h.Key))
			fmt.Fprintf(&b, "        request.Content.Headers.TryAddWithoutValidation(%s, %s);\n", quote(h.Key), quote(h.Value))
		}
	}

	b.WriteString("\n        using var response = await client.SendAsync(request);\n")
	b.WriteString("        var body = await response.Content.ReadAsStringAsync();\n")
	b.WriteString("        Console.WriteLine((int)response.StatusCode);\n")
	b.WriteString("        Console.WriteLine(body);\n")
	b.WriteString("    }\n}\n")
	return b.String()
}
