package codegen

import "strings"

func renderCurl(s snippet) string {
	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(s.method)
	b.WriteString(" ")
	b.WriteString(quote(s.url))
	for _, h := range s.headers {
		b.WriteString(" \\\n  -H ")
		b.WriteString(quote(h.Key + ": " + h.Value))
	}
	if s.hasBody {
		b.WriteString(" \\\n  -d ")
		b.WriteString(quote(s.body))
	}
	b.WriteString("\n")
	return b.String()
}
