package codegen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// renderPython passes JSON bodies through json= so requests sets the
// content type; anything else goes out verbatim as data=.
func renderPython(s snippet) string {
	jsonBody := s.hasBody && json.Valid([]byte(s.body))

	var b strings.Builder
	if jsonBody {
		b.WriteString("import json\n\n")
	}
	b.WriteString("import requests\n\n")
	fmt.Fprintf(&b, "url = %s\n", quote(s.url))

	args := []string{quote(s.method), "url"}
	if len(s.headers) > 0 {
		b.WriteString("headers = {\n")
		for _, h := range s.headers {
			fmt.Fprintf(&b, "    %s: %s,\n", quote(h.Key), quote(h.Value))
		}
		b.WriteString("}\n")
		args = append(args, "headers=headers")
	}
	switch {
	case jsonBody:
		fmt.Fprintf(&b, "payload = json.loads(%s)\n", quote(s.body))
		args = append(args, "json=payload")
	case s.hasBody:
		fmt.Fprintf(&b, "payload = %s\n", quote(s.body))
		args = append(args, "data=payload")
	}

	fmt.Fprintf(&b, "\nresponse = requests.request(%s)\n", strings.Join(args, ", "))
	b.WriteString("print(response.status_code)\n")
	b.WriteString("print(response.text)\n")
	return b.String()
}
