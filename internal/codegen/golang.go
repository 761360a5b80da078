package codegen

import (
	"fmt"
	"net/http"
	"strings"
)

const panicOnErr = "\tif err != nil {\n\t\tpanic(err)\n\t}\n"

func renderGo(s snippet) string {
	var b strings.Builder
	b.WriteString("package main\n\n")
	b.WriteString("import (\n")
	b.WriteString("\t\"fmt\"\n")
	b.WriteString("\t\"io\"\n")
	b.WriteString("\t\"net/http\"\n")
	if s.hasBody {
		b.WriteString("\t\"strings\"\n")
	}
	b.WriteString(")\n\n")
	b.WriteString("func main() {\n")

	bodyArg := "nil"
	if s.hasBody {
		fmt.Fprintf(&b, "\tbody := strings.NewReader(%s)\n", quote(s.body))
		bodyArg = "body"
	}
	fmt.Fprintf(&b, "\treq, err := http.NewRequest(%s, %s, %s)\n", quote(s.method), quote(s.url), bodyArg)
	b.WriteString(panicOnErr)

	seen := make(map[string]bool, len(s.headers))
	for _, h := range s.headers {
		canonical := http.CanonicalHeaderKey(h.Key)
		fn := "Set"
		if seen[canonical] {
			fn = "Add"
		}
		seen[canonical] = true
		fmt.Fprintf(&b, "\treq.Header.%s(%s, %s)\n", fn, quote(h.Key), quote(h.Value))
	}

	b.WriteString("\n\tresp, err := http.DefaultClient.Do(req)\n")
	b.WriteString(panicOnErr)
	b.WriteString("\tdefer resp.Body.Close()\n\n")
	b.WriteString("\tdata, err := io.ReadAll(resp.Body)\n")
	b.WriteString(panicOnErr)
	b.WriteString("\n\tfmt.Println(resp.Status)\n")
	b.WriteString("\tfmt.Println(string(data))\n")
	b.WriteString("}\n")
	return b.String()
}
