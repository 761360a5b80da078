package codegen

import (
	"fmt"
	"strings"
)

func renderJava(s snippet) string {
	var b strings.Builder
	b.WriteString("import java.net.URI;\n")
	b.WriteString("import java.net.http.HttpClient;\n")
	b.WriteString("import java.net.http.HttpRequest;\n")
	b.WriteString("import java.net.http.HttpResponse;\n\n")
	b.WriteString("public class Main {\n")
	b.WriteString("    public static void main(String[] args) throws Exception {\n")
	b.WriteString("        HttpClient client = HttpClient.newHttpClient();\n")
	b.WriteString("        HttpRequest request = HttpRequest.newBuilder()\n")
	fmt.Fprintf(&b, "            .uri(URI.create(%s))\n", quote(s.url))
	for _, h := range s.headers {
		fmt.Fprintf(&b, "            .header(%s, %s)\n", quote(h.Key), quote(h.Value))
	}
	if s.hasBody {
		fmt.Fprintf(&b, "            .method(%s, HttpRequest.BodyPublishers.ofString(%s))\n", quote(s.method), quote(s.body))
	} else {
		fmt.Fprintf(&b, "            .method(%s, HttpRequest.BodyPublishers.noBody())\n", quote(s.method))
	}
	b.WriteString("            .build();\n\n")
	b.WriteString("        HttpResponse<String> response = client.send(request, HttpResponse.BodyHandlers.ofString());\n")
	b.WriteString("        System.out.println(response.statusCode());\n")
	b.WriteString("        System.out.println(response.body());\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}
