package codegen

import "strings"

// Language is the closed set of snippet targets.
type Language int

const (
	Curl Language = iota + 1
	Fetch
	XHR
	NodeJS
	Python
	Java
	CSharp
	Go
)

var languageNames = map[Language]string{
	Curl:   "curl",
	Fetch:  "fetch",
	XHR:    "xhr",
	NodeJS: "nodejs",
	Python: "python",
	Java:   "java",
	CSharp: "csharp",
	Go:     "go",
}

var languageAliases = map[string]Language{
	"node":   NodeJS,
	"c#":     CSharp,
	"cs":     CSharp,
	"golang": Go,
	"py":     Python,
}

func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return "unknown"
}

func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Language) UnmarshalText(text []byte) error {
	parsed, _ := ParseLanguage(string(text))
	*l = parsed
	return nil
}

// ParseLanguage is case-insensitive and accepts a few common aliases. An
// unknown name yields the zero Language, for which Generate returns "".
func ParseLanguage(name string) (Language, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for lang, n := range languageNames {
		if n == key {
			return lang, true
		}
	}
	if lang, ok := languageAliases[key]; ok {
		return lang, true
	}
	return 0, false
}

func Languages() []Language {
	return []Language{Curl, Fetch, XHR, NodeJS, Python, Java, CSharp, Go}
}

// Extension is the file extension a snippet is saved with.
func (l Language) Extension() string {
	switch l {
	case Curl:
		return ".sh"
	case Fetch, XHR, NodeJS:
		return ".js"
	case Python:
		return ".py"
	case Java:
		return ".java"
	case CSharp:
		return ".cs"
	case Go:
		return ".go"
	default:
		return ".txt"
	}
}

func (l Language) lexer() string {
	switch l {
	case Curl:
		return "bash"
	case Fetch, XHR, NodeJS:
		return "javascript"
	case Python:
		return "python"
	case Java:
		return "java"
	case CSharp:
		return "c#"
	case Go:
		return "go"
	default:
		return "plaintext"
	}
}
