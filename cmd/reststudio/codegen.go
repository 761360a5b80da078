package main

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/codegen"
	"github.com/unkn0wn-root/reststudio/internal/notify"
)

func newCodegenCmd(opts *options) *cobra.Command {
	var (
		req       requestFlags
		lang      string
		copyOut   bool
		outPath   string
		force     bool
		highlight string
		style     string
	)
	cmd := &cobra.Command{
		Use:   "codegen [url]",
		Short: "Print a client snippet for a request",
		Long: heredoc.Docf(`
			Render the request as code. Supported languages: %s.
			Placeholders such as {{token}} are emitted unresolved.
		`, strings.Join(languageNames(), ", ")),
		Example: heredoc.Doc(`
			reststudio codegen --lang python -X POST https://api.example.com/users -d '{"a":1}'
			reststudio codegen --lang go --out client/main.go https://api.example.com
			reststudio codegen --curl "curl -H 'A: b' https://example.com" --lang fetch --copy
		`),
		Args: cobra.MaximumNArgs(1),
	}
	req.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&lang, "lang", "l", "curl", "Target language")
	fl.BoolVar(&copyOut, "copy", false, "Copy the snippet to the clipboard")
	fl.StringVarP(&outPath, "out", "o", "", "Write the snippet to a file")
	fl.BoolVar(&force, "force", false, "Overwrite --out if it exists")
	fl.StringVar(&highlight, "color", "auto", "Syntax highlighting: auto, always or never")
	fl.StringVar(&style, "style", codegen.DefaultStyle, "Chroma style used for highlighting")

	cmd.RunE = withApp(opts, func(a *app, args []string) error {
		language, ok := codegen.ParseLanguage(lang)
		if !ok {
			return fmt.Errorf("unknown language %q (want one of %s)", lang, strings.Join(languageNames(), ", "))
		}
		request, warnings, err := req.build(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		for _, w := range warnings {
			a.styles.notice(a.errOut, notify.Notice{Level: notify.LevelWarning, Message: w})
		}

		code := codegen.Generate(request, language)
		if code == "" {
			return fmt.Errorf("nothing to generate for an empty URL")
		}

		if outPath != "" {
			if err := codegen.WriteSnippet(a.ctx(), code, outPath, codegen.WriteOptions{OverwriteExisting: force}); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "wrote %s snippet to %s\n", language, outPath)
		}
		if copyOut {
			if err := clipboard.WriteAll(code); err != nil {
				return fmt.Errorf("copy to clipboard: %w", err)
			}
			fmt.Fprintf(a.errOut, "copied %s snippet to the clipboard\n", language)
		}
		if outPath != "" || copyOut {
			return nil
		}

		profile := termenv.Ascii
		switch highlight {
		case "always":
			profile = termenv.ANSI256
		case "auto":
			profile = a.styles.renderer.ColorProfile()
		case "never":
		default:
			return fmt.Errorf("invalid --color %q", highlight)
		}
		return codegen.Highlight(a.out, code, language, style, profile)
	})
	return cmd
}

func languageNames() []string {
	langs := codegen.Languages()
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, l.String())
	}
	return out
}
