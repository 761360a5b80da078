package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/codegen"
	"github.com/unkn0wn-root/reststudio/internal/curl"
	"github.com/unkn0wn-root/reststudio/internal/notify"
)

func newImportCurlCmd(opts *options) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "import-curl [command]",
		Short: "Turn a curl command line into a request",
		Long:  "Parse a curl command (argument or stdin) and print the request as JSON, or as a snippet with --lang.",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Print a snippet in this language instead of JSON")

	cmd.RunE = withApp(opts, func(a *app, args []string) error {
		input := ""
		if len(args) == 1 {
			input = args[0]
		} else {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			input = string(raw)
		}
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("no curl command given")
		}

		res, err := curl.Parse(input)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			a.styles.notice(a.errOut, notify.Notice{Level: notify.LevelWarning, Message: w})
		}
		if lang == "" {
			return writeJSON(a.out, res.Request)
		}
		language, ok := codegen.ParseLanguage(lang)
		if !ok {
			return fmt.Errorf("unknown language %q", lang)
		}
		_, err = io.WriteString(a.out, codegen.Generate(res.Request, language))
		return err
	})
	return cmd
}
