package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/vars"
)

func newEnvCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Aliases: []string{"environments"},
		Short:   "Manage variable environments",
	}

	withVars := func(fn func(a *app, vs *vars.Store, args []string) error) func(*cobra.Command, []string) error {
		return withApp(opts, func(a *app, args []string) error {
			vs, err := a.Vars()
			if err != nil {
				return err
			}
			return fn(a, vs, args)
		})
	}
	mustExist := func(vs *vars.Store, name string) error {
		if !vs.EnvironmentExists(name) {
			return fmt.Errorf("environment %q not found", name)
		}
		return nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List environments and their variables",
		Args:  cobra.NoArgs,
		RunE: withVars(func(a *app, vs *vars.Store, _ []string) error {
			for _, name := range vs.GetEnv() {
				fmt.Fprintln(a.out, a.styles.heading.Render(name))
				for _, v := range vs.Variables(name) {
					fmt.Fprintf(a.out, "  %s = %s\n", a.styles.key.Render(v.Key), v.Value)
				}
			}
			return nil
		}),
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print one environment as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withVars(func(a *app, vs *vars.Store, args []string) error {
			if err := mustExist(vs, args[0]); err != nil {
				return err
			}
			return writeJSON(a.out, vs.Variables(args[0]))
		}),
	}

	set := &cobra.Command{
		Use:   "set ENV KEY VALUE",
		Short: "Set a variable, creating the environment if needed",
		Args:  cobra.ExactArgs(3),
		RunE: withVars(func(_ *app, vs *vars.Store, args []string) error {
			return vs.SetVariable(args[0], args[1], args[2])
		}),
	}

	unset := &cobra.Command{
		Use:   "unset ENV KEY",
		Short: "Remove a variable",
		Args:  cobra.ExactArgs(2),
		RunE: withVars(func(_ *app, vs *vars.Store, args []string) error {
			if !vs.VariableExists(args[0], args[1]) {
				return fmt.Errorf("variable %q not found in %q", args[1], args[0])
			}
			return vs.RemoveVariable(args[0], args[1])
		}),
	}

	rm := &cobra.Command{
		Use:   "rm NAME",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		RunE: withVars(func(_ *app, vs *vars.Store, args []string) error {
			if err := mustExist(vs, args[0]); err != nil {
				return err
			}
			return vs.RemoveEnv(args[0])
		}),
	}

	rename := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename an environment",
		Args:  cobra.ExactArgs(2),
		RunE: withVars(func(_ *app, vs *vars.Store, args []string) error {
			if err := mustExist(vs, args[0]); err != nil {
				return err
			}
			return vs.RenameEnv(args[0], args[1])
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear NAME",
		Short: "Remove every variable of an environment",
		Args:  cobra.ExactArgs(1),
		RunE: withVars(func(_ *app, vs *vars.Store, args []string) error {
			if err := mustExist(vs, args[0]); err != nil {
				return err
			}
			return vs.ClearEnv(args[0])
		}),
	}

	var exportPath string
	export := &cobra.Command{
		Use:   "export NAME",
		Short: "Write an environment as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: withVars(func(a *app, vs *vars.Store, args []string) error {
			if exportPath == "" || exportPath == "-" {
				return vs.ExportEnv(a.out, args[0])
			}
			f, err := os.Create(exportPath)
			if err != nil {
				return err
			}
			if err := vs.ExportEnv(f, args[0]); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		}),
	}
	export.Flags().StringVarP(&exportPath, "out", "o", "", "Output file (default stdout)")

	var importName string
	importCmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Read an environment from YAML (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withVars(func(a *app, vs *vars.Store, args []string) error {
			var r io.Reader = a.cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			name, err := vs.ImportEnv(r, importName)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "imported environment %s\n", name)
			return nil
		}),
	}
	importCmd.Flags().StringVar(&importName, "name", "", "Store under this name instead of the one in the file")

	cmd.AddCommand(list, show, set, unset, rm, rename, clearCmd, export, importCmd)
	return cmd
}
