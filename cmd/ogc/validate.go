package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>",
		Short: "Check a machine definition and print every problem found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), c.cfg.Machine.SearchPaths, args[0])
		},
	}
}

func runValidate(out io.Writer, searchPaths []string, path string) error {
	loader, err := machine.NewLoader(searchPaths)
	if err != nil {
		return err
	}
	def, err := loader.Load(path)
	if err != nil {
		return err
	}

	// Ohne Transport: Load baut und prüft nur, es wird nichts gesendet
	ctrl := machine.NewController(nil, nil, nil, nil)
	if err := ctrl.Load(def); err != nil {
		problems := problemsOf(err)
		fmt.Fprintf(out, "%s: %d problem(s)\n", def.Name, len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "  - %v\n", p)
		}
		return fmt.Errorf("machine definition %s is invalid", path)
	}

	reports := ctrl.Functions().Reports()
	warnings := 0
	for _, name := range ctrl.Functions().Names() {
		for _, w := range reports[name].Warnings {
			warnings++
			fmt.Fprintf(out, "  warning %v\n", w)
			if w.Hint != "" {
				fmt.Fprintf(out, "    hint: %s\n", w.Hint)
			}
		}
	}

	fmt.Fprintf(out, "%s: valid (%d components, %d functions, %d warning(s))\n",
		def.Name, len(def.Components), len(def.Functions), warnings)
	return nil
}

// problemsOf flattens a load error into its individual problems.
func problemsOf(err error) []error {
	var classified *types.Error
	if errors.As(err, &classified) && classified.Err != nil {
		err = classified.Err
	}
	return multierr.Errors(err)
}
