package main

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/spf13/cobra"
)

func newEncodeCmd(_ *cli) *cobra.Command {
	var (
		comment string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "encode <code> [P=V...]",
		Short: "Build an instruction and print its canonical line",
		Example: `  ogc encode G1 X=10 Y=20 F=3000
  ogc encode M104 S200 T0 --comment "preheat"
  ogc encode G28 X`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, caps, err := encodeArgs(args, comment)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			if verbose && len(caps) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "capabilities: %s\n", strings.Join(caps, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment appended to the line")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print the instruction capabilities")
	return cmd
}

func encodeArgs(args []string, comment string) (string, []string, error) {
	params := make([]instruction.Param, 0, len(args)-1)
	for _, word := range args[1:] {
		p, err := instruction.ParseParam(word)
		if err != nil {
			return "", nil, err
		}
		params = append(params, p)
	}

	instr, err := instruction.NewBuiltinRegistry().New(args[0], params, comment)
	if err != nil {
		return "", nil, err
	}
	return instruction.Encode(instr), instruction.Capabilities(instr), nil
}
