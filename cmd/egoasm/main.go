// Command egoasm assembles the textual mnemonic notation (spec.md §8)
// into the wire-format bytes egovm executes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/egolang/egovm/pkg/assembler"
	"github.com/egolang/egovm/pkg/parser"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "egoasm <input.ego.asm> [output.egobc]",
		Short: "Assemble mnemonic text into egovm's bytecode wire format",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			p := parser.New(string(src))
			prog := p.ParseProgram()
			if errs := p.Errors(); len(errs) > 0 {
				return fmt.Errorf("parse errors:\n  %s", strings.Join(errs, "\n  "))
			}

			code, err := assembler.Assemble(prog)
			if err != nil {
				return fmt.Errorf("assembling %s: %w", args[0], err)
			}

			out := outputPath
			if out == "" {
				out = args[0]
				if len(args) == 2 {
					out = args[1]
				} else {
					out = strings.TrimSuffix(out, ".ego.asm") + ".egobc"
				}
			}
			if err := os.WriteFile(out, code, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("wrote %d bytes to %s\n", len(code), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default: derived from the input name)")
	return cmd
}
