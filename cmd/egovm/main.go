// Command egovm runs compiled bytecode programs and disassembles them.
// Replaces the teacher's hand-rolled os.Args switch in cmd/smog/main.go
// with a github.com/spf13/cobra command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/natives"
	"github.com/egolang/egovm/pkg/vm"
)

var (
	debug       bool
	ffiManifest string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "egovm",
		Short: "egovm runs and disassembles .egobc bytecode programs",
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable per-instruction trace output")
	root.PersistentFlags().StringVar(&ffiManifest, "foreign", "foreign.toml", "path to the FFI handler manifest")
	root.AddCommand(runCmd(), disasmCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.egobc>",
		Short: "Execute a bytecode program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			registry, err := natives.LoadRegistry(ffiManifest)
			if err != nil {
				return fmt.Errorf("loading FFI manifest %s: %w", ffiManifest, err)
			}

			m := vm.New(vm.WithDebug(debug), vm.WithFFIRegistry(registry))
			result, fatal := m.Run(code)
			if fatal != nil {
				return fmt.Errorf("fatal interpreter error: %w", fatal)
			}
			if result.Error != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", result.Error.Kind, result.Error.Error())
				os.Exit(1)
			}
			if result.Result != nil {
				fmt.Println(*result.Result)
			}
			return nil
		},
	}
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.egobc>",
		Short: "Print a human-readable disassembly of a bytecode program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			return disassemble(code)
		},
	}
}

func disassemble(code []byte) error {
	pos := 0
	for pos < len(code) {
		r := bytecode.NewReader(code, pos)
		ins := bytecode.Decode(r)
		fmt.Printf("%6d: %s\n", pos, bytecode.Disassemble(ins))
		if r.Pos == pos {
			return fmt.Errorf("disassembly stalled at offset %d", pos)
		}
		pos = r.Pos
	}
	return nil
}
