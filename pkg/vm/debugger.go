package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/egolang/egovm/pkg/bytecode"
)

// Debugger adapts the teacher's pkg/vm/debugger.go step-mode/breakpoint
// wrapper to pc-based dispatch instead of smog's ip-indexed instruction
// array: breakpoints are pc byte offsets, not instruction indices, since
// this VM has no separate decoded-instruction array to index into.
// Consistent with spec.md's non-goal of "source-level debugging
// protocols" (§3 of SPEC_FULL) — this is in-process single-stepping, not
// a wire protocol.
type Debugger struct {
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger returns a disabled debugger; Enable and SetStepMode/
// AddBreakpoint turn on specific behavior.
func NewDebugger() *Debugger {
	return &Debugger{breakpoints: make(map[int]bool)}
}

// Attach installs d as vm's debugger.
func (vm *VM) Attach(d *Debugger) { vm.debugger = d }

func (d *Debugger) Enable()                  { d.enabled = true }
func (d *Debugger) Disable()                 { d.enabled = false }
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }
func (d *Debugger) AddBreakpoint(pc int)     { d.breakpoints[pc] = true }
func (d *Debugger) RemoveBreakpoint(pc int)  { delete(d.breakpoints, pc) }
func (d *Debugger) ClearBreakpoints()        { d.breakpoints = make(map[int]bool) }

func (d *Debugger) shouldPause(pc int) bool {
	if !d.enabled {
		return false
	}
	return d.stepMode || d.breakpoints[pc]
}

// maybePause is called by execute() before every instruction; it blocks
// on an interactive prompt when paused.
func (d *Debugger) maybePause(vm *VM) {
	if !d.shouldPause(vm.pc) {
		return
	}
	d.interactivePrompt(vm)
}

func (d *Debugger) interactivePrompt(vm *VM) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("\n=== paused ===")
	d.showCurrent(vm)

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return
		case "stack", "st":
			d.showStack(vm)
		case "locals", "l":
			d.showLocals(vm)
		case "instruction", "i":
			d.showCurrent(vm)
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("usage: breakpoint <pc>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid pc")
				continue
			}
			d.AddBreakpoint(pc)
			fmt.Printf("breakpoint set at pc %d\n", pc)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <pc>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid pc")
				continue
			}
			d.RemoveBreakpoint(pc)
		case "quit", "q":
			return
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("commands: help, continue, step, stack, locals, instruction, breakpoint <pc>, delete <pc>, quit")
}

func (d *Debugger) showCurrent(vm *VM) {
	if vm.pc >= len(vm.code) {
		fmt.Println("(end of stream)")
		return
	}
	r := bytecode.NewReader(vm.code, vm.pc)
	ins := bytecode.Decode(r)
	fmt.Printf("  %6d: %s\n", vm.pc, bytecode.Disassemble(ins))
}

func (d *Debugger) showStack(vm *VM) {
	fmt.Println("operand stack (top to bottom):")
	if len(vm.stack) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := len(vm.stack) - 1; i >= 0; i-- {
		entry := vm.stack[i]
		fmt.Printf("  [%d] %s\n", i, vm.display(entry.Value))
	}
}

func (d *Debugger) showLocals(vm *VM) {
	fmt.Println("current frame bindings:")
	top := vm.frames.Top()
	any := false
	for _, name := range top.Exports() {
		v, ok := top.Lookup(name)
		if ok {
			any = true
			fmt.Printf("  %s = %s (exported)\n", name, vm.display(v.Value))
		}
	}
	if !any {
		fmt.Println("  (see 'stack' — bindings are not separately enumerable without a name)")
	}
}
