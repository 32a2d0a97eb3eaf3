package main

import (
	"flag"
	"fmt"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/syringe"
)

// commandContext holds flags shared across subcommands, in the style of
// this lineage's own CommandContext.
type commandContext struct {
	verbose bool
	pid     uint
	module  string
	proc    string
}

func run(args []string) error {
	verbose := env.Bool("SYRINGE_VERBOSE", false)
	syringe.SetVerbose(verbose)

	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "list":
		return cmdList(args[1:])
	case "exports":
		return cmdExports(args[1:])
	case "inject":
		return cmdInject(args[1:])
	case "eject":
		return cmdEject(args[1:])
	case "call":
		return cmdCall(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q; run \"syringe-cli help\"", args[0])
	}
}

func printUsage() {
	fmt.Println(`usage: syringe-cli <command> [flags]

commands:
  list                                    enumerate running processes
  exports <dll-path>                      dump a DLL's export table
  inject -pid <pid> <payload.dll>         load payload.dll into pid
  eject -pid <pid> -module <path>         unload a previously injected module
  call -pid <pid> -module <path> -proc <name> <uint32-arg>
                                           call an exported uint32->uint32 function`)
}

func newFlagSet(name string) (*flag.FlagSet, *commandContext) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	ctx := &commandContext{}
	fs.UintVar(&ctx.pid, "pid", 0, "target process id")
	fs.StringVar(&ctx.module, "module", "", "module path")
	fs.StringVar(&ctx.proc, "proc", "", "exported function name")
	return fs, ctx
}
