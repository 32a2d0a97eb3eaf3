//go:build windows
// +build windows

package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/xyproto/syringe"
	"github.com/xyproto/syringe/winproc"
)

func cmdList(args []string) error {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	err = windows.Process32First(snap, &entry)
	for err == nil {
		fmt.Printf("%8d  %s\n", entry.ProcessID, windows.UTF16ToString(entry.ExeFile[:]))
		err = windows.Process32Next(snap, &entry)
	}
	if err != nil && err != windows.ERROR_NO_MORE_FILES {
		return fmt.Errorf("Process32Next: %w", err)
	}
	return nil
}

func cmdInject(args []string) error {
	fs, ctx := newFlagSet("inject")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if ctx.pid == 0 || fs.NArg() != 1 {
		return fmt.Errorf("usage: syringe-cli inject -pid <pid> <payload.dll>")
	}

	proc, err := winproc.Open(uint32(ctx.pid))
	if err != nil {
		return err
	}
	defer proc.Close()

	s := syringe.New(proc)
	mod, err := s.Inject(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("injected %s at %#x (handle %#x)\n", mod.Path(), mod.BaseAddress(), mod.Handle())
	return nil
}

func cmdEject(args []string) error {
	fs, ctx := newFlagSet("eject")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if ctx.pid == 0 || ctx.module == "" {
		return fmt.Errorf("usage: syringe-cli eject -pid <pid> -module <path>")
	}

	proc, err := winproc.Open(uint32(ctx.pid))
	if err != nil {
		return err
	}
	defer proc.Close()

	mod, ok := proc.FindModule(ctx.module)
	if !ok {
		return fmt.Errorf("module %s not loaded in process %d", ctx.module, ctx.pid)
	}

	s := syringe.New(proc)
	if err := s.Eject(syringe.InjectedModule{Module: mod}); err != nil {
		return err
	}
	fmt.Printf("ejected %s\n", ctx.module)
	return nil
}

func cmdCall(args []string) error {
	fs, ctx := newFlagSet("call")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if ctx.pid == 0 || ctx.module == "" || ctx.proc == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: syringe-cli call -pid <pid> -module <path> -proc <name> <uint32-arg>")
	}
	var arg uint32
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &arg); err != nil {
		return fmt.Errorf("invalid uint32 argument %q: %w", fs.Arg(0), err)
	}

	proc, err := winproc.Open(uint32(ctx.pid))
	if err != nil {
		return err
	}
	defer proc.Close()

	mod, ok := proc.FindModule(ctx.module)
	if !ok {
		return fmt.Errorf("module %s not loaded in process %d", ctx.module, ctx.pid)
	}

	s := syringe.New(proc)
	rp, err := syringe.GetProcedure[uint32, uint32](s, mod, ctx.proc)
	if err != nil {
		return err
	}
	defer rp.Close()

	result, err := rp.Call(arg)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

