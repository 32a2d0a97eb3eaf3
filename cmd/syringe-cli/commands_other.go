//go:build !windows
// +build !windows

package main

import "fmt"

var errWindowsOnly = fmt.Errorf("syringe-cli: this command requires GOOS=windows")

func cmdList(args []string) error  { return errWindowsOnly }
func cmdInject(args []string) error { return errWindowsOnly }
func cmdEject(args []string) error  { return errWindowsOnly }
func cmdCall(args []string) error   { return errWindowsOnly }
