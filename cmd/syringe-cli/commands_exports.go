package main

import (
	"fmt"
	"sort"

	"github.com/xyproto/syringe/internal/winpe"
)

// cmdExports dumps a DLL's export table without injecting it anywhere;
// this needs no Windows APIs, just the ability to read the file.
func cmdExports(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: syringe-cli exports <dll-path>")
	}

	reader, err := winpe.Open(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	exports, err := reader.Exports()
	if err != nil {
		return err
	}

	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	for _, e := range exports {
		fmt.Printf("%#08x  %s\n", e.RVA, e.Name)
	}
	return nil
}
