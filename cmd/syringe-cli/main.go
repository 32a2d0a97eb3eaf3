// Command syringe-cli is a small demo driver over the syringe library:
// list target processes, dump a DLL's export table, inject/eject a
// payload, and call an exported one-arg/one-result function.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "syringe-cli:", err)
		os.Exit(1)
	}
}
