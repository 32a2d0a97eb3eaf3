package procmem

import (
	"fmt"
	"os"
)

// Verbose controls whether procmem logs operational notices (boxes
// leaked without Close) to stderr. Off by default; the syringe
// package's SetVerbose toggles this alongside its own logging.
var Verbose = false

func logf(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "procmem: "+format+"\n", args...)
}
