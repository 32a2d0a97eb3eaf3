package syringe

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/xyproto/syringe/internal/procmem"
)

var verbose atomic.Bool

// SetVerbose toggles diagnostic logging to stderr for the whole package,
// and for internal/procmem alongside it. It is a global setting, not
// scoped per Syringe instance.
func SetVerbose(v bool) {
	verbose.Store(v)
	procmem.Verbose = v
}

func logf(format string, args ...any) {
	if !verbose.Load() {
		return
	}
	fmt.Fprintf(os.Stderr, "syringe: "+format+"\n", args...)
}
