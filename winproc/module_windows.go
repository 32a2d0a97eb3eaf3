//go:build windows
// +build windows

package winproc

// module is the winproc implementation of syringe.Module, populated from
// one MODULEENTRY32 record.
type module struct {
	path   string
	base   uintptr
	size   uintptr
	handle uintptr
}

func (m *module) Path() string        { return m.path }
func (m *module) BaseAddress() uintptr { return m.base }
func (m *module) Size() uintptr        { return m.size }
func (m *module) Handle() uintptr      { return m.handle }
