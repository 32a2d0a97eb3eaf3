package shellcode

import "testing"

func TestCallProcedureX86Encoding(t *testing.T) {
	got := CallProcedureX86(0x10002000, 0x10003000)
	want := []byte{
		0x8B, 0x44, 0x24, 0x04, // mov eax, [esp+4]
		0x68, 0x00, 0x30, 0x00, 0x10, // push 0x10003000
		0x50,                         // push eax
		0xB8, 0x00, 0x20, 0x00, 0x10, // mov eax, 0x10002000
		0xFF, 0xD0, // call eax
		0xB8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0xC2, 0x04, 0x00, // ret 4
	}
	assertBytesEqual(t, got, want)
}

func TestGetProcAddressX86Encoding(t *testing.T) {
	got := GetProcAddressX86(0x10004000, 0x10005000)
	want := []byte{
		0x8B, 0x44, 0x24, 0x04, // mov eax, [esp+4]
		0xFF, 0x70, 0x08, // push dword [eax+8]
		0xFF, 0x30, // push dword [eax+0]
		0xB8, 0x00, 0x40, 0x00, 0x10, // mov eax, 0x10004000
		0xFF, 0xD0,                   // call eax
		0xA3, 0x00, 0x50, 0x00, 0x10, // mov [0x10005000], eax
		0xB8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0xC2, 0x04, 0x00, // ret 4
	}
	assertBytesEqual(t, got, want)
}

func TestCallProcedureX64Encoding(t *testing.T) {
	got := CallProcedureX64(0x00007FF600001000, 0x00007FF600002000)
	want := []byte{
		0x48, 0x83, 0xEC, 0x28, // sub rsp, 40
		0x48, 0xBA, 0x00, 0x20, 0x00, 0x00, 0xF6, 0x7F, 0x00, 0x00, // mov rdx, imm64
		0x48, 0x89, 0xC9, // mov rcx, rcx
		0x48, 0xB8, 0x00, 0x10, 0x00, 0x00, 0xF6, 0x7F, 0x00, 0x00, // mov rax, imm64
		0xFF, 0xD0, // call rax
		0xB8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0x48, 0x83, 0xC4, 0x28, // add rsp, 40
		0xC3, // ret
	}
	assertBytesEqual(t, got, want)
}

func TestGetProcAddressX64Encoding(t *testing.T) {
	got := GetProcAddressX64(0x00007FFA00003000, 0x00007FFA00004000)
	want := []byte{
		0x48, 0x83, 0xEC, 0x28, // sub rsp, 40
		0x48, 0x8B, 0x51, 0x08, // mov rdx, [rcx+8]
		0x48, 0x8B, 0x09, // mov rcx, [rcx+0]
		0x48, 0xB8, 0x00, 0x30, 0x00, 0x00, 0xFA, 0x7F, 0x00, 0x00, // mov rax, imm64
		0xFF, 0xD0, // call rax
		0x48, 0xA3, 0x00, 0x40, 0x00, 0x00, 0xFA, 0x7F, 0x00, 0x00, // mov [imm64], rax
		0xB8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0x48, 0x83, 0xC4, 0x28, // add rsp, 40
		0xC3, // ret
	}
	assertBytesEqual(t, got, want)
}

// TestPositionIndependence exercises spec's mandatory property: reassembling
// the same trampoline at different addresses must produce byte-identical
// code apart from the embedded immediates themselves, and in particular
// must produce the same length and opcode shape every time.
func TestPositionIndependence(t *testing.T) {
	cases := []struct {
		name string
		fn   func(a, b uint64) []byte
	}{
		{"call_procedure_x86", func(a, b uint64) []byte { return CallProcedureX86(uint32(a), uint32(b)) }},
		{"get_proc_address_x86", func(a, b uint64) []byte { return GetProcAddressX86(uint32(a), uint32(b)) }},
		{"call_procedure_x64", CallProcedureX64},
		{"get_proc_address_x64", GetProcAddressX64},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			first := c.fn(0x1000, 0x2000)
			second := c.fn(0x77770000, 0x88880000)

			if len(first) != len(second) {
				t.Fatalf("assemble length changed across addresses: %d vs %d", len(first), len(second))
			}
			for i := range first {
				if isImmediateByte(c.name, i) {
					continue
				}
				if first[i] != second[i] {
					t.Fatalf("byte %d differs outside known immediate fields: %#x vs %#x", i, first[i], second[i])
				}
			}
		})
	}
}

func TestX86AddressOverflowDetected(t *testing.T) {
	if _, err := ToAddr32(0x1_0000_0000); err != ErrAddressOverflow {
		t.Fatalf("expected ErrAddressOverflow for a 33-bit address, got %v", err)
	}
	if _, err := ToAddr32(0xFFFFFFFF); err != nil {
		t.Fatalf("expected 0xFFFFFFFF to fit in 32 bits, got %v", err)
	}
}

func assertBytesEqual(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d bytes, want %d bytes\ngot:  % X\nwant: % X", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d mismatch: got %#x, want %#x\ngot:  % X\nwant: % X", i, got[i], want[i], got, want)
		}
	}
}

// isImmediateByte marks the byte offsets known to carry an address
// immediate for each trampoline, so the position-independence test can
// skip exactly those bytes when comparing two assemblies at different
// addresses.
func isImmediateByte(name string, i int) bool {
	var ranges [][2]int
	switch name {
	case "call_procedure_x86":
		ranges = [][2]int{{5, 9}, {11, 15}} // push imm32, mov eax imm32
	case "get_proc_address_x86":
		ranges = [][2]int{{10, 14}, {17, 21}} // mov eax imm32, mov [moffs32]
	case "call_procedure_x64":
		ranges = [][2]int{{6, 14}, {19, 27}} // mov rdx imm64, mov rax imm64
	case "get_proc_address_x64":
		ranges = [][2]int{{13, 21}, {25, 33}} // mov rax imm64, mov [moffs64]
	}
	for _, r := range ranges {
		if i >= r[0] && i < r[1] {
			return true
		}
	}
	return false
}
