package shellcode

// CallProcedureX64 assembles the Microsoft x64 call_procedure trampoline:
//
//	sub  rsp, 40
//	mov  rdx, resultOut
//	mov  rcx, rcx     ; arg_in already in rcx from thread entry
//	mov  rax, callee
//	call rax
//	mov  rax, 0
//	add  rsp, 40
//	ret
func CallProcedureX64(callee, resultOut uint64) []byte {
	var e emitter
	e.bytes(0x48, 0x83, 0xEC, 0x28) // sub rsp, 40
	e.bytes(0x48, 0xBA)             // mov rdx, imm64
	e.imm64(resultOut)
	e.bytes(0x48, 0x89, 0xC9) // mov rcx, rcx
	e.bytes(0x48, 0xB8)       // mov rax, imm64
	e.imm64(callee)
	e.bytes(0xFF, 0xD0)             // call rax
	e.byte(0xB8)                    // mov eax, 0 (zero-extends to rax)
	e.imm32(0)
	e.bytes(0x48, 0x83, 0xC4, 0x28) // add rsp, 40
	e.byte(0xC3)                    // ret
	return e.buf
}

// GetProcAddressX64 assembles the Microsoft x64 get_proc_address trampoline:
//
//	sub  rsp, 40
//	mov  rdx, [rcx+8]
//	mov  rcx, [rcx+0]
//	mov  rax, getProcAddress
//	call rax
//	mov  [resultOut], rax
//	mov  rax, 0
//	add  rsp, 40
//	ret
func GetProcAddressX64(getProcAddress, resultOut uint64) []byte {
	var e emitter
	e.bytes(0x48, 0x83, 0xEC, 0x28) // sub rsp, 40
	e.bytes(0x48, 0x8B, 0x51, 0x08) // mov rdx, [rcx+8]
	e.bytes(0x48, 0x8B, 0x09)       // mov rcx, [rcx+0]
	e.bytes(0x48, 0xB8)             // mov rax, imm64
	e.imm64(getProcAddress)
	e.bytes(0xFF, 0xD0) // call rax
	e.bytes(0x48, 0xA3) // mov [moffs64], rax
	e.imm64(resultOut)
	e.byte(0xB8) // mov eax, 0
	e.imm32(0)
	e.bytes(0x48, 0x83, 0xC4, 0x28) // add rsp, 40
	e.byte(0xC3)                    // ret
	return e.buf
}
