package shellcode

// CallProcedureX86 assembles the stdcall call_procedure trampoline:
//
//	mov  eax, [esp+4]
//	push resultOut
//	push eax
//	mov  eax, callee
//	call eax
//	mov  eax, 0
//	ret  4
func CallProcedureX86(callee, resultOut uint32) []byte {
	var e emitter
	e.bytes(0x8B, 0x44, 0x24, 0x04) // mov eax, [esp+4]
	e.byte(0x68)                    // push imm32
	e.imm32(resultOut)
	e.byte(0x50)  // push eax
	e.byte(0xB8)  // mov eax, imm32
	e.imm32(callee)
	e.bytes(0xFF, 0xD0) // call eax
	e.byte(0xB8)        // mov eax, 0
	e.imm32(0)
	e.bytes(0xC2, 0x04, 0x00) // ret 4
	return e.buf
}

// GetProcAddressX86 assembles the stdcall get_proc_address trampoline:
//
//	mov  eax, [esp+4]
//	push dword [eax+8]
//	push dword [eax+0]
//	mov  eax, getProcAddress
//	call eax
//	mov  [resultOut], eax
//	mov  eax, 0
//	ret  4
func GetProcAddressX86(getProcAddress, resultOut uint32) []byte {
	var e emitter
	e.bytes(0x8B, 0x44, 0x24, 0x04) // mov eax, [esp+4]
	e.bytes(0xFF, 0x70, 0x08)       // push dword [eax+8]
	e.bytes(0xFF, 0x30)             // push dword [eax+0]
	e.byte(0xB8)                    // mov eax, imm32
	e.imm32(getProcAddress)
	e.bytes(0xFF, 0xD0) // call eax
	e.byte(0xA3)        // mov [moffs32], eax
	e.imm32(resultOut)
	e.byte(0xB8) // mov eax, 0
	e.imm32(0)
	e.bytes(0xC2, 0x04, 0x00) // ret 4
	return e.buf
}
