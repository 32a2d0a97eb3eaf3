package procmem

import "testing"

type echoParams struct {
	ModuleHandle uint64
	Name         uint64
}

func TestBoxRoundTripScalar(t *testing.T) {
	factory, mem := newFakeRawAllocatorFactory(0x40_0000)
	m := NewMultiBufferAllocator(factory, 64)

	box, err := AllocBox[uint32](m, mem)
	if err != nil {
		t.Fatalf("AllocBox: %v", err)
	}
	defer box.Close()

	if err := box.Write(0xDEADBEEF); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := box.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("round trip mismatch: got %#x, want %#x", got, 0xDEADBEEF)
	}
}

func TestBoxRoundTripStruct(t *testing.T) {
	factory, mem := newFakeRawAllocatorFactory(0x50_0000)
	m := NewMultiBufferAllocator(factory, 64)

	box, err := AllocBox[echoParams](m, mem)
	if err != nil {
		t.Fatalf("AllocBox: %v", err)
	}
	defer box.Close()

	if box.Len() != 16 {
		t.Fatalf("expected 16-byte box for two u64 fields, got %d", box.Len())
	}

	want := echoParams{ModuleHandle: 0x7FFE0000, Name: 0x7FFE1000}
	if err := box.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := box.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestBoxCloseIsIdempotentAndFrees(t *testing.T) {
	factory, mem := newFakeRawAllocatorFactory(0x60_0000)
	m := NewMultiBufferAllocator(factory, 64)

	box, err := AllocBox[uint64](m, mem)
	if err != nil {
		t.Fatalf("AllocBox: %v", err)
	}

	before := m.raws[0].Capacity()
	if err := box.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := box.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got error: %v", err)
	}

	after := m.raws[0].Capacity()
	if after != before+8 {
		t.Fatalf("expected capacity to grow by 8 after close, got before=%d after=%d", before, after)
	}
}

func TestBoxesFromSameAllocatorDoNotOverlap(t *testing.T) {
	factory, mem := newFakeRawAllocatorFactory(0x70_0000)
	m := NewMultiBufferAllocator(factory, 256)

	a, _ := AllocBox[uint64](m, mem)
	b, _ := AllocBox[uint64](m, mem)
	defer a.Close()
	defer b.Close()

	aStart, aEnd := a.AsRawPtr(), a.AsRawPtr()+a.Len()
	bStart, bEnd := b.AsRawPtr(), b.AsRawPtr()+b.Len()

	if aStart < bEnd && bStart < aEnd {
		t.Fatalf("boxes overlap: a=[%#x,%#x) b=[%#x,%#x)", aStart, aEnd, bStart, bEnd)
	}
}

func TestCodeBoxWritesAndFlushes(t *testing.T) {
	factory, mem := newFakeRawAllocatorFactory(0x80_0000)
	m := NewMultiBufferAllocator(factory, 256)

	code := []byte{0xB8, 0xEF, 0xBE, 0xAD, 0xDE, 0xC3} // mov eax, 0xDEADBEEF; ret
	box, err := AllocCode(m, mem, code)
	if err != nil {
		t.Fatalf("AllocCode: %v", err)
	}
	defer box.Close()

	if box.Len() != uintptr(len(code)) {
		t.Fatalf("expected code box length %d, got %d", len(code), box.Len())
	}

	readback := make([]byte, len(code))
	if err := mem.ReadInto(box.AsRawPtr(), readback); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	for i := range code {
		if readback[i] != code[i] {
			t.Fatalf("byte %d mismatch: got %#x, want %#x", i, readback[i], code[i])
		}
	}

	if mem.flushCalls != 1 {
		t.Fatalf("expected exactly one instruction-cache flush, got %d", mem.flushCalls)
	}
}
