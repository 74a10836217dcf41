package save

import "testing"

// TestEEPROM8KiBRoundTrip reproduces scenario S6 of spec.md §8.
func TestEEPROM8KiBRoundTrip(t *testing.T) {
	e := NewEEPROM()

	const addr uint32 = 0x1A2A & 0x3FFF // 14-bit address
	const transferLen = 81

	var payload [64]uint8
	for i := range payload {
		payload[i] = uint8((i * 7) % 2)
	}

	// WRITE command: 1,0 prefix, 14-bit address, 64 payload bits, 1 stop bit.
	e.WriteBit(1, transferLen)
	e.WriteBit(0, transferLen)
	for i := 13; i >= 0; i-- {
		e.WriteBit(uint8((addr>>uint(i))&1), transferLen)
	}
	for _, b := range payload {
		e.WriteBit(b, transferLen)
	}
	e.WriteBit(1, transferLen) // stop bit

	// READ command: 1,1 prefix, 14-bit address, 1 stop bit.
	const readLen = 17
	e.WriteBit(1, readLen)
	e.WriteBit(1, readLen)
	for i := 13; i >= 0; i-- {
		e.WriteBit(uint8((addr>>uint(i))&1), readLen)
	}
	e.WriteBit(1, readLen)

	for i := 0; i < 4; i++ {
		if got := e.ReadBit(); got != 0 {
			t.Fatalf("dummy bit %d = %d, want 0", i, got)
		}
	}
	for i, want := range payload {
		if got := e.ReadBit(); got != want {
			t.Fatalf("payload bit %d = %d, want %d", i, got, want)
		}
	}
}

func TestEEPROMResetTransfer(t *testing.T) {
	e := NewEEPROM()
	e.WriteBit(1, 81)
	e.WriteBit(0, 81)
	e.ResetTransfer()
	if len(e.in) != 0 {
		t.Errorf("in buffer not cleared after ResetTransfer")
	}
}
