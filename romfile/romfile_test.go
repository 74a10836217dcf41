package romfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoadBIOSRejectsWrongSize(t *testing.T) {
	p := writeTempFile(t, "bios.bin", make([]byte, 100))
	if _, err := LoadBIOS(p); err == nil {
		t.Fatalf("expected error for undersized BIOS image")
	}
}

func TestLoadBIOSRoundTrip(t *testing.T) {
	data := make([]byte, BIOSSize)
	data[0] = 0xAB
	data[BIOSSize-1] = 0xCD
	p := writeTempFile(t, "bios.bin", data)

	b, err := LoadBIOS(p)
	if err != nil {
		t.Fatalf("LoadBIOS: %v", err)
	}
	if got := b.Read8(0); got != 0xAB {
		t.Errorf("Read8(0) = %#x, want 0xAB", got)
	}
	if got := b.Read8(BIOSSize - 1); got != 0xCD {
		t.Errorf("Read8(last) = %#x, want 0xCD", got)
	}
}

func TestLoadCartridgeDetectsSaveKind(t *testing.T) {
	data := make([]byte, 0x200)
	copy(data[0x100:], []byte("EEPROM_V120"))
	p := writeTempFile(t, "rom.gba", data)

	c, err := LoadCartridge(p)
	if err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if c.SaveKind() != SaveEEPROM {
		t.Errorf("SaveKind() = %v, want SaveEEPROM", c.SaveKind())
	}
}

func TestLoadCartridgeRejectsTooSmall(t *testing.T) {
	p := writeTempFile(t, "rom.gba", make([]byte, 4))
	if _, err := LoadCartridge(p); err == nil {
		t.Fatalf("expected error for undersized cartridge")
	}
}

func TestCartridgeMirrors(t *testing.T) {
	data := make([]byte, MinCartridgeSize)
	data[0] = 0x42
	p := writeTempFile(t, "rom.gba", data)

	c, err := LoadCartridge(p)
	if err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if got := c.Read8(uint32(len(data))); got != 0x42 {
		t.Errorf("mirrored Read8 = %#x, want 0x42", got)
	}
}
