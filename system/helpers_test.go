package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kjsanger/goba/romfile"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()

	biosData := make([]byte, romfile.BIOSSize)
	biosPath := filepath.Join(t.TempDir(), "bios.bin")
	if err := os.WriteFile(biosPath, biosData, 0o644); err != nil {
		t.Fatalf("write bios: %v", err)
	}
	bios, err := romfile.LoadBIOS(biosPath)
	if err != nil {
		t.Fatalf("LoadBIOS: %v", err)
	}

	cartData := make([]byte, romfile.MinCartridgeSize+256)
	cartPath := filepath.Join(t.TempDir(), "rom.gba")
	if err := os.WriteFile(cartPath, cartData, 0o644); err != nil {
		t.Fatalf("write cart: %v", err)
	}
	cart, err := romfile.LoadCartridge(cartPath)
	if err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}

	return New(bios, cart)
}
