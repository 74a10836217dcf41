package system

import "testing"

func TestPaletteCacheStaysInSyncWithWrites(t *testing.T) {
	s := newTestSystem(t)

	s.Write16(0x05000010, 0x7FFF) // palette entry 8: white in BGR555

	idx := uint32(0x10) / 2
	want := bgr555ToRGBA(0x7FFF)
	if s.paletteCache[idx] != want {
		t.Errorf("paletteCache[%d] = %#x, want %#x", idx, s.paletteCache[idx], want)
	}
}

func TestPaletteByteWriteReplicatesToBothHalves(t *testing.T) {
	s := newTestSystem(t)
	s.Write8(0x05000000, 0xAB)

	if s.palette[0] != 0xAB || s.palette[1] != 0xAB {
		t.Errorf("palette[0:2] = %#x,%#x, want both 0xAB", s.palette[0], s.palette[1])
	}
}

func TestEWRAMMirrors(t *testing.T) {
	s := newTestSystem(t)
	s.Write8(0x02000005, 0x5A)
	got, _ := s.Read8(0x02000005 + ewramMirror)
	if got != 0x5A {
		t.Errorf("EWRAM mirror read = %#x, want 0x5A", got)
	}
}

func TestOAMByteWritesAreDropped(t *testing.T) {
	s := newTestSystem(t)
	s.oam[0] = 0x11
	s.Write8(0x07000000, 0xFF)
	if s.oam[0] != 0x11 {
		t.Errorf("OAM byte write should be silently dropped, got %#x", s.oam[0])
	}
}

func TestVRAMMaskSplitsAtBit16(t *testing.T) {
	s := newTestSystem(t)
	if got := s.vramMask(0x06010000); got != 0x10000 {
		t.Errorf("vramMask(0x06010000) = %#x, want 0x10000", got)
	}
	if got := s.vramMask(0x0600FFFF); got != 0xFFFF {
		t.Errorf("vramMask(0x0600FFFF) = %#x, want 0xFFFF", got)
	}
}
