package system

import "github.com/kjsanger/goba/bitutil"

// Region decode keyed on bits 27..24 of the address (spec.md §4.1). This
// file implements cpu.Bus; the CPU never reaches further into System than
// this interface.

func region(addr uint32) uint32 { return (addr >> 24) & 0xF }

func (s *System) waitExtra16(addr uint32) int { return s.waitN[0][region(addr)] }
func (s *System) waitExtra32(addr uint32) int { return s.waitN[1][region(addr)] }

// Read8 implements cpu.Bus.
func (s *System) Read8(addr uint32) (uint8, int) {
	switch region(addr) {
	case 0x0:
		if s.cpu != nil && s.cpu.PC() < 0x4000 {
			v := s.bios.Read8(addr)
			s.biosLatch = s.bios.Read32(addr &^ 3)
			return v, 0
		}
		return uint8(s.biosLatch >> ((addr & 3) * 8)), 0
	case 0x2:
		return s.ewram[addr%ewramMirror], 0
	case 0x3:
		return s.iwram[addr%iwramMirror], 0
	case 0x4:
		return s.io.Read8(s, addr&0xFFFFFF), 0
	case 0x5:
		return s.palette[addr%paletteMirror], 0
	case 0x6:
		return s.vram[s.vramMask(addr)], 0
	case 0x7:
		return s.oam[addr%oamMirror], 0
	case 0x8, 0x9, 0xA, 0xB:
		return s.cart.Read8(addr), s.waitExtra16(addr)
	case 0xC, 0xD:
		return uint8(s.store.ReadEEPROMBit()), s.waitExtra16(addr)
	case 0xE, 0xF:
		return s.store.ReadSRAMWindow(addr), s.waitExtra16(addr)
	default:
		logUnmappedRead(addr)
		return 0, 0
	}
}

// Read16 implements cpu.Bus, reading an aligned halfword.
func (s *System) Read16(addr uint32) (uint16, int) {
	a := addr &^ 1
	lo, w := s.Read8(a)
	hi, _ := s.Read8(a + 1)
	return uint16(lo) | uint16(hi)<<8, w
}

// Read32 implements cpu.Bus, reading an aligned word.
func (s *System) Read32(addr uint32) (uint32, int) {
	a := addr &^ 3
	b0, w := s.Read8(a)
	b1, _ := s.Read8(a + 1)
	b2, _ := s.Read8(a + 2)
	b3, _ := s.Read8(a + 3)
	v := uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
	return v, w + (s.waitExtra32(addr) - s.waitExtra16(addr))
}

// Write8 implements cpu.Bus.
func (s *System) Write8(addr uint32, val uint8) int {
	switch region(addr) {
	case 0x2:
		s.ewram[addr%ewramMirror] = val
		return 0
	case 0x3:
		s.iwram[addr%iwramMirror] = val
		return 0
	case 0x4:
		s.io.Write8(s, addr&0xFFFFFF, val)
		return 0
	case 0x5:
		// Byte writes replicate to both halves of the target halfword.
		h := addr % paletteMirror &^ 1
		s.palette[h] = val
		s.palette[h+1] = val
		s.refreshPaletteCache(h)
		return 0
	case 0x6:
		m := s.vramMask(addr) &^ 1
		s.vram[m] = val
		s.vram[m+1] = val
		return 0
	case 0x7:
		// Byte writes to OAM are silently dropped.
		return 0
	case 0xC, 0xD:
		s.store.WriteEEPROMBit(val & 1)
		return s.waitExtra16(addr)
	case 0xE, 0xF:
		s.store.WriteSRAMWindow(addr, val)
		return s.waitExtra16(addr)
	default:
		// ROM/BIOS writes silently discarded.
		return 0
	}
}

// Write16 implements cpu.Bus, writing an aligned halfword.
func (s *System) Write16(addr uint32, val uint16) int {
	a := addr &^ 1
	if region(a) == 0x6 {
		m := s.vramMask(a)
		s.vram[m] = uint8(val)
		s.vram[m+1] = uint8(val >> 8)
		return s.waitExtra16(a)
	}
	if region(a) == 0x5 {
		h := a % paletteMirror
		s.palette[h] = uint8(val)
		s.palette[h+1] = uint8(val >> 8)
		s.refreshPaletteCache(h)
		return 0
	}
	w := s.Write8(a, uint8(val))
	s.Write8(a+1, uint8(val>>8))
	return w
}

// Write32 implements cpu.Bus, writing an aligned word.
func (s *System) Write32(addr uint32, val uint32) int {
	a := addr &^ 3
	w := s.Write16(a, uint16(val))
	s.Write16(a+2, uint16(val>>16))
	return w + (s.waitExtra32(addr) - s.waitExtra16(addr))
}

// vramMask implements the 96 KiB VRAM split rule: mask 0x17FFF when bit 16
// of the address is set, else 0x1FFFF (spec.md §4.1).
func (s *System) vramMask(addr uint32) uint32 {
	a := addr & 0x1FFFF
	if addr&0x10000 != 0 {
		return addr & 0x17FFF
	}
	return a
}

func (s *System) refreshPaletteCache(halfwordOffset uint32) {
	idx := (halfwordOffset & (paletteSize - 1)) / 2
	c := uint16(s.palette[idx*2]) | uint16(s.palette[idx*2+1])<<8
	s.paletteCache[idx] = bitutil.BGR555ToRGBA8(c)
}

// IRQPending implements cpu.Bus.
func (s *System) IRQPending() bool {
	return s.io.ie&s.io.ifReg != 0
}

// IME implements cpu.Bus.
func (s *System) IME() bool {
	return s.io.ime&1 != 0
}
