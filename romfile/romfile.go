// Package romfile loads the two raw binary blobs a GBA needs: the system
// BIOS and the cartridge ROM. Neither carries a header the way nesrom's
// iNES format does, so this package is a considerably thinner reader than
// its NES counterpart (spec.md §1, §9).
package romfile

import (
	"fmt"
	"os"
)

const (
	// BIOSSize is the fixed size of the GBA BIOS ROM.
	BIOSSize = 16 * 1024
	// MaxCartridgeSize is the largest address space a cartridge's ROM
	// region can occupy (32 MiB).
	MaxCartridgeSize = 32 * 1024 * 1024
	// MinCartridgeSize is small enough to admit homebrew test ROMs.
	MinCartridgeSize = 0xC0 + 4
)

// BIOS holds the raw 16 KiB system BIOS image.
type BIOS struct {
	data [BIOSSize]byte
}

// LoadBIOS reads a BIOS image from path. The file must be exactly
// BIOSSize bytes.
func LoadBIOS(path string) (*BIOS, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open BIOS file %q: %w", path, err)
	}
	if len(raw) != BIOSSize {
		return nil, fmt.Errorf("BIOS file %q is %d bytes, want %d", path, len(raw), BIOSSize)
	}

	b := &BIOS{}
	copy(b.data[:], raw)
	return b, nil
}

// Read8 returns the byte at addr, wrapping within the BIOS image.
func (b *BIOS) Read8(addr uint32) uint8 { return b.data[addr&(BIOSSize-1)] }

// Read16 returns the little-endian halfword at addr.
func (b *BIOS) Read16(addr uint32) uint16 {
	a := addr & (BIOSSize - 1) &^ 1
	return uint16(b.data[a]) | uint16(b.data[a+1])<<8
}

// Read32 returns the little-endian word at addr.
func (b *BIOS) Read32(addr uint32) uint32 {
	a := addr & (BIOSSize - 1) &^ 3
	return uint32(b.data[a]) | uint32(b.data[a+1])<<8 | uint32(b.data[a+2])<<16 | uint32(b.data[a+3])<<24
}

// Cartridge holds a loaded GBA ROM image plus the save-type hint derived
// from scanning its ID strings (spec.md §1's SRAM/FLASH/EEPROM identifier
// literals).
type Cartridge struct {
	path string
	data []byte
	kind SaveKind
}

// SaveKind identifies which backup-memory type a cartridge declares via an
// ID string embedded in its ROM image (spec.md §1).
type SaveKind int

const (
	SaveNone SaveKind = iota
	SaveSRAM
	SaveFlash512
	SaveFlash1M
	SaveEEPROM
)

var idStrings = []struct {
	literal string
	kind    SaveKind
}{
	{"EEPROM_V", SaveEEPROM},
	{"SRAM_V", SaveSRAM},
	{"FLASH1M_V", SaveFlash1M},
	{"FLASH512_V", SaveFlash512},
	{"FLASH_V", SaveFlash512},
}

// LoadCartridge reads a raw GBA ROM image from path and classifies its
// backup-memory type by scanning for the well-known identifier strings.
func LoadCartridge(path string) (*Cartridge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open cartridge ROM %q: %w", path, err)
	}
	if len(raw) < MinCartridgeSize {
		return nil, fmt.Errorf("cartridge ROM %q is %d bytes, too small to be valid", path, len(raw))
	}
	if len(raw) > MaxCartridgeSize {
		return nil, fmt.Errorf("cartridge ROM %q is %d bytes, exceeds %d byte maximum", path, len(raw), MaxCartridgeSize)
	}

	c := &Cartridge{path: path, data: raw, kind: SaveNone}
	c.kind = detectSaveKind(raw)
	return c, nil
}

func detectSaveKind(data []byte) SaveKind {
	for _, id := range idStrings {
		if containsASCII(data, id.literal) {
			return id.kind
		}
	}
	return SaveNone
}

func containsASCII(haystack []byte, needle string) bool {
	n := []byte(needle)
	if len(n) == 0 || len(haystack) < len(n) {
		return false
	}
	for i := 0; i+len(n) <= len(haystack); i++ {
		match := true
		for j := range n {
			if haystack[i+j] != n[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Size returns the ROM image length in bytes.
func (c *Cartridge) Size() int { return len(c.data) }

// SaveKind reports the detected backup-memory type.
func (c *Cartridge) SaveKind() SaveKind { return c.kind }

// Read8 reads a byte from the ROM image; the address wraps modulo the image
// length, so the image repeats across the cartridge window.
func (c *Cartridge) Read8(addr uint32) uint8 {
	a := int(addr) % len(c.data)
	return c.data[a]
}

// Read16 reads a little-endian halfword, mirroring as Read8 does.
func (c *Cartridge) Read16(addr uint32) uint16 {
	a := addr &^ 1
	return uint16(c.Read8(a)) | uint16(c.Read8(a+1))<<8
}

// Read32 reads a little-endian word, mirroring as Read8 does.
func (c *Cartridge) Read32(addr uint32) uint32 {
	a := addr &^ 3
	return uint32(c.Read8(a)) | uint32(c.Read8(a+1))<<8 | uint32(c.Read8(a+2))<<16 | uint32(c.Read8(a+3))<<24
}
