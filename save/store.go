package save

// Store dispatches cartridge save-backend accesses to the appropriate
// concrete backend (spec.md §4.3/§6). The backend kind is never configured
// explicitly — it's inferred from the access pattern the ROM uses, exactly
// as real GBA hardware has no save-type pin: EEPROM lives in its own
// address window (0xC/0xD) and is always present; SRAM and Flash share the
// 0xE/0xF window and are disambiguated by whether the ROM has ever issued a
// recognized Flash command after the unlock writes.
type Store struct {
	SRAM   *SRAM
	Flash  *Flash
	EEPROM *EEPROM

	flashUsed bool

	// EEPROMTransferLen mirrors DMA channel 3's programmed count register
	// at the time an EEPROM transfer runs; it's how the EEPROM backend
	// tells a 512 B command sequence from an 8 KiB one (spec.md §4.3).
	EEPROMTransferLen int
}

// NewStore allocates all three backends up front; only one of SRAM/Flash and
// the EEPROM will typically ever be touched by a given ROM.
func NewStore() *Store {
	return &Store{
		SRAM:   NewSRAM(),
		Flash:  NewFlash(),
		EEPROM: NewEEPROM(),
	}
}

// ReadSRAMWindow reads the 0xE/0xF window, routing to Flash once a Flash
// command has been observed.
func (s *Store) ReadSRAMWindow(addr uint32) uint8 {
	if s.flashUsed {
		return s.Flash.Read(addr)
	}
	return s.SRAM.Read(addr)
}

// WriteSRAMWindow writes the 0xE/0xF window. Until a Flash command has
// actually been recognized, every write is also fed to Flash so it can
// track the 0xAA/0x55 unlock sequence; 0x5555/0x2AAA are ordinary addresses
// inside a plain 64 KiB SRAM array too, so flashUsed only latches once
// Flash.Triggered reports a real command followed the unlock prefix
// (spec.md §4.3).
func (s *Store) WriteSRAMWindow(addr uint32, val uint8) {
	if s.flashUsed {
		s.Flash.Write(addr, val)
		return
	}
	s.Flash.Write(addr, val)
	if s.Flash.Triggered() {
		s.flashUsed = true
		return
	}
	s.SRAM.Write(addr, val)
}

// ReadEEPROMBit reads the next bit of the EEPROM's serial line.
func (s *Store) ReadEEPROMBit() uint8 {
	return s.EEPROM.ReadBit()
}

// WriteEEPROMBit shifts a bit into the EEPROM command buffer, using the
// currently latched DMA3 transfer length (set via SetEEPROMTransferLen
// immediately before the owning DMA transfer runs).
func (s *Store) WriteEEPROMBit(bit uint8) {
	s.EEPROM.WriteBit(bit, s.EEPROMTransferLen)
}

// SetEEPROMTransferLen latches DMA channel 3's count register; see
// spec.md §4.3.
func (s *Store) SetEEPROMTransferLen(n int) {
	s.EEPROMTransferLen = n
}

// ResetEEPROMTransfer discards a partially shifted-in EEPROM command; it is
// called when DMA channel 3 is armed against the EEPROM window.
func (s *Store) ResetEEPROMTransfer() {
	s.EEPROM.ResetTransfer()
}
