package save

// Flash models a 128 KiB, two 64 KiB-bank Flash chip driven by the
// well-known JEDEC-style 0xAA/0x55 unlock sequence (spec.md §4.3).
type Flash struct {
	banks [2][0x10000]byte
	bank  int

	mode    flashMode
	idMode  bool
	unlock1 uint8 // last byte written at 0x5555
	unlock2 uint8 // last byte written at 0x2AAA

	triggered bool // a real command has moved the chip out of idle at least once
}

type flashMode int

const (
	flashIdle flashMode = iota
	flashErase
	flashWrite
	flashBankSwitch
)

// NewFlash returns a fresh Flash backend in its factory-erased (all 0xFF)
// state.
func NewFlash() *Flash {
	f := &Flash{}
	f.eraseChip()
	return f
}

// Mode reports the current command-FSM state, exposed for tests.
func (f *Flash) Mode() string {
	switch f.mode {
	case flashErase:
		return "ERASE"
	case flashWrite:
		return "WRITE"
	case flashBankSwitch:
		return "BANK_SWITCH"
	default:
		return "IDLE"
	}
}

func (f *Flash) Read(addr uint32) uint8 {
	a := addr & 0xFFFF
	if f.idMode {
		switch a {
		case 0x0000:
			return 0x62
		case 0x0001:
			return 0x13
		}
	}
	return f.banks[f.bank][a]
}

func (f *Flash) Write(addr uint32, val uint8) {
	a := addr & 0xFFFF

	switch f.mode {
	case flashWrite:
		f.banks[f.bank][a] = val
		f.mode = flashIdle
		return
	case flashBankSwitch:
		if a == 0x0000 {
			f.bank = int(val & 1)
		}
		f.mode = flashIdle
		return
	case flashErase:
		if val == 0x30 {
			f.eraseSector(addr)
			f.mode = flashIdle
			return
		}
	}

	if a == 0x5555 {
		if f.unlock1 == 0xAA && f.unlock2 == 0x55 {
			f.handleCommand(val)
		}
		f.unlock1 = val
		return
	}
	if a == 0x2AAA {
		f.unlock2 = val
		return
	}
}

func (f *Flash) handleCommand(cmd uint8) {
	switch cmd {
	case 0x80:
		f.mode = flashErase
	case 0x10:
		if f.mode == flashErase {
			f.eraseChip()
		}
		f.mode = flashIdle
	case 0x90:
		f.idMode = true
		f.mode = flashIdle
	case 0xA0:
		f.mode = flashWrite
	case 0xB0:
		f.mode = flashBankSwitch
	case 0xF0:
		f.idMode = false
		f.mode = flashIdle
	default:
		f.mode = flashIdle
	}
	if f.mode != flashIdle || f.idMode {
		f.triggered = true
	}
}

// Triggered reports whether a recognized command has ever moved the chip
// out of idle, i.e. whether the unlock sequence was followed by a real
// command rather than just two writes that happen to land on 0x5555/0x2AAA
// (spec.md §4.3).
func (f *Flash) Triggered() bool {
	return f.triggered
}

func (f *Flash) eraseChip() {
	for b := range f.banks {
		for i := range f.banks[b] {
			f.banks[b][i] = 0xFF
		}
	}
}

func (f *Flash) eraseSector(addr uint32) {
	start := uint32(addr&0xFFFF) &^ 0xFFF
	for i := start; i < start+0x1000; i++ {
		f.banks[f.bank][i] = 0xFF
	}
}

// Bytes concatenates both banks for snapshotting to disk.
func (f *Flash) Bytes() []byte {
	out := make([]byte, 0x20000)
	copy(out[:0x10000], f.banks[0][:])
	copy(out[0x10000:], f.banks[1][:])
	return out
}

// Load replaces both banks with a previously saved image.
func (f *Flash) Load(data []byte) {
	copy(f.banks[0][:], data)
	if len(data) > 0x10000 {
		copy(f.banks[1][:], data[0x10000:])
	}
}
