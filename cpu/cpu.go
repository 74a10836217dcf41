// Package cpu implements the ARM7TDMI processor core: register banking,
// PSR handling, the barrel shifter, and the ARM and Thumb decode/execute
// pipelines (spec.md §4.4). The CPU never touches memory directly; all
// access goes through the Bus interface, exactly as mos6502.memory only
// ever reaches cartridge space through mappers.Mapper.
package cpu

// Bus is the narrow memory interface the CPU needs. Read/Write methods
// return the number of extra wait-state cycles the access cost (spec.md
// §4.1); the CPU folds that into its own retired-cycle counter, the way
// spec.md §9 asks ("never pass cycles through return values" of the CPU's
// own exported surface — this return value stays internal to cpu.Step).
type Bus interface {
	Read8(addr uint32) (uint8, int)
	Read16(addr uint32) (uint16, int)
	Read32(addr uint32) (uint32, int)
	Write8(addr uint32, val uint8) int
	Write16(addr uint32, val uint16) int
	Write32(addr uint32, val uint32) int

	// IRQPending reports whether (IE & IF) != 0 in the I/O register file,
	// independent of CPSR's own IRQ mask — the CPU combines this with its
	// own IME/CPSR.I gate when deciding whether to take the interrupt.
	IRQPending() bool
	// IME reports the master interrupt enable register.
	IME() bool
}

// Processor mode field values (spec.md §3).
const (
	ModeUser   uint32 = 0x10
	ModeFIQ    uint32 = 0x11
	ModeIRQ    uint32 = 0x12
	ModeSVC    uint32 = 0x13
	ModeAbort  uint32 = 0x17
	ModeUndef  uint32 = 0x1B
	ModeSystem uint32 = 0x1F
)

// CPSR bit positions.
const (
	psrThumb = 1 << 5
	psrFIQ   = 1 << 6
	psrIRQ   = 1 << 7
	psrV     = 1 << 28
	psrC     = 1 << 29
	psrZ     = 1 << 30
	psrN     = 1 << 31
)

type bankSet int

const (
	bankUSR bankSet = iota
	bankFIQ
	bankIRQ
	bankSVC
	bankABT
	bankUND
	bankCount
)

// Exception vectors (spec.md §4.4).
const (
	VectorReset    uint32 = 0x00
	VectorUndef    uint32 = 0x04
	VectorSWI      uint32 = 0x08
	VectorPrefetch uint32 = 0x0C
	VectorData     uint32 = 0x10
	VectorIRQ      uint32 = 0x18
	VectorFIQ      uint32 = 0x1C
)

// CPU holds all processor state: the sixteen active registers, every
// privileged mode's banked shadow registers, CPSR and the per-mode SPSRs,
// the instruction prefetch latch, the shifter's carry-out scratch and the
// 64-bit retired-cycle counter (spec.md §3).
type CPU struct {
	bus Bus

	r          [16]uint32
	r8_12fiq   [5]uint32
	r8_12other [5]uint32
	r13_14     [bankCount][2]uint32
	spsr       [bankCount]uint32

	cpsr    uint32
	curBank bankSet

	pipeline      uint32
	pipelineEmpty bool

	shifterCarry bool

	cycles uint64
	halted bool
}

// New returns a CPU wired to bus. Callers must call Reset (or ResetSkipBIOS)
// before stepping.
func New(bus Bus) *CPU {
	return &CPU{bus: bus}
}

func bankForMode(mode uint32) bankSet {
	switch mode {
	case ModeFIQ:
		return bankFIQ
	case ModeIRQ:
		return bankIRQ
	case ModeSVC:
		return bankSVC
	case ModeAbort:
		return bankABT
	case ModeUndef:
		return bankUND
	default:
		return bankUSR
	}
}

// Mode returns the current PSR mode field.
func (c *CPU) Mode() uint32 { return c.cpsr & 0x1F }

// Thumb reports whether the T bit is set.
func (c *CPU) Thumb() bool { return c.cpsr&psrThumb != 0 }

func (c *CPU) flagN() bool { return c.cpsr&psrN != 0 }
func (c *CPU) flagZ() bool { return c.cpsr&psrZ != 0 }
func (c *CPU) flagC() bool { return c.cpsr&psrC != 0 }
func (c *CPU) flagV() bool { return c.cpsr&psrV != 0 }

func (c *CPU) setNZ(result uint32) {
	c.cpsr &^= psrN | psrZ
	if result&0x80000000 != 0 {
		c.cpsr |= psrN
	}
	if result == 0 {
		c.cpsr |= psrZ
	}
}

func (c *CPU) setFlag(mask uint32, set bool) {
	if set {
		c.cpsr |= mask
	} else {
		c.cpsr &^= mask
	}
}

// CPSR returns the raw current program status register.
func (c *CPU) CPSR() uint32 { return c.cpsr }

// PC returns the raw program counter register (R15).
func (c *CPU) PC() uint32 { return c.r[15] }

// Cycles returns the 64-bit retired-cycle counter.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Halted reports whether the CPU is in the HALTCNT power-down state.
func (c *CPU) Halted() bool { return c.halted }

// Halt enters the HALTCNT power-down state (spec.md §4 supplement): CPU
// stepping is suspended until an enabled interrupt becomes pending.
func (c *CPU) Halt() { c.halted = true }

// get returns register r (0..15) through the active bank.
func (c *CPU) get(r uint32) uint32 {
	return c.r[r&0xF]
}

// set writes register r (0..15). Writes to R15 mask to the current
// instruction-set alignment and flush the prefetch latch (spec.md §3, §4.4).
func (c *CPU) set(r, v uint32) {
	if r == 15 {
		if c.Thumb() {
			v &^= 1
		} else {
			v &^= 3
		}
		c.r[15] = v
		c.flushPipeline()
		return
	}
	c.r[r&0xF] = v
}

func (c *CPU) flushPipeline() {
	c.pipelineEmpty = true
}

// setCPSR installs a new CPSR value, performing a mode-bank switch if the
// mode field changed (spec.md invariant: "Mode-bank coherence").
func (c *CPU) setCPSR(v uint32) {
	newMode := v & 0x1F
	oldMode := c.cpsr & 0x1F
	c.cpsr = v
	if newMode != oldMode {
		c.switchBank(newMode)
	}
}

func (c *CPU) switchBank(newMode uint32) {
	newBank := bankForMode(newMode)
	if newBank == c.curBank {
		return
	}

	if c.curBank == bankFIQ {
		copy(c.r8_12fiq[:], c.r[8:13])
	} else {
		copy(c.r8_12other[:], c.r[8:13])
	}
	c.r13_14[c.curBank][0] = c.r[13]
	c.r13_14[c.curBank][1] = c.r[14]

	if newBank == bankFIQ {
		copy(c.r[8:13], c.r8_12fiq[:])
	} else {
		copy(c.r[8:13], c.r8_12other[:])
	}
	c.r[13] = c.r13_14[newBank][0]
	c.r[14] = c.r13_14[newBank][1]

	c.curBank = newBank
}

// spsrGet/spsrSet access the banked SPSR of the current mode. Reading or
// writing SPSR in User/System mode is invalid on real hardware; callers
// only reach these paths from privileged-mode handlers, matching spec.md.
func (c *CPU) spsrGet() uint32 {
	return c.spsr[c.curBank]
}

func (c *CPU) spsrSet(v uint32) {
	c.spsr[c.curBank] = v
}

// userGet/userSet access R8..R14 in the User/System bank regardless of the
// current mode, used by LDM/STM with S=1 and no R15 in the list (spec.md
// §4.4 "user-bank registers are accessed regardless of mode").
func (c *CPU) userGet(r uint32) uint32 {
	if c.curBank == bankUSR {
		return c.r[r]
	}
	if r >= 8 && r <= 12 {
		if c.curBank == bankFIQ {
			return c.r8_12other[r-8]
		}
		return c.r[r]
	}
	if r == 13 || r == 14 {
		return c.r13_14[bankUSR][r-13]
	}
	return c.r[r]
}

func (c *CPU) userSet(r, v uint32) {
	if c.curBank == bankUSR {
		c.r[r] = v
		return
	}
	if r >= 8 && r <= 12 {
		if c.curBank == bankFIQ {
			c.r8_12other[r-8] = v
			return
		}
		c.r[r] = v
		return
	}
	if r == 13 || r == 14 {
		c.r13_14[bankUSR][r-13] = v
		return
	}
	c.r[r] = v
}

// Reset performs a full power-on reset: CPSR = SVC mode with interrupts
// masked, PC = the reset vector, pipeline flushed.
func (c *CPU) Reset() {
	*c = CPU{bus: c.bus}
	c.cpsr = ModeSVC | psrIRQ | psrFIQ
	c.r[15] = VectorReset
	c.pipelineEmpty = true
}

// ResetSkipBIOS performs the "boot with BIOS skip" sequence of spec.md
// §4.4: CPSR = System mode, the three stack pointers preloaded, PC at the
// cartridge entry point. WAITCNT/RCNT/POSTFLG/the BIOS bus latch are the
// caller's (system package's) responsibility since they live in the I/O
// register file and bus, not in cpu.CPU.
func (c *CPU) ResetSkipBIOS() {
	*c = CPU{bus: c.bus}
	c.cpsr = ModeSystem
	c.curBank = bankUSR
	c.r13_14[bankSVC][0] = 0x03007FE0
	c.r13_14[bankIRQ][0] = 0x03007FA0
	c.r[13] = 0x03007F00
	c.r[15] = 0x08000000
	c.pipelineEmpty = true
}

// Step either takes a pending interrupt (the IRQ entry alone, leaving PC at
// VectorIRQ) or executes exactly one instruction, and returns the number of
// cycles it took, including wait states. If the CPU is halted and no
// interrupt is taken, Step does nothing and returns 0; the caller
// (system.Frame) must still advance DMA/timers/PPU/APU while halted
// (spec.md §4 supplement).
func (c *CPU) Step() uint64 {
	before := c.cycles

	if c.checkInterrupt() {
		return c.cycles - before
	}
	if c.halted {
		return 0
	}

	if c.Thumb() {
		c.stepThumb()
	} else {
		c.stepARM()
	}

	return c.cycles - before
}

// checkInterrupt enters IRQ mode if IME, CPSR.I=0 and (IE&IF)!=0 (spec.md
// §4.4, §8 property 8) and reports whether it did.
func (c *CPU) checkInterrupt() bool {
	if !c.bus.IME() || c.cpsr&psrIRQ != 0 || !c.bus.IRQPending() {
		return false
	}

	c.halted = false

	retAddr := c.r[15]

	oldCPSR := c.cpsr
	newMode := ModeIRQ
	c.switchBank(newMode)
	c.cpsr = (oldCPSR &^ 0x1F) | newMode
	c.spsrSet(oldCPSR)
	c.cpsr |= psrIRQ
	c.cpsr &^= psrThumb

	c.r[14] = retAddr - 4
	c.r[15] = VectorIRQ
	c.flushPipeline()
	c.cycles += 3
	return true
}
