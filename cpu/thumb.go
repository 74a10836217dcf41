package cpu

import "github.com/kjsanger/goba/bitutil"

// The Thumb decoder follows the same priority-ordered classification idea
// as ARM (spec.md §9), but with only 16 significant bits it's cheap enough
// to dispatch from a 1024-entry table indexed by bits [15:6], the way
// spec.md §9 suggests, rather than chaining if/else like the Gopher2600
// ARM core does.

type thumbHandler func(c *CPU, op uint16)

var thumbTable [1024]thumbHandler

func thumbIndex(op uint16) uint32 {
	return uint32(op >> 6)
}

func init() {
	for i := uint32(0); i < 1024; i++ {
		op := uint16(i << 6)
		thumbTable[i] = classifyThumb(op)
	}
}

func classifyThumb(op uint16) thumbHandler {
	switch {
	case op&0xFF00 == 0xDF00:
		return (*CPU).execThumbSWI
	case op&0xF800 == 0xE000:
		return (*CPU).execThumbUncondBranch
	case op&0xF000 == 0xD000:
		return (*CPU).execThumbCondBranch
	case op&0xF000 == 0xC000:
		return (*CPU).execThumbMultipleLoadStore
	case op&0xF000 == 0xF000:
		return (*CPU).execThumbLongBranchLink
	case op&0xFF00 == 0xB000:
		return (*CPU).execThumbAddOffsetToSP
	case op&0xF600 == 0xB400:
		return (*CPU).execThumbPushPop
	case op&0xF000 == 0x8000:
		return (*CPU).execThumbLoadStoreHalfword
	case op&0xF000 == 0x9000:
		return (*CPU).execThumbSPRelativeLoadStore
	case op&0xF000 == 0xA000:
		return (*CPU).execThumbLoadAddress
	case op&0xE000 == 0x6000:
		return (*CPU).execThumbLoadStoreImmOffset
	case op&0xF200 == 0x5000:
		return (*CPU).execThumbLoadStoreRegOffset
	case op&0xF200 == 0x5200:
		return (*CPU).execThumbLoadStoreSignExtended
	case op&0xF800 == 0x4800:
		return (*CPU).execThumbPCRelativeLoad
	case op&0xFC00 == 0x4400:
		return (*CPU).execThumbHiRegBX
	case op&0xFC00 == 0x4000:
		return (*CPU).execThumbALU
	case op&0xE000 == 0x2000:
		return (*CPU).execThumbMovCmpAddSubImm
	case op&0xF800 == 0x1800:
		return (*CPU).execThumbAddSub
	case op&0xE000 == 0x0000:
		return (*CPU).execThumbMoveShifted
	default:
		return (*CPU).execUndefinedThumb
	}
}

func (c *CPU) stepThumb() {
	if c.pipelineEmpty {
		word, wait := c.bus.Read16(c.r[15] &^ 1)
		c.pipeline = uint32(word)
		c.cycles += uint64(wait) + 1
		c.r[15] += 2
		c.pipelineEmpty = false
	}

	op := uint16(c.pipeline)
	word, wait := c.bus.Read16(c.r[15] &^ 1)
	c.pipeline = uint32(word)
	c.cycles += uint64(wait) + 1
	c.r[15] += 2

	thumbTable[thumbIndex(op)](c, op)
}

func (c *CPU) execUndefinedThumb(op uint16) {
	c.raiseUndefined()
}

func (c *CPU) execThumbMoveShifted(op uint16) {
	kind := uint32((op >> 11) & 0x3)
	amount := uint32((op >> 6) & 0x1F)
	rs := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	result, carry := c.shift(kind, c.get(rs), amount, true)
	c.set(rd, result)
	c.setNZ(result)
	c.setFlag(psrC, carry)
	c.cycles++
}

func (c *CPU) execThumbAddSub(op uint16) {
	immediate := op&0x0400 != 0
	subtract := op&0x0200 != 0
	rnOrImm := uint32((op >> 6) & 0x7)
	rs := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	var operand uint32
	if immediate {
		operand = rnOrImm
	} else {
		operand = c.get(rnOrImm)
	}

	rsVal := c.get(rs)
	var result uint32
	if subtract {
		result = rsVal - operand
		c.setFlag(psrC, rsVal >= operand)
		c.setFlag(psrV, addOverflow(rsVal, ^operand+1, result))
	} else {
		result = rsVal + operand
		c.setFlag(psrC, uint64(rsVal)+uint64(operand) > 0xFFFFFFFF)
		c.setFlag(psrV, addOverflow(rsVal, operand, result))
	}
	c.set(rd, result)
	c.setNZ(result)
	c.cycles++
}

func (c *CPU) execThumbMovCmpAddSubImm(op uint16) {
	opKind := (op >> 11) & 0x3
	rd := uint32((op >> 8) & 0x7)
	imm := uint32(op & 0xFF)

	rdVal := c.get(rd)
	var result uint32
	writeback := true

	switch opKind {
	case 0x0: // MOV
		result = imm
		c.setNZ(result)
	case 0x1: // CMP
		result = rdVal - imm
		c.setNZ(result)
		c.setFlag(psrC, rdVal >= imm)
		c.setFlag(psrV, addOverflow(rdVal, ^imm+1, result))
		writeback = false
	case 0x2: // ADD
		result = rdVal + imm
		c.setNZ(result)
		c.setFlag(psrC, uint64(rdVal)+uint64(imm) > 0xFFFFFFFF)
		c.setFlag(psrV, addOverflow(rdVal, imm, result))
	case 0x3: // SUB
		result = rdVal - imm
		c.setNZ(result)
		c.setFlag(psrC, rdVal >= imm)
		c.setFlag(psrV, addOverflow(rdVal, ^imm+1, result))
	}
	if writeback {
		c.set(rd, result)
	}
	c.cycles++
}

func (c *CPU) execThumbALU(op uint16) {
	opKind := (op >> 6) & 0xF
	rs := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	rdVal := c.get(rd)
	rsVal := c.get(rs)
	var result uint32
	writeback := true

	switch opKind {
	case 0x0: // AND
		result = rdVal & rsVal
	case 0x1: // EOR
		result = rdVal ^ rsVal
	case 0x2: // LSL
		result, _ = c.shift(shiftLSL, rdVal, rsVal&0xFF, false)
		carry := shiftCarryOnly(c, shiftLSL, rdVal, rsVal&0xFF)
		c.setFlag(psrC, carry)
	case 0x3: // LSR
		result, _ = c.shift(shiftLSR, rdVal, rsVal&0xFF, false)
		c.setFlag(psrC, shiftCarryOnly(c, shiftLSR, rdVal, rsVal&0xFF))
	case 0x4: // ASR
		result, _ = c.shift(shiftASR, rdVal, rsVal&0xFF, false)
		c.setFlag(psrC, shiftCarryOnly(c, shiftASR, rdVal, rsVal&0xFF))
	case 0x5: // ADC
		carry := uint32(0)
		if c.flagC() {
			carry = 1
		}
		result = rdVal + rsVal + carry
		c.setFlag(psrC, uint64(rdVal)+uint64(rsVal)+uint64(carry) > 0xFFFFFFFF)
		c.setFlag(psrV, addOverflow(rdVal, rsVal, result))
	case 0x6: // SBC
		borrow := uint32(1)
		if c.flagC() {
			borrow = 0
		}
		result = rdVal - rsVal - borrow
		c.setFlag(psrC, uint64(rdVal) >= uint64(rsVal)+uint64(borrow))
		c.setFlag(psrV, addOverflow(rdVal, ^rsVal, result))
	case 0x7: // ROR
		result, _ = c.shift(shiftROR, rdVal, rsVal&0xFF, false)
		c.setFlag(psrC, shiftCarryOnly(c, shiftROR, rdVal, rsVal&0xFF))
	case 0x8: // TST
		result = rdVal & rsVal
		writeback = false
	case 0x9: // NEG
		result = 0 - rsVal
		c.setFlag(psrC, rsVal == 0)
		c.setFlag(psrV, addOverflow(0, ^rsVal+1, result))
	case 0xA: // CMP
		result = rdVal - rsVal
		c.setFlag(psrC, rdVal >= rsVal)
		c.setFlag(psrV, addOverflow(rdVal, ^rsVal+1, result))
		writeback = false
	case 0xB: // CMN
		result = rdVal + rsVal
		c.setFlag(psrC, uint64(rdVal)+uint64(rsVal) > 0xFFFFFFFF)
		c.setFlag(psrV, addOverflow(rdVal, rsVal, result))
		writeback = false
	case 0xC: // ORR
		result = rdVal | rsVal
	case 0xD: // MUL
		result = rdVal * rsVal
		c.cycles += uint64(bitutil.MulExtraCycles(rsVal))
	case 0xE: // BIC
		result = rdVal &^ rsVal
	case 0xF: // MVN
		result = ^rsVal
	}

	c.setNZ(result)
	if writeback {
		c.set(rd, result)
	}
	c.cycles++
}

// shiftCarryOnly re-derives just the carry-out for the Thumb register-shift
// ALU ops, where amount==0 (register holds 0) must leave carry untouched —
// shift() already implements that rule for the immediate=false path.
func shiftCarryOnly(c *CPU, kind uint32, value, amount uint32) bool {
	_, carry := c.shift(kind, value, amount, false)
	return carry
}

func (c *CPU) execThumbHiRegBX(op uint16) {
	opKind := (op >> 8) & 0x3
	h1 := op&0x80 != 0
	h2 := op&0x40 != 0
	rs := uint32((op>>3)&0x7) + boolToReg(h2)
	rd := uint32(op&0x7) + boolToReg(h1)

	switch opKind {
	case 0x0: // ADD
		c.set(rd, c.get(rd)+c.get(rs))
	case 0x1: // CMP
		rdVal, rsVal := c.get(rd), c.get(rs)
		result := rdVal - rsVal
		c.setNZ(result)
		c.setFlag(psrC, rdVal >= rsVal)
		c.setFlag(psrV, addOverflow(rdVal, ^rsVal+1, result))
	case 0x2: // MOV
		c.set(rd, c.get(rs))
	case 0x3: // BX
		rm := c.get(rs)
		thumb := rm&1 != 0
		c.setFlag(psrThumb, thumb)
		if thumb {
			c.set(15, rm&^1)
		} else {
			c.set(15, rm&^3)
		}
		c.cycles++
	}
	c.cycles++
}

func boolToReg(b bool) uint32 {
	if b {
		return 8
	}
	return 0
}

func (c *CPU) execThumbPCRelativeLoad(op uint16) {
	rd := uint32((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2
	base := (c.r[15] &^ 3) + imm
	v, wait := c.bus.Read32(base)
	c.set(rd, v)
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbLoadStoreRegOffset(op uint16) {
	load := op&0x0800 != 0
	byteAccess := op&0x0400 != 0
	ro := uint32((op >> 6) & 0x7)
	rb := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	addr := c.get(rb) + c.get(ro)
	var wait int
	if load {
		if byteAccess {
			var v uint8
			v, wait = c.bus.Read8(addr)
			c.set(rd, uint32(v))
		} else {
			var v uint32
			v, wait = c.bus.Read32(addr &^ 3)
			v = bitutil.RotateRight32(v, uint((addr&3)*8))
			c.set(rd, v)
		}
	} else {
		if byteAccess {
			wait = c.bus.Write8(addr, uint8(c.get(rd)))
		} else {
			wait = c.bus.Write32(addr&^3, c.get(rd))
		}
	}
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbLoadStoreSignExtended(op uint16) {
	hFlag := op&0x0800 != 0
	signExtend := op&0x0400 != 0
	ro := uint32((op >> 6) & 0x7)
	rb := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	addr := c.get(rb) + c.get(ro)
	var wait int
	switch {
	case !signExtend && !hFlag: // STRH
		wait = c.bus.Write16(addr&^1, uint16(c.get(rd)))
	case !signExtend && hFlag: // LDRH
		var v uint16
		v, wait = c.bus.Read16(addr &^ 1)
		result := uint32(v)
		if addr&1 != 0 {
			result = bitutil.RotateRight32(result, 8)
		}
		c.set(rd, result)
	case signExtend && !hFlag: // LDSB
		var v uint8
		v, wait = c.bus.Read8(addr)
		c.set(rd, uint32(int32(int8(v))))
	default: // LDSH
		if addr&1 != 0 {
			var v uint8
			v, wait = c.bus.Read8(addr)
			c.set(rd, uint32(int32(int8(v))))
		} else {
			var v uint16
			v, wait = c.bus.Read16(addr)
			c.set(rd, uint32(bitutil.SignExtend(uint32(v), 16)))
		}
	}
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbLoadStoreImmOffset(op uint16) {
	byteAccess := op&0x1000 != 0
	load := op&0x0800 != 0
	imm := uint32((op >> 6) & 0x1F)
	rb := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	if !byteAccess {
		imm <<= 2
	}
	addr := c.get(rb) + imm

	var wait int
	if load {
		if byteAccess {
			var v uint8
			v, wait = c.bus.Read8(addr)
			c.set(rd, uint32(v))
		} else {
			var v uint32
			v, wait = c.bus.Read32(addr &^ 3)
			v = bitutil.RotateRight32(v, uint((addr&3)*8))
			c.set(rd, v)
		}
	} else {
		if byteAccess {
			wait = c.bus.Write8(addr, uint8(c.get(rd)))
		} else {
			wait = c.bus.Write32(addr&^3, c.get(rd))
		}
	}
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbLoadStoreHalfword(op uint16) {
	load := op&0x0800 != 0
	imm := uint32((op>>6)&0x1F) << 1
	rb := uint32((op >> 3) & 0x7)
	rd := uint32(op & 0x7)

	addr := c.get(rb) + imm
	var wait int
	if load {
		var v uint16
		v, wait = c.bus.Read16(addr &^ 1)
		c.set(rd, uint32(v))
	} else {
		wait = c.bus.Write16(addr&^1, uint16(c.get(rd)))
	}
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbSPRelativeLoadStore(op uint16) {
	load := op&0x0800 != 0
	rd := uint32((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2

	addr := c.get(13) + imm
	var wait int
	if load {
		var v uint32
		v, wait = c.bus.Read32(addr &^ 3)
		v = bitutil.RotateRight32(v, uint((addr&3)*8))
		c.set(rd, v)
	} else {
		wait = c.bus.Write32(addr&^3, c.get(rd))
	}
	c.cycles += uint64(wait) + 2
}

func (c *CPU) execThumbLoadAddress(op uint16) {
	useSP := op&0x0800 != 0
	rd := uint32((op >> 8) & 0x7)
	imm := uint32(op&0xFF) << 2

	var base uint32
	if useSP {
		base = c.get(13)
	} else {
		base = c.r[15] &^ 3
	}
	c.set(rd, base+imm)
	c.cycles++
}

func (c *CPU) execThumbAddOffsetToSP(op uint16) {
	negative := op&0x80 != 0
	imm := uint32(op&0x7F) << 2
	if negative {
		c.set(13, c.get(13)-imm)
	} else {
		c.set(13, c.get(13)+imm)
	}
	c.cycles++
}

func (c *CPU) execThumbPushPop(op uint16) {
	load := op&0x0800 != 0
	includeExtra := op&0x0100 != 0
	list := uint32(op & 0xFF)

	if load {
		regs := make([]uint32, 0, 9)
		for r := uint32(0); r < 8; r++ {
			if list&(1<<r) != 0 {
				regs = append(regs, r)
			}
		}
		if includeExtra {
			regs = append(regs, 15)
		}
		addr := c.get(13)
		for _, r := range regs {
			v, wait := c.bus.Read32(addr)
			c.cycles += uint64(wait)
			if r == 15 {
				c.set(15, v&^1)
			} else {
				c.set(r, v)
			}
			addr += 4
		}
		c.set(13, addr)
	} else {
		regs := make([]uint32, 0, 9)
		for r := uint32(0); r < 8; r++ {
			if list&(1<<r) != 0 {
				regs = append(regs, r)
			}
		}
		if includeExtra {
			regs = append(regs, 14)
		}
		addr := c.get(13) - uint32(len(regs))*4
		c.set(13, addr)
		for _, r := range regs {
			c.cycles += uint64(c.bus.Write32(addr, c.get(r)))
			addr += 4
		}
	}
	c.cycles += 2
}

func (c *CPU) execThumbMultipleLoadStore(op uint16) {
	load := op&0x0800 != 0
	rb := uint32((op >> 8) & 0x7)
	list := uint32(op & 0xFF)

	regs := make([]uint32, 0, 8)
	for r := uint32(0); r < 8; r++ {
		if list&(1<<r) != 0 {
			regs = append(regs, r)
		}
	}

	addr := c.get(rb)
	if len(regs) == 0 {
		// Empty list: R15 transferred, Rb += 0x40 (same degenerate case as
		// the ARM block-transfer form).
		if load {
			v, wait := c.bus.Read32(addr)
			c.cycles += uint64(wait)
			c.set(15, v&^1)
		} else {
			c.cycles += uint64(c.bus.Write32(addr, c.r[15]))
		}
		c.set(rb, addr+0x40)
		c.cycles += 2
		return
	}

	for i, r := range regs {
		if load {
			v, wait := c.bus.Read32(addr)
			c.cycles += uint64(wait)
			c.set(r, v)
		} else {
			var v uint32
			if r == rb && i == 0 {
				v = c.get(rb)
			} else {
				v = c.get(r)
			}
			c.cycles += uint64(c.bus.Write32(addr, v))
		}
		addr += 4
	}
	if !(load && list&(1<<rb) != 0) {
		c.set(rb, addr)
	}
	c.cycles += 2
}

func (c *CPU) execThumbCondBranch(op uint16) {
	cond := uint32((op >> 8) & 0xF)
	if !c.evalCondition(cond) {
		c.cycles++
		return
	}
	offset := bitutil.SignExtend(uint32(op&0xFF), 8) << 1
	c.set(15, uint32(int32(c.r[15])+offset))
	c.cycles += 2
}

func (c *CPU) execThumbUncondBranch(op uint16) {
	offset := bitutil.SignExtend(uint32(op&0x7FF), 11) << 1
	c.set(15, uint32(int32(c.r[15])+offset))
	c.cycles += 2
}

func (c *CPU) execThumbLongBranchLink(op uint16) {
	low := op&0x0800 != 0
	offset11 := uint32(op & 0x7FF)

	if !low {
		// First instruction: LR = PC + (SignExtend(offset11,11) << 12).
		ext := uint32(bitutil.SignExtend(offset11, 11) << 12)
		c.r[14] = c.r[15] + ext
		c.cycles++
		return
	}

	// Second instruction: PC = LR + (offset11 << 1); LR = (old PC) | 1.
	next := c.r[14] + (offset11 << 1)
	c.r[14] = (c.r[15] - 2) | 1
	c.set(15, next)
	c.cycles += 2
}

func (c *CPU) execThumbSWI(op uint16) {
	c.raiseSWI()
}
