package system

// DMA timing-trigger values (DMAxCNT_H bits 12-13).
const (
	dmaTimingImmediate = 0
	dmaTimingVBlank    = 1
	dmaTimingHBlank    = 2
	dmaTimingSpecial   = 3
)

const (
	dmaDestInc          = 0
	dmaDestDec          = 1
	dmaDestFixed        = 2
	dmaDestIncReload    = 3
	dmaSrcInc           = 0
	dmaSrcDec           = 1
	dmaSrcFixed         = 2
	dmaSrcProhibited    = 3
	fifoAAddr    uint32 = 0x040000A0
	fifoBAddr    uint32 = 0x040000A4
)

// dmaChannel holds both the CPU-programmed registers and the latched
// internal working copies spec.md §3's invariant calls for: "while the
// enable bit is set, the internal source/destination/count mirrors the
// programmed values captured at enable transition; they are not re-read
// from the register during a transfer."
type dmaChannel struct {
	src, dst uint32
	count    uint16
	control  uint16

	srcCur, dstCur uint32
	countCur       uint32
	enabled        bool
}

func dmaBase(ch int) uint32 { return regDMA0SAD + uint32(ch)*0xC }

func (s *System) dmaRegRead(addr uint32) uint8 {
	ch := int((addr - regDMA0SAD) / 0xC)
	off := (addr - regDMA0SAD) % 0xC
	d := &s.dma[ch]
	switch {
	case off < 4:
		return uint8(d.src >> (off * 8))
	case off < 8:
		return uint8(d.dst >> ((off - 4) * 8))
	case off < 0xA:
		return uint8(d.count >> ((off - 8) * 8))
	default:
		control := d.control
		if d.enabled {
			control |= 0x8000
		}
		return uint8(control >> ((off - 0xA) * 8))
	}
}

func (s *System) dmaRegWrite(addr uint32, val uint8) {
	ch := int((addr - regDMA0SAD) / 0xC)
	off := (addr - regDMA0SAD) % 0xC
	d := &s.dma[ch]
	switch {
	case off < 4:
		shift := off * 8
		d.src = (d.src &^ (0xFF << shift)) | uint32(val)<<shift
	case off < 8:
		shift := (off - 4) * 8
		d.dst = (d.dst &^ (0xFF << shift)) | uint32(val)<<shift
	case off < 0xA:
		shift := (off - 8) * 8
		d.count = (d.count &^ (0xFF << shift)) | uint16(val)<<shift
	case off == 0xA:
		d.control = (d.control & 0xFF00) | uint16(val)
	default: // off == 0xB, high byte: bit 15 (relative to this byte, bit 7) is enable
		wasEnabled := d.enabled
		newControl := (d.control & 0x00FF) | uint16(val)<<8
		d.control = newControl
		nowEnabled := val&0x80 != 0
		d.enabled = nowEnabled
		if nowEnabled && !wasEnabled {
			s.armDMA(ch)
		}
	}
}

// armDMA implements the 0->1 enable transition: latch programmed values,
// align to unit width, and fire immediately if so configured (spec.md
// §4.5).
func (s *System) armDMA(ch int) {
	d := &s.dma[ch]
	d.srcCur = d.src
	d.dstCur = d.dst
	count := uint32(d.count)
	if count == 0 {
		if ch == 3 {
			count = 0x10000
		} else {
			count = 0x4000
		}
	}
	d.countCur = count

	unitWidth := uint32(2)
	if d.control&0x0400 != 0 {
		unitWidth = 4
	}
	d.srcCur &^= unitWidth - 1
	d.dstCur &^= unitWidth - 1

	if ch == 3 {
		srcRegion, dstRegion := region(d.srcCur), region(d.dstCur)
		if srcRegion == 0xC || srcRegion == 0xD || dstRegion == 0xC || dstRegion == 0xD {
			s.store.SetEEPROMTransferLen(int(d.countCur))
			s.store.ResetEEPROMTransfer()
		}
	}

	timing := (d.control >> 12) & 0x3
	if timing == dmaTimingImmediate {
		s.transferDMA(ch)
	}
}

// triggerDMA fires every enabled channel whose timing field matches
// timing, in channel-priority order 0..3 (spec.md §4.5).
func (s *System) triggerDMA(timing uint16) {
	for ch := 0; ch < 4; ch++ {
		d := &s.dma[ch]
		if !d.enabled {
			continue
		}
		if (d.control>>12)&0x3 != timing {
			continue
		}
		s.transferDMA(ch)
	}
}

// triggerFIFODMA is called by the timer when a FIFO-A/B sound timer
// overflows; it always transfers exactly 4 words regardless of the
// programmed count, as spec.md §4.5's FIFO-mode rule requires.
func (s *System) triggerFIFODMA(ch int) {
	d := &s.dma[ch]
	if !d.enabled || (d.control>>12)&0x3 != dmaTimingSpecial {
		return
	}
	s.transferFIFOWords(ch)
}

func destStep(control uint16, unit uint32) int32 {
	switch (control >> 5) & 0x3 {
	case dmaDestDec:
		return -int32(unit)
	case dmaDestFixed:
		return 0
	default:
		return int32(unit)
	}
}

func srcStep(control uint16, unit uint32) int32 {
	switch (control >> 7) & 0x3 {
	case dmaSrcDec:
		return -int32(unit)
	case dmaSrcFixed, dmaSrcProhibited:
		return 0
	default:
		return int32(unit)
	}
}

func (s *System) transferDMA(ch int) {
	d := &s.dma[ch]

	isFIFOTarget := (ch == 1 || ch == 2) && (d.control>>12)&0x3 == dmaTimingSpecial &&
		(d.dstCur == fifoAAddr || d.dstCur == fifoBAddr)
	if isFIFOTarget {
		s.transferFIFOWords(ch)
		return
	}

	unit := uint32(2)
	if d.control&0x0400 != 0 {
		unit = 4
	}
	dStep := destStep(d.control, unit)
	sStep := srcStep(d.control, unit)

	for i := uint32(0); i < d.countCur; i++ {
		if unit == 4 {
			v, _ := s.Read32(d.srcCur)
			s.Write32(d.dstCur, v)
		} else {
			v, _ := s.Read16(d.srcCur)
			s.Write16(d.dstCur, v)
		}
		d.srcCur = uint32(int32(d.srcCur) + sStep)
		d.dstCur = uint32(int32(d.dstCur) + dStep)
	}

	s.finishDMA(ch)
}

func (s *System) transferFIFOWords(ch int) {
	d := &s.dma[ch]
	sStep := srcStep(d.control, 4)
	fifoIdx := 0
	if d.dstCur == fifoBAddr {
		fifoIdx = 1
	}
	for i := 0; i < 4; i++ {
		v, _ := s.Read32(d.srcCur)
		s.apuFifoPushWord(fifoIdx, v)
		d.srcCur = uint32(int32(d.srcCur) + sStep)
	}
	if d.control&0x4000 != 0 {
		s.raiseIRQ(irqDMA0 << ch)
	}
	// FIFO-mode transfers always repeat; count/enable are untouched.
}

func (s *System) finishDMA(ch int) {
	d := &s.dma[ch]
	if d.control&0x4000 != 0 {
		s.raiseIRQ(irqDMA0 << ch)
	}
	if d.control&0x0200 != 0 {
		count := uint32(d.count)
		if count == 0 {
			if ch == 3 {
				count = 0x10000
			} else {
				count = 0x4000
			}
		}
		d.countCur = count
		if (d.control>>5)&0x3 == dmaDestIncReload {
			d.dstCur = d.dst
		}
	} else {
		d.enabled = false
	}
}
