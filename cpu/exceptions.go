package cpu

// enterException performs the common exception-entry sequence: bank switch,
// CPSR save to the new mode's SPSR, mode/IRQ-mask/Thumb bits updated, link
// register set, PC redirected to vector, pipeline flushed (spec.md §4.4).
func (c *CPU) enterException(vector, newMode, linkValue uint32) {
	oldCPSR := c.cpsr
	c.switchBank(newMode)
	c.cpsr = (oldCPSR &^ 0x1F) | newMode
	c.spsrSet(oldCPSR)
	c.cpsr |= psrIRQ
	c.cpsr &^= psrThumb

	c.r[14] = linkValue
	c.r[15] = vector
	c.flushPipeline()
}

// raiseSWI enters the software-interrupt exception. SWI uses R14 = R15-4
// in ARM state or R15-2 in Thumb state (spec.md §4.4); by the time this is
// called R15 already holds the address of the next instruction to fetch.
func (c *CPU) raiseSWI() {
	var link uint32
	if c.Thumb() {
		link = c.r[15] - 2
	} else {
		link = c.r[15] - 4
	}
	c.enterException(VectorSWI, ModeSVC, link)
	c.cycles += 3
}

// raiseUndefined enters the undefined-instruction exception, using the same
// R14 adjustment rule as SWI.
func (c *CPU) raiseUndefined() {
	var link uint32
	if c.Thumb() {
		link = c.r[15] - 2
	} else {
		link = c.r[15] - 4
	}
	c.enterException(VectorUndef, ModeUndef, link)
	c.cycles += 3
}
