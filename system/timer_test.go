package system

import "testing"

func TestTimerOverflowReloadsAndCascades(t *testing.T) {
	s := newTestSystem(t)

	// Timer 0: prescaler /1, reload near the top so one cycle overflows it.
	s.Write16(0x04000100, 0xFFFE) // TM0CNT_L reload
	s.Write16(0x04000102, 0x80)   // TM0CNT_H: enable, prescaler /1

	// Timer 1: cascade off timer 0, also near the top.
	s.Write16(0x04000104, 0xFFFF) // TM1CNT_L reload
	s.Write16(0x04000106, 0x80|0x04) // enable, cascade

	s.advanceTimers(3) // timer0: FFFE -> FFFF -> 10000(overflow, reload FFFE) -> FFFF

	if s.timers[0].counter != 0xFFFF {
		t.Errorf("timer0 counter = %#x, want 0xFFFF", s.timers[0].counter)
	}
	if s.timers[1].counter != 0xFFFF {
		t.Errorf("timer1 (cascaded) counter = %#x, want 0xFFFF (reloaded) after one cascade tick", s.timers[1].counter)
	}
}

func TestTimerFIFODrainTriggersDMAWhenLow(t *testing.T) {
	s := newTestSystem(t)

	s.Write16(0x04000082, 0x0B0C) // SOUNDCNT_H: FIFO A/B full volume, timer0 both

	// Program DMA1 in FIFO-A special-timing mode, already enabled.
	s.Write32(0x040000BC, ewramBase)
	s.Write32(0x040000C0, fifoAAddr)
	s.Write16(0x040000C4, 4)
	s.Write16(0x040000C6, 0x8000|0x3000|0x0040) // enable, special timing, dest fixed

	if !s.dma[1].enabled {
		t.Fatalf("DMA1 should be armed")
	}

	for i := 0; i < 17; i++ {
		s.apuFifoPush(0, uint8(i))
	}
	if got := s.apuFifoLen(0); got != 17 {
		t.Fatalf("fifoLen = %d, want 17", got)
	}

	s.onTimerOverflow(0)

	// Drain pops one byte (17 -> 16), and 16 <= 16 triggers the FIFO DMA
	// refill, which always pushes exactly four words (16 bytes).
	if got := s.apuFifoLen(0); got != 32 {
		t.Errorf("fifoLen after drain+refill = %d, want 32", got)
	}
}
