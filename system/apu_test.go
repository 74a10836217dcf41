package system

import "testing"

func TestNoiseLFSRPeriodSevenBit(t *testing.T) {
	ch := &noiseChannel{enabled: true, lfsr: 0x7F, width7: true}
	a := &apuState{}

	seen := map[uint16]bool{0x7F: true}
	period := 0
	for i := 0; i < 300; i++ {
		a.sampleNoise(ch)
		period++
		if ch.lfsr == 0x7F {
			break
		}
	}
	if period != 127 {
		t.Errorf("7-bit LFSR period = %d, want 127", period)
	}
	_ = seen
}

func TestFIFOQueueWrapsAndCapsAt32(t *testing.T) {
	var f fifoQueue
	for i := 0; i < 40; i++ {
		f.push(uint8(i))
	}
	if f.n != 32 {
		t.Fatalf("fifoQueue.n = %d, want capped at 32", f.n)
	}
	v, ok := f.pop()
	if !ok || v != 0 {
		t.Errorf("first pop = %d,%v, want 0,true", v, ok)
	}
}

func TestApuTakeSampleEmptyRing(t *testing.T) {
	s := newTestSystem(t)
	if _, _, ok := s.apuTakeSample(); ok {
		t.Errorf("expected no sample available on a freshly constructed System")
	}
}

func TestApuTakeSampleDrainsPushedSample(t *testing.T) {
	s := newTestSystem(t)
	s.pushSample(111, -222)
	left, right, ok := s.apuTakeSample()
	if !ok {
		t.Fatalf("expected a sample to be available")
	}
	if left != 111 || right != -222 {
		t.Errorf("got (%d,%d), want (111,-222)", left, right)
	}
}

func TestSoundMasterDisableResetsFIFOs(t *testing.T) {
	s := newTestSystem(t)
	s.apuFifoPush(0, 1)
	s.apuFifoPush(0, 2)

	s.Write8(0x04000084, 0x80) // SOUNDCNT_X: master enable on
	s.Write8(0x04000084, 0x00) // master enable off: 1->0 transition

	if got := s.apuFifoLen(0); got != 0 {
		t.Errorf("fifoLen after master-disable = %d, want 0", got)
	}
}
