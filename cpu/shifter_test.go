package cpu

import "testing"

func TestShiftImmediateEdgeCases(t *testing.T) {
	bus := newFakeBus()
	c := New(bus)
	c.ResetSkipBIOS()

	cases := []struct {
		name     string
		kind     uint32
		value    uint32
		amount   uint32
		wantVal  uint32
		wantCarr bool
	}{
		{"LSL#0 unchanged", shiftLSL, 0x80000000, 0, 0x80000000, false},
		{"LSR#0 means LSR32", shiftLSR, 0x80000000, 0, 0, true},
		{"ASR#0 means ASR32 negative", shiftASR, 0x80000000, 0, 0xFFFFFFFF, true},
		{"ASR#0 means ASR32 positive", shiftASR, 0x7FFFFFFF, 0, 0, false},
		{"ROR#0 means RRX", shiftROR, 0x00000002, 0, 0x00000001, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, carry := c.shift(tc.kind, tc.value, tc.amount, true)
			if got != tc.wantVal || carry != tc.wantCarr {
				t.Errorf("shift(%d,%#x,%d,true) = (%#x,%v), want (%#x,%v)",
					tc.kind, tc.value, tc.amount, got, carry, tc.wantVal, tc.wantCarr)
			}
		})
	}
}

func TestShiftRegisterAmountEdgeCases(t *testing.T) {
	bus := newFakeBus()
	c := New(bus)
	c.ResetSkipBIOS()

	cases := []struct {
		name    string
		kind    uint32
		value   uint32
		amount  uint32
		wantVal uint32
		wantC   bool
	}{
		{"LSL by 0 leaves carry untouched", shiftLSL, 0x1, 0, 0x1, false},
		{"LSL by 32", shiftLSL, 0x1, 32, 0, true},
		{"LSL by >32", shiftLSL, 0x1, 33, 0, false},
		{"LSR by 32", shiftLSR, 0x80000000, 32, 0, true},
		{"LSR by >32", shiftLSR, 0x80000000, 40, 0, false},
		{"ASR by >=32 negative", shiftASR, 0x80000000, 40, 0xFFFFFFFF, true},
		{"ROR by exact multiple of 32", shiftROR, 0x80000001, 32, 0x80000001, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, carry := c.shift(tc.kind, tc.value, tc.amount, false)
			if got != tc.wantVal || carry != tc.wantC {
				t.Errorf("shift(%d,%#x,%d,false) = (%#x,%v), want (%#x,%v)",
					tc.kind, tc.value, tc.amount, got, carry, tc.wantVal, tc.wantC)
			}
		})
	}
}
