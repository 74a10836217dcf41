package bitutil

import "testing"

func TestRotateRight32(t *testing.T) {
	tests := []struct {
		x    uint32
		n    uint
		want uint32
	}{
		{0x00000001, 0, 0x00000001},
		{0x00000001, 1, 0x80000000},
		{0x80000000, 1, 0x40000000},
		{0x12345678, 32, 0x12345678},
		{0x0000000F, 4, 0xF0000000},
	}

	for _, tt := range tests {
		if got := RotateRight32(tt.x, tt.n); got != tt.want {
			t.Errorf("RotateRight32(0x%x, %d) = 0x%x, want 0x%x", tt.x, tt.n, got, tt.want)
		}
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		v    uint32
		bits uint
		want int32
	}{
		{0x01, 8, 1},
		{0x80, 8, -128},
		{0xFF, 8, -1},
		{0x3FFF, 14, -1},
		{0x2000, 14, -8192},
	}

	for _, tt := range tests {
		if got := SignExtend(tt.v, tt.bits); got != tt.want {
			t.Errorf("SignExtend(0x%x, %d) = %d, want %d", tt.v, tt.bits, got, tt.want)
		}
	}
}

func TestMulExtraCycles(t *testing.T) {
	tests := []struct {
		v    uint32
		want int
	}{
		{0x00000000, 1},
		{0x000000FF, 1},
		{0x0000FFFF, 2},
		{0x00FFFFFF, 3},
		{0xFFFFFFFF, 1},
		{0x7FFFFFFF, 4},
	}

	for _, tt := range tests {
		if got := MulExtraCycles(tt.v); got != tt.want {
			t.Errorf("MulExtraCycles(0x%x) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestBGR555ToRGBA8(t *testing.T) {
	if got := BGR555ToRGBA8(0); got != 0xFF000000 {
		t.Errorf("black = 0x%x, want 0xFF000000", got)
	}
	if got := BGR555ToRGBA8(0x001F); got&0xFF != 0xFF {
		t.Errorf("pure red low byte = 0x%x, want 0xFF", got&0xFF)
	}
}
