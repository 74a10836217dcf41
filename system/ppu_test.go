package system

import "testing"

func TestRenderBitmap16ReadsVRAMDirectly(t *testing.T) {
	s := newTestSystem(t)
	s.Write16(0x04000000, 0x0003) // DISPCNT: mode 3

	// Pixel (0,0) BGR555 0x001F = red-only in GBA's BGR channel order.
	s.vram[0] = 0x1F
	s.vram[1] = 0x00

	c := newTestCompositor()
	s.renderBitmap16(0, c)

	want := bgr555ToRGBA(0x001F)
	if c.row[0] != want {
		t.Errorf("row[0] = %#x, want %#x", c.row[0], want)
	}
}

func TestRenderBitmap8UsesPaletteIndex(t *testing.T) {
	s := newTestSystem(t)
	s.Write16(0x05000002, 0x7FFF) // palette index 1 = white
	s.vram[5] = 1

	c := newTestCompositor()
	s.renderBitmap8(0, c, 0)

	if c.row[5] != s.paletteCache[1] {
		t.Errorf("row[5] = %#x, want paletteCache[1] = %#x", c.row[5], s.paletteCache[1])
	}
}

func newTestCompositor() *compositor {
	c := &compositor{row: make([]uint32, ScreenWidth)}
	for x := 0; x < ScreenWidth; x++ {
		c.mask[x] = 0x3F
		c.layerID[x] = layerBackdrop
		c.underID[x] = layerBackdrop
	}
	return c
}

func TestAdvanceAffineRefsOnlyAppliesInAffineModes(t *testing.T) {
	s := newTestSystem(t)
	s.ppu.bg2RefX = 100

	s.advanceAffineRefs(0) // mode 0: text-only, no advance
	if s.ppu.bg2RefX != 100 {
		t.Errorf("bg2RefX changed in mode 0: got %d, want unchanged 100", s.ppu.bg2RefX)
	}

	s.Write16(0x04000022, 0x0100) // BG2PB = 1.0 in 8.8 fixed point
	s.advanceAffineRefs(1)
	if s.ppu.bg2RefX != 356 {
		t.Errorf("bg2RefX after one mode-1 scanline = %d, want 356 (100+256)", s.ppu.bg2RefX)
	}
}

func TestComputeWindowMaskDisabledLeavesEverythingEnabled(t *testing.T) {
	s := newTestSystem(t)
	var mask [ScreenWidth]uint8
	s.computeWindowMask(10, 0x0000, &mask)
	for x, m := range mask {
		if m != 0x3F {
			t.Fatalf("mask[%d] = %#x, want 0x3F with windows disabled", x, m)
		}
	}
}

func TestComputeWindowMaskRestrictsToWin0Region(t *testing.T) {
	s := newTestSystem(t)
	s.Write16(0x04000040, uint16(10)<<8|uint16(20))  // WIN0H: X1=10, X2=20
	s.Write16(0x04000044, uint16(5)<<8|uint16(15))   // WIN0V: Y1=5, Y2=15
	s.Write16(0x04000048, 0x0001)                    // WININ: WIN0 enables BG0 only
	s.Write16(0x0400004A, 0x0000)                    // WINOUT: nothing outside

	var mask [ScreenWidth]uint8
	s.computeWindowMask(10, 0x2000, &mask) // DISPCNT: WIN0 enable

	if mask[15]&0x1 == 0 {
		t.Errorf("x=15,y=10 is inside WIN0 but BG0 not enabled: mask=%#x", mask[15])
	}
	if mask[5] != 0 {
		t.Errorf("x=5,y=10 is outside WIN0 and should use WINOUT (0): mask=%#x", mask[5])
	}
}

func TestApplyBlendAlphaBlendsTopAndUnderLayers(t *testing.T) {
	s := newTestSystem(t)
	s.Write16(0x04000050, 0x0241) // BLDCNT: BG0 1st target (bit0), mode=alpha (bits6-7=01), BG1 2nd target (bit9)
	s.Write16(0x04000052, uint16(8)|uint16(8)<<8) // BLDALPHA: EVA=8, EVB=8

	c := newTestCompositor()
	c.put(0, layerBG1, 0xFF000000) // under layer: black
	c.put(0, layerBG0, 0xFFFFFFFF) // top layer: white

	s.applyBlend(c)

	got := uint8(c.row[0])
	if got < 120 || got > 136 {
		t.Errorf("blended red channel = %d, want roughly 127 (half white + half black)", got)
	}
}

func TestApplyBlendModeZeroLeavesPixelsUnchanged(t *testing.T) {
	s := newTestSystem(t)
	// BLDCNT left at 0: blend mode field is 0 (none).
	c := newTestCompositor()
	c.put(0, layerBG0, 0x11223344)
	before := c.row[0]

	s.applyBlend(c)

	if c.row[0] != before {
		t.Errorf("row[0] changed with blend mode 0: got %#x, want unchanged %#x", c.row[0], before)
	}
}

func TestGatherBGLayersBitmapModeReturnsSingleBG2Layer(t *testing.T) {
	s := newTestSystem(t)
	s.Write16(0x04000008+2*2, 0x0002) // BG2CNT priority = 2
	layers := s.gatherBGLayers(3, 0x0403) // mode 3, BG2 enable (bit10)

	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	if layers[0].idx != 2 || layers[0].priority != 2 || layers[0].kind != bgLayerBitmap16 {
		t.Errorf("layer = %+v, want idx=2 priority=2 kind=bgLayerBitmap16", layers[0])
	}
}

func TestGatherBGLayersBitmapModeDisabledReturnsNoLayers(t *testing.T) {
	s := newTestSystem(t)
	layers := s.gatherBGLayers(3, 0x0003) // mode 3, BG2 display bit not set
	if layers != nil {
		t.Errorf("got %v, want nil when BG2 display is disabled", layers)
	}
}

func TestOBJShapeSizeLookupCoversAllEntries(t *testing.T) {
	for shape := 0; shape < 3; shape++ {
		for size := 0; size < 4; size++ {
			dims := objShapeSize[shape][size]
			if dims[0] == 0 || dims[1] == 0 {
				t.Errorf("objShapeSize[%d][%d] has a zero dimension: %v", shape, size, dims)
			}
		}
	}
}
