package system

// ppuState holds the PPU's running affine reference copies — the only
// piece of PPU state that must survive across scanlines independently of
// the register file (spec.md §3's "internal running copy the PPU advances
// each scanline").
type ppuState struct {
	bg2RefX, bg2RefY int32
	bg3RefX, bg3RefY int32
}

const (
	objPaletteBase = 0x100 // palette RAM offset, in 16-bit entries
)

// Layer identifiers used by the window/blend compositor to track which
// layer last touched a pixel (spec.md §3's window/blend register bullet).
const (
	layerBG0 = iota
	layerBG1
	layerBG2
	layerBG3
	layerOBJ
	layerBackdrop
)

// compositor threads per-pixel layer bookkeeping through the BG/OBJ
// renderers so the post-compositing blend pass (BLDCNT/BLDALPHA/BLDY) can
// tell which two layers are eligible to blend at each x, and so window
// clipping (WIN0/WIN1/WINOUT) can suppress individual layers per pixel
// without each renderer needing its own copy of the window logic.
type compositor struct {
	row        []uint32
	layerID    [ScreenWidth]uint8
	underID    [ScreenWidth]uint8
	underColor [ScreenWidth]uint32
	mask       [ScreenWidth]uint8 // bit0-3 BG0-3, bit4 OBJ, bit5 effects
}

func (c *compositor) put(x int, id uint8, color uint32) {
	c.underColor[x] = c.row[x]
	c.underID[x] = c.layerID[x]
	c.row[x] = color
	c.layerID[x] = id
}

// renderScanline rasterizes scanline y into the framebuffer, following the
// priority-ordered background/sprite composition spec.md §4.7 describes,
// then applies window clipping and the blend effect as a final pass.
func (s *System) renderScanline(y int) {
	dispcnt := s.io.raw16(regDISPCNT)
	mode := dispcnt & 0x7

	row := s.framebuffer[y*ScreenWidth : y*ScreenWidth+ScreenWidth]
	backdrop := s.paletteCache[0]
	for x := range row {
		row[x] = backdrop
	}

	c := &compositor{row: row}
	for x := 0; x < ScreenWidth; x++ {
		c.layerID[x] = layerBackdrop
		c.underID[x] = layerBackdrop
		c.underColor[x] = backdrop
	}
	s.computeWindowMask(y, dispcnt, &c.mask)

	layers := s.gatherBGLayers(mode, dispcnt)
	showOBJ := dispcnt&0x1000 != 0

	// Priority is a single ranking shared by every BG and OBJ layer
	// (spec.md §4.7): draw back-to-front, one priority level at a time, so
	// a sprite and a background at the same priority composite in the
	// right relative order regardless of which kind of layer is in front.
	for priority := 3; priority >= 0; priority-- {
		for _, l := range layers {
			if l.priority != priority {
				continue
			}
			s.renderBGLayer(y, c, dispcnt, l)
		}
		if showOBJ {
			s.renderOBJLine(y, c, priority)
		}
	}

	s.applyBlend(c)
	s.advanceAffineRefs(mode)
}

// bgLayer describes one active background layer for the current mode: its
// BG index, its rendering kind, and the priority value it composites at.
type bgLayer struct {
	idx      int
	priority int
	kind     bgLayerKind
}

type bgLayerKind int

const (
	bgLayerText bgLayerKind = iota
	bgLayerAffine
	bgLayerBitmap16
	bgLayerBitmap8
	bgLayerBitmapSmall
)

// gatherBGLayers returns the active background layers for mode, each
// tagged with the priority value it shares with the OBJ compositor's
// per-priority pass (spec.md §4.7). Bitmap modes (3-5) have exactly one
// background layer, fixed to BG2, whose priority comes from BG2CNT like
// any other background.
func (s *System) gatherBGLayers(mode, dispcnt uint16) []bgLayer {
	if mode >= 3 {
		if dispcnt&(1<<10) == 0 { // BG2 display enable
			return nil
		}
		cnt := s.io.raw16(regBG0CNT + 2*2)
		kind := bgLayerBitmap16
		switch mode {
		case 4:
			kind = bgLayerBitmap8
		case 5:
			kind = bgLayerBitmapSmall
		}
		return []bgLayer{{idx: 2, priority: int(cnt & 0x3), kind: kind}}
	}

	var layers []bgLayer
	for bg := 0; bg < 4; bg++ {
		if dispcnt&(1<<(8+bg)) == 0 {
			continue
		}
		if mode == 1 && bg == 3 {
			continue
		}
		if mode == 2 && (bg == 0 || bg == 1) {
			continue
		}
		kind := bgLayerText
		if (mode == 1 && bg == 2) || (mode == 2 && (bg == 2 || bg == 3)) {
			kind = bgLayerAffine
		}
		cnt := s.io.raw16(uint32(regBG0CNT + bg*2))
		layers = append(layers, bgLayer{idx: bg, priority: int(cnt & 0x3), kind: kind})
	}
	return layers
}

func (s *System) renderBGLayer(y int, c *compositor, dispcnt uint16, l bgLayer) {
	switch l.kind {
	case bgLayerText:
		s.renderTextBGLine(y, c, l.idx)
	case bgLayerAffine:
		s.renderAffineBGLine(y, c, l.idx)
	case bgLayerBitmap16:
		s.renderBitmap16(y, c)
	case bgLayerBitmap8:
		s.renderBitmap8(y, c, dispcnt)
	case bgLayerBitmapSmall:
		s.renderBitmapSmall(y, c, dispcnt)
	}
}

// computeWindowMask fills mask[x] with the per-pixel layer/effect enable
// bits for scanline y (spec.md §3's window register bullet). When neither
// WIN0 nor WIN1 is enabled in DISPCNT, every layer and the blend effect are
// left enabled everywhere, matching hardware's "windows off" behavior.
// OBJ-window masking (WINOUT's high byte) is not modeled: no example in the
// pack implements per-sprite window contribution, and threading it through
// the OBJ line renderer as a second compositing pass was judged out of
// proportion to the rest of this pass — see DESIGN.md.
func (s *System) computeWindowMask(y int, dispcnt uint16, mask *[ScreenWidth]uint8) {
	win0On := dispcnt&0x2000 != 0
	win1On := dispcnt&0x4000 != 0

	if !win0On && !win1On {
		for x := range mask {
			mask[x] = 0x3F
		}
		return
	}

	winin := s.io.raw16(regWININ)
	winout := s.io.raw16(regWINOUT)
	outside := uint8(winout & 0x3F)
	win1Enable := uint8((winin >> 8) & 0x3F)
	win0Enable := uint8(winin & 0x3F)

	win1In := win1On && inWindowRange(y, s.io.raw16(regWIN1V), ScreenHeight)
	win0In := win0On && inWindowRange(y, s.io.raw16(regWIN0V), ScreenHeight)
	win1H := s.io.raw16(regWIN1H)
	win0H := s.io.raw16(regWIN0H)

	for x := 0; x < ScreenWidth; x++ {
		switch {
		case win0In && inWindowRange(x, win0H, ScreenWidth):
			mask[x] = win0Enable
		case win1In && inWindowRange(x, win1H, ScreenWidth):
			mask[x] = win1Enable
		default:
			mask[x] = outside
		}
	}
}

// inWindowRange reports whether v falls within the [hi-byte, lo-byte)
// range packed into a WINxH/WINxV register, wrapping around max the way
// real hardware does when the low coordinate exceeds the high one.
func inWindowRange(v int, reg uint16, max int) bool {
	lo := int(reg >> 8)
	hi := int(reg & 0xFF)
	if hi > max {
		hi = max
	}
	if lo <= hi {
		return v >= lo && v < hi
	}
	return v >= lo || v < hi
}

// applyBlend runs BLDCNT's alpha-blend or brightness inc/dec effect over
// every pixel whose window mask still has the effects bit set (spec.md §3's
// blend register bullet), using the top/under layer and color the
// compositor recorded during BG/OBJ rendering.
func (s *System) applyBlend(c *compositor) {
	bldcnt := s.io.raw16(regBLDCNT)
	mode := (bldcnt >> 6) & 0x3
	if mode == 0 {
		return
	}
	target1 := uint8(bldcnt & 0x3F)
	target2 := uint8((bldcnt >> 8) & 0x3F)

	for x := 0; x < ScreenWidth; x++ {
		if c.mask[x]&0x20 == 0 {
			continue
		}
		if target1&(1<<c.layerID[x]) == 0 {
			continue
		}

		switch mode {
		case 1:
			if target2&(1<<c.underID[x]) == 0 {
				continue
			}
			bldalpha := s.io.raw16(regBLDALPHA)
			eva := int(bldalpha & 0x1F)
			if eva > 16 {
				eva = 16
			}
			evb := int((bldalpha >> 8) & 0x1F)
			if evb > 16 {
				evb = 16
			}
			c.row[x] = blendAlpha(c.row[x], c.underColor[x], eva, evb)
		case 2:
			evy := blendEVY(s.io.raw16(regBLDY))
			c.row[x] = blendToward(c.row[x], 0xFF, evy)
		case 3:
			evy := blendEVY(s.io.raw16(regBLDY))
			c.row[x] = blendToward(c.row[x], 0x00, evy)
		}
	}
}

func blendEVY(bldy uint16) int {
	evy := int(bldy & 0x1F)
	if evy > 16 {
		evy = 16
	}
	return evy
}

func blendAlpha(top, bot uint32, eva, evb int) uint32 {
	r := blendChannel(uint8(top), uint8(bot), eva, evb)
	g := blendChannel(uint8(top>>8), uint8(bot>>8), eva, evb)
	b := blendChannel(uint8(top>>16), uint8(bot>>16), eva, evb)
	return 0xFF000000 | uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

func blendChannel(top, bot uint8, eva, evb int) uint8 {
	v := (int(top)*eva + int(bot)*evb) / 16
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// blendToward moves every channel of c a fraction evy/16 of the way toward
// targetChannel (0xFF for the brighten effect, 0x00 for the darken effect).
func blendToward(c uint32, targetChannel uint8, evy int) uint32 {
	r := blendOneToward(uint8(c), targetChannel, evy)
	g := blendOneToward(uint8(c>>8), targetChannel, evy)
	b := blendOneToward(uint8(c>>16), targetChannel, evy)
	return 0xFF000000 | uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

func blendOneToward(v, target uint8, evy int) uint8 {
	delta := (int(target) - int(v)) * evy / 16
	result := int(v) + delta
	if result < 0 {
		result = 0
	}
	if result > 255 {
		result = 255
	}
	return uint8(result)
}

func (s *System) renderBitmap16(y int, c *compositor) {
	base := y * ScreenWidth * 2
	for x := 0; x < ScreenWidth; x++ {
		if c.mask[x]&(1<<layerBG2) == 0 {
			continue
		}
		off := base + x*2
		pc := uint16(s.vram[off]) | uint16(s.vram[off+1])<<8
		c.put(x, layerBG2, bgr555ToRGBA(pc))
	}
}

func (s *System) renderBitmap8(y int, c *compositor, dispcnt uint16) {
	frameBase := 0
	if dispcnt&0x10 != 0 {
		frameBase = 0xA000
	}
	base := frameBase + y*ScreenWidth
	for x := 0; x < ScreenWidth; x++ {
		if c.mask[x]&(1<<layerBG2) == 0 {
			continue
		}
		idx := s.vram[base+x]
		if idx == 0 {
			continue
		}
		c.put(x, layerBG2, s.paletteCache[idx])
	}
}

func (s *System) renderBitmapSmall(y int, c *compositor, dispcnt uint16) {
	const w, h = 160, 128
	if y >= h {
		return
	}
	frameBase := 0
	if dispcnt&0x10 != 0 {
		frameBase = 0xA000
	}
	base := frameBase + y*w*2
	for x := 0; x < w; x++ {
		if c.mask[x]&(1<<layerBG2) == 0 {
			continue
		}
		off := base + x*2
		pc := uint16(s.vram[off]) | uint16(s.vram[off+1])<<8
		c.put(x, layerBG2, bgr555ToRGBA(pc))
	}
}

// advanceAffineRefs advances the BG2/3 internal reference point by the
// BG matrix's pb/pd column once per scanline (spec.md §4.7).
func (s *System) advanceAffineRefs(mode uint16) {
	if mode != 1 && mode != 2 {
		return
	}
	bg2pb := int32(int16(s.io.raw16(regBG2PA + 2)))
	bg2pd := int32(int16(s.io.raw16(regBG2PA + 6)))
	s.ppu.bg2RefX += bg2pb
	s.ppu.bg2RefY += bg2pd
	if mode == 2 {
		bg3pb := int32(int16(s.io.raw16(regBG3PA + 2)))
		bg3pd := int32(int16(s.io.raw16(regBG3PA + 6)))
		s.ppu.bg3RefX += bg3pb
		s.ppu.bg3RefY += bg3pd
	}
}

func (s *System) renderTextBGLine(y int, c *compositor, bg int) {
	cnt := s.io.raw16(uint32(regBG0CNT + bg*2))
	hofs := s.io.raw16(uint32(regBG0HOFS+bg*4)) & 0x1FF
	vofs := s.io.raw16(uint32(regBG0HOFS+bg*4+2)) & 0x1FF

	screenBase := int(((cnt >> 8) & 0x1F)) * 0x800
	charBase := int(((cnt >> 2) & 0x3)) * 0x4000
	screenSize := (cnt >> 14) & 0x3
	is8bpp := cnt&0x80 != 0

	ty := (y + int(vofs))
	tmy := ty / 8

	bgBit := uint8(1 << bg)

	for x := 0; x < ScreenWidth; x++ {
		if c.mask[x]&bgBit == 0 {
			continue
		}

		tx := x + int(hofs)
		tmx := tx / 8

		sbase := screenBase
		switch screenSize {
		case 1:
			if (tmx/32)%2 == 1 {
				sbase += 0x800
			}
		case 2:
			if (tmy/32)%2 == 1 {
				sbase += 0x800
			}
		case 3:
			sbase += ((tmx/32)%2)*0x800 + ((tmy/32)%2)*0x1000
		}

		entryOff := sbase + ((tmy & 31) << 6) + ((tmx & 31) << 1)
		entry := uint16(s.vram[entryOff]) | uint16(s.vram[entryOff+1])<<8
		tileIdx := int(entry & 0x3FF)
		hflip := entry&0x0400 != 0
		vflip := entry&0x0800 != 0
		palNum := int((entry >> 12) & 0xF)

		inTileX := tx % 8
		inTileY := ty % 8
		if hflip {
			inTileX ^= 7
		}
		if vflip {
			inTileY ^= 7
		}

		var palIdx uint8
		if is8bpp {
			tileBytes := charBase + tileIdx*64 + inTileY*8 + inTileX
			palIdx = s.vram[tileBytes]
		} else {
			tileBytes := charBase + tileIdx*32 + inTileY*4 + inTileX/2
			b := s.vram[tileBytes]
			if inTileX%2 == 0 {
				palIdx = b & 0xF
			} else {
				palIdx = b >> 4
			}
			if palIdx != 0 {
				palIdx += uint8(palNum) * 16
			}
		}

		if palIdx == 0 {
			continue
		}
		c.put(x, uint8(bg), s.paletteCache[palIdx])
	}
}

func (s *System) renderAffineBGLine(y int, c *compositor, bg int) {
	var cnt uint16
	var refX, refY int32
	var pa, pc int16
	if bg == 2 {
		cnt = s.io.raw16(regBG0CNT + 2*2)
		refX, refY = s.ppu.bg2RefX, s.ppu.bg2RefY
		pa = int16(s.io.raw16(regBG2PA))
		pc = int16(s.io.raw16(regBG2PA + 4))
	} else {
		cnt = s.io.raw16(regBG3CNT)
		refX, refY = s.ppu.bg3RefX, s.ppu.bg3RefY
		pa = int16(s.io.raw16(regBG3PA))
		pc = int16(s.io.raw16(regBG3PA + 4))
	}

	screenBase := int(((cnt >> 8) & 0x1F)) * 0x800
	charBase := int(((cnt >> 2) & 0x3)) * 0x4000
	sizeIdx := (cnt >> 14) & 0x3
	sizeTiles := [4]int{16, 32, 64, 128}[sizeIdx]
	wrap := cnt&0x2000 != 0

	bgBit := uint8(1 << bg)

	for x := 0; x < ScreenWidth; x++ {
		if c.mask[x]&bgBit == 0 {
			continue
		}

		srcX := (refX + int32(pa)*int32(x)) >> 8
		srcY := (refY + int32(pc)*int32(x)) >> 8

		tileDim := sizeTiles * 8
		if wrap {
			srcX = ((srcX % int32(tileDim)) + int32(tileDim)) % int32(tileDim)
			srcY = ((srcY % int32(tileDim)) + int32(tileDim)) % int32(tileDim)
		} else if srcX < 0 || srcY < 0 || int(srcX) >= tileDim || int(srcY) >= tileDim {
			continue
		}

		tmx := int(srcX) / 8
		tmy := int(srcY) / 8
		entryOff := screenBase + tmy*sizeTiles + tmx
		tileIdx := int(s.vram[entryOff])

		inTileX := int(srcX) % 8
		inTileY := int(srcY) % 8
		palIdx := s.vram[charBase+tileIdx*64+inTileY*8+inTileX]
		if palIdx == 0 {
			continue
		}
		c.put(x, uint8(bg), s.paletteCache[palIdx])
	}
}

// objShapeSize maps (shape, size) to (width, height) in pixels (spec.md
// §4.7's "4x4 lookup keyed on shape x size").
var objShapeSize = [4][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}},
	{},
}

func (s *System) renderOBJLine(y int, c *compositor, priority int) {
	dispcnt := s.io.raw16(regDISPCNT)
	mapping1D := dispcnt&0x40 != 0

	for i := 0; i < 128; i++ {
		base := i * 8
		attr0 := uint16(s.oam[base]) | uint16(s.oam[base+1])<<8
		attr1 := uint16(s.oam[base+2]) | uint16(s.oam[base+3])<<8
		attr2 := uint16(s.oam[base+4]) | uint16(s.oam[base+5])<<8

		affine := attr0&0x100 != 0
		if !affine && attr0&0x200 != 0 {
			// Disable bit: only meaningful for non-affine sprites, where bit9
			// otherwise would be read as OBJ mode's low bit.
			continue
		}

		objMode := (attr0 >> 10) & 0x3
		if objMode == 2 {
			// OBJ-window mode: contributes only to window masking, never to
			// the visible sprite layer. Not modeled — see computeWindowMask.
			continue
		}
		shape := (attr0 >> 14) & 0x3
		size := (attr1 >> 14) & 0x3
		dims := objShapeSize[shape]
		w, h := dims[size][0], dims[size][1]
		if w == 0 {
			continue
		}

		doubleSize := affine && attr0&0x200 != 0

		objY := int(attr0 & 0xFF)
		if objY >= 160 {
			objY -= 256
		}
		boundW, boundH := w, h
		if doubleSize {
			boundW, boundH = w*2, h*2
		}
		if y < objY || y >= objY+boundH {
			continue
		}

		objPriority := int((attr2 >> 10) & 0x3)
		if objPriority != priority {
			continue
		}

		objX := int(attr1 & 0x1FF)
		if objX >= 240 {
			objX -= 512
		}

		is8bpp := attr0&0x2000 != 0
		tileBase := int(attr2 & 0x3FF)
		palNum := int((attr2 >> 12) & 0xF)

		var pa, pb, pc, pd int32 = 256, 0, 0, 256
		if affine {
			affIdx := int((attr1 >> 9) & 0x1F)
			affBase := affIdx * 32
			pa = int32(int16(uint16(s.oam[affBase+6]) | uint16(s.oam[affBase+7])<<8))
			pb = int32(int16(uint16(s.oam[affBase+14]) | uint16(s.oam[affBase+15])<<8))
			pc = int32(int16(uint16(s.oam[affBase+22]) | uint16(s.oam[affBase+23])<<8))
			pd = int32(int16(uint16(s.oam[affBase+30]) | uint16(s.oam[affBase+31])<<8))
		}

		halfW, halfH := boundW/2, boundH/2
		originW, originH := w/2, h/2
		py := y - (objY + halfH)

		for sx := 0; sx < boundW; sx++ {
			screenX := objX + sx
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			if c.mask[screenX]&(1<<layerOBJ) == 0 {
				continue
			}
			px := sx - halfW

			srcX := ((pa*int32(px) + pb*int32(py)) >> 8) + int32(originW)
			srcY := ((pc*int32(px) + pd*int32(py)) >> 8) + int32(originH)
			if srcX < 0 || srcY < 0 || int(srcX) >= w || int(srcY) >= h {
				continue
			}

			tx, ty := int(srcX), int(srcY)
			tileX, tileY := tx/8, ty/8
			inTileX, inTileY := tx%8, ty%8

			var tileNum int
			tilesWide := w / 8
			if mapping1D {
				bytesPerTile := 32
				if is8bpp {
					bytesPerTile = 64
				}
				tileNum = tileBase + (tileY*tilesWide+tileX)*bytesPerTile/32
			} else {
				rowStride := 32
				if is8bpp {
					rowStride = 16
				}
				tileNum = tileBase + tileY*rowStride + tileX
			}

			var palIdx uint8
			if is8bpp {
				off := 0x10000 + tileNum*64 + inTileY*8 + inTileX
				palIdx = s.vram[off]
			} else {
				off := 0x10000 + tileNum*32 + inTileY*4 + inTileX/2
				b := s.vram[off]
				if inTileX%2 == 0 {
					palIdx = b & 0xF
				} else {
					palIdx = b >> 4
				}
				if palIdx != 0 {
					palIdx += uint8(palNum) * 16
				}
			}
			if palIdx == 0 {
				continue
			}
			c.put(screenX, layerOBJ, s.paletteCache[objPaletteBase+int(palIdx)])
		}
	}
}
