package system

import "github.com/hajimehoshi/ebiten/v2"

// KEYINPUT bit positions (spec.md §3.10): active-low, bit clear means
// pressed.
const (
	keyA      = 1 << 0
	keyB      = 1 << 1
	keySelect = 1 << 2
	keyStart  = 1 << 3
	keyRight  = 1 << 4
	keyLeft   = 1 << 5
	keyUp     = 1 << 6
	keyDown   = 1 << 7
	keyR      = 1 << 8
	keyL      = 1 << 9
)

var keyBindings = []struct {
	key ebiten.Key
	bit uint16
}{
	{ebiten.KeyX, keyA},
	{ebiten.KeyZ, keyB},
	{ebiten.KeyBackspace, keySelect},
	{ebiten.KeyEnter, keyStart},
	{ebiten.KeyRight, keyRight},
	{ebiten.KeyLeft, keyLeft},
	{ebiten.KeyUp, keyUp},
	{ebiten.KeyDown, keyDown},
	{ebiten.KeyS, keyR},
	{ebiten.KeyA, keyL},
}

// pollKeys samples the host keyboard and stores the resulting KEYINPUT
// value, called once per ebiten Update tick (spec.md §3.10, §5).
func (s *System) pollKeys() {
	bits := uint16(0x3FF)
	for _, b := range keyBindings {
		if ebiten.IsKeyPressed(b.key) {
			bits &^= b.bit
		}
	}
	s.SetKeys(bits)
}
