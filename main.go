package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/kjsanger/goba/romfile"
	"github.com/kjsanger/goba/system"
)

var (
	biosFile = flag.String("bios", "", "Path to the 16 KiB GBA BIOS image.")
	romFile  = flag.String("rom", "", "Path to the cartridge ROM to run.")
)

func main() {
	flag.Parse()

	bios, err := romfile.LoadBIOS(*biosFile)
	if err != nil {
		log.Fatalf("Invalid BIOS: %v", err)
	}

	romPath := *romFile
	if romPath == "" && flag.NArg() > 0 {
		romPath = flag.Arg(0)
	}
	cart, err := romfile.LoadCartridge(romPath)
	if err != nil {
		log.Fatalf("Invalid ROM: %v", err)
	}

	goba := system.New(bios, cart)

	audioPlayer, err := newAudioSink(goba)
	if err != nil {
		log.Printf("audio disabled: %v", err)
	} else {
		audioPlayer.Start()
		defer audioPlayer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func(ctx context.Context) {
		goba.Run(ctx)
	}(ctx)

	ebiten.SetWindowSize(system.ScreenWidth*2, system.ScreenHeight*2)
	ebiten.SetWindowTitle("goba")
	if err := ebiten.RunGame(goba); err != nil {
		log.Fatal(err)
	}

	cancel()
	os.Exit(0)
}

// audioSink pulls stereo samples from the System's ring buffer into oto's
// pull-based player, mirroring the IntuitionEngine oto backend's Read
// callback shape but over int16 PCM rather than float32.
type audioSink struct {
	ctx    *oto.Context
	player *oto.Player
	sys    *system.System
}

func newAudioSink(sys *system.System) (*audioSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   32768,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &audioSink{ctx: ctx, sys: sys}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// Read implements io.Reader, filling p with interleaved little-endian
// stereo int16 samples. Gaps in the emulator's ring buffer (the consumer
// outrunning the producer) are padded with silence rather than blocking,
// since oto expects Read to return promptly.
func (s *audioSink) Read(p []byte) (int, error) {
	for i := 0; i+4 <= len(p); i += 4 {
		left, right, ok := s.sys.AudioSample()
		if !ok {
			left, right = 0, 0
		}
		p[i] = uint8(left)
		p[i+1] = uint8(left >> 8)
		p[i+2] = uint8(right)
		p[i+3] = uint8(right >> 8)
	}
	return len(p), nil
}

func (s *audioSink) Start() { s.player.Play() }

func (s *audioSink) Close() { s.player.Close() }
