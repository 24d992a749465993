package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/quasilyte/itspc"
	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/preview"
	"github.com/quasilyte/itspc/project"
)

// This simple tool imports the specified IT module and lets you
// play its converted instruments with a keyboard.

// pianoKeys maps the keys to the semitones of the current octave,
// the same layout most trackers use.
var pianoKeys = []ebiten.Key{
	ebiten.KeyZ, ebiten.KeyS, ebiten.KeyX, ebiten.KeyD, ebiten.KeyC,
	ebiten.KeyV, ebiten.KeyG, ebiten.KeyB, ebiten.KeyH, ebiten.KeyN,
	ebiten.KeyJ, ebiten.KeyM, ebiten.KeyComma,
}

var noteNames = []string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

func main() {
	ratio := flag.Float64("ratio", 1, "sample resampling ratio, in [0.1, 4.0]")
	highQuality := flag.Bool("hq", false, "use the windowed sinc resampler")
	treble := flag.Bool("treble", false, "apply the treble enhancement filter")
	flag.Usage = func() {
		fmt.Println("usage: itpreview [flags] path/to/music.it")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filename := flag.Args()[0]

	data, err := os.ReadFile(filename)
	if err != nil {
		panic(fmt.Errorf("read IT file: %v", err))
	}
	base, err := project.New(engine.DefaultDescriptor())
	if err != nil {
		panic(err)
	}
	p, result, err := itspc.Import(base, data, -1, &itspc.Options{
		Ratio:         *ratio,
		HighQuality:   *highQuality,
		EnhanceTreble: *treble,
	})
	if err != nil {
		panic(fmt.Errorf("importing IT module: %v", err))
	}
	for _, w := range result.Warnings {
		fmt.Println("warning:", w)
	}

	instruments := p.InstrumentIDs()
	if len(instruments) == 0 {
		panic("the module has no playable instruments")
	}

	// Create a sound player using the Ebitengine audio context.
	sampleRate := 44100
	audioContext := audio.NewContext(sampleRate)

	g := &game{
		project:     p,
		filename:    filename,
		instruments: instruments,
		octave:      3,
	}
	g.synth = preview.NewSynthesizer(p, preview.Config{
		NumChannels: 1,
		SampleRate:  uint(sampleRate),
	})
	g.synth.SetEventHandler(func(e preview.Event) {
		if e.Kind == preview.EventNote {
			g.mu.Lock()
			g.lastNote = e.NoteEventData()
			g.hasLastNote = true
			g.mu.Unlock()
		}
	})
	player, err := audioContext.NewPlayer(g.synth)
	if err != nil {
		panic(err)
	}
	g.player = player

	if err := ebiten.RunGame(g); err != nil {
		panic(err)
	}
}

type game struct {
	project *project.Project

	synth  *preview.Synthesizer
	player *audio.Player

	filename    string
	instruments []int
	selected    int
	octave      int

	// The synthesizer events are delivered from the audio goroutine.
	mu          sync.Mutex
	lastNote    preview.Note
	hasLastNote bool
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) {
		g.selected = (g.selected + 1) % len(g.instruments)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) {
		g.selected = (g.selected + len(g.instruments) - 1) % len(g.instruments)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) && g.octave < 5 {
		g.octave++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) && g.octave > 0 {
		g.octave--
	}

	for i, k := range pianoKeys {
		if !inpututil.IsKeyJustPressed(k) {
			continue
		}
		n := g.octave*12 + i
		if n > engine.MaxNote {
			break
		}
		err := g.synth.PlayNote(0, preview.Note{
			Instrument: g.instruments[g.selected],
			Note:       uint8(n),
			Volume:     255,
			Pan:        10,
		})
		if err != nil {
			return err
		}
		g.player.Rewind()
		g.player.Play()
		break
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", g.filename)
	fmt.Fprintf(&sb, "UP/DOWN: instrument, LEFT/RIGHT: octave (%d), Z..M: play\n\n", g.octave+2)
	for i, id := range g.instruments {
		inst, _ := g.project.Instrument(id)
		cursor := "  "
		if i == g.selected {
			cursor = "> "
		}
		fmt.Fprintf(&sb, "%s%02d %-24s tuning=%04x adsr=%02x%02x\n",
			cursor, id, inst.Name, inst.Tuning, inst.ADSR1, inst.ADSR2)
	}
	g.mu.Lock()
	if g.hasLastNote {
		n := int(g.lastNote.Note)
		fmt.Fprintf(&sb, "\nplaying %s%d with instrument %02d", noteNames[n%12], n/12+2, g.lastNote.Instrument)
	}
	g.mu.Unlock()
	ebitenutil.DebugPrint(screen, sb.String())
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}
