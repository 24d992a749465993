package itspc

import (
	"testing"

	"github.com/quasilyte/itspc/engine"
)

func dur(n uint8) engine.Event { return engine.Event{Kind: engine.EventDuration, Value: n} }

func note(n uint8) engine.Event { return engine.Event{Kind: engine.EventNote, Value: n} }

func vcmd(op engine.VcmdOp, args ...uint8) engine.Event {
	return engine.Event{Kind: engine.EventVcmd, Vcmd: engine.NewVcmd(op, args...)}
}

var (
	tie  = engine.Event{Kind: engine.EventTie}
	rest = engine.Event{Kind: engine.EventRest}
	end  = engine.Event{Kind: engine.EventEnd}
)

func TestPostProcessPasses(t *testing.T) {
	tests := []struct {
		name   string
		pass   func([]engine.Event) []engine.Event
		input  []engine.Event
		output string
	}{
		{
			name:   "tie merge",
			pass:   mergeTies,
			input:  []engine.Event{dur(6), note(36), dur(6), tie, end},
			output: "dur(12) note(36) end",
		},
		{
			name:   "tie chain",
			pass:   mergeTies,
			input:  []engine.Event{dur(6), note(36), dur(6), tie, dur(6), tie},
			output: "dur(18) note(36)",
		},
		{
			name:   "rest chain",
			pass:   mergeTies,
			input:  []engine.Event{dur(6), rest, dur(6), rest, dur(6), tie},
			output: "dur(18) rest",
		},
		{
			name:   "note after note",
			pass:   mergeTies,
			input:  []engine.Event{dur(6), note(36), dur(6), rest},
			output: "dur(6) note(36) dur(6) rest",
		},
		{
			name:   "command between",
			pass:   mergeTies,
			input:  []engine.Event{dur(6), note(36), vcmd(engine.VcmdVibratoOff), dur(6), tie},
			output: "dur(6) note(36) vibrato_off[] dur(6) tie",
		},
		{
			name:   "duration overflow",
			pass:   mergeTies,
			input:  []engine.Event{dur(100), note(36), dur(30), tie},
			output: "dur(100) note(36) dur(30) tie",
		},
		{
			name:   "volume set wins",
			pass:   mergeVolumeCommands,
			input:  []engine.Event{vcmd(engine.VcmdVolume, 100), vcmd(engine.VcmdVolumeFade, 6, 50), vcmd(engine.VcmdVolume, 80)},
			output: "volume[80]",
		},
		{
			name:   "volume set and fade",
			pass:   mergeVolumeCommands,
			input:  []engine.Event{vcmd(engine.VcmdVolume, 100), vcmd(engine.VcmdVolumeFade, 6, 50), vcmd(engine.VcmdVolumeFade, 6, 40)},
			output: "volume[100] volume_fade[6 40]",
		},
		{
			name:   "volume runs",
			pass:   mergeVolumeCommands,
			input:  []engine.Event{vcmd(engine.VcmdVolume, 100), vcmd(engine.VcmdPan, 10), vcmd(engine.VcmdVolume, 90)},
			output: "volume[100] pan[10] volume[90]",
		},
		{
			name: "fade chain",
			pass: chainVolumeFades,
			input: []engine.Event{
				vcmd(engine.VcmdVolume, 200),
				vcmd(engine.VcmdVolumeFade, 6, 190), dur(6), tie,
				vcmd(engine.VcmdVolumeFade, 6, 180), dur(6), tie,
				vcmd(engine.VcmdVolumeFade, 6, 170), dur(6), tie,
			},
			output: "volume[200] volume_fade[18 170] dur(6) tie dur(6) tie dur(6) tie",
		},
		{
			name: "fade slope change",
			pass: chainVolumeFades,
			input: []engine.Event{
				vcmd(engine.VcmdVolume, 200),
				vcmd(engine.VcmdVolumeFade, 6, 190), dur(6), tie,
				vcmd(engine.VcmdVolumeFade, 6, 100), dur(6), tie,
			},
			output: "volume[200] volume_fade[6 190] dur(6) tie volume_fade[6 100] dur(6) tie",
		},
		{
			name: "fade not finished",
			pass: chainVolumeFades,
			input: []engine.Event{
				vcmd(engine.VcmdVolume, 200),
				vcmd(engine.VcmdVolumeFade, 12, 180), dur(6), tie,
				vcmd(engine.VcmdVolumeFade, 6, 170), dur(6), tie,
			},
			output: "volume[200] volume_fade[12 180] dur(6) tie volume_fade[6 170] dur(6) tie",
		},
		{
			name: "fade unknown start",
			pass: chainVolumeFades,
			input: []engine.Event{
				vcmd(engine.VcmdVolumeFade, 6, 190), dur(6), tie,
				vcmd(engine.VcmdVolumeFade, 6, 180), dur(6), tie,
			},
			output: "volume_fade[6 190] dur(6) tie volume_fade[6 180] dur(6) tie",
		},
		{
			name:   "qv seed",
			pass:   seedQV,
			input:  []engine.Event{vcmd(engine.VcmdPan, 10), dur(6), note(36), dur(3), tie},
			output: "pan[10] dur(6, qv=7f) note(36) dur(3) tie",
		},
		{
			name:   "redundant durations",
			pass:   removeRedundantDurations,
			input:  []engine.Event{dur(6), note(36), dur(6), note(38), dur(3), rest, dur(3), tie},
			output: "dur(6) note(36) note(38) dur(3) rest tie",
		},
		{
			name: "all passes",
			pass: postProcessTrack,
			input: []engine.Event{
				vcmd(engine.VcmdVolume, 200),
				vcmd(engine.VcmdVolumeFade, 6, 190), dur(6), note(36),
				vcmd(engine.VcmdVolumeFade, 6, 180), dur(6), tie,
				dur(6), note(38),
				end,
			},
			output: "volume[200] volume_fade[12 180] dur(12, qv=7f) note(36) dur(6) note(38) end",
		},
	}

	for _, test := range tests {
		have := eventsString(test.pass(test.input))
		if have != test.output {
			t.Errorf("%s:\nhave: %s\nwant: %s", test.name, have, test.output)
			continue
		}
		// The passes are idempotent.
		again := eventsString(test.pass(test.pass(test.input)))
		if again != test.output {
			t.Errorf("%s: second run changed the result: %s", test.name, again)
		}
	}
}

func TestIsSilentTrack(t *testing.T) {
	tests := []struct {
		events []engine.Event
		silent bool
	}{
		{[]engine.Event{dur(6), rest, end}, true},
		{[]engine.Event{end}, true},
		{[]engine.Event{dur(6), tie, end}, false},
		{[]engine.Event{vcmd(engine.VcmdVolume, 10), dur(6), rest, end}, false},
		{[]engine.Event{dur(6), note(10), end}, false},
	}
	for _, test := range tests {
		track := engine.Track{Events: test.events}
		if have := isSilentTrack(&track); have != test.silent {
			t.Errorf("%s: have %v, want %v", eventsString(test.events), have, test.silent)
		}
	}
}
