package itspc

import (
	"github.com/quasilyte/itspc/engine"
)

// Every pass returns a new event list and can be applied any number of times.

func postProcessTrack(events []engine.Event) []engine.Event {
	events = mergeTies(events)
	events = mergeVolumeCommands(events)
	events = chainVolumeFades(events)
	// Chained fades can make more ties mergeable.
	events = mergeTies(events)
	events = seedQV(events)
	events = removeRedundantDurations(events)
	return events
}

// mergeTies turns "dur(a) X dur(b) tie" into "dur(a+b) X".
// A rest can be continued by another rest the same way.
func mergeTies(events []engine.Event) []engine.Event {
	out := make([]engine.Event, 0, len(events))
	for i := 0; i < len(events); i++ {
		e := events[i]
		n := len(out)
		if e.Kind == engine.EventDuration && i+1 < len(events) && n >= 2 {
			dur, prev, next := out[n-2], out[n-1], events[i+1]
			if dur.Kind == engine.EventDuration && prev.IsTimed() && continues(prev.Kind, next.Kind) &&
				int(dur.Value)+int(e.Value) <= engine.MaxDuration {
				out[n-2].Value += e.Value
				i++
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func continues(prev, next engine.EventKind) bool {
	switch next {
	case engine.EventTie:
		return true
	case engine.EventRest:
		return prev == engine.EventRest
	}
	return false
}

func isVolumeEvent(e engine.Event) bool {
	return e.Kind == engine.EventVcmd && e.Vcmd.IsVolume()
}

// mergeVolumeCommands collapses the runs of adjacent volume commands.
//
// Only the last set and the last fade of a run matter.
// A set that comes after the last fade cancels it.
func mergeVolumeCommands(events []engine.Event) []engine.Event {
	out := make([]engine.Event, 0, len(events))
	for i := 0; i < len(events); {
		if !isVolumeEvent(events[i]) {
			out = append(out, events[i])
			i++
			continue
		}
		j := i
		lastSet, lastFade := -1, -1
		for ; j < len(events) && isVolumeEvent(events[j]); j++ {
			if events[j].Vcmd.Op == engine.VcmdVolume {
				lastSet = j
			} else {
				lastFade = j
			}
		}
		if lastSet > lastFade {
			out = append(out, events[lastSet])
		} else {
			if lastSet != -1 {
				out = append(out, events[lastSet])
			}
			out = append(out, events[lastFade])
		}
		i = j
	}
	return out
}

// chainVolumeFades joins two fades into one when the second one starts
// right when the first one ends and both have the same slope.
func chainVolumeFades(events []engine.Event) []engine.Event {
	out := make([]engine.Event, 0, len(events))
	volume := -1
	fadeAt := -1
	fadeFrom := -1
	elapsed := 0
	dur := 0
	for _, e := range events {
		switch {
		case e.Kind == engine.EventDuration:
			dur = int(e.Value)
		case e.IsTimed():
			elapsed += dur
		case e.Kind == engine.EventVcmd && e.Vcmd.Op == engine.VcmdVolumeFade:
			t2, v2 := int(e.Vcmd.Args[0]), int(e.Vcmd.Args[1])
			if fadeAt != -1 && fadeFrom != -1 {
				prev := &out[fadeAt].Vcmd
				t1, v1 := int(prev.Args[0]), int(prev.Args[1])
				if elapsed == t1 && t1+t2 <= 255 && sameSlope(fadeFrom, v1, t1, v2, t2) {
					prev.Args[0] = uint8(t1 + t2)
					prev.Args[1] = uint8(v2)
					volume = v2
					continue
				}
			}
			fadeFrom = volume
			fadeAt = len(out)
			elapsed = 0
			volume = v2
		case e.Kind == engine.EventVcmd && e.Vcmd.Op == engine.VcmdVolume:
			volume = int(e.Vcmd.Args[0])
			fadeAt = -1
		default:
			fadeAt = -1
		}
		out = append(out, e)
	}
	return out
}

// sameSlope reports whether v0->v1 over t1 ticks continues as v1->v2 over t2 ticks.
// The mapped volumes are rounded, so a small error is tolerated.
func sameSlope(v0, v1, t1, v2, t2 int) bool {
	return abs((v1-v0)*t2-(v2-v1)*t1) <= t1+t2
}

// seedQV gives the durations before the first timed event the default QV bits.
func seedQV(events []engine.Event) []engine.Event {
	out := make([]engine.Event, len(events))
	copy(out, events)
	for i := range out {
		if out[i].IsTimed() {
			break
		}
		if out[i].Kind == engine.EventDuration && !out[i].HasQV {
			out[i].QV = engine.DefaultQV
			out[i].HasQV = true
		}
	}
	return out
}

// removeRedundantDurations drops the durations that repeat the current one.
func removeRedundantDurations(events []engine.Event) []engine.Event {
	out := make([]engine.Event, 0, len(events))
	current := -1
	for _, e := range events {
		if e.Kind == engine.EventDuration {
			if !e.HasQV && int(e.Value) == current {
				continue
			}
			current = int(e.Value)
		}
		out = append(out, e)
	}
	return out
}

// isSilentTrack reports whether a track has nothing but rests.
func isSilentTrack(t *engine.Track) bool {
	for _, e := range t.Events {
		switch e.Kind {
		case engine.EventDuration, engine.EventRest, engine.EventEnd:
		default:
			return false
		}
	}
	return true
}
