package itspc

import (
	"github.com/quasilyte/itspc/internal/itdb"
	"github.com/quasilyte/itspc/itfile"
)

// rowTiming describes how a pattern is played from a given row.
type rowTiming struct {
	// rows are the played row indexes, up to the first break (inclusive).
	rows []int

	// ticks are the durations of the played rows.
	ticks []int

	// endSpeed is the speed carried into the next played pattern.
	endSpeed int

	// jump is a Bxx target order; -1 if there is no position jump.
	jump int

	// nextRow is a row the next pattern starts from (set by Cxx).
	nextRow int
}

// patternRowTicks computes the row durations of a pattern.
//
// Axx changes the speed starting from its own row.
// SEx repeats the row x times, making it longer.
// The first Bxx or Cxx row is the last played row.
func patternRowTicks(pat *itfile.Pattern, speed, startRow int) rowTiming {
	t := rowTiming{jump: -1}
	if startRow >= len(pat.Rows) {
		startRow = 0
	}
	for rowIndex := startRow; rowIndex < len(pat.Rows); rowIndex++ {
		row := &pat.Rows[rowIndex]
		repeat := 1
		stop := false
		for ch := range row {
			e := itdb.ConvertEffect(row[ch])
			switch e.Op {
			case itdb.EffectSetSpeed:
				if e.Arg != 0 {
					speed = int(e.Arg)
				}
			case itdb.EffectPositionJump:
				t.jump = int(e.Arg)
				stop = true
			case itdb.EffectPatternBreak:
				t.nextRow = int(e.Arg)
				stop = true
			case itdb.EffectSpecial:
				if sub, x := e.Special(); sub == itdb.SpecialPatternDelay && repeat == 1 {
					repeat += int(x)
				}
			}
		}
		t.rows = append(t.rows, rowIndex)
		t.ticks = append(t.ticks, speed*repeat)
		if stop {
			break
		}
	}
	t.endSpeed = speed
	return t
}

// totalTicks returns the pattern playback length.
func (t *rowTiming) totalTicks() int {
	total := 0
	for _, ticks := range t.ticks {
		total += ticks
	}
	return total
}

// playedPattern is a single step of the song playback.
type playedPattern struct {
	order   int
	pattern int
	timing  rowTiming
}

// walkOrders follows the order list the way the player would do it.
//
// The second result is an index of the played pattern the song loops to;
// -1 means that the song ends after the last played pattern.
func walkOrders(m *itfile.Module, warnings *warningList) ([]playedPattern, int) {
	var played []playedPattern
	visited := make(map[int]int)
	speed := m.InitialSpeed
	startRow := 0
	order := 0
	for order < len(m.Orders) {
		patIndex := m.Orders[order]
		if patIndex == itfile.OrderEnd {
			break
		}
		if patIndex == itfile.OrderSkip {
			order++
			continue
		}
		if i, ok := visited[order]; ok {
			return played, i
		}
		if int(patIndex) >= len(m.Patterns) {
			warnings.addf("order %d: pattern %d does not exist, skipped", order, patIndex)
			order++
			continue
		}
		pat := &m.Patterns[patIndex]
		if len(pat.Rows) == 0 {
			warnings.addf("pattern %d has no rows, skipped", patIndex)
			order++
			continue
		}

		timing := patternRowTicks(pat, speed, startRow)
		visited[order] = len(played)
		played = append(played, playedPattern{order: order, pattern: int(patIndex), timing: timing})
		speed = timing.endSpeed
		startRow = timing.nextRow
		if timing.jump != -1 {
			order = timing.jump
			continue
		}
		order++
	}
	return played, -1
}
