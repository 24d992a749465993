package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quasilyte/itspc"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type report struct {
	sb strings.Builder
}

func (r *report) title(s string) {
	r.sb.WriteString(titleStyle.Render(s))
	r.sb.WriteByte('\n')
}

func (r *report) field(label string, value any) {
	r.sb.WriteString(labelStyle.Render(label))
	r.sb.WriteString(valueStyle.Render(fmt.Sprint(value)))
	r.sb.WriteByte('\n')
}

func (r *report) styledField(label string, style lipgloss.Style, value any) {
	r.sb.WriteString(labelStyle.Render(label))
	r.sb.WriteString(style.Render(fmt.Sprint(value)))
	r.sb.WriteByte('\n')
}

func (r *report) warnings(list []string) {
	for _, w := range list {
		r.sb.WriteString(warningStyle.Render("warning: " + w))
		r.sb.WriteByte('\n')
	}
}

func (r *report) String() string { return r.sb.String() }

func renderPreview(filename string, p *itspc.Preview) string {
	var r report
	r.title(fmt.Sprintf("%s (%s)", p.Name, filename))
	r.field("patterns", p.Patterns)
	r.field("tracks", p.Tracks)
	r.field("instruments", p.Instruments)
	r.field("samples", p.Samples)
	r.field("song size", p.SongSize)
	r.field("sample bytes", p.SampleBytes)
	r.field("free bytes", p.FreeBytes)
	headroomStyle := goodStyle
	if p.Headroom < 0 {
		headroomStyle = errorStyle
	}
	r.styledField("headroom", headroomStyle, p.Headroom)
	if p.LoopOrder >= 0 {
		r.field("loop order", p.LoopOrder)
	}
	if len(p.Extensions) != 0 {
		r.field("extensions", strings.Join(p.Extensions, ", "))
	}

	if len(p.SampleEstimates) != 0 {
		r.title("samples")
		for _, e := range p.SampleEstimates {
			loop := ""
			if e.Looped {
				loop = " loop"
			}
			r.field(fmt.Sprintf("%3d %s", e.Sample, truncate(e.Name, 10)),
				fmt.Sprintf("x%.2f %d -> %d samples, %d bytes%s",
					e.Ratio, e.InputLength, e.OutputLength, e.Size, loop))
		}
	}
	r.warnings(p.Warnings)
	return r.String()
}

func renderResult(filename string, res *itspc.Result) string {
	var r report
	r.title(fmt.Sprintf("imported %s as song %d", filename, res.SongIndex))
	r.field("patterns", res.Patterns)
	r.field("tracks", res.Tracks)
	r.field("instruments", res.Instruments)
	r.field("samples", fmt.Sprintf("%d (%d new, %d reused)", res.Samples, res.NewSamples, res.ReusedSamples))
	r.field("free bytes", res.FreeBytes)
	if len(res.EnabledExtensions) != 0 {
		r.field("extensions", strings.Join(res.EnabledExtensions, ", "))
	}

	if len(res.InstrumentMap) != 0 {
		keys := make([]int, 0, len(res.InstrumentMap))
		for k := range res.InstrumentMap {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%d->%d", k, res.InstrumentMap[k])
		}
		r.field("instrument map", strings.Join(parts, " "))
	}
	r.warnings(res.Warnings)
	return r.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
