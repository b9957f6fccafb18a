package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline is a one-line scrolling chart over the last Width samples.
type Sparkline struct {
	Data  []uint64
	Width int
	Label string
	Style lipgloss.Style
}

func NewSparkline(width int, label string, style lipgloss.Style) Sparkline {
	return Sparkline{
		Width: width,
		Label: label,
		Style: style,
		Data:  make([]uint64, 0, width),
	}
}

func (s *Sparkline) Add(val uint64) {
	s.Data = append(s.Data, val)
	if len(s.Data) > s.Width {
		s.Data = s.Data[len(s.Data)-s.Width:]
	}
}

// Max is the largest visible sample; the chart scales to it.
func (s Sparkline) Max() uint64 {
	var max uint64
	for _, v := range s.Data {
		if v > max {
			max = v
		}
	}
	return max
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}

	max := s.Max()
	var graph strings.Builder
	for _, v := range s.Data {
		idx := 0
		if max > 0 {
			idx = int(float64(v) / float64(max) * float64(len(levels)-1))
		}
		graph.WriteRune(levels[idx])
	}
	if pad := s.Width - len(s.Data); pad > 0 {
		graph.WriteString(strings.Repeat(" ", pad))
	}

	return s.Style.Render(s.Label) + "\n" + s.Style.Render(graph.String())
}
