package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/robomower/internal/actuator"
)

func WriteJSON(w io.Writer, tl *Timeline) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tl)
}

func WriteCSV(w io.Writer, tl *Timeline) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"t", "tick", "events", "left", "right", "m1", "m2", "watchdog", "freewheel"})
	for _, s := range tl.Samples {
		cw.Write([]string{
			strconv.FormatFloat(s.T, 'f', 3, 64),
			strconv.Itoa(s.Tick),
			strconv.Itoa(s.Events),
			strconv.FormatFloat(s.Left, 'f', 4, 64),
			strconv.FormatFloat(s.Right, 'f', 4, 64),
			strconv.Itoa(s.M1),
			strconv.Itoa(s.M2),
			s.Watchdog,
			strconv.FormatBool(s.Freewheel),
		})
	}
	cw.Flush()
	return cw.Error()
}

// SVG plots m1 and m2 against time, scaled to the full command range.
func SVG(tl *Timeline, width, height int) string {
	if len(tl.Samples) < 2 {
		return ""
	}
	end := tl.Samples[len(tl.Samples)-1].T
	if end == 0 {
		end = 1
	}
	x := func(t float64) float64 { return t / end * float64(width) }
	y := func(v int) float64 {
		return float64(height) / 2 * (1 - float64(v)/actuator.Range)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#444444" stroke-width="1"/>
`, width, height, width, height, float64(height)/2, width, float64(height)/2))

	series := []struct {
		color string
		value func(Sample) int
	}{
		{"#ff5555", func(s Sample) int { return s.M1 }},
		{"#55ff55", func(s Sample) int { return s.M2 }},
	}
	for _, ser := range series {
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, ser.color))
		for i, s := range tl.Samples {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x(s.T), y(ser.value(s))))
			} else {
				// hold the previous command until the next sample
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f L%.1f,%.1f",
					x(s.T), y(ser.value(tl.Samples[i-1])), x(s.T), y(ser.value(s))))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// Save picks the format from the file extension: .json, .csv or .svg.
func Save(path string, tl *Timeline) error {
	var write func(io.Writer, *Timeline) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".svg":
		return os.WriteFile(path, []byte(SVG(tl, 800, 300)), 0644)
	case ".json":
		write = WriteJSON
	case ".csv":
		write = WriteCSV
	default:
		return fmt.Errorf("unsupported export format %q (use .json, .csv or .svg)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f, tl)
}
