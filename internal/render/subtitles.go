package render

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ---------------------------------------------------------------------------
// SRT parsing
// ---------------------------------------------------------------------------

// ParseSRT parses SubRip text into cues, in source order. Blocks shorter than
// three lines are skipped. Any malformed timing line fails the whole parse.
func ParseSRT(text string) ([]Cue, error) {
	var cues []Cue
	for _, block := range srtBlocks(text) {
		cue, ok, err := parseSRTBlock(block)
		if err != nil {
			return nil, err
		}
		if ok {
			cues = append(cues, cue)
		}
	}
	return cues, nil
}

// ParseSRTLenient applies the same block rules as ParseSRT but keeps going
// past malformed blocks, returning one error per skipped block.
func ParseSRTLenient(text string) ([]Cue, []error) {
	var (
		cues []Cue
		errs []error
	)
	for i, block := range srtBlocks(text) {
		cue, ok, err := parseSRTBlock(block)
		if err != nil {
			errs = append(errs, fmt.Errorf("block %d: %w", i+1, err))
			continue
		}
		if ok {
			cues = append(cues, cue)
		}
	}
	return cues, errs
}

func srtBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n\n")
}

func parseSRTBlock(block string) (Cue, bool, error) {
	lines := strings.Split(block, "\n")
	if len(lines) < 3 {
		return Cue{}, false, nil
	}

	startStr, endStr, found := strings.Cut(lines[1], "-->")
	if !found {
		return Cue{}, false, fmt.Errorf("%w: missing --> in %q", ErrSubtitleFormat, lines[1])
	}

	start, err := parseSRTTime(startStr)
	if err != nil {
		return Cue{}, false, err
	}
	end, err := parseSRTTime(endStr)
	if err != nil {
		return Cue{}, false, err
	}

	return Cue{
		Start: start,
		End:   end,
		Text:  strings.Join(lines[2:], "\n"),
	}, true, nil
}

// parseSRTTime parses HH:MM:SS,mmm into seconds.
func parseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrSubtitleFormat, s)
	}
	secStr, msStr, found := strings.Cut(parts[2], ",")
	if !found {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrSubtitleFormat, s)
	}

	fields := []string{parts[0], parts[1], secStr, msStr}
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return 0, fmt.Errorf("%w: bad number %q in %q", ErrSubtitleFormat, f, s)
		}
		nums[i] = n
	}

	return float64(nums[0]*3600+nums[1]*60+nums[2]) + float64(nums[3])/1000, nil
}

// FormatSRT writes cues back out as SubRip text.
func FormatSRT(cues []Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n", i+1, formatSRTTime(c.Start), formatSRTTime(c.End), c.Text)
	}
	return sb.String()
}

func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(math.Round(seconds * 1000))
	h := totalMs / 3600000
	m := (totalMs % 3600000) / 60000
	s := (totalMs % 60000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// SceneCues spreads one caption per scene evenly over total seconds, the
// same split the timeline uses for scene images. Blank texts keep their
// slot but produce no cue.
func SceneCues(texts []string, total float64) []Cue {
	if len(texts) == 0 || total <= 0 {
		return nil
	}
	per := total / float64(len(texts))

	cues := lo.Map(texts, func(t string, i int) Cue {
		return Cue{
			Start: float64(i) * per,
			End:   float64(i+1) * per,
			Text:  strings.TrimSpace(t),
		}
	})
	return lo.Filter(cues, func(c Cue, _ int) bool {
		return c.Text != ""
	})
}

// ---------------------------------------------------------------------------
// ASS rendering
//
// Cues are burned in through libass: white text on an opaque black box,
// bottom-centred, wrapped to the canvas width minus 100px.
// ---------------------------------------------------------------------------

const (
	subtitleFontName = "Noto Sans"
	subtitleFontSize = 40

	// ASS colours are &HAABBGGRR
	assColorWhite = "&H00FFFFFF"
	assColorBlack = "&H00000000"

	subtitleSideMargin = 50
	subtitleMarginV    = 0
)

// WriteASS renders cues to an ASS file at path sized for canvas.
func WriteASS(cues []Cue, canvas Canvas, path string) error {
	if err := os.WriteFile(path, []byte(buildASS(cues, canvas)), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

func buildASS(cues []Cue, canvas Canvas) string {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", canvas.Width)
	fmt.Fprintf(&sb, "PlayResY: %d\n", canvas.Height)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	// BorderStyle 3 draws an opaque box in OutlineColour behind the text.
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,3,4,0,2,%d,%d,%d,1\n",
		subtitleFontName, subtitleFontSize,
		assColorWhite, assColorWhite,
		assColorBlack, assColorBlack,
		subtitleSideMargin, subtitleSideMargin, subtitleMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(c.Start), formatASSTime(c.End), escapeASSText(c.Text))
	}

	return sb.String()
}

// escapeASSText turns cue text into a single ASS event line. libass has no
// escape for override braces, so they become their full-width forms.
func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "{", "｛")
	text = strings.ReplaceAll(text, "}", "｝")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", "\\N")
}

// formatASSTime converts seconds to H:MM:SS.CC
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int64(math.Round(seconds * 100))
	h := cs / 360000
	m := (cs % 360000) / 6000
	s := (cs % 6000) / 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}
