package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder turns a timeline into a video file.
type Encoder interface {
	Encode(ctx context.Context, tl *Timeline, outPath string) error
}

// Prober reports the playable duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg shells out to the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{ffmpegBin: "ffmpeg", ffprobeBin: "ffprobe"}
}

// Encode renders tl to outPath with the fixed output profile: 24fps H.264
// (preset medium, 4 threads, yuv420p) with AAC audio, cut to tl.Duration.
func (f *FFmpeg) Encode(ctx context.Context, tl *Timeline, outPath string) error {
	args := buildArgs(tl, outPath)
	log.Infof("encoding %.2fs video with %d layers", tl.Duration, len(tl.Layers))
	log.Debugf("ffmpeg %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpegBin, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", ErrEncode, err, tail(stderr.String(), 500))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: ffmpeg produced no output at %s", ErrEncode, outPath)
	}
	return nil
}

// Duration returns the container duration of a media file via ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	output, err := exec.CommandContext(ctx, f.ffprobeBin, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return dur, nil
}

// buildArgs assembles the ffmpeg command line for a timeline. Input 0 is the
// background, inputs 1..n the scene layers, then the narration if present.
func buildArgs(tl *Timeline, outPath string) []string {
	dur := formatSeconds(tl.Duration)
	w, h := tl.Canvas.Width, tl.Canvas.Height

	args := []string{"-y", "-hide_banner"}

	bg := tl.Background
	if bg.Still {
		args = append(args, "-loop", "1", "-framerate", strconv.Itoa(OutputFPS), "-t", dur, "-i", bg.Path)
	} else {
		if loops := bg.Loops(tl.Duration); loops > 1 {
			args = append(args, "-stream_loop", strconv.Itoa(loops-1))
		}
		args = append(args, "-i", bg.Path)
	}

	for _, l := range tl.Layers {
		args = append(args, "-loop", "1", "-framerate", strconv.Itoa(OutputFPS), "-t", dur, "-i", l.Path)
	}

	audioInput := -1
	if tl.Audio != nil {
		audioInput = len(tl.Layers) + 1
		args = append(args, "-i", tl.Audio.Path)
	}

	var fc []string
	fc = append(fc, fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d,trim=duration=%s,setpts=PTS-STARTPTS[bg]",
		w, h, w, h, OutputFPS, dur,
	))

	prev := "bg"
	for i, l := range tl.Layers {
		next := fmt.Sprintf("v%d", i+1)
		fc = append(fc, fmt.Sprintf(
			"[%s][%d:v]overlay=x=%d:y=%d:enable='gte(t,%s)*lt(t,%s)'[%s]",
			prev, i+1, l.X, l.Y, formatSeconds(l.Start), formatSeconds(l.End()), next,
		))
		prev = next
	}

	if tl.SubtitlePath != "" {
		fc = append(fc, fmt.Sprintf("[%s]ass='%s'[vout]", prev, escapeFilterPath(tl.SubtitlePath)))
	} else {
		fc = append(fc, fmt.Sprintf("[%s]null[vout]", prev))
	}

	args = append(args, "-filter_complex", strings.Join(fc, ";"), "-map", "[vout]")
	if audioInput >= 0 {
		args = append(args, "-map", fmt.Sprintf("%d:a", audioInput))
	}

	args = append(args,
		"-c:v", VideoCodec,
		"-preset", EncodePreset,
		"-threads", strconv.Itoa(EncodeThread),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(OutputFPS),
	)
	if audioInput >= 0 {
		args = append(args, "-c:a", AudioCodec, "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-t", dur, "-movflags", "+faststart", outPath)

	return args
}

// escapeFilterPath escapes a path for use inside a quoted filter argument.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
