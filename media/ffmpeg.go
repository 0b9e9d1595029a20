package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Available reports whether a media binary (ffmpeg/ffprobe) is on PATH
func Available(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

// DurationMs uses ffprobe to measure an audio file's duration in milliseconds
func DurationMs(file string) (int, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(file), err)
	}
	var sec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &sec); err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return int(sec*1000 + 0.5), nil
}

// ToWAV decodes any audio file to uncompressed PCM at the given rate/channels
func ToWAV(ctx context.Context, in, out string, sampleRate, channels int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", in,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-c:a", "pcm_s16le",
		out,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg decode %s: %w", filepath.Base(in), err)
	}
	return nil
}

// Encode compresses audio to MP3 at the given rate/channels
func Encode(ctx context.Context, in, out string, sampleRate, channels int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", in,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-c:a", "libmp3lame",
		"-q:a", "2",
		out,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w", filepath.Base(in), err)
	}
	return nil
}

// CrossfadeJoin concatenates WAV segments with a short triangular crossfade
// at every join. The fade is tens of milliseconds, just enough to mask
// encoder edge clicks and far too short to read as an artistic fade.
func CrossfadeJoin(ctx context.Context, inputs []string, out string, fadeSec float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("crossfade join: no inputs")
	}
	if len(inputs) == 1 {
		cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", inputs[0], "-c:a", "pcm_s16le", out)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("ffmpeg copy %s: %w", filepath.Base(inputs[0]), err)
		}
		return nil
	}

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	// Chain pairwise: [0][1] -> [a1], [a1][2] -> [a2], ...
	var filters []string
	prev := "[0:a]"
	for i := 1; i < len(inputs); i++ {
		label := fmt.Sprintf("[a%d]", i)
		filters = append(filters, fmt.Sprintf(
			"%s[%d:a]acrossfade=d=%.3f:c1=tri:c2=tri%s", prev, i, fadeSec, label,
		))
		prev = label
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", prev,
		"-c:a", "pcm_s16le",
		out,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg crossfade join: %w", err)
	}
	return nil
}

// ConcatCopy joins same-codec audio files in order without re-encoding,
// using the concat demuxer. The list file is removed when done.
func ConcatCopy(ctx context.Context, files []string, out string) error {
	if len(files) == 0 {
		return fmt.Errorf("concat: no inputs")
	}

	listFile := strings.TrimSuffix(out, filepath.Ext(out)) + "_list.txt"
	var lines []string
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("file '%s'", f))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return err
	}
	defer os.Remove(listFile)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// Master applies the fixed polish chain to a finished narration track:
// rumble highpass, gentle presence lift, then EBU R128 loudness
// normalization. Runs once on the combined track, never per segment.
func Master(ctx context.Context, in, out string, sampleRate, channels int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", in,
		"-af", "highpass=f=80,equalizer=f=3000:t=q:w=1:g=2.5,loudnorm=I=-16:TP=-1.5:LRA=11",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-c:a", "libmp3lame",
		"-q:a", "2",
		out,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg master: %w", err)
	}
	return nil
}
