package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/mocks"
	"videoenhancer/internal/runner"
)

func newTestFFmpeg(m *mocks.MockRunner) *FFmpeg {
	return &FFmpeg{Runner: m, FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// writeOutputFrames simulates ffmpeg writing n frames to the pattern given as last argument
func writeOutputFrames(n int) func(args []string) error {
	return func(args []string) error {
		dir := filepath.Dir(args[len(args)-1])
		for i := 1; i <= n; i++ {
			if err := os.WriteFile(filepath.Join(dir, frames.Name(i)), []byte("png"), 0644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestIsFFmpegAvailable(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*mocks.MockRunner)
		expected bool
	}{
		{"on PATH", func(m *mocks.MockRunner) {}, true},
		{"missing", func(m *mocks.MockRunner) { m.AvailableCommands["ffmpeg"] = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mocks.NewMockRunner()
			tt.setup(m)
			ff := newTestFFmpeg(m)
			if got := ff.IsFFmpegAvailable(); got != tt.expected {
				t.Errorf("Expected available=%v, got %v", tt.expected, got)
			}
			if err := ff.Require(); (err == nil) != tt.expected {
				t.Errorf("Unexpected Require result: %v", err)
			}
		})
	}
}

func TestNewPrefersToolsDir(t *testing.T) {
	tools := t.TempDir()
	bundled := filepath.Join(tools, "ffmpeg", "bin", runner.ExecutableName("ffmpeg"))
	os.MkdirAll(filepath.Dir(bundled), 0755)
	os.WriteFile(bundled, []byte("bin"), 0755)

	ff := New(mocks.NewMockRunner(), tools)
	if ff.FFmpeg != bundled {
		t.Errorf("Expected bundled ffmpeg %s, got %s", bundled, ff.FFmpeg)
	}
	if ff.FFprobe != "/usr/bin/ffprobe" {
		t.Errorf("Expected ffprobe from PATH, got %s", ff.FFprobe)
	}
	if !ff.IsFFmpegAvailable() {
		t.Error("Expected bundled ffmpeg to be available")
	}
}

func TestExtractFrames(t *testing.T) {
	tests := []struct {
		name      string
		opts      ExtractOptions
		hook      func(args []string) error
		wantErr   error
		wantRGB24 bool
	}{
		{"plain extraction", ExtractOptions{}, writeOutputFrames(3), nil, false},
		{"rgb24 for upscalers", ExtractOptions{RGB24: true}, writeOutputFrames(2), nil, true},
		{"nothing extracted", ExtractOptions{}, writeOutputFrames(0), frames.ErrNoFrames, false},
		{"ffmpeg fails", ExtractOptions{}, func([]string) error { return errors.New("exit status 1") }, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mocks.NewMockRunner()
			m.Hooks["ffmpeg"] = tt.hook
			dir := filepath.Join(t.TempDir(), "input_frames")

			err := newTestFFmpeg(m).ExtractFrames(context.Background(), "in.mp4", dir, tt.opts)

			if tt.name == "ffmpeg fails" {
				if err == nil || !strings.Contains(err.Error(), "failed to extract frames") {
					t.Errorf("Expected wrapped extraction error, got %v", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFrames failed: %v", err)
			}

			calls := m.Calls("ffmpeg")
			if len(calls) != 1 {
				t.Fatalf("Expected one ffmpeg call, got %v", calls)
			}
			cmd := calls[0]
			if !strings.Contains(cmd, "-thread_queue_size 1024 -i in.mp4 -vsync 0") {
				t.Errorf("Unexpected arguments: %s", cmd)
			}
			if strings.Contains(cmd, "-pix_fmt rgb24") != tt.wantRGB24 {
				t.Errorf("Expected rgb24=%v in %s", tt.wantRGB24, cmd)
			}
			if !strings.HasSuffix(cmd, filepath.Join(dir, "frame_%08d.png")) {
				t.Errorf("Expected frame pattern output, got %s", cmd)
			}
		})
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		output, explicit, expected string
	}{
		{"out.mp4", "", "mp4"},
		{"out.GIF", "", "gif"},
		{"out", "", "mp4"},
		{"out.mp4", "gif", "gif"},
		{"out.mkv", " MP4 ", "mp4"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.output, tt.explicit), func(t *testing.T) {
			if got := OutputFormat(tt.output, tt.explicit); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestFormatFPS(t *testing.T) {
	tests := map[float64]string{
		60:     "60",
		59.94:  "59.94",
		47.952: "47.952",
		12.5:   "12.5",
	}
	for fps, expected := range tests {
		if got := FormatFPS(fps); got != expected {
			t.Errorf("FormatFPS(%v): expected %s, got %s", fps, expected, got)
		}
	}
}

func TestReconstruct(t *testing.T) {
	setup := func(t *testing.T) string {
		dir := t.TempDir()
		for _, name := range []string{"00000001.png", "00000003.png", "00000007.png"} {
			os.WriteFile(filepath.Join(dir, name), []byte(name), 0644)
		}
		return dir
	}

	t.Run("mp4 keeps source audio", func(t *testing.T) {
		dir := setup(t)
		m := mocks.NewMockRunner()

		err := newTestFFmpeg(m).Reconstruct(context.Background(), dir, "in.mp4", "out.mp4", 48, "")
		if err != nil {
			t.Fatalf("Reconstruct failed: %v", err)
		}

		names, _ := frames.List(dir)
		if len(names) != 3 || names[2] != frames.Name(3) {
			t.Errorf("Expected frames renamed sequentially, got %v", names)
		}

		calls := m.Calls("ffmpeg")
		if len(calls) != 1 {
			t.Fatalf("Expected one ffmpeg call, got %v", calls)
		}
		for _, want := range []string{"-framerate 48 ", "-i in.mp4", "-map 0:v:0 -map 1:a:0?", "-c:v libx264 -crf 18 -preset slow", "-c:a aac -b:a 192k", "-shortest -f mp4 out.mp4"} {
			if !strings.Contains(calls[0], want) {
				t.Errorf("Expected %q in %s", want, calls[0])
			}
		}
	})

	t.Run("gif uses a palette", func(t *testing.T) {
		dir := setup(t)
		m := mocks.NewMockRunner()

		err := newTestFFmpeg(m).Reconstruct(context.Background(), dir, "in.mp4", "out.gif", 23.976, "")
		if err != nil {
			t.Fatalf("Reconstruct failed: %v", err)
		}

		calls := m.Calls("ffmpeg")
		if len(calls) != 2 {
			t.Fatalf("Expected palettegen and encode calls, got %v", calls)
		}
		if !strings.Contains(calls[0], "-vf palettegen "+filepath.Join(dir, "palette.png")) {
			t.Errorf("Expected palette generation first, got %s", calls[0])
		}
		if !strings.Contains(calls[1], "-lavfi fps=23.976[x];[x][1:v]paletteuse -loop 0 -f gif out.gif") {
			t.Errorf("Unexpected gif encode: %s", calls[1])
		}
	})

	t.Run("explicit format wins over extension", func(t *testing.T) {
		dir := setup(t)
		m := mocks.NewMockRunner()
		if err := newTestFFmpeg(m).Reconstruct(context.Background(), dir, "in.mp4", "out.bin", 30, "gif"); err != nil {
			t.Fatalf("Reconstruct failed: %v", err)
		}
		if len(m.Calls("ffmpeg")) != 2 {
			t.Error("Expected gif pipeline for explicit gif format")
		}
	})

	t.Run("no extension encodes mp4", func(t *testing.T) {
		dir := setup(t)
		m := mocks.NewMockRunner()
		if err := newTestFFmpeg(m).Reconstruct(context.Background(), dir, "in.mp4", "out", 30, ""); err != nil {
			t.Fatalf("Reconstruct failed: %v", err)
		}
		calls := m.Calls("ffmpeg")
		if len(calls) != 1 || !strings.HasSuffix(calls[0], "-shortest -f mp4 out") {
			t.Errorf("Expected mp4 muxer for an extensionless output, got %v", calls)
		}
	})

	t.Run("no frames", func(t *testing.T) {
		m := mocks.NewMockRunner()
		err := newTestFFmpeg(m).Reconstruct(context.Background(), t.TempDir(), "in.mp4", "out.mp4", 30, "")
		if !errors.Is(err, frames.ErrNoFrames) {
			t.Errorf("Expected ErrNoFrames, got %v", err)
		}
		if len(m.CallLog) != 0 {
			t.Errorf("Expected ffmpeg not to run, got %v", m.CallLog)
		}
	})
}
