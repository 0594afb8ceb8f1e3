package interpolation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/mocks"
)

func newTestRIFE(model string) (*RIFE, *mocks.MockRunner) {
	m := mocks.NewMockRunner()
	m.Hooks["rife"] = fakeRIFE
	return &RIFE{Runner: m, Bin: "rife", Model: model}, m
}

func seedFrames(t *testing.T, dir string, n int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		if err := os.WriteFile(filepath.Join(dir, frames.Name(i)), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSupportsTargetCount(t *testing.T) {
	tests := map[string]bool{
		"rife-v4":              true,
		"rife-v4.6":            true,
		"rife-v4.26":           true,
		"/opt/rife/rife-v4.6":  true,
		"rife-v3.1":            false,
		"rife-anime":           false,
		"rife-UHD":             false,
		"rife-v40-experiments": false,
	}
	for model, expected := range tests {
		if got := SupportsTargetCount(model); got != expected {
			t.Errorf("SupportsTargetCount(%q): expected %v, got %v", model, expected, got)
		}
	}
}

func TestSinglePassArguments(t *testing.T) {
	step := 0.5
	gpu := 1
	r, m := newTestRIFE("rife-v4.6")
	r.TimeStep = &step
	r.GPUID = &gpu
	r.ThreadConfig = "1:2:2"
	r.TTA = true
	r.TemporalTTA = true
	r.UHD = true
	r.PatternFormat = "%08d.png"

	root := t.TempDir()
	in := filepath.Join(root, "in")
	seedFrames(t, in, 3)
	out := filepath.Join(root, "out")

	if err := r.SinglePass(context.Background(), in, out, 7); err != nil {
		t.Fatalf("SinglePass failed: %v", err)
	}

	expected := fmt.Sprintf("rife -i %s -o %s -m rife-v4.6 -n 7 -s 0.5 -g 1 -j 1:2:2 -x -z -u -f %%08d.png", in, out)
	if calls := m.Calls("rife"); len(calls) != 1 || calls[0] != expected {
		t.Errorf("Expected %q, got %v", expected, calls)
	}
	if n, _ := frames.Count(out); n != 7 {
		t.Errorf("Expected 7 frames, got %d", n)
	}
}

func TestSinglePassDefaultsToPNG(t *testing.T) {
	r, m := newTestRIFE("rife-v4")
	root := t.TempDir()
	seedFrames(t, filepath.Join(root, "in"), 2)

	if err := r.SinglePass(context.Background(), filepath.Join(root, "in"), filepath.Join(root, "out"), 4); err != nil {
		t.Fatalf("SinglePass failed: %v", err)
	}
	call := m.Calls("rife")[0]
	if !strings.HasSuffix(call, "-f png") || strings.Contains(call, "-g ") || strings.Contains(call, "-s ") {
		t.Errorf("Unexpected default arguments: %s", call)
	}
}

func TestModelPath(t *testing.T) {
	tools := t.TempDir()
	os.MkdirAll(filepath.Join(tools, "rife-v4.6"), 0755)

	r := &RIFE{Bin: filepath.Join(tools, "rife-ncnn-vulkan"), Model: "rife-v4.6"}
	if got := r.ModelPath(); got != filepath.Join(tools, "rife-v4.6") {
		t.Errorf("Expected bundled model path, got %s", got)
	}

	r.Model = "rife-anime"
	if got := r.ModelPath(); got != "rife-anime" {
		t.Errorf("Expected model name unchanged, got %s", got)
	}

	r = &RIFE{Bin: "rife-ncnn-vulkan", Model: "rife-v4.6"}
	if got := r.ModelPath(); got != "rife-v4.6" {
		t.Errorf("Expected model name for PATH binary, got %s", got)
	}
}

func TestMultipass(t *testing.T) {
	t.Run("requires temp folder", func(t *testing.T) {
		r, _ := newTestRIFE("rife-anime")
		err := r.Multipass(context.Background(), t.TempDir(), t.TempDir(), 10, false, "")
		if !errors.Is(err, ErrTempFolderRequired) {
			t.Errorf("Expected ErrTempFolderRequired, got %v", err)
		}
	})

	t.Run("already enough frames copies and trims", func(t *testing.T) {
		r, m := newTestRIFE("rife-anime")
		root := t.TempDir()
		in := filepath.Join(root, "in")
		out := filepath.Join(root, "out")
		seedFrames(t, in, 10)

		if err := r.Multipass(context.Background(), in, out, 7, false, filepath.Join(root, "temp")); err != nil {
			t.Fatalf("Multipass failed: %v", err)
		}
		if len(m.CallLog) != 0 {
			t.Errorf("Expected no RIFE calls, got %v", m.CallLog)
		}
		if n, _ := frames.Count(out); n != 7 {
			t.Errorf("Expected 7 frames, got %d", n)
		}
	})

	t.Run("stops once the target is reached", func(t *testing.T) {
		r, m := newTestRIFE("rife-anime")
		root := t.TempDir()
		in := filepath.Join(root, "in")
		out := filepath.Join(root, "out")
		temp := filepath.Join(root, "temp")
		seedFrames(t, in, 4)

		// 4 -> 13 needs ceil(log2(3.25)) = 2 passes: 8, 16
		if err := r.Multipass(context.Background(), in, out, 13, false, temp); err != nil {
			t.Fatalf("Multipass failed: %v", err)
		}

		calls := m.Calls("rife")
		if len(calls) != 2 {
			t.Fatalf("Expected 2 passes, got %v", calls)
		}
		if !strings.Contains(calls[1], "-i "+filepath.Join(temp, "temp_pass_1")) {
			t.Errorf("Expected second pass to read the first, got %s", calls[1])
		}
		if n, _ := frames.Count(out); n != 13 {
			t.Errorf("Expected 13 frames, got %d", n)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		r, _ := newTestRIFE("rife-anime")
		err := r.Multipass(context.Background(), t.TempDir(), t.TempDir(), 10, false, t.TempDir())
		if !errors.Is(err, frames.ErrNoFrames) {
			t.Errorf("Expected ErrNoFrames, got %v", err)
		}
	})
}

func TestFillToCount(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		current   int
		target    int
		wantCalls int
	}{
		{"equal copies", "rife-v4.6", 6, 6, 0},
		{"more trims", "rife-v4.6", 9, 6, 0},
		{"fewer single pass", "rife-v4.6", 3, 6, 1},
		{"fewer multipass", "rife-v2.4", 3, 6, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newTestRIFE(tt.model)
			root := t.TempDir()
			in := filepath.Join(root, "in")
			out := filepath.Join(root, "out")
			seedFrames(t, in, tt.current)
			os.MkdirAll(out, 0755)

			if err := r.FillToCount(context.Background(), in, out, tt.target, filepath.Join(root, "temp")); err != nil {
				t.Fatalf("FillToCount failed: %v", err)
			}
			if len(m.CallLog) != tt.wantCalls {
				t.Errorf("Expected %d RIFE calls, got %v", tt.wantCalls, m.CallLog)
			}
			if n, _ := frames.Count(out); n != tt.target {
				t.Errorf("Expected %d frames, got %d", tt.target, n)
			}
		})
	}
}

func TestInterpolateToCount(t *testing.T) {
	r, m := newTestRIFE("rife-v4.6")
	root := t.TempDir()
	seedFrames(t, filepath.Join(root, "in"), 10)

	target, err := r.InterpolateToCount(context.Background(), filepath.Join(root, "in"), filepath.Join(root, "out"), 10, 2.5, filepath.Join(root, "temp"))
	if err != nil {
		t.Fatalf("InterpolateToCount failed: %v", err)
	}
	if target != 25 || !strings.Contains(m.Calls("rife")[0], "-n 25") {
		t.Errorf("Expected target 25, got %d (%v)", target, m.CallLog)
	}
}

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("vkAllocateMemory failed"), true},
		{errors.New("CUDA out of memory"), true},
		{errors.New("vkQueueSubmit failed: device lost"), true},
		{errors.New("model not found"), false},
		{errors.New("open rife-v9: no such file or directory"), false},
		{errors.New("fork/exec rife: permission denied"), false},
		{errors.New("exit status 255"), true},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := isRecoverableError(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	r, m := newTestRIFE("rife-v4.6")
	r.Retries = 3
	root := t.TempDir()
	seedFrames(t, filepath.Join(root, "in"), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.SinglePass(ctx, filepath.Join(root, "in"), filepath.Join(root, "out"), 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(m.CallLog) != 0 {
		t.Errorf("Expected no retries after cancellation, got %v", m.CallLog)
	}
}

func TestWorkspace(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	seedFrames(t, a, 2)

	ws := NewWorkspace(a, "", b)
	if len(ws.Folders()) != 2 {
		t.Errorf("Expected empty folders to be ignored, got %v", ws.Folders())
	}

	if err := ws.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	for _, dir := range ws.Folders() {
		if n, err := frames.Count(dir); err != nil || n != 0 {
			t.Errorf("Expected %s to exist empty, got %d (%v)", dir, n, err)
		}
	}

	ws.Cleanup()
	for _, dir := range ws.Folders() {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed", dir)
		}
	}
}

func TestEstimateFrameStorageNeeds(t *testing.T) {
	small := EstimateFrameStorageNeeds(640, 360, 100, 2)
	large := EstimateFrameStorageNeeds(1920, 1080, 100, 2)
	more := EstimateFrameStorageNeeds(1920, 1080, 100, 4)

	if small <= 0 || large <= small || more <= large {
		t.Errorf("Expected estimates to grow with resolution and factor: %f %f %f", small, large, more)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet", "created")

	if err := CheckDiskSpace(dir, 0.000001); err != nil {
		t.Errorf("Expected a tiny estimate to fit, got %v", err)
	}

	err := CheckDiskSpace(dir, 1e12)
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		if !errors.Is(err, ErrInsufficientDiskSpace) {
			t.Errorf("Expected ErrInsufficientDiskSpace, got %v", err)
		}
	} else if err != nil {
		t.Errorf("Expected unsupported platforms to pass, got %v", err)
	}
}
