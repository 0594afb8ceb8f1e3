package dedup

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func TestFrameNumber(t *testing.T) {
	tests := []struct {
		name     string
		expected int
		ok       bool
	}{
		{"frame_00000012.png", 12, true},
		{"shot2_0005.jpg", 5, true},
		{"00000003.png", 3, true},
		{"cover.png", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FrameNumber(tt.name)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("Expected (%d, %v), got (%d, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func TestSortByFrameNumber(t *testing.T) {
	names := []string{"f_10.png", "cover.png", "f_2.png", "f_1.png"}
	sortByFrameNumber(names)
	expected := []string{"f_1.png", "f_2.png", "f_10.png", "cover.png"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}
}

func TestSelectFrames(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		rate     float64
		expected []int
	}{
		{"doubled", 10, 2.0, []int{0, 2, 4, 6, 8}},
		{"rate 1.25 uses half-even rounding", 10, 1.25, []int{0, 1, 2, 4, 5, 6, 8, 9}},
		{"rate 1.5", 6, 1.5, []int{0, 2, 3, 4}},
		{"no duplicates", 3, 1.0, []int{0, 1, 2}},
		{"empty", 0, 2.0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectFrames(tt.total, tt.rate)
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	t.Run("frames held twice", func(t *testing.T) {
		dir := t.TempDir()
		// Out of lexical order on purpose: 10 must sort after 9.
		shades := map[string]uint8{
			"f_1.png": 10, "f_2.png": 12, "f_3.png": 80, "f_4.png": 81,
			"f_5.png": 160, "f_6.png": 160, "f_7.png": 240, "f_8.png": 240,
			"f_9.png": 30, "f_10.png": 30,
		}
		for name, shade := range shades {
			writePNG(t, filepath.Join(dir, name), shade)
		}

		detection, err := Detect(context.Background(), dir, DefaultThreshold)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if detection.TotalFrames != 10 || detection.UniqueFrames != 5 {
			t.Errorf("Expected 10 total / 5 unique, got %d / %d", detection.TotalFrames, detection.UniqueFrames)
		}
		if detection.Rate != 2.0 {
			t.Errorf("Expected rate 2.0, got %f", detection.Rate)
		}
	})

	t.Run("all distinct", func(t *testing.T) {
		dir := t.TempDir()
		for i, shade := range []uint8{0, 50, 100, 150} {
			writePNG(t, filepath.Join(dir, "frame_"+string(rune('1'+i))+".png"), shade)
		}
		rate, err := DetectDuplicationRate(context.Background(), dir, DefaultThreshold)
		if err != nil {
			t.Fatalf("DetectDuplicationRate failed: %v", err)
		}
		if rate != 1.0 {
			t.Errorf("Expected rate 1.0, got %f", rate)
		}
	})

	t.Run("unreadable frames are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, filepath.Join(dir, "f_1.png"), 10)
		os.WriteFile(filepath.Join(dir, "f_2.png"), []byte("broken"), 0644)
		writePNG(t, filepath.Join(dir, "f_3.png"), 10)
		writePNG(t, filepath.Join(dir, "f_4.png"), 200)

		detection, err := Detect(context.Background(), dir, DefaultThreshold)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if detection.UniqueFrames != 2 || detection.TotalFrames != 4 {
			t.Errorf("Expected 4 total / 2 unique, got %d / %d", detection.TotalFrames, detection.UniqueFrames)
		}
	})

	t.Run("empty folder", func(t *testing.T) {
		_, err := Detect(context.Background(), t.TempDir(), DefaultThreshold)
		if !errors.Is(err, ErrNoFrames) {
			t.Errorf("Expected ErrNoFrames, got %v", err)
		}
	})

	t.Run("unreadable first frame", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "f_1.png"), []byte("broken"), 0644)
		writePNG(t, filepath.Join(dir, "f_2.png"), 10)

		_, err := Detect(context.Background(), dir, DefaultThreshold)
		if !errors.Is(err, ErrUndetermined) {
			t.Errorf("Expected ErrUndetermined, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, filepath.Join(dir, "f_1.png"), 10)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Detect(ctx, dir, DefaultThreshold); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestRemoveDuplicates(t *testing.T) {
	setup := func(t *testing.T) string {
		in := filepath.Join(t.TempDir(), "in")
		os.MkdirAll(in, 0755)
		for i := 1; i <= 8; i++ {
			os.WriteFile(filepath.Join(in, "frame_0"+string(rune('0'+i))+".png"), []byte{byte(i)}, 0644)
		}
		return in
	}

	t.Run("keeps every other frame", func(t *testing.T) {
		in := setup(t)
		out := filepath.Join(filepath.Dir(in), "out")

		written, kept, err := RemoveDuplicates(context.Background(), in, out, 2.0, Abort, nil)
		if err != nil {
			t.Fatalf("RemoveDuplicates failed: %v", err)
		}
		if written != out || kept != 4 {
			t.Errorf("Expected 4 frames in %s, got %d in %s", out, kept, written)
		}
		names, _ := ImageFiles(out)
		expected := []string{"frame_01.png", "frame_03.png", "frame_05.png", "frame_07.png"}
		if !reflect.DeepEqual(names, expected) {
			t.Errorf("Expected %v, got %v", expected, names)
		}
	})

	t.Run("existing output policies", func(t *testing.T) {
		in := setup(t)
		out := filepath.Join(filepath.Dir(in), "out")
		os.MkdirAll(out, 0755)
		os.WriteFile(filepath.Join(out, "stale.png"), nil, 0644)

		if _, _, err := RemoveDuplicates(context.Background(), in, out, 2.0, Abort, nil); !errors.Is(err, ErrOutputExists) {
			t.Errorf("Expected ErrOutputExists, got %v", err)
		}

		written, _, err := RemoveDuplicates(context.Background(), in, out, 2.0, NewFolder, nil)
		if err != nil {
			t.Fatalf("NewFolder policy failed: %v", err)
		}
		if written != out+"_1" {
			t.Errorf("Expected %s_1, got %s", out, written)
		}

		if _, _, err := RemoveDuplicates(context.Background(), in, out, 2.0, Overwrite, nil); err != nil {
			t.Fatalf("Overwrite policy failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(out, "stale.png")); !os.IsNotExist(err) {
			t.Error("Expected stale frame to be removed on overwrite")
		}
	})

	t.Run("rate below one", func(t *testing.T) {
		in := setup(t)
		_, _, err := RemoveDuplicates(context.Background(), in, in+"_out", 0.5, Abort, nil)
		if !errors.Is(err, ErrInvalidRate) {
			t.Errorf("Expected ErrInvalidRate, got %v", err)
		}
	})
}
