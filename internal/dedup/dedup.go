// Package dedup detects and drops duplicated frames in animation-style footage, where each
// drawing is held for several video frames.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"videoenhancer/internal/frames"
)

const (
	// DefaultThreshold is the mean absolute luma difference above which two frames differ
	DefaultThreshold = 5.0

	// decodeWindow bounds how many decoded frames are held in memory at once
	decodeWindow = 64
)

var (
	ErrNoFrames      = errors.New("no frames found in the folder")
	ErrUndetermined  = errors.New("could not determine duplication rate")
	ErrInvalidRate   = errors.New("duplicate rate must be at least 1.0")
	ErrOutputExists  = errors.New("output folder already exists")
	imageExtensions  = []string{".png", ".jpg", ".jpeg"}
	frameNumberRegex = regexp.MustCompile(`\d+`)
)

// ExistingOutputPolicy decides what RemoveDuplicates does with an existing output folder
type ExistingOutputPolicy int

const (
	Abort ExistingOutputPolicy = iota
	Overwrite
	NewFolder
)

// Detection summarises a duplication scan
type Detection struct {
	TotalFrames  int
	UniqueFrames int
	Rate         float64
}

// ImageFiles returns the image files in dir, sorted by name
func ImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, valid := range imageExtensions {
			if ext == valid {
				names = append(names, entry.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// FrameNumber returns the last integer in a file name, whatever the naming convention
func FrameNumber(name string) (int, bool) {
	matches := frameNumberRegex.FindAllString(name, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// sortByFrameNumber orders names by their frame number; names without one go last
func sortByFrameNumber(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, okA := FrameNumber(names[i])
		b, okB := FrameNumber(names[j])
		switch {
		case okA && okB:
			return a < b
		case okA:
			return true
		default:
			return false
		}
	})
}

// luma is an 8-bit grayscale rendition of a frame
type luma struct {
	width, height int
	pix           []uint8
}

func readLuma(path string) (*luma, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	l := &luma{width: bounds.Dx(), height: bounds.Dy(), pix: make([]uint8, bounds.Dx()*bounds.Dy())}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < l.height; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+l.width]
			copy(l.pix[y*l.width:], row)
		}
		return l, nil
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l.pix[i] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			i++
		}
	}
	return l, nil
}

// meanAbsDiff returns the mean absolute pixel difference; frames of different size
// are treated as completely different.
func meanAbsDiff(a, b *luma) float64 {
	if a.width != b.width || a.height != b.height || len(a.pix) == 0 {
		return math.MaxFloat64
	}
	var sum uint64
	for i := range a.pix {
		d := int(a.pix[i]) - int(b.pix[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(len(a.pix))
}

// Detect scans dir and compares each frame with the previous readable one.
func Detect(ctx context.Context, dir string, threshold float64) (*Detection, error) {
	names, err := ImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoFrames
	}
	sortByFrameNumber(names)

	numbered := 0
	for _, name := range names {
		if _, ok := FrameNumber(name); ok {
			numbered++
		}
	}

	var prev *luma
	unique := 0
	workers := runtime.NumCPU()

	for start := 0; start < len(names); start += decodeWindow {
		end := min(start+decodeWindow, len(names))
		window := make([]*luma, end-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := start; i < end; i++ {
			i := i // per-iteration copy; go.mod targets go 1.21 (pre-1.22 loopvar semantics)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				l, err := readLuma(filepath.Join(dir, names[i]))
				if err != nil {
					slog.Debug("skipping unreadable frame", "frame", names[i], "err", err)
					return nil
				}
				window[i-start] = l
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, current := range window {
			if start+i == 0 {
				if current == nil {
					return nil, fmt.Errorf("%w: first frame %s is unreadable", ErrUndetermined, names[0])
				}
				prev = current
				unique = 1
				continue
			}
			if current == nil {
				continue
			}
			if meanAbsDiff(prev, current) > threshold {
				unique++
			}
			prev = current
		}
	}

	if numbered == 0 || unique == 0 {
		return nil, ErrUndetermined
	}

	rate := float64(numbered) / float64(unique)
	if rate < 1.0 {
		rate = 1.0
	}

	return &Detection{TotalFrames: numbered, UniqueFrames: unique, Rate: rate}, nil
}

// DetectDuplicationRate returns how many video frames each distinct drawing is held for on average
func DetectDuplicationRate(ctx context.Context, dir string, threshold float64) (float64, error) {
	detection, err := Detect(ctx, dir, threshold)
	if err != nil {
		return 0, err
	}
	return detection.Rate, nil
}

// SelectFrames returns the indices to keep when dropping duplicates at rate
func SelectFrames(total int, rate float64) []int {
	if total <= 0 || rate <= 0 {
		return nil
	}

	count := int(float64(total) / rate)
	seen := make(map[int]bool, count)
	selected := make([]int, 0, count)
	for i := 0; i < count; i++ {
		idx := int(math.RoundToEven(float64(i) * rate))
		if idx >= total || seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, idx)
	}
	return selected
}

// ResolveOutput applies policy to an output folder that may already exist and returns
// the folder to write into.
func ResolveOutput(out string, policy ExistingOutputPolicy) (string, error) {
	if _, err := os.Stat(out); os.IsNotExist(err) {
		return out, nil
	}

	switch policy {
	case Overwrite:
		if err := os.RemoveAll(out); err != nil {
			return "", fmt.Errorf("failed to remove existing output folder: %w", err)
		}
		return out, nil
	case NewFolder:
		candidate := out
		for n := 1; ; n++ {
			candidate = fmt.Sprintf("%s_%d", out, n)
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				return candidate, nil
			}
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrOutputExists, out)
	}
}

// RemoveDuplicates copies the frames of in that survive duplicate removal at rate into out.
// It returns the folder written, which differs from out under the NewFolder policy.
func RemoveDuplicates(ctx context.Context, in, out string, rate float64, policy ExistingOutputPolicy, progress io.Writer) (string, int, error) {
	if rate < 1.0 {
		return "", 0, ErrInvalidRate
	}

	names, err := ImageFiles(in)
	if err != nil {
		return "", 0, err
	}
	if len(names) == 0 {
		return "", 0, ErrNoFrames
	}

	keep := SelectFrames(len(names), rate)

	target, err := ResolveOutput(out, policy)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output folder: %w", err)
	}

	slog.Info("removing duplicate frames", "frames", len(names), "keeping", len(keep), "rate", rate)

	bar := frames.NewBar(len(keep), "Processing", progress)

	for _, idx := range keep {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		if err := frames.CopyFile(filepath.Join(in, names[idx]), filepath.Join(target, names[idx])); err != nil {
			return "", 0, err
		}
		bar.Add(1)
	}
	bar.Finish()

	return target, len(keep), nil
}
