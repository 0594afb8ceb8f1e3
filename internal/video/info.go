// internal/video/info.go
package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/vansante/go-ffprobe.v2"

	"videoenhancer/internal/ffmpeg"
	"videoenhancer/internal/frames"
)

// DefaultFPS is used when a video's frame rate cannot be read
const DefaultFPS = 30.0

// Prober reads container and stream metadata
type Prober interface {
	Probe(ctx context.Context, path string, extraOptions ...string) (*ffprobe.ProbeData, error)
}

// FFProbe probes with the ffprobe binary through go-ffprobe
type FFProbe struct{}

// NewFFProbe points go-ffprobe at bin when it is not on PATH
func NewFFProbe(bin string) *FFProbe {
	if bin != "" {
		ffprobe.SetFFProbeBinPath(bin)
	}
	return &FFProbe{}
}

func (FFProbe) Probe(ctx context.Context, path string, extraOptions ...string) (*ffprobe.ProbeData, error) {
	return ffprobe.ProbeURL(ctx, path, extraOptions...)
}

type VideoInfo struct {
	Filepath string
	FileSize int64
	Width    int
	Height   int
	Duration float64
	Format   string
	Codec    string
	Bitrate  int64
	FPS      float64
}

// GetVideoInfo summarises path for display
func GetVideoInfo(ctx context.Context, p Prober, path string) (*VideoInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	data, err := p.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	info := &VideoInfo{
		Filepath: path,
		FileSize: fileInfo.Size(),
		FPS:      DefaultFPS,
	}

	if data.Format != nil {
		info.Format = data.Format.FormatName
		info.Duration = data.Format.DurationSeconds
		if bitrate, err := strconv.ParseInt(data.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = bitrate
		}
	}

	if stream := data.FirstVideoStream(); stream != nil {
		info.Width = stream.Width
		info.Height = stream.Height
		info.Codec = stream.CodecName
		if fps, err := ParseFrameRate(stream.AvgFrameRate); err == nil {
			info.FPS = fps
		}
	}

	return info, nil
}

// ParseFrameRate parses an ffprobe rate such as "24000/1001" or "25"
func ParseFrameRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return n / d, nil
}

// FPS returns the average frame rate of the first video stream, falling back to DefaultFPS
func FPS(ctx context.Context, p Prober, path string) float64 {
	data, err := p.Probe(ctx, path, "-select_streams", "v:0")
	if err != nil {
		slog.Warn("could not probe frame rate, assuming default", "video", path, "fps", DefaultFPS, "err", err)
		return DefaultFPS
	}

	stream := data.FirstVideoStream()
	if stream == nil {
		slog.Warn("no video stream found, assuming default frame rate", "video", path, "fps", DefaultFPS)
		return DefaultFPS
	}

	fps, err := ParseFrameRate(stream.AvgFrameRate)
	if err != nil || fps <= 0 {
		slog.Warn("unreadable frame rate, assuming default", "video", path, "rate", stream.AvgFrameRate, "fps", DefaultFPS)
		return DefaultFPS
	}
	return fps
}

// FrameCount decodes the first video stream to count its frames. When ffprobe cannot, the
// frames are extracted into a scratch folder and counted instead.
func FrameCount(ctx context.Context, ff *ffmpeg.FFmpeg, path string) (int, error) {
	out, err := ff.Runner.Output(ctx, ff.FFprobe,
		"-v", "error",
		"-count_frames",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_read_frames",
		"-of", "csv=p=0",
		path,
	)
	if err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(string(out))); convErr == nil && n > 0 {
			return n, nil
		}
	}
	slog.Warn("ffprobe could not count frames, extracting to count", "video", path, "err", err)

	scratch, err := os.MkdirTemp("", "framecount_")
	if err != nil {
		return 0, fmt.Errorf("failed to create scratch folder: %w", err)
	}
	defer os.RemoveAll(scratch)

	dir := filepath.Join(scratch, "frames")
	if err := ff.ExtractFrames(ctx, path, dir, ffmpeg.ExtractOptions{}); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return frames.Count(dir)
}
