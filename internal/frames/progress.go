package frames

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// pollInterval is how often Watch recounts a folder
var pollInterval = 250 * time.Millisecond

// NewBar returns a progress bar in the application's theme. A nil writer discards output.
func NewBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Watch tracks an external program filling dir with frames, updating a bar until the
// returned stop function is called. onCount, if set, receives every new count.
func Watch(ctx context.Context, dir string, total int, description string, w io.Writer, onCount func(int)) (stop func()) {
	if w == nil && onCount == nil {
		return func() {}
	}

	bar := NewBar(total, description, w)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		last := -1
		for {
			if count, err := Count(dir); err == nil && count != last {
				last = count
				bar.Set(min(count, total))
				if onCount != nil {
					onCount(count)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
		if count, err := Count(dir); err == nil {
			bar.Set(min(count, total))
			if onCount != nil && count != 0 {
				onCount(count)
			}
		}
		bar.Finish()
	}
}
