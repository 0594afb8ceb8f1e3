// Package gpu enumerates graphics devices for the Vulkan tools' -g flag.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"

	"videoenhancer/internal/runner"
)

const (
	// AutoChoice lets the tool pick a device
	AutoChoice = "Auto"
	// CPUChoice forces CPU processing
	CPUChoice = "-1 (CPU)"
)

// ErrNoDevices is returned when neither nvidia-smi nor ghw reports a GPU
var ErrNoDevices = errors.New("no GPU devices detected")

// Device is a graphics card and the index passed to -g
type Device struct {
	Index int
	Name  string
}

func (d Device) String() string {
	return fmt.Sprintf("%d: %s", d.Index, d.Name)
}

// detectCards returns the names of the graphics cards ghw sees, in enumeration order.
// It is replaced in tests.
var detectCards = func() ([]string, error) {
	info, err := ghw.GPU(ghw.WithDisableWarnings())
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := card.Address
		if card.DeviceInfo != nil {
			var parts []string
			if card.DeviceInfo.Vendor != nil {
				parts = append(parts, card.DeviceInfo.Vendor.Name)
			}
			if card.DeviceInfo.Product != nil {
				parts = append(parts, card.DeviceInfo.Product.Name)
			}
			if len(parts) > 0 {
				name = strings.Join(parts, " ")
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// List returns the GPUs nvidia-smi reports, falling back to the cards ghw can see.
//
// nvidia-smi indices are used as-is. ghw only knows PCI and DRM numbering, which says
// nothing about the Vulkan device order -g expects, so ghw cards are numbered by their
// position instead. That matches Vulkan on single-vendor machines but may not on hybrid
// ones; pass -1 or an explicit index there.
func List(ctx context.Context, r runner.Runner) ([]Device, error) {
	out, err := r.Output(ctx, "nvidia-smi", "--query-gpu=index,name", "--format=csv,noheader")
	if err == nil {
		if devices := ParseNvidiaSMI(string(out)); len(devices) > 0 {
			return devices, nil
		}
	} else {
		slog.Debug("nvidia-smi unavailable", "err", err)
	}

	names, err := detectCards()
	if err != nil {
		slog.Debug("ghw could not enumerate GPUs", "err", err)
		return nil, ErrNoDevices
	}
	if len(names) == 0 {
		return nil, ErrNoDevices
	}
	devices := make([]Device, len(names))
	for i, name := range names {
		devices[i] = Device{Index: i, Name: name}
	}
	return devices, nil
}

// ParseNvidiaSMI reads "index, name" CSV lines
func ParseNvidiaSMI(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		index, name, found := strings.Cut(strings.TrimSpace(line), ",")
		if !found {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(index))
		if err != nil {
			continue
		}
		devices = append(devices, Device{Index: i, Name: strings.TrimSpace(name)})
	}
	return devices
}

// Choices returns the wizard's GPU options: Auto, each device, then CPU
func Choices(devices []Device) []string {
	choices := make([]string, 0, len(devices)+2)
	choices = append(choices, AutoChoice)
	for _, d := range devices {
		choices = append(choices, d.String())
	}
	return append(choices, CPUChoice)
}

// ParseChoice converts a wizard choice to a device index. Auto yields nil.
func ParseChoice(choice string) (*int, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" || choice == AutoChoice {
		return nil, nil
	}
	index, _, _ := strings.Cut(choice, ":")
	index, _, _ = strings.Cut(index, " ")
	i, err := strconv.Atoi(index)
	if err != nil {
		return nil, fmt.Errorf("invalid GPU choice %q", choice)
	}
	return &i, nil
}
