//go:build !linux && !darwin

package interpolation

import "errors"

// GetDiskUsage is not implemented on this platform
func GetDiskUsage(dir string) (*DiskUsage, error) {
	return nil, errors.New("disk usage is not supported on this platform")
}
