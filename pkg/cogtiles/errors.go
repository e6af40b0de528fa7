package cogtiles

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDirectory is returned when a collection or partition
	// directory does not exist.
	ErrMissingDirectory = errors.New("directory not found")

	// ErrMissingCompanion is returned when a colour raster has no companion
	// data file next to it.
	ErrMissingCompanion = errors.New("companion file not found")

	// ErrEmptyCatalog is returned when a partition has no usable assets.
	ErrEmptyCatalog = errors.New("no raster assets")
)

// ConstructionError is a fatal error raised while building a partition.
// There are no partially built partitions: if construction fails the
// partition does not exist.
type ConstructionError struct {
	Partition string // Directory of the partition
	Path      string // Offending file, if any
	Err       error
}

func (e *ConstructionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("build partition %s: %s: %v", e.Partition, e.Path, e.Err)
	}
	return fmt.Sprintf("build partition %s: %v", e.Partition, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
