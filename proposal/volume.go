package proposal

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"machinerun.io/diskplan"
)

// Target selects which size of a volume the planner makes room for.
type Target int

const (
	// TargetDesired plans with desired sizes (min when desired is unlimited).
	TargetDesired Target = iota

	// TargetMin plans with min sizes.
	TargetMin
)

func (t Target) String() string {
	if t == TargetMin {
		return "min"
	}

	return "desired"
}

// ParseTarget reads "desired" or "min".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "", "desired":
		return TargetDesired, nil
	case "min", "minimum":
		return TargetMin, nil
	}

	return TargetDesired, errors.Errorf("unknown size target %q", s)
}

// PlannedVolume is a volume the planner has to find room for.
type PlannedVolume struct {
	MountPoint     string
	FilesystemType string

	MinSize     diskplan.Size
	MaxSize     diskplan.Size
	DesiredSize diskplan.Size

	// Reuse names an existing partition to keep and use as is. Reused
	// volumes take no new space.
	Reuse string

	// Disk restricts the volume to one disk. Empty means any candidate.
	Disk string

	CanLiveOnLogicalVolume bool
	LogicalVolumeName      string
}

// NewPlannedVolume returns a volume with no minimum, no maximum and an
// unlimited desired size.
func NewPlannedVolume(mountPoint, fsType string) *PlannedVolume {
	v := &PlannedVolume{
		MountPoint:     mountPoint,
		FilesystemType: fsType,
		MinSize:        diskplan.Zero,
		MaxSize:        diskplan.Unlimited,
		DesiredSize:    diskplan.Unlimited,
	}

	if strings.HasPrefix(mountPoint, "/") && !strings.HasPrefix(mountPoint, "/boot") {
		v.CanLiveOnLogicalVolume = true
		v.LogicalVolumeName = logicalVolumeName(mountPoint)
	}

	return v
}

func logicalVolumeName(mountPoint string) string {
	if mountPoint == "/" {
		return "root"
	}

	return strings.ReplaceAll(strings.TrimPrefix(mountPoint, "/"), "/", "_")
}

// IsReused returns true if the volume keeps an existing partition.
func (v *PlannedVolume) IsReused() bool {
	return v.Reuse != ""
}

// RestrictedTo returns the disk the volume must be placed on.
func (v *PlannedVolume) RestrictedTo() (string, bool) {
	return v.Disk, v.Disk != ""
}

// Validate checks min <= desired <= max. An unlimited desired size is
// always accepted.
func (v *PlannedVolume) Validate() error {
	if v.MinSize > v.MaxSize {
		return errors.Wrapf(ErrInvalidVolume, "%s: min %s > max %s", v, v.MinSize, v.MaxSize)
	}

	if v.DesiredSize.IsUnlimited() {
		return nil
	}

	if v.DesiredSize < v.MinSize || v.DesiredSize > v.MaxSize {
		return errors.Wrapf(ErrInvalidVolume, "%s: desired %s outside [%s, %s]",
			v, v.DesiredSize, v.MinSize, v.MaxSize)
	}

	return nil
}

// TargetSize is the size the planner makes room for, always within
// [MinSize, MaxSize].
func (v *PlannedVolume) TargetSize(t Target) diskplan.Size {
	size := v.MinSize

	if t == TargetDesired && !v.DesiredSize.IsUnlimited() {
		size = v.DesiredSize
	}

	return size.Clamp(v.MinSize, v.MaxSize)
}

func (v *PlannedVolume) String() string {
	name := v.MountPoint
	if name == "" {
		name = v.FilesystemType
	}

	if name == "" {
		name = "volume"
	}

	return fmt.Sprintf("%s(min=%s desired=%s max=%s)", name, v.MinSize, v.DesiredSize, v.MaxSize)
}
