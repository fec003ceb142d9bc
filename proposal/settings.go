package proposal

import (
	"strings"

	"github.com/pkg/errors"
)

// DeleteMode controls deletion of one class of partitions.
type DeleteMode int

const (
	// DeleteOnDemand deletes partitions only as far as space is needed.
	DeleteOnDemand DeleteMode = iota

	// DeleteNone never deletes.
	DeleteNone

	// DeleteAll deletes every partition of the class on the candidate disks.
	DeleteAll
)

func (m DeleteMode) String() string {
	switch m {
	case DeleteNone:
		return "none"
	case DeleteAll:
		return "all"
	}

	return "ondemand"
}

// ParseDeleteMode reads "none", "ondemand" or "all".
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch strings.ToLower(s) {
	case "", "ondemand", "on-demand":
		return DeleteOnDemand, nil
	case "none":
		return DeleteNone, nil
	case "all":
		return DeleteAll, nil
	}

	return DeleteOnDemand, errors.Errorf("unknown delete mode %q", s)
}

// Settings restrict what the planner may touch. The zero value plans with
// desired sizes on all disks, deleting and resizing on demand.
type Settings struct {
	// CandidateDevices are the disks the planner may use, in order of
	// preference. Empty means all disks of the graph in name order.
	CandidateDevices []string

	// RootDevice pins the "/" volume when it has no disk of its own.
	RootDevice string

	// Target selects the volume size to plan for.
	Target Target

	// UseLVM gathers volumes that can live on logical volumes into one
	// physical volume.
	UseLVM bool

	// ReuseVolumeGroup names a volume group whose partitions must be kept.
	ReuseVolumeGroup string

	// NoForeignResize disables shrinking of foreign partitions.
	NoForeignResize bool

	LinuxDelete   DeleteMode
	OtherDelete   DeleteMode
	ForeignDelete DeleteMode
}

func (s Settings) deleteMode(c partClass) DeleteMode {
	switch c {
	case classLinux:
		return s.LinuxDelete
	case classForeign:
		return s.ForeignDelete
	}

	return s.OtherDelete
}
