package proposal

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"machinerun.io/diskplan"
)

var (
	// ErrProposal matches every planning failure. Both NoDiskSpaceError and
	// AffinityError satisfy errors.Is(err, ErrProposal).
	ErrProposal = errors.New("proposal failed")

	// ErrNoDiskSpace matches NoDiskSpaceError.
	ErrNoDiskSpace = errors.New("not enough disk space")

	// ErrInvariant is returned for inconsistent input: a reused device that
	// does not exist, or a volume group with unknown members.
	ErrInvariant = errors.New("invariant violated")

	// ErrInvalidVolume is returned for a volume with min > desired or
	// desired > max.
	ErrInvalidVolume = errors.New("invalid planned volume")
)

// NoDiskSpaceError is returned when no amount of resizing and deleting
// makes room for the volumes.
type NoDiskSpaceError struct {
	// Volumes could not be placed.
	Volumes []*PlannedVolume

	// Disks were searched.
	Disks []string

	// Missing is how much the demand exceeds the free space at the end.
	Missing diskplan.Size
}

func (e *NoDiskSpaceError) Error() string {
	return fmt.Sprintf("no space for %s on %s (missing %s)",
		volumeList(e.Volumes), strings.Join(e.Disks, ","), e.Missing)
}

// Is makes the error match ErrNoDiskSpace and ErrProposal.
func (e *NoDiskSpaceError) Is(target error) bool {
	return target == ErrNoDiskSpace || target == ErrProposal
}

// AffinityError is returned when volumes restricted to a disk cannot be
// placed there, whatever happens on the other disks.
type AffinityError struct {
	Disk    string
	Volumes []*PlannedVolume
	Reason  string
	Cause   error
}

func (e *AffinityError) Error() string {
	msg := fmt.Sprintf("cannot place %s on %s: %s", volumeList(e.Volumes), e.Disk, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Is makes the error match ErrProposal.
func (e *AffinityError) Is(target error) bool {
	return target == ErrProposal
}

// Unwrap returns the error that made the disk infeasible.
func (e *AffinityError) Unwrap() error {
	return e.Cause
}

func volumeList(vols []*PlannedVolume) string {
	names := make([]string, len(vols))
	for i, v := range vols {
		names[i] = v.String()
	}

	return "[" + strings.Join(names, ", ") + "]"
}
