package diskplan

import (
	"github.com/pkg/errors"
)

// DiskFilter is filter function that returns true if the mathing disk is
// accepted false otherwise.
type DiskFilter func(Disk) bool

// System interface provides the disk and lvm state of a machine.
type System interface {
	// ScanAllDisks scans the system for all available disks and returns a
	// set of disks that are accepted by the filter function. Use this function
	// if you dont know the device paths for the specific disks to be scanned.
	ScanAllDisks(filter DiskFilter) (DiskSet, error)

	// ScanDisks scans the system for disks identified by the specified paths
	// and returns a set of disks that are accepted by the filter function.
	ScanDisks(filter DiskFilter, paths ...string) (DiskSet, error)

	// ScanDisk scans the system for a single disk specified by the device path.
	ScanDisk(path string) (Disk, error)

	// ScanVGs scans the system for volume groups and their members.
	ScanVGs() (VGSet, error)
}

// Probe builds a Devicegraph from the system. With no paths all disks are
// scanned.
func Probe(sys System, paths ...string) (*Devicegraph, error) {
	var disks DiskSet
	var err error

	all := func(Disk) bool { return true }

	if len(paths) == 0 {
		disks, err = sys.ScanAllDisks(all)
	} else {
		disks, err = sys.ScanDisks(all, paths...)
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to scan disks")
	}

	vgs, err := sys.ScanVGs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan volume groups")
	}

	g := &Devicegraph{Disks: disks, VolumeGroups: VGSet{}}

	// groups on disks that were not scanned are of no interest. Groups only
	// partly on scanned disks are kept: their members must not be touched.
	for n, vg := range vgs {
		for _, m := range vg.Members {
			if _, _, ok := g.FindPartition(m); ok {
				g.VolumeGroups[n] = vg
				break
			}
		}
	}

	return g, g.Validate()
}
