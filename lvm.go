package diskplan

import (
	"sort"
)

// ExtentSize is extent size for lvm
const ExtentSize = 4 * Mebibyte

// VolumeGroup is an LVM volume group and the partitions backing it.
type VolumeGroup struct {
	// Name is the name of the volume group.
	Name string `json:"name"`

	// Size is the current size of the volume group.
	Size Size `json:"size"`

	// Free is the space not allocated to logical volumes.
	Free Size `json:"free"`

	// Members are the device paths of the physical volumes.
	Members []string `json:"members"`
}

// HasMember returns true if the device is one of the group's physical
// volumes. Both kernel names and paths are accepted.
func (vg VolumeGroup) HasMember(dev string) bool {
	for _, m := range vg.Members {
		if KernelName(m) == KernelName(dev) {
			return true
		}
	}

	return false
}

// VGSet is set of volume groups indexed by their name.
type VGSet map[string]VolumeGroup

// Names returns the group names in sorted order.
func (vgs VGSet) Names() []string {
	names := make([]string, 0, len(vgs))
	for n := range vgs {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// GroupOf returns the volume group the device belongs to.
func (vgs VGSet) GroupOf(dev string) (VolumeGroup, bool) {
	for _, n := range vgs.Names() {
		if vgs[n].HasMember(dev) {
			return vgs[n], true
		}
	}

	return VolumeGroup{}, false
}

func (vgs VGSet) clone() VGSet {
	c := make(VGSet, len(vgs))

	for n, vg := range vgs {
		vg.Members = append([]string{}, vg.Members...)
		c[n] = vg
	}

	return c
}
