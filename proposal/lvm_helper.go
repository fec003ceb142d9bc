package proposal

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
)

// pvFilesystem is the filesystem type of the physical volume demand.
const pvFilesystem = "lvm-pv"

// LvmHelper answers volume group questions for the planner.
type LvmHelper struct {
	VolumeGroups diskplan.VGSet

	// ReusedVG is the name of the volume group to keep, empty for none.
	ReusedVG string
}

// NewLvmHelper returns a helper for the groups in vgs.
func NewLvmHelper(vgs diskplan.VGSet, reused string) *LvmHelper {
	return &LvmHelper{VolumeGroups: vgs, ReusedVG: reused}
}

// MembersOf returns the member partitions of vg.
func (h *LvmHelper) MembersOf(vg string) ([]string, error) {
	g, ok := h.VolumeGroups[vg]
	if !ok {
		return nil, errors.Wrapf(ErrInvariant, "unknown volume group %s", vg)
	}

	return append([]string{}, g.Members...), nil
}

// IsReused returns true if vg is the group being reused.
func (h *LvmHelper) IsReused(vg string) bool {
	return h.ReusedVG != "" && vg == h.ReusedVG
}

// PartitionsInReusedVG returns the members of the reused group, which must
// all be partitions of g.
func (h *LvmHelper) PartitionsInReusedVG(g *diskplan.Devicegraph) ([]string, error) {
	if h.ReusedVG == "" {
		return []string{}, nil
	}

	members, err := h.MembersOf(h.ReusedVG)
	if err != nil {
		return nil, err
	}

	for _, m := range members {
		if _, _, ok := g.FindPartition(m); !ok {
			return nil, errors.Wrapf(ErrInvariant, "volume group %s: member %s is not a partition", h.ReusedVG, m)
		}
	}

	return members, nil
}

// PhysicalVolumeDemand returns a volume for the physical volume serving the
// given logical volumes. Each logical volume is rounded up to whole extents
// and one extent is added for metadata. Free space of a reused group counts
// against the demand.
func (h *LvmHelper) PhysicalVolumeDemand(lvs []*PlannedVolume, t Target) *PlannedVolume {
	size := diskplan.SumSizes(lo.Map(lvs, func(v *PlannedVolume, _ int) diskplan.Size {
		return v.TargetSize(t).AlignUp(diskplan.ExtentSize)
	})...)

	if vg, ok := h.VolumeGroups[h.ReusedVG]; ok && h.ReusedVG != "" {
		size = size.Sub(vg.Free)
	}

	if size != 0 {
		size = size.Add(diskplan.ExtentSize)
	}

	pv := &PlannedVolume{
		FilesystemType: pvFilesystem,
		MinSize:        size,
		DesiredSize:    size,
		MaxSize:        size,
	}

	return pv
}
