package mockos

import (
	"fmt"
	"path"

	"machinerun.io/diskplan"
)

// volumeGroups builds the volume groups of the layout. A group's size is
// the sum of its members, each less one extent of metadata and rounded
// down to whole extents.
func (l *Layout) volumeGroups(disks diskplan.DiskSet) (diskplan.VGSet, error) {
	vgs := diskplan.VGSet{}
	g := &diskplan.Devicegraph{Disks: disks}

	for _, vl := range l.VGs {
		if _, ok := vgs[vl.Name]; ok {
			return nil, fmt.Errorf("volume group %s defined twice", vl.Name)
		}

		vg := diskplan.VolumeGroup{Name: vl.Name, Free: vl.Free}

		for _, m := range vl.Members {
			if !path.IsAbs(m) {
				m = path.Join("/dev", m)
			}

			if _, _, ok := g.FindPartition(m); !ok {
				return nil, fmt.Errorf("volume group %s: member %s not found", vl.Name, m)
			}

			if other, ok := vgs.GroupOf(m); ok {
				return nil, fmt.Errorf("volume group %s: %s already in %s", vl.Name, m, other.Name)
			}

			vg.Members = append(vg.Members, m)
		}

		vg.Size = pvSize(g, vg.Members...)
		if vg.Free > vg.Size {
			return nil, fmt.Errorf("volume group %s: free %s exceeds size %s", vl.Name, vg.Free, vg.Size)
		}

		vgs[vg.Name] = vg
	}

	return vgs, nil
}

func pvSize(g *diskplan.Devicegraph, members ...string) diskplan.Size {
	total := diskplan.Zero

	for _, m := range members {
		_, p, _ := g.FindPartition(m)
		total = total.Add(p.Size().Sub(diskplan.ExtentSize).AlignDown(diskplan.ExtentSize))
	}

	return total
}
