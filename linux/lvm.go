//go:build linux

package linux

import (
	"os/exec"
	"sort"

	"machinerun.io/diskplan"
)

func (ls *linuxSystem) ScanVGs() (diskplan.VGSet, error) {
	if _, err := exec.LookPath("lvm"); err != nil {
		ls.log.V(1).Info("lvm not installed, assuming no volume groups")
		return diskplan.VGSet{}, nil
	}

	pvs, err := getPvReport()
	if err != nil {
		return diskplan.VGSet{}, err
	}

	vgs, err := getVgReport()
	if err != nil {
		return diskplan.VGSet{}, err
	}

	return buildVGSet(pvs, vgs), nil
}

// buildVGSet joins the pv and vg reports. Physical volumes outside any
// group are dropped.
func buildVGSet(pvs []lvmPVData, vgs []lvmVGData) diskplan.VGSet {
	set := diskplan.VGSet{}

	for _, vgd := range vgs {
		set[vgd.Name] = diskplan.VolumeGroup{
			Name:    vgd.Name,
			Size:    vgd.Size,
			Free:    vgd.Free,
			Members: []string{},
		}
	}

	for _, pvd := range pvs {
		vg, ok := set[pvd.VGName]
		if !ok {
			continue
		}

		vg.Members = append(vg.Members, pvd.Path)
		set[pvd.VGName] = vg
	}

	for _, vg := range set {
		sort.Strings(vg.Members)
	}

	return set
}
