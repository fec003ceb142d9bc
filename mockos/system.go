package mockos

import (
	"fmt"

	"machinerun.io/diskplan"
)

// System returns a mock os implementation of the diskplan.System interface
// for the layout file. It panics when the layout cannot be loaded.
func System(layout string) diskplan.System {
	l, err := Load(layout)
	if err != nil {
		panic(err)
	}

	sys, err := l.System()
	if err != nil {
		panic(err)
	}

	return sys
}

type mockSys struct {
	Disks diskplan.DiskSet
	VGs   diskplan.VGSet
}

func (ms *mockSys) ScanAllDisks(filter diskplan.DiskFilter) (diskplan.DiskSet, error) {
	disks := diskplan.DiskSet{}

	for n, d := range ms.Disks {
		if filter(d) {
			disks[n] = copyDisk(d)
		}
	}

	return disks, nil
}

func (ms *mockSys) ScanDisks(filter diskplan.DiskFilter, paths ...string) (diskplan.DiskSet, error) {
	disks := diskplan.DiskSet{}

	for _, p := range paths {
		d, e := ms.ScanDisk(p)

		if e != nil {
			return nil, e
		}

		if filter(d) {
			disks[d.Name] = d
		}
	}

	return disks, nil
}

func (ms *mockSys) ScanDisk(path string) (diskplan.Disk, error) {
	// Find the disk from the disk set
	for _, d := range ms.Disks {
		if d.Path == path {
			return copyDisk(d), nil
		}
	}

	return diskplan.Disk{}, fmt.Errorf("disk %s not found", path)
}

func (ms *mockSys) ScanVGs() (diskplan.VGSet, error) {
	vgs := diskplan.VGSet{}

	for n, vg := range ms.VGs {
		vg.Members = append([]string{}, vg.Members...)
		vgs[n] = vg
	}

	return vgs, nil
}

// copyDisk keeps scans from sharing partition maps with the mock.
func copyDisk(d diskplan.Disk) diskplan.Disk {
	g := diskplan.Devicegraph{Disks: diskplan.DiskSet{d.Name: d}}

	return g.Clone().Disks[d.Name]
}
