package diskplan_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

func sampleGraph() *diskplan.Devicegraph {
	extStart := 20*gib + mib
	g := diskplan.NewDevicegraph()
	g.Disks["sda"] = mbrDisk("sda", 100*gib,
		part(1, diskplan.Primary, mib, 20*gib, partid.MSBasicData),
		part(4, diskplan.Extended, extStart, 80*gib-mib, partid.MBR(partid.MBRExtendLBA)),
		part(5, diskplan.Logical, extStart+mib, 10*gib, partid.LinuxLVM),
		part(6, diskplan.Logical, extStart+10*gib+2*mib, 10*gib, partid.LinuxFS))
	g.Disks["sdb"] = diskplan.Disk{Name: "sdb", Path: "/dev/sdb", Size: 10 * gib, SectorSize: 512}
	g.VolumeGroups["vg0"] = diskplan.VolumeGroup{Name: "vg0", Size: 10 * gib, Members: []string{"/dev/sda5"}}

	return g
}

func TestCloneIsIndependent(t *testing.T) {
	ast := assert.New(t)
	orig := sampleGraph()
	snapshot := sampleGraph()
	clone := orig.Clone()

	ast.Empty(cmp.Diff(orig, clone))

	_, err := clone.DeletePartition("/dev/sda6")
	ast.NoError(err)
	ast.NoError(clone.ResizePartition("sda1", 10*gib))
	ast.NoError(clone.RemoveVolumeGroup("vg0"))

	ast.Empty(cmp.Diff(snapshot, orig))
	ast.NotEmpty(cmp.Diff(orig, clone))
}

func TestFindPartition(t *testing.T) {
	ast := assert.New(t)
	g := sampleGraph()

	d, p, ok := g.FindPartition("/dev/sda5")
	ast.True(ok)
	ast.Equal("sda", d.Name)
	ast.Equal(uint(5), p.Number)

	_, p, ok = g.FindPartition("sda6")
	ast.True(ok)
	ast.Equal(uint(6), p.Number)

	_, _, ok = g.FindPartition("/dev/sdb1")
	ast.False(ok)

	ast.Equal([]string{"/dev/sda1", "/dev/sda4", "/dev/sda5", "/dev/sda6"}, g.Partitions())

	d, ok = g.Disk("/dev/sdb")
	ast.True(ok)
	ast.Equal("sdb", d.Name)
}

func TestDeletePartition(t *testing.T) {
	ast := assert.New(t)
	g := sampleGraph()

	_, err := g.DeletePartition("/dev/sda4")
	ast.Error(err, "extended with logicals")

	_, err = g.DeletePartition("/dev/sda9")
	ast.True(errors.Is(err, diskplan.ErrNotFound))

	for _, dev := range []string{"/dev/sda6", "/dev/sda5", "/dev/sda4"} {
		_, err = g.DeletePartition(dev)
		ast.NoError(err, dev)
	}

	spaces := g.FreeSpaces("sda")
	ast.Len(spaces, 1)
	ast.Equal(20*gib+mib, spaces[0].Start)
	ast.Equal(80*gib-mib, spaces[0].Size())
}

func TestResizePartition(t *testing.T) {
	ast := assert.New(t)
	g := sampleGraph()

	ast.Error(g.ResizePartition("/dev/sda1", 30*gib))
	ast.Error(g.ResizePartition("/dev/sda4", gib))
	ast.NoError(g.ResizePartition("/dev/sda1", 15*gib))

	_, p, _ := g.FindPartition("/dev/sda1")
	ast.Equal(15*gib, p.Size())

	spaces := g.FreeSpaces("sda")
	ast.Len(spaces, 2)
	ast.False(spaces[0].InExtended)
	ast.True(spaces[1].InExtended)
	ast.Equal(15*gib+mib, spaces[0].Start)
	ast.Equal(5*gib, spaces[0].Size())
}

func TestFreeSpacesDiskOrder(t *testing.T) {
	ast := assert.New(t)
	g := sampleGraph()

	spaces := g.FreeSpaces("sdb", "sda")
	ast.NotEmpty(spaces)
	ast.Equal("sdb", spaces[0].Disk)
	ast.Equal("sda", spaces[len(spaces)-1].Disk)
}

func TestGroupOf(t *testing.T) {
	ast := assert.New(t)
	g := sampleGraph()

	vg, ok := g.VolumeGroups.GroupOf("sda5")
	ast.True(ok)
	ast.Equal("vg0", vg.Name)

	_, ok = g.VolumeGroups.GroupOf("/dev/sda6")
	ast.False(ok)
}
