package diskplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

const (
	mib = diskplan.Mebibyte
	gib = diskplan.Gibibyte
)

func part(num uint, kind diskplan.PartKind, start, size diskplan.Size, ptype [16]byte) diskplan.Partition {
	return diskplan.Partition{
		Number: num,
		Kind:   kind,
		Start:  start,
		Last:   start + size - 1,
		Type:   diskplan.PartType(ptype),
	}
}

func mbrDisk(name string, size diskplan.Size, parts ...diskplan.Partition) diskplan.Disk {
	t := diskplan.NewPartitionTable(diskplan.MBR)
	for _, p := range parts {
		t.Partitions[p.Number] = p
	}

	return diskplan.Disk{Name: name, Path: "/dev/" + name, Size: size, SectorSize: 512, Table: t}
}

func TestFreeSpaceNoTable(t *testing.T) {
	ast := assert.New(t)
	d := diskplan.Disk{Name: "sda", Path: "/dev/sda", Size: 50 * gib, SectorSize: 512}

	spaces := d.FreeSpaces()
	ast.Len(spaces, 1)
	ast.Equal(mib, spaces[0].Start)
	ast.Equal(50*gib-mib-16896, spaces[0].Size())
	ast.Equal("sda", spaces[0].Disk)
	ast.Nil(d.Table)
}

func TestFreeSpaceEmptyMBR(t *testing.T) {
	ast := assert.New(t)
	d := mbrDisk("sda", 50*gib)

	ast.Equal([]diskplan.FreeSpace{{Disk: "sda", Start: mib, Last: 50*gib - 1}}, d.FreeSpaces())
	ast.Equal(50*gib-mib, d.UsableSize())
}

func TestFreeSpaceBetweenPartitions(t *testing.T) {
	ast := assert.New(t)
	d := mbrDisk("sda", 100*gib,
		part(1, diskplan.Primary, mib, 10*gib, partid.LinuxFS),
		part(2, diskplan.Primary, 20*gib, 10*gib, partid.LinuxFS))

	spaces := d.FreeSpaces()
	ast.Len(spaces, 2)
	ast.Equal(10*gib+mib, spaces[0].Start)
	ast.Equal(10*gib-mib, spaces[0].Size())
	ast.Equal(30*gib, spaces[1].Start)
	ast.Equal(70*gib, spaces[1].Size())
	ast.Equal(80*gib-mib, d.FreeSize())
}

func TestFreeSpaceInsideExtended(t *testing.T) {
	ast := assert.New(t)
	extStart := 10*gib + mib
	d := mbrDisk("sda", 100*gib,
		part(1, diskplan.Primary, mib, 10*gib, partid.MSBasicData),
		part(4, diskplan.Extended, extStart, 90*gib-mib, partid.MBR(partid.MBRExtendLBA)),
		// a hole of 20GiB before sda5's EBR
		part(5, diskplan.Logical, extStart+20*gib+mib, 10*gib, partid.LinuxFS))

	ast.NoError(d.Validate())

	spaces := d.FreeSpaces()
	ast.Len(spaces, 2)
	ast.True(spaces[0].InExtended)
	ast.Equal(extStart, spaces[0].Start)
	ast.Equal(20*gib, spaces[0].Size())
	ast.True(spaces[1].InExtended)
	ast.Equal(extStart+30*gib+mib, spaces[1].Start)
	ast.Equal(100*gib-(extStart+30*gib+mib), spaces[1].Size())
}

func TestFreeSpaceEndAligned(t *testing.T) {
	ast := assert.New(t)
	d := diskplan.Disk{Name: "vda", Size: 10*gib + 3*diskplan.Kibibyte, SectorSize: 512,
		Table: diskplan.NewPartitionTable(diskplan.GPT)}

	ast.Equal(10*gib-mib+3*diskplan.Kibibyte-16896, d.FreeSpaces()[0].Size())

	d.Table.EndAligned = true
	ast.Equal(10*gib-2*mib, d.FreeSpaces()[0].Size())
}

func TestFreeSpaceSkipsTinyGaps(t *testing.T) {
	ast := assert.New(t)
	d := mbrDisk("sda", 10*gib,
		part(1, diskplan.Primary, mib, 5*gib, partid.LinuxFS),
		part(2, diskplan.Primary, 5*gib+mib+512*1024, 5*gib-mib-512*1024, partid.LinuxFS))

	ast.Empty(d.FreeSpaces())
}

func TestDiskValidate(t *testing.T) {
	ast := assert.New(t)

	ast.Error(mbrDisk("sda", 10*gib,
		part(1, diskplan.Primary, mib, 5*gib, partid.LinuxFS),
		part(2, diskplan.Primary, 4*gib, 2*gib, partid.LinuxFS)).Validate())

	ast.Error(mbrDisk("sda", 10*gib,
		part(1, diskplan.Primary, mib, 20*gib, partid.LinuxFS)).Validate())

	ast.Error(mbrDisk("sda", 10*gib,
		part(5, diskplan.Logical, 2*mib, gib, partid.LinuxFS)).Validate())

	ast.NoError(mbrDisk("sda", 10*gib,
		part(1, diskplan.Primary, mib, 5*gib, partid.LinuxFS)).Validate())
}

func TestPartitionPath(t *testing.T) {
	ast := assert.New(t)

	ast.Equal("/dev/sda5", diskplan.Disk{Name: "sda", Path: "/dev/sda"}.PartitionPath(5))
	ast.Equal("/dev/nvme0n1p2", diskplan.Disk{Name: "nvme0n1", Path: "/dev/nvme0n1"}.PartitionPath(2))
	ast.Equal("/dev/sdb1", diskplan.Disk{Name: "sdb"}.PartitionPath(1))
}
