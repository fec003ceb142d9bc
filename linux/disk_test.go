package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

func TestFindPartitionsGPT(t *testing.T) {
	assert := assert.New(t)

	fsize := 100 * mib
	fp := openImage(t, genTempImage(t, fsize))

	part1 := diskplan.Partition{
		Number: 1,
		Kind:   diskplan.Primary,
		Start:  diskplan.Size(mib),
		Last:   diskplan.Size(20*mib - 1),
		Type:   diskplan.PartType(partid.LinuxFS),
		ID:     diskplan.GenGUID(),
		Label:  "mytest 1",
	}

	part3 := diskplan.Partition{
		Number: 3,
		Kind:   diskplan.Primary,
		Start:  diskplan.Size(40 * mib),
		Last:   diskplan.Size(60*mib - 1),
		Type:   diskplan.PartType(partid.LinuxLVM),
		ID:     diskplan.GenGUID(),
		Label:  "mytest 3",
	}

	writeGPTImage(t, fp, fsize, part1, part3)

	table, ssize, err := findPartitions(fp)
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(uint(sectorSize512), ssize)
	assert.Equal(diskplan.GPT, table.Type)
	assert.Equal([]uint{1, 3}, table.Partitions.Numbers())
	assert.Equal(part1, table.Partitions[1])
	assert.Equal(part3, table.Partitions[3])

	disk := diskplan.Disk{Name: "disk", Size: diskplan.Size(fsize), SectorSize: sectorSize512, Table: table}
	assert.NoError(disk.Validate())
	assert.Len(disk.FreeSpaces(), 2)
}

func TestFindPartitionsMBR(t *testing.T) {
	assert := assert.New(t)

	fsize := 100 * mib
	fp := openImage(t, genTempImage(t, fsize))
	ext := sectors(30 * mib)

	mustWrite(t, writeMBRSector(fp, 0,
		mbrEntry{num: 1, ptype: partid.MBRNTFS, start: sectors(mib), len: sectors(29 * mib)},
		mbrEntry{num: 2, ptype: partid.MBRExtendLBA, start: ext, len: sectors(70 * mib)}))

	// logical 5 at 31MiB, the next EBR at 52MiB
	mustWrite(t, writeMBRSector(fp, ext,
		mbrEntry{num: 1, ptype: partid.MBRLinux, start: sectors(mib), len: sectors(20 * mib)},
		mbrEntry{num: 2, ptype: partid.MBRExtended, start: sectors(22 * mib), len: sectors(31 * mib)}))

	// logical 6 at 53MiB
	mustWrite(t, writeMBRSector(fp, ext+sectors(22*mib),
		mbrEntry{num: 1, ptype: partid.MBRLinuxSwap, start: sectors(mib), len: sectors(30 * mib)}))

	table, ssize, err := findPartitions(fp)
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(uint(sectorSize512), ssize)
	assert.Equal(diskplan.MBR, table.Type)
	assert.Equal([]uint{1, 2, 5, 6}, table.Partitions.Numbers())

	assert.Equal(diskplan.Partition{
		Number: 1,
		Kind:   diskplan.Primary,
		Start:  diskplan.Size(mib),
		Last:   diskplan.Size(30*mib - 1),
		Type:   diskplan.PartType(partid.MBR(partid.MBRNTFS)),
	}, table.Partitions[1])

	assert.Equal(diskplan.Extended, table.Partitions[2].Kind)

	assert.Equal(diskplan.Partition{
		Number: 5,
		Kind:   diskplan.Logical,
		Start:  diskplan.Size(31 * mib),
		Last:   diskplan.Size(51*mib - 1),
		Type:   diskplan.PartType(partid.MBR(partid.MBRLinux)),
	}, table.Partitions[5])

	assert.Equal(diskplan.Size(53*mib), table.Partitions[6].Start)
	assert.Equal(diskplan.Size(30*mib), table.Partitions[6].Size())
	assert.Equal(diskplan.Logical, table.Partitions[6].Kind)

	disk := diskplan.Disk{Name: "disk", Size: diskplan.Size(fsize), SectorSize: sectorSize512, Table: table}
	assert.NoError(disk.Validate())
	assert.Len(disk.Table.Logicals(), 2)
}

func TestFindPartitionsEBRLoop(t *testing.T) {
	fsize := 100 * mib
	fp := openImage(t, genTempImage(t, fsize))
	ext := sectors(30 * mib)

	mustWrite(t, writeMBRSector(fp, 0,
		mbrEntry{num: 2, ptype: partid.MBRExtendLBA, start: ext, len: sectors(70 * mib)}))

	// the second entry points back at this EBR
	mustWrite(t, writeMBRSector(fp, ext,
		mbrEntry{num: 1, ptype: partid.MBRLinux, start: sectors(mib), len: sectors(20 * mib)},
		mbrEntry{num: 2, ptype: partid.MBRExtended, start: 0, len: 1}))

	_, _, err := findPartitions(fp)
	assert.Error(t, err)
}

func TestFindPartitionsNone(t *testing.T) {
	assert := assert.New(t)

	fp := openImage(t, genTempImage(t, 10*mib))

	table, ssize, err := findPartitions(fp)
	assert.NoError(err)
	assert.Nil(table)
	assert.Equal(uint(sectorSize512), ssize)
}
