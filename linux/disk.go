package linux

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

const (
	sectorSize512 = 512
	sectorSize4k  = 4096

	// first logical partition number on MBR
	firstLogical = 5

	// bounds the EBR chain walk
	maxLogicals = 128
)

// ErrNoPartitionTable is returned if there is no partition table.
var ErrNoPartitionTable = errors.New("no Partition Table Found")

func readGPTTableSearch(fp io.ReadSeeker, sizes []uint) (gpt.Table, uint, error) {
	const noGptFound = "Bad GPT signature"
	var gptTable gpt.Table
	var err error
	var size uint

	for _, size = range sizes {
		// consider seek failure to be fatal
		if _, err := fp.Seek(int64(size), io.SeekStart); err != nil {
			return gpt.Table{}, size, err
		}

		if gptTable, err = gpt.ReadTable(fp, uint64(size)); err != nil {
			if err.Error() == noGptFound {
				continue
			}

			return gpt.Table{}, size, err
		}

		return gptTable, size, nil
	}

	return gpt.Table{}, size, ErrNoPartitionTable
}

func readGPTTable(fp io.ReadSeeker) (gpt.Table, uint, error) {
	return readGPTTableSearch(fp, []uint{sectorSize512, sectorSize4k})
}

func mbrPartition(num uint, kind diskplan.PartKind, base uint64, p *mbr.MBRPartition) diskplan.Partition {
	start := (base + uint64(p.GetLBAStart())) * sectorSize512

	return diskplan.Partition{
		Number: num,
		Kind:   kind,
		Start:  diskplan.Size(start),
		Last:   diskplan.Size(start + uint64(p.GetLBALen())*sectorSize512 - 1),
		Type:   diskplan.PartType(partid.MBR(byte(p.GetType()))),
	}
}

func readMBRTable(fp io.ReadSeeker) (diskplan.PartitionSet, error) {
	parts := diskplan.PartitionSet{}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return parts, err
	}

	mbrTable, err := mbr.Read(fp)
	if err == mbr.ErrorBadMbrSign {
		return parts, ErrNoPartitionTable
	}

	if err != nil {
		return parts, errors.Wrap(err, "failed to read MBR")
	}

	for i, p := range mbrTable.GetAllPartitions() {
		if p.IsEmpty() {
			continue
		}

		part := mbrPartition(uint(i+1), diskplan.Primary, 0, p)
		if partid.IsExtended(part.Type) {
			part.Kind = diskplan.Extended

			logicals, err := readLogicals(fp, part)
			if err != nil {
				return parts, err
			}

			for _, l := range logicals {
				parts[l.Number] = l
			}
		}

		parts[part.Number] = part
	}

	return parts, nil
}

// readLogicals walks the chain of extended boot records. The first entry of
// each EBR is relative to the EBR itself, the second one points to the next
// EBR relative to the start of the extended partition.
func readLogicals(fp io.ReadSeeker, ext diskplan.Partition) ([]diskplan.Partition, error) {
	parts := []diskplan.Partition{}
	extLBA := uint64(ext.Start) / sectorSize512
	ebr := extLBA
	seen := map[uint64]bool{}

	for num := uint(firstLogical); ; num++ {
		if seen[ebr] || len(parts) >= maxLogicals {
			return parts, errors.Errorf("EBR chain of extended partition %d loops", ext.Number)
		}

		seen[ebr] = true

		if _, err := fp.Seek(int64(ebr*sectorSize512), io.SeekStart); err != nil {
			return parts, err
		}

		table, err := mbr.Read(fp)
		if err != nil {
			return parts, errors.Wrapf(err, "failed to read EBR at sector %d", ebr)
		}

		p := table.GetPartition(1)
		if p.IsEmpty() {
			return parts, nil
		}

		parts = append(parts, mbrPartition(num, diskplan.Logical, ebr, p))

		next := table.GetPartition(2) //nolint:gomnd
		if next.IsEmpty() {
			return parts, nil
		}

		ebr = extLBA + uint64(next.GetLBAStart())
	}
}

// findPartitions reads the partition table of a disk image or device. The
// returned table is nil when the disk has none.
func findPartitions(fp io.ReadSeeker) (*diskplan.PartitionTable, uint, error) {
	gptTable, ssize, err := readGPTTable(fp)
	if err == ErrNoPartitionTable {
		parts, err := readMBRTable(fp)
		if err == ErrNoPartitionTable {
			return nil, sectorSize512, nil
		}

		if err != nil {
			return nil, sectorSize512, err
		}

		table := diskplan.NewPartitionTable(diskplan.MBR)
		table.Partitions = parts

		return table, sectorSize512, nil
	}

	if err != nil {
		return nil, ssize, err
	}

	table := diskplan.NewPartitionTable(diskplan.GPT)
	ssize64 := uint64(ssize)

	for n, p := range gptTable.Partitions {
		if p.IsEmpty() {
			continue
		}

		part := diskplan.Partition{
			Number: uint(n + 1),
			Kind:   diskplan.Primary,
			Start:  diskplan.Size(p.FirstLBA * ssize64),
			Last:   diskplan.Size(p.LastLBA*ssize64 + ssize64 - 1),
			ID:     diskplan.GUID(p.Id),
			Type:   diskplan.PartType(p.Type),
			Label:  p.Name(),
		}
		table.Partitions[part.Number] = part
	}

	return table, ssize, nil
}

func getDiskNames() ([]string, error) {
	realDiskKnameRegex := regexp.MustCompile("^((s|v|xv|h)d[a-z]+|nvme[0-9]+n[0-9]+|mmcblk[0-9]+)$")
	disks := []string{}

	files, err := os.ReadDir("/sys/block")
	if err != nil {
		return []string{}, err
	}

	for _, file := range files {
		if realDiskKnameRegex.MatchString(file.Name()) {
			disks = append(disks, file.Name())
		}
	}

	return disks, nil
}

func getKnameForBlockDevicePath(dev string) (string, error) {
	// given '/dev/sda' (or any valid block device path) return 'sda'
	kname, err := getSysPathForBlockDevicePath(dev)
	if err != nil {
		return "", err
	}

	return path.Base(kname), nil
}

func getSysPathForBlockDevicePath(dev string) (string, error) {
	// Return the path in /sys/class/block/<device> for a given
	// block device kname or path.
	var syspath string
	var sysdir = "/sys/class/block"

	if strings.Contains(dev, "/") {
		// after symlink resolution, devpath = '/dev/sda' or '/dev/sdb1'
		// no longer something like /dev/disk/by-id/foo
		devpath, err := filepath.EvalSymlinks(dev)
		if err != nil {
			return "", err
		}

		syspath = path.Join(sysdir, path.Base(devpath))
	} else {
		// assume this is 'sda', something that would be in /sys/class/block
		syspath = path.Join(sysdir, dev)
	}

	if _, err := os.Stat(syspath); err != nil {
		return "", err
	}

	return syspath, nil
}

func getPartKname(diskName string, num uint) string {
	return diskplan.KernelName(diskplan.Disk{Name: diskName}.PartitionPath(num))
}
