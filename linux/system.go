//go:build linux

// Package linux scans the disks, partition tables and volume groups of a
// running Linux system into the diskplan model. Nothing is ever written.
package linux

import (
	"fmt"
	"os"
	"path"
	"syscall"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
	"machinerun.io/diskplan"
)

type linuxSystem struct {
	log logr.Logger
}

// System returns a linux specific implementation of diskplan.System.
func System(log logr.Logger) diskplan.System {
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &linuxSystem{log: log}
}

func (ls *linuxSystem) ScanAllDisks(filter diskplan.DiskFilter) (diskplan.DiskSet, error) {
	var dpaths = []string{}

	names, err := getDiskNames()
	if err != nil {
		return diskplan.DiskSet{}, err
	}

	for _, name := range names {
		dpath := path.Join("/dev", name)

		f, err := os.Open(dpath)
		if err != nil {
			// ENOMEDIUM will occur on a empty sd reader.
			if e, ok := err.(*os.PathError); ok {
				if e.Err == syscall.ENOMEDIUM {
					continue
				}
			}

			ls.log.Info("skipping device", "device", name, "error", err.Error())

			continue
		}

		f.Close()

		dpaths = append(dpaths, dpath)
	}

	return ls.ScanDisks(filter, dpaths...)
}

func (ls *linuxSystem) ScanDisks(filter diskplan.DiskFilter,
	dpaths ...string) (diskplan.DiskSet, error) {
	disks := diskplan.DiskSet{}

	for _, dpath := range dpaths {
		disk, err := ls.ScanDisk(dpath)
		if err != nil {
			return disks, err
		}

		if filter(disk) {
			// Accepted so add to the set
			disks[disk.Name] = disk
		}
	}

	return disks, nil
}

// ScanDisk reads the partition table of a block device or disk image. The
// device is locked shared while it is read.
func (ls *linuxSystem) ScanDisk(devicePath string) (diskplan.Disk, error) {
	var blockdev = true
	var ssize uint = sectorSize512

	name, err := getKnameForBlockDevicePath(devicePath)
	if err != nil {
		name = path.Base(devicePath)
		blockdev = false
	} else {
		bss, err := getLogicalBlockSize(name)
		if err != nil {
			return diskplan.Disk{}, err
		}

		ssize = bss
	}

	disk := diskplan.Disk{
		Name:       name,
		Path:       devicePath,
		SectorSize: ssize,
	}

	fh, err := os.Open(devicePath)
	if err != nil {
		return disk, err
	}
	defer fh.Close()

	if err := unix.Flock(int(fh.Fd()), unix.LOCK_SH); err != nil {
		return disk, fmt.Errorf("failed to lock %s: %s", devicePath, err)
	}

	size, err := getFileSize(fh)
	if err != nil {
		return disk, err
	}

	disk.Size = diskplan.Size(size)

	table, tsize, err := findPartitions(fh)
	if err != nil {
		return disk, fmt.Errorf("failed to read partition table of %s: %s", devicePath, err)
	}

	if table == nil {
		return disk, nil
	}

	if tsize != disk.SectorSize {
		if blockdev {
			return disk, fmt.Errorf(
				"disk %s has sector size %d and partition table sector size %d",
				disk.Path, disk.SectorSize, tsize)
		}

		disk.SectorSize = tsize
	}

	disk.Table = table

	if blockdev {
		ls.readFilesystems(disk)
	}

	ls.log.V(1).Info("scanned disk", "disk", disk.Name, "size", disk.Size.String(),
		"table", string(table.Type), "partitions", len(table.Partitions))

	return disk, nil
}

// readFilesystems fills in filesystem types and labels from udev.
func (ls *linuxSystem) readFilesystems(d diskplan.Disk) {
	for _, n := range d.Table.Partitions.Numbers() {
		p := d.Table.Partitions[n]
		if p.Kind == diskplan.Extended {
			continue
		}

		info, err := GetUdevInfo(getPartKname(d.Name, n))
		if err != nil {
			ls.log.V(1).Info("no udev info", "partition", d.PartitionPath(n), "error", err.Error())
			continue
		}

		p.Filesystem = info.Properties["ID_FS_TYPE"]
		if p.Label == "" {
			p.Label = info.Properties["ID_FS_LABEL"]
		}

		d.Table.Partitions[n] = p
	}
}
