package linux

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
)

var (
	ntfsDeviceSize = regexp.MustCompile(`^Current device size: ([0-9]+) bytes`)
	ntfsMinSize    = regexp.MustCompile(`^You might resize at ([0-9]+) bytes`)
)

// NTFSProbe measures how far an NTFS filesystem can be shrunk with
// ntfsresize. It is meant as the probe of analyzer.NewByType.
func NTFSProbe(dev string) (analyzer.ResizeInfo, error) {
	out, stderr, rc := runCommandWithOutputErrorRc(
		"ntfsresize", "--info", "--force", "--no-progress-bar", dev)
	if rc != 0 {
		return analyzer.ResizeInfo{},
			fmt.Errorf("failed ntfsresize --info %s [%d]: %s", dev, rc, stderr)
	}

	return parseNtfsresizeInfo(out)
}

// parseNtfsresizeInfo reads the output of ntfsresize --info. A volume
// without a suggested size cannot be shrunk.
func parseNtfsresizeInfo(out []byte) (analyzer.ResizeInfo, error) {
	info := analyzer.ResizeInfo{}
	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		line := scanner.Bytes()

		if m := ntfsDeviceSize.FindSubmatch(line); m != nil {
			size, err := strconv.ParseUint(string(m[1]), 10, 64)
			if err != nil {
				return info, fmt.Errorf("bad device size %q: %s", m[1], err)
			}

			info.MaxSize = diskplan.Size(size)
		}

		if m := ntfsMinSize.FindSubmatch(line); m != nil {
			size, err := strconv.ParseUint(string(m[1]), 10, 64)
			if err != nil {
				return info, fmt.Errorf("bad minimum size %q: %s", m[1], err)
			}

			info.MinSize = diskplan.Size(size)
			info.Resizable = true
		}
	}

	if err := scanner.Err(); err != nil {
		return info, err
	}

	if info.MaxSize == 0 {
		return info, fmt.Errorf("no device size in ntfsresize output")
	}

	if !info.Resizable {
		info.MinSize = info.MaxSize
	}

	return info, nil
}
