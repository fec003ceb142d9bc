package linux

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// UdevInfo captures the udev information about a block device.
type UdevInfo struct {
	// Name of the block device, e.g. sda1.
	Name string `json:"name"`

	// SysPath is the /sys path of the device.
	SysPath string `json:"sysPath"`

	// Symlinks for the block device.
	Symlinks []string `json:"symLinks"`

	// Properties are key/value pairs exported by udev.
	Properties map[string]string `json:"properties"`
}

// GetUdevInfo return a UdevInfo for the device with kernel name kname.
func GetUdevInfo(kname string) (UdevInfo, error) {
	out, stderr, rc := runCommandWithOutputErrorRc(
		"udevadm", "info", "--query=all", "--export", "--name="+kname)

	info := UdevInfo{Name: kname}

	if rc != 0 {
		return info,
			fmt.Errorf("error querying kname '%s' [%d]: %s", kname, rc, stderr)
	}

	return info, parseUdevInfo(out, &info)
}

func parseUdevInfo(out []byte, info *UdevInfo) error {
	var toks [][]byte
	var payload, s string
	var err error

	if info.Properties == nil {
		info.Properties = map[string]string{}
	}

	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		toks = bytes.SplitN(line, []byte(": "), 2) //nolint:gomnd
		if len(toks) != 2 {                        //nolint:gomnd
			return fmt.Errorf("error parsing line: %q", line)
		}

		payload = string(toks[1])

		switch toks[0][0] {
		case 'P':
			info.SysPath = payload
		case 'N':
			info.Name = payload
		case 'S':
			info.Symlinks = append(info.Symlinks, strings.Split(payload, " ")...)
		case 'E':
			kv := strings.SplitN(payload, "=", 2) //nolint:gomnd
			// use of Unquote is to decode \x20, \x2f and friends.
			// example: ID_MODEL_ENC=Integrated\x20Camera
			// and values often have trailing whitespace.
			s, err = strconv.Unquote("\"" + kv[1] + "\"")
			if err != nil {
				return fmt.Errorf("failed to unquote %#v: %s", kv[1], err)
			}

			info.Properties[kv[0]] = strings.TrimSpace(s)
		case 'M', 'L', 'I', 'Q', 'V', 'D':
			// minor, link priority, ids and driver are of no interest
		default:
			return fmt.Errorf("error parsing line: %q", line)
		}
	}

	return nil
}

func getCommandErrorRCDefault(err error, rcError int) int {
	if err == nil {
		return 0
	}

	exitError, ok := err.(*exec.ExitError)
	if ok {
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}

	return rcError
}

func getCommandErrorRC(err error) int {
	return getCommandErrorRCDefault(err, 127) //nolint:gomnd
}

func runCommandWithOutputErrorRc(args ...string) ([]byte, []byte, int) {
	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	return stdout.Bytes(), stderr.Bytes(), getCommandErrorRC(err)
}

func getLogicalBlockSize(kname string) (uint, error) {
	p := path.Join("/sys/block", kname, "queue/logical_block_size")

	content, err := os.ReadFile(p)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read block size for '%s'", kname)
	}

	d := strings.TrimSpace(string(content))

	v, err := strconv.Atoi(d)
	if err != nil {
		return 0,
			errors.Wrapf(err,
				"getLogicalBlockSize(%s): failed to convert '%s' to int", kname, d)
	}

	return uint(v), nil
}

func getFileSize(file io.Seeker) (uint64, error) {
	var err error
	var cur, pos int64

	// read the current position so we can set it back before return
	if cur, err = file.Seek(0, io.SeekCurrent); err != nil {
		return 0, err
	}

	if pos, err = file.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}

	if _, err = file.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}

	return uint64(pos), nil
}
