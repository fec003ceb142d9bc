package linux

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"machinerun.io/diskplan"
)

func readReportSize(s string) (diskplan.Size, error) {
	// lvm --report-format=json --unit=B puts unit 'B' at end of all sizes.
	s = strings.TrimSuffix(s, "B")

	num, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert lvm size %q: %s", s, err)
	}

	return diskplan.Size(num), nil
}

type lvmPVData struct {
	Path   string
	Size   diskplan.Size
	VGName string
	UUID   string
	Free   diskplan.Size
	raw    map[string]string
}

func (d *lvmPVData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	err := json.Unmarshal(b, &m)

	if err != nil {
		return err
	}

	d.raw = m
	d.Path = m["pv_name"]
	d.VGName = m["vg_name"]
	d.UUID = m["pv_uuid"]

	if d.Size, err = readReportSize(m["pv_size"]); err != nil {
		return err
	}

	d.Free, err = readReportSize(m["pv_free"])

	return err
}

func parsePvReport(report []byte) ([]lvmPVData, error) {
	var d map[string]([]map[string]([]lvmPVData))
	err := json.Unmarshal(report, &d)

	if err != nil {
		return []lvmPVData{}, err
	}

	if len(d["report"]) == 0 {
		return []lvmPVData{}, nil
	}

	return d["report"][0]["pv"], nil
}

func getPvReport(args ...string) ([]lvmPVData, error) {
	cmd := []string{"lvm", "pvs", "--options=pv_all,vg_name", "--report-format=json", "--unit=B"}
	cmd = append(cmd, args...)
	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)

	if rc != 0 {
		return []lvmPVData{},
			fmt.Errorf("failed lvm pvs [%d]: %s\n%s", rc, out, stderr)
	}

	return parsePvReport(out)
}

type lvmVGData struct {
	Name string
	Size diskplan.Size
	UUID string
	Free diskplan.Size
	raw  map[string]string
}

func (d *lvmVGData) UnmarshalJSON(b []byte) error {
	var m map[string]string
	err := json.Unmarshal(b, &m)

	if err != nil {
		return err
	}

	d.raw = m
	d.Name = m["vg_name"]
	d.UUID = m["vg_uuid"]

	if d.Size, err = readReportSize(m["vg_size"]); err != nil {
		return err
	}

	d.Free, err = readReportSize(m["vg_free"])

	return err
}

func parseVgReport(report []byte) ([]lvmVGData, error) {
	var d map[string]([]map[string]([]lvmVGData))
	err := json.Unmarshal(report, &d)

	if err != nil {
		return []lvmVGData{}, err
	}

	if len(d["report"]) == 0 {
		return []lvmVGData{}, nil
	}

	return d["report"][0]["vg"], nil
}

func getVgReport(args ...string) ([]lvmVGData, error) {
	cmd := []string{"lvm", "vgs", "--options=vg_all", "--report-format=json", "--unit=B"}
	cmd = append(cmd, args...)
	out, stderr, rc := runCommandWithOutputErrorRc(cmd...)

	if rc != 0 {
		return []lvmVGData{},
			fmt.Errorf("failed lvm vgs [%d]: %s\n%s", rc, out, stderr)
	}

	return parseVgReport(out)
}
