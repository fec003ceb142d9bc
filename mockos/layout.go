package mockos

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
)

// Layout describes a machine: its disks with their partitions, the volume
// groups on them and the foreign partitions a disk analyzer would report.
//
// Partitions are placed in number order when they have no explicit start:
// primary and extended partitions one after the other from the first grain,
// logical partitions one after the other inside the extended partition, each
// behind one grain for its EBR. An "unlimited" size fills up to the end of
// the disk or of the extended partition.
type Layout struct {
	Disks   []DiskLayout                   `json:"disks"`
	VGs     []VGLayout                     `json:"vgs"`
	Foreign map[string]analyzer.ResizeInfo `json:"foreign"`
}

// DiskLayout is a disk of a Layout.
type DiskLayout struct {
	Name       string             `json:"name"`
	Size       diskplan.Size      `json:"size"`
	SectorSize uint               `json:"sectorSize"`
	Table      diskplan.TableType `json:"table"`
	Grain      diskplan.Size      `json:"grain"`
	EndAligned bool               `json:"endAligned"`
	Partitions []PartLayout       `json:"partitions"`
}

// PartLayout is a partition of a DiskLayout.
type PartLayout struct {
	Number     uint              `json:"number"`
	Kind       diskplan.PartKind `json:"kind"`
	Start      diskplan.Size     `json:"start"`
	Size       diskplan.Size     `json:"size"`
	Type       diskplan.PartType `json:"type"`
	Label      string            `json:"label"`
	Filesystem string            `json:"filesystem"`
}

// VGLayout is a volume group of a Layout.
type VGLayout struct {
	Name    string        `json:"name"`
	Free    diskplan.Size `json:"free"`
	Members []string      `json:"members"`
}

// Load reads a layout from a JSON file.
func Load(file string) (*Layout, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse reads a layout from JSON.
func Parse(data []byte) (*Layout, error) {
	l := &Layout{}

	if err := json.Unmarshal(data, l); err != nil {
		return nil, err
	}

	return l, nil
}

// System returns a mock system with the layout's disks and volume groups.
func (l *Layout) System() (diskplan.System, error) {
	disks := diskplan.DiskSet{}

	for _, dl := range l.Disks {
		d, err := dl.disk()
		if err != nil {
			return nil, err
		}

		if _, ok := disks[d.Name]; ok {
			return nil, fmt.Errorf("disk %s defined twice", d.Name)
		}

		disks[d.Name] = d
	}

	vgs, err := l.volumeGroups(disks)
	if err != nil {
		return nil, err
	}

	return &mockSys{Disks: disks, VGs: vgs}, nil
}

// Graph probes the layout's system.
func (l *Layout) Graph() (*diskplan.Devicegraph, error) {
	sys, err := l.System()
	if err != nil {
		return nil, err
	}

	return diskplan.Probe(sys)
}

// Analyzer returns a disk analyzer reporting the layout's foreign
// partitions.
func (l *Layout) Analyzer() analyzer.DiskAnalyzer {
	return analyzer.NewStatic(l.Foreign)
}

func (dl DiskLayout) disk() (diskplan.Disk, error) {
	d := diskplan.Disk{
		Name:       dl.Name,
		Path:       path.Join("/dev", dl.Name),
		Size:       dl.Size,
		SectorSize: dl.SectorSize,
	}

	if d.SectorSize == 0 {
		d.SectorSize = 512
	}

	if dl.Table == diskplan.TableNone {
		if len(dl.Partitions) != 0 {
			return d, fmt.Errorf("%s: partitions without a partition table", dl.Name)
		}

		return d, nil
	}

	t := diskplan.NewPartitionTable(dl.Table)
	t.EndAligned = dl.EndAligned

	if dl.Grain != 0 {
		t.Grain = dl.Grain
	}

	d.Table = t

	if err := dl.place(d); err != nil {
		return d, err
	}

	return d, d.Validate()
}

// end returns the first byte behind the space partitions may use.
func (dl DiskLayout) end(d diskplan.Disk) diskplan.Size {
	return d.Table.Alignment() + d.UsableSize()
}

func (dl DiskLayout) place(d diskplan.Disk) error {
	grain := d.Table.Alignment()
	next := grain

	var ext *diskplan.Partition

	nextLogical := diskplan.Zero

	for _, pl := range dl.Partitions {
		if _, ok := d.Table.Partitions[pl.Number]; ok || pl.Number == 0 {
			return fmt.Errorf("%s: bad or duplicate partition number %d", dl.Name, pl.Number)
		}

		kind := pl.Kind
		if kind == "" {
			kind = diskplan.Primary
		}

		start, limit := next, dl.end(d)

		if kind == diskplan.Logical {
			if ext == nil {
				return fmt.Errorf("%s: logical partition %d without extended", dl.Name, pl.Number)
			}

			start, limit = nextLogical+grain, ext.Last+1
		}

		if pl.Start != 0 {
			start = pl.Start
		}

		size := pl.Size
		if size.IsUnlimited() {
			size = limit.Sub(start)
		}

		if size == 0 {
			return fmt.Errorf("%s: partition %d has no room", dl.Name, pl.Number)
		}

		p := diskplan.Partition{
			Number:     pl.Number,
			Kind:       kind,
			Start:      start,
			Last:       start + size - 1,
			Type:       pl.Type,
			ID:         diskplan.GenGUID(),
			Label:      pl.Label,
			Filesystem: pl.Filesystem,
		}

		switch kind {
		case diskplan.Logical:
			nextLogical = p.Last + 1
		case diskplan.Extended:
			e := p
			ext = &e
			nextLogical = p.Start
			next = p.Last + 1
		default:
			next = p.Last + 1
		}

		d.Table.Partitions[p.Number] = p
	}

	return nil
}
