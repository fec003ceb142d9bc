package diskplan

import (
	"fmt"
	"path"
	"sort"

	"github.com/pkg/errors"
)

// TableType enumerates the partition table formats.
type TableType string

const (
	// TableNone - no partition table.
	TableNone TableType = ""

	// GPT - GUID Partition Table.
	GPT TableType = "gpt"

	// MBR - Master Boot Record (msdos) table.
	MBR TableType = "msdos"
)

const (
	// DefaultGrain is the alignment used when a table does not set one.
	DefaultGrain = Mebibyte

	gptReservedSectors = 33
	gptMaxPartitions   = 128
	mbrPrimarySlots    = 4
	sectorSize512      = 512
)

// PartKind says where a partition lives in the table.
type PartKind string

const (
	// Primary partitions are entries of the main table.
	Primary PartKind = "primary"

	// Extended is the MBR container for logical partitions.
	Extended PartKind = "extended"

	// Logical partitions live inside the extended partition.
	Logical PartKind = "logical"
)

// DiskSet is a map of the kernel device name and the disk.
type DiskSet map[string]Disk

// Names returns the disk names in sorted order.
func (ds DiskSet) Names() []string {
	names := make([]string, 0, len(ds))
	for n := range ds {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Disk is a physical disk.
type Disk struct {
	// Name is the kernel name of the disk ("sda").
	Name string `json:"name"`

	// Path is the device path ("/dev/sda").
	Path string `json:"path"`

	// Size is the size of the disk in bytes.
	Size Size `json:"size"`

	// SectorSize is the logical sector size, 512 when unknown.
	SectorSize uint `json:"sectorSize"`

	// Table is the partition table, nil for a disk without one.
	Table *PartitionTable `json:"table,omitempty"`
}

// PartitionSet is a map of partition number to the partition.
type PartitionSet map[uint]Partition

// Numbers returns the partition numbers in ascending order.
func (ps PartitionSet) Numbers() []uint {
	nums := make([]uint, 0, len(ps))
	for n := range ps {
		nums = append(nums, n)
	}

	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	return nums
}

// PartitionTable is a partition table together with the capabilities of
// this particular instance.
type PartitionTable struct {
	Type TableType `json:"type"`

	// Grain is the alignment for partition starts. Zero means DefaultGrain.
	Grain Size `json:"grain,omitempty"`

	// EndAligned requires partition ends to be aligned to the grain too.
	EndAligned bool `json:"endAligned,omitempty"`

	Partitions PartitionSet `json:"partitions"`
}

// NewPartitionTable returns an empty table of type t with default
// capabilities.
func NewPartitionTable(t TableType) *PartitionTable {
	return &PartitionTable{Type: t, Grain: DefaultGrain, Partitions: PartitionSet{}}
}

// Alignment returns the grain, falling back to DefaultGrain.
func (t *PartitionTable) Alignment() Size {
	if t == nil || t.Grain == 0 {
		return DefaultGrain
	}

	return t.Grain
}

// MaxPartitions is the number of entries the table can hold. For MBR this
// counts the primary slots; logical partitions are not limited.
func (t *PartitionTable) MaxPartitions() int {
	if t != nil && t.Type == MBR {
		return mbrPrimarySlots
	}

	return gptMaxPartitions
}

// Extended returns the extended partition, if there is one.
func (t *PartitionTable) Extended() (Partition, bool) {
	if t == nil {
		return Partition{}, false
	}

	for _, p := range t.Partitions {
		if p.Kind == Extended {
			return p, true
		}
	}

	return Partition{}, false
}

// FreeSlots returns the number of partitions that can still be created
// in the main table.
func (t *PartitionTable) FreeSlots() int {
	used := 0

	if t != nil {
		for _, p := range t.Partitions {
			if p.Kind != Logical {
				used++
			}
		}
	}

	if used >= t.MaxPartitions() {
		return 0
	}

	return t.MaxPartitions() - used
}

// Logicals returns the logical partitions ordered by start.
func (t *PartitionTable) Logicals() []Partition {
	parts := []Partition{}

	if t == nil {
		return parts
	}

	for _, p := range t.Partitions {
		if p.Kind == Logical {
			parts = append(parts, p)
		}
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Start < parts[j].Start })

	return parts
}

func (t *PartitionTable) clone() *PartitionTable {
	if t == nil {
		return nil
	}

	c := *t
	c.Partitions = make(PartitionSet, len(t.Partitions))

	for n, p := range t.Partitions {
		c.Partitions[n] = p
	}

	return &c
}

// Partition is an entry of a partition table.
type Partition struct {
	// Number is the partition number (sda5 is 5).
	Number uint `json:"number"`

	// Kind is primary, extended or logical.
	Kind PartKind `json:"kind,omitempty"`

	// Start is the offset of the first byte.
	Start Size `json:"start"`

	// Last is the offset of the last byte, inclusive.
	Last Size `json:"last"`

	// Type is the partition type, see package partid.
	Type PartType `json:"type"`

	// ID is the GPT partition GUID.
	ID GUID `json:"id"`

	// Label is the filesystem label or GPT partition name.
	Label string `json:"label,omitempty"`

	// Filesystem is the filesystem type found on the partition, if known.
	Filesystem string `json:"filesystem,omitempty"`
}

// Size returns the size of the partition.
func (p Partition) Size() Size {
	return p.Last - p.Start + 1
}

// FreeSpace is an unused span on a disk where partitions can be created.
type FreeSpace struct {
	// Disk is the kernel name of the disk.
	Disk string `json:"disk"`

	Start Size `json:"start"`
	Last  Size `json:"last"`

	// InExtended is set for space inside an extended partition, which can
	// only hold logical partitions.
	InExtended bool `json:"inExtended,omitempty"`
}

// Size returns the size of the free space, which is Last - Start + 1.
func (f FreeSpace) Size() Size {
	return f.Last - f.Start + 1
}

func (f FreeSpace) String() string {
	where := ""
	if f.InExtended {
		where = " (extended)"
	}

	return fmt.Sprintf("%s [%d-%d] %s%s", f.Disk, f.Start, f.Last, f.Size(), where)
}

// PartitionPath returns the device path of partition number n.
func (d Disk) PartitionPath(n uint) string {
	dir := "/dev"
	if d.Path != "" {
		dir = path.Dir(d.Path)
	}

	return path.Join(dir, partitionKname(d.Name, n))
}

// effectiveTable returns the table used for planning. A disk without a table
// is planned as if it had an empty GPT.
func (d Disk) effectiveTable() *PartitionTable {
	if d.Table != nil {
		return d.Table
	}

	return NewPartitionTable(GPT)
}

func (d Disk) sectorSize() Size {
	if d.SectorSize == 0 {
		return sectorSize512
	}

	return Size(d.SectorSize)
}

// usable returns the first and last byte partitions may cover on this disk.
func (d Disk) usable() (Size, Size, bool) {
	t := d.effectiveTable()
	grain := t.Alignment()
	end := d.Size

	if t.Type == GPT {
		end = end.Sub(d.sectorSize() * gptReservedSectors)
	}

	if t.EndAligned {
		end = end.AlignDown(grain)
	}

	if end <= grain {
		return 0, 0, false
	}

	return grain, end - 1, true
}

// UsableSize returns the size of the span partitions can occupy.
func (d Disk) UsableSize() Size {
	first, last, ok := d.usable()
	if !ok {
		return Zero
	}

	return last - first + 1
}

// FreeSpaces returns the free spaces on the disk that can hold at least one
// grain, ordered by start. Free spaces inside an extended partition are
// included with InExtended set; each logical partition is preceded by one
// grain of space for its EBR.
func (d Disk) FreeSpaces() []FreeSpace {
	first, last, ok := d.usable()
	if !ok {
		return []FreeSpace{}
	}

	t := d.effectiveTable()
	grain := t.Alignment()
	used := []span{}
	logical := []span{}

	for _, p := range t.Partitions {
		if p.Kind == Logical {
			logical = append(logical, span{p.Start.Sub(grain), p.Last})
			continue
		}

		used = append(used, span{p.Start, p.Last})
	}

	spaces := d.alignedSpaces(findSpanGaps(used, first, last), grain, t.EndAligned, false)

	if ext, ok := t.Extended(); ok {
		spaces = append(spaces,
			d.alignedSpaces(findSpanGaps(logical, ext.Start, ext.Last), grain, t.EndAligned, true)...)
	}

	sort.Slice(spaces, func(i, j int) bool { return spaces[i].Start < spaces[j].Start })

	return spaces
}

func (d Disk) alignedSpaces(gaps []span, grain Size, endAligned, inExtended bool) []FreeSpace {
	spaces := []FreeSpace{}

	for _, g := range gaps {
		start := g.Start.AlignUp(grain)
		end := g.Last + 1

		if endAligned {
			end = end.AlignDown(grain)
		}

		if end <= start || end-start < grain {
			continue
		}

		spaces = append(spaces, FreeSpace{Disk: d.Name, Start: start, Last: end - 1, InExtended: inExtended})
	}

	return spaces
}

// FreeSize returns the total size of the disk's free spaces.
func (d Disk) FreeSize() Size {
	total := Zero
	for _, f := range d.FreeSpaces() {
		total = total.Add(f.Size())
	}

	return total
}

// Validate checks that partitions lie inside the disk, logical partitions
// inside the extended one, and that nothing overlaps.
func (d Disk) Validate() error {
	if d.Table == nil {
		return nil
	}

	var ext *Partition

	for _, n := range d.Table.Partitions.Numbers() {
		p := d.Table.Partitions[n]

		if p.Number != n {
			return errors.Errorf("%s: partition %d is stored as %d", d.Name, p.Number, n)
		}

		if p.Last < p.Start || p.Last >= d.Size {
			return errors.Errorf("%s: partition %d [%d-%d] outside of disk", d.Name, n, p.Start, p.Last)
		}

		if p.Kind == Extended {
			if d.Table.Type != MBR {
				return errors.Errorf("%s: extended partition %d on %s table", d.Name, n, d.Table.Type)
			}

			if ext != nil {
				return errors.Errorf("%s: more than one extended partition", d.Name)
			}

			e := p
			ext = &e
		}
	}

	primaries := 0

	for _, n := range d.Table.Partitions.Numbers() {
		p := d.Table.Partitions[n]

		if p.Kind == Logical {
			if ext == nil || p.Start < ext.Start || p.Last > ext.Last {
				return errors.Errorf("%s: logical partition %d outside of extended", d.Name, n)
			}
		} else {
			primaries++
		}

		for _, m := range d.Table.Partitions.Numbers() {
			o := d.Table.Partitions[m]
			if m <= n || (p.Kind == Extended) != (o.Kind == Extended) && (p.Kind == Logical || o.Kind == Logical) {
				continue
			}

			if p.Start <= o.Last && o.Start <= p.Last {
				return errors.Errorf("%s: partitions %d and %d overlap", d.Name, n, m)
			}
		}
	}

	if primaries > d.Table.MaxPartitions() {
		return errors.Errorf("%s: %d entries exceed the %s limit of %d",
			d.Name, primaries, d.Table.Type, d.Table.MaxPartitions())
	}

	return nil
}

func (d Disk) String() string {
	nparts := 0
	tt := "none"

	if d.Table != nil {
		nparts = len(d.Table.Partitions)
		tt = string(d.Table.Type)
	}

	return fmt.Sprintf("%s (%s) Size=%s Table=%s NumParts=%d Free=%s SectorSize=%d",
		d.Name, d.Path, d.Size, tt, nparts, d.FreeSize(), d.SectorSize)
}
