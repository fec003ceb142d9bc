package diskplan

import (
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a device is not in the graph.
var ErrNotFound = errors.New("device not found")

// Devicegraph is a snapshot of the disks, their partitions and the volume
// groups built on them. Planning works on clones; the snapshot a caller
// passes in is never modified.
type Devicegraph struct {
	Disks        DiskSet `json:"disks"`
	VolumeGroups VGSet   `json:"vgs"`
}

// NewDevicegraph returns an empty graph.
func NewDevicegraph() *Devicegraph {
	return &Devicegraph{Disks: DiskSet{}, VolumeGroups: VGSet{}}
}

// Clone returns a deep copy of the graph.
func (g *Devicegraph) Clone() *Devicegraph {
	c := &Devicegraph{
		Disks:        make(DiskSet, len(g.Disks)),
		VolumeGroups: g.VolumeGroups.clone(),
	}

	for n, d := range g.Disks {
		d.Table = d.Table.clone()
		c.Disks[n] = d
	}

	return c
}

// Disk finds a disk by kernel name or path.
func (g *Devicegraph) Disk(nameOrPath string) (Disk, bool) {
	if d, ok := g.Disks[KernelName(nameOrPath)]; ok {
		return d, true
	}

	for _, n := range g.Disks.Names() {
		if g.Disks[n].Path == nameOrPath {
			return g.Disks[n], true
		}
	}

	return Disk{}, false
}

// FindPartition finds a partition by kernel name ("sda5") or path
// ("/dev/sda5") and returns it with its disk.
func (g *Devicegraph) FindPartition(dev string) (Disk, Partition, bool) {
	for _, n := range g.Disks.Names() {
		d := g.Disks[n]
		if d.Table == nil {
			continue
		}

		for num, p := range d.Table.Partitions {
			if partitionKname(d.Name, num) == KernelName(dev) || d.PartitionPath(num) == dev {
				return d, p, true
			}
		}
	}

	return Disk{}, Partition{}, false
}

// Partitions returns the paths of all partitions in disk then number order.
func (g *Devicegraph) Partitions() []string {
	paths := []string{}

	for _, n := range g.Disks.Names() {
		d := g.Disks[n]
		if d.Table == nil {
			continue
		}

		for _, num := range d.Table.Partitions.Numbers() {
			paths = append(paths, d.PartitionPath(num))
		}
	}

	return paths
}

// FreeSpaces returns the free spaces of the named disks, in the given disk
// order. With no names all disks are used in name order.
func (g *Devicegraph) FreeSpaces(disks ...string) []FreeSpace {
	if len(disks) == 0 {
		disks = g.Disks.Names()
	}

	spaces := []FreeSpace{}

	for _, n := range disks {
		if d, ok := g.Disk(n); ok {
			spaces = append(spaces, d.FreeSpaces()...)
		}
	}

	return spaces
}

// DeletePartition removes a partition. An extended partition can only be
// removed once it holds no logical partitions.
func (g *Devicegraph) DeletePartition(dev string) (Partition, error) {
	d, p, ok := g.FindPartition(dev)
	if !ok {
		return Partition{}, errors.Wrap(ErrNotFound, dev)
	}

	if p.Kind == Extended && len(d.Table.Logicals()) != 0 {
		return Partition{}, errors.Errorf("%s: extended partition still holds logical partitions", dev)
	}

	delete(d.Table.Partitions, p.Number)

	return p, nil
}

// ResizePartition shrinks a partition to newSize, keeping its start.
func (g *Devicegraph) ResizePartition(dev string, newSize Size) error {
	d, p, ok := g.FindPartition(dev)
	if !ok {
		return errors.Wrap(ErrNotFound, dev)
	}

	if p.Kind == Extended {
		return errors.Errorf("%s: extended partitions are not resized", dev)
	}

	if newSize == 0 || newSize > p.Size() {
		return errors.Errorf("%s: cannot resize from %s to %s", dev, p.Size(), newSize)
	}

	p.Last = p.Start + newSize - 1
	d.Table.Partitions[p.Number] = p

	return nil
}

// RemoveVolumeGroup drops a volume group record. Its member partitions are
// left alone.
func (g *Devicegraph) RemoveVolumeGroup(name string) error {
	if _, ok := g.VolumeGroups[name]; !ok {
		return errors.Wrapf(ErrNotFound, "volume group %s", name)
	}

	delete(g.VolumeGroups, name)

	return nil
}

// Validate checks every disk. Volume groups may have members outside the
// graph.
func (g *Devicegraph) Validate() error {
	for _, n := range g.Disks.Names() {
		if err := g.Disks[n].Validate(); err != nil {
			return err
		}
	}

	return nil
}
