package proposal

import (
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

// partClass groups partitions by how willingly they are deleted.
type partClass int

const (
	classLinux partClass = iota
	classOther
	classForeign
)

func (c partClass) String() string {
	switch c {
	case classLinux:
		return "linux"
	case classForeign:
		return "foreign"
	}

	return "other"
}

// devSet is a set of devices keyed by kernel name.
type devSet map[string]bool

func newDevSet(devs ...string) devSet {
	s := devSet{}
	s.add(devs...)

	return s
}

func (s devSet) add(devs ...string) {
	for _, d := range devs {
		s[diskplan.KernelName(d)] = true
	}
}

func (s devSet) has(dev string) bool {
	return s[diskplan.KernelName(dev)]
}

// Deletion is a batch of partitions removed together: a partition and
// everything its removal implies.
type Deletion struct {
	Partitions   []DeletedPartition
	VolumeGroups []string
}

// Size returns the combined size of the deleted partitions, not counting
// extended containers.
func (d Deletion) Size() diskplan.Size {
	total := diskplan.Zero
	for _, p := range d.Partitions {
		if p.Reason != ReasonEmptyExtended {
			total = total.Add(p.Size)
		}
	}

	return total
}

func (d Deletion) names() []string {
	return lo.Map(d.Partitions, func(p DeletedPartition, _ int) string { return p.Name })
}

func deletedRecord(g *diskplan.Devicegraph, d diskplan.Disk, p diskplan.Partition, reason DeleteReason) DeletedPartition {
	path := d.PartitionPath(p.Number)
	rec := DeletedPartition{
		Name:       path,
		Disk:       d.Name,
		Size:       p.Size(),
		Type:       p.Type,
		Label:      p.Label,
		Filesystem: p.Filesystem,
		Reason:     reason,
	}

	if vg, ok := g.VolumeGroups.GroupOf(path); ok {
		rec.VolumeGroup = vg.Name
	}

	return rec
}

// ImpliedDeletions returns the batch deleting dev from g requires, without
// touching g. Deleting a volume group member takes the whole group along;
// deleting the last logical partitions of a disk takes the extended one.
// The second return is false when dev must stay: it is kept, it is an
// extended partition still holding logicals, or it belongs to a group that
// is kept in part or reaches beyond the allowed disks.
func ImpliedDeletions(g *diskplan.Devicegraph, dev string, keep, disks []string, reason DeleteReason) (Deletion, bool) {
	return impliedDeletions(g, dev, newDevSet(keep...), disks, reason)
}

func impliedDeletions(g *diskplan.Devicegraph, dev string, keep devSet, disks []string, reason DeleteReason) (Deletion, bool) {
	del := Deletion{}

	disk, part, ok := g.FindPartition(dev)
	if !ok || keep.has(dev) {
		return del, false
	}

	if part.Kind == diskplan.Extended && len(disk.Table.Logicals()) != 0 {
		return del, false
	}

	allowed := newDevSet(disks...)
	del.Partitions = append(del.Partitions, deletedRecord(g, disk, part, reason))
	gone := newDevSet(disk.PartitionPath(part.Number))

	if vg, ok := g.VolumeGroups.GroupOf(dev); ok {
		for _, m := range vg.Members {
			if gone.has(m) {
				continue
			}

			md, mp, found := g.FindPartition(m)
			if !found || keep.has(m) || !allowed.has(md.Name) {
				return Deletion{}, false
			}

			del.Partitions = append(del.Partitions, deletedRecord(g, md, mp, ReasonVolumeGroup))
			gone.add(m)
		}

		del.VolumeGroups = append(del.VolumeGroups, vg.Name)
	}

	touched := lo.Uniq(lo.Map(del.Partitions, func(p DeletedPartition, _ int) string { return p.Disk }))
	for _, dn := range touched {
		d, _ := g.Disk(dn)

		ext, ok := d.Table.Extended()
		if !ok || gone.has(d.PartitionPath(ext.Number)) {
			continue
		}

		logicals := d.Table.Logicals()
		if len(logicals) == 0 {
			continue
		}

		if lo.EveryBy(logicals, func(p diskplan.Partition) bool { return gone.has(d.PartitionPath(p.Number)) }) {
			del.Partitions = append(del.Partitions, deletedRecord(g, d, ext, ReasonEmptyExtended))
		}
	}

	return del, true
}

// DeletionStrategist removes partitions from the candidate disks, one batch
// at a time.
type DeletionStrategist struct {
	graph   *diskplan.Devicegraph
	disks   []string
	keep    devSet
	foreign devSet
	log     logr.Logger
}

// NewDeletionStrategist returns a strategist working on g. Partitions in
// keep are never deleted; foreign lists the partitions of other operating
// systems.
func NewDeletionStrategist(g *diskplan.Devicegraph, disks, keep, foreign []string, log logr.Logger) *DeletionStrategist {
	return &DeletionStrategist{
		graph:   g,
		disks:   disks,
		keep:    newDevSet(keep...),
		foreign: newDevSet(foreign...),
		log:     log,
	}
}

func (s *DeletionStrategist) classify(d diskplan.Disk, p diskplan.Partition) partClass {
	path := d.PartitionPath(p.Number)

	switch {
	case p.Kind == diskplan.Extended:
		return classOther
	case s.foreign.has(path):
		return classForeign
	case partid.IsLinux(p.Type):
		return classLinux
	}

	if _, ok := s.graph.VolumeGroups.GroupOf(path); ok {
		return classLinux
	}

	return classOther
}

// candidates returns the partitions of class c on the disk that may be
// deleted directly, from the end of the disk toward the start.
func (s *DeletionStrategist) candidates(c partClass, disk string) []string {
	d, ok := s.graph.Disk(disk)
	if !ok || d.Table == nil {
		return []string{}
	}

	hasLogicals := len(d.Table.Logicals()) != 0
	parts := lo.Filter(lo.Values(d.Table.Partitions), func(p diskplan.Partition, _ int) bool {
		if p.Kind == diskplan.Extended && hasLogicals {
			return false
		}

		return !s.keep.has(d.PartitionPath(p.Number)) && s.classify(d, p) == c
	})

	sort.Slice(parts, func(i, j int) bool { return parts[i].Start > parts[j].Start })

	return lo.Map(parts, func(p diskplan.Partition, _ int) string { return d.PartitionPath(p.Number) })
}

// Next deletes the next partition of class c, disk by disk, together with
// what it implies. It returns false when nothing of the class is left to
// delete.
func (s *DeletionStrategist) Next(c partClass) (Deletion, bool, error) {
	for _, disk := range s.disks {
		for _, dev := range s.candidates(c, disk) {
			del, ok := impliedDeletions(s.graph, dev, s.keep, s.disks, ReasonSpace)
			if !ok {
				s.log.V(1).Info("partition must stay", "partition", dev, "class", c)
				continue
			}

			return del, true, s.apply(del)
		}
	}

	return Deletion{}, false, nil
}

// DeleteAll deletes every partition of class c on the candidate disks.
func (s *DeletionStrategist) DeleteAll(c partClass) ([]DeletedPartition, error) {
	deleted := []DeletedPartition{}
	skipped := newDevSet()

	for _, disk := range s.disks {
		for {
			devs := lo.Reject(s.candidates(c, disk), func(dev string, _ int) bool { return skipped.has(dev) })
			if len(devs) == 0 {
				break
			}

			del, ok := impliedDeletions(s.graph, devs[0], s.keep, s.disks, ReasonDeleteAll)
			if !ok {
				skipped.add(devs[0])
				continue
			}

			if err := s.apply(del); err != nil {
				return deleted, err
			}

			deleted = append(deleted, del.Partitions...)
		}
	}

	return deleted, nil
}

// apply removes the batch from the graph. Logical partitions go before their
// extended container.
func (s *DeletionStrategist) apply(del Deletion) error {
	for _, p := range del.Partitions {
		if _, err := s.graph.DeletePartition(p.Name); err != nil {
			return errors.Wrapf(err, "failed to delete %s", p.Name)
		}

		s.log.Info("deleted partition", "partition", p.Name, "size", p.Size.String(), "reason", string(p.Reason))
	}

	for _, vg := range del.VolumeGroups {
		if err := s.graph.RemoveVolumeGroup(vg); err != nil {
			return err
		}

		s.log.Info("deleted volume group", "vg", vg, "members", del.names())
	}

	return nil
}
