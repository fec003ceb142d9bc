package proposal

import (
	"github.com/samber/lo"
	"machinerun.io/diskplan"
)

// DeleteReason records why a partition was deleted.
type DeleteReason string

const (
	// ReasonSpace - deleted to make room.
	ReasonSpace DeleteReason = "space"

	// ReasonVolumeGroup - member of a volume group that was deleted.
	ReasonVolumeGroup DeleteReason = "volume group"

	// ReasonEmptyExtended - extended partition left without logicals.
	ReasonEmptyExtended DeleteReason = "empty extended"

	// ReasonDeleteAll - deleted by a delete-all setting.
	ReasonDeleteAll DeleteReason = "delete all"
)

// DeletedPartition is an entry of the deletion audit trail.
type DeletedPartition struct {
	Name        string
	Disk        string
	Size        diskplan.Size
	Type        diskplan.PartType
	Label       string
	Filesystem  string
	VolumeGroup string
	Reason      DeleteReason
}

// ResizedPartition records a foreign partition that was shrunk.
type ResizedPartition struct {
	Name    string
	OldSize diskplan.Size
	NewSize diskplan.Size
}

// Result is a successful plan.
type Result struct {
	// Devicegraph is the graph after all resizing and deleting.
	Devicegraph *diskplan.Devicegraph

	// Distribution assigns the volumes to free spaces of Devicegraph.
	Distribution SpaceDistribution

	// DeletedPartitions lists the deleted partitions in order of deletion.
	DeletedPartitions []DeletedPartition

	// ResizedPartitions lists shrunk partitions.
	ResizedPartitions []ResizedPartition

	// LogicalVolumes are the volumes served by the physical volume in
	// Distribution when LVM is used.
	LogicalVolumes []*PlannedVolume
}

// DeletedNames returns the paths of the deleted partitions.
func (r *Result) DeletedNames() []string {
	return lo.Map(r.DeletedPartitions, func(d DeletedPartition, _ int) string { return d.Name })
}

// FreeSize returns the total free space left on the given disks of the
// resulting graph.
func (r *Result) FreeSize(disks ...string) diskplan.Size {
	return diskplan.SumSizes(lo.Map(r.Devicegraph.FreeSpaces(disks...),
		func(f diskplan.FreeSpace, _ int) diskplan.Size { return f.Size() })...)
}
