// Package proposal plans how to make room for a set of volumes on the disks
// of a Devicegraph: which foreign partitions to shrink, which partitions to
// delete and which free space each volume goes to.
package proposal

import (
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
)

// SpaceMaker finds room for planned volumes on a device graph. The graph
// it is created with is never modified.
type SpaceMaker struct {
	graph    *diskplan.Devicegraph
	analyzer analyzer.DiskAnalyzer
	settings Settings
	log      logr.Logger
}

// NewSpaceMaker returns a SpaceMaker for g. A nil analyzer reports no
// foreign partitions.
func NewSpaceMaker(g *diskplan.Devicegraph, a analyzer.DiskAnalyzer, s Settings, log logr.Logger) *SpaceMaker {
	if a == nil {
		a = analyzer.NewStatic(nil)
	}

	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &SpaceMaker{graph: g, analyzer: a, settings: s, log: log}
}

// attempt is one planning run over a private clone of the graph.
type attempt struct {
	*SpaceMaker

	graph    *diskplan.Devicegraph
	disks    []string
	keep     []string
	foreign  []string
	pinned   map[*PlannedVolume]string
	deleted  []DeletedPartition
	resized  []ResizedPartition
	lvs      []*PlannedVolume
	demands  []demand
	restrict map[string][]demand
}

// ProvideSpace resizes and deletes partitions until all volumes that are
// not reused fit into free space, then returns the resulting graph and
// where each volume goes. Errors satisfying errors.Is(err, ErrProposal)
// mean the volumes do not fit; others mean the input is inconsistent.
func (sm *SpaceMaker) ProvideSpace(volumes []*PlannedVolume) (*Result, error) {
	a := &attempt{
		SpaceMaker: sm,
		graph:      sm.graph.Clone(),
		pinned:     map[*PlannedVolume]string{},
		restrict:   map[string][]demand{},
		deleted:    []DeletedPartition{},
		resized:    []ResizedPartition{},
	}

	for _, v := range volumes {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	if err := a.resolveDisks(); err != nil {
		return nil, err
	}

	if err := a.resolveKeep(volumes); err != nil {
		return nil, err
	}

	a.pinVolumes(volumes)
	a.buildDemands(volumes)
	a.foreign = sm.analyzer.ForeignPartitions()

	if err := a.affinityPhase(); err != nil {
		return nil, err
	}

	dist, err := a.makeSpace(a.disks, a.demands)
	if err != nil {
		return nil, err
	}

	// a partition shrunk first and deleted later only counts as deleted
	gone := newDevSet(lo.Map(a.deleted, func(d DeletedPartition, _ int) string { return d.Name })...)
	resized := lo.Reject(a.resized, func(r ResizedPartition, _ int) bool { return gone.has(r.Name) })

	return &Result{
		Devicegraph:       a.graph,
		Distribution:      dist,
		DeletedPartitions: a.deleted,
		ResizedPartitions: resized,
		LogicalVolumes:    a.lvs,
	}, nil
}

// resolveDisks turns the candidate devices into disk names.
func (a *attempt) resolveDisks() error {
	if len(a.settings.CandidateDevices) == 0 {
		a.disks = a.graph.Disks.Names()
		return nil
	}

	for _, dev := range a.settings.CandidateDevices {
		d, ok := a.graph.Disk(dev)
		if !ok {
			return errors.Wrapf(ErrInvariant, "candidate device %s is not a disk", dev)
		}

		if !lo.Contains(a.disks, d.Name) {
			a.disks = append(a.disks, d.Name)
		}
	}

	return nil
}

// resolveKeep collects the partitions that must survive: reuse targets and
// the members of the reused volume group.
func (a *attempt) resolveKeep(volumes []*PlannedVolume) error {
	a.keep = []string{}

	for _, v := range volumes {
		if !v.IsReused() {
			continue
		}

		d, p, ok := a.graph.FindPartition(v.Reuse)
		if !ok {
			return errors.Wrapf(ErrInvariant, "reused partition %s does not exist", v.Reuse)
		}

		a.keep = append(a.keep, d.PartitionPath(p.Number))
	}

	helper := NewLvmHelper(a.graph.VolumeGroups, a.settings.ReuseVolumeGroup)

	members, err := helper.PartitionsInReusedVG(a.graph)
	if err != nil {
		return err
	}

	for _, m := range members {
		d, p, _ := a.graph.FindPartition(m)
		a.keep = append(a.keep, d.PartitionPath(p.Number))
	}

	a.keep = lo.Uniq(a.keep)

	return nil
}

// pinVolumes records the disk each restricted volume must go to. The root
// device setting pins "/" unless it names a disk itself.
func (a *attempt) pinVolumes(volumes []*PlannedVolume) {
	for _, v := range volumes {
		if v.IsReused() {
			continue
		}

		disk, ok := v.RestrictedTo()
		if !ok && v.MountPoint == "/" && a.settings.RootDevice != "" {
			disk, ok = a.settings.RootDevice, true
		}

		if !ok {
			continue
		}

		if d, found := a.graph.Disk(disk); found {
			disk = d.Name
		}

		a.pinned[v] = disk
	}
}

// buildDemands turns the volumes that are not reused into space demands.
// With LVM the volumes that can live on a logical volume share one
// physical volume.
func (a *attempt) buildDemands(volumes []*PlannedVolume) {
	t := a.settings.Target
	sizeable := lo.Filter(volumes, func(v *PlannedVolume, _ int) bool { return !v.IsReused() })

	if a.settings.UseLVM {
		a.lvs = lo.Filter(sizeable, func(v *PlannedVolume, _ int) bool {
			_, pinned := a.pinned[v]
			return v.CanLiveOnLogicalVolume && !pinned
		})

		sizeable = lo.Without(sizeable, a.lvs...)

		if len(a.lvs) != 0 {
			helper := NewLvmHelper(a.graph.VolumeGroups, a.settings.ReuseVolumeGroup)
			if pv := helper.PhysicalVolumeDemand(a.lvs, t); pv.MinSize != 0 {
				sizeable = append(sizeable, pv)
			}
		}
	}

	for i, v := range sizeable {
		d := demand{vol: v, size: v.TargetSize(t), disk: a.pinned[v], index: i}
		a.demands = append(a.demands, d)

		if d.disk != "" {
			a.restrict[d.disk] = append(a.restrict[d.disk], d)
		}
	}
}

// affinityPhase makes room for the restricted volumes on their own disks
// first. A disk that cannot hold them fails the whole proposal.
func (a *attempt) affinityPhase() error {
	others := lo.Without(lo.Keys(a.restrict), a.disks...)
	sort.Strings(others)

	order := append(append([]string{}, a.disks...), others...)

	for _, name := range order {
		demands, ok := a.restrict[name]
		if !ok {
			continue
		}

		vols := lo.Map(demands, func(d demand, _ int) *PlannedVolume { return d.vol })

		d, ok := a.graph.Disk(name)
		if !ok {
			return &AffinityError{Disk: name, Volumes: vols, Reason: "disk not found"}
		}

		if !lo.Contains(a.disks, d.Name) {
			return &AffinityError{Disk: name, Volumes: vols, Reason: "disk is not a candidate"}
		}

		if need, room := totalNeed(demands), a.capacity(d); need > room {
			return &AffinityError{
				Disk:    name,
				Volumes: vols,
				Reason:  "disk too small: need " + need.String() + ", at most " + room.String() + " can be freed",
			}
		}

		if _, err := a.makeSpace([]string{d.Name}, demands); err != nil {
			var nds *NoDiskSpaceError
			if errors.As(err, &nds) {
				return &AffinityError{Disk: name, Volumes: vols, Reason: "not enough space", Cause: err}
			}

			return err
		}
	}

	return nil
}

// capacity is the usable size of the disk minus the partitions that have to
// stay on it.
func (a *attempt) capacity(d diskplan.Disk) diskplan.Size {
	room := d.UsableSize()
	if d.Table == nil {
		return room
	}

	keep := newDevSet(a.keep...)
	for _, n := range d.Table.Partitions.Numbers() {
		if keep.has(d.PartitionPath(n)) {
			room = room.Sub(d.Table.Partitions[n].Size())
		}
	}

	return room
}

// makeSpace runs the resize and delete loop on the disks in scope until the
// demands fit.
func (a *attempt) makeSpace(scope []string, demands []demand) (SpaceDistribution, error) {
	strategist := NewDeletionStrategist(a.graph, scope, a.keep, a.foreign, a.log)
	resizer := NewForeignResizer(a.graph, a.analyzer, scope, a.keep, a.log)

	for _, c := range []partClass{classLinux, classOther, classForeign} {
		if a.settings.deleteMode(c) != DeleteAll {
			continue
		}

		deleted, err := strategist.DeleteAll(c)
		a.deleted = append(a.deleted, deleted...)

		if err != nil {
			return SpaceDistribution{}, err
		}
	}

	for {
		dist, unplaced, ok := distribute(a.graph, scope, demands, a.log)
		if ok {
			return dist, nil
		}

		more, err := a.nextAction(strategist, resizer, scope, demands)
		if err != nil {
			return SpaceDistribution{}, err
		}

		if !more {
			return SpaceDistribution{}, &NoDiskSpaceError{
				Volumes: lo.Map(unplaced, func(d demand, _ int) *PlannedVolume { return d.vol }),
				Disks:   scope,
				Missing: totalNeed(demands).Sub(a.freeSize(scope)),
			}
		}
	}
}

// nextAction frees more space: Linux partitions go first, then foreign
// partitions are shrunk, then other partitions and at last foreign ones are
// deleted. It returns false when nothing is left to do.
func (a *attempt) nextAction(s *DeletionStrategist, r *ForeignResizer, scope []string, demands []demand) (bool, error) {
	if ok, err := a.deleteNext(s, classLinux); ok || err != nil {
		return ok, err
	}

	if !a.settings.NoForeignResize {
		rp, ok, err := r.ShrinkToFit(func(g *diskplan.Devicegraph) bool {
			_, _, fits := distribute(g, scope, demands, a.log)
			return fits
		})
		if err != nil {
			return false, err
		}

		if ok {
			a.recordResize(rp)
			return true, nil
		}
	}

	if ok, err := a.deleteNext(s, classOther); ok || err != nil {
		return ok, err
	}

	return a.deleteNext(s, classForeign)
}

func (a *attempt) deleteNext(s *DeletionStrategist, c partClass) (bool, error) {
	if a.settings.deleteMode(c) == DeleteNone {
		return false, nil
	}

	del, ok, err := s.Next(c)
	if ok {
		a.deleted = append(a.deleted, del.Partitions...)
	}

	return ok, err
}

func (a *attempt) freeSize(scope []string) diskplan.Size {
	return diskplan.SumSizes(lo.Map(a.graph.FreeSpaces(scope...),
		func(f diskplan.FreeSpace, _ int) diskplan.Size { return f.Size() })...)
}

func (a *attempt) recordResize(rp ResizedPartition) {
	for i := range a.resized {
		if a.resized[i].Name == rp.Name {
			a.resized[i].NewSize = rp.NewSize
			return
		}
	}

	a.resized = append(a.resized, rp)
}
