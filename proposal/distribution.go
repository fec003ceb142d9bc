package proposal

import (
	"sort"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
)

// maxSearchNodes bounds the backtracking search of a distribution.
const maxSearchNodes = 100000

// AssignedSpace is a free space and the volumes placed in it.
type AssignedSpace struct {
	Space diskplan.FreeSpace

	// Volumes in declaration order.
	Volumes []*PlannedVolume

	// Sizes holds the assigned size of each volume.
	Sizes []diskplan.Size

	// Logical is set for volumes that become logical partitions.
	Logical []bool
}

// SizeOf returns the size assigned to v in this space.
func (a AssignedSpace) SizeOf(v *PlannedVolume) (diskplan.Size, bool) {
	for i, av := range a.Volumes {
		if av == v {
			return a.Sizes[i], true
		}
	}

	return diskplan.Zero, false
}

// SpaceDistribution maps volumes to free spaces.
type SpaceDistribution struct {
	Spaces []AssignedSpace
}

// ByDisk groups the assigned spaces by disk name.
func (d SpaceDistribution) ByDisk() map[string][]AssignedSpace {
	return lo.GroupBy(d.Spaces, func(a AssignedSpace) string { return a.Space.Disk })
}

// SpaceOf returns the space a volume was placed in.
func (d SpaceDistribution) SpaceOf(v *PlannedVolume) (AssignedSpace, bool) {
	for _, a := range d.Spaces {
		if _, ok := a.SizeOf(v); ok {
			return a, true
		}
	}

	return AssignedSpace{}, false
}

// Volumes returns every placed volume.
func (d SpaceDistribution) Volumes() []*PlannedVolume {
	return lo.FlatMap(d.Spaces, func(a AssignedSpace, _ int) []*PlannedVolume { return a.Volumes })
}

// demand is a volume that needs new space.
type demand struct {
	vol   *PlannedVolume
	size  diskplan.Size
	disk  string
	index int
}

// slot is a free space being filled by the distributor.
type slot struct {
	space    diskplan.FreeSpace
	left     diskplan.Size
	grain    diskplan.Size
	assigned []int
}

// need is what placing d in s consumes: the size rounded up to the grain,
// plus one grain of EBR space for a logical partition.
func (s *slot) need(d demand, logical bool) diskplan.Size {
	size := d.size
	if size == 0 {
		size = 1
	}

	n := size.AlignUp(s.grain)
	if logical {
		n = n.Add(s.grain)
	}

	return n
}

// diskState tracks the main table entries of a disk during the search.
type diskState struct {
	// entries is the number of free main table entries, -1 for no limit.
	entries int

	// convertible is set for MBR tables without an extended partition: the
	// last free entry can become one.
	convertible bool

	// ext is the space turned into a new extended partition.
	ext *slot
}

// option is one way to place a demand.
type option struct {
	slot    *slot
	logical bool
	convert bool
}

type distributor struct {
	slots   []*slot
	order   []demand
	disks   map[string]*diskState
	choices []option
	nodes   int
	limit   int

	// truncated is set once the search gave up at limit.
	truncated bool
}

// newDistributor collects the free spaces of the disks, in disk order.
func newDistributor(g *diskplan.Devicegraph, disks []string, demands []demand) *distributor {
	ds := &distributor{disks: map[string]*diskState{}, limit: maxSearchNodes}

	for _, n := range disks {
		d, ok := g.Disk(n)
		if !ok {
			continue
		}

		st := &diskState{entries: -1}
		grain := diskplan.DefaultGrain

		if t := d.Table; t != nil {
			_, hasExt := t.Extended()
			grain = t.Alignment()
			st.entries = t.FreeSlots()
			st.convertible = t.Type == diskplan.MBR && !hasExt
		}

		ds.disks[d.Name] = st

		for _, f := range d.FreeSpaces() {
			ds.slots = append(ds.slots, &slot{space: f, left: f.Size(), grain: grain})
		}
	}

	ds.order = append([]demand{}, demands...)
	sort.SliceStable(ds.order, func(i, j int) bool {
		a, b := ds.order[i], ds.order[j]
		if (a.disk != "") != (b.disk != "") {
			return a.disk != ""
		}

		if a.size != b.size {
			return a.size > b.size
		}

		return a.index < b.index
	})

	ds.choices = make([]option, len(ds.order))

	return ds
}

// options returns the ways d can be placed, tightest fit first. Turning a
// space into an extended partition comes after a primary partition in the
// same space.
func (ds *distributor) options(d demand) []option {
	opts := []option{}

	for _, s := range ds.slots {
		if d.disk != "" && s.space.Disk != d.disk {
			continue
		}

		st := ds.disks[s.space.Disk]

		switch {
		case s.space.InExtended || st.ext == s:
			opts = append(opts, option{slot: s, logical: true})
		case st.entries < 0 || st.entries > 1 || st.entries == 1 && !st.convertible:
			opts = append(opts, option{slot: s})
		case st.entries == 1:
			opts = append(opts, option{slot: s}, option{slot: s, logical: true, convert: true})
		}
	}

	opts = lo.Filter(opts, func(o option, _ int) bool { return o.slot.need(d, o.logical) <= o.slot.left })

	sort.SliceStable(opts, func(i, j int) bool {
		li, lj := opts[i].slot.left-opts[i].slot.need(d, false), opts[j].slot.left-opts[j].slot.need(d, false)
		if li != lj {
			return li < lj
		}

		return !opts[i].convert && opts[j].convert
	})

	return opts
}

func (ds *distributor) assign(o option, i int) {
	o.slot.left -= o.slot.need(ds.order[i], o.logical)
	o.slot.assigned = append(o.slot.assigned, i)
	ds.choices[i] = o

	st := ds.disks[o.slot.space.Disk]

	switch {
	case o.convert:
		st.entries--
		st.ext = o.slot
	case !o.logical && st.entries > 0:
		st.entries--
	}
}

func (ds *distributor) unassign(i int) {
	o := ds.choices[i]
	o.slot.left += o.slot.need(ds.order[i], o.logical)
	o.slot.assigned = o.slot.assigned[:len(o.slot.assigned)-1]

	st := ds.disks[o.slot.space.Disk]

	switch {
	case o.convert:
		st.entries++
		st.ext = nil
	case !o.logical && st.entries >= 0:
		st.entries++
	}
}

// place runs a best-fit search with backtracking from demand i on.
func (ds *distributor) place(i int) bool {
	if i == len(ds.order) {
		return true
	}

	ds.nodes++
	if ds.nodes > ds.limit {
		ds.truncated = true
		return false
	}

	for _, o := range ds.options(ds.order[i]) {
		ds.assign(o, i)

		if ds.place(i + 1) {
			return true
		}

		ds.unassign(i)
	}

	return false
}

// greedy places what fits without backtracking and returns the rest.
func (ds *distributor) greedy() []demand {
	unplaced := []demand{}

	for i, d := range ds.order {
		opts := ds.options(d)
		if len(opts) == 0 {
			unplaced = append(unplaced, d)
			continue
		}

		ds.assign(opts[0], i)
	}

	return unplaced
}

func (ds *distributor) result() SpaceDistribution {
	dist := SpaceDistribution{Spaces: []AssignedSpace{}}

	for _, s := range ds.slots {
		if len(s.assigned) == 0 {
			continue
		}

		idx := append([]int{}, s.assigned...)
		sort.Slice(idx, func(a, b int) bool { return ds.order[idx[a]].index < ds.order[idx[b]].index })

		as := AssignedSpace{Space: s.space}
		for _, i := range idx {
			as.Volumes = append(as.Volumes, ds.order[i].vol)
			as.Sizes = append(as.Sizes, ds.order[i].size)
			as.Logical = append(as.Logical, ds.choices[i].logical)
		}

		dist.Spaces = append(dist.Spaces, as)
	}

	return dist
}

// distribute assigns every demand to a free space of the disks. On failure
// it returns the demands a best-fit pass could not place.
func distribute(g *diskplan.Devicegraph, disks []string, demands []demand,
	log logr.Logger) (SpaceDistribution, []demand, bool) {
	ds := newDistributor(g, disks, demands)
	if ds.place(0) {
		return ds.result(), nil, true
	}

	if ds.truncated {
		log.V(1).Info("distribution search stopped at the node limit, a fit may exist",
			"limit", ds.limit, "demands", len(demands), "disks", disks)
	}

	return SpaceDistribution{}, newDistributor(g, disks, demands).greedy(), false
}

// totalNeed sums the sizes of the demands rounded up to the default grain.
func totalNeed(demands []demand) diskplan.Size {
	return diskplan.SumSizes(lo.Map(demands, func(d demand, _ int) diskplan.Size {
		return d.size.AlignUp(diskplan.DefaultGrain)
	})...)
}
