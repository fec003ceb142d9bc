package proposal

import (
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
)

type resizeCandidate struct {
	path     string
	disk     int
	size     diskplan.Size
	minSize  diskplan.Size
	headroom diskplan.Size
}

// ForeignResizer shrinks partitions of other operating systems.
type ForeignResizer struct {
	graph    *diskplan.Devicegraph
	analyzer analyzer.DiskAnalyzer
	disks    []string
	keep     devSet
	log      logr.Logger
}

// NewForeignResizer returns a resizer for the foreign partitions on the
// candidate disks of g.
func NewForeignResizer(g *diskplan.Devicegraph, a analyzer.DiskAnalyzer, disks, keep []string, log logr.Logger) *ForeignResizer {
	return &ForeignResizer{graph: g, analyzer: a, disks: disks, keep: newDevSet(keep...), log: log}
}

// minSize is the smallest size the partition can take: the reported
// minimum rounded up to the sector, or so that the partition ends on the
// grain when the table requires it.
func minSize(d diskplan.Disk, p diskplan.Partition, info analyzer.ResizeInfo) diskplan.Size {
	sector := diskplan.Size(d.SectorSize)
	if sector == 0 {
		sector = 512
	}

	size := info.MinSize.AlignUp(sector)
	if size == 0 {
		size = sector
	}

	if d.Table.EndAligned {
		grain := d.Table.Alignment()
		size = (p.Start + size).AlignUp(grain) - p.Start
	}

	return size
}

// candidates returns the resizable foreign partitions, most headroom first
// and ties in disk order.
func (r *ForeignResizer) candidates() []resizeCandidate {
	cands := []resizeCandidate{}
	order := lo.SliceToMap(r.disks, func(n string) (string, int) { return diskplan.KernelName(n), lo.IndexOf(r.disks, n) })

	for _, dev := range r.analyzer.ForeignPartitions() {
		d, p, ok := r.graph.FindPartition(dev)
		if !ok || r.keep.has(dev) {
			continue
		}

		pos, ok := order[d.Name]
		if !ok || p.Kind == diskplan.Extended {
			continue
		}

		info, err := r.analyzer.ResizeInfo(dev)
		if err != nil {
			r.log.V(1).Info("no resize info", "partition", dev, "error", err.Error())
			continue
		}

		if !info.Resizable {
			continue
		}

		floor := minSize(d, p, info)
		if floor >= p.Size() {
			continue
		}

		headroom := p.Size() - floor
		if headroom < d.Table.Alignment() {
			r.log.V(1).Info("not enough headroom", "partition", dev, "headroom", headroom.String())
			continue
		}

		cands = append(cands, resizeCandidate{
			path: d.PartitionPath(p.Number), disk: pos, size: p.Size(), minSize: floor, headroom: headroom,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].headroom != cands[j].headroom {
			return cands[i].headroom > cands[j].headroom
		}

		return cands[i].disk < cands[j].disk
	})

	return cands
}

// shrunk returns the size of c after giving up amount bytes, ending on the
// grain when the table requires it and never below the minimum.
func shrunk(c resizeCandidate, d diskplan.Disk, p diskplan.Partition, amount diskplan.Size) diskplan.Size {
	newSize := c.size.Sub(amount)
	if d.Table.EndAligned {
		grain := d.Table.Alignment()
		newSize = (p.Start + newSize).AlignUp(grain) - p.Start
	}

	return newSize.Clamp(c.minSize, c.size)
}

// Shrink resizes the foreign partition with the most headroom so that
// shortfall more bytes become free. A zero shortfall shrinks it to its
// minimum. It returns false when no partition can be shrunk.
func (r *ForeignResizer) Shrink(shortfall diskplan.Size) (ResizedPartition, bool, error) {
	cands := r.candidates()
	if len(cands) == 0 {
		return ResizedPartition{}, false, nil
	}

	c := cands[0]
	d, p, _ := r.graph.FindPartition(c.path)
	grain := d.Table.Alignment()

	amount := c.headroom
	if shortfall != 0 {
		amount = lo.Min([]diskplan.Size{lo.Max([]diskplan.Size{shortfall, grain}), c.headroom})
	}

	return r.resize(c, shrunk(c, d, p, amount))
}

// ShrinkToFit shrinks the foreign partition with the most headroom by the
// fewest grains after which fits accepts the graph. Candidate sizes are
// tried on a copy of the graph. When no shrink is enough the partition goes
// down to its minimum. It returns false when no partition can be shrunk.
func (r *ForeignResizer) ShrinkToFit(fits func(g *diskplan.Devicegraph) bool) (ResizedPartition, bool, error) {
	cands := r.candidates()
	if len(cands) == 0 {
		return ResizedPartition{}, false, nil
	}

	c := cands[0]
	d, p, _ := r.graph.FindPartition(c.path)
	grain := d.Table.Alignment()

	try := func(steps diskplan.Size) bool {
		g := r.graph.Clone()
		if err := g.ResizePartition(c.path, shrunk(c, d, p, steps*grain)); err != nil {
			return false
		}

		return fits(g)
	}

	high := c.headroom / grain
	if !try(high) {
		r.log.V(1).Info("no partial shrink is enough", "partition", c.path, "headroom", c.headroom.String())
		return r.resize(c, c.minSize)
	}

	low := diskplan.Size(1)
	for low < high {
		mid := low + (high-low)/2
		if try(mid) {
			high = mid
		} else {
			low = mid + 1
		}
	}

	return r.resize(c, shrunk(c, d, p, low*grain))
}

func (r *ForeignResizer) resize(c resizeCandidate, newSize diskplan.Size) (ResizedPartition, bool, error) {
	if newSize == c.size {
		return ResizedPartition{}, false, nil
	}

	if err := r.graph.ResizePartition(c.path, newSize); err != nil {
		return ResizedPartition{}, false, errors.Wrapf(err, "failed to shrink %s", c.path)
	}

	r.log.Info("shrunk foreign partition", "partition", c.path,
		"from", c.size.String(), "to", newSize.String(), "min", c.minSize.String())

	return ResizedPartition{Name: c.path, OldSize: c.size, NewSize: newSize}, true, nil
}
