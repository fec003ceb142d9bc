// Package analyzer finds partitions that belong to other operating systems
// and reports how far their filesystems can be shrunk.
package analyzer

import (
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/partid"
)

// ResizeInfo describes how a partition can be resized.
type ResizeInfo struct {
	// Resizable is false when the filesystem cannot be shrunk at all.
	Resizable bool `json:"resizable" mapstructure:"resizable"`

	// MinSize is the smallest size the partition can be shrunk to.
	MinSize diskplan.Size `json:"minSize" mapstructure:"minSize"`

	// MaxSize is the largest size the partition can grow to.
	MaxSize diskplan.Size `json:"maxSize" mapstructure:"maxSize"`
}

// Headroom returns how much the partition can give up from size.
func (r ResizeInfo) Headroom(size diskplan.Size) diskplan.Size {
	if !r.Resizable {
		return diskplan.Zero
	}

	return size.Sub(r.MinSize)
}

// DiskAnalyzer reports on partitions belonging to other operating systems.
type DiskAnalyzer interface {
	// ForeignPartitions returns the device paths of foreign partitions.
	ForeignPartitions() []string

	// ResizeInfo returns the resize limits of a partition.
	ResizeInfo(dev string) (ResizeInfo, error)
}

// ErrUnknownPartition is returned for a partition the analyzer knows
// nothing about.
var ErrUnknownPartition = errors.New("unknown partition")

// Static is a DiskAnalyzer with a fixed answer, as loaded from a plan file
// or set up by a test.
type Static struct {
	foreign map[string]ResizeInfo
}

// NewStatic returns a Static analyzer for the given foreign partitions.
func NewStatic(foreign map[string]ResizeInfo) *Static {
	s := &Static{foreign: map[string]ResizeInfo{}}

	for dev, info := range foreign {
		s.foreign[dev] = info
	}

	return s
}

// ForeignPartitions returns the configured partitions in sorted order.
func (s *Static) ForeignPartitions() []string {
	devs := lo.Keys(s.foreign)
	sort.Strings(devs)

	return devs
}

// ResizeInfo returns the configured resize info.
func (s *Static) ResizeInfo(dev string) (ResizeInfo, error) {
	info, ok := s.foreign[dev]
	if !ok {
		return ResizeInfo{}, errors.Wrap(ErrUnknownPartition, dev)
	}

	return info, nil
}

// ResizeProbe measures the resize limits of a partition, for example by
// running ntfsresize against it.
type ResizeProbe func(dev string) (ResizeInfo, error)

// ByType takes partitions with Windows partition types or filesystems as
// foreign. Resize limits come from the probe; without one nothing is
// resizable.
type ByType struct {
	graph *diskplan.Devicegraph
	probe ResizeProbe
}

// NewByType returns a ByType analyzer over the graph.
func NewByType(g *diskplan.Devicegraph, probe ResizeProbe) *ByType {
	return &ByType{graph: g, probe: probe}
}

// ForeignPartitions returns the Windows partitions of the graph.
func (b *ByType) ForeignPartitions() []string {
	return lo.Filter(b.graph.Partitions(), func(dev string, _ int) bool {
		_, p, _ := b.graph.FindPartition(dev)
		if p.Kind == diskplan.Extended {
			return false
		}

		fs := strings.ToLower(p.Filesystem)

		return fs == "ntfs" || (fs == "" && partid.IsWindows(p.Type))
	})
}

// ResizeInfo asks the probe.
func (b *ByType) ResizeInfo(dev string) (ResizeInfo, error) {
	if _, _, ok := b.graph.FindPartition(dev); !ok {
		return ResizeInfo{}, errors.Wrap(ErrUnknownPartition, dev)
	}

	if b.probe == nil {
		return ResizeInfo{Resizable: false}, nil
	}

	return b.probe(dev)
}

const foreignKey = "\x00foreign"

// Cached remembers the answers of another analyzer. Probing a filesystem
// for its minimum size is slow and the planner asks repeatedly.
type Cached struct {
	inner DiskAnalyzer
	cache *cache.Cache
}

// NewCached wraps inner, keeping answers for ttl. A ttl of zero keeps
// them forever.
func NewCached(inner DiskAnalyzer, ttl time.Duration) *Cached {
	if ttl == 0 {
		ttl = cache.NoExpiration
	}

	return &Cached{inner: inner, cache: cache.New(ttl, 10*time.Minute)} //nolint:gomnd
}

// ForeignPartitions returns the inner analyzer's list.
func (c *Cached) ForeignPartitions() []string {
	if v, ok := c.cache.Get(foreignKey); ok {
		return append([]string{}, v.([]string)...)
	}

	devs := c.inner.ForeignPartitions()
	c.cache.Set(foreignKey, append([]string{}, devs...), cache.DefaultExpiration)

	return devs
}

// ResizeInfo returns the inner analyzer's answer. Errors are not cached.
func (c *Cached) ResizeInfo(dev string) (ResizeInfo, error) {
	if v, ok := c.cache.Get(dev); ok {
		return v.(ResizeInfo), nil
	}

	info, err := c.inner.ResizeInfo(dev)
	if err != nil {
		return info, err
	}

	c.cache.Set(dev, info, cache.DefaultExpiration)

	return info, nil
}
