package proposal_test

import (
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
	"machinerun.io/diskplan/mockos"
	"machinerun.io/diskplan/proposal"
)

const (
	mib = diskplan.Mebibyte
	gib = diskplan.Gibibyte
	tib = diskplan.Tebibyte
)

func scenario(t *testing.T, name string) (*diskplan.Devicegraph, analyzer.DiskAnalyzer) {
	t.Helper()

	l, err := mockos.Scenario(name)
	require.NoError(t, err)

	g, err := l.Graph()
	require.NoError(t, err)

	return g, l.Analyzer()
}

func volume(mountPoint string, desired diskplan.Size) *proposal.PlannedVolume {
	v := proposal.NewPlannedVolume(mountPoint, "ext4")
	v.DesiredSize = desired
	v.MinSize = desired

	return v
}

func reused(dev string) *proposal.PlannedVolume {
	v := proposal.NewPlannedVolume("", "")
	v.Reuse = dev

	return v
}

func plan(t *testing.T, g *diskplan.Devicegraph, a analyzer.DiskAnalyzer, s proposal.Settings,
	vols ...*proposal.PlannedVolume) (*proposal.Result, error) {
	t.Helper()

	return proposal.NewSpaceMaker(g, a, s, testr.New(t)).ProvideSpace(vols)
}

func partitionSize(t *testing.T, g *diskplan.Devicegraph, dev string) diskplan.Size {
	t.Helper()

	_, p, ok := g.FindPartition(dev)
	require.True(t, ok, "%s not found", dev)

	return p.Size()
}
