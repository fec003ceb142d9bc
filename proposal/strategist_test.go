package proposal_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/proposal"
)

func names(del proposal.Deletion) []string {
	n := []string{}
	for _, p := range del.Partitions {
		n = append(n, p.Name)
	}

	return n
}

func TestImpliedDeletionsVolumeGroup(t *testing.T) {
	assert := assert.New(t)
	g, _ := scenario(t, "lvm-two-vgs")
	before := g.Clone()

	del, ok := proposal.ImpliedDeletions(g, "/dev/sda9", nil, []string{"sda"}, proposal.ReasonSpace)
	assert.True(ok)
	assert.Equal([]string{"/dev/sda9", "/dev/sda5"}, names(del))
	assert.Equal([]string{"vg1"}, del.VolumeGroups)
	assert.Equal(proposal.ReasonSpace, del.Partitions[0].Reason)
	assert.Equal(proposal.ReasonVolumeGroup, del.Partitions[1].Reason)
	assert.Equal("vg1", del.Partitions[1].VolumeGroup)
	assert.Equal(10*gib+36*gib-6*mib, del.Size())

	// nothing is touched
	assert.Empty(cmp.Diff(before, g))
}

func TestImpliedDeletionsKeptGroup(t *testing.T) {
	assert := assert.New(t)
	g, _ := scenario(t, "lvm-two-vgs")

	_, ok := proposal.ImpliedDeletions(g, "/dev/sda9", []string{"/dev/sda5"}, []string{"sda"}, proposal.ReasonSpace)
	assert.False(ok)

	_, ok = proposal.ImpliedDeletions(g, "sda5", []string{"sda5"}, []string{"sda"}, proposal.ReasonSpace)
	assert.False(ok)

	// a group reaching beyond the allowed disks stays
	_, ok = proposal.ImpliedDeletions(g, "/dev/sda9", nil, []string{"sdb"}, proposal.ReasonSpace)
	assert.False(ok)

	// a group with a member outside the graph stays
	vg := g.VolumeGroups["vg0"]
	vg.Members = append(vg.Members, "/dev/sdz1")
	g.VolumeGroups["vg0"] = vg

	_, ok = proposal.ImpliedDeletions(g, "/dev/sda7", nil, []string{"sda"}, proposal.ReasonSpace)
	assert.False(ok)
}

func TestImpliedDeletionsExtended(t *testing.T) {
	assert := assert.New(t)
	g, _ := scenario(t, "multi-linux-pc")

	// the extended partition cannot go while it holds logicals
	_, ok := proposal.ImpliedDeletions(g, "/dev/sda4", nil, []string{"sda"}, proposal.ReasonSpace)
	assert.False(ok)

	del, ok := proposal.ImpliedDeletions(g, "/dev/sda6", nil, []string{"sda"}, proposal.ReasonSpace)
	assert.True(ok)
	assert.Equal([]string{"/dev/sda6"}, names(del))

	_, err := g.DeletePartition("/dev/sda6")
	assert.NoError(err)

	del, ok = proposal.ImpliedDeletions(g, "/dev/sda5", nil, []string{"sda"}, proposal.ReasonSpace)
	assert.True(ok)
	assert.Equal([]string{"/dev/sda5", "/dev/sda4"}, names(del))
	assert.Equal(proposal.ReasonEmptyExtended, del.Partitions[1].Reason)
	assert.Equal(300*gib, del.Size())
}

func TestImpliedDeletionsKeptLogical(t *testing.T) {
	assert := assert.New(t)
	g, _ := scenario(t, "multi-linux-pc")

	_, err := g.DeletePartition("/dev/sda6")
	assert.NoError(err)

	// sda5 is the last logical but it is kept
	_, ok := proposal.ImpliedDeletions(g, "/dev/sda5", []string{"/dev/sda5"}, []string{"sda"}, proposal.ReasonSpace)
	assert.False(ok)

	g, _ = scenario(t, "multi-linux-pc")
	del, ok := proposal.ImpliedDeletions(g, "/dev/sda5", []string{"/dev/sda6"}, []string{"sda"}, proposal.ReasonSpace)
	assert.True(ok)
	assert.Equal([]string{"/dev/sda5"}, names(del))
}

func TestImpliedDeletionsAcrossDisks(t *testing.T) {
	assert := assert.New(t)

	g := diskplan.NewDevicegraph()
	for _, name := range []string{"sda", "sdb"} {
		d := diskplan.Disk{Name: name, Path: "/dev/" + name, Size: 10 * gib, SectorSize: 512,
			Table: diskplan.NewPartitionTable(diskplan.GPT)}
		d.Table.Partitions[1] = diskplan.Partition{Number: 1, Kind: diskplan.Primary, Start: mib, Last: 5*gib - 1}
		g.Disks[name] = d
	}

	g.VolumeGroups["data"] = diskplan.VolumeGroup{Name: "data", Members: []string{"/dev/sda1", "/dev/sdb1"}}

	del, ok := proposal.ImpliedDeletions(g, "/dev/sdb1", nil, []string{"sda", "sdb"}, proposal.ReasonDeleteAll)
	assert.True(ok)
	assert.Equal([]string{"/dev/sdb1", "/dev/sda1"}, names(del))
	assert.Equal("sda", del.Partitions[1].Disk)

	_, ok = proposal.ImpliedDeletions(g, "/dev/sdb1", nil, []string{"sdb"}, proposal.ReasonDeleteAll)
	assert.False(ok)
}
