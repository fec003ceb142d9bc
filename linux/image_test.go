package linux

import (
	"bytes"
	"io"
	"os"
	"path"
	"testing"
	"unicode/utf16"

	"github.com/rekby/gpt"
	"github.com/rekby/mbr"
	"machinerun.io/diskplan"
)

const mib = uint64(diskplan.Mebibyte)

// genTempImage returns the path of a zeroed disk image of fsize bytes.
func genTempImage(t *testing.T, fsize uint64) string {
	t.Helper()

	fpath := path.Join(t.TempDir(), "disk.img")

	if err := os.WriteFile(fpath, []byte{}, 0600); err != nil {
		t.Fatalf("Failed to write to a temp file: %s", err)
	}

	if err := os.Truncate(fpath, int64(fsize)); err != nil {
		t.Fatalf("Failed create empty file: %s", err)
	}

	return fpath
}

func openImage(t *testing.T, fpath string) *os.File {
	t.Helper()

	fp, err := os.OpenFile(fpath, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Failed to open image %s: %s", fpath, err)
	}

	t.Cleanup(func() { fp.Close() })

	return fp
}

func getPartName(s string) [72]byte {
	codes := utf16.Encode([]rune(s))
	b := [72]byte{}

	for i, r := range codes {
		b[i*2] = byte(r)
		b[i*2+1] = byte(r >> 8) //nolint:gomnd
	}

	return b
}

// toGPTPartition - convert the Partition type into a gpt.Partition
func toGPTPartition(p diskplan.Partition, sectorSize uint64) gpt.Partition {
	return gpt.Partition{
		Type:          gpt.PartType(p.Type),
		Id:            gpt.Guid(p.ID),
		FirstLBA:      uint64(p.Start) / sectorSize,
		LastLBA:       uint64(p.Last) / sectorSize,
		Flags:         gpt.Flags{},
		PartNameUTF16: getPartName(p.Label),
		TrailingBytes: []byte{},
	}
}

// writeGPTImage writes a protective MBR and a GPT holding parts.
func writeGPTImage(t *testing.T, fp io.ReadWriteSeeker, diskSize uint64, parts ...diskplan.Partition) {
	t.Helper()

	ntArgs := gpt.NewTableArgs{
		SectorSize: sectorSize512,
		DiskGuid:   gpt.Guid(diskplan.GenGUID()),
	}
	table := gpt.NewTable(diskSize, &ntArgs)

	for _, p := range parts {
		table.Partitions[p.Number-1] = toGPTPartition(p, sectorSize512)
	}

	if err := writeProtectiveMBR(fp, diskSize); err != nil {
		t.Fatalf("Failed to write protective MBR: %s", err)
	}

	if err := table.Write(fp); err != nil {
		t.Fatalf("Failed write to table: %s", err)
	}

	if err := table.CreateOtherSideTable().Write(fp); err != nil {
		t.Fatalf("Failed write other side table: %s", err)
	}
}

// emptyMBR returns a sector holding only the MBR signature.
func emptyMBR() (*mbr.MBR, error) {
	buf := make([]byte, sectorSize512)
	buf[0x1FE] = 0x55
	buf[0x1FF] = 0xAA

	return mbr.Read(bytes.NewReader(buf))
}

type mbrEntry struct {
	num        int
	ptype      byte
	start, len uint64
}

// writeMBRSector writes a boot record with the given entries, in sectors,
// to the sector at lba.
func writeMBRSector(fp io.WriteSeeker, lba uint64, entries ...mbrEntry) error {
	m, err := emptyMBR()
	if err != nil {
		return err
	}

	for _, e := range entries {
		pt := m.GetPartition(e.num)
		pt.SetType(mbr.PartitionType(e.ptype))
		pt.SetLBAStart(uint32(e.start))
		pt.SetLBALen(uint32(e.len))
	}

	if _, err := fp.Seek(int64(lba*sectorSize512), io.SeekStart); err != nil {
		return err
	}

	return m.Write(fp)
}

// writeProtectiveMBR - add a ProtectiveMBR spanning the disk.
func writeProtectiveMBR(fp io.WriteSeeker, diskSize uint64) error {
	// UEFI says '- 1'; linux partitioners commonly write '- 2'.
	return writeMBRSector(fp, 0, mbrEntry{
		num:   1,
		ptype: byte(mbr.PART_GPT),
		start: 1,
		len:   diskSize/sectorSize512 - 2, //nolint:gomnd
	})
}

func sectors(n uint64) uint64 {
	return n / sectorSize512
}

func mustWrite(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Failed to write image: %s", err)
	}
}
