// Package partid holds partition type identifiers. GPT types are the
// 16 byte on-disk form of the type GUID. MBR type bytes are carried in the
// last byte of an otherwise zero identifier.
package partid

import (
	"fmt"
	"strings"
)

//nolint:gochecknoglobals
var (
	// Empty marks an unused entry.
	Empty = [16]byte{}

	// LinuxFS - 0FC63DAF-8483-4772-8E79-3D69D8477DE4
	LinuxFS = [16]byte{0xaf, 0x3d, 0xc6, 0x0f, 0x83, 0x84, 0x72, 0x47,
		0x8e, 0x79, 0x3d, 0x69, 0xd8, 0x47, 0x7d, 0xe4}

	// LinuxSwap - 0657FD6D-A4AB-43C4-84E5-0933C84B4F4F
	LinuxSwap = [16]byte{0x6d, 0xfd, 0x57, 0x06, 0xab, 0xa4, 0xc4, 0x43,
		0x84, 0xe5, 0x09, 0x33, 0xc8, 0x4b, 0x4f, 0x4f}

	// LinuxLVM - E6D6D379-F507-44C2-A23C-238F2A3DF928
	LinuxLVM = [16]byte{0x79, 0xd3, 0xd6, 0xe6, 0x07, 0xf5, 0xc2, 0x44,
		0xa2, 0x3c, 0x23, 0x8f, 0x2a, 0x3d, 0xf9, 0x28}

	// LinuxRAID - A19D880F-05FC-4D3B-A006-743F0F84911E
	LinuxRAID = [16]byte{0x0f, 0x88, 0x9d, 0xa1, 0xfc, 0x05, 0x3b, 0x4d,
		0xa0, 0x06, 0x74, 0x3f, 0x0f, 0x84, 0x91, 0x1e}

	// LinuxRootX86_64 - 4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709
	LinuxRootX86_64 = [16]byte{0xe3, 0xbc, 0x68, 0x4f, 0xcd, 0xe8, 0xb1, 0x4d,
		0x96, 0xe7, 0xfb, 0xca, 0xf9, 0x84, 0xb7, 0x09}

	// EFI - C12A7328-F81F-11D2-BA4B-00A0C93EC93B
	EFI = [16]byte{0x28, 0x73, 0x2a, 0xc1, 0x1f, 0xf8, 0xd2, 0x11,
		0xba, 0x4b, 0x00, 0xa0, 0xc9, 0x3e, 0xc9, 0x3b}

	// BIOSBoot - 21686148-6449-6E6F-744E-656564454649
	BIOSBoot = [16]byte{0x48, 0x61, 0x68, 0x21, 0x49, 0x64, 0x6f, 0x6e,
		0x74, 0x4e, 0x65, 0x65, 0x64, 0x45, 0x46, 0x49}

	// MSBasicData - EBD0A0A2-B9E5-4433-87C0-68B6B72699C7
	MSBasicData = [16]byte{0xa2, 0xa0, 0xd0, 0xeb, 0xe5, 0xb9, 0x33, 0x44,
		0x87, 0xc0, 0x68, 0xb6, 0xb7, 0x26, 0x99, 0xc7}

	// MSReserved - E3C9E316-0B5C-4DB8-817D-F92DF00215AE
	MSReserved = [16]byte{0x16, 0xe3, 0xc9, 0xe3, 0x5c, 0x0b, 0xb8, 0x4d,
		0x81, 0x7d, 0xf9, 0x2d, 0xf0, 0x02, 0x15, 0xae}

	// WindowsRecovery - DE94BBA4-06D1-4D40-A16A-BFD50179D6AC
	WindowsRecovery = [16]byte{0xa4, 0xbb, 0x94, 0xde, 0xd1, 0x06, 0x40, 0x4d,
		0xa1, 0x6a, 0xbf, 0xd5, 0x01, 0x79, 0xd6, 0xac}
)

// MBR partition type bytes.
const (
	MBRFAT32     byte = 0x0b
	MBRFAT32LBA  byte = 0x0c
	MBRNTFS      byte = 0x07
	MBRWinRE     byte = 0x27
	MBRExtended  byte = 0x05
	MBRExtendLBA byte = 0x0f
	MBRLinuxExt  byte = 0x85
	MBRLinuxSwap byte = 0x82
	MBRLinux     byte = 0x83
	MBRLinuxLVM  byte = 0x8e
	MBRLinuxRAID byte = 0xfd
	MBREFI       byte = 0xef
	MBRProtGPT   byte = 0xee
)

// MBR returns the identifier for an MBR type byte.
func MBR(t byte) [16]byte {
	id := [16]byte{}
	id[15] = t

	return id
}

// IsMBR returns true if id is an MBR type byte rather than a GPT GUID.
func IsMBR(id [16]byte) bool {
	for _, b := range id[:15] {
		if b != 0 {
			return false
		}
	}

	return id[15] != 0
}

// PartTypeToMBR returns the MBR type byte for id. GPT identifiers with an
// MBR equivalent are translated.
func PartTypeToMBR(id [16]byte) (byte, error) {
	if IsMBR(id) {
		return id[15], nil
	}

	if t, ok := gptToMBR[id]; ok {
		return t, nil
	}

	return 0, fmt.Errorf("partition type %x has no MBR equivalent", id)
}

// Text holds human names for known partition types.
//
//nolint:gochecknoglobals
var Text = map[[16]byte]string{
	LinuxFS:            "Linux-FS",
	LinuxSwap:          "Linux-Swap",
	LinuxLVM:           "LVM",
	LinuxRAID:          "RAID",
	LinuxRootX86_64:    "Linux-Root-x86-64",
	EFI:                "EFI",
	BIOSBoot:           "BIOS-Boot",
	MSBasicData:        "MS-Basic-Data",
	MSReserved:         "MS-Reserved",
	WindowsRecovery:    "Windows-Recovery",
	MBR(MBRFAT32):      "FAT32",
	MBR(MBRFAT32LBA):   "FAT32-LBA",
	MBR(MBRNTFS):       "NTFS",
	MBR(MBRWinRE):      "Windows-RE",
	MBR(MBRExtended):   "Extended",
	MBR(MBRExtendLBA):  "Extended-LBA",
	MBR(MBRLinuxExt):   "Linux-Extended",
	MBR(MBRLinuxSwap):  "Linux-Swap-MBR",
	MBR(MBRLinux):      "Linux-MBR",
	MBR(MBRLinuxLVM):   "LVM-MBR",
	MBR(MBRLinuxRAID):  "RAID-MBR",
	MBR(MBREFI):        "EFI-MBR",
	MBR(MBRProtGPT):    "Protective-GPT",
}

//nolint:gochecknoglobals
var gptToMBR = map[[16]byte]byte{
	LinuxFS:         MBRLinux,
	LinuxRootX86_64: MBRLinux,
	LinuxSwap:       MBRLinuxSwap,
	LinuxLVM:        MBRLinuxLVM,
	LinuxRAID:       MBRLinuxRAID,
	EFI:             MBREFI,
	MSBasicData:     MBRNTFS,
	WindowsRecovery: MBRWinRE,
}

//nolint:gochecknoglobals
var names = map[string][16]byte{
	"linux":            LinuxFS,
	"swap":             LinuxSwap,
	"lvm":              LinuxLVM,
	"raid":             LinuxRAID,
	"linux-root":       LinuxRootX86_64,
	"efi":              EFI,
	"bios-boot":        BIOSBoot,
	"windows":          MSBasicData,
	"ms-reserved":      MSReserved,
	"windows-recovery": WindowsRecovery,
	"ntfs":             MBR(MBRNTFS),
	"winre":            MBR(MBRWinRE),
	"fat32":            MBR(MBRFAT32LBA),
	"extended":         MBR(MBRExtendLBA),
	"linux-mbr":        MBR(MBRLinux),
	"swap-mbr":         MBR(MBRLinuxSwap),
	"lvm-mbr":          MBR(MBRLinuxLVM),
	"raid-mbr":         MBR(MBRLinuxRAID),
}

// ByName looks up a partition type by its short name ("linux", "lvm",
// "windows", ...). Names are case insensitive.
func ByName(name string) ([16]byte, bool) {
	id, ok := names[strings.ToLower(name)]
	return id, ok
}

// IsExtended returns true for MBR extended container types.
func IsExtended(id [16]byte) bool {
	if !IsMBR(id) {
		return false
	}

	switch id[15] {
	case MBRExtended, MBRExtendLBA, MBRLinuxExt:
		return true
	}

	return false
}

// IsLinux returns true for types that hold Linux data: filesystems, swap,
// LVM physical volumes and RAID members.
func IsLinux(id [16]byte) bool {
	switch id {
	case LinuxFS, LinuxSwap, LinuxLVM, LinuxRAID, LinuxRootX86_64:
		return true
	}

	if IsMBR(id) {
		switch id[15] {
		case MBRLinux, MBRLinuxSwap, MBRLinuxLVM, MBRLinuxRAID:
			return true
		}
	}

	return false
}

// IsWindows returns true for types Windows installs onto.
func IsWindows(id [16]byte) bool {
	if id == MSBasicData {
		return true
	}

	if IsMBR(id) {
		switch id[15] {
		case MBRNTFS, MBRFAT32, MBRFAT32LBA:
			return true
		}
	}

	return false
}
