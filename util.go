package diskplan

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// span is an inclusive byte range [Start, Last].
type span struct {
	Start, Last Size
}

func (r span) Size() Size {
	return r.Last - r.Start + 1
}

// findSpanGaps returns the parts of [min, max] not covered by any of used.
//
//	findSpanGaps({{10, 40}, {50, 100}}, 0, 110) ==
//	    {{0, 9}, {41, 49}, {101, 110}}
func findSpanGaps(used []span, min, max Size) []span {
	if max < min {
		return []span{}
	}

	// start with the full range, then cut it up.
	ret := []span{{min, max}}

	for _, u := range used {
		for r := 0; r < len(ret); r++ {
			switch {
			case u.Start > ret[r].Last || u.Last < ret[r].Start:
				// no overlap
			case u.Start <= ret[r].Start && u.Last >= ret[r].Last:
				// u covers ret[r] completely
				ret = append(ret[:r], ret[r+1:]...)
				r--
			case u.Start > ret[r].Start && u.Last < ret[r].Last:
				// u is strictly inside: split ret[r]
				tail := span{u.Last + 1, ret[r].Last}
				ret[r].Last = u.Start - 1
				ret = append(ret, span{})
				copy(ret[r+2:], ret[r+1:])
				ret[r+1] = tail
				r++
			case u.Start <= ret[r].Start:
				// overlap on the left edge
				ret[r].Start = u.Last + 1
			case u.Start <= ret[r].Last:
				// overlap on the right edge
				ret[r].Last = u.Start - 1
			default:
				panic(fmt.Sprintf("findSpanGaps: %v, r=%d, ret=%v", u, r, ret))
			}
		}
	}

	return ret
}

// partitionKname returns the kernel name of partition number num on the
// disk, adding a 'p' separator when the disk name ends in a digit
// (nvme0n1p1, loop0p2).
func partitionKname(diskName string, num uint) string {
	sep := ""
	if diskName != "" && unicode.IsDigit(rune(diskName[len(diskName)-1])) {
		sep = "p"
	}

	return fmt.Sprintf("%s%s%d", diskName, sep, num)
}

// KernelName strips a leading /dev/ from a device path.
func KernelName(nameOrPath string) string {
	if strings.HasPrefix(nameOrPath, "/dev/") {
		return path.Base(nameOrPath)
	}

	return nameOrPath
}
