package diskplan

import (
	"fmt"
	"math"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
)

// Size is a disk capacity or byte offset. The maximum value is reserved to
// mean unlimited, and arithmetic on sizes never wraps around: Add saturates
// at Unlimited and Sub stops at Zero.
type Size uint64

const (
	// Zero is the empty size.
	Zero Size = 0

	// Unlimited is larger than every finite size.
	Unlimited Size = math.MaxUint64

	// Kibibyte is 1024 bytes.
	Kibibyte Size = 1024

	// Mebibyte is 1024 Kibibytes.
	Mebibyte = 1024 * Kibibyte

	// Gibibyte is 1024 Mebibytes.
	Gibibyte = 1024 * Mebibyte

	// Tebibyte is 1024 Gibibytes.
	Tebibyte = 1024 * Gibibyte
)

// IsUnlimited returns true for the Unlimited sentinel.
func (s Size) IsUnlimited() bool {
	return s == Unlimited
}

// IsZero returns true for an empty size.
func (s Size) IsZero() bool {
	return s == Zero
}

// Bytes returns the size as a plain byte count.
func (s Size) Bytes() uint64 {
	return uint64(s)
}

// Add returns s + o, or Unlimited if either side is unlimited or the sum
// does not fit.
func (s Size) Add(o Size) Size {
	if s.IsUnlimited() || o.IsUnlimited() {
		return Unlimited
	}

	sum := s + o
	if sum < s {
		return Unlimited
	}

	return sum
}

// Sub returns s - o clamped at Zero. Unlimited minus a finite size stays
// unlimited.
func (s Size) Sub(o Size) Size {
	if s.IsUnlimited() {
		if o.IsUnlimited() {
			return Zero
		}

		return Unlimited
	}

	if o >= s {
		return Zero
	}

	return s - o
}

// AlignUp rounds s up to the next multiple of grain.
func (s Size) AlignUp(grain Size) Size {
	if grain == 0 || s.IsUnlimited() {
		return s
	}

	rem := s % grain
	if rem == 0 {
		return s
	}

	return s.Add(grain - rem)
}

// AlignDown rounds s down to a multiple of grain.
func (s Size) AlignDown(grain Size) Size {
	if grain == 0 || s.IsUnlimited() {
		return s
	}

	return s - s%grain
}

// Clamp returns s limited to the range [min, max].
func (s Size) Clamp(min, max Size) Size {
	if s < min {
		return min
	}

	if s > max {
		return max
	}

	return s
}

//nolint:gochecknoglobals
var binaryUnits = []struct {
	size datasize.ByteSize
	name string
}{
	{datasize.EB, "EiB"},
	{datasize.PB, "PiB"},
	{datasize.TB, "TiB"},
	{datasize.GB, "GiB"},
	{datasize.MB, "MiB"},
	{datasize.KB, "KiB"},
}

// String renders the size for people: in the largest binary unit it
// reaches, with one decimal unless it is a whole number of that unit.
// MarshalText is exact.
func (s Size) String() string {
	if s.IsUnlimited() {
		return "unlimited"
	}

	for _, u := range binaryUnits {
		if datasize.ByteSize(s) < u.size {
			continue
		}

		if uint64(s)%uint64(u.size) == 0 {
			return fmt.Sprintf("%d %s", uint64(s)/uint64(u.size), u.name)
		}

		return fmt.Sprintf("%.1f %s", float64(s)/float64(u.size), u.name)
	}

	return fmt.Sprintf("%d B", uint64(s))
}

// MarshalText renders the size exactly, the way ParseSize reads it.
func (s Size) MarshalText() ([]byte, error) {
	if s.IsUnlimited() {
		return []byte("unlimited"), nil
	}

	return []byte(datasize.ByteSize(s).String()), nil
}

// UnmarshalText parses the size with ParseSize.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// SumSizes adds up all the sizes, saturating at Unlimited.
func SumSizes(sizes ...Size) Size {
	total := Zero
	for _, s := range sizes {
		total = total.Add(s)
	}

	return total
}

// ParseSize reads a size like "40GiB", "512", "4m" or "unlimited". Terms can
// be chained with '+' and '-' as in "248GiB-1MiB".
func ParseSize(str string) (Size, error) {
	str = strings.TrimSpace(str)
	if strings.EqualFold(str, Unlimited.String()) {
		return Unlimited, nil
	}

	if str == "" {
		return Zero, errors.New("empty size")
	}

	total := Zero
	negative := false
	start := 0

	for i := 0; i <= len(str); i++ {
		if i < len(str) && str[i] != '+' && str[i] != '-' {
			continue
		}

		term, err := parseSizeTerm(str[start:i])
		if err != nil {
			return Zero, errors.Wrapf(err, "invalid size %q", str)
		}

		if negative {
			if term > total {
				return Zero, errors.Errorf("invalid size %q: negative result", str)
			}

			total -= term
		} else {
			total = total.Add(term)
		}

		if i < len(str) {
			negative = str[i] == '-'
		}

		start = i + 1
	}

	return total, nil
}

func parseSizeTerm(term string) (Size, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return Zero, errors.New("missing term")
	}

	// datasize spells binary units as kb, mb, gb...
	if strings.HasSuffix(term, "ib") {
		term = strings.TrimSuffix(term, "ib") + "b"
	}

	var ds datasize.ByteSize
	if err := ds.UnmarshalText([]byte(term)); err != nil {
		return Zero, err
	}

	return Size(ds.Bytes()), nil
}
