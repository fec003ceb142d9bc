package diskplan

import (
	"github.com/rekby/gpt"
	uuid "github.com/satori/go.uuid"
	"machinerun.io/diskplan/partid"
)

// GUID - a 16 byte Globally Unique ID in GPT on-disk byte order.
type GUID [16]byte

// GenGUID - generate a random uuid and return it
func GenGUID() GUID {
	return GUID(uuid.NewV4())
}

func (g GUID) String() string {
	return GUIDToString(g)
}

// IsZero returns true for the all zero GUID.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// MarshalText renders the GUID in its canonical string form.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText reads a GUID string.
func (g *GUID) UnmarshalText(text []byte) error {
	v, err := StringToGUID(string(text))
	if err != nil {
		return err
	}

	*g = v

	return nil
}

// StringToGUID - convert a string to a GUID
func StringToGUID(sguid string) (GUID, error) {
	g, err := gpt.StringToGuid(sguid)
	return GUID(g), err
}

// GUIDToString - turn a Guid into a string.
func GUIDToString(bguid GUID) string {
	return gpt.Guid(bguid).String()
}

// PartType is a partition type identifier, see package partid.
type PartType GUID

func (t PartType) String() string {
	if s, ok := partid.Text[t]; ok {
		return s
	}

	return GUID(t).String()
}

// MarshalText writes the short partid name when there is one.
func (t PartType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts a partid short name ("linux", "lvm", "windows"),
// a Text name, or a GUID string.
func (t *PartType) UnmarshalText(text []byte) error {
	s := string(text)
	if id, ok := partid.ByName(s); ok {
		*t = PartType(id)
		return nil
	}

	for id, name := range partid.Text {
		if name == s {
			*t = PartType(id)
			return nil
		}
	}

	g, err := StringToGUID(s)
	if err != nil {
		return err
	}

	*t = PartType(g)

	return nil
}
