// Package planfile reads a planning request from a YAML, JSON or TOML file:
// the volumes to make room for, the planner settings and, for dry runs, the
// foreign partition limits and a mock machine layout.
//
//	settings:
//	  candidateDevices: [sda]
//	  linuxDelete: ondemand
//	volumes:
//	  - mountPoint: /
//	    filesystem: ext4
//	    minSize: 10GiB
//	    desiredSize: 40GiB
//	foreign:
//	  /dev/sda1: {resizable: true, minSize: 50GiB}
//	scenario: windows-pc
package planfile

import (
	"io"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
	"machinerun.io/diskplan/mockos"
	"machinerun.io/diskplan/proposal"
)

// EnvPrefix prefixes environment variables overriding file settings, e.g.
// DISKPLAN_SETTINGS_TARGET=min.
const EnvPrefix = "DISKPLAN"

// ErrNoMockSystem is returned by System for a plan without a scenario or
// layout.
var ErrNoMockSystem = errors.New("plan names no scenario or layout")

//nolint:gochecknoglobals
var (
	sizeType       = reflect.TypeOf(diskplan.Size(0))
	deleteModeType = reflect.TypeOf(proposal.DeleteOnDemand)
	targetType     = reflect.TypeOf(proposal.TargetDesired)
)

var opt = viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
	mapstructure.StringToSliceHookFunc(","),
	func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		s, ok := data.(string)
		if !ok {
			return data, nil
		}

		switch t {
		case sizeType:
			return diskplan.ParseSize(s)
		case deleteModeType:
			return proposal.ParseDeleteMode(s)
		case targetType:
			return proposal.ParseTarget(s)
		}

		return data, nil
	},
))

// VolumeSpec is a volume entry of a plan file. Sizes left out keep the
// defaults of proposal.NewPlannedVolume.
type VolumeSpec struct {
	MountPoint        string         `mapstructure:"mountPoint"`
	Filesystem        string         `mapstructure:"filesystem"`
	MinSize           *diskplan.Size `mapstructure:"minSize"`
	DesiredSize       *diskplan.Size `mapstructure:"desiredSize"`
	MaxSize           *diskplan.Size `mapstructure:"maxSize"`
	Reuse             string         `mapstructure:"reuse"`
	Disk              string         `mapstructure:"disk"`
	LVM               *bool          `mapstructure:"lvm"`
	LogicalVolumeName string         `mapstructure:"lvName"`
}

// SettingsSpec is the settings section of a plan file.
type SettingsSpec struct {
	CandidateDevices []string            `mapstructure:"candidateDevices"`
	RootDevice       string              `mapstructure:"rootDevice"`
	Target           proposal.Target     `mapstructure:"target"`
	UseLVM           bool                `mapstructure:"useLvm"`
	ReuseVolumeGroup string              `mapstructure:"reuseVolumeGroup"`
	ForeignResize    *bool               `mapstructure:"foreignResize"`
	LinuxDelete      proposal.DeleteMode `mapstructure:"linuxDelete"`
	OtherDelete      proposal.DeleteMode `mapstructure:"otherDelete"`
	ForeignDelete    proposal.DeleteMode `mapstructure:"foreignDelete"`
}

// Plan is a parsed plan file.
type Plan struct {
	SettingsSpec SettingsSpec                   `mapstructure:"settings"`
	VolumeSpecs  []VolumeSpec                   `mapstructure:"volumes"`
	Foreign      map[string]analyzer.ResizeInfo `mapstructure:"foreign"`

	// Scenario names a built in mockos layout to plan against.
	Scenario string `mapstructure:"scenario"`

	// Layout is the path of a mockos layout file to plan against.
	Layout string `mapstructure:"layout"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads a plan file. The format follows the file extension.
func Load(file string) (*Plan, error) {
	v := newViper()
	v.SetConfigFile(file)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read plan %s", file)
	}

	return decode(v)
}

// Read reads a plan in the given format ("yaml", "json" or "toml").
func Read(r io.Reader, format string) (*Plan, error) {
	v := newViper()
	v.SetConfigType(format)

	if err := v.ReadConfig(r); err != nil {
		return nil, errors.Wrap(err, "failed to read plan")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Plan, error) {
	p := &Plan{}

	if err := v.Unmarshal(p, opt); err != nil {
		return nil, errors.Wrap(err, "failed to decode plan")
	}

	if p.Scenario != "" && p.Layout != "" {
		return nil, errors.New("plan names both a scenario and a layout")
	}

	return p, nil
}

// Settings returns the planner settings.
func (p *Plan) Settings() proposal.Settings {
	s := p.SettingsSpec

	return proposal.Settings{
		CandidateDevices: s.CandidateDevices,
		RootDevice:       s.RootDevice,
		Target:           s.Target,
		UseLVM:           s.UseLVM,
		ReuseVolumeGroup: s.ReuseVolumeGroup,
		NoForeignResize:  s.ForeignResize != nil && !*s.ForeignResize,
		LinuxDelete:      s.LinuxDelete,
		OtherDelete:      s.OtherDelete,
		ForeignDelete:    s.ForeignDelete,
	}
}

// Volumes returns the planned volumes in file order.
func (p *Plan) Volumes() ([]*proposal.PlannedVolume, error) {
	vols := make([]*proposal.PlannedVolume, 0, len(p.VolumeSpecs))

	for i, s := range p.VolumeSpecs {
		v := s.volume()
		if err := v.Validate(); err != nil {
			return nil, errors.Wrapf(err, "volume %d", i+1)
		}

		vols = append(vols, v)
	}

	return vols, nil
}

func (s VolumeSpec) volume() *proposal.PlannedVolume {
	v := proposal.NewPlannedVolume(s.MountPoint, s.Filesystem)
	v.Reuse = s.Reuse
	v.Disk = s.Disk

	if s.MinSize != nil {
		v.MinSize = *s.MinSize
	}

	if s.MaxSize != nil {
		v.MaxSize = *s.MaxSize
	}

	if s.DesiredSize != nil {
		v.DesiredSize = *s.DesiredSize
	}

	if s.LVM != nil {
		v.CanLiveOnLogicalVolume = *s.LVM
	}

	if s.LogicalVolumeName != "" {
		v.LogicalVolumeName = s.LogicalVolumeName
	}

	return v
}

// Analyzer returns a static analyzer for the foreign section, or nil when
// the plan has none.
func (p *Plan) Analyzer() analyzer.DiskAnalyzer {
	if len(p.Foreign) == 0 {
		return nil
	}

	return analyzer.NewStatic(p.Foreign)
}

// MockLayout returns the layout named by the scenario or layout entry.
func (p *Plan) MockLayout() (*mockos.Layout, error) {
	switch {
	case p.Scenario != "":
		return mockos.Scenario(p.Scenario)
	case p.Layout != "":
		return mockos.Load(p.Layout)
	}

	return nil, ErrNoMockSystem
}
