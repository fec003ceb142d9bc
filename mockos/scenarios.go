package mockos

import (
	"embed"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed scenarios/*.json
var scenarioFS embed.FS

// ErrUnknownScenario is returned by Scenario for a name that has no layout.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenarios returns the names of the built in layouts.
func Scenarios() []string {
	entries, _ := scenarioFS.ReadDir("scenarios")
	names := []string{}

	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}

	sort.Strings(names)

	return names
}

// Scenario returns a built in layout by name.
func Scenario(name string) (*Layout, error) {
	data, err := scenarioFS.ReadFile(path.Join("scenarios", name+".json"))
	if err != nil {
		return nil, errors.Wrap(ErrUnknownScenario, name)
	}

	l, err := Parse(data)

	return l, errors.Wrapf(err, "scenario %s", name)
}
