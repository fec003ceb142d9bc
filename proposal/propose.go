package proposal

import (
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"machinerun.io/diskplan"
	"machinerun.io/diskplan/analyzer"
)

// Propose plans the volumes with their desired sizes and, if they do not
// fit, again with their minimum sizes. Settings with TargetMin skip the
// first attempt. The graph g is never modified.
func Propose(g *diskplan.Devicegraph, a analyzer.DiskAnalyzer, volumes []*PlannedVolume,
	settings Settings, log logr.Logger) (*Result, error) {
	targets := []Target{TargetDesired, TargetMin}
	if settings.Target == TargetMin {
		targets = targets[1:]
	}

	var err error

	for _, t := range targets {
		s := settings
		s.Target = t

		var res *Result

		res, err = NewSpaceMaker(g, a, s, log).ProvideSpace(volumes)
		if err == nil {
			return res, nil
		}

		if !errors.Is(err, ErrProposal) {
			return nil, err
		}

		log.V(1).Info("proposal failed", "target", t.String(), "error", err.Error())
	}

	return nil, err
}
