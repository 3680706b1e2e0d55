package pagescmd

import "errors"

var ErrSchedulingDisabled = errors.New("pagescmd: scheduling disabled")

// FeatureGates exposes runtime feature toggles required by page command handlers.
// Callers inject closures wired to the runtime config to avoid tight coupling.
type FeatureGates struct {
	// VersioningEnabled should return true when rollbacks are allowed.
	VersioningEnabled func() bool
	// SchedulingEnabled should return true when schedule edits and sweeps are allowed.
	SchedulingEnabled func() bool
}

func (g FeatureGates) versioningEnabled() bool {
	if g.VersioningEnabled == nil {
		return true
	}
	return g.VersioningEnabled()
}

func (g FeatureGates) schedulingEnabled() bool {
	if g.SchedulingEnabled == nil {
		return true
	}
	return g.SchedulingEnabled()
}
