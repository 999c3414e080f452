package observability

import (
	"github.com/pkg/profile"
)

// Profile modes accepted by Config.Profile.
const (
	ProfileCPU   = "cpu"
	ProfileMem   = "mem"
	ProfileTrace = "trace"
)

// Config captures opt-in observability toggles wired into the binaries.
type Config struct {
	// Profile selects a pkg/profile mode. Empty disables profiling.
	Profile string
	// ProfilePath is the directory profiles are written to.
	ProfilePath string
}

// Stopper ends a profiling session.
type Stopper interface {
	Stop()
}

type noopStopper struct{}

func (noopStopper) Stop() {}

// Start begins profiling according to cfg. The returned Stopper must be
// stopped before the process exits so the profile is flushed.
func Start(cfg Config) Stopper {
	var mode func(*profile.Profile)
	switch cfg.Profile {
	case ProfileCPU:
		mode = profile.CPUProfile
	case ProfileMem:
		mode = profile.MemProfileAllocs
	case ProfileTrace:
		mode = profile.TraceProfile
	default:
		return noopStopper{}
	}
	path := cfg.ProfilePath
	if path == "" {
		path = "."
	}
	return profile.Start(mode, profile.ProfilePath(path), profile.NoShutdownHook, profile.Quiet)
}
