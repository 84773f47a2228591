package hook

import (
	"runtime"

	"github.com/offlinefirst/taskrecorder/pkg/permissions"
)

// Environment summarises input hook backend support.
type Environment struct {
	Provider   string
	Available  bool
	Permission string
	Message    string
	Guidance   string
}

const (
	providerQuartz   = "quartz_event_tap"
	providerScripted = "scripted"
)

// DetectEnvironment reports the availability of a real Quartz input tap.
func DetectEnvironment() Environment {
	accessibility := permissions.ProbeAccessibility(nil)
	env := Environment{
		Provider:   providerScripted,
		Permission: accessibility.StatusString(),
		Message:    accessibility.Message,
		Guidance:   accessibility.Guidance,
		Available:  true,
	}

	if runtime.GOOS == "darwin" {
		env.Provider = providerQuartz
		env.Available = accessibility.Status != permissions.StatusDenied
		if !env.Available && env.Message == "" {
			env.Message = "accessibility permission missing"
		}
	} else {
		env.Permission = "not_applicable"
		if env.Message == "" {
			env.Message = "scripted input source"
		}
	}

	if !env.Available {
		env.Provider = providerScripted
	}
	return env
}
