package hook

import "errors"

// ErrAccessibilityPermission indicates the host must grant Accessibility trust.
var ErrAccessibilityPermission = errors.New("macOS accessibility permission required for input capture")

// ErrRegistration reports that the platform refused the hook registration.
// Without it no capture is possible, so callers treat it as fatal.
var ErrRegistration = errors.New("input hook registration failed")

// ErrAlreadyListening is returned when Listen is invoked twice; the hook is
// registered once per process and shared across sessions.
var ErrAlreadyListening = errors.New("input hook already listening")
