package flagservice

import "strings"

// EnvironmentModeFlag is the name of the flag holding the environment mode.
const EnvironmentModeFlag = "environment_mode"

// Mode selects whether callers perform expensive work.
type Mode string

const (
	// ModeTest tells callers to skip expensive work.
	ModeTest Mode = "test"
	// ModeProduction tells callers to perform it.
	ModeProduction Mode = "production"
)

// DefaultMode is reported when no mode has been stored.
const DefaultMode = ModeProduction

// ParseMode normalises s and checks it names a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTest, ModeProduction:
		return m, nil
	}
	return "", ErrInvalidValue
}

// Valid reports whether m is one of the two legal modes.
func (m Mode) Valid() bool {
	return m == ModeTest || m == ModeProduction
}

// Production reports whether expensive work should run.
func (m Mode) Production() bool { return m == ModeProduction }
