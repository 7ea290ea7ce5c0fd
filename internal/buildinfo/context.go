// Package buildinfo carries build-time metadata injected at startup, kept
// separate from user configuration.
package buildinfo

import "fmt"

// Context holds the version stamped into the binary by the linker.
type Context struct {
	Version   string
	BuildDate string
}

// GetVersion returns the build version, "unknown" when unset.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return "unknown"
	}
	return c.Version
}

// GetBuildDate returns the build date, "unknown" when unset.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

// Release is the release name reported to error telemetry.
func (c *Context) Release() string {
	return fmt.Sprintf("speechscope@%s", c.GetVersion())
}
