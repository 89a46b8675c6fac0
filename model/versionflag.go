package model

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/richardwooding/feed-rss/version"
)

// VersionFlag prints the build version and exits.
type VersionFlag string

// Decode implements the kong.DecodeContext interface.
func (v VersionFlag) Decode(ctx *kong.DecodeContext) error { return nil }

// IsBool implements the kong.BoolMapper interface.
func (v VersionFlag) IsBool() bool { return true }

// BeforeApply prints the "version" kong variable, or the build version when
// the variable is unset, then exits.
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	if s, ok := vars["version"]; ok && s != "" {
		fmt.Println(s)
	} else {
		fmt.Println(version.GetFullVersion())
	}
	app.Exit(0)
	return nil
}
