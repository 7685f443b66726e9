// Package _default links in the bundled backends. Import it for its side
// effects when any registered backend will do:
//
//	import _ "github.com/radioastro/visim/backends/default"
//
// It makes "pool" the default selection; override with the VISIM_BACKEND
// environment variable or backends.DefaultConfig.
package _default

import (
	"github.com/radioastro/visim/backends"
	_ "github.com/radioastro/visim/backends/grid"
	_ "github.com/radioastro/visim/backends/pool"
)

func init() {
	if backends.DefaultConfig == "" {
		backends.DefaultConfig = "pool"
	}
}
