// Package plugins provides the built-in runtime plugins: kubernetes,
// kustomize, istio and docker. Each registers itself with the runtime
// plugin registry at import time; importing this package for side effects
// makes the full built-in set available to runtime declarations.
package plugins

import (
	"net"
	"strings"
)

// filenameToLabel converts a filename into a label-safe identifier.
func filenameToLabel(filename string) string {
	f := strings.ReplaceAll(filename, ".", "-")
	return strings.ReplaceAll(f, "_", "-")
}

func isIP(s string) bool {
	return net.ParseIP(s) != nil
}
