// Package capability defines the boundary to the external rendering engines
// and the registry that routes render formats to them.
package capability
