package core

import "strings"

// Convention identifies which of the partner's two calling schemes a method
// belongs to. The classification is derived from the method name and is not
// configurable per call.
type Convention string

const (
	// ConventionOpenPlatform is the legacy gateway: dot-separated method
	// names routed through the fixed /router/rest path, form/query encoded.
	ConventionOpenPlatform Convention = "open_platform"
	// ConventionCustom is the newer REST-like scheme: path-based method
	// names, JSON bodies, JSON-only responses.
	ConventionCustom Convention = "custom"
)

// ClassifyMethod resolves the convention from the method name's shape. A dot
// anywhere in the name marks an open-platform method; everything else is
// custom. Keep every convention branch behind this function.
func ClassifyMethod(method string) Convention {
	if strings.Contains(strings.TrimSpace(method), ".") {
		return ConventionOpenPlatform
	}
	return ConventionCustom
}
