// pkg/registry/uri.go
package registry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultStage is the stage models are served from unless told otherwise
	DefaultStage = "Production"

	// StageLatest selects the highest version regardless of stage
	StageLatest = "latest"

	modelsScheme = "models:/"
)

// ErrInvalidModelURI is returned for URIs not of the form models:/<name>/<stage>
var ErrInvalidModelURI = errors.New("invalid model URI")

// FormatModelURI returns models:/<name>/<stage>. An empty stage means DefaultStage.
func FormatModelURI(name, stage string) string {
	if stage == "" {
		stage = DefaultStage
	}
	return modelsScheme + name + "/" + stage
}

// ParseModelURI splits models:/<name>/<stage> into its parts
func ParseModelURI(uri string) (name, stage string, err error) {
	rest, ok := strings.CutPrefix(uri, modelsScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q does not start with %s", ErrInvalidModelURI, uri, modelsScheme)
	}

	name, stage, ok = strings.Cut(strings.Trim(rest, "/"), "/")
	if !ok || name == "" || stage == "" || strings.Contains(stage, "/") {
		return "", "", fmt.Errorf("%w: %q, want models:/<name>/<stage>", ErrInvalidModelURI, uri)
	}
	return name, stage, nil
}
