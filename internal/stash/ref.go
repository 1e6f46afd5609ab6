package stash

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/raphaelgruber/framegrab/internal/pipeline"
)

var pageURLPattern = regexp.MustCompile(`/(scenes|images)/(\d+)`)

// ParseSceneRef accepts a bare id or a page URL containing /scenes/<id> or
// /images/<id> and returns the id.
func ParseSceneRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty scene reference", pipeline.ErrInput)
	}
	if _, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return ref, nil
	}
	if m := pageURLPattern.FindStringSubmatch(ref); m != nil {
		return m[2], nil
	}
	return "", fmt.Errorf("%w: %q is not a scene id or scene URL", pipeline.ErrInput, ref)
}
