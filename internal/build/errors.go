package build

import (
	"fmt"
	"strings"
)

// DuplicateError reports documents that resolve to the same slug or identifier.
type DuplicateError struct {
	Kind  string
	Key   string
	Paths []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q: %s", e.Kind, e.Key, strings.Join(e.Paths, ", "))
}
