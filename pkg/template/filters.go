package template

import (
	"fmt"

	"github.com/sansible/sansible/pkg/filter"
)

// filterSet adapts pkg/filter's FilterManager to the fixed filter set
// spec §4.2 requires, applying a couple of Jinja-specific default
// argument conventions (join's default separator, e.g.) that the
// generic filter plugins don't assume on their own.
type filterSet struct {
	manager *filter.FilterManager
}

func newFilterSet() *filterSet {
	return &filterSet{manager: filter.NewFilterManager()}
}

func (fs *filterSet) apply(name string, input interface{}, args []interface{}) (interface{}, error) {
	if name == "join" && len(args) == 0 {
		args = []interface{}{","}
	}

	result, err := fs.manager.Apply(name, input, args...)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", name, err)
	}
	return result, nil
}
