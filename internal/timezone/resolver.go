package timezone

import (
	"fmt"

	"github.com/ringsaturn/tzf"
)

// Resolver maps a coordinate to an IANA timezone name.
type Resolver interface {
	Resolve(lat, lon float64) (string, bool)
}

type tzfResolver struct {
	finder tzf.F
}

// NewResolver builds a coordinate resolver backed by an embedded timezone
// boundary index. Construction is the expensive step; Resolve is cheap.
func NewResolver() (Resolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("initialize timezone finder: %w", err)
	}
	return &tzfResolver{finder: finder}, nil
}

func (r *tzfResolver) Resolve(lat, lon float64) (string, bool) {
	name := r.finder.GetTimezoneName(lon, lat)
	return name, name != ""
}
