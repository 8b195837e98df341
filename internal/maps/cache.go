package maps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb"
)

// Planner turns an ordered waypoint list into a route plan.
type Planner interface {
	Plan(ctx context.Context, waypoints []orb.Point) (*Plan, error)
}

// CachedPlanner memoizes successful plans keyed by waypoint list. Failures are
// never cached.
type CachedPlanner struct {
	next  Planner
	cache *expirable.LRU[string, *Plan]
}

// NewCachedPlanner wraps next with an LRU of size entries that expire after ttl.
func NewCachedPlanner(next Planner, size int, ttl time.Duration) *CachedPlanner {
	return &CachedPlanner{
		next:  next,
		cache: expirable.NewLRU[string, *Plan](size, nil, ttl),
	}
}

func (c *CachedPlanner) Plan(ctx context.Context, waypoints []orb.Point) (*Plan, error) {
	key := waypointKey(waypoints)
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := c.next.Plan(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, p)
	return p, nil
}

// Len reports the number of cached plans.
func (c *CachedPlanner) Len() int { return c.cache.Len() }

// waypointKey quantizes to 1e-6 degrees so fixes differing by float noise share an entry.
func waypointKey(waypoints []orb.Point) string {
	var b strings.Builder
	for i, wp := range waypoints {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.6f,%.6f", wp.Lon(), wp.Lat())
	}
	return b.String()
}
