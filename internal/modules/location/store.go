// README: Location mirror backed by Redis GEO and a latest-fix hash.
package location

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"livenav/internal/types"
)

const (
	geoKey    = "nav:positions"
	latestKey = "nav:latest"
	// latestMember names the GEO member for fixes that carry no route id.
	latestMember = "latest"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// Save writes the fix to the latest-fix hash and the GEO set in one transaction.
func (s *Store) Save(ctx context.Context, f Fix) error {
	member := latestMember
	if f.RouteID != "" {
		member = string(f.RouteID)
	}
	fields := map[string]interface{}{
		"lon":      strconv.FormatFloat(f.Position.Lon(), 'f', -1, 64),
		"lat":      strconv.FormatFloat(f.Position.Lat(), 'f', -1, 64),
		"route_id": string(f.RouteID),
		"ts_ms":    f.RecordedAt.UnixMilli(),
		"yaw":      "",
	}
	if f.Yaw != nil {
		fields["yaw"] = strconv.FormatFloat(*f.Yaw, 'f', -1, 64)
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, latestKey, fields)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      member,
		Longitude: f.Position.Lon(),
		Latitude:  f.Position.Lat(),
	})
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns the mirrored latest fix, or ErrNoFix when none was saved.
func (s *Store) Load(ctx context.Context) (*Fix, error) {
	vals, err := s.redis.HGetAll(ctx, latestKey).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrNoFix
	}

	lon, err := strconv.ParseFloat(vals["lon"], 64)
	if err != nil {
		return nil, errors.New("corrupt latest fix: lon")
	}
	lat, err := strconv.ParseFloat(vals["lat"], 64)
	if err != nil {
		return nil, errors.New("corrupt latest fix: lat")
	}
	f := &Fix{
		Position: orb.Point{lon, lat},
		RouteID:  types.ID(vals["route_id"]),
	}
	if ms, err := strconv.ParseInt(vals["ts_ms"], 10, 64); err == nil {
		f.RecordedAt = time.UnixMilli(ms)
	}
	if v := vals["yaw"]; v != "" {
		if yaw, err := strconv.ParseFloat(v, 64); err == nil {
			f.Yaw = &yaw
		}
	}
	return f, nil
}

// Position returns the last GEO position stored for a route id.
func (s *Store) Position(ctx context.Context, routeID types.ID) (orb.Point, bool, error) {
	pos, err := s.redis.GeoPos(ctx, geoKey, string(routeID)).Result()
	if err != nil {
		return orb.Point{}, false, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return orb.Point{}, false, nil
	}
	return orb.Point{pos[0].Longitude, pos[0].Latitude}, true, nil
}
