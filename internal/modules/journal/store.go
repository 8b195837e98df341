// README: Route event store backed by PostgreSQL.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"livenav/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) AppendEvent(ctx context.Context, e Event) error {
	var lon, lat *float64
	if e.Position != nil {
		lo, la := e.Position.Lon(), e.Position.Lat()
		lon, lat = &lo, &la
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO route_events (
            route_id, kind, revision, detail, lon, lat, distance_m, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.RouteID),
		string(e.Kind),
		e.Revision,
		e.Detail,
		lon, lat,
		e.DistanceM,
		createdAt,
	)
	return err
}

// ListByRoute returns the newest limit events of a route, oldest first.
func (s *Store) ListByRoute(ctx context.Context, routeID types.ID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, route_id, kind, revision, detail, lon, lat, distance_m, created_at
        FROM (
            SELECT * FROM route_events
            WHERE route_id = $1
            ORDER BY id DESC
            LIMIT $2
        ) recent
        ORDER BY id ASC`, string(routeID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var id, kind string
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&e.ID, &id, &kind, &e.Revision, &e.Detail, &lon, &lat, &e.DistanceM, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RouteID = types.ID(id)
		e.Kind = Kind(kind)
		if lon.Valid && lat.Valid {
			p := orb.Point{lon.Float64, lat.Float64}
			e.Position = &p
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
