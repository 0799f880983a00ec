package store

import (
	"context"
	"fmt"

	"github.com/starford/flare/internal/geo"
)

// latitudeSlack widens the SQL prefilter band to absorb floating-point error
// in the stored coordinates.
const latitudeSlack = 1e-9

// CountWithin counts flares strictly closer than radius meters to center.
// Candidates are narrowed in SQL to the latitude band the radius can reach;
// the exact haversine check runs on the remainder. Longitude is not
// prefiltered so the count stays correct near the poles and the antimeridian.
func (db *DB) CountWithin(ctx context.Context, center geo.Point, radius float64) (int, error) {
	span := geo.LatitudeSpan(radius) + latitudeSlack
	rows, err := db.conn.QueryContext(ctx, `
		SELECT latitude, longitude FROM flares WHERE latitude BETWEEN ? AND ?
	`, center.Latitude-span, center.Latitude+span)
	if err != nil {
		return 0, fmt.Errorf("store: count flares: %w", err)
	}
	defer rows.Close()

	pts, err := scanPoints(rows)
	if err != nil {
		return 0, fmt.Errorf("store: count flares: %w", err)
	}
	n := 0
	for _, p := range pts {
		if geo.Distance(center, p) < radius {
			n++
		}
	}
	return n, nil
}
