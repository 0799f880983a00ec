package mcpserver

import (
	"fmt"

	"github.com/starford/flare/internal/flareservice"
)

// MatchingRules renders the matching rules for the given settings.
func MatchingRules(settings flareservice.Settings) string {
	return fmt.Sprintf(`# Flare Matching Rules

Distances are great-circle distances on a sphere of radius 6,371,000 m
(haversine formula), in meters.

## Association on create

1. Known places are checked in ascending ID order.
2. The first place at most %.0f m from the flare is associated with it.
   This is the first qualifying place, not necessarily the closest.
3. With no qualifying place the flare has no known place.
4. The association is fixed: editing a flare never re-evaluates it, and
   deleting a known place clears it on its flares.

## Nearby known places

1. Places strictly closer than the radius (default %.0f m) are returned.
2. Results are ordered nearest first; equal distances are ordered by ID.
3. Each result carries flare_count: the number of flares strictly closer
   than the radius to the place itself, not to the query point.
4. distance is rounded to the nearest whole meter.

## Input

Latitude must be within -90..90 and longitude within -180..180 degrees.
The radius must be a finite number that is not negative. Invalid input is
rejected with an error.
`, settings.MatchThreshold, settings.DefaultRadius)
}
