package service

import (
	"strings"

	"geolink-go/pkg/utils"
)

// UnknownCountry is the country recorded when the edge provides no
// geolocation header. It only ever matches the default destination.
const UnknownCountry = "unknown"

// SelectDestination picks the destination URL for a request country. An
// entry keyed by the exact country code (case-insensitive) wins; otherwise
// the reserved "default" entry is used. Pure and total: the destinations
// invariant guarantees a default entry, so there is no error path.
func SelectDestination(destinations map[string]string, country string) string {
	if country != "" && country != UnknownCountry {
		if dest, ok := destinations[country]; ok {
			return dest
		}
		if dest, ok := destinations[strings.ToUpper(country)]; ok {
			return dest
		}
		// Stored links carry upper-cased keys, but a cached snapshot written
		// before normalization may not. The scan only runs when both direct
		// lookups already missed.
		for key, dest := range destinations {
			if key != utils.DefaultDestinationKey && strings.EqualFold(key, country) {
				return dest
			}
		}
	}
	return destinations[utils.DefaultDestinationKey]
}
