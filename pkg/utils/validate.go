package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultDestinationKey is the reserved destinations key used when no
// country-specific entry matches.
const DefaultDestinationKey = "default"

// LinkIDLength is the fixed length of a link identifier.
const LinkIDLength = 6

var (
	linkIDPattern      = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	countryCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// ValidateLinkID checks that a link identifier is fixed-length and URL safe.
func ValidateLinkID(linkID string) error {
	if linkID == "" {
		return fmt.Errorf("error.link_id_required")
	}

	if len(linkID) != LinkIDLength {
		return fmt.Errorf("error.link_id_length")
	}

	if !linkIDPattern.MatchString(linkID) {
		return fmt.Errorf("error.link_id_invalid")
	}

	return nil
}

// ValidateDestinationURL checks a destination URL.
func ValidateDestinationURL(destinationURL string) error {
	if destinationURL == "" {
		return fmt.Errorf("error.destination_url_required")
	}

	if _, err := url.ParseRequestURI(destinationURL); err != nil {
		return fmt.Errorf("error.destination_url_invalid")
	}

	if len(destinationURL) > 2048 {
		return fmt.Errorf("error.destination_url_max_length")
	}
	return nil
}

// ValidateDestinations checks a destinations mapping. The mapping must carry
// a "default" entry; every other key must be a two-letter country code and
// every value a valid URL.
func ValidateDestinations(destinations map[string]string) error {
	if len(destinations) == 0 {
		return fmt.Errorf("error.destinations_required")
	}

	if _, ok := destinations[DefaultDestinationKey]; !ok {
		return fmt.Errorf("error.destinations_default_required")
	}

	for key, dest := range destinations {
		if key != DefaultDestinationKey && !countryCodePattern.MatchString(key) {
			return fmt.Errorf("error.destinations_country_invalid")
		}
		if err := ValidateDestinationURL(dest); err != nil {
			return err
		}
	}

	return nil
}

// NormalizeDestinations upper-cases country keys so lookups stay
// case-insensitive. The default key is left as-is.
func NormalizeDestinations(destinations map[string]string) map[string]string {
	normalized := make(map[string]string, len(destinations))
	for key, dest := range destinations {
		if key == DefaultDestinationKey {
			normalized[key] = dest
			continue
		}
		normalized[strings.ToUpper(key)] = dest
	}
	return normalized
}
