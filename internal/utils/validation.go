package utils

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// alphanumeric, underscore, hyphen, dot: common in transit IDs
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// ValidateID validates that an ID is safe and within reasonable limits
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}
	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}
	return nil
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateLocation collects coordinate errors under the given field names.
func ValidateLocation(latField, lonField string, lat, lon float64, fieldErrors map[string][]string) map[string][]string {
	if err := ValidateLatitude(lat); err != nil {
		if fieldErrors == nil {
			fieldErrors = make(map[string][]string)
		}
		fieldErrors[latField] = append(fieldErrors[latField], err.Error())
	}
	if err := ValidateLongitude(lon); err != nil {
		if fieldErrors == nil {
			fieldErrors = make(map[string][]string)
		}
		fieldErrors[lonField] = append(fieldErrors[lonField], err.Error())
	}
	return fieldErrors
}

// SanitizeInput removes HTML tags and surrounding whitespace
func SanitizeInput(input string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(input, ""))
}
