package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

// ExtractIDFromParams retrieves a path parameter set by httprouter and strips a ".json" suffix.
func ExtractIDFromParams(r *http.Request, paramName string) string {
	params := httprouter.ParamsFromContext(r.Context())
	return strings.TrimSuffix(params.ByName(paramName), ".json")
}

// ExtractAgencyIDAndCodeID splits a combined id in the format `{agency_id}_{code_id}`.
func ExtractAgencyIDAndCodeID(combinedID string) (string, string, error) {
	parts := strings.SplitN(combinedID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid format: %s", combinedID)
	}
	return parts[0], parts[1], nil
}

// FormCombinedID forms a combined ID in the format `{agency_id}_{code_id}`.
func FormCombinedID(agencyID, codeID string) string {
	if codeID == "" || agencyID == "" {
		return ""
	}
	return agencyID + "_" + codeID
}

func invalidField(fieldErrors map[string][]string, key string) map[string][]string {
	if fieldErrors == nil {
		fieldErrors = make(map[string][]string)
	}
	fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
	return fieldErrors
}

// ParseFloatParam reads an optional float query parameter. Parse failures are
// recorded in fieldErrors, which is allocated on first use.
func ParseFloatParam(params url.Values, key string, fieldErrors map[string][]string) (float64, bool, map[string][]string) {
	val := params.Get(key)
	if val == "" {
		return 0, false, fieldErrors
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, invalidField(fieldErrors, key)
	}
	return f, true, fieldErrors
}

// ParseIntParam reads an optional integer query parameter.
func ParseIntParam(params url.Values, key string, fieldErrors map[string][]string) (int, bool, map[string][]string) {
	val := params.Get(key)
	if val == "" {
		return 0, false, fieldErrors
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, invalidField(fieldErrors, key)
	}
	return n, true, fieldErrors
}

// ParseBoolParam reads an optional boolean query parameter.
func ParseBoolParam(params url.Values, key string, fieldErrors map[string][]string) (bool, map[string][]string) {
	val := params.Get(key)
	if val == "" {
		return false, fieldErrors
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, invalidField(fieldErrors, key)
	}
	return b, fieldErrors
}

// ParseTimeParam reads a time given either as epoch milliseconds or as RFC 3339.
// An empty value yields now.
func ParseTimeParam(params url.Values, key string, now time.Time, loc *time.Location, fieldErrors map[string][]string) (time.Time, map[string][]string) {
	val := params.Get(key)
	if val == "" {
		return now.In(loc), fieldErrors
	}
	if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), fieldErrors
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.In(loc), fieldErrors
	}
	return time.Time{}, invalidField(fieldErrors, key)
}
