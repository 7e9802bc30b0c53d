package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "dealer-answer"

// CacheKey identifies a cached response.
type CacheKey struct {
	// Endpoint is the request path relative to the service base URL
	// (e.g., "/ds-1/vehicles/42").
	Endpoint string

	// QueryParams are the query parameters, if any.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: dealer-answer:ds-1/vehicles/42:query1=val1
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// Cacheable reports whether a GET to endpoint may be served from cache.
// "/datasetId" hands out a new dataset per call.
func Cacheable(method, endpoint string) bool {
	if method != "GET" {
		return false
	}
	trimmed := strings.Trim(endpoint, "/")
	if trimmed == "" || trimmed == "datasetId" {
		return false
	}
	return true
}
