package domain

import (
	"strconv"
	"strings"
)

// Metadata keys the pipeline reads. Everything else passes through untouched.
const (
	MetaName        = "name"
	MetaType        = "type"
	MetaCity        = "city"
	MetaLocation    = "location"
	MetaRegion      = "region"
	MetaDescription = "description"
	MetaTags        = "tags"
)

// LocationKeys lists metadata fields holding a place name, in priority order.
var LocationKeys = []string{MetaCity, MetaLocation, MetaRegion}

// Metadata is an open mapping of string to variant scalar (string, number, bool)
// as returned by upstream services.
type Metadata map[string]any

// String narrows a scalar field to its string form. Non-scalars and empty
// strings report ok=false.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Get returns the string form of key, or "" when absent.
func (m Metadata) Get(key string) string {
	s, _ := m.String(key)
	return s
}

// Location returns the first populated location field (city, location, region).
func (m Metadata) Location() (string, bool) {
	for _, k := range LocationKeys {
		if s, ok := m.String(k); ok {
			return s, true
		}
	}
	return "", false
}

// Clone returns a shallow copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies keys from other that are missing in m.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		m = make(Metadata, len(other))
	}
	for k, v := range other {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return m
}
