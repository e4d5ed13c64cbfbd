package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Property keys used on nodes and relationships.
const (
	PropStationID  = "station_id"
	PropPlatformID = "platform_id"
	PropRouteID    = "route_id"
	PropMode       = "mode"
	PropHour       = "hour"
	PropLat        = "lat"
	PropLon        = "lon"
	PropName       = "name"

	PropCost         = "cost" // seconds
	PropDepTime      = "dep_time"
	PropDayOffset    = "day_offset"
	PropServiceID    = "service_id"
	PropTripIDs      = "trip_ids"
	PropStartDate    = "start_date"
	PropEndDate      = "end_date"
	PropDays         = "days"
	PropAddedDates   = "added_dates"
	PropRemovedDates = "removed_dates"
)

// Properties is the raw key/value map stored on an entity.
type Properties map[string]any

// NormalizeProps converts decoded values into the canonical storage types:
// integers become int64, floats float64, json.Number either of those.
func NormalizeProps(in map[string]any) (Properties, error) {
	out := make(Properties, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case int:
			out[k] = int64(x)
		case int32:
			out[k] = int64(x)
		case int64, float64, string, bool:
			out[k] = x
		case float32:
			out[k] = float64(x)
		case json.Number:
			if i, err := x.Int64(); err == nil {
				out[k] = i
			} else if f, err := x.Float64(); err == nil {
				out[k] = f
			} else {
				return nil, fmt.Errorf("property %s: %w", k, err)
			}
		case nil:
			return nil, fmt.Errorf("property %s: nil value", k)
		default:
			return nil, fmt.Errorf("property %s: unsupported type %T", k, v)
		}
	}
	return out, nil
}

func (p Properties) clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Properties) str(entity, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", NewStructuralError(entity, key, "missing")
	}
	s, ok := v.(string)
	if !ok {
		return "", NewStructuralError(entity, key, fmt.Sprintf("want string, got %T", v))
	}
	return s, nil
}

func (p Properties) int(entity, key string) (int64, error) {
	v, ok := p[key]
	if !ok {
		return 0, NewStructuralError(entity, key, "missing")
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, NewStructuralError(entity, key, fmt.Sprintf("want integer, got %v", x))
		}
		return int64(x), nil
	default:
		return 0, NewStructuralError(entity, key, fmt.Sprintf("want integer, got %T", v))
	}
}

func (p Properties) float(entity, key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, NewStructuralError(entity, key, "missing")
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, NewStructuralError(entity, key, fmt.Sprintf("want number, got %T", v))
	}
}

func (p Properties) date(entity, key string) (Date, error) {
	s, err := p.str(entity, key)
	if err != nil {
		return Date{}, err
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, &StructuralError{Entity: entity, Property: key, Reason: "bad date", Wrapped: err}
	}
	return d, nil
}

// dateList parses an optional comma separated list of dates.
func (p Properties) dateList(entity, key string) ([]Date, error) {
	if _, ok := p[key]; !ok {
		return nil, nil
	}
	s, err := p.str(entity, key)
	if err != nil {
		return nil, err
	}
	var out []Date
	for _, part := range splitList(s) {
		d, err := ParseDate(part)
		if err != nil {
			return nil, &StructuralError{Entity: entity, Property: key, Reason: "bad date", Wrapped: err}
		}
		out = append(out, d)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
