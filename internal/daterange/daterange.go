// Package daterange resolves the symbolic date tokens the query
// generator emits ("TODAY", "MONTH_04/2025", ...) into concrete UTC
// [start, end) intervals and rewrites them into aggregation pipelines.
package daterange

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	TokenToday     = "TODAY"
	TokenYesterday = "YESTERDAY"
	TokenAllTime   = "ALL_TIME"

	PrefixSpecificDate = "SPECIFIC_DATE_"
	PrefixMonth        = "MONTH_"
	PrefixYear         = "YEAR_"
)

// DateField is the match-stage key placeholders appear under.
const DateField = "supplyDate"

// DayRange returns the UTC day containing t as [midnight, next midnight).
func DayRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Resolve maps a placeholder token to a half-open UTC interval.
// ok is false when the date filter should be dropped entirely
// (ALL_TIME, or a token matching no known shape). A token that matches
// a known prefix but carries an unparseable payload degrades to
// TODAY's interval rather than failing the turn.
func Resolve(token string, now time.Time) (start, end time.Time, ok bool) {
	switch {
	case token == TokenToday:
		start, end = DayRange(now)
		return start, end, true

	case token == TokenYesterday:
		start, end = DayRange(now.UTC().AddDate(0, 0, -1))
		return start, end, true

	case strings.HasPrefix(token, PrefixSpecificDate):
		datePart := token[len(PrefixSpecificDate):]
		parsed, err := time.Parse("02/01/2006", datePart)
		if err != nil {
			start, end = DayRange(now)
			return start, end, true
		}
		start = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1), true

	case strings.HasPrefix(token, PrefixMonth):
		monthPart := token[len(PrefixMonth):]
		parsed, err := time.Parse("01/2006", monthPart)
		if err != nil {
			start, end = DayRange(now)
			return start, end, true
		}
		start = time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), true

	case strings.HasPrefix(token, PrefixYear):
		year, err := strconv.Atoi(token[len(PrefixYear):])
		if err != nil {
			start, end = DayRange(now)
			return start, end, true
		}
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), true
	}

	// ALL_TIME and anything unrecognized: drop the filter.
	return time.Time{}, time.Time{}, false
}

// InjectDates returns a deep copy of pipeline with every $match stage
// whose supplyDate holds a string placeholder rewritten to a concrete
// {$gte, $lt} range, or with the constraint removed when Resolve says
// to drop it. The input pipeline is never mutated. Stages of any other
// shape pass through unchanged.
func InjectDates(pipeline []bson.M, now time.Time) []bson.M {
	cloned := make([]bson.M, 0, len(pipeline))
	for _, stage := range pipeline {
		cloned = append(cloned, deepCopyMap(stage))
	}

	for _, stage := range cloned {
		match, ok := asMap(stage["$match"])
		if !ok {
			continue
		}
		placeholder, ok := match[DateField].(string)
		if !ok {
			continue
		}
		if start, end, ok := Resolve(placeholder, now); ok {
			match[DateField] = bson.M{"$gte": start, "$lt": end}
		} else {
			delete(match, DateField)
		}
	}
	return cloned
}

// asMap accepts both bson.M and the map[string]interface{} shape that
// encoding/json produces for nested objects.
func asMap(v interface{}) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return m, true
	}
	return nil, false
}

func deepCopyMap(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return deepCopyMap(val)
	case map[string]interface{}:
		return deepCopyMap(val)
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
