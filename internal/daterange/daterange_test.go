package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

var now = time.Date(2025, time.April, 15, 13, 42, 7, 0, time.UTC)

func TestResolveRelativeTokens(t *testing.T) {
	start, end, ok := Resolve(TokenToday, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC), end)

	start, end, ok = Resolve(TokenYesterday, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), end)
}

func TestResolveAbsoluteTokens(t *testing.T) {
	tests := []struct {
		token string
		start time.Time
		end   time.Time
	}{
		{"SPECIFIC_DATE_14/04/2025", time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"SPECIFIC_DATE_31/12/2024", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"MONTH_02/2024", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"MONTH_12/2024", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"YEAR_2023", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			start, end, ok := Resolve(tc.token, now)
			require.True(t, ok)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestResolveIntervalWellFormed(t *testing.T) {
	tokens := []string{
		TokenToday, TokenYesterday,
		"SPECIFIC_DATE_14/04/2025", "MONTH_02/2024", "YEAR_2023",
	}
	for _, token := range tokens {
		start, end, ok := Resolve(token, now)
		require.True(t, ok, token)
		assert.True(t, start.Before(end), token)
		assert.Equal(t, time.UTC, start.Location(), token)
		assert.Zero(t, start.Hour(), token)
		assert.Zero(t, start.Minute(), token)
		assert.Zero(t, end.Hour(), token)
	}
}

func TestResolveMalformedPayloadFallsBackToToday(t *testing.T) {
	todayStart, todayEnd, _ := Resolve(TokenToday, now)
	for _, token := range []string{
		"SPECIFIC_DATE_99/99/2025",
		"SPECIFIC_DATE_banana",
		"MONTH_13/2025",
		"MONTH_x/2025",
		"YEAR_abc",
	} {
		start, end, ok := Resolve(token, now)
		require.True(t, ok, token)
		assert.Equal(t, todayStart, start, token)
		assert.Equal(t, todayEnd, end, token)
	}
}

func TestResolveDropTokens(t *testing.T) {
	for _, token := range []string{TokenAllTime, "LAST_WEEK", "whatever"} {
		_, _, ok := Resolve(token, now)
		assert.False(t, ok, token)
	}
}

func TestInjectDatesRewritesMatchStage(t *testing.T) {
	pipeline := []bson.M{
		{"$match": bson.M{"supplyDate": "MONTH_02/2024", "product": bson.M{"$regex": "gasolina", "$options": "i"}}},
		{"$group": bson.M{"_id": "$employeeName", "totalSalesValue": bson.M{"$sum": "$value"}}},
		{"$sort": bson.M{"totalSalesValue": -1}},
		{"$limit": 1},
	}

	out := InjectDates(pipeline, now)
	require.Len(t, out, 4)

	match := out[0]["$match"].(bson.M)
	rng, ok := match["supplyDate"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), rng["$gte"])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rng["$lt"])

	// untouched keys and stages survive as-is
	assert.Equal(t, bson.M{"$regex": "gasolina", "$options": "i"}, match["product"])
	assert.Equal(t, pipeline[1], out[1])
	assert.Equal(t, pipeline[3], out[3])

	// the input still holds the placeholder
	assert.Equal(t, "MONTH_02/2024", pipeline[0]["$match"].(bson.M)["supplyDate"])
}

func TestInjectDatesDropsAllTimeFilter(t *testing.T) {
	pipeline := []bson.M{
		{"$match": bson.M{"supplyDate": "ALL_TIME", "product": "ETANOL ADITIVADO"}},
	}
	out := InjectDates(pipeline, now)
	match := out[0]["$match"].(bson.M)
	_, present := match["supplyDate"]
	assert.False(t, present)
	assert.Equal(t, "ETANOL ADITIVADO", match["product"])
}

func TestInjectDatesHandlesJSONDecodedStages(t *testing.T) {
	// stages decoded from model JSON carry plain map[string]interface{}
	pipeline := []bson.M{
		{"$match": map[string]interface{}{"supplyDate": "YEAR_2023"}},
	}
	out := InjectDates(pipeline, now)
	match, ok := asMap(out[0]["$match"])
	require.True(t, ok)
	rng := match["supplyDate"].(bson.M)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), rng["$gte"])
}

func TestInjectDatesIgnoresConcreteDates(t *testing.T) {
	rng := bson.M{"$gte": now, "$lt": now.AddDate(0, 0, 1)}
	pipeline := []bson.M{{"$match": bson.M{"supplyDate": rng}}}
	out := InjectDates(pipeline, now)
	assert.Equal(t, rng, out[0]["$match"].(bson.M)["supplyDate"])
}

func TestInjectDatesIdempotentForAbsoluteTokens(t *testing.T) {
	pipeline := []bson.M{
		{"$match": bson.M{"supplyDate": "SPECIFIC_DATE_14/04/2025"}},
	}
	first := InjectDates(pipeline, now)
	second := InjectDates(pipeline, now.Add(48*time.Hour))
	assert.Equal(t, first, second)
}
