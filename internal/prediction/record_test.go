package prediction

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp_FixedWidthUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	a := FormatTimestamp(time.Date(2025, 1, 1, 1, 0, 0, 0, loc))
	b := FormatTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 500_000_000, time.UTC))

	assert.Equal(t, "2025-01-01T00:00:00.000000Z", a)
	assert.Equal(t, "2025-01-01T00:00:00.500000Z", b)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)
}

func TestScoreFor(t *testing.T) {
	tests := []struct {
		p    float64
		want Score
	}{
		{0, 0},
		{0.004, 0},
		{0.005, 0},
		{0.015, 2},
		{0.025, 2},
		{0.4568, 46},
		{0.999, 100},
		{1, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreFor(tt.p), "p=%v", tt.p)
	}
}

func TestScore_UnmarshalLegacyFloat(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"risk_score": 0.0734, "risk_level": "LOW"}`), &rec))
	assert.Equal(t, Score(0), rec.RiskScore)

	require.NoError(t, json.Unmarshal([]byte(`{"risk_score": 72}`), &rec))
	assert.Equal(t, Score(72), rec.RiskScore)

	assert.Error(t, json.Unmarshal([]byte(`{"risk_score": "high"}`), &rec))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.9, Confidence(0.1))
	assert.Equal(t, 0.7, Confidence(0.7))
	assert.Equal(t, 0.5, Confidence(0.5))
}

func TestRecord_OmitsStoreFieldsUntilSaved(t *testing.T) {
	b, err := json.Marshal(Record{ID: "a", Factors: []Factor{}})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sequence_number")
	assert.NotContains(t, string(b), "saved_at")
	assert.Contains(t, string(b), `"factors":[]`)
}
