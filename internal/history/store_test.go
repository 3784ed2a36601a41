package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudshield/internal/history"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "data", "history.json"), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func record(ts string, level risk.Level, fraud bool, score int) prediction.Record {
	return prediction.Record{
		Timestamp: ts,
		RiskLevel: level,
		IsFraud:   fraud,
		RiskScore: prediction.Score(score),
	}
}

func insertAll(t *testing.T, s *history.Store, recs ...prediction.Record) []prediction.Record {
	t.Helper()
	out := make([]prediction.Record, 0, len(recs))
	for _, r := range recs {
		saved, err := s.Insert(context.Background(), r)
		require.NoError(t, err)
		out = append(out, saved)
	}
	return out
}

func TestOpen_CreatesEmptyDocument(t *testing.T) {
	s := openStore(t)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"predictions": []}`, string(data))
}

func TestInsert_AssignsSequenceAndMetadata(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := history.Open(filepath.Join(t.TempDir(), "history.json"), nil,
		history.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer s.Close()

	saved := insertAll(t, s,
		record("2025-03-01T11:00:00.000000Z", risk.Low, false, 3),
		record("2025-03-01T11:00:01.000000Z", risk.High, true, 45),
	)

	assert.EqualValues(t, 1, saved[0].SequenceNumber)
	assert.EqualValues(t, 2, saved[1].SequenceNumber)
	assert.NotEmpty(t, saved[0].ID)
	assert.Equal(t, saved[0].ID, saved[0].TransactionID)
	assert.Equal(t, "2025-03-01T12:00:00.000000Z", saved[0].SavedAt)

	var doc struct {
		Predictions []map[string]any `json:"predictions"`
	}
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Predictions, 2)
	for _, key := range []string{"id", "transaction_id", "fraud_probability", "risk_score", "risk_level",
		"is_fraud", "confidence", "factors", "timestamp", "sequence_number", "saved_at"} {
		assert.Contains(t, doc.Predictions[0], key)
	}
}

func TestInsert_ConcurrentSequencing(t *testing.T) {
	s := openStore(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Insert(context.Background(), record(fmt.Sprintf("2025-01-01T00:00:%02d.000000Z", i), risk.Low, false, 1))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, n)

	seqs := make([]int, 0, n)
	for _, r := range all {
		seqs = append(seqs, int(r.SequenceNumber))
	}
	sort.Ints(seqs)
	for i, seq := range seqs {
		assert.Equal(t, i+1, seq)
	}
}

func TestClear_RestartsSequence(t *testing.T) {
	s := openStore(t)
	insertAll(t, s,
		record("2025-01-01T00:00:00.000000Z", risk.Low, false, 1),
		record("2025-01-02T00:00:00.000000Z", risk.Low, false, 1),
	)

	require.NoError(t, s.Clear(context.Background()))
	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	saved := insertAll(t, s, record("2025-01-03T00:00:00.000000Z", risk.Low, false, 1))
	assert.EqualValues(t, 1, saved[0].SequenceNumber)
}

func TestListAll_NewestFirst(t *testing.T) {
	s := openStore(t)
	insertAll(t, s,
		record("2025-01-02T00:00:00.000000Z", risk.Low, false, 1),
		record("", risk.Low, false, 1),
		record("2025-01-03T00:00:00.000000Z", risk.Low, false, 1),
		record("2025-01-01T00:00:00.000000Z", risk.Low, false, 1),
	)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	got := make([]string, 0, len(all))
	for _, r := range all {
		got = append(got, r.Timestamp)
	}
	assert.Equal(t, []string{
		"2025-01-03T00:00:00.000000Z",
		"2025-01-02T00:00:00.000000Z",
		"2025-01-01T00:00:00.000000Z",
		"",
	}, got)
}

func TestOpen_RecoversCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"predictions": [`), 0o644))

	s, err := history.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	saved := insertAll(t, s, record("2025-01-01T00:00:00.000000Z", risk.Low, false, 1))
	assert.EqualValues(t, 1, saved[0].SequenceNumber)
}

func TestReads_SurviveCorruptionAfterOpen(t *testing.T) {
	s := openStore(t)
	insertAll(t, s, record("2025-01-01T00:00:00.000000Z", risk.Low, false, 1))

	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	st, err := s.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalPredictions)

	saved := insertAll(t, s, record("2025-01-02T00:00:00.000000Z", risk.Low, false, 1))
	assert.EqualValues(t, 1, saved[0].SequenceNumber)
}

func TestLoad_AcceptsLegacyFractionalScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	legacy := `{"predictions": [{"transaction_id": "a", "risk_score": 12.6, "risk_level": "LOW",
		"timestamp": "2025-01-01T00:00:00", "sequence_number": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := history.Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, prediction.Score(13), all[0].RiskScore)

	saved := insertAll(t, s, record("2025-01-02T00:00:00.000000Z", risk.Low, false, 1))
	assert.EqualValues(t, 2, saved[0].SequenceNumber)
}

func TestClose_RejectsMutations(t *testing.T) {
	s, err := history.Open(filepath.Join(t.TempDir(), "history.json"), nil)
	require.NoError(t, err)
	s.Close()

	_, err = s.Insert(context.Background(), record("x", risk.Low, false, 1))
	assert.True(t, errors.Is(err, history.ErrClosed))
	assert.True(t, errors.Is(s.Clear(context.Background()), history.ErrClosed))

	_, err = s.ListAll(context.Background())
	assert.NoError(t, err)
}

func TestInsert_StorageFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := history.Open(filepath.Join(dir, "sub", "history.json"), nil)
	require.NoError(t, err)
	defer s.Close()

	// Replacing the directory with a file makes every read and write fail.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "sub")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub"), []byte("x"), 0o644))

	_, err = s.Insert(context.Background(), record("2025-01-01T00:00:00.000000Z", risk.Low, false, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, history.ErrStorageUnavailable))
}
