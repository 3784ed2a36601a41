package factor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudshield/internal/feature"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
)

// mapEnv implements Env for tests.
type mapEnv map[string]float64

func (m mapEnv) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

func TestEval(t *testing.T) {
	env := mapEnv{"Amount": 1500, "V14": -6.2, "probability": 0.42}
	cases := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "gt true", expr: "Amount > 1000", want: true},
		{name: "gt false", expr: "Amount > 2000", want: false},
		{name: "gte equal", expr: "Amount >= 1500", want: true},
		{name: "negative literal", expr: "V14 < -5", want: true},
		{name: "eq", expr: "Amount == 1500", want: true},
		{name: "neq", expr: "Amount != 1500", want: false},
		{name: "literal on left", expr: "0.4 <= probability", want: true},
		{name: "exponent literal", expr: "Amount > 1.2e3", want: true},
		{name: "AND both true", expr: "Amount > 1000 AND V14 < -5", want: true},
		{name: "AND first false", expr: "Amount > 9000 AND V14 < -5", want: false},
		{name: "OR first true", expr: "Amount > 1000 OR missing > 1", want: true},
		{name: "OR both false", expr: "Amount < 10 or V14 > 0", want: false},
		{name: "NOT", expr: "NOT Amount > 2000", want: true},
		{name: "parens", expr: "(Amount < 10 OR V14 < 0) AND probability > 0.4", want: true},
		{name: "unknown identifier", expr: "missing > 10", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Parse(tc.expr)
			require.NoError(t, err, "Parse(%q)", tc.expr)
			got, err := Eval(e, env)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "Eval(%q)", tc.expr)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		``,
		`Amount 1000`,
		`Amount = 1000`,
		`(Amount > 1`,
		`Amount > 1 AND`,
		`Amount > "x"`,
		`Amount > 1 extra`,
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestCompile_Validation(t *testing.T) {
	_, err := Compile([]Rule{{Feature: "merchant", Impact: "High"}})
	assert.Error(t, err)

	_, err = Compile([]Rule{{Feature: "Amount"}})
	assert.Error(t, err)

	_, err = Compile([]Rule{{Feature: "Amount", Impact: "High", When: "Amount >"}})
	assert.Error(t, err)

	_, err = Compile([]Rule{{Feature: "V14", Impact: "High", When: "V14x < -5"}})
	assert.ErrorContains(t, err, `"V14x"`)

	_, err = Compile([]Rule{{Feature: "V14", Impact: "High", When: "NOT (v14 < -5 OR Probability > 0.5)"}})
	assert.NoError(t, err)
}

func TestIdentifiers(t *testing.T) {
	e, err := Parse("amount > 10 AND (V3 < probability OR NOT 1 == 2)")
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "V3", "probability"}, Identifiers(e))
}

func TestExplain_DefaultRules(t *testing.T) {
	s, err := Compile(DefaultRules())
	require.NoError(t, err)

	v, err := feature.Normalize(map[string]any{"amount": 149.62, "time": 406.0})
	require.NoError(t, err)

	got := s.Explain(v, 0.01, nil)
	assert.Equal(t, []prediction.Factor{
		{Feature: "Amount", Impact: "High", Value: 149.62},
		{Feature: "Time", Impact: "Medium", Value: 406},
	}, got)
}

func TestExplain_Conditional(t *testing.T) {
	s, err := Compile([]Rule{
		{Feature: "amount", Impact: "High", When: "amount > 1000"},
		{Feature: "V14", Impact: "High", When: "v14 < -5 AND probability >= 0.5"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	v, err := feature.Normalize(map[string]any{"amount": 50.0, "V14": -7.0})
	require.NoError(t, err)

	assert.Empty(t, s.Explain(v, 0.1, nil))

	got := s.Explain(v, 0.8, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "V14", got[0].Feature)
	assert.Equal(t, -7.0, got[0].Value)
}
