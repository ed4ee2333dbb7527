package bolt

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvberkel/pipster/pkg/order"
	"github.com/mvberkel/pipster/pkg/signal"
	"github.com/mvberkel/pipster/pkg/terminal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestRecordNew(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RecordNew("42:1", "EURUSD Long"))

	text, ok, err := s.Latest("42:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "EURUSD Long", text)

	err = s.RecordNew("42:1", "EURUSD Long")
	require.True(t, errors.Is(err, signal.ErrDuplicate))
}

func TestRecordEdit(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RecordNew("42:1", "SL: 1.1950"))

	outcome, _, err := s.RecordEdit("42:1", "SL: 1.1950")
	require.NoError(t, err)
	require.Equal(t, signal.Unchanged, outcome)

	outcome, previous, err := s.RecordEdit("42:1", "SL: 1.1960")
	require.NoError(t, err)
	require.Equal(t, signal.Revised, outcome)
	require.Equal(t, "SL: 1.1950", previous)

	text, ok, err := s.Latest("42:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SL: 1.1960", text)

	// A second revision appends again, versions stay in arrival order.
	outcome, previous, err = s.RecordEdit("42:1", "SL: 1.1970")
	require.NoError(t, err)
	require.Equal(t, signal.Revised, outcome)
	require.Equal(t, "SL: 1.1960", previous)
}

func TestRecordEditUntracked(t *testing.T) {
	s := newStore(t)
	outcome, _, err := s.RecordEdit("42:99", "whatever")
	require.NoError(t, err)
	require.Equal(t, signal.Untracked, outcome)

	_, ok, err := s.Latest("42:99")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOrderLog(t *testing.T) {
	s := newStore(t)
	at := time.Now().UTC()
	subs := []*order.Submission{
		{
			Time: at,
			Request: &terminal.Request{
				Symbol:    "GBPUSD",
				Direction: signal.Long,
				Price:     decimal.NewFromFloat(1.2000),
				Stop:      decimal.NewFromFloat(1.1950),
				Target:    decimal.NewFromFloat(1.2100),
				Volume:    decimal.NewFromFloat(0.32),
				Ref:       "GBPUSD1.2000",
			},
			Result: &terminal.Result{
				Price:  decimal.NewFromFloat(1.2000),
				Volume: decimal.NewFromFloat(0.32),
			},
		},
	}
	require.NoError(t, s.Append(at, subs))

	got, err := s.List(at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	require.Equal(t, "GBPUSD1.2000", got[0][0].Request.Ref)
	require.True(t, got[0][0].Result.Volume.Equal(decimal.NewFromFloat(0.32)))

	got, err = s.List(at.Add(time.Minute), at.Add(2*time.Minute))
	require.NoError(t, err)
	require.Empty(t, got)
}
