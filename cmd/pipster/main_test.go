package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRunGateDefault(t *testing.T) {
	// The heat gate stays opt-in until its arithmetic is confirmed.
	f := newRunCommand().FlagSet.Lookup("gate")
	require.NotNil(t, f)
	require.Equal(t, "open", f.DefValue)
}

func TestSourcesFlag(t *testing.T) {
	s := sourcesFlag{}
	require.NoError(t, s.Set("42=pipbuilder"))
	require.NoError(t, s.Set("77=goldzone"))
	require.Equal(t, "pipbuilder", s[42])
	require.Equal(t, "goldzone", s[77])

	require.Error(t, s.Set("pipbuilder"))
	require.Error(t, s.Set("abc=pipbuilder"))
}

func TestQuotesFlag(t *testing.T) {
	q := quotesFlag{}
	require.NoError(t, q.Set("eurusd=1.1998/1.2000"))
	ba, ok := q["EURUSD"]
	require.True(t, ok)
	require.True(t, ba[0].Equal(decimal.NewFromFloat(1.1998)), "bid %s", ba[0])
	require.True(t, ba[1].Equal(decimal.NewFromFloat(1.2000)), "ask %s", ba[1])

	require.Error(t, q.Set("EURUSD"))
	require.Error(t, q.Set("EURUSD=1.2"))
	require.Error(t, q.Set("EURUSD=x/1.2"))
}
