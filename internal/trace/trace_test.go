package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

type failingTracer struct{}

func (failingTracer) StartGame(context.Context, string, int) (Game, error) {
	return nil, errors.New("sink unavailable")
}

type endErrTracer struct{ ended *int }

func (t endErrTracer) StartGame(context.Context, string, int) (Game, error) {
	return endErrGame{ended: t.ended}, nil
}

type endErrGame struct {
	nopGame
	ended *int
}

func (g endErrGame) End(winner int) error {
	*g.ended = winner
	return errors.New("flush failed")
}

func TestLogger_WritesTracePoints(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tr := NewLogger(zap.New(core))

	g, err := tr.StartGame(context.Background(), "ABC123", 2)
	require.NoError(t, err)

	g.Score(1, 1, scoring.Category{Part: scoring.PartUpper, Index: 2}, 9)
	g.Forfeit(1, 2)
	g.PlayerDropped(2)
	g.PlayerTotal(1, 9)
	require.NoError(t, g.End(1))

	entries := logs.All()
	require.Len(t, entries, 6)
	assert.Equal(t, "new game", entries[0].Message)
	assert.Equal(t, "threes", entries[1].ContextMap()["category"])
	assert.Equal(t, "ABC123", entries[5].ContextMap()["table"])
}

func TestMulti_KeepsWorkingSinks(t *testing.T) {
	ended := 0
	m := Multi{failingTracer{}, endErrTracer{ended: &ended}, Nop{}}

	g, err := m.StartGame(context.Background(), "T", 2)
	require.Error(t, err)
	require.NotNil(t, g)

	g.Score(1, 1, scoring.Category{Part: scoring.PartLower, Index: scoring.Chance}, 20)
	err = g.End(3)
	require.Error(t, err)
	assert.Equal(t, 3, ended)
}
