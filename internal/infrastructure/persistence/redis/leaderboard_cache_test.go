package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeScore_OrdersByPointsThenXP(t *testing.T) {
	a := CompositeScore(1000, 500)
	b := CompositeScore(1000, 800)
	c := CompositeScore(1001, 0)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, CompositeScore(5, 5), CompositeScore(5, 5))
}

func TestCompositeScore_SaturatesXP(t *testing.T) {
	assert.Less(t, CompositeScore(10, 50_000_000), CompositeScore(11, 0))
	assert.Equal(t, CompositeScore(3, 0), CompositeScore(3, -4))
}

func TestDecodeScore(t *testing.T) {
	points, xp := DecodeScore(CompositeScore(2500, 1234))
	assert.Equal(t, 2500, points)
	assert.Equal(t, 1234, xp)

	points, xp = DecodeScore(CompositeScore(0, 0))
	assert.Equal(t, 0, points)
	assert.Equal(t, 0, xp)
}

func TestScoresKey(t *testing.T) {
	assert.Equal(t, "leaderboard:scores:all", scoresKey(""))
	assert.Equal(t, "leaderboard:scores:league:Gold", scoresKey("Gold"))
}
