package timer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXTimer(t *testing.T) {
	tm := NewXTimer()
	tm.Mark("build")
	tm.Mark("execute")

	points := tm.Points()
	assert.Len(t, points, 2)
	assert.Equal(t, "build", points[0].Tag)
	assert.Equal(t, "execute", points[1].Tag)

	out := tm.Print()
	assert.True(t, strings.HasPrefix(out, "build:"))
	assert.Contains(t, out, ",execute:")
	assert.Contains(t, out, ",total:")
	assert.GreaterOrEqual(t, tm.Total(), points[0].Delta)
}
