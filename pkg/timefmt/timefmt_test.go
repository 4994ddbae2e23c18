package timefmt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "0:00", Format(0))
	assert.Equal(t, "0:00", Format(-5))
	assert.Equal(t, "0:00", Format(math.NaN()))
	assert.Equal(t, "0:00", Format(math.Inf(1)))
	assert.Equal(t, "0:07", Format(7.9))
	assert.Equal(t, "1:05", Format(65))
	assert.Equal(t, "59:59", Format(3599))
	assert.Equal(t, "1:00:00", Format(3600))
	assert.Equal(t, "2:05:09", Format(2*3600+5*60+9))
}
