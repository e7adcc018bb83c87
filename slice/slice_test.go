package slice

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Empty(t, Map([]int(nil), strconv.Itoa))
}

func TestCount(t *testing.T) {
	even := func(i int) bool { return i%2 == 0 }
	assert.Equal(t, 2, Count([]int{1, 2, 3, 4}, even))
	assert.Equal(t, 0, Count([]int(nil), even))
}
