package pageidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortAcrossSegments(t *testing.T) {
	out := sortAcrossSegments([][]int32{{7, 9}, {2, 5}})
	assert.Equal(t, [][]int32{{1, 2}, {5, 7}}, sortAcrossSegments([][]int32{{7, 1}, {2, 5}}))
	assert.Equal(t, [][]int32{{2, 5}, {7, 9}}, out)
}

func TestSortAcrossSegmentsKeepsLengths(t *testing.T) {
	out := sortAcrossSegments([][]int32{{9}, {4, 3, 8}, {}, {1, 2}})
	assert.Equal(t, [][]int32{{1}, {2, 3, 4}, {}, {8, 9}}, out)
}

func TestSortAcrossSegmentsDuplicates(t *testing.T) {
	out := sortAcrossSegments([][]int32{{5, 5, 2}, {2, 5}})
	assert.Equal(t, [][]int32{{2, 2, 5}, {5, 5}}, out)
}
