package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFlowCompare_IsTextual(t *testing.T) {
	tests := []struct {
		a, b StatusFlow
		want int
	}{
		{"2", "3", -1},
		{"3", "3", 0},
		{"4", "3", 1},
		{"10", "3", -1}, // text ordering, not numeric
		{"", "3", -1},
	}

	for _, tt := range tests {
		got, err := tt.a.Compare(tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
	}
}

func TestStatusFlowCompare_OtherTypes(t *testing.T) {
	three := StatusFlow("3")

	got, err := StatusFlow("2").Compare(&three)
	require.NoError(t, err)
	assert.Equal(t, -1, got)

	got, err = StatusFlow("3").Compare("3")
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = StatusFlow("3").Compare(3)
	assert.Error(t, err)
}

func TestStatusFlowStageAndDisplay(t *testing.T) {
	n, ok := StatusFlow("3").Stage()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = StatusFlow("done").Stage()
	assert.False(t, ok)

	assert.Equal(t, "NA", StatusFlow("").Display())
	assert.Equal(t, "2", StatusFlow("2").Display())
}
