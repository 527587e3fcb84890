package intake

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		side Side
		want bool
	}{
		{"0_left.jpg", SideLeft, true},
		{"12_left.jpeg", SideLeft, true},
		{"7_left.png", SideLeft, true},
		{"3_LEFT.PNG", SideLeft, true},
		{"3_Left.JpEg", SideLeft, true},
		{"0_right.jpg", SideRight, true},
		{"0_right.jpg", SideLeft, false},
		{"0_left.jpg", SideRight, false},
		{"left.jpg", SideLeft, false},
		{"_left.jpg", SideLeft, false},
		{"a1_left.jpg", SideLeft, false},
		{"1_left.gif", SideLeft, false},
		{"1_left.jpg.png", SideLeft, false},
		{"1_left_.jpg", SideLeft, false},
		{" 1_left.jpg", SideLeft, false},
		{"1-left.jpg", SideLeft, false},
		{"1_left.jpg", Side("both"), false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.side, tt.name), func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.name, tt.side))
		})
	}
}

func TestExtractIndex_RecoversLeadingInteger(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 42, 999, 123456} {
		for _, side := range []Side{SideLeft, SideRight} {
			for _, ext := range []string{"jpg", "JPEG", "png"} {
				name := fmt.Sprintf("%d_%s.%s", n, side, ext)
				require.True(t, Validate(name, side), name)
				got, ok := ExtractIndex(name)
				require.True(t, ok, name)
				assert.Equal(t, n, got, name)
			}
		}
	}
}

func TestExtractIndex_LeadingZeros(t *testing.T) {
	got, ok := ExtractIndex("007_left.jpg")
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestExtractIndex_NotFound(t *testing.T) {
	for _, name := range []string{"", "left.jpg", "_left.jpg", "x_left.jpg", "99999999999999999999999_left.jpg"} {
		_, ok := ExtractIndex(name)
		assert.False(t, ok, name)
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" Right ")
	require.NoError(t, err)
	assert.Equal(t, SideRight, s)

	_, err = ParseSide("middle")
	assert.Error(t, err)
}

func TestBatchErrorMessage(t *testing.T) {
	err := &BatchError{Side: SideLeft, File: "a.jpg", Err: ErrInvalidFilename}
	assert.Contains(t, err.Error(), "a.jpg")
	assert.Contains(t, err.Error(), "左眼")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}
