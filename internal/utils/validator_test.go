package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fundus-go/internal/intake"
)

type uploadName struct {
	Left  string `validate:"fundus_left"`
	Right string `validate:"fundus_right"`
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("12_left.JPEG", intake.SideLeft))
	assert.NoError(t, ValidateFilename("0_right.png", intake.SideRight))

	for _, name := range []string{"", "left.jpg", "1_right.jpg", "1_left.gif", "a1_left.jpg"} {
		err := ValidateFilename(name, intake.SideLeft)
		assert.ErrorIs(t, err, intake.ErrInvalidFilename, name)
	}
}

func TestBindingMessage(t *testing.T) {
	assert.NoError(t, GetValidator().Struct(uploadName{Left: "1_left.jpg", Right: "1_right.jpg"}))

	err := GetValidator().Struct(uploadName{Left: "1_right.jpg", Right: "1_left.jpg"})
	assert.Equal(t, "Left必须形如 0_left.jpg; Right必须形如 0_right.jpg", BindingMessage(err))
}
