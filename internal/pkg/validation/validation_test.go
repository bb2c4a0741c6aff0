package validation

import (
	"errors"
	"testing"

	"github.com/kapwanet/exchange/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string `json:"title" validate:"required,max=5"`
	Kind     string `json:"kind" validate:"required,oneof=request offer"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(sample{Title: "Bike", Kind: "offer"}))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Title: "Too long title", Kind: "gift", Quantity: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	var custom *apperrors.CustomError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, "title must be at most 5", custom.Details["title"])
	assert.Equal(t, "kind must be one of: request offer", custom.Details["kind"])
	assert.Equal(t, "quantity must be at least 1", custom.Details["quantity"])
}
