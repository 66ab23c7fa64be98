package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(1))
	assert.NoError(t, Validate(1<<40))

	assert.ErrorIs(t, Validate(0), ErrInvalidTenant)
	assert.ErrorIs(t, Validate(-1), ErrInvalidTenant)
}
