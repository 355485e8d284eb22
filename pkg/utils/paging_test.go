package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"community-moderation/pkg/constants"
)

func TestClampPaging(t *testing.T) {
	assert := assert.New(t)

	limit, offset := ClampPaging(50, 10)
	assert.Equal(50, limit)
	assert.Equal(10, offset)

	limit, offset = ClampPaging(0, -5)
	assert.Equal(constants.DefaultPageLimit, limit)
	assert.Equal(0, offset)

	limit, _ = ClampPaging(10000, 0)
	assert.Equal(constants.MaxPageLimit, limit)
}
