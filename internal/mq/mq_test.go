package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_normalizeName(t *testing.T) {
	assert := assert.New(t)

	name, err := normalizeName("/packager-out")
	assert.NoError(err)
	assert.Equal("packager-out", name)

	name, err = normalizeName("plogger-out")
	assert.NoError(err)
	assert.Equal("plogger-out", name)

	for _, invalid := range []string{"", "/", "a/b", "/a/b"} {
		_, err := normalizeName(invalid)
		assert.ErrorIs(err, ErrInvalidName, invalid)
	}
}
