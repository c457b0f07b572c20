package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUserID(t *testing.T) {
	checksummed := "0x52908400098527886E0F7030069857D2E4169EE7"

	assert.Equal(t, checksummed, NormalizeUserID("0x52908400098527886e0f7030069857d2e4169ee7"))
	assert.Equal(t, checksummed, NormalizeUserID(checksummed))
	assert.Equal(t, "user-42", NormalizeUserID("user-42"))
}
