package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLikeValue(t *testing.T) {
	assert.Equal(t, `\%`, escapeLikeValue("%"))
	assert.Equal(t, `\_`, escapeLikeValue("_"))
	assert.Equal(t, `\\`, escapeLikeValue(`\`))

	// 组合转义
	assert.Equal(t, `\%rent\%`, escapeLikeValue("%rent%"))
	assert.Equal(t, `\\\%\_`, escapeLikeValue(`\%_`))

	assert.Equal(t, "", escapeLikeValue(""))
	assert.Equal(t, "coffee", escapeLikeValue("coffee"))
}

func TestLikePattern(t *testing.T) {
	p, ok := likePattern("  50%_off ")
	assert.True(t, ok)
	assert.Equal(t, `%50\%\_off%`, p)

	_, ok = likePattern("   ")
	assert.False(t, ok)
}
