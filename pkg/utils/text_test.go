package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello...", Truncate("hello world", 5))
	assert.Equal(t, "x", Truncate("x", 0), "maxLen 0 returns as-is")
}

func TestHead_runes(t *testing.T) {
	assert.Equal(t, "Grü", Head("Grüße", 3))
	assert.Equal(t, "abc", Head("abc", 3))
	assert.Equal(t, "abc", Head("abc", -1))
}
