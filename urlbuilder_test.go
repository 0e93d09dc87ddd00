package resilient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildURLResolvesRelativeAgainstBase(t *testing.T) {
	got, err := buildURL("https://api.example.com/v1", "/users/1", nil)
	assert.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/1", got)
}

func TestBuildURLAbsoluteIgnoresBase(t *testing.T) {
	got, err := buildURL("https://api.example.com", "https://other.example.com/x", nil)
	assert.NoError(t, err)
	assert.Equal(t, "https://other.example.com/x", got)
}

func TestBuildURLRejectsProtocolRelative(t *testing.T) {
	_, err := buildURL("https://api.example.com", "//evil.example.com/x", nil)
	assert.Error(t, err)
}

func TestBuildURLRejectsUnsupportedScheme(t *testing.T) {
	_, err := buildURL("", "ftp://example.com/x", nil)
	assert.Error(t, err)
}

func TestBuildURLRequiresBaseForRelative(t *testing.T) {
	_, err := buildURL("", "/x", nil)
	assert.Error(t, err)
}

func TestBuildURLAppendsSortedParams(t *testing.T) {
	got, err := buildURL("", "https://api.example.com/x", map[string]string{"b": "2", "a": "1"})
	assert.NoError(t, err)
	assert.Equal(t, "https://api.example.com/x?a=1&b=2", got)
}
