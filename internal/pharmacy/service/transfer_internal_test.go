package service

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateTrackingNumber_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^TRF-\d+-[A-Z0-9]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tn := generateTrackingNumber()
		assert.Regexp(t, pattern, tn)
		seen[tn] = true
	}

	// The random suffix keeps same-second numbers distinct
	assert.Greater(t, len(seen), 95)
}
