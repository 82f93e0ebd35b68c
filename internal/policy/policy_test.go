package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchedDenylistTokens_CaseInsensitive(t *testing.T) {
	matched := MatchedDenylistTokens(Bash, "echo hi && RM -rf /tmp/x")
	assert.Contains(t, matched, "rm")
}

func TestHasAllowlistToken(t *testing.T) {
	assert.True(t, HasAllowlistToken(Bash, "ps aux | grep foo"))
	assert.False(t, HasAllowlistToken(Bash, "echo hello"))
}

func TestIsKnownPlatform(t *testing.T) {
	assert.True(t, IsKnownPlatform(PowerShell))
	assert.False(t, IsKnownPlatform(Platform("cobol")))
}
