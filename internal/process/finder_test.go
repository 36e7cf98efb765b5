package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchCmdline(t *testing.T) {
	families := []string{"Google Chrome for Testing", "Chromium"}
	tests := []struct {
		name    string
		cmdline string
		want    bool
	}{
		{"match", "/x/Chromium.app/Contents/MacOS/Chromium --user-data-dir=/p/work", true},
		{"cft", "/x/Google Chrome for Testing --user-data-dir=/p/work --no-first-run", true},
		{"no_profile", "/x/Chromium --user-data-dir=/p/other", false},
		{"no_family", "/usr/bin/vim /p/work/notes", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchCmdline(tt.cmdline, "/p/work", families))
		})
	}
	assert.False(t, MatchCmdline("Chromium /p/work", "", families))
}
