package version_test

import (
	"strings"
	"testing"

	"github.com/edumarques81/stellar-nowplaying/internal/version"
)

func TestGetInfo(t *testing.T) {
	info := version.GetInfo()

	if info.Name != version.Name {
		t.Errorf("expected name %q, got %q", version.Name, info.Name)
	}
	if info.Version != version.Version {
		t.Errorf("expected version %q, got %q", version.Version, info.Version)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name   string
		info   version.Info
		expect string
	}{
		{"no commit", version.Info{Name: "App", Version: "1.2.3"}, "App v1.2.3"},
		{"long commit is shortened", version.Info{Name: "App", Version: "1.2.3", GitCommit: "abcdef0123456"}, "App v1.2.3 (abcdef0)"},
		{"short commit kept", version.Info{Name: "App", Version: "1.2.3", GitCommit: "abc"}, "App v1.2.3 (abc)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.expect {
				t.Errorf("String() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	ua := version.UserAgent()
	if !strings.HasSuffix(ua, "/"+version.Version) {
		t.Errorf("UserAgent() = %q, expected version suffix", ua)
	}
}
