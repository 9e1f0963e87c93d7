package version

import (
	"regexp"
	"testing"

	"github.com/fatih/color"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func withVersion(t *testing.T, v, commit string) {
	t.Helper()
	origV, origC := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origV, origC })
	Version, GitCommit = v, commit
}

func TestColored(t *testing.T) {
	origNoColor := color.NoColor
	t.Cleanup(func() { color.NoColor = origNoColor })

	cases := []struct{ in, want string }{
		{"1.2.3", "1.2.3"},
		{"1.2.3-rc.1+build.7", "1.2.3-rc.1+build.7"},
		{" 0.1.0-dev\n", "0.1.0-dev"},
		{"dev", "dev"}, // не semver: как есть
		{"1.2", "1.2"},
	}
	for _, tc := range cases {
		withVersion(t, tc.in, "")

		color.NoColor = true
		if got := Colored(); got != tc.want {
			t.Errorf("Colored(%q) = %q, want %q", tc.in, got, tc.want)
		}

		color.NoColor = false
		got := Colored()
		if plain := ansi.ReplaceAllString(got, ""); plain != tc.want {
			t.Errorf("Colored(%q) without escapes = %q, want %q", tc.in, plain, tc.want)
		}
	}

	// суффикс остаётся без цвета
	withVersion(t, "1.2.3-rc.1", "")
	color.NoColor = false
	if got := Colored(); !regexp.MustCompile(`m-rc\.1$`).MatchString(got) {
		t.Errorf("suffix coloured: %q", got)
	}
}

func TestFull(t *testing.T) {
	cases := []struct{ version, commit, want string }{
		{"0.2.0", "", "krait 0.2.0"},
		{"0.2.0", "abc123", "krait 0.2.0 (abc123)"},
		{"0.2.0", "1234567890abcdef", "krait 0.2.0 (1234567890ab)"},
		{" 0.2.0 ", "  ", "krait 0.2.0"},
	}
	for _, tc := range cases {
		withVersion(t, tc.version, tc.commit)
		if got := Full(); got != tc.want {
			t.Errorf("Full(%q, %q) = %q, want %q", tc.version, tc.commit, got, tc.want)
		}
	}
}

func TestInfoPrefersLdflags(t *testing.T) {
	withVersion(t, " 1.4.0 ", "feedface")
	origD := BuildDate
	t.Cleanup(func() { BuildDate = origD })
	BuildDate = "2026-01-02"

	info := Info()
	if info.Version != "1.4.0" {
		t.Fatalf("version = %q", info.Version)
	}
	// значения из ldflags не перетираются vcs-данными
	if info.Commit != "feedface" || info.Date != "2026-01-02" {
		t.Fatalf("info = %+v", info)
	}
	if info.GoVersion == "" {
		t.Fatal("go version missing")
	}
}
