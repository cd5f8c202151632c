package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveRootFolderPrecedence(t *testing.T) {
	t.Setenv(envRootFolderPrimary, "")
	t.Setenv(envRootFolderShorthand, "")

	got, err := resolveRootFolder("/cli/override")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/cli/override" {
		t.Errorf("expected CLI value to win, got %q", got)
	}
}

func TestResolveRootFolderEnvPrimaryBeatsShorthand(t *testing.T) {
	t.Setenv(envRootFolderPrimary, "/env/primary")
	t.Setenv(envRootFolderShorthand, "/env/shorthand")

	got, err := resolveRootFolder("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/env/primary" {
		t.Errorf("expected primary env var to win over shorthand, got %q", got)
	}
}

func TestResolveRootFolderShorthandEnv(t *testing.T) {
	t.Setenv(envRootFolderPrimary, "")
	t.Setenv(envRootFolderShorthand, "/env/shorthand")

	got, err := resolveRootFolder("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/env/shorthand" {
		t.Errorf("expected shorthand env var fallback, got %q", got)
	}
}

func TestResolveRootFolderCompiledDefault(t *testing.T) {
	t.Setenv(envRootFolderPrimary, "")
	t.Setenv(envRootFolderShorthand, "")

	got, err := resolveRootFolder("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == "" {
		t.Error("expected a non-empty compiled default")
	}
	if runtime.GOOS != "windows" && filepath.Base(got) != "Music" && filepath.Base(got) != "wkmp_data" {
		t.Errorf("unexpected compiled default shape: %q", got)
	}
}

func TestLoadMissingTOMLIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	settings, err := Load(BootstrapOptions{RootFolder: dir})
	if err != nil {
		t.Fatalf("missing TOML file must not be an error: %v", err)
	}
	if settings.Audio.SampleRate != 44100 {
		t.Errorf("expected compiled default sample rate, got %d", settings.Audio.SampleRate)
	}
	if settings.DBPath != filepath.Join(dir, defaultDBFileName) {
		t.Errorf("expected default db path under root, got %q", settings.DBPath)
	}
}

func TestLoadReadsTOMLOverrides(t *testing.T) {
	dir := t.TempDir()
	tomlContents := "[audio]\nsample_rate = 48000\nmaster_volume = 0.5\n"
	if err := os.WriteFile(filepath.Join(dir, defaultConfigFileName), []byte(tomlContents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	settings, err := Load(BootstrapOptions{RootFolder: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Audio.SampleRate != 48000 {
		t.Errorf("expected TOML override to apply, got %d", settings.Audio.SampleRate)
	}
	if settings.Audio.MasterVolume != 0.5 {
		t.Errorf("expected TOML override master volume 0.5, got %v", settings.Audio.MasterVolume)
	}
}

func TestLoadAutoCreatesRootFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "root")
	if _, err := Load(BootstrapOptions{RootFolder: dir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected root folder to be auto-created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected root folder path to be a directory")
	}
}
