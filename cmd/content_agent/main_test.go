package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so tests do not leak state
// through the package-level command tree.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

// execute runs the CLI with args and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"GOOGLE_API_KEY", "GOOGLE_CSE_ID", "DATABASE_URL", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveConfig_Precedence(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "config.json", `{
		"model": "file-model",
		"max_attempts": 3,
		"database_url": "postgres://file/db"
	}`)
	require.NoError(t, migrateCmd.ParseFlags([]string{"--config", path, "--model", "flag-model"}))

	env := map[string]string{
		"LLM_MODEL":      "env-model",
		"DATABASE_URL":   "postgres://env/db",
		"GOOGLE_API_KEY": "google-key",
		"GOOGLE_CSE_ID":  "cse",
	}
	cfg, err := resolveConfig(migrateCmd, func(k string) string { return env[k] })
	require.NoError(t, err)

	assert.Equal(t, "flag-model", cfg.Model)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "google-key", cfg.GoogleAPIKey)
	assert.Equal(t, "cse", cfg.SearchEngineID)
	assert.Equal(t, 10.0, cfg.AcceptanceThreshold)
	assert.Equal(t, "2s", cfg.RetryDelay)
	assert.Equal(t, "gemini", cfg.Provider)
}

func TestResolveConfig_InvalidConfigFile(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "config.json", `{"max_attempts": 0}`)
	require.NoError(t, migrateCmd.ParseFlags([]string{"--config", path}))

	_, err := resolveConfig(migrateCmd, func(string) string { return "" })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestResolveConfig_InvalidFlag(t *testing.T) {
	resetFlags(t)
	require.NoError(t, migrateCmd.ParseFlags([]string{"--retry-delay", "soon"}))

	_, err := resolveConfig(migrateCmd, func(string) string { return "" })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_delay")
}

func TestResolveConfig_AttemptBudgetCapped(t *testing.T) {
	resetFlags(t)
	require.NoError(t, migrateCmd.ParseFlags([]string{"--max-attempts", "6"}))

	_, err := resolveConfig(migrateCmd, func(string) string { return "" })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}

func TestGenerate_RequiresTopic(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "generate")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic is required")
}

func TestGenerate_InvalidContentType(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "generate", "--topic", "tea", "--type", "Poem")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content type")
}

func TestGenerate_LengthOutOfRange(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "generate", "--topic", "tea", "--length", "50")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_length")
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "generate", "--topic", "tea")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestCheck_MissingSearchCredentials(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "Some text to check.", "check")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search API key is required")
}

func TestCheck_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "check", "/nonexistent/input.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestHistory_RequiresDatabase(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "history")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestHistory_RejectsBadLimit(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "history", "--limit", "0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	clearEnv(t)

	_, err := execute(t, "", "migrate")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")

	require.NoError(t, err)
	assert.Equal(t, "content_agent dev\n", out)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "check", "history", "serve", "migrate", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestReadInput(t *testing.T) {
	got, err := readInput(nil, strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readInput([]string{"-"}, strings.NewReader("dash"))
	require.NoError(t, err)
	assert.Equal(t, "dash", got)

	path := writeFile(t, "input.txt", "from file")
	got, err = readInput([]string{path}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "from file", got)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, true)
	logger.Debug("hidden")
	logger.Info("shown", "attempt", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, float64(2), entry["attempt"])

	buf.Reset()
	newLogger(&buf, true, false).Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")

	require.NoError(t, writeHTML(path, "Tea <3", "# Green tea\n\nA **calm** drink."))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "<title>Tea &lt;3</title>")
	assert.Contains(t, html, "<h1>Green tea</h1>")
	assert.Contains(t, html, "<strong>calm</strong>")
}

func TestWriteHTML_BadPath(t *testing.T) {
	err := writeHTML(filepath.Join(t.TempDir(), "missing", "out.html"), "t", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write")
}
