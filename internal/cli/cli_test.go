package cli

import (
	"context"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs(context.Background(), "0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "margin 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs(context.Background(), "1.2.3", []string{"--version"})
	})

	assert.Equal(t, "margin 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"books", "toc", "search", "goto", "read", "history", "status", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs(context.Background(), "test", []string{"--help"})
	assert.NoError(t, err)
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs(context.Background(), "test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all flag")
}

// --- Flag parsing ---

// parseOnly parses args without running the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}

func TestGlobalFlags(t *testing.T) {
	globals, _, err := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "--db-path", "/tmp/margin.db", "status")
	require.NoError(t, err)

	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/margin.db", globals.DBPath)
}

func TestBookArgumentRequired(t *testing.T) {
	for _, name := range []string{"toc", "search", "goto", "read", "history"} {
		_, _, err := parseOnly(t, name)
		require.Error(t, err, name)

		var flagsErr *goflags.Error
		require.ErrorAs(t, err, &flagsErr, name)
		assert.Equal(t, goflags.ErrRequired, flagsErr.Type, name)
	}
}

func TestSearchArguments(t *testing.T) {
	_, cmds, err := parseOnly(t, "search", "test", "bright", "cold")
	require.NoError(t, err)

	assert.Equal(t, "test", cmds.Search.Args.Book)
	assert.Equal(t, []string{"bright", "cold"}, cmds.Search.Args.Query)
}

func TestGotoFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "goto", "--query", "sea", "test")
	require.NoError(t, err)

	assert.Equal(t, "sea", cmds.Goto.Query)
	assert.Equal(t, 1, cmds.Goto.Hit)
	assert.Equal(t, "test", cmds.Goto.Args.Book)
}

func TestReadFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "read", "--pages=-2", "--theme", "sepia", "--font-size", "18", "--restart", "test")
	require.NoError(t, err)

	assert.Equal(t, -2, cmds.Read.Pages)
	assert.Equal(t, "sepia", cmds.Read.Theme)
	assert.Equal(t, 18, cmds.Read.FontSize)
	assert.True(t, cmds.Read.Restart)
}

func TestBooksFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "books", "--category", "nature", "--search", "sea")
	require.NoError(t, err)

	assert.Equal(t, "nature", cmds.Books.Category)
	assert.Equal(t, "sea", cmds.Books.Search)
}

func TestGlobalsContextDefaultsToBackground(t *testing.T) {
	var globals *GlobalFlags
	assert.NotNil(t, globals.context())
	assert.False(t, globals.json())

	ctx := context.WithValue(context.Background(), struct{}{}, "x")
	assert.Equal(t, ctx, (&GlobalFlags{ctx: ctx}).context())
}
