package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"analyze", "history", "export", "import", "rules", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "reage", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"bureau", "save", "compare", "tag", "format"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s flag", name)
	}
	assert.Equal(t, "json", analyzeCmd.Flags().Lookup("format").DefValue)
}

func TestHistoryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range historyCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "delete", "clear", "tag"} {
		assert.True(t, names[name], "history should have subcommand %q", name)
	}
}

func TestExportCommand_RequiredOutput(t *testing.T) {
	flag := exportCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
