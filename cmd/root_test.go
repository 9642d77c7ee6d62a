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

	for _, name := range []string{"serve", "run", "trigger", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "customer-pipeline", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.RunE, "root command should serve by default")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"partition", "key", "export"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s flag", name)
	}
	assert.Equal(t, "false", runCmd.Flags().Lookup("export").DefValue)
}

func TestTriggerCommand_Flags(t *testing.T) {
	flag := triggerCmd.Flags().Lookup("flow")
	require.NotNil(t, flag)
	assert.Equal(t, "my_pipeline", flag.DefValue)

	for _, name := range []string{"partition", "key", "wait"} {
		assert.NotNil(t, triggerCmd.Flags().Lookup(name), "trigger should have --%s flag", name)
	}
}

func TestRootCommand_MissingEnvFails(t *testing.T) {
	for _, k := range []string{"postgres_username", "postgres_password", "postgres_host", "postgres_port", "bucket_name", "source_path", "account_name"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"run"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_username")
}
