package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate", "seed", "sweep"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	migrate, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.NotNil(t, migrate.Flags().Lookup("status"))

	seed, _, err := root.Find([]string{"seed"})
	require.NoError(t, err)
	assert.NotNil(t, seed.Flags().Lookup("catalog"))

	sweep, _, err := root.Find([]string{"sweep"})
	require.NoError(t, err)
	assert.NotNil(t, sweep.Flags().Lookup("date"))

	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestCommandsRequireJWTSecret(t *testing.T) {
	t.Setenv("LAB_JWT_SECRET", "")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--env-file", t.TempDir() + "/absent.env", "migrate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LAB_JWT_SECRET")
}
