package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teazle/autosocialai/internal/usecase"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "generate", "regenerate", "revalidate", "publish", "migrate"} {
		require.True(t, names[want], want)
	}
}

func TestRegenerateRejectsUnknownMode(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"regenerate", "--post", "p1", "--mode", "video"})

	err := root.Execute()
	require.ErrorIs(t, err, usecase.ErrInvalidMode)
}

func TestRevalidateRequiresPost(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"revalidate"})

	require.Error(t, root.Execute())
}
