package iocli

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Подменяет os.Stdin на pipe с заданным содержимым на время теста.
func stdinWith(t *testing.T, content string) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	go func() {
		_, _ = w.Write([]byte(content))
		_ = w.Close()
	}()

	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = old })
}

func TestReadInput_TrimsLine(t *testing.T) {
	stdinWith(t, "  route 42  \n")

	stdio := NewStdio()
	got, err := stdio.ReadInput("> ")

	require.NoError(t, err)
	assert.Equal(t, "route 42", got)
}

func TestReadInput_SequentialLines(t *testing.T) {
	stdinWith(t, "first\nsecond\n")

	stdio := NewStdio()

	got, err := stdio.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = stdio.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestReadInput_ClosedStdin(t *testing.T) {
	stdinWith(t, "")

	stdio := NewStdio()
	_, err := stdio.ReadInput("> ")

	assert.ErrorIs(t, err, io.EOF)
}

func TestPrintHelpersDoNotPanic(t *testing.T) {
	stdio := NewStdio()

	assert.NotPanics(t, func() {
		stdio.Println("synced", 3, "operations")
		stdio.Printf("pending: %d\n", 0)
		_, _ = stdio.Write([]byte("done\n"))
	})
}
