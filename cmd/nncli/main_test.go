package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"nncli/pkg/network"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const orData = `# a, b, a|b
0, 0, 0
0, 1, 1
1, 0, 1
1, 1, 1
`

func TestMakeTrainFeed(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	dataset := writeFile(t, dir, "or.csv", orData)

	code, out, errOut := runCLI(t, "-seed", "7", file, "make", "2-3-1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Created: "+file)

	nn, err := network.Load(file)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, nn.Topology())

	code, out, errOut = runCLI(t, "-log-every", "100", file, "train", dataset, "300", "2", "2.5")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "training set size: 4")
	assert.Contains(t, out, "Finished!")
	assert.Contains(t, errOut, "epoch=100")

	trained, err := network.Load(file)
	require.NoError(t, err)
	assert.False(t, trained.Equal(nn), "training must change the saved parameters")

	code, out, errOut = runCLI(t, file, "feed", "1-1")
	require.Equal(t, 0, code, errOut)
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	require.NoError(t, err)
	assert.Greater(t, v, 0.5)
}

func TestMakeSeedIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.nn"), filepath.Join(dir, "b.nn")
	code, _, errOut := runCLI(t, "-seed", "42", a, "make", "3-4-2")
	require.Equal(t, 0, code, errOut)
	code, _, errOut = runCLI(t, "-seed", "42", b, "make", "3-4-2")
	require.Equal(t, 0, code, errOut)

	rawA, err := os.ReadFile(a)
	require.NoError(t, err)
	rawB, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, rawA, rawB)
}

func TestFeedPrintsEveryOutput(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	code, _, errOut := runCLI(t, "-seed", "3", file, "make", "2,2,3")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := runCLI(t, file, "feed", "0.25", "-0.5")
	require.Equal(t, 0, code, errOut)
	fields := strings.Split(strings.TrimSpace(out), " | ")
	require.Len(t, fields, 3)
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		require.NoError(t, err)
		assert.True(t, v > 0 && v < 1, "sigmoid output out of range: %v", v)
	}
}

func TestTrainUsesConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	dataset := writeFile(t, dir, "or.csv", orData)
	cfg := writeFile(t, dir, "nncli.toml", `
[train]
epochs = 5
batch_size = 4
learning_rate = 0.5
log_every = 0
`)
	code, _, errOut := runCLI(t, "-config", cfg, "-seed", "1", file, "make", "2-1")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := runCLI(t, "-config", cfg, file, "train", dataset)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "epochs: 5")
	assert.Contains(t, out, "batch size: 4")
	assert.Contains(t, out, "learning rate: 0.5")
}

func TestFailedTrainLeavesFileUnchanged(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	code, _, errOut := runCLI(t, "-seed", "5", file, "make", "2-1")
	require.Equal(t, 0, code, errOut)
	before, err := os.ReadFile(file)
	require.NoError(t, err)

	bad := writeFile(t, dir, "bad.csv", "0, 0, 0\n1, 1\n")
	code, _, errOut = runCLI(t, file, "train", bad, "10", "1", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bad.csv:2")

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	code, _, errOut := runCLI(t, "-seed", "9", file, "make", "2-1")
	require.Equal(t, 0, code, errOut)

	tests := []struct {
		description string
		args        []string
		stderr      string
	}{
		{"too few arguments", []string{file}, "Bad number of arguments"},
		{"make without topology", []string{file, "make"}, "make takes exactly one topology argument"},
		{"train without dataset", []string{file, "train"}, "bad number of arguments for 'train' command"},
		{"feed without vector", []string{file, "feed"}, "bad number of arguments for 'feed' command"},
		{"serve with two addresses", []string{file, "serve", ":1", ":2"}, "at most one address"},
		{"unknown command", []string{file, "jump", "x"}, "unknown action: jump"},
		{"bad topology", []string{filepath.Join(dir, "x.nn"), "make", "2-0-1"}, "topology"},
		{"wrong input size", []string{file, "feed", "1-2-3"}, "dimension mismatch"},
		{"bad input vector", []string{file, "feed", "a-b"}, "See 'nncli help'"},
		{"missing network", []string{filepath.Join(dir, "missing.nn"), "feed", "1-2"}, "missing.nn"},
		{"train argument count", []string{file, "train", "a", "b"}, "bad number of arguments"},
		{"bad epochs", []string{file, "train", "d.csv", "many", "1", "1"}, "epochs"},
		{"bad batch size", []string{file, "train", "d.csv", "1", "0", "1"}, "batch size"},
		{"negative learning rate", []string{file, "train", "d.csv", "1", "1", "-0.5"}, "learning rate must be > 0"},
		{"missing config", []string{"-config", filepath.Join(dir, "none.toml"), file, "feed", "1-2"}, "config"},
		{"unknown flag", []string{"-nope", file, "feed", "1-2"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.stderr)
		})
	}
}

func TestHelp(t *testing.T) {
	code, out, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "commands:")
	assert.Contains(t, out, "-seed")
}

func TestServeStopsOnCancel(t *testing.T) {
	defer gin.SetMode(gin.DebugMode)
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	code, _, errOut := runCLI(t, "-seed", "2", file, "make", "2-1")
	require.Equal(t, 0, code, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code = run(ctx, []string{file, "serve", "127.0.0.1:0"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
}

func TestServeDefaultsToConfigAddress(t *testing.T) {
	defer gin.SetMode(gin.DebugMode)
	dir := t.TempDir()
	file := filepath.Join(dir, "net.nn")
	cfg := writeFile(t, dir, "nncli.toml", `
[serve]
addr = "127.0.0.1:0"
mode = "test"
`)
	code, _, errOut := runCLI(t, "-seed", "2", file, "make", "2-1")
	require.Equal(t, 0, code, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	code = run(ctx, []string{"-config", cfg, file, "serve"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
}
