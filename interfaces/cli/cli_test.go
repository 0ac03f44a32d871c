package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brain2-extractor/application/ports"
	"brain2-extractor/infrastructure/config"
	"brain2-extractor/pkg/errors"
)

const input = `(id: "a1", node_type: "claim", title: "Cells divide", description: "Mitosis splits one cell into two")` +
	`(id: "b2", node_type: "evidence", title: "Microscopy", description: "Observed under a microscope")` +
	`(source_id: "b2", target_id: "a1", edge_type: "support")`

type eventLine struct {
	AggregateID string `json:"aggregate_id"`
	EventType   string `json:"event_type"`
	Cause       string `json:"cause"`
}

type fakeOpener struct {
	fragments []string
	failWith  error
	openErr   error
	prompts   []string
}

func (f *fakeOpener) Open(ctx context.Context, prompt string) (ports.StreamSource, error) {
	f.prompts = append(f.prompts, prompt)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &failingSource{textSource: textSource{chunks: f.fragments}, err: f.failWith}, nil
}

type failingSource struct {
	textSource
	err error
}

func (s *failingSource) Next(ctx context.Context) (string, error) {
	chunk, err := s.textSource.Next(ctx)
	if err == io.EOF && s.err != nil {
		return "", s.err
	}
	return chunk, err
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		DefaultChunkSize: 7,
		SubscriberBuffer: 4,
	}
}

func execute(t *testing.T, opener StreamOpener, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand(testConfig(), opener, zap.NewNop())
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func parseLines(t *testing.T, out string) []eventLine {
	t.Helper()

	var lines []eventLine
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var line eventLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func countTypes(lines []eventLine) map[string]int {
	counts := make(map[string]int)
	for _, line := range lines {
		counts[line.EventType]++
	}
	return counts
}

func TestExtract_Stdin(t *testing.T) {
	out, stderr, err := execute(t, nil, input, "--session-id", "cli-1", "--summary")
	require.NoError(t, err)

	lines := parseLines(t, out)
	require.NotEmpty(t, lines)

	counts := countTypes(lines)
	assert.Equal(t, 2, counts["extraction.node_ready"])
	assert.Equal(t, 1, counts["extraction.edge_ready"])
	assert.Positive(t, counts["extraction.field_updated"])

	last := lines[len(lines)-1]
	assert.Equal(t, "extraction.session_completed", last.EventType)
	for _, line := range lines {
		assert.Equal(t, "cli-1", line.AggregateID)
	}

	var summary struct {
		SessionID    string `json:"session_id"`
		NodesEmitted int    `json:"nodes_emitted"`
		EdgesEmitted int    `json:"edges_emitted"`
		Reason       string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &summary))
	assert.Equal(t, "cli-1", summary.SessionID)
	assert.Equal(t, 2, summary.NodesEmitted)
	assert.Equal(t, 1, summary.EdgesEmitted)
	assert.Equal(t, "end_of_stream", summary.Reason)
}

func TestExtract_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))

	for _, chunkSize := range []string{"1", "13", "4096"} {
		t.Run("chunk "+chunkSize, func(t *testing.T) {
			out, _, err := execute(t, nil, "", "--file", path, "--chunk-size", chunkSize)
			require.NoError(t, err)

			counts := countTypes(parseLines(t, out))
			assert.Equal(t, 2, counts["extraction.node_ready"])
			assert.Equal(t, 1, counts["extraction.edge_ready"])
			assert.Equal(t, 1, counts["extraction.session_completed"])
		})
	}
}

func TestExtract_Prompt(t *testing.T) {
	opener := &fakeOpener{fragments: []string{input[:50], input[50:]}}

	out, _, err := execute(t, opener, "", "--prompt", "explain mitosis")
	require.NoError(t, err)

	assert.Equal(t, []string{"explain mitosis"}, opener.prompts)
	counts := countTypes(parseLines(t, out))
	assert.Equal(t, 2, counts["extraction.node_ready"])
	assert.Equal(t, 1, counts["extraction.session_completed"])
}

func TestExtract_PromptFailure(t *testing.T) {
	opener := &fakeOpener{
		fragments: []string{input[:50]},
		failWith:  errors.NewExternalError("openai", io.ErrUnexpectedEOF),
	}

	out, _, err := execute(t, opener, "", "--prompt", "explain mitosis")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))

	lines := parseLines(t, out)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Equal(t, "extraction.session_failed", last.EventType)
	assert.NotEmpty(t, last.Cause)
	assert.Zero(t, countTypes(lines)["extraction.session_completed"])
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name   string
		opener StreamOpener
		args   []string
		check  func(t *testing.T, err error)
	}{
		{
			name: "generation disabled",
			args: []string{"--prompt", "hello"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
			},
		},
		{
			name:   "open fails",
			opener: &fakeOpener{openErr: errors.NewUnavailableError("openai")},
			args:   []string{"--prompt", "hello"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
			},
		},
		{
			name: "zero chunk size",
			args: []string{"--chunk-size", "0"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.IsValidation(err))
			},
		},
		{
			name: "missing file",
			args: []string{"--file", filepath.Join(t.TempDir(), "missing.txt")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, os.ErrNotExist)
			},
		},
		{
			name: "missing policy",
			args: []string{"--policy", filepath.Join(t.TempDir(), "missing.yaml")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, os.ErrNotExist)
			},
		},
		{
			name: "file and prompt",
			args: []string{"--file", "x", "--prompt", "y"},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "none of the others can be")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.opener, input, tt.args...)
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	out, _, err := execute(t, nil, "")
	require.NoError(t, err)

	lines := parseLines(t, out)
	require.Len(t, lines, 1)
	assert.Equal(t, "extraction.session_completed", lines[0].EventType)
}
