package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/graphrag/pkg/audit"
)

func TestInMemorySinkAssignsMonotonicSequence(t *testing.T) {
	sink := audit.NewInMemorySink()

	e1, err := sink.Append(audit.Event{Operation: audit.OperationIngest, Outcome: audit.OutcomeSucceeded})
	require.NoError(t, err)
	require.Equal(t, uint64(1), e1.Sequence)

	e2, err := sink.Append(audit.Event{Operation: audit.OperationQuery, Outcome: audit.OutcomeFailed})
	require.NoError(t, err)
	require.Equal(t, uint64(2), e2.Sequence)

	require.NotEmpty(t, e1.ID)
	require.NotEmpty(t, e2.ID)
	require.NotEqual(t, e1.ID, e2.ID)

	require.Len(t, sink.Events(), 2)
}

func TestFileSinkWritesJSONLAndFsyncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := audit.NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	_, err = sink.Append(audit.Event{Operation: audit.OperationIngest, Outcome: audit.OutcomeSucceeded, Actor: "user-1"})
	require.NoError(t, err)
	_, err = sink.Append(audit.Event{Operation: audit.OperationQuery, Outcome: audit.OutcomeDenied})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first audit.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, "user-1", first.Actor)
}
