package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/natexcvi/go-llm-eval/agents"
	agentmocks "github.com/natexcvi/go-llm-eval/agents/mocks"
	"github.com/natexcvi/go-llm-eval/engines"
	"github.com/natexcvi/go-llm-eval/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagAgent writes its own name into every record it touches, in place.
type tagAgent struct {
	name  string
	model engines.Model
	delay time.Duration
}

func (a *tagAgent) Name() string         { return a.name }
func (a *tagAgent) Model() engines.Model { return a.model }

func (a *tagAgent) Process(ctx context.Context, rec *records.Record) *records.Record {
	time.Sleep(a.delay)
	results, _ := rec.Output["seen_by"].([]any)
	rec.Output["seen_by"] = append(results, a.name)
	rec.PredictOutput = map[string]any{"results": []any{a.name}}
	label := a.name
	rec.Model = &label
	return rec
}

func sampleRecords(n int) []*records.Record {
	recs := make([]*records.Record, n)
	for i := range recs {
		recs[i] = &records.Record{
			ID:            fmt.Sprintf("r%d", i),
			Input:         []records.Message{{Role: "user", Content: fmt.Sprintf("text %d", i)}},
			Output:        map[string]any{"results": []any{}},
			PredictOutput: map[string]any{},
		}
	}
	return recs
}

func readOutput(t *testing.T, path string) []*records.Record {
	t.Helper()
	recs, err := records.LoadFile(path)
	require.NoError(t, err)
	return recs
}

func TestRunner_WritesOneFilePerAgent(t *testing.T) {
	testCases := []struct {
		name       string
		restricted bool
		concurrent bool
	}{
		{name: "Unrestricted in sequence"},
		{name: "Restricted in sequence", restricted: true},
		{name: "Unrestricted concurrently", concurrent: true},
		{name: "Restricted concurrently", restricted: true, concurrent: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested", "out")
			agentList := []agents.Agent{
				&tagAgent{name: "AgentA_m1", model: engines.Model{Name: "m1", Restricted: tc.restricted}},
				&tagAgent{name: "AgentB_m2", model: engines.Model{Name: "m2", Restricted: tc.restricted}},
			}
			input := sampleRecords(5)
			runner, err := NewRunner(agentList, dir, input)
			require.NoError(t, err)

			if tc.concurrent {
				require.NoError(t, runner.RunConcurrently(context.Background(), 2))
			} else {
				require.NoError(t, runner.RunInSequence(context.Background(), 2))
			}

			for _, agent := range agentList {
				path := filepath.Join(dir, agent.Name()+".json")
				assert.Equal(t, path, runner.OutputPath(agent))
				recs := readOutput(t, path)
				require.Len(t, recs, 5)
				for i, rec := range recs {
					assert.Equal(t, fmt.Sprintf("r%d", i), rec.ID)
					assert.Equal(t, []any{agent.Name()}, rec.PredictOutput["results"])
					// each agent only ever sees its own mutations
					assert.Equal(t, []any{agent.Name()}, rec.Output["seen_by"])
				}
			}
			for _, rec := range input {
				assert.NotContains(t, rec.Output, "seen_by")
				assert.Empty(t, rec.PredictOutput)
			}
		})
	}
}

func TestRunner_RestrictedOutputIsValidJSON(t *testing.T) {
	testCases := []struct {
		name       string
		numRecords int
	}{
		{name: "No records", numRecords: 0},
		{name: "One record", numRecords: 1},
		{name: "Many records", numRecords: 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			agent := &tagAgent{name: "Agent_gpt-4o", model: engines.Model{Name: "gpt-4o", Restricted: true}}
			runner, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(tc.numRecords))
			require.NoError(t, err)
			require.NoError(t, runner.RunInSequence(context.Background(), 64))

			content, err := os.ReadFile(runner.OutputPath(agent))
			require.NoError(t, err)
			var decoded []map[string]any
			require.NoError(t, json.Unmarshal(content, &decoded))
			assert.Len(t, decoded, tc.numRecords)
			if tc.numRecords == 0 {
				assert.Equal(t, "[\n]\n", string(content))
			}
		})
	}
}

func TestRunner_RestrictedStreamsEachRecord(t *testing.T) {
	dir := t.TempDir()
	ctrl := gomock.NewController(t)
	agent := agentmocks.NewMockAgent(ctrl)
	agent.EXPECT().Name().Return("Agent_gpt-4o").AnyTimes()
	agent.EXPECT().Model().Return(engines.Model{Name: "gpt-4o", Restricted: true}).AnyTimes()

	runner, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(3))
	require.NoError(t, err)
	path := runner.OutputPath(agent)

	processed := 0
	agent.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, rec *records.Record) *records.Record {
		// everything processed so far is already on disk
		recovered, err := records.RecoverFile(path)
		assert.NoError(t, err)
		assert.Len(t, recovered, processed)
		processed++
		return rec
	}).Times(3)

	require.NoError(t, runner.RunInSequence(context.Background(), 64))
	assert.Len(t, readOutput(t, path), 3)
}

func TestRunner_AppendMode(t *testing.T) {
	for _, restricted := range []bool{false, true} {
		t.Run(fmt.Sprintf("restricted=%v", restricted), func(t *testing.T) {
			dir := t.TempDir()
			agent := &tagAgent{name: "Agent_m", model: engines.Model{Name: "m", Restricted: restricted}}

			first, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(2))
			require.NoError(t, err)
			require.NoError(t, first.RunInSequence(context.Background(), 64))

			second, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(3), WithAppend(true))
			require.NoError(t, err)
			require.NoError(t, second.RunInSequence(context.Background(), 64))
			assert.Len(t, readOutput(t, second.OutputPath(agent)), 5)

			overwrite, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(1))
			require.NoError(t, err)
			require.NoError(t, overwrite.RunInSequence(context.Background(), 64))
			assert.Len(t, readOutput(t, overwrite.OutputPath(agent)), 1)
		})
	}
}

func TestRunner_ConcurrentAgentsOverlap(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	active, maxActive := 0, 0
	track := func(delta int) {
		mu.Lock()
		defer mu.Unlock()
		active += delta
		if active > maxActive {
			maxActive = active
		}
	}
	ctrl := gomock.NewController(t)
	var agentList []agents.Agent
	for _, name := range []string{"A_m", "B_m"} {
		agent := agentmocks.NewMockAgent(ctrl)
		agent.EXPECT().Name().Return(name).AnyTimes()
		agent.EXPECT().Model().Return(engines.Model{Name: "m", Restricted: true}).AnyTimes()
		agent.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, rec *records.Record) *records.Record {
			track(1)
			time.Sleep(30 * time.Millisecond)
			track(-1)
			return rec
		}).Times(2)
		agentList = append(agentList, agent)
	}

	runner, err := NewRunner(agentList, dir, sampleRecords(2))
	require.NoError(t, err)
	require.NoError(t, runner.RunConcurrently(context.Background(), 64))
	assert.Equal(t, 2, maxActive)
}

func TestRunner_OneAgentFailureDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	good := &tagAgent{name: "Good_m", model: engines.Model{Name: "m"}}
	bad := &tagAgent{name: "Bad_m", model: engines.Model{Name: "m"}}
	// a directory where the output file should be makes the write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, bad.Name()+".json"), 0o755))

	runner, err := NewRunner([]agents.Agent{bad, good}, dir, sampleRecords(2))
	require.NoError(t, err)
	err = runner.RunConcurrently(context.Background(), 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.Name())
	assert.Len(t, readOutput(t, runner.OutputPath(good)), 2)

	err = runner.RunInSequence(context.Background(), 64)
	require.Error(t, err)
}

func TestNewRunner_OutputDirectoryError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewRunner(nil, filepath.Join(file, "out"), nil)
	assert.Error(t, err)
}

func TestRunner_Progress(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var calls []string
	agent := &tagAgent{name: "Agent_m", model: engines.Model{Name: "m", Restricted: true}}
	runner, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(2), WithProgress(func(name string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, fmt.Sprintf("%s %d/%d", name, done, total))
	}))
	require.NoError(t, err)
	require.NoError(t, runner.RunInSequence(context.Background(), 64))
	assert.Equal(t, []string{"Agent_m 1/2", "Agent_m 2/2"}, calls)
}

func TestRunner_JSONL(t *testing.T) {
	testCases := []struct {
		name       string
		restricted bool
		jsonl      bool
	}{
		{name: "Unrestricted", jsonl: true},
		{name: "Restricted", restricted: true, jsonl: true},
		{name: "Disabled"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			agent := &tagAgent{name: "Agent_m", model: engines.Model{Name: "m", Restricted: tc.restricted}}
			runner, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(3), WithJSONL(tc.jsonl))
			require.NoError(t, err)
			require.NoError(t, runner.RunInSequence(context.Background(), 64))
			assert.Len(t, readOutput(t, runner.OutputPath(agent)), 3)

			if !tc.jsonl {
				assert.NoFileExists(t, runner.JSONLPath(agent))
				return
			}
			content, err := os.ReadFile(runner.JSONLPath(agent))
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
			require.Len(t, lines, 3)
			for i, line := range lines {
				var rec records.Record
				require.NoError(t, json.Unmarshal([]byte(line), &rec))
				assert.Equal(t, fmt.Sprintf("r%d", i), rec.ID)
				assert.Equal(t, "Agent_m", *rec.Model)
			}
		})
	}
}

func TestRunner_RestrictedStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	agent := agentmocks.NewMockAgent(ctrl)
	agent.EXPECT().Name().Return("Agent_gpt-4o").AnyTimes()
	agent.EXPECT().Model().Return(engines.Model{Name: "gpt-4o", Restricted: true}).AnyTimes()
	agent.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, rec *records.Record) *records.Record {
		if rec.ID == "r1" {
			cancel()
			time.Sleep(50 * time.Millisecond)
		}
		return rec
	}).Times(2)

	runner, err := NewRunner([]agents.Agent{agent}, dir, sampleRecords(3))
	require.NoError(t, err)
	err = runner.RunInSequence(ctx, 64)
	require.ErrorIs(t, err, context.Canceled)

	written := readOutput(t, runner.OutputPath(agent))
	require.Len(t, written, 1)
	assert.Equal(t, "r0", written[0].ID)
}
