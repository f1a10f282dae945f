package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewlab/internal/models"
)

// fakeBackend maps stdin to a scripted run result.
type fakeBackend struct {
	outputs map[string]RunResult
	errs    map[string]error
	calls   []string
}

func (f *fakeBackend) Run(ctx context.Context, code, language, stdin string) (RunResult, error) {
	f.calls = append(f.calls, stdin)
	if err, ok := f.errs[stdin]; ok {
		return RunResult{}, err
	}
	return f.outputs[stdin], nil
}

func twoCases() []models.TestCase {
	return []models.TestCase{
		{Input: "1 2", ExpectedOutput: "3"},
		{Input: "-5 5", ExpectedOutput: "0"},
	}
}

func TestExecute_AllCasesPass(t *testing.T) {
	backend := &fakeBackend{outputs: map[string]RunResult{
		"1 2":  {Stdout: "3\n", TimeMs: 12},
		"-5 5": {Stdout: "0\n", TimeMs: 9},
	}}
	e := NewEngine(backend, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)

	assert.True(t, sum.Passed)
	require.Len(t, sum.Results, 2)
	for _, r := range sum.Results {
		assert.True(t, r.Passed)
	}
	// Sequential, in submission order.
	assert.Equal(t, []string{"1 2", "-5 5"}, backend.calls)
}

func TestExecute_TrimmedComparison(t *testing.T) {
	backend := &fakeBackend{outputs: map[string]RunResult{
		"1 2":  {Stdout: "  3  \n\n"},
		"-5 5": {Stdout: "0"},
	}}
	e := NewEngine(backend, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)
	assert.True(t, sum.Passed)
}

func TestExecute_StderrForcesFail(t *testing.T) {
	backend := &fakeBackend{outputs: map[string]RunResult{
		"1 2":  {Stdout: "3", Stderr: "warning: deprecated"},
		"-5 5": {Stdout: "0"},
	}}
	e := NewEngine(backend, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)

	assert.False(t, sum.Passed)
	r, ok := ResultFor(sum.Results, twoCases()[0])
	require.True(t, ok)
	assert.False(t, r.Passed)
	assert.Equal(t, "warning: deprecated", r.Error)
}

func TestExecute_ResultCountMatchesCaseCount(t *testing.T) {
	backend := &fakeBackend{
		outputs: map[string]RunResult{"1 2": {Stdout: "3"}},
		errs:    map[string]error{"-5 5": errors.New("runtime exploded")},
	}
	e := NewEngine(backend, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)

	assert.Len(t, sum.Results, 2)
	assert.False(t, sum.Passed)
}

func TestExecute_ResultsAttributableByValue(t *testing.T) {
	backend := &fakeBackend{outputs: map[string]RunResult{
		"1 2":  {Stdout: "3"},
		"-5 5": {Stdout: "wrong"},
	}}
	e := NewEngine(backend, nil)

	cases := twoCases()
	sum, err := e.Execute(context.Background(), "code", "python", cases)
	require.NoError(t, err)

	first, ok := ResultFor(sum.Results, cases[0])
	require.True(t, ok)
	assert.True(t, first.Passed)

	second, ok := ResultFor(sum.Results, cases[1])
	require.True(t, ok)
	assert.False(t, second.Passed)

	_, ok = ResultFor(sum.Results, models.TestCase{Input: "none", ExpectedOutput: "none"})
	assert.False(t, ok)
}

func TestExecute_NoBackendUsesStandIn(t *testing.T) {
	e := NewEngine(nil, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)

	// The stand-in marks exactly the first case passed.
	assert.False(t, sum.Passed)
	require.Len(t, sum.Results, 2)
	assert.True(t, sum.Results[0].Passed)
	assert.False(t, sum.Results[1].Passed)
}

func TestExecute_StandInDeterministic(t *testing.T) {
	e := NewEngine(nil, nil)

	cases := make([]models.TestCase, 5)
	for i := range cases {
		cases[i] = models.TestCase{Input: fmt.Sprintf("in-%d", i), ExpectedOutput: fmt.Sprintf("out-%d", i)}
	}

	for run := 0; run < 3; run++ {
		sum, err := e.Execute(context.Background(), "code", "python", cases)
		require.NoError(t, err)
		require.Len(t, sum.Results, 5)
		for i, r := range sum.Results {
			assert.Equal(t, i == 0, r.Passed)
		}
	}
}

func TestExecute_UnavailableBackendFallsBack(t *testing.T) {
	backend := &fakeBackend{errs: map[string]error{
		"1 2": fmt.Errorf("dial: %w", ErrSandboxUnavailable),
	}}
	e := NewEngine(backend, nil)

	sum, err := e.Execute(context.Background(), "code", "python", twoCases())
	require.NoError(t, err)

	require.Len(t, sum.Results, 2)
	assert.True(t, sum.Results[0].Passed)
	assert.False(t, sum.Results[1].Passed)
	// Only the first probe reached the backend.
	assert.Equal(t, []string{"1 2"}, backend.calls)
}
