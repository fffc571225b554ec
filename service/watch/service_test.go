package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mux       sync.Mutex
	locations []string
	reject    string
}

func (r *recordingSubmitter) SubmitPlan(_ context.Context, location string) (string, error) {
	if r.reject != "" && strings.HasSuffix(location, r.reject) {
		return "", errors.New("invalid plan")
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.locations = append(r.locations, location)
	return "job-" + filepath.Base(location), nil
}

func (r *recordingSubmitter) submitted() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string{}, r.locations...)
}

func TestService_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.yaml"), []byte("name: existing\n"), 0644))
	submitter := &recordingSubmitter{reject: "broken.yml"}
	var jobs sync.Map
	srv := New(dir, submitter, WithOnSubmit(func(location, jobID string) { jobs.Store(jobID, location) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(submitter.submitted()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("subTasks: ["), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "next.yml"), []byte("name: next\n"), 0644))
	assert.Eventually(t, func() bool { return len(submitter.submitted()) == 2 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	submitted := submitter.submitted()
	require.Len(t, submitted, 2, "each plan version is submitted once")
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "existing.yaml")), submitted[0])
	assert.True(t, strings.HasSuffix(submitted[1], "next.yml"))
	_, ok := jobs.Load("job-next.yml")
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIsPlan(t *testing.T) {
	var testCases = []struct {
		name   string
		expect bool
	}{
		{name: "/plans/a.yaml", expect: true},
		{name: "/plans/a.YML", expect: true},
		{name: "/plans/.a.yaml.swp"},
		{name: "/plans/.hidden.yaml"},
		{name: "/plans/a.json"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expect, isPlan(testCase.name))
		})
	}
}
