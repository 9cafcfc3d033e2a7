package schedule

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  int
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs++
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestAddJobRejectsBadSpecAndDuplicates(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "not a spec"))
	require.NoError(t, s.AddJob(&countingJob{}, "0 3 * * *"))
	require.Error(t, s.AddJob(&countingJob{}, "0 4 * * *"))
}

func TestRunNow(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{}
	require.NoError(t, s.AddJob(job, "0 3 * * *"))
	require.NoError(t, s.RunNow(context.Background(), "counting"))
	require.Equal(t, 1, job.runs)

	job.err = errors.New("boom")
	require.Error(t, s.RunNow(context.Background(), "counting"))
	require.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestRunSkipsOverlap(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{block: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "0 3 * * *"))
	e := s.entries["counting"]

	done := make(chan error)
	go func() { done <- s.RunNow(context.Background(), "counting") }()
	for !e.running.Load() {
		runtime.Gosched()
	}
	require.NoError(t, s.RunNow(context.Background(), "counting"))
	close(job.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, job.runs)
}
