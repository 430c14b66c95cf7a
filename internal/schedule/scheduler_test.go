package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    int
	release chan struct{}
	started chan struct{}
	hasDL   bool
}

func (j *blockingJob) Name() string {
	return "blocking"
}

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs++
	_, j.hasDL = ctx.Deadline()
	if j.started != nil {
		close(j.started)
		j.started = nil
	}
	if j.release != nil {
		<-j.release
	}
	return nil
}

func TestWrapSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler(0)
	job := &blockingJob{release: make(chan struct{}), started: make(chan struct{})}
	started := job.started
	fn := s.wrap(job, "@every 1m")

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-started
	fn()
	close(job.release)
	<-done
	require.Equal(t, 1, job.runs)
}

func TestWrapAppliesJobTimeout(t *testing.T) {
	s := NewCronScheduler(time.Minute)
	job := &blockingJob{}
	s.wrap(job, "@hourly")()
	require.True(t, job.hasDL)

	s = NewCronScheduler(0)
	s.wrap(job, "@hourly")()
	require.False(t, job.hasDL)
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler(0)
	require.Error(t, s.AddJob(&blockingJob{}, "not a spec"))
	require.NoError(t, s.AddJob(&blockingJob{}, "*/10 * * * *"))
	require.NoError(t, s.AddJob(&blockingJob{}, "@daily"))
}
