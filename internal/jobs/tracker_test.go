package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadcheck/internal/model"
)

func TestTracker_CompletesJob(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	report := model.NewAnalysisReport("ride.gpx")
	report.TotalPoints = 3
	id, err := tr.Submit("ride.gpx", func(_ context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		for i := 1; i <= 3; i++ {
			events <- model.ProgressEvent{Step: "point", Percent: i * 33, TotalPoints: 3, ProcessedPoints: i}
		}
		return report, nil
	})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	tr.Wait()

	st, err := tr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "Analysis complete", st.CurrentStep)
	assert.Equal(t, 3, st.TotalPoints)
	assert.Equal(t, 3, st.ProcessedPoints)
	assert.Same(t, report, st.Result)
	assert.Nil(t, st.Error)
}

func TestTracker_StatusWhileRunning(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	sent := make(chan struct{})
	release := make(chan struct{})
	id, err := tr.Submit("slow.gpx", func(_ context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		events <- model.ProgressEvent{Step: "Analyzing segment 1...", Percent: 0, TotalPoints: 4}
		close(sent)
		<-release
		return model.NewAnalysisReport("slow.gpx"), nil
	})
	require.NoError(t, err)

	<-sent
	require.Eventually(t, func() bool {
		st, _ := tr.Status(id)
		return st.Status == model.JobStateProcessing
	}, testTimeout, testTick)

	st, err := tr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalPoints)
	assert.False(t, st.IsDone())

	close(release)
	tr.Wait()
	st, _ = tr.Status(id)
	assert.Equal(t, model.JobStateCompleted, st.Status)
}

func TestTracker_FailedJob(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	id, err := tr.Submit("bad.gpx", func(_ context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		events <- model.ProgressEvent{Step: "Counting sampled points...", Percent: 30}
		return nil, errors.New("gpx: unexpected root element <html>")
	})
	require.NoError(t, err)
	tr.Wait()

	st, err := tr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, "gpx: unexpected root element <html>", *st.Error)
	assert.Nil(t, st.Result)
	assert.Equal(t, 30, st.Progress)
}

func TestTracker_NilReportFails(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	id, err := tr.Submit("nil.gpx", func(context.Context, chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		return nil, nil
	})
	require.NoError(t, err)
	tr.Wait()

	st, _ := tr.Status(id)
	assert.Equal(t, model.JobStateFailed, st.Status)
}

func TestTracker_PanicBecomesFailure(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	id, err := tr.Submit("panic.gpx", func(context.Context, chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	require.NoError(t, err)
	tr.Wait()

	st, err := tr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, MsgPanic, *st.Error)
}

func TestTracker_NoProgressAfterTerminal(t *testing.T) {
	tr := NewTracker(context.Background(), nil)

	id, err := tr.Submit("burst.gpx", func(_ context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		for i := 0; i < 500; i++ {
			events <- model.ProgressEvent{Step: "late", Percent: i % 100, ProcessedPoints: i}
		}
		return model.NewAnalysisReport("burst.gpx"), nil
	})
	require.NoError(t, err)
	tr.Wait()

	st, _ := tr.Status(id)
	assert.Equal(t, model.JobStateCompleted, st.Status)
	assert.Equal(t, "Analysis complete", st.CurrentStep)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 499, st.ProcessedPoints)
}

func TestTracker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTracker(ctx, nil)

	started := make(chan struct{})
	id, err := tr.Submit("long.gpx", func(ctx context.Context, _ chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	<-started
	cancel()
	tr.Wait()

	st, _ := tr.Status(id)
	assert.Equal(t, model.JobStateFailed, st.Status)

	_, err = tr.Submit("after.gpx", func(context.Context, chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
		return model.NewAnalysisReport("after.gpx"), nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, tr.Store().Len())
}

func TestTracker_UnknownID(t *testing.T) {
	tr := NewTracker(context.Background(), nil)
	_, err := tr.Status("does-not-exist")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTracker_NilRunFunc(t *testing.T) {
	tr := NewTracker(context.Background(), nil)
	_, err := tr.Submit("x.gpx", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, tr.Store().Len())
}

func TestTracker_ManyJobsIsolated(t *testing.T) {
	tr := NewTracker(context.Background(), NewStore())

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		n := i
		id, err := tr.Submit("multi.gpx", func(_ context.Context, events chan<- model.ProgressEvent) (*model.AnalysisReport, error) {
			events <- model.ProgressEvent{Step: "only", Percent: n, ProcessedPoints: n}
			r := model.NewAnalysisReport("multi.gpx")
			r.TotalPoints = n
			return r, nil
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	tr.Wait()

	assert.Equal(t, 20, tr.Store().Len())
	for i, id := range ids {
		st, err := tr.Status(id)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateCompleted, st.Status)
		assert.Equal(t, i, st.Result.TotalPoints)
	}
}
