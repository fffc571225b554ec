package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/device/dummy"
	"github.com/viant/atomq/service/event"
	"github.com/viant/atomq/service/messaging/memory"
	"github.com/viant/atomq/service/processor"
)

const waitFor = 2 * time.Second

type fixture struct {
	topic      *event.Topic[bean.Envelope]
	queue      *memory.Queue[bean.Envelope]
	positioner *dummy.Positioner
	consumer   *Service
}

func newFixture(t *testing.T, delay time.Duration, options ...Option) *fixture {
	ret := &fixture{
		topic:      event.NewTopic[bean.Envelope]("status", nil),
		queue:      memory.NewQueue[bean.Envelope](memory.Config{}),
		positioner: dummy.NewPositioner(delay, "x", "y"),
	}
	factory := processor.NewFactory(processor.WithTopic(ret.topic), processor.WithPositioner(ret.positioner))
	var err error
	ret.consumer, err = New("test.job-queue", ret.queue, factory, ret.topic, options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ret.consumer.Stop(context.Background())
		ret.topic.Close()
	})
	return ret
}

func (f *fixture) submit(t *testing.T, beans ...bean.Bean) {
	for _, b := range beans {
		require.NoError(t, b.Base().MarkSubmitted())
		require.NoError(t, bean.Apply(b, bean.Update{Status: status.Queued}))
		require.NoError(t, f.queue.Publish(context.Background(), bean.Wrap(b)))
	}
}

func move(name, device string) *bean.MoveAtom {
	return bean.NewMoveAtom(name, 10, map[string]interface{}{device: 1.0})
}

func TestService_Process(t *testing.T) {
	f := newFixture(t, 0)
	first, second := move("first", "x"), move("second", "y")
	f.submit(t, first, second)
	require.NoError(t, f.consumer.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return first.GetStatus() == status.Complete && second.GetStatus() == status.Complete
	}, waitFor, 5*time.Millisecond)
	assert.True(t, first.SubmissionTime.Before(second.SubmissionTime) || first.SubmissionTime.Equal(second.SubmissionTime))
	assert.Empty(t, f.consumer.Running())
}

func TestService_ValidationFailure(t *testing.T) {
	var testCases = []struct {
		description    string
		pauseOnFailure bool
	}{
		{description: "continues after failure"},
		{description: "pauses after failure", pauseOnFailure: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			f := newFixture(t, 0, WithPauseOnFailure(testCase.pauseOnFailure))
			invalid, next := move("invalid", "z"), move("next", "x")
			f.submit(t, invalid, next)
			require.NoError(t, f.consumer.Start(context.Background()))
			assert.Eventually(t, func() bool { return invalid.GetStatus() == status.Failed }, waitFor, 5*time.Millisecond)
			assert.Equal(t, status.Queued, invalid.GetPreviousStatus())
			assert.Contains(t, invalid.GetMessage(), "Validation failed")
			if testCase.pauseOnFailure {
				time.Sleep(50 * time.Millisecond)
				assert.True(t, f.consumer.IsPaused())
				assert.Equal(t, status.Queued, next.GetStatus())
				require.NoError(t, f.consumer.Resume(context.Background()))
			}
			assert.Eventually(t, func() bool { return next.GetStatus() == status.Complete }, waitFor, 5*time.Millisecond)
			assert.Equal(t, 1, f.consumer.Failures())
		})
	}
}

func TestService_Stop(t *testing.T) {
	f := newFixture(t, time.Second)
	running, pending := move("running", "x"), move("pending", "y")
	f.submit(t, running, pending)
	require.NoError(t, f.consumer.Start(context.Background()))
	assert.Eventually(t, func() bool { return running.GetPercentComplete() == 20 }, waitFor, time.Millisecond)

	require.NoError(t, f.consumer.Stop(event.WithSource(context.Background(), event.SourceParent)))
	assert.Equal(t, status.Terminated, running.GetStatus())
	assert.Equal(t, status.Terminated, pending.GetStatus())
	assert.Equal(t, "Removed from queue before start (queue stopped).", pending.GetMessage())
	assert.Equal(t, 1, f.positioner.Aborts())
	assert.ErrorIs(t, f.consumer.Start(context.Background()), ErrStopped)
}

func TestService_PauseResume(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	running, pending := move("running", "x"), move("pending", "y")
	f.submit(t, running, pending)
	require.NoError(t, f.consumer.Start(context.Background()))
	assert.Eventually(t, func() bool { return running.GetPercentComplete() == 20 }, waitFor, time.Millisecond)

	require.NoError(t, f.consumer.Pause(context.Background()))
	assert.Equal(t, status.Paused, running.GetStatus())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, status.Paused, running.GetStatus())
	assert.Equal(t, status.Queued, pending.GetStatus())

	require.NoError(t, f.consumer.Resume(context.Background()))
	assert.Eventually(t, func() bool {
		return running.GetStatus() == status.Complete && pending.GetStatus() == status.Complete
	}, waitFor, 5*time.Millisecond)
}

func TestService_Command(t *testing.T) {
	f := newFixture(t, time.Second)
	running := move("running", "x")
	f.submit(t, running)
	require.NoError(t, f.consumer.Start(context.Background()))
	assert.Eventually(t, func() bool {
		_, ok := f.consumer.Processor(running.GetID())
		return ok && running.GetPercentComplete() == 20
	}, waitFor, time.Millisecond)

	err := f.consumer.Command(context.Background(), "missing", status.RequestTerminate)
	assert.True(t, errors.Is(err, ErrNotRunning))
	require.NoError(t, f.consumer.Command(context.Background(), running.GetID(), status.RequestTerminate))
	assert.Eventually(t, func() bool { return running.GetStatus() == status.Terminated }, waitFor, 5*time.Millisecond)
}

func TestService_AdmitWhilePaused(t *testing.T) {
	f := newFixture(t, 0)
	factory := processor.NewFactory(processor.WithTopic(f.topic), processor.WithPositioner(f.positioner))
	held := move("held", "x")
	p, err := factory.Create(f.consumer.ID(), held)
	require.NoError(t, err)

	require.NoError(t, f.consumer.Pause(context.Background()))
	admitted := make(chan bool, 1)
	go func() { admitted <- f.consumer.admit(context.Background(), p) }()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.consumer.Running(), "processor stays unregistered while the queue is paused")
	assert.Len(t, admitted, 0)

	require.NoError(t, f.consumer.Resume(context.Background()))
	select {
	case ok := <-admitted:
		assert.True(t, ok)
	case <-time.After(waitFor):
		t.Fatal("processor not admitted after resume")
	}
	assert.Equal(t, []string{held.GetID()}, f.consumer.Running())
	f.consumer.unregister(held.GetID())

	require.NoError(t, f.consumer.Stop(context.Background()))
	late, err := factory.Create(f.consumer.ID(), move("late", "y"))
	require.NoError(t, err)
	assert.False(t, f.consumer.admit(context.Background(), late))
}
