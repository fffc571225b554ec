package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/model/status"
	"github.com/viant/atomq/service/device/dummy"
	"github.com/viant/atomq/service/device/recorder"
	"github.com/viant/atomq/service/event"
)

const waitFor = 2 * time.Second

// history records distinct consecutive statuses per bean
type history struct {
	mux      sync.Mutex
	statuses map[string][]status.Status
	sources  map[string][]string
}

func newHistory(t *testing.T, topic *event.Topic[bean.Envelope]) *history {
	ret := &history{statuses: map[string][]status.Status{}, sources: map[string][]string{}}
	listener, err := topic.Subscribe(ret.handle)
	require.NoError(t, err)
	t.Cleanup(func() { topic.Unsubscribe(listener) })
	return ret
}

func (h *history) handle(evt *event.Event[bean.Envelope]) {
	h.mux.Lock()
	defer h.mux.Unlock()
	id := evt.Data.ID()
	current := evt.Data.Bean.GetStatus()
	list := h.statuses[id]
	if len(list) > 0 && list[len(list)-1] == current {
		return
	}
	h.statuses[id] = append(list, current)
	h.sources[id] = append(h.sources[id], evt.Context.Source)
}

func (h *history) of(id string) []status.Status {
	h.mux.Lock()
	defer h.mux.Unlock()
	return append([]status.Status(nil), h.statuses[id]...)
}

func (h *history) last(id string) status.Status {
	list := h.of(id)
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1]
}

func newEnv(topic *event.Topic[bean.Envelope], positioner *dummy.Positioner) *Env {
	return &Env{Topic: topic, Positioner: positioner, Monitor: dummy.NewMonitor(map[string]interface{}{"i0": 2.5})}
}

func TestMove_Execute(t *testing.T) {
	var testCases = []struct {
		description string
		fail        error
		expect      []status.Status
		expectErr   bool
	}{
		{description: "moves to position", expect: []status.Status{status.Running, status.Complete}},
		{description: "device failure", fail: errors.New("limit switch"), expect: []status.Status{status.Running, status.Failed}, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			topic := event.NewTopic[bean.Envelope]("status", nil)
			defer topic.Close()
			track := newHistory(t, topic)
			positioner := dummy.NewPositioner(0, "x")
			if testCase.fail != nil {
				positioner.Fail("x", testCase.fail)
			}
			atom := bean.NewMoveAtom("move", 10, map[string]interface{}{"x": 1.0})
			p := NewMove(newEnv(topic, positioner), "q")
			require.NoError(t, p.Bind(atom))
			err := p.Execute(context.Background())
			if testCase.expectErr {
				assert.Error(t, err)
				assert.Contains(t, atom.GetMessage(), "limit switch")
				assert.Less(t, atom.GetPercentComplete(), 100.0)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 100.0, atom.GetPercentComplete())
			}
			assert.Eventually(t, func() bool { return len(track.of(atom.GetID())) == len(testCase.expect) }, waitFor, 5*time.Millisecond)
			assert.Equal(t, testCase.expect, track.of(atom.GetID()))
			assert.ErrorIs(t, p.Execute(context.Background()), ErrAlreadyStarted)
		})
	}
}

func TestMove_Terminate(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	track := newHistory(t, topic)
	positioner := dummy.NewPositioner(time.Second)
	atom := bean.NewMoveAtom("move", 10, map[string]interface{}{"x": 1.0})
	p := NewMove(newEnv(topic, positioner), "q")
	require.NoError(t, p.Bind(atom))
	done := make(chan error, 1)
	go func() { done <- p.Execute(context.Background()) }()
	assert.Eventually(t, func() bool { return atom.GetPercentComplete() == 20 }, waitFor, time.Millisecond)

	require.NoError(t, p.Terminate(context.Background()))
	require.NoError(t, p.Terminate(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("move was not terminated")
	}
	assert.Equal(t, status.Terminated, atom.GetStatus())
	assert.Equal(t, 1, positioner.Aborts())
	assert.Eventually(t, func() bool { return track.last(atom.GetID()) == status.Terminated }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []status.Status{status.Running, status.RequestTerminate, status.Terminated}, track.of(atom.GetID()))
}

func TestMove_PauseResume(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	track := newHistory(t, topic)
	positioner := dummy.NewPositioner(50*time.Millisecond, "x", "y")
	atom := bean.NewMoveAtom("move", 10, map[string]interface{}{"x": 1.0, "y": 2.0})
	p := NewMove(newEnv(topic, positioner), "q")
	require.NoError(t, p.Bind(atom))
	done := make(chan error, 1)
	go func() { done <- p.Execute(context.Background()) }()
	assert.Eventually(t, func() bool { return atom.GetPercentComplete() == 20 }, waitFor, time.Millisecond)

	require.NoError(t, p.Pause(context.Background()))
	require.NoError(t, p.Pause(context.Background()))
	assert.Equal(t, status.Paused, atom.GetStatus())
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, status.Paused, atom.GetStatus())
	assert.Less(t, positioner.Moves(), 2)

	require.NoError(t, p.Resume(context.Background()))
	require.NoError(t, <-done)
	assert.Equal(t, status.Complete, atom.GetStatus())
	assert.Eventually(t, func() bool { return track.last(atom.GetID()) == status.Complete }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []status.Status{status.Running, status.RequestPause, status.Paused, status.RequestResume, status.Resumed, status.Running, status.Complete}, track.of(atom.GetID()))
	assert.ErrorIs(t, p.Pause(context.Background()), ErrNotActive)
}

func TestMonitor_Execute(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	env := newEnv(topic, nil)
	env.Recorder = recorder.New(afs.New(), t.TempDir())
	atom := bean.NewMonitorAtom("monitor", 1, "i0")
	p := NewMonitor(env, "q")
	require.NoError(t, p.Bind(atom))
	require.NoError(t, p.Execute(context.Background()))
	assert.Equal(t, status.Complete, atom.GetStatus())
	assert.Equal(t, "/entry1/instrument/i0", atom.Dataset)
	assert.NotEmpty(t, atom.FilePath)

	failing := bean.NewMonitorAtom("monitor", 1, "missing")
	p = NewMonitor(env, "q")
	require.NoError(t, p.Bind(failing))
	assert.Error(t, p.Execute(context.Background()))
	assert.Equal(t, status.Failed, failing.GetStatus())
}

func TestScan_Execute(t *testing.T) {
	var testCases = []struct {
		description string
		failAt      int
		expect      status.Status
		expectErr   bool
	}{
		{description: "scan completes", expect: status.Complete},
		{description: "scan fails", failAt: 2, expect: status.Failed, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			topic := event.NewTopic[bean.Envelope]("status", nil)
			defer topic.Close()
			env := newEnv(topic, nil)
			scans := dummy.NewScanService(time.Millisecond, func(ctx context.Context, b bean.Bean, u bean.Update) error {
				return Publish(ctx, topic, "", b, u)
			})
			scans.FailAt = testCase.failAt
			env.ScanService = scans
			atom := bean.NewScanAtom("scan", 10, &bean.ScanRequest{Points: []map[string]interface{}{{"x": 1}, {"x": 2}, {"x": 3}}})
			p := NewScan(env, "q")
			require.NoError(t, p.Bind(atom))
			err := p.Execute(context.Background())
			if testCase.expectErr {
				assert.ErrorIs(t, err, ErrChildFailed)
				assert.Contains(t, atom.GetMessage(), "Failure caused by 'scan'")
			} else {
				require.NoError(t, err)
				assert.Equal(t, 100.0, atom.GetPercentComplete())
			}
			assert.Equal(t, testCase.expect, atom.GetStatus())
			assert.GreaterOrEqual(t, atom.GetPercentComplete(), scanConfigured)
			require.NotNil(t, p.ScanBean())
		})
	}
}

func TestQueueListener_Handle(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	first := bean.NewMoveAtom("first", 30, map[string]interface{}{"x": 1})
	second := bean.NewMoveAtom("second", 10, map[string]interface{}{"x": 2})
	sub, err := bean.NewSubTaskAtom("sub", first, second)
	require.NoError(t, err)
	owner := newBase(&Env{Topic: topic}, "q")
	require.NoError(t, owner.Bind(sub))
	require.NoError(t, bean.Apply(sub, bean.Update{Status: status.Running, Percent: bean.Percent(2)}))
	listener := NewQueueListener(owner, []bean.Bean{first, second}, 99.5)

	emit := func(child bean.Bean, source string, update bean.Update) {
		snapshot, err := bean.Mutate(child, update)
		require.NoError(t, err)
		listener.Handle(event.NewEvent(&event.Context{BeanID: child.GetID(), Source: source}, bean.Envelope{Bean: snapshot}))
	}

	emit(first, event.SourceProcessor, bean.Update{Status: status.Running, Percent: bean.Percent(50)})
	assert.InDelta(t, 2+98*0.75*0.5, sub.GetPercentComplete(), 0.001)
	assert.Equal(t, status.Running, sub.GetStatus())

	emit(first, event.SourceParent, bean.Update{Status: status.Paused})
	assert.Equal(t, status.Running, sub.GetStatus())
	assert.Len(t, listener.Commands(), 0)

	emit(first, event.SourceOperator, bean.Update{Status: status.Running})
	emit(first, event.SourceOperator, bean.Update{Status: status.Paused})
	assert.Equal(t, status.RequestPause, sub.GetStatus())
	assert.Equal(t, "Pause requested from 'first'", sub.GetQueueMessage())
	cmd := <-listener.Commands()
	assert.Equal(t, status.RequestPause, cmd.Status)
	assert.Equal(t, first.GetID(), cmd.ChildID)

	emit(first, event.SourceOperator, bean.Update{Status: status.RequestResume})
	assert.Equal(t, status.RequestResume, sub.GetStatus())
	assert.Equal(t, status.RequestResume, (<-listener.Commands()).Status)
	require.NoError(t, bean.Apply(sub, bean.Update{Status: status.Running}))

	emit(first, event.SourceProcessor, bean.Update{Status: status.Complete})
	assert.Equal(t, "'first' completed successfully.", sub.GetQueueMessage())
	select {
	case <-listener.Done():
		t.Fatal("latch released before every child concluded")
	default:
	}
	emit(second, event.SourceProcessor, bean.Update{Status: status.Running})
	emit(second, event.SourceProcessor, bean.Update{Status: status.Complete})
	<-listener.Done()
	assert.True(t, listener.AllComplete())
	assert.Equal(t, "All child processes complete.", sub.GetQueueMessage())
	assert.Equal(t, 99.5, sub.GetPercentComplete())

	unknown := bean.NewMoveAtom("unknown", 1, map[string]interface{}{"x": 1})
	emit(unknown, event.SourceProcessor, bean.Update{Status: status.Failed})
	assert.Equal(t, status.Running, sub.GetStatus())
}

func TestQueueListener_FirstRunningOnPausedOwner(t *testing.T) {
	var testCases = []struct {
		description string
		owner       status.Status
		source      string
	}{
		{description: "paused owner", owner: status.Paused, source: event.SourceProcessor},
		{description: "owner pause requested", owner: status.RequestPause, source: event.SourceProcessor},
		{description: "operator sourced", owner: status.Paused, source: event.SourceOperator},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			topic := event.NewTopic[bean.Envelope]("status", nil)
			defer topic.Close()
			first := bean.NewMoveAtom("first", 10, map[string]interface{}{"x": 1})
			second := bean.NewMoveAtom("second", 10, map[string]interface{}{"x": 2})
			sub, err := bean.NewSubTaskAtom("sub", first, second)
			require.NoError(t, err)
			owner := newBase(&Env{Topic: topic}, "q")
			require.NoError(t, owner.Bind(sub))
			require.NoError(t, bean.Apply(sub, bean.Update{Status: status.Running}))
			require.NoError(t, bean.Apply(sub, bean.Update{Status: testCase.owner}))
			listener := NewQueueListener(owner, []bean.Bean{first, second}, 99.5)

			snapshot, err := bean.Mutate(second, bean.Update{Status: status.Running})
			require.NoError(t, err)
			listener.Handle(event.NewEvent(&event.Context{BeanID: second.GetID(), Source: testCase.source}, bean.Envelope{Bean: snapshot}))
			assert.Equal(t, testCase.owner, sub.GetStatus())
			assert.Len(t, listener.Commands(), 0)
			assert.NotContains(t, sub.GetQueueMessage(), "Resume requested")
		})
	}
}

func TestQueueListener_Failure(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	first := bean.NewMoveAtom("first", 10, map[string]interface{}{"x": 1})
	second := bean.NewMoveAtom("second", 10, map[string]interface{}{"x": 2})
	sub, err := bean.NewSubTaskAtom("sub", first, second)
	require.NoError(t, err)
	owner := newBase(&Env{Topic: topic}, "q")
	require.NoError(t, owner.Bind(sub))
	require.NoError(t, bean.Apply(sub, bean.Update{Status: status.Running}))
	listener := NewQueueListener(owner, []bean.Bean{first, second}, 99.5)

	snapshot, err := bean.Mutate(first, bean.Update{Status: status.Failed, Message: bean.Text("limit switch")})
	require.NoError(t, err)
	listener.Handle(event.NewEvent(&event.Context{BeanID: first.GetID()}, bean.Envelope{Bean: snapshot}))
	<-listener.Done()
	assert.False(t, listener.AllComplete())
	culprit, description := listener.Failure()
	assert.Equal(t, "first", culprit)
	assert.Equal(t, "Failure caused by 'first': limit switch", description)
	assert.Equal(t, description, sub.GetQueueMessage())
}

func TestFactory_Create(t *testing.T) {
	topic := event.NewTopic[bean.Envelope]("status", nil)
	defer topic.Close()
	factory := NewFactory(WithTopic(topic), WithPositioner(dummy.NewPositioner(0, "x")), WithMonitor(dummy.NewMonitor(map[string]interface{}{"i0": 1})))
	factory.SetRegistry(newFakeRegistry(factory, topic))
	validSub, _ := bean.NewSubTaskAtom("sub", bean.NewMoveAtom("move", 1, map[string]interface{}{"x": 1}))
	invalidSub, _ := bean.NewSubTaskAtom("sub", bean.NewMoveAtom("move", 1, map[string]interface{}{"z": 1}))
	emptySub := &bean.SubTaskAtom{}

	var testCases = []struct {
		description string
		bean        bean.Bean
		expectKind  bean.Kind
		expectErr   error
	}{
		{description: "move", bean: bean.NewMoveAtom("move", 1, map[string]interface{}{"x": 1}), expectKind: bean.KindMoveAtom},
		{description: "monitor", bean: bean.NewMonitorAtom("monitor", 1, "i0"), expectKind: bean.KindMonitorAtom},
		{description: "sub task", bean: validSub, expectKind: bean.KindSubTaskAtom},
		{description: "unknown device", bean: bean.NewMoveAtom("move", 1, map[string]interface{}{"z": 1}), expectErr: ErrValidation},
		{description: "unknown monitor", bean: bean.NewMonitorAtom("monitor", 1, "i9"), expectErr: ErrValidation},
		{description: "unknown device in child", bean: invalidSub, expectErr: ErrValidation},
		{description: "empty sub task", bean: emptySub, expectErr: ErrValidation},
		{description: "scan without scan service", bean: bean.NewScanAtom("scan", 1, &bean.ScanRequest{}), expectErr: ErrValidation},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			p, err := factory.Create("q", testCase.bean)
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expectKind, p.BeanKind())
			assert.Equal(t, testCase.bean, p.Bean())
			assert.ErrorIs(t, p.Bind(testCase.bean), ErrAlreadyBound)
		})
	}
}

func TestComposite_Execute(t *testing.T) {
	var testCases = []struct {
		description string
		fail        string
		expect      status.Status
		expectErr   error
	}{
		{description: "all children complete", expect: status.Complete},
		{description: "child failure", fail: "x", expect: status.Failed, expectErr: ErrChildFailed},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			topic := event.NewTopic[bean.Envelope]("status", nil)
			defer topic.Close()
			positioner := dummy.NewPositioner(time.Millisecond)
			if testCase.fail != "" {
				positioner.Fail(testCase.fail, errors.New("stuck"))
			}
			factory := NewFactory(WithTopic(topic), WithPositioner(positioner))
			registry := newFakeRegistry(factory, topic)
			factory.SetRegistry(registry)
			sub, err := bean.NewSubTaskAtom("sub",
				bean.NewMoveAtom("move x", 10, map[string]interface{}{"x": 1}),
				bean.NewMoveAtom("move y", 10, map[string]interface{}{"y": 1}))
			require.NoError(t, err)
			sub.Beamline = "i15"
			p, err := factory.Create("jobs", sub)
			require.NoError(t, err)
			err = p.Execute(context.Background())
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
				assert.Contains(t, sub.GetMessage(), "caused by 'move x'")
				assert.Less(t, sub.GetPercentComplete(), 100.0)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 100.0, sub.GetPercentComplete())
			}
			assert.Equal(t, testCase.expect, sub.GetStatus())
			assert.Empty(t, registry.queueIDs())
			for _, child := range registry.submitted() {
				assert.Equal(t, "i15", child.Base().Beamline)
				assert.True(t, child.GetStatus().IsFinal(), child.GetName())
			}
			for _, child := range sub.Children() {
				assert.Equal(t, status.None, child.GetStatus())
			}
		})
	}
}

// fakeRegistry runs every queue sequentially on its own goroutine
type fakeRegistry struct {
	factory *Factory
	topic   StatusTopic
	mux     sync.Mutex
	seq     int
	queues  map[string]*fakeQueue
	beans   []bean.Bean
}

type fakeQueue struct {
	mux     sync.Mutex
	current Processor
	stopped bool
	done    chan struct{}
}

func newFakeRegistry(factory *Factory, topic StatusTopic) *fakeRegistry {
	return &fakeRegistry{factory: factory, topic: topic, queues: map[string]*fakeQueue{}}
}

func (r *fakeRegistry) queue(id string) (*fakeQueue, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	queue, ok := r.queues[id]
	if !ok {
		return nil, fmt.Errorf("unknown queue %v", id)
	}
	return queue, nil
}

func (r *fakeRegistry) queueIDs() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	var ret []string
	for id := range r.queues {
		ret = append(ret, id)
	}
	return ret
}

func (r *fakeRegistry) submitted() []bean.Bean {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]bean.Bean(nil), r.beans...)
}

func (r *fakeRegistry) CreateChildQueue(ctx context.Context, ownerID string) (string, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.seq++
	id := fmt.Sprintf("active-%d", r.seq)
	r.queues[id] = &fakeQueue{done: make(chan struct{})}
	return id, nil
}

func (r *fakeRegistry) Submit(ctx context.Context, queueID string, beans ...bean.Bean) error {
	queue, err := r.queue(queueID)
	if err != nil {
		return err
	}
	for _, b := range beans {
		if err := b.Base().MarkSubmitted(); err != nil {
			return err
		}
		if err := Publish(ctx, r.topic, queueID, b, bean.Update{Status: status.Queued}); err != nil {
			return err
		}
	}
	r.mux.Lock()
	r.beans = append(r.beans, beans...)
	r.mux.Unlock()
	go func() {
		defer close(queue.done)
		for _, b := range beans {
			queue.mux.Lock()
			stopped := queue.stopped
			queue.mux.Unlock()
			if stopped {
				_ = Publish(ctx, r.topic, queueID, b, bean.Update{Status: status.Terminated})
				continue
			}
			p, err := r.factory.Create(queueID, b)
			if err != nil {
				_ = Publish(ctx, r.topic, queueID, b, bean.Update{Status: status.Failed, Message: bean.Text(err.Error())})
				continue
			}
			queue.mux.Lock()
			queue.current = p
			queue.mux.Unlock()
			_ = p.Execute(ctx)
			queue.mux.Lock()
			queue.current = nil
			queue.mux.Unlock()
		}
	}()
	return nil
}

func (r *fakeRegistry) control(queueID string, fn func(p Processor) error) error {
	queue, err := r.queue(queueID)
	if err != nil {
		return err
	}
	queue.mux.Lock()
	current := queue.current
	queue.mux.Unlock()
	if current == nil {
		return nil
	}
	return fn(current)
}

func (r *fakeRegistry) PauseQueue(ctx context.Context, queueID string) error {
	return r.control(queueID, func(p Processor) error { return p.Pause(ctx) })
}

func (r *fakeRegistry) ResumeQueue(ctx context.Context, queueID string) error {
	return r.control(queueID, func(p Processor) error { return p.Resume(ctx) })
}

func (r *fakeRegistry) StopQueue(ctx context.Context, queueID string) error {
	queue, err := r.queue(queueID)
	if err != nil {
		return err
	}
	queue.mux.Lock()
	queue.stopped = true
	current := queue.current
	queue.mux.Unlock()
	if current != nil {
		_ = current.Terminate(ctx)
	}
	<-queue.done
	return nil
}

func (r *fakeRegistry) DeregisterQueue(ctx context.Context, queueID string) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	delete(r.queues, queueID)
	return nil
}
