package bean

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/atomq/model/status"
)

func TestApply_PreviousStatus(t *testing.T) {
	move := NewMoveAtom("move", 10, map[string]interface{}{"x": 1.0})
	sequence := []status.Status{status.Submitted, status.Queued, status.Running, status.RequestPause, status.Paused, status.RequestResume, status.Resumed, status.Running, status.Complete}
	previous := move.GetStatus()
	for _, next := range sequence {
		require.NoError(t, Apply(move, Update{Status: next}))
		assert.Equal(t, previous, move.GetPreviousStatus(), "after %v", next)
		assert.Equal(t, next, move.GetStatus())
		previous = next
	}
	assert.EqualValues(t, 100, move.GetPercentComplete())

	err := Apply(move, Update{Status: status.Running})
	assert.ErrorIs(t, err, ErrFinalStatus)
	assert.Equal(t, status.Running, move.GetPreviousStatus())
}

func TestApply_Percent(t *testing.T) {
	testCases := []struct {
		name     string
		updates  []Update
		expected float64
	}{
		{
			name:     "monotonic while running",
			updates:  []Update{{Status: status.Running, Percent: Percent(40)}, {Percent: Percent(20)}},
			expected: 40,
		},
		{
			name:     "clamped",
			updates:  []Update{{Status: status.Running, Percent: Percent(140)}},
			expected: 100,
		},
		{
			name:     "negative ignored",
			updates:  []Update{{Status: status.Running, Percent: Percent(-3)}},
			expected: 0,
		},
		{
			name:     "complete forces 100",
			updates:  []Update{{Status: status.Running, Percent: Percent(30)}, {Status: status.Complete}},
			expected: 100,
		},
		{
			name:     "failed keeps percent",
			updates:  []Update{{Status: status.Running, Percent: Percent(30)}, {Status: status.Failed, Message: Text("boom")}},
			expected: 30,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			monitor := NewMonitorAtom("monitor", 1, "m1")
			for _, u := range tc.updates {
				require.NoError(t, Apply(monitor, u))
			}
			assert.Equal(t, tc.expected, monitor.GetPercentComplete())
		})
	}
}

func TestApply_QueueMessage(t *testing.T) {
	subTask, err := NewSubTaskAtom("sub", NewMoveAtom("m", 1, map[string]interface{}{"x": 1}))
	require.NoError(t, err)
	require.NoError(t, Apply(subTask, Update{Status: status.Running, Message: Text("own"), QueueMessage: Text("'m': moving")}))
	assert.Equal(t, "own", subTask.GetMessage())
	assert.Equal(t, "'m': moving", subTask.GetQueueMessage())

	move := NewMoveAtom("m", 1, map[string]interface{}{"x": 1})
	require.NoError(t, Apply(move, Update{QueueMessage: Text("ignored")}))
}

func TestApply_InvalidTransition(t *testing.T) {
	move := NewMoveAtom("m", 1, map[string]interface{}{"x": 1})
	require.NoError(t, Apply(move, Update{Status: status.Running}))
	err := Apply(move, Update{Status: status.Queued})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, status.Running, move.GetStatus())
}

func TestMutate_Clone(t *testing.T) {
	move := NewMoveAtom("m", 1, map[string]interface{}{"x": 1})
	subTask, err := NewSubTaskAtom("sub", move)
	require.NoError(t, err)
	task, err := NewTaskBean("task", subTask)
	require.NoError(t, err)

	snapshot, err := Mutate(task, Update{Status: status.Running, Percent: Percent(5)})
	require.NoError(t, err)
	require.NoError(t, Apply(task, Update{Percent: Percent(50)}))

	clone := snapshot.(*TaskBean)
	assert.EqualValues(t, 5, clone.GetPercentComplete())
	assert.EqualValues(t, 50, task.GetPercentComplete())
	assert.Equal(t, task.GetID(), clone.GetID())

	clonedMove := clone.Children()[0].(*SubTaskAtom).Children()[0].(*MoveAtom)
	clonedMove.PositionConfig["x"] = 2
	assert.Equal(t, 1, move.Targets()["x"])
}

func TestComposite_RunTime(t *testing.T) {
	subTask, err := NewSubTaskAtom("sub",
		NewMoveAtom("m1", 10, map[string]interface{}{"x": 1}),
		NewMoveAtom("m2", 10, map[string]interface{}{"y": 1}))
	require.NoError(t, err)
	assert.EqualValues(t, 20, subTask.GetRunTime())
	require.NoError(t, subTask.AddAtom(NewMonitorAtom("mon", 5, "i0")))
	assert.EqualValues(t, 25, subTask.GetRunTime())

	duplicate := subTask.Children()[0]
	assert.Error(t, subTask.AddAtom(duplicate))
	assert.EqualValues(t, 25, subTask.GetRunTime())
	assert.Len(t, subTask.Children(), 3)
}

func TestValidate(t *testing.T) {
	emptySub, _ := NewSubTaskAtom("empty")
	okSub, _ := NewSubTaskAtom("ok", NewMoveAtom("m", 1, map[string]interface{}{"x": 1}))
	badSub, _ := NewSubTaskAtom("bad", NewMoveAtom("m", 1, nil))
	emptyTask, _ := NewTaskBean("task")
	okTask, _ := NewTaskBean("task", okSub)
	badTask, _ := NewTaskBean("task", badSub)

	testCases := []struct {
		name      string
		bean      Bean
		expectErr bool
	}{
		{name: "move", bean: NewMoveAtom("m", 1, map[string]interface{}{"x": 1})},
		{name: "move without target", bean: NewMoveAtom("m", 1, nil), expectErr: true},
		{name: "monitor", bean: NewMonitorAtom("mon", 1, "i0")},
		{name: "monitor without device", bean: NewMonitorAtom("mon", 1, ""), expectErr: true},
		{name: "scan", bean: NewScanAtom("scan", 1, &ScanRequest{})},
		{name: "scan without request", bean: NewScanAtom("scan", 1, nil), expectErr: true},
		{name: "empty sub task", bean: emptySub, expectErr: true},
		{name: "sub task", bean: okSub},
		{name: "empty task", bean: emptyTask, expectErr: true},
		{name: "task", bean: okTask},
		{name: "task with invalid atom", bean: badTask, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bean.Validate()
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidBean)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEnvelope_JSON(t *testing.T) {
	move := NewMoveAtom("move", 10, map[string]interface{}{"x": 1.5})
	monitor := NewMonitorAtom("monitor", 5, "i0")
	scan := NewScanAtom("scan", 7, &ScanRequest{Points: []map[string]interface{}{{"x": 1.0}}})
	subTask, err := NewSubTaskAtom("sub", move, monitor, scan)
	require.NoError(t, err)
	task, err := NewTaskBean("task", subTask)
	require.NoError(t, err)
	task.Beamline = "i15"
	require.NoError(t, Apply(task, Update{Status: status.Running, Percent: Percent(12), QueueMessage: Text("Running...")}))

	data, err := json.Marshal(Wrap(task))
	require.NoError(t, err)

	decoded := &Envelope{}
	require.NoError(t, json.Unmarshal(data, decoded))
	actual, ok := decoded.Bean.(*TaskBean)
	require.True(t, ok)
	assert.Equal(t, task.GetID(), actual.GetID())
	assert.Equal(t, status.Running, actual.GetStatus())
	assert.Equal(t, status.None, actual.GetPreviousStatus())
	assert.EqualValues(t, 12, actual.GetPercentComplete())
	assert.Equal(t, "Running...", actual.GetQueueMessage())
	assert.Equal(t, "i15", actual.Beamline)
	assert.EqualValues(t, 22, actual.GetRunTime())

	children := actual.Children()
	require.Len(t, children, 1)
	atoms := children[0].(*SubTaskAtom).Children()
	require.Len(t, atoms, 3)
	assert.Equal(t, KindMoveAtom, atoms[0].Kind())
	assert.Equal(t, 1.5, atoms[0].(*MoveAtom).Targets()["x"])
	assert.Equal(t, "i0", atoms[1].(*MonitorAtom).MonitorName())
	assert.Len(t, atoms[2].(*ScanAtom).Request().Points, 1)

	_, err = Decode([]byte(`{"kind":"Unknown"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestInherit(t *testing.T) {
	task, _ := NewTaskBean("task")
	task.Beamline, task.HostName, task.UserName = "i15", "ws1", "jdoe"
	move := NewMoveAtom("m", 1, map[string]interface{}{"x": 1})
	move.UserName = "other"
	move.Inherit(task.Base())
	assert.Equal(t, "i15", move.Beamline)
	assert.Equal(t, "ws1", move.HostName)
	assert.Equal(t, "jdoe", move.UserName)
}
