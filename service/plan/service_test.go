package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/meta"
)

const alignPlan = `
beamline: ${env.ATOMQ_BEAMLINE}
userName: operator
subTasks:
  - name: prepare
    atoms:
      - kind: move
        name: stage to origin
        runTime: 5
        positions: {x: 0, y: 1.5}
      - kind: monitor
        name: ring current
        monitor: ring_current
        beamline: b24
  - name: measure
    atoms:
      - kind: scan
        name: grid
        runTime: 20
        filePath: /data/grid.nxs
        points: [{x: 0}, {x: 1}]
        monitors: [ring_current]
`

func TestService_Load(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	require.NoError(t, fs.Upload(ctx, "mem://localhost/plans/align.yaml", 0644, strings.NewReader(alignPlan)))
	t.Setenv("ATOMQ_BEAMLINE", "i15-1")
	service := New(meta.New(fs, "mem://localhost/plans"))

	task, err := service.Load(ctx, "align")
	require.NoError(t, err)
	assert.Equal(t, "align", task.GetName())
	assert.Equal(t, "i15-1", task.Beamline)
	assert.EqualValues(t, 25, task.GetRunTime())
	require.NoError(t, task.Validate())

	subTasks := task.Children()
	require.Len(t, subTasks, 2)
	prepare := subTasks[0].(*bean.SubTaskAtom)
	assert.Equal(t, "operator", prepare.UserName)
	atoms := prepare.Children()
	require.Len(t, atoms, 2)
	move := atoms[0].(*bean.MoveAtom)
	assert.Equal(t, map[string]interface{}{"x": 0, "y": 1.5}, move.Targets())
	assert.Equal(t, "i15-1", move.Beamline)
	monitor := atoms[1].(*bean.MonitorAtom)
	assert.Equal(t, "ring_current", monitor.MonitorName())
	assert.Equal(t, "b24", monitor.Beamline)

	scan := subTasks[1].(*bean.SubTaskAtom).Children()[0].(*bean.ScanAtom)
	request := scan.Request()
	assert.Len(t, request.Points, 2)
	assert.Equal(t, "/data/grid.nxs", request.FilePath)
	assert.Equal(t, []string{"ring_current"}, request.Monitors)
}

func TestService_DecodeYAML(t *testing.T) {
	service := New(nil)
	var testCases = []struct {
		description string
		input       string
		expectErr   error
	}{
		{description: "valid", input: "name: t\nsubTasks:\n  - name: s\n    atoms:\n      - kind: MoveAtom\n        positions: {x: 1}\n"},
		{description: "not a mapping", input: "- a\n- b\n", expectErr: ErrInvalidPlan},
		{description: "no sub tasks", input: "name: t\n", expectErr: ErrInvalidPlan},
		{description: "unknown kind", input: "subTasks:\n  - atoms:\n      - kind: laser\n", expectErr: bean.ErrUnknownKind},
		{description: "bad run time", input: "subTasks:\n  - atoms:\n      - kind: move\n        runTime: soon\n"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			task, err := service.DecodeYAML([]byte(testCase.input))
			if testCase.description == "valid" {
				require.NoError(t, err)
				assert.Equal(t, "t", task.GetName())
				return
			}
			require.Error(t, err)
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
			}
		})
	}
}
