package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAtom struct {
	ID      string `json:"id"`
	RunTime int64  `json:"runTime"`
}

func (a *testAtom) GetID() string     { return a.ID }
func (a *testAtom) GetRunTime() int64 { return a.RunTime }

func atom(id string, runTime int64) *testAtom {
	return &testAtom{ID: id, RunTime: runTime}
}

func ids(q *AtomQueue[*testAtom]) []string {
	var ret []string
	for _, item := range q.Items() {
		ret = append(ret, item.ID)
	}
	return ret
}

func TestAtomQueue_Add(t *testing.T) {
	testCases := []struct {
		name        string
		initial     []*testAtom
		add         []*testAtom
		expectErr   error
		expectIDs   []string
		expectTotal int64
	}{
		{
			name:        "append in order",
			add:         []*testAtom{atom("a", 10), atom("b", 20)},
			expectIDs:   []string{"a", "b"},
			expectTotal: 30,
		},
		{
			name:        "duplicate against queue",
			initial:     []*testAtom{atom("a", 10)},
			add:         []*testAtom{atom("b", 5), atom("a", 7)},
			expectErr:   ErrDuplicateID,
			expectIDs:   []string{"a"},
			expectTotal: 10,
		},
		{
			name:        "duplicate within batch",
			add:         []*testAtom{atom("a", 1), atom("a", 2)},
			expectErr:   ErrDuplicateID,
			expectTotal: 0,
		},
		{
			name:        "nil atom",
			initial:     []*testAtom{atom("a", 3)},
			add:         []*testAtom{nil},
			expectErr:   ErrNilAtom,
			expectIDs:   []string{"a"},
			expectTotal: 3,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := New(tc.initial...)
			require.NoError(t, err)
			err = q.AddAll(tc.add...)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expectIDs, ids(q))
			assert.Equal(t, tc.expectTotal, q.RunTime())
		})
	}
}

func TestAtomQueue_NilReceiver(t *testing.T) {
	var q *AtomQueue[*testAtom]
	assert.ErrorIs(t, q.Add(atom("a", 1)), ErrNilQueue)
	assert.ErrorIs(t, q.AddAll(atom("a", 1), atom("b", 2)), ErrNilQueue)
	assert.ErrorIs(t, q.Insert(0, atom("a", 1)), ErrNilQueue)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(0), q.RunTime())
	assert.Equal(t, -1, q.Index("a"))
}

func TestAtomQueue_PositionalAndIDAccess(t *testing.T) {
	q, err := New(atom("a", 1), atom("b", 2), atom("c", 4))
	require.NoError(t, err)

	require.NoError(t, q.Insert(1, atom("x", 8)))
	assert.Equal(t, []string{"a", "x", "b", "c"}, ids(q))
	assert.EqualValues(t, 15, q.RunTime())

	assert.Equal(t, 2, q.Index("b"))
	assert.Equal(t, -1, q.Index("zz"))

	v, err := q.View(3)
	require.NoError(t, err)
	assert.Equal(t, "c", v.ID)
	_, err = q.View(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	v, err = q.ViewID("x")
	require.NoError(t, err)
	assert.EqualValues(t, 8, v.RunTime)
	_, err = q.ViewID("zz")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := q.RemoveID("x")
	require.NoError(t, err)
	assert.Equal(t, "x", removed.ID)
	assert.EqualValues(t, 7, q.RunTime())

	removed, err = q.RemoveAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a", removed.ID)
	assert.Equal(t, []string{"b", "c"}, ids(q))
	assert.EqualValues(t, 6, q.RunTime())

	err = q.Insert(5, atom("y", 1))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestAtomQueue_HeadTail(t *testing.T) {
	q, err := New(atom("a", 1), atom("b", 2), atom("c", 3))
	require.NoError(t, err)

	head, err := q.ViewNext()
	require.NoError(t, err)
	assert.Equal(t, "a", head.ID)
	tail, err := q.ViewLast()
	require.NoError(t, err)
	assert.Equal(t, "c", tail.ID)
	assert.Equal(t, 3, q.Len())

	head, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", head.ID)
	tail, err = q.Last()
	require.NoError(t, err)
	assert.Equal(t, "c", tail.ID)
	assert.Equal(t, []string{"b"}, ids(q))
	assert.EqualValues(t, 2, q.RunTime())

	_, err = q.Next()
	require.NoError(t, err)
	_, err = q.Next()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.ViewLast()
	assert.ErrorIs(t, err, ErrEmpty)
	assert.EqualValues(t, 0, q.RunTime())
}

func TestIterator(t *testing.T) {
	q, err := New(atom("a", 1), atom("b", 2), atom("c", 3))
	require.NoError(t, err)
	it := q.Iterator()

	assert.False(t, it.HasPrevious())
	assert.ErrorIs(t, it.Remove(), ErrIllegalState)

	var forward []string
	for it.HasNext() {
		item, err := it.Next()
		require.NoError(t, err)
		forward = append(forward, item.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, forward)

	item, err := it.Previous()
	require.NoError(t, err)
	assert.Equal(t, "c", item.ID)
	require.NoError(t, it.Set(atom("z", 10)))
	assert.EqualValues(t, 13, q.RunTime())

	item, err = it.Previous()
	require.NoError(t, err)
	assert.Equal(t, "b", item.ID)
	require.NoError(t, it.Remove())
	assert.Equal(t, []string{"a", "z"}, ids(q))
	assert.Equal(t, 1, it.NextIndex())

	require.NoError(t, it.Add(atom("n", 4)))
	assert.Equal(t, []string{"a", "n", "z"}, ids(q))
	assert.ErrorIs(t, it.Add(atom("a", 1)), ErrDuplicateID)

	item, err = it.Next()
	require.NoError(t, err)
	assert.Equal(t, "z", item.ID)
	assert.ErrorIs(t, it.Set(atom("a", 1)), ErrDuplicateID)
	assert.EqualValues(t, 15, q.RunTime())
}

func TestAtomQueue_MarshalJSON(t *testing.T) {
	q, err := New(atom("a", 1), atom("b", 2))
	require.NoError(t, err)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"atoms":[{"id":"a","runTime":1},{"id":"b","runTime":2}],"runTime":3}`, string(data))

	empty := &AtomQueue[*testAtom]{}
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"atoms":[],"runTime":0}`, string(data))
}
