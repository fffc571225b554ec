package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, text string) *Node {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(text), &node))
	return (*Node)(&node).Root()
}

func TestNode_Interface(t *testing.T) {
	var testCases = []struct {
		description string
		input       string
		expect      interface{}
	}{
		{description: "scalar int", input: "3", expect: 3},
		{description: "scalar float", input: "1.5", expect: 1.5},
		{description: "scalar bool", input: "true", expect: true},
		{description: "null", input: "~", expect: nil},
		{description: "mapping", input: "x: 1\ny: abc", expect: map[string]interface{}{"x": 1, "y": "abc"}},
		{description: "sequence", input: "[1, two]", expect: []interface{}{1, "two"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.EqualValues(t, testCase.expect, decode(t, testCase.input).Interface())
		})
	}
}

func TestNode_Lookup(t *testing.T) {
	node := decode(t, "Name: task\nrunTime: 12\nitems: [a, b]")
	assert.Equal(t, "task", node.Lookup("name").String())
	runTime, err := node.Lookup("RUNTIME").Int()
	require.NoError(t, err)
	assert.EqualValues(t, 12, runTime)
	assert.Nil(t, node.Lookup("missing"))

	var items []string
	require.NoError(t, node.Lookup("items").Items(func(_ int, item *Node) error {
		items = append(items, item.String())
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, items)

	var keys []string
	require.NoError(t, node.Pairs(func(key string, _ *Node) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"Name", "runTime", "items"}, keys)
	assert.Error(t, node.Lookup("name").Pairs(func(string, *Node) error { return nil }))
}
