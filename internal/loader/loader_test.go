package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/conform/internal/graph"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func requireLoadError(t *testing.T, err error, code string) *LoadError {
	t.Helper()
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, code, le.Code, "error: %v", err)
	return le
}

func assertOrder(t *testing.T, m *Model) {
	t.Helper()
	assert.Equal(t, "order", m.Name)
	require.Len(t, m.Nodes, 7)
	require.Len(t, m.Edges, 7)

	g, err := m.Graph()
	require.NoError(t, err)
	assert.Equal(t, []string{"approve"}, g.TasksForLabel("approve order"))
	assert.Equal(t, []string{"reject"}, g.TasksForLabel("reject"), "task label defaults to the id")
	assert.Equal(t, []string{"approve", "reject"}, g.Successors("x"))
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"cue file", "testdata/order.cue"},
		{"yaml file", "testdata/order.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(tt.path)
			require.NoError(t, err)
			assertOrder(t, m)
		})
	}
}

func TestLoadCUE_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nodes.cue", `package test

model: nodes: [
	{id: "start", type: "start"},
	{id: "a", type: "task"},
	{id: "end", type: "end"},
]
`)
	writeFile(t, dir, "edges.cue", `package test

model: edges: [
	{from: "start", to: "a"},
	{from: "a", to: "end", count: 2},
]
`)

	m, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, m.Nodes, 3)
	require.Len(t, m.Edges, 2)
	assert.Equal(t, int64(2), m.Edges[1].Count)
}

func TestLoadCUE_EmptyDirectory(t *testing.T) {
	_, err := LoadCUE(t.TempDir())
	requireLoadError(t, err, ErrCodeNoFiles)
}

func TestLoadCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "unknown node type",
			src:  `model: {nodes: [{id: "a", type: "or_split"}], edges: []}`,
		},
		{
			name: "unknown field",
			src:  `model: {nodes: [{id: "a", type: "task", colour: "red"}], edges: []}`,
		},
		{
			name: "negative count",
			src:  `model: {nodes: [{id: "a", type: "task", count: -1}], edges: []}`,
		},
		{
			name: "empty id",
			src:  `model: {nodes: [{id: "", type: "task"}], edges: []}`,
		},
		{
			name: "missing edge endpoint",
			src:  `model: {nodes: [], edges: [{from: "a"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "model.cue", "package test\n\n"+tt.src+"\n")
			_, err := Load(path)
			requireLoadError(t, err, ErrCodeSchema)
		})
	}
}

func TestLoadCUE_MissingModel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "other.cue", "package test\n\nfoo: 1\n")
	_, err := LoadCUE(path)
	le := requireLoadError(t, err, ErrCodeSchema)
	assert.Contains(t, le.Message, "model field is required")
}

func TestLoadCUE_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "package test\n\nmodel: {nodes: [\n")
	_, err := LoadCUE(path)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, []string{ErrCodeLoadFailed, ErrCodeBuildFailed}, le.Code)
}

func TestParseCUE(t *testing.T) {
	m, err := ParseCUE([]byte(`
model: {
	nodes: [{id: "start", type: "start"}, {id: "end", type: "end"}]
	edges: [{from: "start", to: "end"}]
}`), "inline.cue")
	require.NoError(t, err)
	require.Len(t, m.Nodes, 2)
	assert.Equal(t, "start", m.Edges[0].From)
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"empty document", "", ErrCodeSchema},
		{"no model", "other: 1\n", ErrCodeParse},
		{"unknown node field", "model:\n  nodes:\n    - {id: a, type: task, colour: red}\n", ErrCodeParse},
		{"negative edge count", "model:\n  edges:\n    - {from: a, to: b, count: -3}\n", ErrCodeSchema},
		{"malformed", "model: [\n", ErrCodeParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML(strings.NewReader(tt.src))
			requireLoadError(t, err, tt.code)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	requireLoadError(t, err, ErrCodeNotFound)

	path := writeFile(t, t.TempDir(), "model.json", "{}")
	_, err = Load(path)
	requireLoadError(t, err, ErrCodeFormat)
}

func TestLoadGraph_StructuralError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.yaml", `model:
  nodes:
    - {id: start, type: start}
    - {id: end, type: end}
  edges: []
`)
	_, _, err := LoadGraph(path)
	require.Error(t, err)
	assert.True(t, graph.IsStructuralError(err))
	assert.Contains(t, err.Error(), path)
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeSchema, Message: "bad"}
	assert.Equal(t, "E007: bad", err.Error())
}

func TestWriteYAML_FromGraph(t *testing.T) {
	_, g, err := LoadGraph("testdata/order.yaml")
	require.NoError(t, err)
	require.NoError(t, g.ApplyCounts(graph.CountDelta{Nodes: map[string]int64{"approve": 3}}))

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, FromGraph("order", g)))
	assert.Contains(t, buf.String(), "count: 3")

	m, err := ParseYAML(&buf)
	require.NoError(t, err)
	g2, err := m.Graph()
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint(), g2.Fingerprint())
	assert.Equal(t, g.Counts(), g2.Counts())
}
