package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain() *Graph {
	return Build([]NodeDeps{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	})
}

func diamond() *Graph {
	return Build([]NodeDeps{
		{ID: "load"},
		{ID: "clean", DependsOn: []string{"load"}},
		{ID: "enrich", DependsOn: []string{"load"}},
		{ID: "report", DependsOn: []string{"clean", "enrich"}},
	})
}

func TestBuild_IgnoresSelfEdges(t *testing.T) {
	g := Build([]NodeDeps{
		{ID: "a", DependsOn: []string{"a"}},
	})

	assert.False(t, g.HasCycle())
	assert.Empty(t, g.DirectDependencies("a"))
}

func TestHasCycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []NodeDeps
		want  bool
	}{
		{
			name:  "acyclic chain",
			nodes: []NodeDeps{{ID: "a"}, {ID: "b", DependsOn: []string{"a"}}},
			want:  false,
		},
		{
			name: "two node cycle",
			nodes: []NodeDeps{
				{ID: "a", DependsOn: []string{"b"}},
				{ID: "b", DependsOn: []string{"a"}},
			},
			want: true,
		},
		{
			name: "cycle behind a clean prefix",
			nodes: []NodeDeps{
				{ID: "ok"},
				{ID: "x", DependsOn: []string{"z"}},
				{ID: "y", DependsOn: []string{"x"}},
				{ID: "z", DependsOn: []string{"y"}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Build(tt.nodes)
			assert.Equal(t, tt.want, g.HasCycle())

			if tt.want {
				assert.NotEmpty(t, g.CyclePath())
			}
		})
	}
}

func TestTransitiveDependencies(t *testing.T) {
	g := diamond()

	assert.Equal(t, []string{"clean", "enrich", "load"}, g.TransitiveDependencies("report"))
	assert.Equal(t, []string{"load"}, g.TransitiveDependencies("clean"))
	assert.Empty(t, g.TransitiveDependencies("load"))
}

func TestTransitiveDependencies_ClosureIsIdempotent(t *testing.T) {
	g := diamond()

	closure := g.TransitiveDependencies("report")

	again := make(map[string]bool)
	for _, id := range closure {
		again[id] = true

		for _, dep := range g.TransitiveDependencies(id) {
			again[dep] = true
		}
	}

	assert.Len(t, again, len(closure))
	for _, id := range closure {
		assert.True(t, again[id])
	}
}

func TestExecutionOrder_Chain(t *testing.T) {
	g := chain()

	order, err := g.ExecutionOrder("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestExecutionOrder_DependenciesComeFirst(t *testing.T) {
	g := diamond()

	order, err := g.ExecutionOrder("report")
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	// Every node appears exactly once and after all of its dependencies.
	for _, id := range order {
		for _, dep := range g.DirectDependencies(id) {
			assert.Less(t, pos[dep], pos[id], "%s must run before %s", dep, id)
		}
	}
}

func TestExecutionOrder_DeclarationOrderBreaksTies(t *testing.T) {
	// clean and enrich are both ready once load is done; declaration order
	// decides, so runs are reproducible.
	g := diamond()

	order, err := g.ExecutionOrder("report")
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "clean", "enrich", "report"}, order)
}

func TestExecutionOrder_SubgraphCycleFailsLoudly(t *testing.T) {
	g := Build([]NodeDeps{
		{ID: "standalone"},
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})

	// The target's own neighborhood is clean even though the graph as a
	// whole is cyclic.
	order, err := g.ExecutionOrder("standalone")
	require.NoError(t, err)
	assert.Equal(t, []string{"standalone"}, order)

	_, err = g.ExecutionOrder("a")
	require.Error(t, err)

	var cycleErr *CycleError

	require.ErrorAs(t, err, &cycleErr)
	assert.False(t, cycleErr.Dynamic)
	assert.Contains(t, cycleErr.Path, "a")
	assert.Contains(t, cycleErr.Path, "b")
}

func TestExecutionOrder_UnknownTarget(t *testing.T) {
	g := chain()

	_, err := g.ExecutionOrder("nope")

	var unknownErr *UnknownNodeError

	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.ID)
}

func TestExecutionOrder_UnknownDependency(t *testing.T) {
	g := Build([]NodeDeps{
		{ID: "a", DependsOn: []string{"ghost"}},
	})

	_, err := g.ExecutionOrder("a")

	var structErr *StructuralError

	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, []string{"ghost"}, structErr.Unknown)
}

func TestPlan(t *testing.T) {
	g := chain()

	plan, err := g.Plan("c", []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, plan.Order)
	assert.Equal(t, []string{"b", "c"}, plan.ToRun)
	assert.Equal(t, []string{"a"}, plan.Skipped)
}

func TestPlan_PartitionProperties(t *testing.T) {
	g := diamond()

	subsets := [][]string{
		nil,
		{"load"},
		{"load", "clean"},
		{"load", "clean", "enrich", "report"},
		{"unrelated"},
	}

	for _, done := range subsets {
		plan, err := g.Plan("report", done)
		require.NoError(t, err)

		// toRun ∪ skipped = order, disjoint.
		assert.Len(t, plan.ToRun, len(plan.Order)-len(plan.Skipped))

		seen := make(map[string]bool)
		for _, id := range append(append([]string{}, plan.ToRun...), plan.Skipped...) {
			assert.False(t, seen[id], "node %s partitioned twice", id)
			seen[id] = true
		}

		for _, id := range plan.Order {
			assert.True(t, seen[id], "node %s missing from partition", id)
		}
	}
}

func TestValidate(t *testing.T) {
	g := Build([]NodeDeps{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a", "missing"}},
		{ID: "island"},
	})

	report := g.Validate()

	assert.False(t, report.Valid)
	assert.False(t, report.HasCycle)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "missing")
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "island")
}

func TestValidate_CleanGraph(t *testing.T) {
	report := diamond().Validate()

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestDependents(t *testing.T) {
	g := diamond()

	assert.Equal(t, []string{"clean", "enrich"}, g.Dependents("load"))
	assert.Empty(t, g.Dependents("report"))
}
