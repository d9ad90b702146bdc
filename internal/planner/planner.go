// Package planner implements the Dependency & Wave Planner (spec §4.2):
// it builds the dependency DAG (explicit predecessor edges plus implicit
// file-write-conflict edges) and assigns tasks to waves greedily.
//
// The cycle-detection and topological-layering shape is grounded on the
// teacher's internal/executor/graph.go (DFS white/gray/black coloring,
// which also catches a self-reference as a one-node back edge;
// Kahn's-algorithm wave peeling).
// Two things the teacher does not do are implemented fresh here: file
// conflicts are folded into the same dependency graph as explicit edges
// (not merely validated after placement), and a task whose file set
// collides with one already placed in its computed wave is bumped forward
// and retried rather than rejected outright.
package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

// graph is the internal adjacency representation: edges[p] lists tasks
// that must not start before p (explicit predecessor or earlier file
// writer).
type graph struct {
	tasks map[string]*models.Task
	order []string // ingestion order
	edges map[string][]string
}

func buildGraph(tasks []models.Task) *graph {
	g := &graph{
		tasks: make(map[string]*models.Task, len(tasks)),
		edges: make(map[string][]string),
	}
	for i := range tasks {
		t := &tasks[i]
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; ok {
				g.edges[dep] = appendEdge(g.edges[dep], t.ID)
			}
		}
	}

	// Implicit file-write-conflict edges: for every file f, if tasks T1 < T2
	// (ingestion order) both write f, add T1 -> T2 (spec §4.2 edge rule 2).
	writers := make(map[string][]string) // file -> task IDs in ingestion order
	for _, id := range g.order {
		for _, f := range g.tasks[id].Files {
			writers[f] = append(writers[f], id)
		}
	}
	for _, ids := range writers {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				g.edges[ids[i]] = appendEdge(g.edges[ids[i]], ids[j])
			}
		}
	}

	return g
}

func appendEdge(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// hasCycle reports whether the graph has a cycle, and if so the IDs
// involved (for the CircularDependency error's reporting requirement,
// spec §8's "naming both IDs").
func (g *graph) hasCycle() (bool, []string) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))
	for _, id := range g.order {
		color[id] = white
	}

	var cycle []string
	var dfs func(string, []string) bool
	dfs = func(node string, path []string) bool {
		color[node] = gray
		path = append(path, node)
		for _, next := range g.edges[node] {
			switch color[next] {
			case gray:
				// Found the back edge; slice path from next's first
				// occurrence to report the cycle membership.
				for i, n := range path {
					if n == next {
						cycle = append([]string{}, path[i:]...)
						break
					}
				}
				if cycle == nil {
					cycle = append([]string{}, path...)
				}
				return true
			case white:
				if dfs(next, path) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if dfs(id, nil) {
				return true, cycle
			}
		}
	}
	return false, nil
}

// Plan builds the waves for tasks (spec §4.2). It returns only the waves;
// the caller wraps them in a models.Plan with its phase ID and creation
// timestamp, so this package stays free of wall-clock reads.
func Plan(tasks []models.Task) ([]models.Wave, error) {
	if err := models.ValidateTaskSet(tasks); err != nil {
		return nil, taxonomy.Newf(taxonomy.UnknownPredecessor, "%v", err)
	}
	if len(tasks) == 0 {
		return []models.Wave{}, nil
	}

	g := buildGraph(tasks)
	if cyclic, cycle := g.hasCycle(); cyclic {
		return nil, taxonomy.Newf(taxonomy.CircularDependency,
			"circular dependency among tasks: %s", strings.Join(cycle, " -> "))
	}

	waveOf := make(map[string]int, len(g.order))
	// filesByWave[w] is the union of file-write sets already placed in
	// wave w, used to detect same-file collisions when bumping.
	filesByWave := make(map[int]map[string]bool)

	// Process tasks in a fixed point order so that placement is
	// deterministic for a given input task-slice order: repeatedly
	// place any task all of whose predecessors (explicit + file-conflict)
	// already have a wave, in ingestion order among the currently placeable
	// set. This mirrors Kahn's algorithm peeling layers, generalized to
	// also carry the file-conflict bump-forward rule per task rather than
	// per layer.
	placed := make(map[string]bool, len(g.order))
	predecessorsOf := make(map[string][]string, len(g.order))
	for p, dependents := range g.edges {
		for _, d := range dependents {
			predecessorsOf[d] = append(predecessorsOf[d], p)
		}
	}

	for len(placed) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			baseWave := 0
			for _, p := range predecessorsOf[id] {
				if !placed[p] {
					ready = false
					break
				}
				if waveOf[p] > baseWave {
					baseWave = waveOf[p]
				}
			}
			if !ready {
				continue
			}

			w := baseWave + 1
			task := g.tasks[id]
			for {
				set, ok := filesByWave[w]
				if !ok {
					set = make(map[string]bool)
					filesByWave[w] = set
				}
				conflict := false
				for _, f := range task.Files {
					if set[f] {
						conflict = true
						break
					}
				}
				if !conflict {
					for _, f := range task.Files {
						set[f] = true
					}
					break
				}
				w++
			}

			waveOf[id] = w
			placed[id] = true
			progressed = true
		}
		if !progressed {
			// Every remaining task has an unplaced predecessor that is
			// itself remaining: only possible if hasCycle() missed a
			// cycle formed purely of file-conflict edges sharing a node
			// with itself, which buildGraph's appendEdge dedup prevents,
			// or a predecessor referencing a task pruned from g.tasks.
			// Defensive: surface as CircularDependency rather than loop.
			var remaining []string
			for _, id := range g.order {
				if !placed[id] {
					remaining = append(remaining, id)
				}
			}
			return nil, taxonomy.Newf(taxonomy.CircularDependency,
				"unable to place tasks (unresolvable predecessor chain): %s", strings.Join(remaining, ", "))
		}
	}

	maxWave := 0
	for _, w := range waveOf {
		if w > maxWave {
			maxWave = w
		}
	}

	waves := make([]models.Wave, maxWave)
	for i := 0; i < maxWave; i++ {
		waves[i] = models.Wave{Index: i + 1, CheckpointAfter: models.DefaultCheckpointPolicy()}
	}
	for _, id := range g.order {
		w := waveOf[id]
		waves[w-1].Tasks = append(waves[w-1].Tasks, *g.tasks[id])
		waves[w-1].TaskIDs = append(waves[w-1].TaskIDs, id)
	}

	for i := range waves {
		sortTasksByID(waves[i].Tasks)
		sort.Strings(waves[i].TaskIDs)
		waves[i].Strategy = strategyFor(waves[i])
		waves[i].Rationale = rationaleFor(waves[i])
	}

	return waves, nil
}

func sortTasksByID(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return taskSortKey(tasks[i].ID) < taskSortKey(tasks[j].ID)
	})
}

// taskSortKey extracts a numeric component for stable, human-friendly
// ordering within a wave (mirrors the teacher's parseTaskNumber idiom).
func taskSortKey(id string) int {
	if n, err := strconv.Atoi(strings.TrimPrefix(id, "T")); err == nil {
		return n
	}
	if idx := strings.LastIndex(id, "-"); idx >= 0 {
		if n, err := strconv.Atoi(id[idx+1:]); err == nil {
			return n
		}
	}
	return 1 << 30
}

// strategyFor computes the PARALLEL/SEQUENTIAL tag (spec §4.2): PARALLEL
// requires more than one task, all with non-empty, pairwise-disjoint
// file-write sets; a single-task wave is always SEQUENTIAL.
func strategyFor(w models.Wave) models.Strategy {
	if len(w.Tasks) <= 1 {
		return models.Sequential
	}
	seen := make(map[string]bool)
	for _, t := range w.Tasks {
		if len(t.Files) == 0 {
			return models.Sequential
		}
		for _, f := range t.Files {
			if seen[f] {
				return models.Sequential
			}
			seen[f] = true
		}
	}
	return models.Parallel
}

func rationaleFor(w models.Wave) string {
	verb := "sequential"
	if w.Strategy == models.Parallel {
		verb = "parallel"
	}
	return fmt.Sprintf("wave %d: %d task(s), %s", w.Index, len(w.Tasks), verb)
}
