package queue

import (
	"github.com/gammazero/toposort"
	"github.com/google/uuid"
)

// dependencyGraph tracks unmet dependencies between tasks. It keeps two
// mirrored maps: waiting (task -> unmet deps) drives readiness checks, and
// dependents (dep -> waiting tasks) drives event-driven triggering when a
// dependency completes. Not safe for concurrent use; the queue mutex guards
// all access.
type dependencyGraph struct {
	waiting    map[uuid.UUID]map[uuid.UUID]struct{}
	dependents map[uuid.UUID]map[uuid.UUID]struct{}
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		waiting:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		dependents: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// add registers task as waiting on deps. Deps already satisfied must be
// filtered out by the caller before adding.
func (g *dependencyGraph) add(task uuid.UUID, deps []uuid.UUID) {
	if len(deps) == 0 {
		return
	}
	set := make(map[uuid.UUID]struct{}, len(deps))
	for _, dep := range deps {
		set[dep] = struct{}{}
		if g.dependents[dep] == nil {
			g.dependents[dep] = make(map[uuid.UUID]struct{})
		}
		g.dependents[dep][task] = struct{}{}
	}
	g.waiting[task] = set
}

// satisfy marks dep as completed and returns the tasks whose last unmet
// dependency it was.
func (g *dependencyGraph) satisfy(dep uuid.UUID) []uuid.UUID {
	var unblocked []uuid.UUID
	for task := range g.dependents[dep] {
		delete(g.waiting[task], dep)
		if len(g.waiting[task]) == 0 {
			delete(g.waiting, task)
			unblocked = append(unblocked, task)
		}
	}
	delete(g.dependents, dep)
	return unblocked
}

// blocked reports whether task still has unmet dependencies.
func (g *dependencyGraph) blocked(task uuid.UUID) bool {
	return len(g.waiting[task]) > 0
}

// remove drops task from the graph entirely, both as a waiter and as a
// dependency of others. Tasks that were waiting on it stay blocked forever,
// matching cancel semantics.
func (g *dependencyGraph) remove(task uuid.UUID) {
	for dep := range g.waiting[task] {
		delete(g.dependents[dep], task)
		if len(g.dependents[dep]) == 0 {
			delete(g.dependents, dep)
		}
	}
	delete(g.waiting, task)
}

// wouldCycle reports whether adding task with the given deps would create a
// dependency cycle. The check feeds all current waiting edges plus the
// candidate edges through a topological sort and treats a sort failure as a
// cycle.
func (g *dependencyGraph) wouldCycle(task uuid.UUID, deps []uuid.UUID) bool {
	if len(deps) == 0 {
		return false
	}

	var edges []toposort.Edge
	for waiter, unmet := range g.waiting {
		for dep := range unmet {
			edges = append(edges, toposort.Edge{dep, waiter})
		}
	}
	for _, dep := range deps {
		edges = append(edges, toposort.Edge{dep, task})
	}

	_, err := toposort.Toposort(edges)
	return err != nil
}
