// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"sort"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

// diffFunctions implements spec §4.4's Function step: a signature change
// is a drop+create, a body-only change is always a Replace (never
// drop+create, spec §9 "Cycles among functions"). New functions that
// mutually call each other are emitted as a stub Create pass followed by
// a Replace pass, so forward references resolve regardless of apply
// order.
func diffFunctions(old, new *catalog.Catalog) []Step {
	oldM := indexByKey(old.Functions, func(f catalog.Function) catalog.ID { return f.ID })
	newM := indexByKey(new.Functions, func(f catalog.Function) catalog.ID { return f.ID })

	var steps []Step
	var createdFns []catalog.Function

	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			createdFns = append(createdFns, n)
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropFunction(o.ID), Narrows: true, Description: "drop function " + o.ID.Name})
		case !signaturesEqual(o, n):
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropFunction(o.ID), Narrows: true, Description: "replace function " + o.ID.Name + " (drop, signature changed)"})
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateFunction(n), Requires: n.DependsOn, Description: "replace function " + n.ID.Name + " (create, signature changed)"})
		case o.Body != n.Body:
			steps = append(steps, Step{Object: n.ID, Action: ActionReplace, SQL: render.ReplaceFunction(n), Requires: n.DependsOn, Description: "replace function body " + n.ID.Name})
		}
	}

	steps = append(steps, createFunctionSteps(createdFns)...)
	return steps
}

func signaturesEqual(o, n catalog.Function) bool {
	return o.ID.Signature == n.ID.Signature && o.ReturnType == n.ReturnType && o.Language == n.Language
}

// createFunctionSteps splits newly-created functions into mutually
// recursive groups (via Tarjan SCC over their DependsOn edges restricted
// to other newly-created functions) and, for any group larger than one,
// emits a stub Create for every member before any Replace with the real
// body; isolated functions are created directly with their real body.
func createFunctionSteps(fns []catalog.Function) []Step {
	if len(fns) == 0 {
		return nil
	}

	byKey := make(map[string]catalog.Function, len(fns))
	for _, f := range fns {
		byKey[f.ID.Key()] = f
	}

	adj := make(map[string][]string, len(fns))
	for _, f := range fns {
		for _, dep := range f.DependsOn {
			if dep.Kind == catalog.KindFunction {
				if _, ok := byKey[dep.Key()]; ok {
					adj[f.ID.Key()] = append(adj[f.ID.Key()], dep.Key())
				}
			}
		}
	}

	sccs := tarjanSCC(keysOf(byKey), adj)

	var steps []Step
	for _, scc := range sccs {
		sort.Strings(scc)
		if len(scc) == 1 && !contains(adj[scc[0]], scc[0]) {
			f := byKey[scc[0]]
			steps = append(steps, Step{Object: f.ID, Action: ActionCreate, SQL: render.CreateFunction(f), Requires: f.DependsOn, Description: "create function " + f.ID.Name})
			continue
		}
		for _, key := range scc {
			f := byKey[key]
			steps = append(steps, Step{Object: f.ID, Action: ActionCreate, Op: OpFunctionStub, SQL: render.CreateFunctionStub(f), Description: "create stub function " + f.ID.Name})
		}
		for _, key := range scc {
			f := byKey[key]
			steps = append(steps, Step{Object: f.ID, Action: ActionReplace, SQL: render.ReplaceFunction(f), Requires: f.DependsOn, Description: "replace stub function " + f.ID.Name})
		}
	}
	return steps
}

func keysOf(m map[string]catalog.Function) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of the directed
// graph (nodes, adj), in no particular order between components but with
// deterministic membership given deterministic input order.
func tarjanSCC(nodes []string, adj map[string][]string) [][]string {
	index := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	counter := 0
	var sccs [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := index[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, visited := index[v]; !visited {
			strongconnect(v)
		}
	}
	return sccs
}
