package template

import "sort"

// detectCycles walks the explicit dependency edges and returns every
// independent cycle found. Each cycle is reported as the path slice from the
// first occurrence of the revisited node to the current node, inclusive.
func detectCycles(steps map[string]StepTemplate) [][]string {
	graph := make(map[string][]string, len(steps))
	for key, step := range steps {
		deps := make([]string, 0, len(step.DependsOn))
		for _, dep := range step.DependsOn {
			if _, ok := steps[string(dep)]; ok {
				deps = append(deps, string(dep))
			}
		}
		sort.Strings(deps)
		graph[key] = deps
	}

	visiting := make(map[string]bool, len(steps))
	visited := make(map[string]bool, len(steps))
	var stack []string
	var cycles [][]string

	var dfs func(string)
	dfs = func(node string) {
		visiting[node] = true
		stack = append(stack, node)

		for _, dep := range graph[node] {
			if visiting[dep] {
				idx := indexOf(stack, dep)
				if idx >= 0 {
					cycle := append([]string{}, stack[idx:]...)
					cycle = append(cycle, dep)
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[dep] {
				dfs(dep)
			}
		}

		visiting[node] = false
		visited[node] = true
		stack = stack[:len(stack)-1]
	}

	ids := make([]string, 0, len(steps))
	for id := range steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !visited[id] {
			dfs(id)
		}
	}

	return cycles
}

func indexOf(slice []string, target string) int {
	for i, v := range slice {
		if v == target {
			return i
		}
	}
	return -1
}
