package lists

import "sort"

func (list List) TodosCount() int {
	return len(list.Todos)
}

// RemainingCount is the number of todos not yet completed.
func (list List) RemainingCount() int {
	remaining := 0
	for _, todo := range list.Todos {
		if !todo.Completed {
			remaining++
		}
	}
	return remaining
}

// IsComplete is true only for a non-empty list whose todos are all completed.
func (list List) IsComplete() bool {
	return list.TodosCount() > 0 && list.RemainingCount() == 0
}

func (list List) ListClass() string {
	if list.IsComplete() {
		return "complete"
	}
	return ""
}

func (todo Todo) TodoClass() string {
	if todo.Completed {
		return "complete"
	}
	return ""
}

// SortLists returns the lists with incomplete ones first. Relative order
// within each group is kept and the receiver is not reordered.
func (l Lists) SortLists() []List {
	out := append([]List{}, l...)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].IsComplete() && out[j].IsComplete()
	})
	return out
}

// SortTodos returns the list's todos with incomplete ones first.
func (list List) SortTodos() []Todo {
	out := append([]Todo{}, list.Todos...)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Completed && out[j].Completed
	})
	return out
}
