package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"task-manager/internal/model"
)

// TaskStats is computed from the full task list.
type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}

// Overview extends TaskStats with the dashboard figures.
type Overview struct {
	TaskStats
	CompletionRate      int // percent, rounded
	CreatedToday        int
	HighPriorityPending int
	Overdue             int
}

// TasksByCategory filters by category ("all" keeps everything), then by the
// search query against title or description, then by the priority filter.
// The newest-first order of the task list is preserved.
func (s *TaskStore) TasksByCategory(id string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterTasks(s.tasks, id, s.searchQuery, s.filterPriority)
}

// VisibleTasks applies the currently selected category.
func (s *TaskStore) VisibleTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterTasks(s.tasks, s.selectedCategory, s.searchQuery, s.filterPriority)
}

func filterTasks(tasks []model.Task, categoryID, query, priority string) []model.Task {
	needle := strings.ToLower(query)
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if categoryID != model.AllCategoryID && t.Category != categoryID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		if priority != PriorityAll && string(t.Priority) != priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SplitByCompletion keeps the input order inside each half.
func SplitByCompletion(tasks []model.Task) (active, completed []model.Task) {
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			active = append(active, t)
		}
	}
	return active, completed
}

func (s *TaskStore) CompletedTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, completed := SplitByCompletion(s.tasks)
	return completed
}

func (s *TaskStore) TaskStats() TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(s.tasks)
}

func statsOf(tasks []model.Task) TaskStats {
	stats := TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats
}

func (s *TaskStore) Overview(now time.Time) Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := Overview{TaskStats: statsOf(s.tasks)}
	if o.Total > 0 {
		o.CompletionRate = int(math.Round(float64(o.Completed) / float64(o.Total) * 100))
	}
	year, month, day := now.Date()
	for _, t := range s.tasks {
		cy, cm, cd := t.CreatedAt.In(now.Location()).Date()
		if cy == year && cm == month && cd == day {
			o.CreatedToday++
		}
		if t.Priority == model.PriorityHigh && !t.Completed {
			o.HighPriorityPending++
		}
		if t.Overdue(now) {
			o.Overdue++
		}
	}
	return o
}

// Task returns the task with the exact id.
func (s *TaskStore) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// ResolveTask accepts a full id or an id prefix or suffix that matches
// exactly one task.
func (s *TaskStore) ResolveTask(ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Task{}, ErrTaskNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(ref); i >= 0 {
		return s.tasks[i], nil
	}
	var matches []model.Task
	for _, t := range s.tasks {
		if strings.HasPrefix(t.ID, ref) || strings.HasSuffix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("%w: %s matches %d tasks", ErrAmbiguousTaskRef, ref, len(matches))
	}
}

func (s *TaskStore) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

func (s *TaskStore) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCategories(s.categories)
}

func (s *TaskStore) Category(id string) (model.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

func (s *TaskStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}
