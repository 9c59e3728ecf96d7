package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"task-manager/internal/model"
	"task-manager/internal/repository"
	"task-manager/internal/testutil"
)

// stepClock advances one second per call.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func newTestStore(t *testing.T, kv *testutil.FakeKV, opts ...Option) *TaskStore {
	t.Helper()
	store, err := NewTaskStore(context.Background(),
		repository.NewTaskRepository(kv),
		repository.NewCategoryRepository(kv),
		opts...,
	)
	if err != nil {
		t.Fatalf("NewTaskStore failed: %v", err)
	}
	return store
}

// emptyKV starts with no tasks persisted and default categories.
func emptyKV() *testutil.FakeKV {
	kv := testutil.NewFakeKV()
	kv.Set(repository.TasksKey, "[]")
	return kv
}

func mustAdd(t *testing.T, store *TaskStore, in TaskInput) model.Task {
	t.Helper()
	task, err := store.AddTask(context.Background(), in)
	if err != nil {
		t.Fatalf("AddTask(%q) failed: %v", in.Title, err)
	}
	return task
}

func assertConsistent(t *testing.T, store *TaskStore) {
	t.Helper()
	tasks := store.Tasks()
	stats := store.TaskStats()
	if stats.Total != stats.Completed+stats.Pending {
		t.Errorf("stats %+v: total != completed + pending", stats)
	}
	if stats.Total != len(tasks) {
		t.Errorf("stats total = %d, want %d", stats.Total, len(tasks))
	}

	counts := map[string]int{}
	for _, task := range tasks {
		counts[task.Category]++
	}
	allSeen := 0
	for _, c := range store.Categories() {
		if c.ID == model.AllCategoryID {
			allSeen++
			if c.TaskCount != len(tasks) {
				t.Errorf("all.TaskCount = %d, want %d", c.TaskCount, len(tasks))
			}
			continue
		}
		if c.TaskCount != counts[c.ID] {
			t.Errorf("%s.TaskCount = %d, want %d", c.ID, c.TaskCount, counts[c.ID])
		}
	}
	if allSeen != 1 {
		t.Errorf("found %d %q categories, want 1", allSeen, model.AllCategoryID)
	}
}

func TestNewTaskStore_SeedsWhenNothingPersisted(t *testing.T) {
	kv := testutil.NewFakeKV()
	store := newTestStore(t, kv)

	tasks := store.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 seed tasks, got %d", len(tasks))
	}
	wantPriorities := []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow}
	for i, p := range wantPriorities {
		if tasks[i].Priority != p {
			t.Errorf("seed task %d priority = %s, want %s", i, tasks[i].Priority, p)
		}
	}

	categories := store.Categories()
	if len(categories) != 5 {
		t.Fatalf("expected 5 seed categories, got %d", len(categories))
	}
	if categories[0].ID != model.AllCategoryID {
		t.Errorf("first category = %q, want %q", categories[0].ID, model.AllCategoryID)
	}
	assertConsistent(t, store)

	if kv.Writes(repository.TasksKey) != 1 || kv.Writes(repository.CategoriesKey) != 1 {
		t.Errorf("expected the seed to be written once per key, got tasks=%d categories=%d",
			kv.Writes(repository.TasksKey), kv.Writes(repository.CategoriesKey))
	}

	state := store.State()
	if state.SelectedCategory != model.AllCategoryID || state.SearchQuery != "" || state.FilterPriority != PriorityAll {
		t.Errorf("unexpected initial filters: %+v", state)
	}
}

func TestNewTaskStore_LoadsPersistedState(t *testing.T) {
	kv := emptyKV()
	clock := newClock()
	first := newTestStore(t, kv, WithClock(clock.Now))
	added := mustAdd(t, first, TaskInput{Title: "Write report", Category: "work", DueDate: "2025-03-12"})
	if _, err := first.AddCategory(context.Background(), "Side Projects", "#14b8a6"); err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}

	second := newTestStore(t, kv)
	tasks := second.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task after reload, got %d", len(tasks))
	}
	got := tasks[0]
	if got.ID != added.ID || got.Title != added.Title || got.DueDate != "2025-03-12" {
		t.Errorf("reloaded task = %+v, want %+v", got, added)
	}
	if !got.CreatedAt.Equal(added.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, added.CreatedAt)
	}
	if _, ok := second.Category("side-projects"); !ok {
		t.Error("expected side-projects to survive a reload")
	}
	assertConsistent(t, second)
}

func TestNewTaskStore_MalformedDataFallsBackToSeed(t *testing.T) {
	kv := testutil.NewFakeKV()
	kv.Set(repository.TasksKey, "{not json")
	kv.Set(repository.CategoriesKey, "42")

	store := newTestStore(t, kv)
	if n := len(store.Tasks()); n != 3 {
		t.Errorf("expected seed tasks, got %d", n)
	}
	if n := len(store.Categories()); n != 5 {
		t.Errorf("expected seed categories, got %d", n)
	}

	raw, _ := kv.Value(repository.TasksKey)
	if !strings.HasPrefix(raw, "[") {
		t.Errorf("expected the malformed value to be replaced, got %q", raw)
	}
}

func TestNewTaskStore_RepairsInvalidPersistedTasks(t *testing.T) {
	kv := testutil.NewFakeKV()
	kv.Set(repository.TasksKey, `[
		{"id":"x","title":"First","priority":"high","category":"work","createdAt":"2025-01-02T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"},
		{"id":"x","title":"Second","priority":"low","category":"work","createdAt":"2025-01-02T00:00:00Z","updatedAt":"2025-01-02T00:00:00Z"},
		{"id":"y","title":"  ","priority":"low","category":"work","createdAt":"2025-01-02T00:00:00Z","updatedAt":"2025-01-02T00:00:00Z"},
		{"id":"z","title":"Urgent one","priority":"urgent","category":"","dueDate":"soon","createdAt":"2025-01-02T00:00:00Z","updatedAt":"2025-01-03T00:00:00Z"}
	]`)
	kv.Set(repository.CategoriesKey, `[{"id":"all","name":"All","color":"#000"},{"id":"work","name":"Work","color":"#f59e0b"},{"id":"work","name":"Work again","color":"#111"},{"id":"","name":"Nameless","color":"#222"}]`)

	store := newTestStore(t, kv)
	tasks := store.Tasks()
	if len(tasks) != 2 || tasks[0].ID != "x" || tasks[1].ID != "z" {
		t.Fatalf("expected duplicate and untitled tasks to be dropped, got %+v", tasks)
	}
	if tasks[0].Title != "First" {
		t.Errorf("expected the first copy of a duplicate id to win, got %q", tasks[0].Title)
	}
	if tasks[0].UpdatedAt.Before(tasks[0].CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", tasks[0].UpdatedAt, tasks[0].CreatedAt)
	}
	z := tasks[1]
	if z.Priority != model.PriorityMedium || z.Category != DefaultTaskCategory || z.DueDate != "" {
		t.Errorf("expected invalid fields to be reset, got %+v", z)
	}

	categories := store.Categories()
	if len(categories) != 2 {
		t.Errorf("expected duplicate and empty category ids to be dropped, got %+v", categories)
	}
	assertConsistent(t, store)

	if err := store.ToggleTask(context.Background(), "x"); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	reloaded := newTestStore(t, kv)
	matches := 0
	for _, task := range reloaded.Tasks() {
		if task.ID == "x" {
			matches++
			if !task.Completed {
				t.Error("expected x to be completed after the toggle")
			}
		}
	}
	if matches != 1 {
		t.Errorf("expected exactly one x after reload, got %d", matches)
	}
}

func TestNewTaskStore_AddsMissingAllCategory(t *testing.T) {
	kv := emptyKV()
	kv.Set(repository.CategoriesKey, `[{"id":"work","name":"Work","color":"#f59e0b","taskCount":0},{"id":"all","name":"All","color":"#000","taskCount":0},{"id":"all","name":"Dup","color":"#111","taskCount":0}]`)
	store := newTestStore(t, kv)

	categories := store.Categories()
	if len(categories) != 2 {
		t.Fatalf("expected duplicate all to be dropped, got %+v", categories)
	}

	kv2 := emptyKV()
	kv2.Set(repository.CategoriesKey, `[{"id":"work","name":"Work","color":"#f59e0b","taskCount":0}]`)
	store2 := newTestStore(t, kv2)
	categories = store2.Categories()
	if len(categories) != 2 || categories[0].ID != model.AllCategoryID {
		t.Fatalf("expected all to be prepended, got %+v", categories)
	}
	assertConsistent(t, store2)
}

func TestNewTaskStore_ReadErrorFails(t *testing.T) {
	kv := testutil.NewFakeKV()
	kv.GetErr = errors.New("disk on fire")

	_, err := NewTaskStore(context.Background(),
		repository.NewTaskRepository(kv),
		repository.NewCategoryRepository(kv),
	)
	if err == nil {
		t.Fatal("expected an error when storage cannot be read")
	}
}

func TestAddTask_IDsAreUnique(t *testing.T) {
	store := newTestStore(t, emptyKV())

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		task := mustAdd(t, store, TaskInput{Title: fmt.Sprintf("task %d", i)})
		if seen[task.ID] {
			t.Fatalf("duplicate id %s after %d adds", task.ID, i)
		}
		seen[task.ID] = true
	}
	assertConsistent(t, store)
}

func TestAddTask_PrependsWithDefaults(t *testing.T) {
	clock := newClock()
	store := newTestStore(t, emptyKV(), WithClock(clock.Now))

	first := mustAdd(t, store, TaskInput{Title: "  First  "})
	second := mustAdd(t, store, TaskInput{Title: "Second", Priority: "HIGH", Category: "work"})

	tasks := store.Tasks()
	if tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Errorf("expected newest first, got %s, %s", tasks[0].Title, tasks[1].Title)
	}
	if first.Title != "First" {
		t.Errorf("title = %q, want trimmed", first.Title)
	}
	if first.Priority != model.PriorityMedium || first.Category != DefaultTaskCategory {
		t.Errorf("defaults = %s/%s, want medium/personal", first.Priority, first.Category)
	}
	if second.Priority != model.PriorityHigh {
		t.Errorf("priority = %s, want high", second.Priority)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Errorf("createdAt %v != updatedAt %v", first.CreatedAt, first.UpdatedAt)
	}
	assertConsistent(t, store)
}

func TestAddTask_RejectsInvalidInputWithoutChanges(t *testing.T) {
	kv := emptyKV()
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, kv, WithNotifier(notifier))
	writes := kv.Writes(repository.TasksKey)

	tests := []struct {
		name  string
		input TaskInput
		want  error
	}{
		{"empty title", TaskInput{Title: "   "}, ErrEmptyTitle},
		{"unknown priority", TaskInput{Title: "x", Priority: "urgent"}, ErrInvalidPriority},
		{"bad due date", TaskInput{Title: "x", DueDate: "15/01/2024"}, ErrInvalidDueDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddTask(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if n := len(store.Tasks()); n != 0 {
		t.Errorf("expected no tasks, got %d", n)
	}
	if kv.Writes(repository.TasksKey) != writes {
		t.Error("rejected input must not be written")
	}
	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no notifications, got %v", msgs)
	}
}

func TestUpdateTask_MergesPatch(t *testing.T) {
	clock := newClock()
	store := newTestStore(t, emptyKV(), WithClock(clock.Now))
	task := mustAdd(t, store, TaskInput{Title: "Draft", Description: "keep me", DueDate: "2025-04-01"})
	other := mustAdd(t, store, TaskInput{Title: "Other"})

	title := "Final"
	priority := model.PriorityLow
	noDue := ""
	if err := store.UpdateTask(context.Background(), task.ID, TaskPatch{Title: &title, Priority: &priority, DueDate: &noDue}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, _ := store.Task(task.ID)
	if got.Title != "Final" || got.Priority != model.PriorityLow || got.DueDate != "" {
		t.Errorf("unexpected task after update: %+v", got)
	}
	if got.Description != "keep me" {
		t.Errorf("description = %q, untouched field changed", got.Description)
	}
	if !got.UpdatedAt.After(task.UpdatedAt) {
		t.Error("expected updatedAt to advance")
	}
	if untouched, _ := store.Task(other.ID); !untouched.UpdatedAt.Equal(other.UpdatedAt) {
		t.Error("only the matched task may be touched")
	}
}

func TestUpdateTask_UnknownIDIsNoop(t *testing.T) {
	kv := emptyKV()
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, kv, WithNotifier(notifier))
	mustAdd(t, store, TaskInput{Title: "Only"})
	notifier.Reset()
	writes := kv.Writes(repository.TasksKey)

	title := "Changed"
	if err := store.UpdateTask(context.Background(), "missing", TaskPatch{Title: &title}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if err := store.DeleteTask(context.Background(), "missing"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if err := store.ToggleTask(context.Background(), "missing"); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}

	if kv.Writes(repository.TasksKey) != writes {
		t.Error("no-op mutations must not write")
	}
	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no notifications, got %v", msgs)
	}
	if store.Tasks()[0].Title != "Only" {
		t.Error("task changed")
	}
}

func TestUpdateTask_RejectsEmptyTitle(t *testing.T) {
	store := newTestStore(t, emptyKV())
	task := mustAdd(t, store, TaskInput{Title: "Keep"})

	empty := ""
	if err := store.UpdateTask(context.Background(), task.ID, TaskPatch{Title: &empty}); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("error = %v, want ErrEmptyTitle", err)
	}
	if got, _ := store.Task(task.ID); got.Title != "Keep" {
		t.Errorf("title = %q, want Keep", got.Title)
	}
}

func TestUpdateTask_BlankCategoryFallsBackToDefault(t *testing.T) {
	store := newTestStore(t, emptyKV())
	task := mustAdd(t, store, TaskInput{Title: "Move me", Category: "work"})

	blank := "   "
	if err := store.UpdateTask(context.Background(), task.ID, TaskPatch{Category: &blank}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if got, _ := store.Task(task.ID); got.Category != DefaultTaskCategory {
		t.Errorf("category = %q, want %q", got.Category, DefaultTaskCategory)
	}
	assertConsistent(t, store)
}

func TestToggleTask_TwiceRestoresCompletion(t *testing.T) {
	clock := newClock()
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, emptyKV(), WithClock(clock.Now), WithNotifier(notifier))
	task := mustAdd(t, store, TaskInput{Title: "Stretch"})
	notifier.Reset()

	if err := store.ToggleTask(context.Background(), task.ID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	once, _ := store.Task(task.ID)
	if !once.Completed {
		t.Fatal("expected completed after one toggle")
	}
	if !once.UpdatedAt.After(task.UpdatedAt) {
		t.Error("expected updatedAt to advance on first toggle")
	}

	if err := store.ToggleTask(context.Background(), task.ID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	twice, _ := store.Task(task.ID)
	if twice.Completed != task.Completed {
		t.Error("expected the original completion after two toggles")
	}
	if !twice.UpdatedAt.After(once.UpdatedAt) {
		t.Error("expected updatedAt to advance on second toggle")
	}

	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("toggle must not notify, got %v", msgs)
	}
	assertConsistent(t, store)
}

func TestToggleTask_UpdatedAtNeverBeforeCreatedAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := newTestStore(t, emptyKV(), WithClock(clock))
	task := mustAdd(t, store, TaskInput{Title: "Time travel"})

	now = now.Add(-time.Hour)
	if err := store.ToggleTask(context.Background(), task.ID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	got, _ := store.Task(task.ID)
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("updatedAt %v before createdAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestDeleteTask(t *testing.T) {
	store := newTestStore(t, emptyKV())
	a := mustAdd(t, store, TaskInput{Title: "A"})
	b := mustAdd(t, store, TaskInput{Title: "B"})

	if err := store.DeleteTask(context.Background(), a.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Errorf("unexpected tasks after delete: %+v", tasks)
	}
	assertConsistent(t, store)
}

func TestDeleteCategory_CascadesToTasks(t *testing.T) {
	store := newTestStore(t, emptyKV())
	mustAdd(t, store, TaskInput{Title: "A", Category: "work"})
	b := mustAdd(t, store, TaskInput{Title: "B", Category: "personal"})
	store.SetSelectedCategory("work")

	if err := store.DeleteCategory(context.Background(), "work"); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Fatalf("expected only B to remain, got %+v", tasks)
	}
	if _, ok := store.Category("work"); ok {
		t.Error("work category still present")
	}
	if got := store.State().SelectedCategory; got != model.AllCategoryID {
		t.Errorf("selected category = %q, want all", got)
	}
	assertConsistent(t, store)
}

func TestDeleteCategory_RemovesDanglingTasks(t *testing.T) {
	store := newTestStore(t, emptyKV())
	mustAdd(t, store, TaskInput{Title: "Orphan", Category: "garden"})
	keep := mustAdd(t, store, TaskInput{Title: "Keep"})

	if err := store.DeleteCategory(context.Background(), "garden"); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	tasks := store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Errorf("expected the orphan to be removed, got %+v", tasks)
	}
}

func TestDeleteCategory_AllIsProtected(t *testing.T) {
	kv := emptyKV()
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, kv, WithNotifier(notifier))
	mustAdd(t, store, TaskInput{Title: "A", Category: model.AllCategoryID})
	notifier.Reset()
	before := store.State()
	writes := kv.Writes(repository.CategoriesKey)

	if err := store.DeleteCategory(context.Background(), model.AllCategoryID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	after := store.State()
	if len(after.Tasks) != len(before.Tasks) || len(after.Categories) != len(before.Categories) {
		t.Errorf("state changed: before %d/%d after %d/%d",
			len(before.Tasks), len(before.Categories), len(after.Tasks), len(after.Categories))
	}
	if kv.Writes(repository.CategoriesKey) != writes {
		t.Error("expected no write")
	}
	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no notifications, got %v", msgs)
	}
}

func TestAddCategory(t *testing.T) {
	store := newTestStore(t, emptyKV())

	cat, err := store.AddCategory(context.Background(), "  Side   Projects ", "#14b8a6")
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	if cat.ID != "side-projects" || cat.Name != "Side   Projects" || cat.TaskCount != 0 {
		t.Errorf("unexpected category: %+v", cat)
	}
	categories := store.Categories()
	if categories[len(categories)-1].ID != "side-projects" {
		t.Error("expected the category to be appended")
	}

	if _, err := store.AddCategory(context.Background(), " ", "#000"); !errors.Is(err, ErrEmptyCategoryName) {
		t.Errorf("error = %v, want ErrEmptyCategoryName", err)
	}
}

func TestAddCategory_RejectsDuplicateIDs(t *testing.T) {
	store := newTestStore(t, emptyKV())
	before := len(store.Categories())

	for _, name := range []string{"Work", "WORK", "All"} {
		if _, err := store.AddCategory(context.Background(), name, "#000"); !errors.Is(err, ErrCategoryExists) {
			t.Errorf("AddCategory(%q) error = %v, want ErrCategoryExists", name, err)
		}
	}
	if got := len(store.Categories()); got != before {
		t.Errorf("categories = %d, want %d", got, before)
	}
}

func TestCategoryID(t *testing.T) {
	tests := map[string]string{
		"Work":            "work",
		"Side Projects":   "side-projects",
		"Home\t \nChores": "home-chores",
		"already-dashed":  "already-dashed",
	}
	for in, want := range tests {
		if got := CategoryID(in); got != want {
			t.Errorf("CategoryID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTasksByCategory_ComposesFilters(t *testing.T) {
	store := newTestStore(t, emptyKV())
	mustAdd(t, store, TaskInput{Title: "Buy milk", Priority: model.PriorityLow})
	car := mustAdd(t, store, TaskInput{Title: "Buy car", Priority: model.PriorityHigh})
	mustAdd(t, store, TaskInput{Title: "Call mom", Priority: model.PriorityHigh})

	store.SetSearchQuery("buy")
	if err := store.SetFilterPriority("high"); err != nil {
		t.Fatalf("SetFilterPriority failed: %v", err)
	}

	got := store.TasksByCategory(model.AllCategoryID)
	if len(got) != 1 || got[0].ID != car.ID {
		t.Fatalf("expected only %q, got %+v", car.Title, got)
	}
}

func TestTasksByCategory_SearchesDescriptionAndKeepsOrder(t *testing.T) {
	store := newTestStore(t, emptyKV())
	a := mustAdd(t, store, TaskInput{Title: "Groceries", Description: "MILK and eggs", Category: "shopping"})
	b := mustAdd(t, store, TaskInput{Title: "Milkshake", Category: "shopping"})
	mustAdd(t, store, TaskInput{Title: "Milk the report", Category: "work"})

	store.SetSearchQuery("milk")
	got := store.TasksByCategory("shopping")
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("unexpected result: %+v", got)
	}

	store.SetSelectedCategory("work")
	if visible := store.VisibleTasks(); len(visible) != 1 || visible[0].Category != "work" {
		t.Errorf("VisibleTasks = %+v, want the work task", visible)
	}
}

func TestSetFilterPriority_RejectsUnknown(t *testing.T) {
	store := newTestStore(t, emptyKV())
	if err := store.SetFilterPriority("urgent"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("error = %v, want ErrInvalidPriority", err)
	}
	if got := store.State().FilterPriority; got != PriorityAll {
		t.Errorf("filter = %q, want all", got)
	}
	if err := store.SetFilterPriority(""); err != nil {
		t.Fatalf("empty filter: %v", err)
	}
}

func TestPersistFailure_IsReportedAndStateKept(t *testing.T) {
	kv := emptyKV()
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, kv, WithNotifier(notifier))

	var published []State
	store.Subscribe(func(s State) { published = append(published, s) })

	kv.PutErr = testutil.ErrStorageFull
	task, err := store.AddTask(context.Background(), TaskInput{Title: "Unsaved"})
	if !errors.Is(err, ErrPersist) || !errors.Is(err, testutil.ErrStorageFull) {
		t.Fatalf("error = %v, want ErrPersist wrapping ErrStorageFull", err)
	}
	if task.ID == "" {
		t.Fatal("expected the created task to be returned")
	}
	if _, ok := store.Task(task.ID); !ok {
		t.Error("expected the task to stay in memory")
	}
	if len(published) != 1 {
		t.Errorf("expected subscribers to see the change, got %d publishes", len(published))
	}
	if msgs := notifier.Messages(); len(msgs) != 0 {
		t.Errorf("expected no success message, got %v", msgs)
	}
	assertConsistent(t, store)

	kv.PutErr = nil
	if err := store.ToggleTask(context.Background(), task.ID); err != nil {
		t.Fatalf("ToggleTask after recovery: %v", err)
	}
	raw, _ := kv.Value(repository.TasksKey)
	if !strings.Contains(raw, task.ID) {
		t.Error("expected the next successful write to include the unsaved task")
	}
}

func TestNotifier_MessagesPerMutation(t *testing.T) {
	notifier := &testutil.RecordingNotifier{}
	store := newTestStore(t, emptyKV(), WithNotifier(notifier))
	ctx := context.Background()

	task := mustAdd(t, store, TaskInput{Title: "Notify"})
	title := "Renamed"
	if err := store.UpdateTask(ctx, task.ID, TaskPatch{Title: &title}); err != nil {
		t.Fatal(err)
	}
	if err := store.ToggleTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddCategory(ctx, "Garden", "#22c55e"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCategory(ctx, "garden"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Task added successfully!",
		"Task updated successfully!",
		"Task deleted successfully!",
		"Category added successfully!",
		"Category deleted successfully!",
	}
	got := notifier.Messages()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("messages = %v, want %v", got, want)
	}
}

func TestSubscribe_DropsStaleStates(t *testing.T) {
	store := newTestStore(t, emptyKV())

	var got []string
	store.Subscribe(func(s State) { got = append(got, s.SearchQuery) })

	store.mu.Lock()
	store.searchQuery = "older"
	older := store.stateLocked()
	store.searchQuery = "newer"
	newer := store.stateLocked()
	store.mu.Unlock()

	store.publish(newer)
	store.publish(older)
	if strings.Join(got, ",") != "newer" {
		t.Errorf("delivered %v, want only the newer state", got)
	}
}

func TestSubscribe_ConcurrentMutationsDeliverInOrder(t *testing.T) {
	store := newTestStore(t, emptyKV())
	task := mustAdd(t, store, TaskInput{Title: "Contended"})

	var seqs []uint64
	store.Subscribe(func(s State) { seqs = append(seqs, s.seq) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := store.ToggleTask(context.Background(), task.ID); err != nil {
					t.Errorf("ToggleTask failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if len(seqs) == 0 {
		t.Fatal("expected at least one delivery")
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("delivery %d has seq %d after %d", i, seqs[i], seqs[i-1])
		}
	}
}

func TestSubscribe(t *testing.T) {
	store := newTestStore(t, emptyKV())

	var states []State
	unsubscribe := store.Subscribe(func(s State) { states = append(states, s) })

	task := mustAdd(t, store, TaskInput{Title: "Watched"})
	if len(states) != 1 || len(states[0].Tasks) != 1 || states[0].Tasks[0].ID != task.ID {
		t.Fatalf("expected the new task to be published before AddTask returned, got %+v", states)
	}

	store.SetSearchQuery("watch")
	if len(states) != 2 || states[1].SearchQuery != "watch" {
		t.Fatalf("expected filter changes to publish, got %+v", states)
	}

	// Subscribers get copies.
	states[1].Tasks[0].Title = "mutated"
	if got, _ := store.Task(task.ID); got.Title != "Watched" {
		t.Error("subscriber mutation leaked into the store")
	}

	unsubscribe()
	unsubscribe()
	store.SetSearchQuery("")
	if len(states) != 2 {
		t.Errorf("expected no publish after unsubscribe, got %d", len(states))
	}
}

func TestResolveTask(t *testing.T) {
	ids := []string{"0195-aaaa-11111111", "0195-aaaa-22222222", "0195-bbbb-33332222"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}
	store := newTestStore(t, emptyKV(), WithIDGenerator(gen))
	for i := range ids {
		mustAdd(t, store, TaskInput{Title: fmt.Sprintf("task %d", i)})
	}

	tests := []struct {
		ref     string
		wantID  string
		wantErr error
	}{
		{ref: "0195-aaaa-11111111", wantID: ids[0]},
		{ref: "11111111", wantID: ids[0]},
		{ref: "0195-bbbb", wantID: ids[2]},
		{ref: "0195-aaaa", wantErr: ErrAmbiguousTaskRef},
		{ref: "2222", wantErr: ErrAmbiguousTaskRef},
		{ref: "33332222", wantID: ids[2]},
		{ref: "aaaa-1", wantErr: ErrTaskNotFound},
		{ref: "  ", wantErr: ErrTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			task, err := store.ResolveTask(tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTask failed: %v", err)
			}
			if task.ID != tt.wantID {
				t.Errorf("id = %s, want %s", task.ID, tt.wantID)
			}
		})
	}
}

func TestOverview(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, emptyKV(), WithClock(func() time.Time { return now }))
	mustAdd(t, store, TaskInput{Title: "Late", Priority: model.PriorityHigh, DueDate: "2025-03-01"})
	mustAdd(t, store, TaskInput{Title: "Done", Completed: true, DueDate: "2025-03-01"})
	mustAdd(t, store, TaskInput{Title: "Today", DueDate: "2025-03-10"})
	mustAdd(t, store, TaskInput{Title: "Later", Completed: true})

	o := store.Overview(now)
	if o.Total != 4 || o.Completed != 2 || o.Pending != 2 {
		t.Errorf("stats = %+v", o.TaskStats)
	}
	if o.CompletionRate != 50 {
		t.Errorf("completion rate = %d, want 50", o.CompletionRate)
	}
	if o.CreatedToday != 4 {
		t.Errorf("created today = %d, want 4", o.CreatedToday)
	}
	if o.HighPriorityPending != 1 {
		t.Errorf("high priority pending = %d, want 1", o.HighPriorityPending)
	}
	if o.Overdue != 1 {
		t.Errorf("overdue = %d, want 1", o.Overdue)
	}

	completed := store.CompletedTasks()
	if len(completed) != 2 {
		t.Errorf("completed tasks = %d, want 2", len(completed))
	}
}

func TestMutationSequence_KeepsCountsConsistent(t *testing.T) {
	store := newTestStore(t, testutil.NewFakeKV())
	ctx := context.Background()
	assertConsistent(t, store)

	a := mustAdd(t, store, TaskInput{Title: "A", Category: "work"})
	assertConsistent(t, store)
	mustAdd(t, store, TaskInput{Title: "B", Category: "health"})
	assertConsistent(t, store)

	category := "shopping"
	if err := store.UpdateTask(ctx, a.ID, TaskPatch{Category: &category}); err != nil {
		t.Fatal(err)
	}
	assertConsistent(t, store)
	if err := store.ToggleTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	assertConsistent(t, store)
	if err := store.DeleteCategory(ctx, "health"); err != nil {
		t.Fatal(err)
	}
	assertConsistent(t, store)
	if err := store.DeleteTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	assertConsistent(t, store)
}

func TestAddCategory_CountsExistingTasks(t *testing.T) {
	store := newTestStore(t, emptyKV())
	mustAdd(t, store, TaskInput{Title: "Prune roses", Category: "garden"})

	cat, err := store.AddCategory(context.Background(), "Garden", "#22c55e")
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	if cat.TaskCount != 1 {
		t.Errorf("TaskCount = %d, want 1", cat.TaskCount)
	}
	assertConsistent(t, store)
}
