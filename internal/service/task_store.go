package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"task-manager/internal/model"
	"task-manager/internal/repository"
)

var (
	ErrEmptyTitle        = errors.New("title is required")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidDueDate    = errors.New("invalid due date, expected YYYY-MM-DD")
	ErrEmptyCategoryName = errors.New("category name is required")
	ErrCategoryExists    = errors.New("category already exists")
	ErrTaskNotFound      = errors.New("task not found")
	ErrAmbiguousTaskRef  = errors.New("ambiguous task reference")
	// ErrPersist wraps storage write failures. The in-memory change that
	// triggered the write has already been applied.
	ErrPersist = errors.New("persist state")
)

// PriorityAll disables the priority filter.
const PriorityAll = "all"

// DefaultTaskCategory is used when a task is added without a category.
const DefaultTaskCategory = "personal"

var whitespaceRun = regexp.MustCompile(`\s+`)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Completed   bool
	Priority    model.Priority
	Category    string
	DueDate     string
}

// TaskPatch carries the fields to change; nil fields are left untouched.
// An empty DueDate clears the due date.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *model.Priority
	Category    *string
	DueDate     *string
}

// State is a point-in-time copy handed to subscribers.
type State struct {
	Tasks            []model.Task
	Categories       []model.Category
	SelectedCategory string
	SearchQuery      string
	FilterPriority   string

	seq uint64
}

// Option configures a TaskStore.
type Option func(*TaskStore)

func WithNotifier(n Notifier) Option {
	return func(s *TaskStore) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *TaskStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// TaskStore is the single owner of tasks, categories and the transient
// filter state. Every mutation writes the affected collections and then
// pushes a State to all subscribers before returning.
type TaskStore struct {
	taskRepo     *repository.TaskRepository
	categoryRepo *repository.CategoryRepository
	notifier     Notifier
	now          func() time.Time
	newID        func() string

	mu               sync.Mutex
	tasks            []model.Task
	categories       []model.Category
	selectedCategory string
	searchQuery      string
	filterPriority   string

	seq              uint64

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int

	// deliverMu orders deliveries by seq; published is the last seq sent.
	deliverMu sync.Mutex
	published uint64
}

// NewTaskStore loads persisted state, falling back to the sample data for
// whichever collection is missing or unreadable, and writes both back.
func NewTaskStore(ctx context.Context, taskRepo *repository.TaskRepository, categoryRepo *repository.CategoryRepository, opts ...Option) (*TaskStore, error) {
	s := &TaskStore{
		taskRepo:         taskRepo,
		categoryRepo:     categoryRepo,
		notifier:         nopNotifier{},
		now:              time.Now,
		newID:            newTaskID,
		selectedCategory: model.AllCategoryID,
		filterPriority:   PriorityAll,
		subscribers:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	tasks, found, err := taskRepo.Load(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrMalformed) {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		log.Printf("[warn] %v; falling back to sample tasks", err)
		found = false
	}
	if !found {
		tasks = SampleTasks(s.now())
	}
	tasks, repaired := repairTasks(tasks)
	if repaired > 0 {
		log.Printf("[warn] repaired %d persisted tasks", repaired)
	}

	categories, found, err := categoryRepo.Load(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrMalformed) {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		log.Printf("[warn] %v; falling back to default categories", err)
		found = false
	}
	if !found {
		categories = DefaultCategories()
	}
	categories, repaired = repairCategories(categories)
	if repaired > 0 {
		log.Printf("[warn] repaired %d persisted categories", repaired)
	}

	s.tasks = tasks
	s.categories = ensureAllCategory(categories)

	s.mu.Lock()
	_, err = s.commitLocked(ctx, true, true)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("initial sync: %w", err)
	}

	log.Printf("[info] task store ready tasks=%d categories=%d", len(s.tasks), len(s.categories))
	return s, nil
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// repairTasks drops tasks without an id or title and later duplicates of
// an id. Other broken fields are reset to what AddTask would have stored.
// It returns the number of tasks dropped or changed.
func repairTasks(tasks []model.Task) ([]model.Task, int) {
	out := make([]model.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	repaired := 0
	for _, t := range tasks {
		fixed := t
		fixed.ID = strings.TrimSpace(t.ID)
		fixed.Title = strings.TrimSpace(t.Title)
		if fixed.ID == "" || fixed.Title == "" || seen[fixed.ID] {
			repaired++
			continue
		}
		seen[fixed.ID] = true

		if p, err := normalizePriority(t.Priority); err == nil {
			fixed.Priority = p
		} else {
			fixed.Priority = model.PriorityMedium
		}
		if due, err := normalizeDueDate(t.DueDate); err == nil {
			fixed.DueDate = due
		} else {
			fixed.DueDate = ""
		}
		if strings.TrimSpace(t.Category) == "" {
			fixed.Category = DefaultTaskCategory
		}
		if fixed.UpdatedAt.Before(fixed.CreatedAt) {
			fixed.UpdatedAt = fixed.CreatedAt
		}
		if fixed != t {
			repaired++
		}
		out = append(out, fixed)
	}
	return out, repaired
}

// repairCategories drops categories without an id and later duplicates.
func repairCategories(categories []model.Category) ([]model.Category, int) {
	out := make([]model.Category, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c.ID) == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, len(categories) - len(out)
}

// ensureAllCategory keeps exactly one "all" entry, first in the list when
// it had to be added.
func ensureAllCategory(categories []model.Category) []model.Category {
	out := make([]model.Category, 0, len(categories)+1)
	seen := false
	for _, c := range categories {
		if c.ID == model.AllCategoryID {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, c)
	}
	if !seen {
		out = append([]model.Category{DefaultCategories()[0]}, out...)
	}
	return out
}

// AddTask prepends a new task. A blank title is rejected without touching
// state.
func (s *TaskStore) AddTask(ctx context.Context, in TaskInput) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ErrEmptyTitle
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return model.Task{}, err
	}
	due, err := normalizeDueDate(in.DueDate)
	if err != nil {
		return model.Task{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultTaskCategory
	}

	s.mu.Lock()
	now := s.now()
	task := model.Task{
		ID:          s.newID(),
		Title:       title,
		Description: in.Description,
		Completed:   in.Completed,
		Priority:    priority,
		Category:    category,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks = append([]model.Task{task}, s.tasks...)
	state, err := s.commitLocked(ctx, true, false)
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, msgTaskAdded)
	return task, err
}

// UpdateTask merges patch into the task with the given id. Unknown ids are
// ignored.
func (s *TaskStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return ErrEmptyTitle
	}
	var (
		priority model.Priority
		due      string
		err      error
	)
	if patch.Priority != nil {
		if priority, err = normalizePriority(*patch.Priority); err != nil {
			return err
		}
	}
	if patch.DueDate != nil {
		if due, err = normalizeDueDate(*patch.DueDate); err != nil {
			return err
		}
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	t := &s.tasks[i]
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.Priority != nil {
		t.Priority = priority
	}
	if patch.Category != nil {
		t.Category = strings.TrimSpace(*patch.Category)
		if t.Category == "" {
			t.Category = DefaultTaskCategory
		}
	}
	if patch.DueDate != nil {
		t.DueDate = due
	}
	t.UpdatedAt = s.touchLocked(*t)
	state, err := s.commitLocked(ctx, true, false)
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, msgTaskUpdated)
	return err
}

// DeleteTask removes the task with the given id if present.
func (s *TaskStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	state, err := s.commitLocked(ctx, true, false)
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, msgTaskDeleted)
	return err
}

// ToggleTask flips completion. It is the only task mutation without a
// success message.
func (s *TaskStore) ToggleTask(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.tasks[i].UpdatedAt = s.touchLocked(s.tasks[i])
	state, err := s.commitLocked(ctx, true, false)
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, "")
	return err
}

// CategoryID derives a category id from its display name.
func CategoryID(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(name), "-")
}

// AddCategory appends a category whose id is derived from name. Ids that
// already exist, "all" included, are rejected.
func (s *TaskStore) AddCategory(ctx context.Context, name, color string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, ErrEmptyCategoryName
	}
	category := model.Category{ID: CategoryID(name), Name: name, Color: strings.TrimSpace(color)}

	s.mu.Lock()
	for _, c := range s.categories {
		if c.ID == category.ID {
			s.mu.Unlock()
			return model.Category{}, fmt.Errorf("%w: %s", ErrCategoryExists, category.ID)
		}
	}
	s.categories = append(s.categories, category)
	state, err := s.commitLocked(ctx, false, true)
	category = s.categories[len(s.categories)-1]
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, msgCategoryAdded)
	return category, err
}

// DeleteCategory removes a category and every task that references it.
// Tasks still pointing at an id with no category record are removed too.
// "all" is never removed.
func (s *TaskStore) DeleteCategory(ctx context.Context, id string) error {
	if id == model.AllCategoryID {
		return nil
	}

	s.mu.Lock()
	categories := s.categories[:0:0]
	for _, c := range s.categories {
		if c.ID != id {
			categories = append(categories, c)
		}
	}
	tasks := s.tasks[:0:0]
	for _, t := range s.tasks {
		if t.Category != id {
			tasks = append(tasks, t)
		}
	}
	if len(categories) == len(s.categories) && len(tasks) == len(s.tasks) {
		s.mu.Unlock()
		return nil
	}
	s.categories = categories
	s.tasks = tasks
	if s.selectedCategory == id {
		s.selectedCategory = model.AllCategoryID
	}
	state, err := s.commitLocked(ctx, true, true)
	s.mu.Unlock()

	s.afterCommit(ctx, state, err, msgCategoryDeleted)
	return err
}

// SetSelectedCategory changes the category VisibleTasks filters by.
func (s *TaskStore) SetSelectedCategory(id string) {
	if id == "" {
		id = model.AllCategoryID
	}
	s.mu.Lock()
	s.selectedCategory = id
	state := s.stateLocked()
	s.mu.Unlock()
	s.publish(state)
}

func (s *TaskStore) SetSearchQuery(query string) {
	s.mu.Lock()
	s.searchQuery = query
	state := s.stateLocked()
	s.mu.Unlock()
	s.publish(state)
}

// SetFilterPriority accepts PriorityAll or a priority name.
func (s *TaskStore) SetFilterPriority(raw string) error {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		value = PriorityAll
	}
	if value != PriorityAll {
		if _, ok := model.ParsePriority(value); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
		}
	}
	s.mu.Lock()
	s.filterPriority = value
	state := s.stateLocked()
	s.mu.Unlock()
	s.publish(state)
	return nil
}

// Subscribe registers fn to receive the state after every change. The
// returned func removes the subscription.
//
// States are delivered one at a time in commit order. A state older than
// one already delivered is dropped, so with concurrent writers a
// subscriber may skip a state but never sees one go backwards. fn must
// not call the store's setters or mutations.
func (s *TaskStore) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *TaskStore) publish(state State) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if state.seq <= s.published {
		return
	}
	s.published = state.seq

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subscribers))
	for id := 0; id < s.nextSubID; id++ {
		if fn, ok := s.subscribers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *TaskStore) afterCommit(ctx context.Context, state State, err error, message string) {
	s.publish(state)
	if err != nil {
		log.Printf("[warn] %v", err)
		return
	}
	if message != "" {
		s.notifier.Success(ctx, message)
	}
}

// commitLocked recounts categories and writes the changed collections.
// Task changes always rewrite categories because the counts moved with them.
func (s *TaskStore) commitLocked(ctx context.Context, tasksChanged, categoriesChanged bool) (State, error) {
	s.recountLocked()
	var errs []error
	if tasksChanged {
		categoriesChanged = true
		if err := s.taskRepo.Save(ctx, s.tasks); err != nil {
			errs = append(errs, err)
		}
	}
	if categoriesChanged {
		if err := s.categoryRepo.Save(ctx, s.categories); err != nil {
			errs = append(errs, err)
		}
	}
	state := s.stateLocked()
	if len(errs) > 0 {
		return state, fmt.Errorf("%w: %w", ErrPersist, errors.Join(errs...))
	}
	return state, nil
}

func (s *TaskStore) recountLocked() {
	counts := make(map[string]int, len(s.categories))
	for _, t := range s.tasks {
		counts[t.Category]++
	}
	for i := range s.categories {
		if s.categories[i].ID == model.AllCategoryID {
			s.categories[i].TaskCount = len(s.tasks)
			continue
		}
		s.categories[i].TaskCount = counts[s.categories[i].ID]
	}
}

func (s *TaskStore) stateLocked() State {
	s.seq++
	return State{
		Tasks:            cloneTasks(s.tasks),
		Categories:       cloneCategories(s.categories),
		SelectedCategory: s.selectedCategory,
		SearchQuery:      s.searchQuery,
		FilterPriority:   s.filterPriority,
		seq:              s.seq,
	}
}

func (s *TaskStore) indexLocked(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// touchLocked returns the new UpdatedAt, never earlier than CreatedAt.
func (s *TaskStore) touchLocked(t model.Task) time.Time {
	now := s.now()
	if now.Before(t.CreatedAt) {
		return t.CreatedAt
	}
	return now
}

func normalizePriority(p model.Priority) (model.Priority, error) {
	if p == "" {
		return model.PriorityMedium, nil
	}
	parsed, ok := model.ParsePriority(string(p))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return parsed, nil
}

func normalizeDueDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(model.DueDateLayout, raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
	}
	return raw, nil
}

func cloneTasks(tasks []model.Task) []model.Task {
	return append([]model.Task(nil), tasks...)
}

func cloneCategories(categories []model.Category) []model.Category {
	return append([]model.Category(nil), categories...)
}
