// Package curriculum holds the static week/task/subtask catalog. The catalog
// is immutable at runtime and identified by stable string keys; it is used to
// validate incoming task and step ids and to compute curriculum totals.
package curriculum

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed catalog.json
var catalogFS embed.FS

// Step is an ordered checklist item within a task.
type Step struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is a single curriculum unit within a week.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// Week groups an ordered list of tasks.
type Week struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Catalog is the loaded curriculum graph with id lookup indexes.
type Catalog struct {
	weeks []Week
	tasks map[string]Task
	order []string
}

// Load parses the embedded catalog definition.
func Load() (*Catalog, error) {
	raw, err := catalogFS.ReadFile("catalog.json")
	if err != nil {
		return nil, err
	}

	var doc struct {
		Weeks []Week `json:"weeks"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Weeks)
}

// New builds a catalog from an explicit week list.
func New(weeks []Week) (*Catalog, error) {
	c := &Catalog{
		weeks: weeks,
		tasks: make(map[string]Task),
	}
	for _, w := range weeks {
		for _, t := range w.Tasks {
			if _, dup := c.tasks[t.ID]; dup {
				return nil, fmt.Errorf("duplicate task id %q in catalog", t.ID)
			}
			c.tasks[t.ID] = t
			c.order = append(c.order, t.ID)
		}
	}
	return c, nil
}

// MustLoad loads the embedded catalog and panics on failure. The catalog ships
// with the binary, so a parse failure is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Weeks returns the ordered week list.
func (c *Catalog) Weeks() []Week {
	return c.weeks
}

// Task returns the task for the given id.
func (c *Catalog) Task(taskID string) (Task, bool) {
	t, ok := c.tasks[taskID]
	return t, ok
}

// ValidTask reports whether taskID exists in the catalog.
func (c *Catalog) ValidTask(taskID string) bool {
	_, ok := c.tasks[taskID]
	return ok
}

// ValidStep reports whether stepID belongs to taskID.
func (c *Catalog) ValidStep(taskID, stepID string) bool {
	t, ok := c.tasks[taskID]
	if !ok {
		return false
	}
	for _, s := range t.Steps {
		if s.ID == stepID {
			return true
		}
	}
	return false
}

// StepIDs returns the ordered step ids of taskID, nil if the task has none.
func (c *Catalog) StepIDs(taskID string) []string {
	t, ok := c.tasks[taskID]
	if !ok || len(t.Steps) == 0 {
		return nil
	}
	ids := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		ids[i] = s.ID
	}
	return ids
}

// TaskIDs returns every task id in curriculum order.
func (c *Catalog) TaskIDs() []string {
	return c.order
}

// TotalTasks returns the number of tasks in the curriculum.
func (c *Catalog) TotalTasks() int {
	return len(c.order)
}
