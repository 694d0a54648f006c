package models

// NotePatch is the typed partial update for a note. Only non-nil fields are
// merged onto the existing record; unknown payload fields never pass through.
type NotePatch struct {
	Content *string     `json:"content,omitempty"`
	Tags    *[]string   `json:"tags,omitempty"`
	Format  *NoteFormat `json:"format,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p NotePatch) Empty() bool {
	return p.Content == nil && p.Tags == nil && p.Format == nil
}

// ProgressPatch is the typed mutation payload for the progress endpoint. A
// step-level update carries StepID/StepCompleted; a task-level update carries
// Completed.
type ProgressPatch struct {
	TaskID        string `json:"task_id"`
	Completed     *bool  `json:"completed,omitempty"`
	StepID        string `json:"step_id,omitempty"`
	StepCompleted *bool  `json:"step_completed,omitempty"`
}
