package document

import (
	"bytes"
	"cmp"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/pavelanni/coursecms/internal/model"
)

// OrphanKind names the kind of record that could not be placed in the tree.
type OrphanKind string

const (
	// OrphanExercise is an exercise record with no marker block in the content.
	OrphanExercise OrphanKind = "exercise"
	// OrphanMarker is an exercise marker block with no exercise record.
	OrphanMarker OrphanKind = "exercise_block"
	// OrphanSlide is a slide whose exercise is not in the tree.
	OrphanSlide OrphanKind = "exercise_slide"
	// OrphanTask is a task whose slide is not in the tree.
	OrphanTask OrphanKind = "exercise_task"
)

// Orphan is a record Denormalize left out of the tree.
type Orphan struct {
	Kind     OrphanKind
	ID       string
	ParentID string
}

// Denormalize rebuilds the editor tree from a normalized page. Slides and
// tasks are nested under their parents in order_number order and get fresh
// client ids. Records that reference a parent missing from the tree are left
// out, logged and returned as orphans.
func Denormalize(page model.PageUpdate) (model.EditorPage, []Orphan) {
	exercises := make(map[string]model.Exercise, len(page.Exercises))
	for _, e := range page.Exercises {
		exercises[e.ID] = e
	}
	slidesByExercise := make(map[string][]model.ExerciseSlide)
	for _, s := range page.ExerciseSlides {
		slidesByExercise[s.ExerciseID] = append(slidesByExercise[s.ExerciseID], s)
	}
	for _, slides := range slidesByExercise {
		slices.SortStableFunc(slides, func(a, b model.ExerciseSlide) int {
			return cmp.Compare(a.OrderNumber, b.OrderNumber)
		})
	}
	tasksBySlide := make(map[string][]model.ExerciseTask)
	for _, t := range page.ExerciseTasks {
		tasksBySlide[t.ExerciseSlideID] = append(tasksBySlide[t.ExerciseSlideID], t)
	}
	for _, tasks := range tasksBySlide {
		slices.SortStableFunc(tasks, func(a, b model.ExerciseTask) int {
			return cmp.Compare(a.OrderNumber, b.OrderNumber)
		})
	}

	var orphans []Orphan
	placedExercises := make(map[string]bool)
	placedSlides := make(map[string]bool)

	content := make([]model.Block, 0, len(page.Content))
	for _, b := range page.Content {
		if b.Name != model.BlockExercise {
			content = append(content, cloneBlock(b))
			continue
		}
		id := idAttr(b.Attributes)
		ex, ok := exercises[id]
		if !ok {
			orphans = append(orphans, Orphan{Kind: OrphanMarker, ID: id})
			marker := cloneBlock(b)
			marker.InnerBlocks = []model.Block{}
			content = append(content, marker)
			continue
		}
		placedExercises[id] = true

		slides := slidesByExercise[id]
		slideBlocks := make([]model.Block, 0, len(slides))
		for _, s := range slides {
			placedSlides[s.ID] = true
			slideBlocks = append(slideBlocks, slideBlock(s, tasksBySlide[s.ID]))
		}

		clientID := b.ClientID
		if clientID == "" {
			clientID = uuid.NewString()
		}
		content = append(content, model.Block{
			ClientID: clientID,
			Name:     model.BlockExercise,
			Attributes: exerciseAttrs{
				ID:                 ex.ID,
				Name:               ex.Name,
				ScoreMaximum:       ex.ScoreMaximum,
				MaxTriesPerSlide:   ex.MaxTriesPerSlide,
				LimitNumberOfTries: ex.LimitNumberOfTries,
				NeedsPeerReview:    ex.NeedsPeerReview,
				PeerReviewConfig:   ex.PeerReviewConfig,
			}.toAttributes(),
			InnerBlocks: slideBlocks,
		})
	}

	for _, e := range page.Exercises {
		if !placedExercises[e.ID] {
			orphans = append(orphans, Orphan{Kind: OrphanExercise, ID: e.ID})
		}
	}
	for _, s := range page.ExerciseSlides {
		if !placedExercises[s.ExerciseID] {
			orphans = append(orphans, Orphan{Kind: OrphanSlide, ID: s.ID, ParentID: s.ExerciseID})
		}
	}
	for _, t := range page.ExerciseTasks {
		if !placedSlides[t.ExerciseSlideID] {
			orphans = append(orphans, Orphan{Kind: OrphanTask, ID: t.ID, ParentID: t.ExerciseSlideID})
		}
	}
	for _, o := range orphans {
		slog.Warn("dropping orphaned record", "kind", o.Kind, "id", o.ID, "parent_id", o.ParentID)
	}

	return model.EditorPage{
		Title:     page.Title,
		URLPath:   page.URLPath,
		ChapterID: cloneString(page.ChapterID),
		Content:   content,
	}, orphans
}

func slideBlock(s model.ExerciseSlide, tasks []model.ExerciseTask) model.Block {
	taskBlocks := make([]model.Block, 0, len(tasks))
	for _, t := range tasks {
		taskBlocks = append(taskBlocks, taskBlock(t))
	}
	return model.Block{
		ClientID: uuid.NewString(),
		Name:     model.BlockExerciseSlide,
		Attributes: map[string]any{
			"id":           s.ID,
			"order_number": s.OrderNumber,
		},
		InnerBlocks: taskBlocks,
	}
}

func taskBlock(t model.ExerciseTask) model.Block {
	attrs := map[string]any{
		"id":            t.ID,
		"exercise_type": t.ExerciseType,
	}
	if !isNullSpec(t.PrivateSpec) {
		attrs["private_spec"] = string(t.PrivateSpec)
	}
	return model.Block{
		ClientID:    uuid.NewString(),
		Name:        model.BlockExerciseTask,
		Attributes:  attrs,
		InnerBlocks: cloneBlocks(t.Assignment),
	}
}

func isNullSpec(spec []byte) bool {
	s := bytes.TrimSpace(spec)
	return len(s) == 0 || bytes.Equal(s, []byte("null"))
}
