package document

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/coursecms/internal/model"
)

// Normalize lifts exercises, slides and tasks out of the page tree into flat
// records. The returned content keeps each exercise as a marker block with only
// its id and name. The input is not modified.
//
// A special block without an id, or a task whose private spec is not valid
// JSON, fails the whole call with a *BlockError.
func Normalize(page model.EditorPage) (model.PageUpdate, error) {
	n := &normalizer{
		out: model.PageUpdate{
			Content:        make([]model.Block, 0, len(page.Content)),
			ChapterID:      cloneString(page.ChapterID),
			Exercises:      []model.Exercise{},
			ExerciseSlides: []model.ExerciseSlide{},
			ExerciseTasks:  []model.ExerciseTask{},
			Title:          page.Title,
			URLPath:        page.URLPath,
		},
		seen: make(map[string]map[string]string),
	}

	exerciseNumber := 0
	for i, b := range page.Content {
		if b.Name != model.BlockExercise {
			n.out.Content = append(n.out.Content, cloneBlock(b))
			continue
		}
		exerciseNumber++
		marker, err := n.exercise(b, exerciseNumber, fmt.Sprintf("content[%d]", i))
		if err != nil {
			return model.PageUpdate{}, err
		}
		n.out.Content = append(n.out.Content, marker)
	}
	return n.out, nil
}

// Validate reports whether the content could be saved, running the same
// checks as Normalize.
func Validate(content []model.Block) error {
	_, err := Normalize(model.EditorPage{Content: content})
	return err
}

type normalizer struct {
	out model.PageUpdate
	// block name -> id -> path of first occurrence
	seen map[string]map[string]string
}

func (n *normalizer) exercise(b model.Block, orderNumber int, path string) (model.Block, error) {
	var attrs exerciseAttrs
	if err := n.decode(b, path, &attrs); err != nil {
		return model.Block{}, err
	}
	if err := n.checkID(b, attrs.ID, path); err != nil {
		return model.Block{}, err
	}

	n.out.Exercises = append(n.out.Exercises, model.Exercise{
		ID:                 attrs.ID,
		Name:               attrs.Name,
		OrderNumber:        orderNumber,
		ScoreMaximum:       attrs.ScoreMaximum,
		MaxTriesPerSlide:   attrs.MaxTriesPerSlide,
		LimitNumberOfTries: attrs.LimitNumberOfTries,
		NeedsPeerReview:    attrs.NeedsPeerReview,
		PeerReviewConfig:   attrs.PeerReviewConfig,
	})

	slideNumber := 0
	for i, child := range b.InnerBlocks {
		childPath := fmt.Sprintf("%s.innerBlocks[%d]", path, i)
		if child.Name != model.BlockExerciseSlide {
			slog.Warn("dropping non-slide block inside exercise",
				"exercise_id", attrs.ID, "block", child.Name, "path", childPath)
			continue
		}
		slideNumber++
		if err := n.slide(child, attrs.ID, slideNumber, childPath); err != nil {
			return model.Block{}, err
		}
	}

	return model.Block{
		ClientID: b.ClientID,
		Name:     b.Name,
		Attributes: map[string]any{
			"id":   attrs.ID,
			"name": attrs.Name,
		},
		InnerBlocks: []model.Block{},
	}, nil
}

func (n *normalizer) slide(b model.Block, exerciseID string, orderNumber int, path string) error {
	var attrs slideAttrs
	if err := n.decode(b, path, &attrs); err != nil {
		return err
	}
	if err := n.checkID(b, attrs.ID, path); err != nil {
		return err
	}

	n.out.ExerciseSlides = append(n.out.ExerciseSlides, model.ExerciseSlide{
		ID:          attrs.ID,
		ExerciseID:  exerciseID,
		OrderNumber: orderNumber,
	})

	taskNumber := 0
	for i, child := range b.InnerBlocks {
		childPath := fmt.Sprintf("%s.innerBlocks[%d]", path, i)
		if child.Name != model.BlockExerciseTask {
			slog.Warn("dropping non-task block inside exercise slide",
				"exercise_slide_id", attrs.ID, "block", child.Name, "path", childPath)
			continue
		}
		taskNumber++
		if err := n.task(child, attrs.ID, taskNumber, childPath); err != nil {
			return err
		}
	}
	return nil
}

func (n *normalizer) task(b model.Block, slideID string, orderNumber int, path string) error {
	var attrs taskAttrs
	if err := n.decode(b, path, &attrs); err != nil {
		return err
	}
	if err := n.checkID(b, attrs.ID, path); err != nil {
		return err
	}

	var spec json.RawMessage
	if !isNullSpec([]byte(attrs.PrivateSpec)) {
		if err := json.Unmarshal([]byte(attrs.PrivateSpec), new(any)); err != nil {
			return &BlockError{Path: path, Name: b.Name, Err: fmt.Errorf("%w: %v", ErrMalformedPrivateSpec, err)}
		}
		spec = json.RawMessage(attrs.PrivateSpec)
	}

	n.out.ExerciseTasks = append(n.out.ExerciseTasks, model.ExerciseTask{
		ID:              attrs.ID,
		ExerciseSlideID: slideID,
		OrderNumber:     orderNumber,
		ExerciseType:    attrs.ExerciseType,
		PrivateSpec:     spec,
		Assignment:      cloneBlocks(b.InnerBlocks),
	})
	return nil
}

func (n *normalizer) decode(b model.Block, path string, out any) error {
	if err := decodeAttrs(b.Attributes, out); err != nil {
		return &BlockError{Path: path, Name: b.Name, Err: err}
	}
	return nil
}

func (n *normalizer) checkID(b model.Block, id, path string) error {
	if id == "" {
		return &BlockError{Path: path, Name: b.Name, Err: ErrMissingID}
	}
	ids := n.seen[b.Name]
	if ids == nil {
		ids = make(map[string]string)
		n.seen[b.Name] = ids
	}
	if first, ok := ids[id]; ok {
		return &BlockError{Path: path, Name: b.Name, Err: fmt.Errorf("%w %q, first used at %s", ErrDuplicateID, id, first)}
	}
	ids[id] = path
	return nil
}
