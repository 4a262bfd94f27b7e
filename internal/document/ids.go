package document

import (
	"github.com/google/uuid"

	"github.com/pavelanni/coursecms/internal/model"
)

// AssignIDs returns a copy of the tree in which every exercise, slide and
// task block without an id gets a random one, and every block without a
// client id gets one. Existing ids are kept.
func AssignIDs(blocks []model.Block) []model.Block {
	out := make([]model.Block, len(blocks))
	for i, b := range blocks {
		out[i] = assignIDs(b)
	}
	return out
}

func assignIDs(b model.Block) model.Block {
	c := model.Block{
		ClientID:    b.ClientID,
		Name:        b.Name,
		Attributes:  cloneAttributes(b.Attributes),
		InnerBlocks: AssignIDs(b.InnerBlocks),
	}
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	switch c.Name {
	case model.BlockExercise, model.BlockExerciseSlide, model.BlockExerciseTask:
		if !hasID(c.Attributes) {
			if c.Attributes == nil {
				c.Attributes = make(map[string]any)
			}
			c.Attributes["id"] = uuid.NewString()
		}
	}
	return c
}
