package document

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/coursecms/internal/model"
)

func intPtr(v int) *int { return &v }

func normalizedPage() model.PageUpdate {
	chapter := "ch-1"
	return model.PageUpdate{
		Title:     "Loops",
		URLPath:   "/loops",
		ChapterID: &chapter,
		Content: []model.Block{
			paragraph("p1", "before"),
			{ClientID: "m1", Name: model.BlockExercise, Attributes: map[string]any{"id": "E1", "name": "Counting"}, InnerBlocks: []model.Block{}},
			paragraph("p2", "between"),
			{ClientID: "m2", Name: model.BlockExercise, Attributes: map[string]any{"id": "E2", "name": "Summing"}, InnerBlocks: []model.Block{}},
		},
		Exercises: []model.Exercise{
			{ID: "E1", Name: "Counting", OrderNumber: 1, ScoreMaximum: intPtr(3)},
			{ID: "E2", Name: "Summing", OrderNumber: 2},
		},
		ExerciseSlides: []model.ExerciseSlide{
			{ID: "S1", ExerciseID: "E1", OrderNumber: 1},
			{ID: "S2", ExerciseID: "E1", OrderNumber: 2},
			{ID: "S3", ExerciseID: "E2", OrderNumber: 1},
		},
		ExerciseTasks: []model.ExerciseTask{
			{ID: "T1", ExerciseSlideID: "S1", OrderNumber: 1, ExerciseType: "quiz", PrivateSpec: json.RawMessage(`{"items":[1,2]}`), Assignment: []model.Block{paragraph("a1", "count")}},
			{ID: "T2", ExerciseSlideID: "S1", OrderNumber: 2, ExerciseType: "example", PrivateSpec: nil, Assignment: []model.Block{}},
			{ID: "T3", ExerciseSlideID: "S3", OrderNumber: 1, ExerciseType: "quiz", PrivateSpec: json.RawMessage(`[]`), Assignment: []model.Block{}},
		},
	}
}

func TestNormalizeDenormalizedPage(t *testing.T) {
	want := normalizedPage()

	tree, orphans := Denormalize(want)
	require.Empty(t, orphans)

	got, err := Normalize(tree)
	require.NoError(t, err)
	assert.JSONEq(t, mustJSON(t, want), mustJSON(t, got))
}

func TestDenormalizeNormalizedTree(t *testing.T) {
	peerReview := true
	graded := exerciseBlock("E1", "Graded",
		slideBlockOf("S1", 1,
			taskBlockOf("T1", "quiz", `{"options":["a","b"]}`, paragraph("a1", "pick one")),
			taskBlockOf("T2", "example", ""),
		),
		slideBlockOf("S2", 2, taskBlockOf("T3", "quiz", `{"options":[]}`)),
	)
	graded.Attributes["score_maximum"] = 4
	graded.Attributes["needs_peer_review"] = peerReview

	want := model.EditorPage{
		Title:   "Page",
		URLPath: "/page",
		Content: []model.Block{
			paragraph("p1", "intro"),
			graded,
			paragraph("p2", "outro"),
			exerciseBlock("E2", "Empty"),
		},
	}

	normalized, err := Normalize(want)
	require.NoError(t, err)
	got, orphans := Denormalize(normalized)
	require.Empty(t, orphans)

	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.URLPath, got.URLPath)
	assert.JSONEq(t, withoutClientIDs(t, want.Content), withoutClientIDs(t, got.Content))
}

func TestDenormalizeSingleExercise(t *testing.T) {
	page := model.PageUpdate{
		Content: []model.Block{
			{ClientID: "m1", Name: model.BlockExercise, Attributes: map[string]any{"id": "E1", "name": "old"}},
		},
		Exercises:      []model.Exercise{{ID: "E1", Name: "Ex", OrderNumber: 1}},
		ExerciseSlides: []model.ExerciseSlide{{ID: "S1", ExerciseID: "E1", OrderNumber: 1}},
		ExerciseTasks: []model.ExerciseTask{{
			ID: "T1", ExerciseSlideID: "S1", OrderNumber: 1, ExerciseType: "quiz",
			PrivateSpec: json.RawMessage(`{"options":["a"]}`),
			Assignment:  []model.Block{paragraph("p1", "hi")},
		}},
	}

	got, orphans := Denormalize(page)
	require.Empty(t, orphans)
	require.Len(t, got.Content, 1)

	ex := got.Content[0]
	assert.Equal(t, "m1", ex.ClientID)
	assert.Equal(t, map[string]any{"id": "E1", "name": "Ex"}, ex.Attributes)
	require.Len(t, ex.InnerBlocks, 1)

	slide := ex.InnerBlocks[0]
	assert.Equal(t, model.BlockExerciseSlide, slide.Name)
	assert.Equal(t, map[string]any{"id": "S1", "order_number": 1}, slide.Attributes)
	require.Len(t, slide.InnerBlocks, 1)

	task := slide.InnerBlocks[0]
	assert.Equal(t, model.BlockExerciseTask, task.Name)
	assert.Equal(t, map[string]any{
		"id":            "T1",
		"exercise_type": "quiz",
		"private_spec":  `{"options":["a"]}`,
	}, task.Attributes)
	assert.JSONEq(t, mustJSON(t, []model.Block{paragraph("p1", "hi")}), mustJSON(t, task.InnerBlocks))
}

func TestDenormalizeSortsByOrderNumber(t *testing.T) {
	page := model.PageUpdate{
		Content: []model.Block{{Name: model.BlockExercise, Attributes: map[string]any{"id": "E1", "name": "x"}}},
		Exercises: []model.Exercise{{ID: "E1", Name: "x", OrderNumber: 1}},
		ExerciseSlides: []model.ExerciseSlide{
			{ID: "S3", ExerciseID: "E1", OrderNumber: 3},
			{ID: "S1", ExerciseID: "E1", OrderNumber: 1},
			{ID: "S2", ExerciseID: "E1", OrderNumber: 2},
		},
		ExerciseTasks: []model.ExerciseTask{
			{ID: "T2", ExerciseSlideID: "S1", OrderNumber: 2},
			{ID: "T1", ExerciseSlideID: "S1", OrderNumber: 1},
		},
	}

	got, orphans := Denormalize(page)
	require.Empty(t, orphans)

	slides := got.Content[0].InnerBlocks
	require.Len(t, slides, 3)
	for i, want := range []string{"S1", "S2", "S3"} {
		assert.Equal(t, want, slides[i].Attributes["id"])
	}
	tasks := slides[0].InnerBlocks
	require.Len(t, tasks, 2)
	assert.Equal(t, "T1", tasks[0].Attributes["id"])
	assert.Equal(t, "T2", tasks[1].Attributes["id"])
	assert.NotContains(t, tasks[0].Attributes, "private_spec")
}

func TestDenormalizeOrphans(t *testing.T) {
	tests := []struct {
		name        string
		page        model.PageUpdate
		wantOrphans []Orphan
		wantSlides  int
		wantTasks   int
	}{
		{
			name: "task without slide",
			page: model.PageUpdate{
				Content:        []model.Block{{Name: model.BlockExercise, Attributes: map[string]any{"id": "E1"}}},
				Exercises:      []model.Exercise{{ID: "E1", OrderNumber: 1}},
				ExerciseSlides: []model.ExerciseSlide{{ID: "S1", ExerciseID: "E1", OrderNumber: 1}},
				ExerciseTasks: []model.ExerciseTask{
					{ID: "T1", ExerciseSlideID: "S1", OrderNumber: 1},
					{ID: "T9", ExerciseSlideID: "missing", OrderNumber: 1},
				},
			},
			wantOrphans: []Orphan{{Kind: OrphanTask, ID: "T9", ParentID: "missing"}},
			wantSlides:  1,
			wantTasks:   1,
		},
		{
			name: "slide without exercise takes its tasks along",
			page: model.PageUpdate{
				Content:        []model.Block{{Name: model.BlockExercise, Attributes: map[string]any{"id": "E1"}}},
				Exercises:      []model.Exercise{{ID: "E1", OrderNumber: 1}},
				ExerciseSlides: []model.ExerciseSlide{{ID: "S9", ExerciseID: "gone", OrderNumber: 1}},
				ExerciseTasks:  []model.ExerciseTask{{ID: "T1", ExerciseSlideID: "S9", OrderNumber: 1}},
			},
			wantOrphans: []Orphan{
				{Kind: OrphanSlide, ID: "S9", ParentID: "gone"},
				{Kind: OrphanTask, ID: "T1", ParentID: "S9"},
			},
		},
		{
			name: "exercise record without marker",
			page: model.PageUpdate{
				Content:        []model.Block{paragraph("p", "text")},
				Exercises:      []model.Exercise{{ID: "E1", OrderNumber: 1}},
				ExerciseSlides: []model.ExerciseSlide{{ID: "S1", ExerciseID: "E1", OrderNumber: 1}},
			},
			wantOrphans: []Orphan{
				{Kind: OrphanExercise, ID: "E1"},
				{Kind: OrphanSlide, ID: "S1", ParentID: "E1"},
			},
		},
		{
			name: "marker without exercise record",
			page: model.PageUpdate{
				Content: []model.Block{{Name: model.BlockExercise, Attributes: map[string]any{"id": "E5", "name": "kept"}}},
			},
			wantOrphans: []Orphan{{Kind: OrphanMarker, ID: "E5"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, orphans := Denormalize(tt.page)
			assert.Equal(t, tt.wantOrphans, orphans)
			require.Len(t, got.Content, len(tt.page.Content))

			var slides, tasks int
			for _, b := range got.Content {
				if b.Name != model.BlockExercise {
					continue
				}
				for _, s := range b.InnerBlocks {
					slides++
					tasks += len(s.InnerBlocks)
				}
			}
			assert.Equal(t, tt.wantSlides, slides)
			assert.Equal(t, tt.wantTasks, tasks)
		})
	}
}

func TestDenormalizeFreshClientIDs(t *testing.T) {
	page := normalizedPage()
	first, _ := Denormalize(page)
	second, _ := Denormalize(page)

	slideA := first.Content[1].InnerBlocks[0]
	slideB := second.Content[1].InnerBlocks[0]
	assert.NotEmpty(t, slideA.ClientID)
	assert.NotEqual(t, slideA.ClientID, slideB.ClientID)
	assert.NotEqual(t, slideA.InnerBlocks[0].ClientID, slideB.InnerBlocks[0].ClientID)
	// Content blocks keep theirs.
	assert.Equal(t, "p1", first.Content[0].ClientID)
	assert.Equal(t, "m1", first.Content[1].ClientID)
}

func TestAssignIDs(t *testing.T) {
	content := []model.Block{
		{Name: "core/paragraph", Attributes: map[string]any{"content": "x"}},
		{Name: model.BlockExercise, Attributes: map[string]any{"name": "new"}, InnerBlocks: []model.Block{
			{Name: model.BlockExerciseSlide, InnerBlocks: []model.Block{
				{Name: model.BlockExerciseTask, Attributes: map[string]any{"id": "keep", "exercise_type": "quiz"}},
			}},
		}},
	}

	got := AssignIDs(content)

	require.NoError(t, Validate(got))
	assert.NotContains(t, got[0].Attributes, "id")
	assert.NotEmpty(t, got[0].ClientID)
	assert.NotEmpty(t, got[1].Attributes["id"])
	assert.NotEmpty(t, got[1].InnerBlocks[0].Attributes["id"])
	assert.Equal(t, "keep", got[1].InnerBlocks[0].InnerBlocks[0].Attributes["id"])

	// The input is left alone.
	assert.NotContains(t, content[1].Attributes, "id")
	assert.Empty(t, content[1].ClientID)
	assert.Nil(t, content[1].InnerBlocks[0].Attributes)
}

func TestAssignIDsKeepsNonStringIDs(t *testing.T) {
	content := []model.Block{
		{Name: model.BlockExercise, Attributes: map[string]any{"id": 42, "name": "numbered"}, InnerBlocks: []model.Block{
			{Name: model.BlockExerciseSlide, Attributes: map[string]any{"id": 7.0}},
			{Name: model.BlockExerciseSlide, Attributes: map[string]any{"id": ""}},
			{Name: model.BlockExerciseSlide, Attributes: map[string]any{"id": nil}},
		}},
	}

	got := AssignIDs(content)

	assert.Equal(t, 42, got[0].Attributes["id"])
	slides := got[0].InnerBlocks
	assert.Equal(t, 7.0, slides[0].Attributes["id"])
	assert.NotEmpty(t, slides[1].Attributes["id"])
	assert.NotNil(t, slides[2].Attributes["id"])

	page, err := Normalize(model.EditorPage{Content: got})
	require.NoError(t, err)
	require.Len(t, page.Exercises, 1)
	assert.Equal(t, "42", page.Exercises[0].ID)
	assert.Equal(t, "7", page.ExerciseSlides[0].ID)
}

func TestDenormalizeNumericMarkerID(t *testing.T) {
	page := model.PageUpdate{
		Content:   []model.Block{{ClientID: "m", Name: model.BlockExercise, Attributes: map[string]any{"id": 42, "name": "n"}}},
		Exercises: []model.Exercise{{ID: "42", Name: "numbered", OrderNumber: 1}},
	}

	tree, orphans := Denormalize(page)

	assert.Empty(t, orphans)
	require.Len(t, tree.Content, 1)
	assert.Equal(t, "numbered", tree.Content[0].Attributes["name"])
}

// A literal "null" private spec is stored as JSON null, the same as an absent
// one, so the attribute does not come back on the rebuilt task.
func TestNullPrivateSpecIsDropped(t *testing.T) {
	for _, spec := range []string{"", "null", " null "} {
		t.Run(fmt.Sprintf("%q", spec), func(t *testing.T) {
			task := model.Block{Name: model.BlockExerciseTask, Attributes: map[string]any{"id": "T1", "exercise_type": "quiz"}}
			if spec != "" {
				task.Attributes["private_spec"] = spec
			}
			tree := model.EditorPage{Content: []model.Block{
				exerciseBlock("E1", "e", slideBlockOf("S1", 1, task)),
			}}

			page, err := Normalize(tree)
			require.NoError(t, err)
			require.Len(t, page.ExerciseTasks, 1)
			assert.Nil(t, page.ExerciseTasks[0].PrivateSpec)

			rebuilt, _ := Denormalize(page)
			attrs := rebuilt.Content[0].InnerBlocks[0].InnerBlocks[0].Attributes
			assert.Equal(t, map[string]any{"id": "T1", "exercise_type": "quiz"}, attrs)
		})
	}
}
