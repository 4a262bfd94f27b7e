package model

import (
	"encoding/json"
	"time"
)

// Block names with special meaning for the page document. Every other name is
// ordinary content and is carried through untouched.
const (
	BlockExercise      = "moocfi/exercise"
	BlockExerciseSlide = "moocfi/exercise-slide"
	BlockExerciseTask  = "moocfi/exercise-task"
)

// Block is a node of the editor's block tree.
type Block struct {
	ClientID    string         `json:"clientId"`
	Name        string         `json:"name"`
	Attributes  map[string]any `json:"attributes"`
	InnerBlocks []Block        `json:"innerBlocks"`
}

// MarshalJSON emits empty attributes and inner blocks as {} and [] rather
// than null, which is what the editor expects to receive.
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	p := plain(b)
	if p.Attributes == nil {
		p.Attributes = map[string]any{}
	}
	if p.InnerBlocks == nil {
		p.InnerBlocks = []Block{}
	}
	return json.Marshal(p)
}

// Exercise is the normalized record of an exercise block.
type Exercise struct {
	ID                 string  `json:"id" validate:"required"`
	Name               string  `json:"name"`
	OrderNumber        int     `json:"order_number"`
	ScoreMaximum       *int    `json:"score_maximum,omitempty"`
	MaxTriesPerSlide   *int    `json:"max_tries_per_slide,omitempty"`
	LimitNumberOfTries *bool   `json:"limit_number_of_tries,omitempty"`
	NeedsPeerReview    *bool   `json:"needs_peer_review,omitempty"`
	PeerReviewConfig   *string `json:"peer_review_config,omitempty"`
}

// ExerciseSlide is one alternative presentation of an exercise.
type ExerciseSlide struct {
	ID          string `json:"id" validate:"required"`
	ExerciseID  string `json:"exercise_id" validate:"required"`
	OrderNumber int    `json:"order_number"`
}

// ExerciseTask is a gradable unit rendered by an external exercise service.
type ExerciseTask struct {
	ID              string          `json:"id" validate:"required"`
	ExerciseSlideID string          `json:"exercise_slide_id" validate:"required"`
	OrderNumber     int             `json:"order_number"`
	ExerciseType    string          `json:"exercise_type"`
	PrivateSpec     json.RawMessage `json:"private_spec"`
	Assignment      []Block         `json:"assignment"`
}

// EditorPage is a page in the shape the block editor works with: exercises,
// slides and tasks are nested inside the content tree.
type EditorPage struct {
	Title     string  `json:"title" validate:"required,max=255"`
	URLPath   string  `json:"url_path" validate:"required,startswith=/"`
	ChapterID *string `json:"chapter_id"`
	Content   []Block `json:"content"`
}

// PageUpdate is the normalized page document, the request body of
// PUT /pages/{id}.
type PageUpdate struct {
	Content        []Block         `json:"content"`
	ChapterID      *string         `json:"chapter_id"`
	Exercises      []Exercise      `json:"exercises" validate:"dive"`
	ExerciseSlides []ExerciseSlide `json:"exercise_slides" validate:"dive"`
	ExerciseTasks  []ExerciseTask  `json:"exercise_tasks" validate:"dive"`
	Title          string          `json:"title" validate:"required,max=255"`
	URLPath        string          `json:"url_path" validate:"required,startswith=/"`
}

// Page is a stored page as returned by GET /pages/{id}.
type Page struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	PageUpdate
}

// Course groups chapters and pages.
type Course struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chapter is an ordered section of a course.
type Chapter struct {
	ID            string    `json:"id"`
	CourseID      string    `json:"course_id"`
	Name          string    `json:"name"`
	ChapterNumber int       `json:"chapter_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewCourse is the payload for creating a course.
type NewCourse struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,max=255,lowercase"`
}

// NewChapter is the payload for creating a chapter.
type NewChapter struct {
	Name          string `json:"name" validate:"required,max=255"`
	ChapterNumber int    `json:"chapter_number" validate:"min=1"`
}

// NewPage is the payload for creating an empty page.
type NewPage struct {
	CourseID  string  `json:"course_id" validate:"required"`
	ChapterID *string `json:"chapter_id"`
	Title     string  `json:"title" validate:"required,max=255"`
	URLPath   string  `json:"url_path" validate:"required,startswith=/"`
}

// ServerConfig holds runtime server parameters set via CLI flags.
type ServerConfig struct {
	Addr        string
	DBPath      string
	DefaultLang string
	BasePath    string // URL prefix for sub-path deployments (e.g. "/cms")
	MaxBodySize int64  // bytes; 0 means no limit
}
