package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/coursecms/internal/model"
)

// CreatePage stores an empty page in a course.
func (s *Store) CreatePage(np model.NewPage) (model.Page, error) {
	if _, err := s.GetCourse(np.CourseID); err != nil {
		return model.Page{}, fmt.Errorf("course %s: %w", np.CourseID, err)
	}
	now := time.Now().UTC()
	p := model.Page{
		ID:        uuid.NewString(),
		CourseID:  np.CourseID,
		CreatedAt: now,
		UpdatedAt: now,
		PageUpdate: model.PageUpdate{
			Content:        []model.Block{},
			ChapterID:      np.ChapterID,
			Exercises:      []model.Exercise{},
			ExerciseSlides: []model.ExerciseSlide{},
			ExerciseTasks:  []model.ExerciseTask{},
			Title:          np.Title,
			URLPath:        np.URLPath,
		},
	}
	_, err := s.db.Exec(
		`INSERT INTO pages (id, course_id, chapter_id, title, url_path, content, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '[]', ?, ?)`,
		p.ID, p.CourseID, p.ChapterID, p.Title, p.URLPath, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return model.Page{}, wrapConstraint(err)
	}
	return p, nil
}

// GetPage returns a page with its exercises, slides and tasks in saved order.
func (s *Store) GetPage(id string) (model.Page, error) {
	var p model.Page
	var content string
	err := s.db.QueryRow(
		`SELECT id, course_id, chapter_id, title, url_path, content, created_at, updated_at
		 FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.CourseID, &p.ChapterID, &p.Title, &p.URLPath, &content, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return p, fmt.Errorf("decode content of page %s: %w", id, err)
	}
	if p.Content == nil {
		p.Content = []model.Block{}
	}

	if p.Exercises, err = s.pageExercises(id); err != nil {
		return p, err
	}
	if p.ExerciseSlides, err = s.pageSlides(id); err != nil {
		return p, err
	}
	if p.ExerciseTasks, err = s.pageTasks(id); err != nil {
		return p, err
	}
	return p, nil
}

// ListPages returns the pages of a course. Only page metadata is filled in;
// use GetPage for the document.
func (s *Store) ListPages(courseID string) ([]model.Page, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, chapter_id, title, url_path, created_at, updated_at
		 FROM pages WHERE course_id = ? ORDER BY url_path`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := []model.Page{}
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.CourseID, &p.ChapterID, &p.Title, &p.URLPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// UpdatePage replaces a page's document. The page's exercise, slide and task
// rows are rewritten from the update in one transaction.
func (s *Store) UpdatePage(id string, u model.PageUpdate) (model.Page, error) {
	if err := checkReferences(u); err != nil {
		return model.Page{}, err
	}
	content, err := json.Marshal(nonNilBlocks(u.Content))
	if err != nil {
		return model.Page{}, fmt.Errorf("encode content: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return model.Page{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE pages SET chapter_id = ?, title = ?, url_path = ?, content = ?, updated_at = ? WHERE id = ?`,
		u.ChapterID, u.Title, u.URLPath, string(content), time.Now().UTC(), id,
	)
	if err != nil {
		return model.Page{}, wrapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Page{}, err
	}
	if n == 0 {
		return model.Page{}, ErrNotFound
	}

	// Slides and tasks go with their exercises.
	if _, err := tx.Exec(`DELETE FROM exercises WHERE page_id = ?`, id); err != nil {
		return model.Page{}, err
	}

	for _, e := range u.Exercises {
		_, err := tx.Exec(
			`INSERT INTO exercises (id, page_id, name, order_number, score_maximum, max_tries_per_slide,
			 limit_number_of_tries, needs_peer_review, peer_review_config)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, id, e.Name, e.OrderNumber, e.ScoreMaximum, e.MaxTriesPerSlide,
			e.LimitNumberOfTries, e.NeedsPeerReview, e.PeerReviewConfig,
		)
		if err != nil {
			return model.Page{}, fmt.Errorf("insert exercise %s: %w", e.ID, wrapConstraint(err))
		}
	}
	for _, sl := range u.ExerciseSlides {
		_, err := tx.Exec(
			`INSERT INTO exercise_slides (id, page_id, exercise_id, order_number) VALUES (?, ?, ?, ?)`,
			sl.ID, id, sl.ExerciseID, sl.OrderNumber,
		)
		if err != nil {
			return model.Page{}, fmt.Errorf("insert exercise slide %s: %w", sl.ID, wrapConstraint(err))
		}
	}
	for _, t := range u.ExerciseTasks {
		assignment, err := json.Marshal(nonNilBlocks(t.Assignment))
		if err != nil {
			return model.Page{}, fmt.Errorf("encode assignment of task %s: %w", t.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO exercise_tasks (id, page_id, exercise_slide_id, order_number, exercise_type, private_spec, assignment)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, id, t.ExerciseSlideID, t.OrderNumber, t.ExerciseType, specValue(t.PrivateSpec), string(assignment),
		)
		if err != nil {
			return model.Page{}, fmt.Errorf("insert exercise task %s: %w", t.ID, wrapConstraint(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Page{}, err
	}
	return s.GetPage(id)
}

// DeletePage removes a page and its exercises.
func (s *Store) DeletePage(id string) error {
	res, err := s.db.Exec(`DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) pageExercises(pageID string) ([]model.Exercise, error) {
	rows, err := s.db.Query(
		`SELECT id, name, order_number, score_maximum, max_tries_per_slide, limit_number_of_tries,
		 needs_peer_review, peer_review_config
		 FROM exercises WHERE page_id = ? ORDER BY rowid`, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exercises := []model.Exercise{}
	for rows.Next() {
		var e model.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.OrderNumber, &e.ScoreMaximum, &e.MaxTriesPerSlide,
			&e.LimitNumberOfTries, &e.NeedsPeerReview, &e.PeerReviewConfig); err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

func (s *Store) pageSlides(pageID string) ([]model.ExerciseSlide, error) {
	rows, err := s.db.Query(
		`SELECT id, exercise_id, order_number FROM exercise_slides WHERE page_id = ? ORDER BY rowid`, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slides := []model.ExerciseSlide{}
	for rows.Next() {
		var sl model.ExerciseSlide
		if err := rows.Scan(&sl.ID, &sl.ExerciseID, &sl.OrderNumber); err != nil {
			return nil, err
		}
		slides = append(slides, sl)
	}
	return slides, rows.Err()
}

func (s *Store) pageTasks(pageID string) ([]model.ExerciseTask, error) {
	rows, err := s.db.Query(
		`SELECT id, exercise_slide_id, order_number, exercise_type, private_spec, assignment
		 FROM exercise_tasks WHERE page_id = ? ORDER BY rowid`, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks := []model.ExerciseTask{}
	for rows.Next() {
		var t model.ExerciseTask
		var spec sql.NullString
		var assignment string
		if err := rows.Scan(&t.ID, &t.ExerciseSlideID, &t.OrderNumber, &t.ExerciseType, &spec, &assignment); err != nil {
			return nil, err
		}
		if spec.Valid {
			t.PrivateSpec = json.RawMessage(spec.String)
		}
		if err := json.Unmarshal([]byte(assignment), &t.Assignment); err != nil {
			return nil, fmt.Errorf("decode assignment of task %s: %w", t.ID, err)
		}
		if t.Assignment == nil {
			t.Assignment = []model.Block{}
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// checkReferences makes sure every slide and task in the update points at a
// parent that is part of the same update.
func checkReferences(u model.PageUpdate) error {
	exercises := make(map[string]bool, len(u.Exercises))
	for _, e := range u.Exercises {
		exercises[e.ID] = true
	}
	slides := make(map[string]bool, len(u.ExerciseSlides))
	for _, sl := range u.ExerciseSlides {
		if !exercises[sl.ExerciseID] {
			return fmt.Errorf("%w: exercise slide %s refers to unknown exercise %s", ErrInvalidReference, sl.ID, sl.ExerciseID)
		}
		slides[sl.ID] = true
	}
	for _, t := range u.ExerciseTasks {
		if !slides[t.ExerciseSlideID] {
			return fmt.Errorf("%w: exercise task %s refers to unknown slide %s", ErrInvalidReference, t.ID, t.ExerciseSlideID)
		}
	}
	return nil
}

func specValue(spec json.RawMessage) any {
	if len(spec) == 0 || string(spec) == "null" {
		return nil
	}
	return string(spec)
}

func nonNilBlocks(blocks []model.Block) []model.Block {
	if blocks == nil {
		return []model.Block{}
	}
	return blocks
}
