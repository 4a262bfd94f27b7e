package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/coursecms/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned when a page update links records that are not part of it.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("conflict")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		name TEXT NOT NULL,
		chapter_number INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (course_id, chapter_number),
		FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		chapter_id TEXT,
		title TEXT NOT NULL,
		url_path TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (course_id, url_path),
		FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
		FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		order_number INTEGER NOT NULL,
		score_maximum INTEGER,
		max_tries_per_slide INTEGER,
		limit_number_of_tries INTEGER,
		needs_peer_review INTEGER,
		peer_review_config TEXT,
		FOREIGN KEY (page_id) REFERENCES pages(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS exercise_slides (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		exercise_id TEXT NOT NULL,
		order_number INTEGER NOT NULL,
		FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS exercise_tasks (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		exercise_slide_id TEXT NOT NULL,
		order_number INTEGER NOT NULL,
		exercise_type TEXT NOT NULL DEFAULT '',
		private_spec TEXT,
		assignment TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (exercise_slide_id) REFERENCES exercise_slides(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateCourse stores a new course.
func (s *Store) CreateCourse(nc model.NewCourse) (model.Course, error) {
	now := time.Now().UTC()
	c := model.Course{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		Slug:      nc.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(
		`INSERT INTO courses (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Course{}, wrapConstraint(err)
	}
	return c, nil
}

// GetCourse returns a course by ID.
func (s *Store) GetCourse(id string) (model.Course, error) {
	var c model.Course
	err := s.db.QueryRow(
		`SELECT id, name, slug, created_at, updated_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// ListCourses returns all courses ordered by name.
func (s *Store) ListCourses() ([]model.Course, error) {
	rows, err := s.db.Query(`SELECT id, name, slug, created_at, updated_at FROM courses ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// CreateChapter stores a new chapter in a course.
func (s *Store) CreateChapter(courseID string, nc model.NewChapter) (model.Chapter, error) {
	if _, err := s.GetCourse(courseID); err != nil {
		return model.Chapter{}, err
	}
	now := time.Now().UTC()
	ch := model.Chapter{
		ID:            uuid.NewString(),
		CourseID:      courseID,
		Name:          nc.Name,
		ChapterNumber: nc.ChapterNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.db.Exec(
		`INSERT INTO chapters (id, course_id, name, chapter_number, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.CourseID, ch.Name, ch.ChapterNumber, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		return model.Chapter{}, wrapConstraint(err)
	}
	return ch, nil
}

// ListChapters returns the chapters of a course in chapter order.
func (s *Store) ListChapters(courseID string) ([]model.Chapter, error) {
	rows, err := s.db.Query(
		`SELECT id, course_id, name, chapter_number, created_at, updated_at
		 FROM chapters WHERE course_id = ? ORDER BY chapter_number`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chapters := []model.Chapter{}
	for rows.Next() {
		var ch model.Chapter
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Name, &ch.ChapterNumber, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// wrapConstraint maps SQLite constraint violations onto the store's sentinel
// errors: unique keys to ErrConflict, foreign keys to ErrInvalidReference.
func wrapConstraint(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(se.Error(), "FOREIGN KEY") {
				return fmt.Errorf("%w: %v", ErrInvalidReference, err)
			}
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
