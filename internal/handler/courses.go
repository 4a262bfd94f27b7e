package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecms/internal/model"
)

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var nc model.NewCourse
	if !h.decode(w, r, &nc) {
		return
	}
	course, err := h.store.CreateCourse(nc)
	if err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *Handler) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.store.GetCourse(chi.URLParam(r, "courseID"))
	if err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *Handler) handleListChapters(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	if _, err := h.store.GetCourse(courseID); err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	chapters, err := h.store.ListChapters(courseID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (h *Handler) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var nc model.NewChapter
	if !h.decode(w, r, &nc) {
		return
	}
	chapter, err := h.store.CreateChapter(chi.URLParam(r, "courseID"), nc)
	if err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	writeJSON(w, http.StatusCreated, chapter)
}

func (h *Handler) handleListPages(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	if _, err := h.store.GetCourse(courseID); err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	pages, err := h.store.ListPages(courseID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}
