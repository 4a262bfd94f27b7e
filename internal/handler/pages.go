package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/coursecms/internal/document"
	appI18n "github.com/pavelanni/coursecms/internal/i18n"
	"github.com/pavelanni/coursecms/internal/model"
)

func (h *Handler) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var np model.NewPage
	if !h.decode(w, r, &np) {
		return
	}
	page, err := h.store.CreatePage(np)
	if err != nil {
		h.storeError(w, r, err, "CourseNotFound")
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

func (h *Handler) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.GetPage(chi.URLParam(r, "pageID"))
	if err != nil {
		h.storeError(w, r, err, "PageNotFound")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	var u model.PageUpdate
	if !h.decode(w, r, &u) {
		return
	}
	page, err := h.store.UpdatePage(chi.URLParam(r, "pageID"), u)
	if err != nil {
		h.storeError(w, r, err, "PageNotFound")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePage(chi.URLParam(r, "pageID")); err != nil {
		h.storeError(w, r, err, "PageNotFound")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEditorPage serves a stored page as the nested block tree.
func (h *Handler) handleGetEditorPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.GetPage(chi.URLParam(r, "pageID"))
	if err != nil {
		h.storeError(w, r, err, "PageNotFound")
		return
	}
	tree, orphans := document.Denormalize(page.PageUpdate)
	h.warnOrphans(w, r, page.ID, orphans)
	writeJSON(w, http.StatusOK, tree)
}

// handleSaveEditorPage accepts the nested block tree, normalizes it and saves
// it. The response is the saved page rebuilt as a tree. With assign_ids=true
// special blocks that lack an id get one before normalizing.
func (h *Handler) handleSaveEditorPage(w http.ResponseWriter, r *http.Request) {
	var doc model.EditorPage
	if !h.decode(w, r, &doc) {
		return
	}
	if assign, _ := strconv.ParseBool(r.URL.Query().Get("assign_ids")); assign {
		doc.Content = document.AssignIDs(doc.Content)
	}

	update, err := document.Normalize(doc)
	if err != nil {
		h.documentError(w, r, err)
		return
	}
	page, err := h.store.UpdatePage(chi.URLParam(r, "pageID"), update)
	if err != nil {
		h.storeError(w, r, err, "PageNotFound")
		return
	}
	slog.Debug("saved editor page",
		"page_id", page.ID,
		"exercises", len(update.Exercises),
		"slides", len(update.ExerciseSlides),
		"tasks", len(update.ExerciseTasks),
	)

	tree, orphans := document.Denormalize(page.PageUpdate)
	h.warnOrphans(w, r, page.ID, orphans)
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) warnOrphans(w http.ResponseWriter, r *http.Request, pageID string, orphans []document.Orphan) {
	if len(orphans) == 0 {
		return
	}
	slog.Warn("page has records outside the tree", "page_id", pageID, "count", len(orphans))
	msg := appI18n.Tp(r.Context(), "OrphansDropped", len(orphans))
	w.Header().Set("Warning", fmt.Sprintf("199 - %q", msg))
}
