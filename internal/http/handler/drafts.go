package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"movedocs/internal/auth"
	"movedocs/internal/remote"

	"github.com/go-chi/chi/v5"
)

type DraftHandler struct {
	Svc *remote.Service
}

// form types are base form keys: "quotation-create", "receipt-create", ...
var formTypeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

func formType(w http.ResponseWriter, r *http.Request) (string, bool) {
	ft := chi.URLParam(r, "formType")
	if !formTypeRe.MatchString(ft) {
		http.Error(w, "invalid form type", http.StatusBadRequest)
		return "", false
	}
	return ft, true
}

type draftResp struct {
	FormType     string          `json:"form_type"`
	Data         json.RawMessage `json:"data"`
	Sections     []string        `json:"sections,omitempty"`
	LastModified time.Time       `json:"last_modified"`
}

func (h *DraftHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	drafts, err := h.Svc.List(r.Context(), uid)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]draftResp, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftResp{
			FormType:     d.FormType,
			Data:         d.Data,
			Sections:     d.Sections,
			LastModified: d.LastModified,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"drafts": out})
}

func (h *DraftHandler) Exists(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ft, ok := formType(w, r)
	if !ok {
		return
	}

	exists, err := h.Svc.Exists(r.Context(), uid, ft)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"exists": exists})
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ft, ok := formType(w, r)
	if !ok {
		return
	}

	d, err := h.Svc.Get(r.Context(), uid, ft)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(draftResp{
		FormType:     d.FormType,
		Data:         d.Data,
		Sections:     d.Sections,
		LastModified: d.LastModified,
	})
}

type putDraftReq struct {
	Data json.RawMessage `json:"data"`
}

func (h *DraftHandler) Put(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ft, ok := formType(w, r)
	if !ok {
		return
	}

	var req putDraftReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.Data) == 0 || string(req.Data) == "null" {
		http.Error(w, "data required", http.StatusBadRequest)
		return
	}

	if _, err := h.Svc.Put(r.Context(), uid, ft, req.Data); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ft, ok := formType(w, r)
	if !ok {
		return
	}

	err := h.Svc.Delete(r.Context(), uid, ft)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
