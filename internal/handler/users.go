package handler

import (
	"net/http"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/middleware"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type adjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type creditLevelRequest struct {
	CreditLevel string `json:"credit_level"`
}

type favoriteRequest struct {
	BookID int64 `json:"book_id"`
}

type missingRequestRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Note   string `json:"note"`
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), store.CreateUserRequest{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
		Phone: req.Phone,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetUser lets a user read their own profile; admins can read any.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	caller, _ := middleware.IdentityFromContext(r.Context())
	if !caller.IsAdmin() && caller.UserID != id {
		h.respondServiceError(w, r, database.ErrUserNotFound)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := h.service.ListUsers(r.Context(), page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) TopUpBalance(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var req topUpRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	user, err := h.service.TopUpBalance(r.Context(), caller.UserID, req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var req adjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	user, err := h.service.AdjustBalance(r.Context(), id, req.Delta)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) SetCreditLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var req creditLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	user, err := h.service.SetCreditLevel(r.Context(), id, req.CreditLevel)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	favorites, err := h.service.ListFavorites(r.Context(), caller.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, favorites)
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var req favoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	fav, err := h.service.AddFavorite(r.Context(), caller.UserID, req.BookID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, fav)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	bookID, err := pathID(r, "bookId")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if err := h.service.RemoveFavorite(r.Context(), caller.UserID, bookID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateMissingRequest(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.IdentityFromContext(r.Context())

	var req missingRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	userID := caller.UserID
	mr, err := h.service.CreateMissingRequest(r.Context(), store.CreateMissingRequestRequest{
		Title:  req.Title,
		Author: req.Author,
		Note:   req.Note,
		UserID: &userID,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, mr)
}

func (h *Handler) ListMissingRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMissingRequests(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) SetMissingRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	mr, err := h.service.SetMissingRequestStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, mr)
}
