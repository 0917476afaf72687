package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sevahq/seva/services/booking-service/internal/model"
	"github.com/sevahq/seva/services/booking-service/internal/storage"
)

type CartHandler struct {
	repo   *storage.CartRepository
	logger *slog.Logger
}

func NewCartHandler(repo *storage.CartRepository, logger *slog.Logger) *CartHandler {
	return &CartHandler{repo: repo, logger: logger}
}

type addCartItemRequest struct {
	ProviderID  string `json:"provider_id"`
	ServiceType string `json:"service_type"`
	PricePaise  int64  `json:"price_paise"`
}

type removeCartItemRequest struct {
	ItemID string `json:"item_id"`
}

type cartItemResponse struct {
	ItemID      string `json:"item_id"`
	ProviderID  string `json:"provider_id"`
	ServiceType string `json:"service_type"`
	PricePaise  int64  `json:"price_paise"`
	AddedAt     string `json:"added_at"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalPaise int64              `json:"total_paise"`
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	items, err := h.repo.List(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list cart", http.StatusInternalServerError)
		return
	}

	resp := cartResponse{Items: make([]cartItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, cartItemResponse{
			ItemID:      item.ID,
			ProviderID:  item.ProviderID,
			ServiceType: item.ServiceType,
			PricePaise:  item.PricePaise,
			AddedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		})
		resp.TotalPaise += item.PricePaise
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add upserts: re-adding a provider already in the cart refreshes its price
// instead of duplicating the row.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if req.ProviderID == "" || req.ServiceType == "" {
		http.Error(w, "provider_id and service_type required", http.StatusBadRequest)
		return
	}
	if req.PricePaise < 0 {
		http.Error(w, "price_paise must not be negative", http.StatusBadRequest)
		return
	}

	id, err := h.repo.Add(r.Context(), model.CartItem{
		UserID:      userID,
		ProviderID:  req.ProviderID,
		ServiceType: req.ServiceType,
		PricePaise:  req.PricePaise,
	})
	if err != nil {
		http.Error(w, "failed to add cart item", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"item_id": id})
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req removeCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		http.Error(w, "item_id required", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.Remove(r.Context(), userID, req.ItemID)
	if err != nil {
		http.Error(w, "failed to remove cart item", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "item not in cart", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if err := h.repo.Clear(r.Context(), userID); err != nil {
		http.Error(w, "failed to clear cart", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
