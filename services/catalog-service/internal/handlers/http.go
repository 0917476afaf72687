package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sevahq/seva/libs/validate"
	"github.com/sevahq/seva/services/catalog-service/internal/storage"
)

type CatalogHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewCatalogHandler(repo *storage.Repository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

type categoryResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type providerResponse struct {
	ProviderID      string  `json:"provider_id"`
	Category        string  `json:"category"`
	Name            string  `json:"name"`
	Specialty       string  `json:"specialty"`
	ExperienceYears int     `json:"experience_years"`
	PricePaise      int64   `json:"price_paise"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	Location        string  `json:"location"`
	Phone           string  `json:"phone"`
	Bio             string  `json:"bio,omitempty"`
}

type createProviderRequest struct {
	Category        string  `json:"category"`
	Name            string  `json:"name"`
	Specialty       string  `json:"specialty"`
	ExperienceYears int     `json:"experience_years"`
	PricePaise      int64   `json:"price_paise"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	Location        string  `json:"location"`
	Phone           string  `json:"phone"`
	Bio             string  `json:"bio"`
}

type updateProfileRequest struct {
	ProviderID  string `json:"provider_id"`
	Timezone    string `json:"timezone"`
	OffsetsMins []int  `json:"reminder_offsets_minutes"`
}

type dayOffRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

type removeDayOffRequest struct {
	ProviderID string `json:"provider_id"`
	DayOffID   string `json:"day_off_id"`
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{Slug: c.Slug, Name: c.Name, Description: c.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	providers, err := h.repo.ListProviders(r.Context(), category, limit)
	if err != nil {
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}

	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, toProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	p, err := h.repo.GetProvider(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(p))
}

func (h *CatalogHandler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req createProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	req.Name = strings.TrimSpace(req.Name)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.Location = strings.TrimSpace(req.Location)
	if req.Category == "" || req.Name == "" || req.Specialty == "" {
		http.Error(w, "category, name and specialty required", http.StatusBadRequest)
		return
	}
	if req.PricePaise < 0 || req.ExperienceYears < 0 || req.Rating < 0 || req.Rating > 5 {
		http.Error(w, "price, experience and rating must be in range", http.StatusBadRequest)
		return
	}
	phone := validate.IndianPhone(req.Phone)
	if !phone.Valid {
		http.Error(w, phone.Message, http.StatusUnprocessableEntity)
		return
	}

	id, err := h.repo.CreateProvider(r.Context(), storage.Provider{
		CategorySlug:    req.Category,
		Name:            req.Name,
		Specialty:       req.Specialty,
		ExperienceYears: req.ExperienceYears,
		PricePaise:      req.PricePaise,
		Rating:          req.Rating,
		ReviewCount:     req.ReviewCount,
		Location:        req.Location,
		Phone:           phone.Formatted,
		Bio:             strings.TrimSpace(req.Bio),
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to create provider", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"provider_id": id})
}

func (h *CatalogHandler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
		if providerID == "" {
			http.Error(w, "provider_id required", http.StatusBadRequest)
			return
		}
		p, err := h.repo.GetOrCreateProfile(r.Context(), providerID)
		if err != nil {
			http.Error(w, "failed to load profile", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, updateProfileRequest{
			ProviderID:  p.ProviderID,
			Timezone:    p.Timezone,
			OffsetsMins: p.OffsetsMins,
		})
	case http.MethodPost:
		if !isAdmin(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req updateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.ProviderID = strings.TrimSpace(req.ProviderID)
		req.Timezone = strings.TrimSpace(req.Timezone)
		if req.ProviderID == "" {
			http.Error(w, "provider_id required", http.StatusBadRequest)
			return
		}
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				http.Error(w, "invalid timezone", http.StatusBadRequest)
				return
			}
		}
		for _, mins := range req.OffsetsMins {
			if mins <= 0 {
				http.Error(w, "reminder offsets must be positive minutes", http.StatusBadRequest)
				return
			}
		}
		if err := h.repo.UpdateProfile(r.Context(), req.ProviderID, req.Timezone, req.OffsetsMins); err != nil {
			http.Error(w, "failed to update profile", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) AddDayOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req dayOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	id, err := h.repo.AddDayOff(r.Context(), req.ProviderID, day, strings.TrimSpace(req.Reason))
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to add day off", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"day_off_id": id})
}

func (h *CatalogHandler) ListDaysOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}
	from, to := dayRange(r)

	days, err := h.repo.ListDaysOff(r.Context(), providerID, from, to, 0)
	if err != nil {
		http.Error(w, "failed to list days off", http.StatusInternalServerError)
		return
	}

	type dayOffResponse struct {
		DayOffID string `json:"day_off_id"`
		Date     string `json:"date"`
		Reason   string `json:"reason,omitempty"`
	}
	out := make([]dayOffResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayOffResponse{
			DayOffID: d.ID,
			Date:     d.Date.Format("2006-01-02"),
			Reason:   d.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) RemoveDayOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !isAdmin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req removeDayOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ProviderID) == "" || strings.TrimSpace(req.DayOffID) == "" {
		http.Error(w, "provider_id and day_off_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.RemoveDayOff(r.Context(), req.ProviderID, req.DayOffID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "day off not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to remove day off", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toProviderResponse(p storage.Provider) providerResponse {
	return providerResponse{
		ProviderID:      p.ID,
		Category:        p.CategorySlug,
		Name:            p.Name,
		Specialty:       p.Specialty,
		ExperienceYears: p.ExperienceYears,
		PricePaise:      p.PricePaise,
		Rating:          p.Rating,
		ReviewCount:     p.ReviewCount,
		Location:        p.Location,
		Phone:           p.Phone,
		Bio:             p.Bio,
	}
}

// isAdmin trusts the role header injected by the gateway after it verified
// the JWT; the catalog service is not internet-facing.
func isAdmin(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get("X-Role")) == "admin"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// dayRange parses optional from/to query params, defaulting to the coming
// year.
func dayRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now
	to := now.AddDate(1, 0, 0)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			from = t
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			to = t
		}
	}
	return from, to
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
