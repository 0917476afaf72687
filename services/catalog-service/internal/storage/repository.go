package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sevahq/seva/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type Category struct {
	Slug        string
	Name        string
	Description string
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slug, name, description
		FROM categories
		ORDER BY sort_order, slug
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Slug, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type Provider struct {
	ID              string
	CategorySlug    string
	Name            string
	Specialty       string
	ExperienceYears int
	PricePaise      int64
	Rating          float64
	ReviewCount     int
	Location        string
	Phone           string
	Bio             string
	CreatedAt       time.Time
}

func (r *Repository) CreateProvider(ctx context.Context, p Provider) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, category_slug, name, specialty, experience_years, price_paise, rating, review_count, location, phone, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, p.CategorySlug, p.Name, p.Specialty, p.ExperienceYears, p.PricePaise, p.Rating, p.ReviewCount, p.Location, p.Phone, p.Bio)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListProviders(ctx context.Context, categorySlug string, limit int) ([]Provider, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, category_slug, name, specialty, experience_years, price_paise, rating, review_count, location, phone, bio, created_at
		FROM providers
		WHERE ($1 = '' OR category_slug = $1)
		ORDER BY rating DESC, review_count DESC
		LIMIT $2
	`, categorySlug, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.CategorySlug, &p.Name, &p.Specialty, &p.ExperienceYears, &p.PricePaise, &p.Rating, &p.ReviewCount, &p.Location, &p.Phone, &p.Bio, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) GetProvider(ctx context.Context, id string) (Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, category_slug, name, specialty, experience_years, price_paise, rating, review_count, location, phone, bio, created_at
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.CategorySlug, &p.Name, &p.Specialty, &p.ExperienceYears, &p.PricePaise, &p.Rating, &p.ReviewCount, &p.Location, &p.Phone, &p.Bio, &p.CreatedAt)
	if err != nil {
		return Provider{}, err
	}
	return p, nil
}

type Profile struct {
	ProviderID  string
	Timezone    string
	OffsetsMins []int
}

// GetOrCreateProfile seeds a default profile on first read so a freshly
// listed provider immediately has a reminder policy.
func (r *Repository) GetOrCreateProfile(ctx context.Context, providerID string) (Profile, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_profiles (provider_id)
		VALUES ($1)
		ON CONFLICT (provider_id) DO NOTHING
	`, providerID)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	err = r.pool.QueryRow(ctx, `
		SELECT provider_id::text, timezone, reminder_offsets_minutes
		FROM provider_profiles
		WHERE provider_id = $1
	`, providerID).Scan(&p.ProviderID, &p.Timezone, &p.OffsetsMins)
	return p, err
}

func (r *Repository) UpdateProfile(ctx context.Context, providerID string, timezone string, offsetsMins []int) error {
	if len(offsetsMins) == 0 {
		offsetsMins = []int{1440, 120}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_profiles (provider_id, timezone, reminder_offsets_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			reminder_offsets_minutes = EXCLUDED.reminder_offsets_minutes,
			updated_at = now()
	`, providerID, timezone, offsetsMins)
	return err
}

type DayOff struct {
	ID         string
	ProviderID string
	Date       time.Time
	Reason     string
	CreatedAt  time.Time
}

func (r *Repository) AddDayOff(ctx context.Context, providerID string, date time.Time, reason string) (string, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)
	`, providerID).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", pgx.ErrNoRows
	}

	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_days_off (id, provider_id, day, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id, day) DO UPDATE SET reason = EXCLUDED.reason
	`, id, providerID, date, reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListDaysOff(ctx context.Context, providerID string, from, to time.Time, limit int) ([]DayOff, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, day, reason, created_at
		FROM provider_days_off
		WHERE provider_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
		LIMIT $4
	`, providerID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayOff
	for rows.Next() {
		var d DayOff
		if err := rows.Scan(&d.ID, &d.ProviderID, &d.Date, &d.Reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) RemoveDayOff(ctx context.Context, providerID, dayOffID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM provider_days_off
		WHERE id = $1 AND provider_id = $2
	`, dayOffID, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) IsDayOff(ctx context.Context, providerID string, date time.Time) (bool, error) {
	var off bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_days_off
			WHERE provider_id = $1 AND day = $2
		)
	`, providerID, date).Scan(&off)
	return off, err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
