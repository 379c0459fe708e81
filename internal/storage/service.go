// Package storage hands out object URLs for uploads such as trip cover
// images. The bytes themselves go straight to the object store.
package storage

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"backend-travelplanner/internal/db"
	"backend-travelplanner/internal/shared/apperr"

	"github.com/google/uuid"
)

const (
	uploadTTL   = 15 * time.Minute
	defaultKind = "trip_image"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Object struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	db      db.Querier
	baseURL string
	now     func() time.Time
}

func NewService(db db.Querier, baseURL string) *Service {
	return &Service{db: db, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// SaveObject records a new object for userID and returns where to put it.
func (s *Service) SaveObject(ctx context.Context, userID, fileName, kind string) (Object, error) {
	if kind == "" {
		kind = defaultKind
	}
	obj := Object{
		ID:        uuid.NewString(),
		Kind:      kind,
		ExpiresAt: s.now().Add(uploadTTL),
	}
	obj.URL = s.baseURL + "/" + path.Join("users", userID, obj.ID+"-"+cleanName(fileName))

	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, obj.ID, userID, obj.URL, obj.Kind)
	if err != nil {
		return Object{}, apperr.Persistence(err)
	}
	return obj, nil
}

func cleanName(name string) string {
	name = unsafeName.ReplaceAllString(path.Base(strings.TrimSpace(name)), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}
