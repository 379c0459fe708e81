package itinerary

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-travelplanner/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(t *testing.T, ids ...string) (*fiber.App, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t, ids...)
	app := fiber.New()
	as := func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user != "" {
			c.Locals(auth.SessionLocal, auth.Session{UserID: user})
		}
		return c.Next()
	}
	RegisterRoutes(app.Group("/trips"), svc, as)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestReorderHandler(t *testing.T) {
	app, svc := newTestApp(t, "A", "B", "C")

	resp, data := doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary/reorder", "user-1",
		ReorderRequest{OrderedLocationIDs: []string{"C", "A", "B"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reorder status: %d %s", resp.StatusCode, data)
	}
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Locations) != 3 || out.Locations[0].ID != "C" || out.Locations[0].Order != 0 {
		t.Fatalf("unexpected body %s", data)
	}
	if got := orderOf(t, svc, "trip-1"); got[0] != "C" {
		t.Fatalf("order not persisted: %v", got)
	}
}

func TestReorderHandlerErrors(t *testing.T) {
	app, _ := newTestApp(t, "A", "B", "C")

	resp, _ := doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary/reorder", "user-1",
		ReorderRequest{OrderedLocationIDs: []string{"A", "B"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("omission should be 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary/reorder", "user-1", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing field should be 400, got %d", resp.StatusCode)
	}

	resp, foreign := doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary/reorder", "user-2",
		ReorderRequest{OrderedLocationIDs: []string{"C", "B", "A"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner should be 403, got %d", resp.StatusCode)
	}
	resp, absent := doJSON(t, app, http.MethodPost, "/trips/nope/itinerary/reorder", "user-1",
		ReorderRequest{OrderedLocationIDs: []string{}})
	if resp.StatusCode != http.StatusForbidden || string(absent) != string(foreign) {
		t.Fatalf("absent trip must look like a foreign one: %s vs %s", absent, foreign)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary/reorder", "",
		ReorderRequest{OrderedLocationIDs: []string{"C", "B", "A"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous should be 401, got %d", resp.StatusCode)
	}
}

func TestItineraryHandlers(t *testing.T) {
	app, _ := newTestApp(t, "A")

	resp, data := doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary", "user-1", AddLocationRequest{Address: "Lyon"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status: %d %s", resp.StatusCode, data)
	}
	var loc Location
	_ = json.Unmarshal(data, &loc)
	if loc.Order != 1 {
		t.Fatalf("expected appended order 1, got %d", loc.Order)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/trips/trip-1/itinerary", "user-1", AddLocationRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty address should be 400, got %d", resp.StatusCode)
	}

	resp, data = doJSON(t, app, http.MethodGet, "/trips/trip-1/itinerary", "user-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	var it Itinerary
	_ = json.Unmarshal(data, &it)
	if len(it.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %s", data)
	}

	resp, _ = doJSON(t, app, http.MethodDelete, "/trips/trip-1/itinerary/A", "user-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, http.MethodDelete, "/trips/trip-1/itinerary/A", "user-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", resp.StatusCode)
	}
}
