package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/pmxixon/airemap/internal/wind"
)

type stubForwarder struct {
	body   []byte
	status int
	err    error

	gotPath   string
	gotParams url.Values
}

func (f *stubForwarder) Forward(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	f.gotPath = path
	f.gotParams = params
	return f.body, f.status, f.err
}

func TestProxyRejectsUnknownPath(t *testing.T) {
	app := fiber.New()
	RegisterProxy(app, &stubForwarder{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/asturaire?path=/etc/passwd", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Ruta no permitida" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestProxyForwardsAllowedPath(t *testing.T) {
	forwarder := &stubForwarder{body: []byte(`[{"ides":"3"}]`), status: 200}
	app := fiber.New()
	RegisterProxy(app, forwarder)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/asturaire?path=/getEstacion&ides=3", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	if forwarder.gotPath != "/getEstacion" {
		t.Fatalf("unexpected forwarded path: %s", forwarder.gotPath)
	}
	if forwarder.gotParams.Get("ides") != "3" {
		t.Fatalf("expected query forwarded, got %v", forwarder.gotParams)
	}
	if forwarder.gotParams.Get("path") != "" {
		t.Fatal("path parameter must not be forwarded upstream")
	}

	var stations []map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&stations); err != nil {
		t.Fatal(err)
	}
	if len(stations) != 1 || stations[0]["ides"] != "3" {
		t.Fatalf("expected upstream body verbatim, got %v", stations)
	}
}

func TestProxyUpstreamFailure(t *testing.T) {
	forwarder := &stubForwarder{status: 503, err: errors.New("upstream down")}
	app := fiber.New()
	RegisterProxy(app, forwarder)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/asturaire?path=/getDato", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", resp.StatusCode)
	}

	var body struct {
		Error   string `json:"error"`
		Status  int    `json:"status"`
		Detalle string `json:"detalle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "No se pudo obtener datos de AsturAire." {
		t.Fatalf("unexpected error message: %s", body.Error)
	}
	if body.Status != 503 || body.Detalle != "upstream down" {
		t.Fatalf("unexpected failure details: %+v", body)
	}
}

func TestWindFieldQueryValidation(t *testing.T) {
	app := newTestApp(t, Deps{Sensors: primedService(t), WindCtrl: wind.NewController(nil)})

	// Missing zoom fails validation.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/wind/field?width=800&height=600", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}

	// Valid query before any refresh: no field yet.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/wind/field?width=800&height=600&zoom=12&lat=43.53&lon=-5.66", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 before first refresh, got %d", resp.StatusCode)
	}
}
