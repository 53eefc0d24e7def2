package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reclaim/internal/api"
	"github.com/ajitpratap0/reclaim/internal/doctype"
	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/identity"
	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/matching"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	ts     *httptest.Server
	store  *store.MemoryStore
	issuer *identity.Issuer
}

// newTestServer creates a test HTTP server over a MemoryStore. With
// authEnabled false every request runs as an anonymous admin.
func newTestServer(t *testing.T, authEnabled bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.NewMemoryStore()
	bus := events.NewMemoryBus()
	rep := reports.NewService(st, doctype.NewHeuristic(logger), bus, logger)
	match := matching.NewService(st, matcher.Default(), bus, logger)
	issuer := identity.NewIssuer(testSecret, time.Hour)

	var verifier api.Verifier
	if authEnabled {
		verifier = issuer
	}
	srv := api.NewServer(rep, match, verifier, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: st, issuer: issuer}
}

func (e *testEnv) token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	tok, err := e.issuer.Issue(models.Principal{UserID: userID, Email: userID + "@example.com", Role: role})
	require.NoError(t, err)
	return tok
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func submit(t *testing.T, env *testEnv, token string, body map[string]any) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/entries", jsonBody(t, body), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[map[string]string](t, resp)
	require.NotEmpty(t, out["id"])
	return out["id"]
}

func lostPassport() map[string]any {
	return map[string]any{
		"type": "lost", "document": "Passport", "name": "John Smith",
		"location": "Mumbai CST", "date_lost": "2024-03-01",
		"geo": map[string]float64{"lat": 18.94, "lon": 72.835},
	}
}

func foundPassport() map[string]any {
	return map[string]any{
		"type": "Found", "document": "passport", "name": "John Smith",
		"location": "Mumbai CST station", "date_found": "2024-03-03",
		"geo": map[string]float64{"lat": 18.945, "lon": 72.84},
	}
}

func TestAPI_Healthz(t *testing.T) {
	env := newTestServer(t, true)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", result["status"])
}

func TestAPI_DebugVars(t *testing.T) {
	env := newTestServer(t, true)
	resp := doRequest(t, http.MethodGet, env.ts.URL+"/debug/vars", nil, "")
	vars := decode[map[string]any](t, resp)
	assert.Contains(t, vars, "reclaim_match_runs_total")
}

func TestAPI_AuthRequired(t *testing.T) {
	env := newTestServer(t, true)

	for _, tok := range []string{"", "garbage"} {
		resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries", nil, tok)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries", nil, env.token(t, "alice", models.RoleUser))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_AuthDisabledRunsAsAdmin(t *testing.T) {
	env := newTestServer(t, false)
	id := submit(t, env, "", lostPassport())

	got, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", got.OwnerID)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches?view=global", nil, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_SubmitAndGet(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)

	id := submit(t, env, alice, lostPassport())

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries/"+id, nil, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e := decode[models.Entry](t, resp)
	assert.Equal(t, models.EntryTypeLost, e.Type)
	assert.Equal(t, "alice", e.OwnerID)
	assert.Equal(t, "alice@example.com", e.OwnerEmail)
	assert.Equal(t, models.StatusOpen, e.Status)
	require.NotNil(t, e.Geo)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries/nope", nil, alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_SubmitValidation(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)

	tests := []struct {
		name string
		body any
	}{
		{"bad type", map[string]any{"type": "stolen", "document": "PAN", "location": "x", "date_lost": "2024-03-01"}},
		{"both dates", map[string]any{"type": "Lost", "document": "PAN", "location": "x", "date_lost": "2024-03-01", "date_found": "2024-03-02"}},
		{"no location", map[string]any{"type": "Lost", "document": "PAN", "date_lost": "2024-03-01"}},
		{"lat without lon", map[string]any{"type": "Lost", "document": "PAN", "location": "x", "date_lost": "2024-03-01", "geo": map[string]float64{"lat": 19}}},
		{"lon without lat", map[string]any{"type": "Lost", "document": "PAN", "location": "x", "date_lost": "2024-03-01", "geo": map[string]float64{"lon": 72}}},
		{"unparseable date", map[string]any{"type": "Lost", "document": "PAN", "location": "x", "date_lost": "yesterday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/entries", jsonBody(t, tc.body), alice)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := doRequest(t, http.MethodPost, env.ts.URL+"/v1/entries", bytes.NewBufferString("{not json"), alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SubmitEmptyGeoIsAbsent(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)

	body := lostPassport()
	body["geo"] = map[string]any{}
	id := submit(t, env, alice, body)

	got, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got.Geo)
}

func TestAPI_ListAndSearch(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)

	submit(t, env, alice, lostPassport())
	submit(t, env, bob, foundPassport())

	type listResp struct {
		Entries []models.Entry `json:"entries"`
		Count   int            `json:"count"`
	}

	all := decode[listResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries", nil, alice))
	assert.Equal(t, 2, all.Count)

	mine := decode[listResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries?mine=true", nil, bob))
	require.Equal(t, 1, mine.Count)
	assert.Equal(t, models.EntryTypeFound, mine.Entries[0].Type)

	found := decode[listResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries?type=found&q=station", nil, alice))
	assert.Equal(t, 1, found.Count)

	none := decode[listResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries?q=chennai", nil, alice))
	assert.Equal(t, 0, none.Count)
	assert.NotNil(t, none.Entries)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/entries?status=sideways", nil, alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_StatusWorkflow(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)
	id := submit(t, env, alice, lostPassport())
	url := env.ts.URL + "/v1/entries/" + id + "/status"

	resp := doRequest(t, http.MethodPost, url, jsonBody(t, map[string]string{"status": "Found"}), bob)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, url, jsonBody(t, map[string]string{"status": "Returned"}), alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, url, jsonBody(t, map[string]string{"status": "found"}), alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e := decode[models.Entry](t, resp)
	assert.Equal(t, models.StatusFound, e.Status)
}

func TestAPI_Delete(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)
	id := submit(t, env, alice, lostPassport())

	resp := doRequest(t, http.MethodDelete, env.ts.URL+"/v1/entries/"+id, nil, bob)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, env.ts.URL+"/v1/entries/"+id, nil, alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := env.store.Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type matchesResp struct {
	Matches []models.Match `json:"matches"`
	Count   int            `json:"count"`
}

func TestAPI_MatchesByRole(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)
	carol := env.token(t, "carol", models.RoleUser)
	admin := env.token(t, "root", models.RoleAdmin)

	lostID := submit(t, env, alice, lostPassport())
	foundID := submit(t, env, bob, foundPassport())

	global := decode[matchesResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches", nil, admin))
	require.Equal(t, 1, global.Count)
	m := global.Matches[0]
	assert.Equal(t, lostID+":"+foundID, m.ID)
	assert.Equal(t, models.MatchPending, m.Status)
	assert.Contains(t, m.Reasons, matcher.ReasonDocument)
	assert.Contains(t, m.Reasons, matcher.ReasonDate)

	for _, tok := range []string{alice, bob} {
		got := decode[matchesResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches", nil, tok))
		require.Equal(t, 1, got.Count)
		assert.InDelta(t, m.Score, got.Matches[0].Score, 1e-12)
	}

	lostView := decode[matchesResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches?view=found", nil, alice))
	assert.Equal(t, 0, lostView.Count)

	none := decode[matchesResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches", nil, carol))
	assert.Equal(t, 0, none.Count)

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches?view=global", nil, alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches?view=bogus", nil, admin)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReviewAndContact(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)
	carol := env.token(t, "carol", models.RoleUser)
	admin := env.token(t, "root", models.RoleAdmin)

	lostID := submit(t, env, alice, lostPassport())
	foundID := submit(t, env, bob, foundPassport())
	base := env.ts.URL + "/v1/matches/" + lostID + "/" + foundID

	resp := doRequest(t, http.MethodPost, base+"/review", jsonBody(t, map[string]string{"status": "Confirmed"}), alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/review", jsonBody(t, map[string]string{"status": "Pending"}), admin)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/contact", nil, carol)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/contact", nil, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	contact := decode[models.Review](t, resp)
	assert.True(t, contact.ContactInitiated)

	resp = doRequest(t, http.MethodPost, base+"/review", jsonBody(t, map[string]string{"status": "Confirmed", "note": "ids match"}), admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	review := decode[models.Review](t, resp)
	assert.Equal(t, models.MatchConfirmed, review.Status)
	assert.True(t, review.ContactInitiated)

	resp = doRequest(t, http.MethodPost, base+"/review", jsonBody(t, map[string]string{"status": "Rejected"}), admin)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	got := decode[matchesResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/matches", nil, bob))
	require.Equal(t, 1, got.Count)
	assert.Equal(t, models.MatchConfirmed, got.Matches[0].Status)
	require.NotNil(t, got.Matches[0].Review)
	assert.Equal(t, "ids match", got.Matches[0].Review.Note)

	resp = doRequest(t, http.MethodPost, env.ts.URL+"/v1/matches/"+lostID+"/missing/contact", nil, alice)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Stats(t *testing.T) {
	env := newTestServer(t, true)
	alice := env.token(t, "alice", models.RoleUser)
	bob := env.token(t, "bob", models.RoleUser)
	admin := env.token(t, "root", models.RoleAdmin)

	submit(t, env, alice, lostPassport())
	submit(t, env, bob, foundPassport())

	type statsResp struct {
		Entries models.EntryStats `json:"entries"`
		Matches matching.Stats    `json:"matches"`
	}
	st := decode[statsResp](t, doRequest(t, http.MethodGet, env.ts.URL+"/v1/stats", nil, admin))
	assert.Equal(t, int64(2), st.Entries.TotalEntries)
	assert.Equal(t, int64(1), st.Entries.ByType["Lost"])
	assert.Equal(t, 1, st.Matches.Candidates)
	assert.Equal(t, 1, st.Matches.Pending)
}
