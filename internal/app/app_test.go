package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contentforge/studio/internal/config"
	"github.com/contentforge/studio/internal/models"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the subset of the content backend the daemon calls.
type fakeBackend struct {
	t      *testing.T
	mu     sync.Mutex
	token  string
	jobs   []models.GenerationJob
	lib    []models.SavedContent
	nextID int
	reject bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return &fakeBackend{t: t, token: tok}
}

func (f *fakeBackend) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reject := f.reject
		f.mu.Unlock()
		if reject || r.Header.Get("Authorization") != "Bearer "+f.token {
			f.writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is not valid"})
			return
		}
		next(w, r)
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "pw" {
			f.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
			return
		}
		f.writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": f.token,
			"user":  map[string]string{"id": "u1", "name": "Ada", "email": creds.Email},
		})
	})
	mux.HandleFunc("GET /api/generate-content", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writeJSON(w, http.StatusOK, f.jobs)
	}))
	mux.HandleFunc("POST /api/generate-content", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt      string             `json:"prompt"`
			ContentType models.ContentType `json:"contentType"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		id := fmt.Sprintf("J%d", f.nextID)
		f.jobs = append([]models.GenerationJob{{
			JobID: id, UserID: "u1", Prompt: body.Prompt, ContentType: body.ContentType,
			Status: models.JobQueued, CreatedAt: time.Now(),
		}}, f.jobs...)
		f.writeJSON(w, http.StatusAccepted, models.CreateJobResult{JobID: id, Status: models.JobQueued, DelaySeconds: 0})
	}))
	mux.HandleFunc("POST /api/generate-content/{jobId}/save", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, j := range f.jobs {
			if j.JobID != r.PathValue("jobId") {
				continue
			}
			title := body.Title
			if title == "" {
				title = j.Prompt
			}
			f.nextID++
			entry := models.SavedContent{ID: fmt.Sprintf("c%d", f.nextID), UserID: "u1", Title: title, Type: string(j.ContentType), Body: j.Content()}
			f.lib = append(f.lib, entry)
			f.writeJSON(w, http.StatusCreated, models.SaveJobResult{Message: "saved", Content: entry})
			return
		}
		f.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Job not found"})
	}))
	mux.HandleFunc("GET /api/content", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		search := r.URL.Query().Get("search")
		out := []models.SavedContent{}
		for _, e := range f.lib {
			if search == "" || strings.Contains(strings.ToLower(e.Title), strings.ToLower(search)) {
				out = append(out, e)
			}
		}
		f.writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("PUT /api/content/{id}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var patch models.ContentPatch
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.lib {
			if f.lib[i].ID == r.PathValue("id") {
				if patch.Title != nil {
					f.lib[i].Title = *patch.Title
				}
				if patch.Body != nil {
					f.lib[i].Body = *patch.Body
				}
				if patch.Type != nil {
					f.lib[i].Type = *patch.Type
				}
				f.writeJSON(w, http.StatusOK, f.lib[i])
				return
			}
		}
		f.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Content not found"})
	}))
	mux.HandleFunc("DELETE /api/content/{id}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.lib {
			if f.lib[i].ID == r.PathValue("id") {
				f.lib = append(f.lib[:i], f.lib[i+1:]...)
				f.writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
				return
			}
		}
		f.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Content not found"})
	}))
	return mux
}

func (f *fakeBackend) complete(jobID, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.jobs {
		if f.jobs[i].JobID == jobID {
			f.jobs[i].Status = models.JobCompleted
			f.jobs[i].GeneratedContent = models.StringPtr(body)
		}
	}
}

func newTestApp(t *testing.T, extraYAML string) (*App, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend(t)
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
env: production
backend:
  url: %s
push:
  disable: true
sync:
  refresh_interval_seconds: 0
paths:
  logs: %s
%s`, srv.URL, t.TempDir(), extraYAML)))
	require.NoError(t, err)

	a, err := New(nil, cfg)
	require.NoError(t, err)
	a.Start()
	t.Cleanup(a.Shutdown)
	return a, backend
}

func do(t *testing.T, a *App, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type viewBody struct {
	State   string `json:"state"`
	Unsaved int    `json:"unsaved"`
	Jobs    []struct {
		JobID            string  `json:"jobId"`
		Prompt           string  `json:"prompt"`
		Status           string  `json:"status"`
		GeneratedContent *string `json:"generatedContent"`
		Saved            bool    `json:"saved"`
		LibraryID        string  `json:"libraryId"`
	} `json:"jobs"`
}

func login(t *testing.T, a *App) {
	t.Helper()
	w := do(t, a, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestJobsRequireSession(t *testing.T) {
	a, _ := newTestApp(t, "")

	w := do(t, a, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"signedIn":false`)

	assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, "/api/jobs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, "/api/auth/me", "").Code)
}

func TestLoginFailureSurfacesBackendMessage(t *testing.T) {
	a, _ := newTestApp(t, "")
	w := do(t, a, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")

	w = do(t, a, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitSaveAndCascadeDelete(t *testing.T) {
	a, backend := newTestApp(t, "")
	login(t, a)

	w := do(t, a, http.MethodGet, "/api/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")

	w = do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"benefits of AI in healthcare","contentType":"Blog Post Outline"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var view viewBody
	decode(t, do(t, a, http.MethodGet, "/api/jobs", ""), &view)
	require.Len(t, view.Jobs, 1)
	assert.Equal(t, "ready", view.State)
	assert.Equal(t, "benefits of AI in healthcare", view.Jobs[0].Prompt)
	assert.Equal(t, "queued", view.Jobs[0].Status)
	jobID := view.Jobs[0].JobID

	w = do(t, a, http.MethodPost, "/api/jobs/"+jobID+"/save", `{"title":"AI"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	backend.complete(jobID, "Hello world")
	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/jobs/refresh", "").Code)

	w = do(t, a, http.MethodPost, "/api/jobs/"+jobID+"/save", `{"title":"AI in healthcare"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved models.SavedContent
	decode(t, w, &saved)

	decode(t, do(t, a, http.MethodGet, "/api/jobs", ""), &view)
	require.Len(t, view.Jobs, 1)
	assert.True(t, view.Jobs[0].Saved)
	assert.Equal(t, saved.ID, view.Jobs[0].LibraryID)
	assert.Equal(t, "AI in healthcare", view.Jobs[0].Prompt)

	w = do(t, a, http.MethodGet, "/api/jobs/"+jobID+"/preview", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>Hello world</p>")

	w = do(t, a, http.MethodGet, "/api/jobs/"+jobID+"/delete-plan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cascade":true`)

	w = do(t, a, http.MethodDelete, "/api/jobs/"+jobID, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), saved.ID)

	w = do(t, a, http.MethodDelete, "/api/jobs/"+jobID+"?confirm=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	decode(t, do(t, a, http.MethodGet, "/api/jobs", ""), &view)
	assert.Empty(t, view.Jobs)
	backend.mu.Lock()
	assert.Empty(t, backend.lib)
	backend.mu.Unlock()
}

func TestSaveAllAndLibraryRoutes(t *testing.T) {
	a, backend := newTestApp(t, "")
	login(t, a)

	for _, p := range []string{"cats", "dogs", "birds"} {
		w := do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"`+p+`","contentType":"Social Media Caption"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	backend.complete("J1", "about cats")
	backend.complete("J2", "about dogs")
	require.Equal(t, http.StatusOK, do(t, a, http.MethodPost, "/api/jobs/refresh", "").Code)

	w := do(t, a, http.MethodPost, "/api/jobs/save-all", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"saved":2`)

	w = do(t, a, http.MethodPost, "/api/jobs/save-all", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	var list struct {
		Data []models.SavedContent `json:"data"`
	}
	decode(t, do(t, a, http.MethodGet, "/api/library", ""), &list)
	require.Len(t, list.Data, 2)

	decode(t, do(t, a, http.MethodGet, "/api/library?search=dog", ""), &list)
	require.Len(t, list.Data, 1)
	dogID := list.Data[0].ID

	w = do(t, a, http.MethodPut, "/api/library/"+dogID, `{"body":"**dogs** rule"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, a, http.MethodGet, "/api/library/"+dogID+"/preview", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>dogs</strong>")

	w = do(t, a, http.MethodPut, "/api/library/"+dogID, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, do(t, a, http.MethodDelete, "/api/library/"+dogID, "").Code)
	decode(t, do(t, a, http.MethodGet, "/api/library", ""), &list)
	assert.Len(t, list.Data, 1)
}

func TestSubmitValidation(t *testing.T) {
	a, _ := newTestApp(t, "")
	login(t, a)

	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"  ","contentType":"Blog Post Outline"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"x","contentType":"Poem"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, a, http.MethodGet, "/api/jobs/nope/delete-plan", "").Code)
}

func TestBackendUnauthorizedSignsOut(t *testing.T) {
	a, backend := newTestApp(t, "")
	login(t, a)

	backend.mu.Lock()
	backend.reject = true
	backend.mu.Unlock()

	w := do(t, a, http.MethodPost, "/api/jobs/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, a.session.Token())
	assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, "/api/jobs", "").Code)
}

func TestLogoutClearsView(t *testing.T) {
	a, _ := newTestApp(t, "")
	login(t, a)
	require.Equal(t, http.StatusAccepted, do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"x","contentType":"Blog Post Outline"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, a, http.MethodPost, "/api/auth/logout", "").Code)
	assert.Equal(t, 0, a.coord.Jobs().Len())
}

func TestLibraryPaging(t *testing.T) {
	a, backend := newTestApp(t, "")
	login(t, a)
	backend.mu.Lock()
	for i := 0; i < 5; i++ {
		backend.lib = append(backend.lib, models.SavedContent{ID: fmt.Sprintf("e%d", i), Title: fmt.Sprintf("entry %d", i)})
	}
	backend.mu.Unlock()

	var paged struct {
		Data       []models.SavedContent `json:"data"`
		Pagination struct {
			Total       int  `json:"total"`
			TotalPage   int  `json:"total_page"`
			HasNextPage bool `json:"has_next_page"`
		} `json:"pagination"`
	}
	decode(t, do(t, a, http.MethodGet, "/api/library?page=2&size=2", ""), &paged)
	require.Len(t, paged.Data, 2)
	assert.Equal(t, "e2", paged.Data[0].ID)
	assert.Equal(t, 5, paged.Pagination.Total)
	assert.Equal(t, 3, paged.Pagination.TotalPage)
	assert.True(t, paged.Pagination.HasNextPage)
}

func TestCompletionNotification(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	barkSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		titles = append(titles, payload.Title+": "+payload.Body)
		mu.Unlock()
	}))
	defer barkSrv.Close()

	a, _ := newTestApp(t, fmt.Sprintf("notify:\n  bark:\n    key: dev\n    server: %s\n", barkSrv.URL))
	login(t, a)
	require.Equal(t, http.StatusAccepted, do(t, a, http.MethodPost, "/api/jobs", `{"prompt":"cats","contentType":"Blog Post Outline"}`).Code)

	ev := models.JobCompletedEvent{UserID: "u1", JobID: "J1", Status: models.JobCompleted, GeneratedContent: models.StringPtr("All about **cats**")}
	require.True(t, a.listener.Apply(ev))
	require.True(t, a.listener.Apply(ev))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(titles) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "Content ready: All about cats", titles[0])
	mu.Unlock()
}

func TestAccessTokenGuardsAPI(t *testing.T) {
	a, _ := newTestApp(t, "access_token: local-secret\n")

	assert.Equal(t, http.StatusUnauthorized, do(t, a, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, a, http.MethodGet, "/api/health?token=local-secret", "").Code)
}

func TestCronRoutes(t *testing.T) {
	a, _ := newTestApp(t, "")

	w := do(t, a, http.MethodGet, "/api/cron", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), jobPeriodicRefresh)

	w = do(t, a, http.MethodPost, "/api/cron/"+jobPeriodicRefresh+"/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"skipped"`)

	assert.Equal(t, http.StatusNotFound, do(t, a, http.MethodPost, "/api/cron/nope/run", "").Code)
}

func TestOriginMatching(t *testing.T) {
	assert.True(t, matchOriginPattern("*.example.com", "app.example.com"))
	assert.True(t, matchOriginPattern("localhost:*", "localhost:5173"))
	assert.False(t, matchOriginPattern("example.com", "evil.com"))
	assert.Equal(t, "app.example.com:8443", extractOriginHost("https://app.example.com:8443"))

	assert.True(t, isLoopbackOrigin("http://localhost:5173"))
	assert.True(t, isLoopbackOrigin("http://127.0.0.1"))
	assert.False(t, isLoopbackOrigin("https://example.com"))
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+02:00")
	require.NoError(t, err)
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7200, offset)

	loc, err = parseTimezoneLocation("-05:30")
	require.NoError(t, err)
	_, offset = time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -19800, offset)

	_, err = parseTimezoneLocation("Mars/Olympus")
	assert.Error(t, err)
	_, err = parseTimezoneLocation("+2h")
	assert.Error(t, err)
}

func TestFormatUptime(t *testing.T) {
	cases := map[time.Duration]string{
		42*time.Second + 400*time.Millisecond: "42s",
		3*time.Minute + 10*time.Second:        "3m",
		65 * time.Minute:                      "1h5m",
		50 * time.Hour:                        "2d2h",
		48*time.Hour + 10*time.Minute:         "2d",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatUptime(in), in.String())
	}
}
