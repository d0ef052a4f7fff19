package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchan/rchan-web/config"
	"github.com/rchan/rchan-web/controllers"
	"github.com/rchan/rchan-web/middleware"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

const csrfID = "csrf-test-id"

// fakeBackend answers the r-chan endpoints the public, login and moderation pages call.
type fakeBackend struct {
	t    *testing.T
	role string
	// failCreate makes post and reply creation answer 500.
	failCreate bool

	mu      sync.Mutex
	created []map[string]any
	calls   map[string]int
}

func (b *fakeBackend) hit(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = map[string]int{}
	}
	b.calls[name]++
}

func (b *fakeBackend) Calls(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) blob(r *http.Request, field string) map[string]any {
	require.NoError(b.t, r.ParseMultipartForm(1<<20))
	files := r.MultipartForm.File[field]
	require.Len(b.t, files, 1)
	f, err := files[0].Open()
	require.NoError(b.t, err)
	defer f.Close()
	raw, err := io.ReadAll(f)
	require.NoError(b.t, err)
	out := map[string]any{}
	require.NoError(b.t, json.Unmarshal(raw, &out))
	return out
}

func (b *fakeBackend) token() string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "root",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("backend"))
	require.NoError(b.t, err)
	return tok
}

const (
	threadJSON  = `{"id":"p1","title":"Hola mundo","content":"primer post","approvalStatus":"APPROVED","replyCount":2}`
	repliesJSON = `[{"id":"r1","postId":"p1","content":"uno","approvalStatus":"APPROVED"},{"id":"r2","postId":"p1","content":"dos","approvalStatus":"PENDING"}]`
)

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/post":
		_, _ = io.WriteString(w, `{"content":[{"id":"p1","title":"Hola mundo","content":"primer post","approvalStatus":"APPROVED","section":{"sectionType":"GENERAL"}}],"last":true}`)
	case r.Method == http.MethodPost && (r.URL.Path == "/api/post" || r.URL.Path == "/api/repost"):
		if b.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		created := b.blob(r, "postData")
		b.mu.Lock()
		b.created = append(b.created, created)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"p9","title":"nuevo","approvalStatus":"PENDING"}`)
	case r.URL.Path == "/api/post/id" && r.URL.Query().Get("id") == "p1":
		_, _ = io.WriteString(w, threadJSON)
	case r.URL.Path == "/api/repost/post/id" && r.URL.Query().Get("id") == "p1":
		_, _ = io.WriteString(w, `[]`)
	case r.URL.Path == "/api/post/id" || r.URL.Path == "/api/repost/post/id":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Post not found"}`)
	case r.URL.Path == "/api/section":
		_, _ = io.WriteString(w, `[{"id":"s1","sectionEnumType":"GENERAL","displayName":"General","postCount":3}]`)
	case r.Method == http.MethodGet && r.URL.Path == "/moderator/api/post":
		b.hit("ModeratorListPosts")
		// the backend keeps reporting two replies; only the board's own patch lowers it
		_, _ = io.WriteString(w, `{"content":[`+threadJSON+`],"last":true}`)
	case r.Method == http.MethodGet && r.URL.Path == "/moderator/api/repost":
		b.hit("ModeratorListReposts")
		_, _ = io.WriteString(w, `{"content":`+repliesJSON+`,"last":true}`)
	case r.Method == http.MethodGet && r.URL.Path == "/moderator/api/repost/post/p1":
		b.hit("ModeratorListRepostsByPost")
		_, _ = io.WriteString(w, `{"content":`+repliesJSON+`,"last":true}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/moderator/api/repost":
		b.hit("ModeratorDeleteRepost")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/api/login":
		creds := b.blob(r, "sendData")
		if creds["username"] != "root" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Credenciales inválidas"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":    b.token(),
			"username": "root",
			"userId":   "u1",
			"role":     b.role,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

type app struct {
	env     *controllers.Env
	store   *session.MemoryStore
	backend *fakeBackend
	handler http.Handler
}

func newApp(t *testing.T) *app {
	t.Helper()
	backend := &fakeBackend{t: t, role: "MODERATOR"}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	env := &controllers.Env{
		Config: config.AppConfig{
			APIBaseURL:         srv.URL,
			APITimeoutSec:      5,
			GinMode:            "test",
			RateLimitPerMinute: 1000,
			SectionCacheTTLSec: 60,
			AllowedOrigins:     []string{"*"},
		},
		Signer: utils.NewSigner("test-secret"),
		States: utils.NewStateTokens("test-secret", time.Minute),
		Cache:  utils.NewCache(nil, "test:"),
		Nonces: utils.NewFormNonces(nil, time.Minute),
		Guard:  utils.NewLoginGuard(nil, 5, time.Minute),
		Boards: services.NewBoards(0),
	}
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, time.Hour, utils.NewTokenRevoker(nil))
	r, err := SetupRouter(env, sessions)
	require.NoError(t, err)
	return &app{env: env, store: store, backend: backend, handler: r}
}

func (a *app) get(target, sid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: csrfID})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sid})
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

// post submits a form carrying a valid CSRF token unless withCSRF is false.
func (a *app) post(target, sid string, form url.Values, withCSRF bool) *httptest.ResponseRecorder {
	return a.postFrom(target, "", sid, form, withCSRF)
}

// postFrom is post with the Referer of the page holding the form.
func (a *app) postFrom(target, referer, sid string, form url.Values, withCSRF bool) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if withCSRF {
		form.Set(middleware.CSRFField, a.env.Signer.CSRFToken(csrfID))
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: csrfID})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sid})
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

// login signs in as root and returns the session id.
func (a *app) login(t *testing.T) string {
	t.Helper()
	w := a.post("/administrator/login", "", url.Values{"username": {"root"}, "password": {"secret"}}, true)
	require.Equal(t, http.StatusSeeOther, w.Code)
	sid, ok := cookieValue(w, middleware.SessionCookie)
	require.True(t, ok)
	return sid
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	w := a.get("/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHomeListsPosts(t *testing.T) {
	a := newApp(t)
	w := a.get("/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hola mundo")
	assert.Contains(t, w.Body.String(), `name="nonce"`)
}

func TestCreatePostRedirectsWithFlash(t *testing.T) {
	a := newApp(t)
	nonce := a.env.Nonces.Issue(t.Context())
	w := a.post("/post", "", url.Values{
		"title":       {"nuevo"},
		"content":     {"contenido"},
		"sectionType": {"general"},
		"nonce":       {nonce},
	}, true)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?section=GENERAL", w.Header().Get("Location"))
	require.Len(t, a.backend.created, 1)
	assert.Equal(t, "GENERAL", a.backend.created[0]["sectionType"])

	sid, ok := cookieValue(w, middleware.SessionCookie)
	require.True(t, ok)
	page := a.get("/", sid)
	assert.Contains(t, page.Body.String(), "Post enviado a revisión")

	// the same nonce cannot create a second post
	again := a.post("/post", sid, url.Values{
		"title":       {"nuevo"},
		"content":     {"contenido"},
		"sectionType": {"GENERAL"},
		"nonce":       {nonce},
	}, true)
	assert.Equal(t, http.StatusSeeOther, again.Code)
	assert.Len(t, a.backend.created, 1)
}

func TestCreatePostValidationRerendersForm(t *testing.T) {
	a := newApp(t)
	w := a.post("/post", "", url.Values{
		"title":       {""},
		"content":     {"contenido"},
		"sectionType": {"GENERAL"},
		"nonce":       {a.env.Nonces.Issue(t.Context())},
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "contenido")
	assert.Empty(t, a.backend.created)
}

func TestPostWithoutCSRFIsRejected(t *testing.T) {
	a := newApp(t)
	w := a.post("/post", "", url.Values{"title": {"x"}, "content": {"y"}, "sectionType": {"GENERAL"}}, false)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, a.backend.created)
}

func TestThreadNotFound(t *testing.T) {
	a := newApp(t)
	w := a.get("/thread/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Post no encontrado")
}

func TestUnknownRoutes(t *testing.T) {
	a := newApp(t)

	w := a.get("/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Página no encontrada")

	w = a.get("/api/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":40400`)
}

func TestSectionsAPI(t *testing.T) {
	a := newApp(t)
	w := a.get("/api/sections", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"displayName":"General"`)
}

func TestAdminAreaRequiresLogin(t *testing.T) {
	a := newApp(t)
	w := a.get("/administrator", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, middleware.LoginPath, w.Header().Get("Location"))
}

func TestLoginRenewsSessionAndGatesAdminPages(t *testing.T) {
	a := newApp(t)

	bad := a.post("/administrator/login", "", url.Values{"username": {"root"}, "password": {"wrong"}}, true)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Contains(t, bad.Body.String(), "Credenciales inválidas")

	// a session id planted before login must not survive it
	const before = "planted"
	planted := &session.Session{ID: before}
	planted.AddFlash(session.FlashWarning, "hola")
	require.NoError(t, a.store.Save(t.Context(), planted, time.Hour))

	good := a.post("/administrator/login", before, url.Values{"username": {"root"}, "password": {"secret"}}, true)
	require.Equal(t, http.StatusSeeOther, good.Code)
	assert.Equal(t, middleware.DashboardPath, good.Header().Get("Location"))
	after, ok := cookieValue(good, middleware.SessionCookie)
	require.True(t, ok)
	assert.NotEqual(t, before, after)

	_, err := a.store.Load(t.Context(), before)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// moderators are kept out of user management
	w := a.get("/administrator/users", after)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, middleware.DashboardPath, w.Header().Get("Location"))

	// the login page sends signed-in visitors to the dashboard
	w = a.get("/administrator/login", after)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	out := a.post("/administrator/logout", after, nil, true)
	assert.Equal(t, http.StatusSeeOther, out.Code)
	assert.Equal(t, middleware.LoginPath, out.Header().Get("Location"))
	w = a.get("/administrator", after)
	assert.Equal(t, middleware.LoginPath, w.Header().Get("Location"))
}

func TestLoginRequiresBothFields(t *testing.T) {
	a := newApp(t)
	w := a.post("/administrator/login", "", url.Values{"username": {"root"}}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Usuario y contraseña son obligatorios")
}

func TestResetFlowRejectsForgedState(t *testing.T) {
	a := newApp(t)
	w := a.get("/forgot-password/verify?state=forged", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/forgot-password", w.Header().Get("Location"))

	w = a.get("/forgot-password/reset", "")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/forgot-password", w.Header().Get("Location"))
}

func TestThemeCookie(t *testing.T) {
	a := newApp(t)

	w := a.post("/theme", "", url.Values{"dark": {"false"}}, true)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	v, ok := cookieValue(w, middleware.ThemeCookie)
	require.True(t, ok)
	assert.Equal(t, "false", v)

	w = a.post("/theme", "", url.Values{"dark": {"false"}}, false)
	_, ok = cookieValue(w, middleware.ThemeCookie)
	assert.False(t, ok)
}

func TestFailedPostClearsForm(t *testing.T) {
	a := newApp(t)
	a.backend.failCreate = true
	w := a.post("/post", "", url.Values{
		"title":       {"titulo-que-no-vuelve"},
		"content":     {"contenido-que-no-vuelve"},
		"sectionType": {"GENERAL"},
		"nonce":       {a.env.Nonces.Issue(t.Context())},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Error: boom")
	assert.NotContains(t, body, "titulo-que-no-vuelve")
	assert.NotContains(t, body, "contenido-que-no-vuelve")
}

func TestFailedReplyClearsForm(t *testing.T) {
	a := newApp(t)
	a.backend.failCreate = true
	w := a.post("/thread/p1/repost", "", url.Values{
		"content": {"respuesta-que-no-vuelve"},
		"nonce":   {a.env.Nonces.Issue(t.Context())},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Error al publicar: boom")
	assert.NotContains(t, body, "respuesta-que-no-vuelve")
}

func TestReplyDeleteKeepsBoardWithoutRefetch(t *testing.T) {
	a := newApp(t)
	sid := a.login(t)

	page := "/administrator/all-posts?tab=posts&filter=ALL&expand=p1"
	w := a.get(page, sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2 respuestas")
	require.Equal(t, 1, a.backend.Calls("ModeratorListPosts"))

	del := a.postFrom("/administrator/all-posts/repost/r1/delete", "http://example.com"+page, sid,
		url.Values{"postId": {"p1"}}, true)
	require.Equal(t, http.StatusSeeOther, del.Code)
	assert.Equal(t, 1, a.backend.Calls("ModeratorDeleteRepost"))
	next := del.Header().Get("Location")
	assert.Contains(t, next, "keep=1")
	assert.Contains(t, next, "expand=p1")

	w = a.get(next, sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, a.backend.Calls("ModeratorListPosts"))
	assert.Equal(t, 1, a.backend.Calls("ModeratorListRepostsByPost"))
	assert.Contains(t, w.Body.String(), "1 respuestas")
	assert.NotContains(t, w.Body.String(), "2 respuestas")

	// an explicit refresh goes back to the backend
	w = a.get("/administrator/all-posts?tab=posts&filter=ALL", sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, a.backend.Calls("ModeratorListPosts"))
}
