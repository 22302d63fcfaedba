package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ai"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/articles"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/db"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/ratelimit"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/token"
	"gorm.io/gorm"
)

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	tokens *token.Service
}

func newTestEnv(t *testing.T, opts func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	tokens := token.NewService(conn, config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
	})

	routerOpts := Options{
		DB:     conn,
		Tokens: tokens,
		Loader: articles.NewLoader(conn, nil),
	}
	if opts != nil {
		opts(&routerOpts)
	}
	return &testEnv{engine: New(routerOpts), db: conn, tokens: tokens}
}

func (env *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, errMarshal := json.Marshal(v)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

// signUp registers a user and returns its access and refresh tokens.
func (env *testEnv) signUp(t *testing.T, email, username string) (string, string) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"username": username,
		"name":     "Test User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	session, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("signup response missing session: %v", body)
	}
	return session["access_token"].(string), session["refresh_token"].(string)
}

func TestSignUpThenMe(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "ana@example.com", "ana")

	rec := env.do(t, http.MethodGet, "/auth/me", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["email"] != "ana@example.com" {
		t.Fatalf("me email = %v", body["email"])
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t, "dup@example.com", "first")

	rec := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "dup@example.com",
		"password": "another",
		"username": "second",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["error"] != "Email already registered" {
		t.Fatalf("duplicate signup error = %v", body["error"])
	}
}

func TestSignInWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t, "bob@example.com", "bob")

	rec := env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "bob@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("signin status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["error"] != "invalid credentials" {
		t.Fatalf("signin error = %v", body["error"])
	}
}

func TestSignInRecordsLastSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t, "carla@example.com", "carla")

	rec := env.do(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "carla@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body %s", rec.Code, rec.Body.String())
	}

	var user models.User
	if errFind := env.db.Where("email = ?", "carla@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if user.LastSignInAt == nil {
		t.Fatal("last_sign_in_at not recorded")
	}
}

func TestRefreshRotationInvalidatesOldPair(t *testing.T) {
	env := newTestEnv(t, nil)
	access, refresh := env.signUp(t, "rot@example.com", "rot")

	rec := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	session := decodeJSON(t, rec)
	newAccess := session["access_token"].(string)

	// Replaying the consumed refresh token must fail.
	if rec := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d", rec.Code)
	}
	// The superseded access token is dead.
	if rec := env.do(t, http.MethodGet, "/auth/me", access, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old access status = %d", rec.Code)
	}
	// The fresh access token works.
	if rec := env.do(t, http.MethodGet, "/auth/me", newAccess, nil); rec.Code != http.StatusOK {
		t.Fatalf("new access status = %d", rec.Code)
	}
}

func TestSignOutBlacklistsToken(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "out@example.com", "out")

	if rec := env.do(t, http.MethodPost, "/auth/signout", access, nil); rec.Code != http.StatusOK {
		t.Fatalf("signout status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/auth/me", access, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after signout status = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/cards", "/article", "/chat", "/auth/me"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token status = %d", path, rec.Code)
		}
	}
}

func TestCardOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t, nil)
	ownerAccess, _ := env.signUp(t, "owner@example.com", "owner")
	otherAccess, _ := env.signUp(t, "other@example.com", "other")

	rec := env.do(t, http.MethodPost, "/cards", ownerAccess, map[string]string{
		"front": "house",
		"back":  "casa",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("card create status = %d, body %s", rec.Code, rec.Body.String())
	}
	cardID := decodeJSON(t, rec)["id"].(string)

	// Foreign cards read as absent, never as forbidden.
	if rec := env.do(t, http.MethodGet, "/cards/"+cardID, otherAccess, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign card get status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/cards/"+cardID, otherAccess, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign card delete status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/cards", otherAccess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("card list status = %d", rec.Code)
	}
	var list []any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &list); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(list) != 0 {
		t.Fatalf("foreign card list length = %d, want 0", len(list))
	}
}

func TestCardReviewDueDateNeverRegresses(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "rev@example.com", "rev")

	rec := env.do(t, http.MethodPost, "/cards", access, map[string]any{
		"front":        "to run",
		"back":         "correr",
		"nextReviewAt": "2024-07-01T00:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("card create status = %d, body %s", rec.Code, rec.Body.String())
	}
	cardID := decodeJSON(t, rec)["id"].(string)

	// A review proposing an earlier day must not pull the due date back.
	rec = env.do(t, http.MethodPost, "/cards/"+cardID+"/review", access, map[string]any{
		"reviewAt":     "2024-06-29T10:00:00Z",
		"nextReviewAt": "2024-06-30T00:00:00Z",
		"difficult":    2,
		"appearsCount": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("review status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if !strings.HasPrefix(body["nextReviewAt"].(string), "2024-07-01") {
		t.Fatalf("due date regressed: %v", body["nextReviewAt"])
	}
	if len(body["reviews"].([]any)) != 1 {
		t.Fatalf("review history length = %d, want 1", len(body["reviews"].([]any)))
	}

	// A later day moves the due date forward.
	rec = env.do(t, http.MethodPost, "/cards/"+cardID+"/review", access, map[string]any{
		"reviewAt":     "2024-07-01T09:00:00Z",
		"nextReviewAt": "2024-07-05T00:00:00Z",
		"difficult":    1,
		"appearsCount": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second review status = %d", rec.Code)
	}
	body = decodeJSON(t, rec)
	if !strings.HasPrefix(body["nextReviewAt"].(string), "2024-07-05") {
		t.Fatalf("due date did not advance: %v", body["nextReviewAt"])
	}
	if got := body["appearsCount"].(float64); got != 2 {
		t.Fatalf("appearsCount = %v, want 2", got)
	}
}

func TestCardReviewRejectsBadDifficulty(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "diff@example.com", "diff")

	rec := env.do(t, http.MethodPost, "/cards", access, map[string]string{"front": "a", "back": "b"})
	cardID := decodeJSON(t, rec)["id"].(string)

	for _, difficulty := range []int{0, 5, -1} {
		rec := env.do(t, http.MethodPost, "/cards/"+cardID+"/review", access, map[string]any{
			"reviewAt":     "2024-07-01T00:00:00Z",
			"nextReviewAt": "2024-07-02T00:00:00Z",
			"difficult":    difficulty,
			"appearsCount": 1,
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("difficulty %d status = %d, want 400", difficulty, rec.Code)
		}
	}
}

func TestArticleVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	ownerAccess, _ := env.signUp(t, "writer@example.com", "writer")
	readerAccess, _ := env.signUp(t, "reader@example.com", "reader")

	// An authorless ingested article is visible to everyone.
	ingested := models.Article{Title: "Shared news", ContentURL: "https://example.com/shared"}
	if errCreate := env.db.Create(&ingested).Error; errCreate != nil {
		t.Fatalf("seed article: %v", errCreate)
	}
	sharedPath := fmt.Sprintf("/article/%d", ingested.ID)
	if rec := env.do(t, http.MethodGet, sharedPath, readerAccess, nil); rec.Code != http.StatusOK {
		t.Fatalf("shared article get status = %d", rec.Code)
	}
	// But only superusers may change it.
	if rec := env.do(t, http.MethodPut, sharedPath+"/update", readerAccess, map[string]string{"title": "hijacked"}); rec.Code != http.StatusForbidden {
		t.Fatalf("shared article update status = %d", rec.Code)
	}

	// An owned article reads as absent to everyone else.
	rec := env.do(t, http.MethodPost, "/article/create", ownerAccess, map[string]string{"title": "My notes"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("article create status = %d, body %s", rec.Code, rec.Body.String())
	}
	owned := decodeJSON(t, rec)
	ownedPath := fmt.Sprintf("/article/%.0f", owned["id"].(float64))
	if rec := env.do(t, http.MethodGet, ownedPath, readerAccess, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign article get status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, ownedPath, ownerAccess, nil); rec.Code != http.StatusOK {
		t.Fatalf("own article get status = %d", rec.Code)
	}
}

func TestArticleSearchFiltersTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "search@example.com", "search")

	for _, title := range []string{"Go generics explained", "Cooking with cast iron"} {
		if rec := env.do(t, http.MethodPost, "/article/create", access, map[string]string{"title": title}); rec.Code != http.StatusCreated {
			t.Fatalf("article create status = %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/article?search=generics", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("article search status = %d", rec.Code)
	}
	var list []map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &list); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(list) != 1 || list[0]["title"] != "Go generics explained" {
		t.Fatalf("search result = %v", list)
	}
}

// grantAIAccess flips the AI access flag for a registered user.
func (env *testEnv) grantAIAccess(t *testing.T, email string) {
	t.Helper()
	errUpdate := env.db.Model(&models.User{}).Where("email = ?", email).Update("has_ai_access", true).Error
	if errUpdate != nil {
		t.Fatalf("grant ai access: %v", errUpdate)
	}
}

func TestChatRequiresAIAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "noai@example.com", "noai")

	rec := env.do(t, http.MethodPost, "/chat", access, map[string]string{"title": "Travel"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("chat without ai access status = %d", rec.Code)
	}
}

func TestChatCreateSeedsTutorPrompt(t *testing.T) {
	env := newTestEnv(t, nil)
	access, _ := env.signUp(t, "chat@example.com", "chat")
	env.grantAIAccess(t, "chat@example.com")

	rec := env.do(t, http.MethodPost, "/chat", access, map[string]string{
		"title": "Ordering food",
		"theme": "restaurants",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("chat create status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)

	// The developer prompt is stored but never shown to clients.
	if visible := body["messages"].([]any); len(visible) != 0 {
		t.Fatalf("visible messages = %d, want 0", len(visible))
	}
	var seed models.ChatMessage
	errFind := env.db.Where("chat_id = ? AND role = ?", body["id"], models.RoleDeveloper).First(&seed).Error
	if errFind != nil {
		t.Fatalf("load seed message: %v", errFind)
	}
	if !strings.Contains(seed.Content, "restaurants") {
		t.Fatalf("seed prompt missing theme: %q", seed.Content)
	}
}

// newStreamUpstream serves an OpenAI-compatible SSE stream with the given
// content chunks.
func newStreamUpstream(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":     "chunk",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": chunk}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newChatEnv(t *testing.T, upstream *httptest.Server) (*testEnv, string, string) {
	t.Helper()
	env := newTestEnv(t, func(opts *Options) {
		opts.AI = ai.NewClient(config.AIConfig{
			APIKey:  "test-key",
			BaseURL: upstream.URL + "/v1",
			Model:   "gpt-4o-mini",
		})
	})
	access, _ := env.signUp(t, "stream@example.com", "stream")
	env.grantAIAccess(t, "stream@example.com")

	rec := env.do(t, http.MethodPost, "/chat", access, map[string]string{"title": "Practice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("chat create status = %d", rec.Code)
	}
	return env, access, decodeJSON(t, rec)["id"].(string)
}

func TestChatStreamPersistsBufferedReply(t *testing.T) {
	upstream := newStreamUpstream(t, []string{"Hello", ", nice", " try!"})
	defer upstream.Close()
	env, access, chatID := newChatEnv(t, upstream)

	rec := env.do(t, http.MethodPost, "/chat/"+chatID+"/message/stream", access, map[string]string{"message": "Hi teacher"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Hello, nice try!" {
		t.Fatalf("streamed body = %q", rec.Body.String())
	}

	var count int64
	env.db.Model(&models.ChatMessage{}).Where("chat_id = ? AND role <> ?", chatID, models.RoleDeveloper).Count(&count)
	if count != 2 {
		t.Fatalf("persisted messages = %d, want user + assistant", count)
	}
	var assistant models.ChatMessage
	if errFind := env.db.Where("chat_id = ? AND role = ?", chatID, models.RoleAssistant).First(&assistant).Error; errFind != nil {
		t.Fatalf("load assistant message: %v", errFind)
	}
	if assistant.Content != "Hello, nice try!" {
		t.Fatalf("assistant content = %q", assistant.Content)
	}
}

func TestChatStreamDiscardsEmptyReply(t *testing.T) {
	upstream := newStreamUpstream(t, nil)
	defer upstream.Close()
	env, access, chatID := newChatEnv(t, upstream)

	rec := env.do(t, http.MethodPost, "/chat/"+chatID+"/message/stream", access, map[string]string{"message": "Hello?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status = %d", rec.Code)
	}

	// An empty stream leaves the chat untouched: the user turn is discarded.
	var count int64
	env.db.Model(&models.ChatMessage{}).Where("chat_id = ? AND role <> ?", chatID, models.RoleDeveloper).Count(&count)
	if count != 0 {
		t.Fatalf("persisted messages = %d, want 0", count)
	}
}

func TestSignInRateLimited(t *testing.T) {
	env := newTestEnv(t, func(opts *Options) {
		opts.Limiter = ratelimit.NewMemoryLimiter()
		opts.RateLimit = 2
	})
	env.signUp(t, "limited@example.com", "limited")

	body := map[string]string{"email": "limited@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/auth/signin", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodPost, "/auth/signin", "", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited attempt status = %d, want 429", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["message"] != "Hi, I'm Aingles Backend" {
		t.Fatalf("root message = %v", body["message"])
	}

	if rec := env.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}
