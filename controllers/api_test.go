package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/config"
	"klik-api/database"
	"klik-api/middleware"
	"klik-api/models"
	"klik-api/realtime"
	"klik-api/routes"
	"klik-api/services"
	"klik-api/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mailbox struct {
	mu   sync.Mutex
	sent []string
}

func (m *mailbox) add(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
}

func (m *mailbox) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type testAPI struct {
	t      *testing.T
	db     *gorm.DB
	cfg    *config.Config
	router *gin.Engine
	store  *storage.MemoryStore
	hub    *realtime.Hub
	email  *services.EmailService
	mail   *mailbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Initialize("sqlite", "file:"+name+"?mode=memory&cache=shared", "silent")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		JWTSecret:   "test-secret",
		JWTTTLHours: 1,
		AppURL:      "https://klik.test",
		FromEmail:   "noreply@klik.test",
		FromName:    "Klik",
		CORSOrigins: []string{"*"},
	}

	mail := &mailbox{}
	email := services.NewEmailServiceWithSender(cfg, gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		var b strings.Builder
		msg.WriteTo(&b)
		mail.add(strings.NewReplacer("=\r\n", "", "=3D", "=").Replace(b.String()))
		return nil
	}))

	api := &testAPI{
		t:     t,
		db:    db,
		cfg:   cfg,
		store: storage.NewMemoryStore("http://media.test/posts"),
		hub:   realtime.NewHub(32),
		email: email,
		mail:  mail,
	}
	api.router = routes.NewRouter(routes.Deps{
		DB:     db,
		Config: cfg,
		Email:  email,
		Store:  api.store,
		Hub:    api.hub,
		Cache:  cache.New(time.Minute, time.Minute),
	})
	return api
}

// user creates a verified account with password "secret1" and returns a token for it.
func (api *testAPI) user(id, username string) string {
	api.t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	profile := models.Profile{
		ID:            id,
		Username:      username,
		DisplayName:   strings.ToUpper(username[:1]) + username[1:],
		Email:         username + "@example.com",
		Password:      string(hash),
		EmailVerified: true,
		Role:          models.RoleUser,
	}
	if err := api.db.Create(&profile).Error; err != nil {
		api.t.Fatalf("failed to create user %s: %v", username, err)
	}
	settings := models.DefaultUserSettings(id)
	if err := api.db.Create(&settings).Error; err != nil {
		api.t.Fatalf("failed to create settings for %s: %v", username, err)
	}

	token, err := middleware.IssueToken(api.cfg.JWTSecret, id, profile.Email, time.Hour)
	if err != nil {
		api.t.Fatal(err)
	}
	return token
}

func (api *testAPI) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	api.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			api.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func (api *testAPI) multipart(path, token string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	api.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "image.png")
		if err != nil {
			api.t.Fatal(err)
		}
		fw.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %s: %v", w.Body.String(), err)
	}
	return v
}

func (api *testAPI) count(model interface{}, query string, args ...interface{}) int64 {
	api.t.Helper()
	var n int64
	if err := api.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		api.t.Fatal(err)
	}
	return n
}
