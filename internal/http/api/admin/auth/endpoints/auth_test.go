package endpoints

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant-labs/growpod/internal/db"
	"github.com/verdant-labs/growpod/internal/http/api"
	"github.com/verdant-labs/growpod/internal/model"
)

const testSecret = "test-secret"

type userStore struct {
	db.Store
	mu    sync.Mutex
	users map[int]*model.User
	next  int
}

func newUserStore() *userStore {
	return &userStore{users: make(map[int]*model.User)}
}

func (s *userStore) CreateUser(email, hashedPassword string, name *string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.users[s.next] = &model.User{
		ID:             s.next,
		Email:          email,
		HashedPassword: hashedPassword,
		Name:           name,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return s.next, nil
}

func (s *userStore) GetUserByEmail(email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStore) GetUserByID(id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *userStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newUserStore()

	router := gin.New()
	api.MountGroup(router, api.GroupConfig{Prefix: "/api/admin"},
		AuthPublicModule(testSecret, store),
	)
	api.MountGroup(router, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: testSecret,
		Store:     store,
	},
		AuthSessionModule(testSecret, store),
	)
	return router, store
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSignupAndLogin(t *testing.T) {
	router, _ := newAuthRouter(t)

	creds := map[string]any{"email": "grower@example.com", "password": "correct horse"}

	w := postJSON(t, router, "/api/admin/auth/signup", creds, "")
	require.Equal(t, http.StatusOK, w.Code)

	var signup map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signup))
	assert.NotEmpty(t, signup["token"])

	t.Run("duplicate email conflicts", func(t *testing.T) {
		w := postJSON(t, router, "/api/admin/auth/signup", creds, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login with right password", func(t *testing.T) {
		w := postJSON(t, router, "/api/admin/auth/login", creds, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		w := postJSON(t, router, "/api/admin/auth/login",
			map[string]any{"email": "grower@example.com", "password": "wrong"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCurrentProfileRequiresToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/api/admin/auth/signup",
		map[string]any{"email": "grower@example.com", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var signup map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signup))

	t.Run("without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/current_profile", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/current_profile", nil)
		req.Header.Set("Authorization", "Bearer "+signup["token"])
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "grower@example.com")
	})
}
