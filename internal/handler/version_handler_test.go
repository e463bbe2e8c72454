package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cvkit/cvault/internal/handler"
	"github.com/cvkit/cvault/internal/memstore"
	"github.com/cvkit/cvault/internal/model"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
	"github.com/cvkit/cvault/internal/pkg/jwt"
	"github.com/cvkit/cvault/internal/service"
)

var testSecret = []byte("test-secret")

func setupRouter(t *testing.T) (*gin.Engine, *memstore.Store, *service.DocumentService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memstore.New()
	versions := service.NewVersionService(store, store, 64, time.Minute)
	documents := service.NewDocumentService(store)

	engine := gin.New()
	api := engine.Group("/api/v1")
	handler.RegisterRoutes(api, handler.RouterDeps{
		Documents: handler.NewDocumentHandler(documents),
		Versions:  handler.NewVersionHandler(versions),
		JWTSecret: testSecret,
	})
	return engine, store, documents
}

func authHeader(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(engine *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCreateVersionRequiresAuth(t *testing.T) {
	engine, store, documents := setupRouter(t)
	doc, err := documents.Create(context.Background(), "user-1", service.DocumentInput{Title: "cv"})
	require.NoError(t, err)

	doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/versions", "", `{"change_type":"manual"}`)

	// the middleware must have stopped the request before the service ran
	_, err = store.LatestMainline(context.Background(), doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCreateVersionThroughRouter(t *testing.T) {
	engine, store, documents := setupRouter(t)
	doc, err := documents.Create(context.Background(), "user-1", service.DocumentInput{Title: "cv"})
	require.NoError(t, err)

	w := doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/versions",
		authHeader(t, "user-1"), `{"change_type":"manual","label":"first"}`)
	require.Equal(t, http.StatusOK, w.Code)

	latest, err := store.LatestMainline(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, 1, latest.VersionNumber)
	require.Equal(t, "first", latest.Label)
	require.Equal(t, model.ChangeTypeManual, latest.ChangeType)
}

func TestRestoreThroughRouter(t *testing.T) {
	engine, store, documents := setupRouter(t)
	ctx := context.Background()
	doc, err := documents.Create(ctx, "user-1", service.DocumentInput{Title: "original title"})
	require.NoError(t, err)

	auth := authHeader(t, "user-1")
	w := doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/versions", auth, `{"change_type":"manual"}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = documents.Update(ctx, "user-1", doc.ID, service.DocumentInput{Title: "changed title"})
	require.NoError(t, err)

	w = doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/versions/1/restore", auth, "")
	require.Equal(t, http.StatusOK, w.Code)

	live, err := store.Load(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "original title", live.Title)

	// restore committed the pre-restore state as version 2
	preRestore, err := store.Get(ctx, doc.ID, 2)
	require.NoError(t, err)
	require.Equal(t, model.ChangeTypeRestore, preRestore.ChangeType)
	require.Equal(t, "changed title", preRestore.Snapshot.Title)
}

func TestBranchAndListThroughRouter(t *testing.T) {
	engine, store, documents := setupRouter(t)
	ctx := context.Background()
	doc, err := documents.Create(ctx, "user-1", service.DocumentInput{Title: "cv"})
	require.NoError(t, err)

	auth := authHeader(t, "user-1")
	w := doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/versions", auth, `{"change_type":"manual"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/v1/documents/"+doc.ID+"/branches", auth, `{"branch_name":"variant"}`)
	require.Equal(t, http.StatusOK, w.Code)

	branches, err := store.ListBranches(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	require.Equal(t, "variant", branches[0].BranchName)
	require.Equal(t, 2, branches[0].VersionNumber)

	w = doRequest(engine, http.MethodGet, "/api/v1/documents/"+doc.ID+"/versions?page=1&limit=10", auth, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodGet, "/api/v1/documents/"+doc.ID+"/compare?from=1&to=1", auth, "")
	require.Equal(t, http.StatusOK, w.Code)
}
