package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/playback"
	"github.com/stwalsh4118/cadence/internal/source"
)

// testEnv wires every handler against a temporary database
type testEnv struct {
	router  *gin.Engine
	repos   *db.Repositories
	manager *playback.Manager
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "api.db"),
		EnableWAL: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB))

	repos := db.NewRepositories(database)
	provider := source.NewProvider(source.NewRepositoryCatalog(repos), config.SourceConfig{
		ManifestPollInterval: time.Second,
		LiveEdgeOffset:       6 * time.Second,
	})
	channelService := channel.NewChannelService(repos, provider)
	playlistService := channel.NewPlaylistService(database, repos, provider)
	manager := playback.NewManager(provider, channelService, config.QueueConfig{
		MaxBufferAhead: 100,
		TickInterval:   50 * time.Millisecond,
		UpdateBuffer:   16,
	})
	t.Cleanup(manager.StopAll)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, manager)
	SetupMediaRoutes(apiGroup, repos, playlistService)
	SetupChannelRoutes(apiGroup, channelService, playlistService)
	SetupAdBreakRoutes(apiGroup, playlistService)
	SetupSessionRoutes(apiGroup, manager)

	return &testEnv{router: router, repos: repos, manager: manager}
}

// do sends a JSON request and returns the recorded response
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// idResponse decodes the id of a created resource
type idResponse struct {
	ID string `json:"id"`
}

func (e *testEnv) createChannel(t *testing.T, name string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/channels", CreateChannelRequest{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idResponse](t, w).ID
}

func (e *testEnv) createMedia(t *testing.T, path string, durationUs int64) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/media", CreateMediaRequest{
		FilePath:   path,
		Title:      filepath.Base(path),
		DurationUs: durationUs,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idResponse](t, w).ID
}

func (e *testEnv) appendItem(t *testing.T, channelID, mediaID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/channels/"+channelID+"/playlist", AddToPlaylistRequest{MediaID: mediaID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idResponse](t, w).ID
}
