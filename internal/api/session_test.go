package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// periodView is the JSON form of a media period id
type periodView struct {
	PeriodUID            string `json:"period_uid"`
	WindowSequenceNumber int64  `json:"window_sequence_number"`
	Type                 string `json:"type"`
}

// sessionView decodes the parts of a session state the tests look at
type sessionView struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channel_id"`
	RepeatMode string `json:"repeat_mode"`
	Shuffle    bool   `json:"shuffle"`
	Windows    int    `json:"windows"`
	Pending    bool   `json:"pending"`
	Ended      bool   `json:"ended"`
	Sequence   int64  `json:"timeline_sequence"`
	Holders    []struct {
		Info struct {
			ID periodView `json:"id"`
		} `json:"info"`
		Playing       bool `json:"playing"`
		Reading       bool `json:"reading"`
		Loading       bool `json:"loading"`
		FullyBuffered bool `json:"fully_buffered"`
	} `json:"holders"`
}

func (v sessionView) periodUIDs() []string {
	uids := make([]string, len(v.Holders))
	for i, h := range v.Holders {
		uids[i] = h.Info.ID.PeriodUID
	}
	return uids
}

type tickView struct {
	Enqueued []periodView `json:"enqueued"`
	Pending  bool         `json:"pending"`
	Ended    bool         `json:"ended"`
}

type periodResponseView struct {
	PeriodID *periodView `json:"period_id"`
}

func (e *testEnv) getSession(t *testing.T, id string) sessionView {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[sessionView](t, w)
}

func TestSessionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	channelID := env.createChannel(t, "Session")
	first := env.appendItem(t, channelID, env.createMedia(t, "/media/a.mp4", 10_000_000))
	second := env.appendItem(t, channelID, env.createMedia(t, "/media/b.mp4", 20_000_000))

	w := env.do(t, http.MethodPost, "/api/channels/"+channelID+"/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[sessionView](t, w)
	assert.Equal(t, channelID, created.ChannelID)
	assert.Equal(t, 2, created.Windows)
	assert.Equal(t, []string{first}, created.periodUIDs())
	sessionID := created.ID
	base := "/api/sessions/" + sessionID

	w = env.do(t, http.MethodPost, base+"/loaded", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, first, decode[periodResponseView](t, w).PeriodID.PeriodUID)

	w = env.do(t, http.MethodPost, base+"/tick", TickRequest{RendererPositionUs: 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tick := decode[tickView](t, w)
	require.Len(t, tick.Enqueued, 1)
	assert.Equal(t, second, tick.Enqueued[0].PeriodUID)
	assert.Equal(t, "content", tick.Enqueued[0].Type)
	assert.True(t, tick.Ended)

	w = env.do(t, http.MethodPost, base+"/advance", AdvanceRequest{Target: "reading"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, second, decode[periodResponseView](t, w).PeriodID.PeriodUID)

	w = env.do(t, http.MethodPost, base+"/advance", AdvanceRequest{Target: "reading"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, base+"/advance", AdvanceRequest{Target: "playing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, second, decode[periodResponseView](t, w).PeriodID.PeriodUID)

	w = env.do(t, http.MethodPost, base+"/advance", AdvanceRequest{Target: "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	state := env.getSession(t, sessionID)
	assert.Equal(t, []string{second}, state.periodUIDs())
	assert.True(t, state.Holders[0].Playing)
	assert.True(t, state.Holders[0].Reading)

	w = env.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Sessions []sessionView `json:"sessions"`
	}](t, w).Sessions, 1)

	w = env.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", decode[ErrorResponse](t, w).Error)
}

func TestSessionModeAndSeek(t *testing.T) {
	env := setupTestEnv(t)
	channelID := env.createChannel(t, "Modes")
	env.appendItem(t, channelID, env.createMedia(t, "/media/a.mp4", 10_000_000))
	last := env.appendItem(t, channelID, env.createMedia(t, "/media/b.mp4", 10_000_000))

	w := env.do(t, http.MethodPost, "/api/channels/"+channelID+"/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/sessions/" + decode[sessionView](t, w).ID

	mode := "all"
	shuffle := true
	w = env.do(t, http.MethodPut, base+"/mode", ModeRequest{RepeatMode: &mode, Shuffle: &shuffle})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		State sessionView `json:"state"`
	}](t, w)
	assert.Equal(t, "all", resp.State.RepeatMode)
	assert.True(t, resp.State.Shuffle)

	bogus := "twice"
	w = env.do(t, http.MethodPut, base+"/mode", ModeRequest{RepeatMode: &bogus})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_repeat_mode", decode[ErrorResponse](t, w).Error)

	position := int64(3_000_000)
	w = env.do(t, http.MethodPost, base+"/seek", SeekRequest{WindowIndex: 1, PositionUs: &position})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, last, decode[periodResponseView](t, w).PeriodID.PeriodUID)

	w = env.do(t, http.MethodPost, base+"/seek", SeekRequest{WindowIndex: 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_window", decode[ErrorResponse](t, w).Error)
}

func TestSessionFollowsPlaylistChanges(t *testing.T) {
	env := setupTestEnv(t)
	channelID := env.createChannel(t, "Live edits")
	first := env.appendItem(t, channelID, env.createMedia(t, "/media/a.mp4", 10_000_000))
	second := env.appendItem(t, channelID, env.createMedia(t, "/media/b.mp4", 10_000_000))

	w := env.do(t, http.MethodPost, "/api/channels/"+channelID+"/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decode[sessionView](t, w).ID

	w = env.do(t, http.MethodDelete, "/api/channels/"+channelID+"/playlist/"+first, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		state := env.getSession(t, sessionID)
		return state.Windows == 1 && len(state.Holders) == 1 && state.Holders[0].Info.ID.PeriodUID == second
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionErrors(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantError  string
	}{
		{"unknown channel", http.MethodPost, "/api/channels/" + uuid.NewString() + "/sessions", http.StatusNotFound, "channel_not_found"},
		{"invalid session id", http.MethodGet, "/api/sessions/xyz", http.StatusBadRequest, "invalid_id"},
		{"unknown session", http.MethodPost, "/api/sessions/" + uuid.NewString() + "/loaded", http.StatusNotFound, "session_not_found"},
		{"stop unknown session", http.MethodDelete, "/api/sessions/" + uuid.NewString(), http.StatusNotFound, "session_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantError, decode[ErrorResponse](t, w).Error)
		})
	}

	t.Run("empty channel session is pending", func(t *testing.T) {
		channelID := env.createChannel(t, "Empty")
		w := env.do(t, http.MethodPost, "/api/channels/"+channelID+"/sessions", nil)
		require.Equal(t, http.StatusCreated, w.Code)
		state := decode[sessionView](t, w)
		assert.True(t, state.Pending)
		assert.Empty(t, state.Holders)

		w = env.do(t, http.MethodPost, "/api/sessions/"+state.ID+"/loaded", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
