package channel

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/models"
)

func setupPlaylistTest(t *testing.T) (*PlaylistService, *db.Repositories, *recordingNotifier) {
	database, repos := openTestDB(t)
	notifier := &recordingNotifier{}
	return NewPlaylistService(database, repos, notifier), repos, notifier
}

func createTestChannel(t *testing.T, repos *db.Repositories, name string) *models.Channel {
	t.Helper()
	channel := models.NewChannel(name, models.RepeatModeOff, false, 0)
	require.NoError(t, repos.Channels.Create(context.Background(), channel))
	return channel
}

func createTestMedia(t *testing.T, repos *db.Repositories, path string, durationUs int64) *models.Media {
	t.Helper()
	media := models.NewMedia(path, path, durationUs)
	require.NoError(t, repos.Media.Create(context.Background(), media))
	return media
}

func positions(t *testing.T, repos *db.Repositories, channelID uuid.UUID) map[uuid.UUID]int {
	t.Helper()
	items, err := repos.PlaylistItems.GetByChannelID(context.Background(), channelID)
	require.NoError(t, err)
	out := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		out[item.ID] = item.Position
	}
	return out
}

func TestAddToPlaylist_ShiftsLaterItems(t *testing.T) {
	service, repos, notifier := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Shift")
	a := createTestMedia(t, repos, "/media/a.mp4", 10_000_000)
	b := createTestMedia(t, repos, "/media/b.mp4", 20_000_000)

	first, err := service.AddToPlaylist(ctx, channel.ID, a.ID, 0)
	require.NoError(t, err)
	second, err := service.AddToPlaylist(ctx, channel.ID, b.ID, 0)
	require.NoError(t, err)

	got := positions(t, repos, channel.ID)
	assert.Equal(t, 0, got[second.ID])
	assert.Equal(t, 1, got[first.ID])
	assert.Equal(t, []uuid.UUID{channel.ID, channel.ID}, notifier.calls())
}

func TestAppendToPlaylist(t *testing.T) {
	service, repos, _ := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Append")
	media := createTestMedia(t, repos, "/media/a.mp4", 10_000_000)

	for want := range 3 {
		item, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
		require.NoError(t, err)
		assert.Equal(t, want, item.Position)
	}
}

func TestAddToPlaylist_Errors(t *testing.T) {
	tests := []struct {
		name     string
		channel  func(c *models.Channel) uuid.UUID
		media    func(m *models.Media) uuid.UUID
		position int
		check    func(error) bool
	}{
		{
			name:     "channel not found",
			channel:  func(*models.Channel) uuid.UUID { return uuid.New() },
			media:    func(m *models.Media) uuid.UUID { return m.ID },
			position: 0,
			check:    IsChannelNotFound,
		},
		{
			name:     "media not found",
			channel:  func(c *models.Channel) uuid.UUID { return c.ID },
			media:    func(*models.Media) uuid.UUID { return uuid.New() },
			position: 0,
			check:    IsMediaNotFound,
		},
		{
			name:     "negative position",
			channel:  func(c *models.Channel) uuid.UUID { return c.ID },
			media:    func(m *models.Media) uuid.UUID { return m.ID },
			position: -1,
			check:    IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repos, notifier := setupPlaylistTest(t)
			channel := createTestChannel(t, repos, "Errors")
			media := createTestMedia(t, repos, "/media/a.mp4", 1)

			_, err := service.AddToPlaylist(context.Background(), tt.channel(channel), tt.media(media), tt.position)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, notifier.calls())
		})
	}
}

func TestBulkAddToPlaylist(t *testing.T) {
	service, repos, notifier := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Bulk")
	a := createTestMedia(t, repos, "/media/a.mp4", 1)
	b := createTestMedia(t, repos, "/media/b.mp4", 1)

	items, err := service.BulkAddToPlaylist(ctx, channel.ID, []BulkAddItem{
		{MediaID: a.ID, Position: 0},
		{MediaID: b.ID, Position: 1},
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Len(t, notifier.calls(), 1)

	_, err = service.BulkAddToPlaylist(ctx, channel.ID, []BulkAddItem{{MediaID: uuid.New(), Position: 2}})
	assert.True(t, IsMediaNotFound(err))

	_, err = service.BulkAddToPlaylist(ctx, channel.ID, []BulkAddItem{{MediaID: a.ID, Position: -1}})
	assert.True(t, IsValidationError(err))

	_, err = service.BulkAddToPlaylist(ctx, uuid.New(), []BulkAddItem{{MediaID: a.ID, Position: 0}})
	assert.True(t, IsChannelNotFound(err))
	assert.Len(t, notifier.calls(), 1)
}

func TestRemoveFromPlaylist_ShiftsDown(t *testing.T) {
	service, repos, notifier := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Remove")
	media := createTestMedia(t, repos, "/media/a.mp4", 1)

	var items []*models.PlaylistItem
	for range 3 {
		item, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
		require.NoError(t, err)
		items = append(items, item)
	}

	require.NoError(t, service.RemoveFromPlaylist(ctx, items[0].ID))

	got := positions(t, repos, channel.ID)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, got[items[1].ID])
	assert.Equal(t, 1, got[items[2].ID])
	assert.Len(t, notifier.calls(), 4)

	err := service.RemoveFromPlaylist(ctx, items[0].ID)
	assert.True(t, IsPlaylistItemNotFound(err))
}

func TestBulkRemoveFromPlaylist_Renumbers(t *testing.T) {
	service, repos, _ := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "BulkRemove")
	media := createTestMedia(t, repos, "/media/a.mp4", 1)

	var items []*models.PlaylistItem
	for range 4 {
		item, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
		require.NoError(t, err)
		items = append(items, item)
	}

	require.NoError(t, service.BulkRemoveFromPlaylist(ctx, channel.ID, []uuid.UUID{items[0].ID, items[2].ID}))

	got := positions(t, repos, channel.ID)
	assert.Equal(t, map[uuid.UUID]int{items[1].ID: 0, items[3].ID: 1}, got)
}

func TestReorderPlaylist(t *testing.T) {
	service, repos, _ := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Reorder")
	other := createTestChannel(t, repos, "Other")
	media := createTestMedia(t, repos, "/media/a.mp4", 1)

	a, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
	require.NoError(t, err)
	b, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
	require.NoError(t, err)
	foreign, err := service.AppendToPlaylist(ctx, other.ID, media.ID)
	require.NoError(t, err)

	require.NoError(t, service.ReorderPlaylist(ctx, channel.ID, []db.ReorderItem{
		{ID: a.ID, Position: 1},
		{ID: b.ID, Position: 0},
	}))
	assert.Equal(t, map[uuid.UUID]int{a.ID: 1, b.ID: 0}, positions(t, repos, channel.ID))

	err = service.ReorderPlaylist(ctx, channel.ID, []db.ReorderItem{{ID: foreign.ID, Position: 0}})
	assert.True(t, IsPlaylistItemNotFound(err))

	err = service.ReorderPlaylist(ctx, channel.ID, []db.ReorderItem{{ID: uuid.New(), Position: 0}})
	assert.True(t, IsPlaylistItemNotFound(err))
}

func TestGetPlaylist(t *testing.T) {
	service, repos, _ := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Get")
	media := createTestMedia(t, repos, "/media/a.mp4", 5_000_000)
	item, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
	require.NoError(t, err)
	_, err = service.AddAdBreak(ctx, item.ID, models.NewAdBreak(item.ID, 1_000_000))
	require.NoError(t, err)

	items, err := service.GetPlaylist(ctx, channel.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Media)
	assert.Len(t, items[0].AdBreaks, 1)

	_, err = service.GetPlaylist(ctx, uuid.New())
	assert.True(t, IsChannelNotFound(err))
}

func TestCalculateDuration(t *testing.T) {
	service, _, _ := setupPlaylistTest(t)

	tests := []struct {
		name         string
		items        []*models.PlaylistItem
		wantTotal    int64
		wantComplete bool
	}{
		{"empty", nil, 0, true},
		{
			name: "files only",
			items: []*models.PlaylistItem{
				{Media: models.NewMedia("/a.mp4", "a", 10_000_000)},
				{Media: models.NewMedia("/b.mp4", "b", 5_000_000)},
			},
			wantTotal:    15_000_000,
			wantComplete: true,
		},
		{
			name: "live item makes total a lower bound",
			items: []*models.PlaylistItem{
				{Media: models.NewMedia("/a.mp4", "a", 10_000_000)},
				{Media: models.NewMedia("/live/index.m3u8", "live", 0)},
			},
			wantTotal:    10_000_000,
			wantComplete: false,
		},
		{
			name:         "missing media",
			items:        []*models.PlaylistItem{{}},
			wantTotal:    0,
			wantComplete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, complete := service.CalculateDuration(tt.items)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantComplete, complete)
		})
	}
}

func TestDeleteMedia_NotifiesReferencingChannels(t *testing.T) {
	service, repos, notifier := setupPlaylistTest(t)
	ctx := context.Background()

	first := createTestChannel(t, repos, "First")
	second := createTestChannel(t, repos, "Second")
	unrelated := createTestChannel(t, repos, "Unrelated")
	shared := createTestMedia(t, repos, "/media/shared.mp4", 1)
	other := createTestMedia(t, repos, "/media/other.mp4", 1)

	for _, ch := range []*models.Channel{first, second} {
		_, err := service.AppendToPlaylist(ctx, ch.ID, shared.ID)
		require.NoError(t, err)
	}
	_, err := service.AppendToPlaylist(ctx, unrelated.ID, other.ID)
	require.NoError(t, err)
	before := len(notifier.calls())

	require.NoError(t, service.DeleteMedia(ctx, shared.ID))

	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, notifier.calls()[before:])
	items, err := repos.PlaylistItems.GetByChannelID(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = service.DeleteMedia(ctx, shared.ID)
	assert.True(t, IsMediaNotFound(err))
}

func TestUpdateMedia_NotifiesReferencingChannels(t *testing.T) {
	service, repos, notifier := setupPlaylistTest(t)
	ctx := context.Background()

	channel := createTestChannel(t, repos, "Update")
	media := createTestMedia(t, repos, "/media/a.mp4", 1)
	_, err := service.AppendToPlaylist(ctx, channel.ID, media.ID)
	require.NoError(t, err)
	before := len(notifier.calls())

	media.DurationUs = 30_000_000
	require.NoError(t, service.UpdateMedia(ctx, media))
	assert.Equal(t, []uuid.UUID{channel.ID}, notifier.calls()[before:])

	got, err := repos.Media.GetByID(ctx, media.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000), got.DurationUs)
}
