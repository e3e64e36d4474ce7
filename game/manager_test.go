package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"gateserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		var env struct {
			Type string `json:"type"`
		}
		json.Unmarshal(m, &env)
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// waitTypes は書き込みゴルーチンが追いつくのを待ってから受信したメッセージの種類を比べる
func (f *fakeConn) waitTypes(t *testing.T, want ...string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, f.types())
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, f.types())
}

// stalledConn は閉じられるまで書き込みが返らない接続
type stalledConn struct {
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	closed  bool
}

func newStalledConn() *stalledConn {
	return &stalledConn{release: make(chan struct{})}
}

func (s *stalledConn) WriteMessage(int, []byte) error {
	<-s.release
	return models.ErrClientClosed
}

func (s *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (s *stalledConn) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.release) })
	return nil
}

func (s *stalledConn) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(settings models.GameSettings) (*GameManager, *testClock) {
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	gm := NewGameManager(settings, zap.NewNop())
	gm.now = clock.Now
	return gm, clock
}

func defaultSettings() models.GameSettings {
	return models.GameSettings{
		TickInterval:     time.Second,
		LobbyInterval:    100 * time.Millisecond,
		LobbyLifetime:    time.Minute,
		MaxTurns:         100,
		EmptyGameTimeout: 30 * time.Second,
	}
}

func TestCreatePrivateGame_ExistsBeforeAnyJoin(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())

	assert.False(t, gm.HasActiveGame("nope"))

	id := gm.CreatePrivateGame()
	assert.Len(t, id, 8)
	assert.True(t, gm.HasActiveGame(id))

	info, ok := gm.Game(id)
	require.True(t, ok)
	assert.Equal(t, PhaseLobby, info.Phase)
	assert.False(t, info.IsPublic)
	assert.Empty(t, info.Clients)
	assert.Equal(t, models.GameTypePrivate, info.Config.GameType)
}

func TestUpdateGameConfig(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()

	gameMap := "Europe"
	bots := true
	require.NoError(t, gm.UpdateGameConfig(id, models.GameConfigUpdate{GameMap: &gameMap, DisableBots: &bots}))

	info, _ := gm.Game(id)
	assert.Equal(t, "Europe", info.Config.GameMap)
	assert.True(t, info.Config.DisableBots)
	assert.Equal(t, "Medium", info.Config.Difficulty)

	assert.ErrorIs(t, gm.UpdateGameConfig("missing", models.GameConfigUpdate{}), ErrGameNotFound)

	require.NoError(t, gm.StartPrivateGame(id))
	assert.ErrorIs(t, gm.UpdateGameConfig(id, models.GameConfigUpdate{GameMap: &gameMap}), ErrGameNotInLobby)
}

func TestStartPrivateGame(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()

	conn := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("c1", "p1", "1.2.3.4", "alice", conn), id, 0))

	require.NoError(t, gm.StartPrivateGame(id))
	conn.waitTypes(t, "start")

	assert.ErrorIs(t, gm.StartPrivateGame(id), ErrGameNotInLobby)
	assert.ErrorIs(t, gm.StartPrivateGame("missing"), ErrGameNotFound)
}

func TestStartPrivateGame_RejectsPublicLobby(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	require.NoError(t, gm.Tick())

	lobbies, err := gm.GamesByPhase(PhaseLobby)
	require.NoError(t, err)
	require.Len(t, lobbies, 1)
	assert.ErrorIs(t, gm.StartPrivateGame(lobbies[0].ID), ErrGameNotPrivate)
}

func TestTick_KeepsOnePublicLobbyAndStartsItOnTime(t *testing.T) {
	gm, clock := newTestManager(defaultSettings())

	require.NoError(t, gm.Tick())
	lobbies, _ := gm.GamesByPhase(PhaseLobby)
	require.Len(t, lobbies, 1)
	first := lobbies[0]
	assert.True(t, first.IsPublic)
	assert.Equal(t, clock.now.Add(time.Minute), first.StartTime)

	conn := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("c1", "p1", "ip", "alice", conn), first.ID, 0))

	clock.Advance(time.Minute)
	require.NoError(t, gm.Tick())

	info, ok := gm.Game(first.ID)
	require.True(t, ok)
	assert.Equal(t, PhaseActive, info.Phase)
	conn.waitTypes(t, "start")

	// 新しい公開ロビーが作られている
	lobbies, _ = gm.GamesByPhase(PhaseLobby)
	require.Len(t, lobbies, 1)
	assert.NotEqual(t, first.ID, lobbies[0].ID)

	require.NoError(t, gm.Tick())
	info, _ = gm.Game(first.ID)
	assert.Equal(t, 1, info.Turn)
	conn.waitTypes(t, "start", "turn")
}

func TestAddClient_ReplaysMissedTurns(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()
	host := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("host", "ph", "ip", "host", host), id, 0))
	require.NoError(t, gm.StartPrivateGame(id))
	for i := 0; i < 5; i++ {
		require.NoError(t, gm.Tick())
	}

	rejoin := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("late", "pl", "ip", "late", rejoin), id, 3))
	rejoin.waitTypes(t, "start", "turn", "turn")

	info, _ := gm.Game(id)
	assert.Len(t, info.Clients, 2)
}

func TestAddClient_ReconnectReplacesConnection(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()

	oldConn := &fakeConn{}
	oldClient := models.NewClient("c1", "p1", "ip", "alice", oldConn)
	require.NoError(t, gm.AddClient(oldClient, id, 0))

	newClient := models.NewClient("c1", "p1", "ip", "alice", &fakeConn{})
	require.NoError(t, gm.AddClient(newClient, id, 0))
	assert.True(t, oldConn.isClosed())

	// 古い接続の切断で新しい接続が外れてはならない
	gm.RemoveClient(id, oldClient)
	info, _ := gm.Game(id)
	assert.Len(t, info.Clients, 1)

	gm.RemoveClient(id, newClient)
	info, _ = gm.Game(id)
	assert.Empty(t, info.Clients)
}

func TestAddClient_UnknownGame(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	err := gm.AddClient(models.NewClient("c1", "p1", "ip", "alice", &fakeConn{}), "missing", 0)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestTick_EndsGameAtMaxTurns(t *testing.T) {
	settings := defaultSettings()
	settings.MaxTurns = 2
	gm, _ := newTestManager(settings)
	id := gm.CreatePrivateGame()
	conn := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("c1", "p1", "ip", "alice", conn), id, 0))
	require.NoError(t, gm.StartPrivateGame(id))

	require.NoError(t, gm.Tick())
	require.NoError(t, gm.Tick())

	assert.False(t, gm.HasActiveGame(id))
	conn.waitTypes(t, "start", "turn", "turn", "end")
	assert.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
}

func TestDeliver_StalledClientDoesNotBlockOtherGames(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())

	slowGame := gm.CreatePrivateGame()
	stalled := newStalledConn()
	t.Cleanup(func() { stalled.Close() })
	require.NoError(t, gm.AddClient(models.NewClient("slow", "ps", "ip", "slow", stalled), slowGame, 0))

	fastGame := gm.CreatePrivateGame()
	conn := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("fast", "pf", "ip", "fast", conn), fastGame, 0))

	begin := time.Now()
	require.NoError(t, gm.StartPrivateGame(slowGame))
	require.NoError(t, gm.StartPrivateGame(fastGame))
	require.NoError(t, gm.Tick())
	require.NoError(t, gm.Tick())
	assert.Less(t, time.Since(begin), 200*time.Millisecond)

	conn.waitTypes(t, "start", "turn", "turn")
	info, _ := gm.Game(slowGame)
	assert.Equal(t, 2, info.Turn)
}

func TestDeliver_FullQueueClosesAndRemovesClient(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()

	stalled := newStalledConn()
	slow := models.NewClient("slow", "ps", "ip", "slow", stalled)
	require.NoError(t, gm.AddClient(slow, id, 0))
	conn := &fakeConn{}
	require.NoError(t, gm.AddClient(models.NewClient("fast", "pf", "ip", "fast", conn), id, 0))
	require.NoError(t, gm.StartPrivateGame(id))

	for i := 0; i < 70; i++ {
		require.NoError(t, gm.Tick())
	}

	assert.True(t, stalled.isClosed())
	info, ok := gm.Game(id)
	require.True(t, ok)
	require.Len(t, info.Clients, 1)
	assert.Equal(t, "fast", info.Clients[0].ClientID)
	assert.Eventually(t, func() bool { return len(conn.types()) == 71 }, time.Second, 5*time.Millisecond)
}

func TestTick_EndsEmptyGame(t *testing.T) {
	gm, clock := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()
	require.NoError(t, gm.StartPrivateGame(id))

	clock.Advance(10 * time.Second)
	require.NoError(t, gm.Tick())
	assert.True(t, gm.HasActiveGame(id))

	clock.Advance(30 * time.Second)
	require.NoError(t, gm.Tick())
	assert.False(t, gm.HasActiveGame(id))
}

func TestGamesByPhase(t *testing.T) {
	gm, _ := newTestManager(defaultSettings())
	a := gm.CreatePrivateGame()
	b := gm.CreatePrivateGame()
	require.NoError(t, gm.StartPrivateGame(b))

	lobbies, err := gm.GamesByPhase(PhaseLobby)
	require.NoError(t, err)
	require.Len(t, lobbies, 1)
	assert.Equal(t, a, lobbies[0].ID)

	active, err := gm.GamesByPhase(PhaseActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b, active[0].ID)
}

func TestUpdateGameConfig_PublishingPrivateLobbySchedulesStart(t *testing.T) {
	gm, clock := newTestManager(defaultSettings())
	id := gm.CreatePrivateGame()

	public := true
	require.NoError(t, gm.UpdateGameConfig(id, models.GameConfigUpdate{IsPublic: &public}))
	info, _ := gm.Game(id)
	assert.True(t, info.IsPublic)
	assert.Equal(t, clock.now.Add(time.Minute), info.StartTime)

	private := false
	require.NoError(t, gm.UpdateGameConfig(id, models.GameConfigUpdate{IsPublic: &private}))
	info, _ = gm.Game(id)
	assert.False(t, info.IsPublic)
	assert.True(t, info.StartTime.IsZero())
}
