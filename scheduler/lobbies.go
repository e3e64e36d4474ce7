package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"gateserver/game"
	"gateserver/metrics"
	"gateserver/models"
)

var emptyLobbyList = []byte(`{"lobbies":[]}`)

// LobbyDirectory は公開ロビー一覧のシリアライズ済みスナップショットを保持する。
// 書き込みは丸ごと差し替えなので読み手はロック不要
type LobbyDirectory struct {
	snapshot atomic.Pointer[[]byte]
	now      func() time.Time
}

func NewLobbyDirectory() *LobbyDirectory {
	d := &LobbyDirectory{now: time.Now}
	d.snapshot.Store(&emptyLobbyList)
	return d
}

// Lobbies は最新のスナップショットを返す。呼び出し側は変更してはならない
func (d *LobbyDirectory) Lobbies() []byte {
	return *d.snapshot.Load()
}

// Refresh はロビー段階の公開セッションを開始が近い順に並べて公開する
func (d *LobbyDirectory) Refresh(registry game.Registry) error {
	games, err := registry.GamesByPhase(game.PhaseLobby)
	if err != nil {
		return fmt.Errorf("query lobby games: %w", err)
	}

	now := d.now()
	list := models.LobbyList{Lobbies: make([]models.LobbyInfo, 0, len(games))}
	for _, g := range games {
		if !g.IsPublic || g.Phase != game.PhaseLobby {
			continue
		}
		list.Lobbies = append(list.Lobbies, models.LobbyInfo{
			ID:           g.ID,
			MsUntilStart: g.StartTime.Sub(now).Milliseconds(),
			NumClients:   g.NumClients(),
			GameConfig:   g.Config,
		})
	}
	sort.SliceStable(list.Lobbies, func(i, j int) bool {
		return list.Lobbies[i].MsUntilStart < list.Lobbies[j].MsUntilStart
	})

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode lobby list: %w", err)
	}
	d.snapshot.Store(&data)
	metrics.PublicLobbies.Set(float64(len(list.Lobbies)))
	return nil
}
