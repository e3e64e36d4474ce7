package models

// LobbyInfo は公開ロビー一覧の1エントリ
type LobbyInfo struct {
	ID           string     `json:"id"`
	MsUntilStart int64      `json:"msUntilStart"`
	NumClients   int        `json:"numClients"`
	GameConfig   GameConfig `json:"gameConfig"`
}

// LobbyList は GET /lobbies で返すスナップショット
type LobbyList struct {
	Lobbies []LobbyInfo `json:"lobbies"`
}

// PlayerInfo は GET /lobby/:id のロスター要素
type PlayerInfo struct {
	Username string `json:"username"`
	ClientID string `json:"clientID"`
}
