package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveConnections 現在開いているWebSocket接続数
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Number of open websocket connections.",
		},
	)

	// RejectedMessages 破棄した受信メッセージ数
	RejectedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "ws",
			Name:      "rejected_messages_total",
			Help:      "Inbound websocket messages discarded, by reason.",
		},
		[]string{"reason"},
	)

	// Ticks ティックの実行結果
	Ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Registry tick firings, by result.",
		},
		[]string{"result"},
	)

	// PublicLobbies 直近のスナップショットに含まれる公開ロビー数
	PublicLobbies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "scheduler",
			Name:      "public_lobbies",
			Help:      "Public lobbies in the latest published snapshot.",
		},
	)

	// ArchivedRecords 受け付けたゲーム記録の処理結果
	ArchivedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "archive",
			Name:      "records_total",
			Help:      "Single player game records submitted, by result.",
		},
		[]string{"result"},
	)
)

// InitMetrics 指標を指定の登録先に登録する
func InitMetrics(registerer prometheus.Registerer) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(ActiveConnections, RejectedMessages, Ticks, PublicLobbies, ArchivedRecords)
}
