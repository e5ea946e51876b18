package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики бота бронирования столов
var (
	// Запросы к backend API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskapi_requests_total",
			Help: "Количество запросов к backend API по операциям и статусам",
		},
		[]string{"operation", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskapi_request_duration_seconds",
			Help:    "Время выполнения запросов к backend API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Входящие обновления Telegram
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_bot_updates_total",
			Help: "Количество обработанных обновлений Telegram по типам",
		},
		[]string{"kind"},
	)

	UpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telegram_bot_update_duration_seconds",
			Help:    "Время обработки обновления в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telegram_bot_sessions",
			Help: "Количество пользовательских сессий в памяти",
		},
	)

	// Бронирования
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_bookings_total",
			Help: "Попытки бронирования по слотам и результатам",
		},
		[]string{"slot", "result"},
	)

	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desk_stale_responses_total",
			Help: "Ответы со списком столов, отброшенные как устаревшие",
		},
	)

	// Исходящие сообщения
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_bot_messages_sent_total",
			Help: "Количество отправленных запросов к Telegram по результатам",
		},
		[]string{"status"},
	)
)
