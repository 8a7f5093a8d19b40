package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(telegramMessagesTotal) }

var telegramMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telegram_messages_total",
		Help: "Outbound Bot API calls by method and status.",
	},
	[]string{"method", "status"}, // method 'sendmessage'|'sendphoto', status 'ok'|'failed'
)

func IncTelegramMessage(method string, ok bool) {
	status := "failed"
	if ok {
		status = "ok"
	}
	telegramMessagesTotal.WithLabelValues(norm(method), status).Inc()
}
