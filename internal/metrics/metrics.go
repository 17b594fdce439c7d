package metrics

import (
	"net/http"

	"github.com/kashguard/go-keypool/internal/config"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keypool"

// Service owns the prometheus registry exposed on /-/metrics.
// It implements key.SupplyObserver, notify.Recorder and provision.Recorder.
type Service struct {
	registry *prometheus.Registry

	provisioned   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	poolRemaining *prometheus.GaugeVec
	alerts        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New(cfg config.Server) *Service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(registry)

	s := &Service{
		registry: registry,
		provisioned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet_keys",
			Name:      "issued_total",
			Help:      "Wallet keys issued, by coin",
		}, []string{"coin"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet_keys",
			Name:      "failures_total",
			Help:      "Failed provisioning requests, by coin and reason",
		}, []string{"coin", "reason"}),
		poolRemaining: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "unassigned_master_keys",
			Help:      "Unassigned master keys observed after the last claim, by key type",
		}, []string{"key_type"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "low_supply_alerts_total",
			Help:      "Low supply alerts raised, by key type",
		}, []string{"key_type"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Side effects executed after issuing a wallet key, by effect and result",
		}, []string{"effect", "result"}),
	}

	// pre-populate the per-coin series so dashboards show zeros before the first request
	for ticker := range cfg.Coins {
		s.provisioned.WithLabelValues(ticker)
	}

	return s
}

func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Service) ObservePoolSupply(keyType string, remaining int) {
	s.poolRemaining.WithLabelValues(keyType).Set(float64(remaining))
}

func (s *Service) ObserveLowSupplyAlert(keyType string) {
	s.alerts.WithLabelValues(keyType).Inc()
}

func (s *Service) ObserveNotification(effect string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	s.notifications.WithLabelValues(effect, result).Inc()
}

// ObserveProvision counts issued wallet keys and classifies failures.
// A request whose owner notification failed still issued a key and counts as both.
func (s *Service) ObserveProvision(coin string, err error) {
	if err == nil {
		s.provisioned.WithLabelValues(coin).Inc()
		return
	}

	reason := FailureReason(err)
	if reason == ReasonNotification {
		s.provisioned.WithLabelValues(coin).Inc()
	}
	s.failures.WithLabelValues(coin, reason).Inc()
}

const (
	ReasonValidation      = "validation"
	ReasonUnsupportedCoin = "unsupported_coin"
	ReasonPoolExhausted   = "pool_exhausted"
	ReasonIndexExhausted  = "index_exhausted"
	ReasonNotification    = "notification"
	ReasonCollision       = "collision"
	ReasonInternal        = "internal"
)

// FailureReason maps a provisioning error to a low-cardinality label.
func FailureReason(err error) string {
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}
