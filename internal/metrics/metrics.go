package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeNoMatch  = "no_match"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
	OutcomeCached   = "cached"
	OutcomeLocked   = "locked"
	OutcomeLimited  = "rate_limited"
)

var (
	searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studybot_searches_total",
		Help: "Searches by mode and outcome",
	}, []string{"mode", "outcome"})

	searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studybot_search_duration_seconds",
		Help:    "End to end search latency including link shortening and page publishing",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"mode"})

	externalCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studybot_external_calls_total",
		Help: "Calls to external services by service and outcome",
	}, []string{"service", "outcome"})

	payments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studybot_payments_total",
		Help: "Payment gate events",
	}, []string{"event"})

	updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studybot_updates_total",
		Help: "Telegram updates by kind",
	}, []string{"kind"})

	catalogSizeDesc = prometheus.NewDesc(
		"studybot_catalog_items",
		"Number of catalog items currently loaded",
		nil, nil,
	)
	shortLinksDesc = prometheus.NewDesc(
		"studybot_short_links_cached",
		"Number of shortened links held in memory",
		nil, nil,
	)
	chatsDesc = prometheus.NewDesc(
		"studybot_known_chats",
		"Number of chats that talked to the bot",
		nil, nil,
	)
)

// State is read on every scrape.
type State interface {
	Count() int
	ShortLinkCount() int
}

// ChatCounter reports the number of known chats.
type ChatCounter interface {
	CountChats(ctx context.Context) (int64, error)
}

// StateCollector exports catalog and chat gauges computed at scrape time.
type StateCollector struct {
	state State
	chats ChatCounter
}

// Describe sends the metric descriptors to the channel.
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- catalogSizeDesc
	ch <- shortLinksDesc
	ch <- chatsDesc
}

// Collect emits the current gauges. A failing chat count is skipped.
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	if c.state != nil {
		ch <- prometheus.MustNewConstMetric(catalogSizeDesc, prometheus.GaugeValue, float64(c.state.Count()))
		ch <- prometheus.MustNewConstMetric(shortLinksDesc, prometheus.GaugeValue, float64(c.state.ShortLinkCount()))
	}
	if c.chats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := c.chats.CountChats(ctx); err == nil {
			ch <- prometheus.MustNewConstMetric(chatsDesc, prometheus.GaugeValue, float64(n))
		}
	}
}

var initOnce sync.Once

// Init registers every collector on reg. Must be called once at startup.
func Init(reg prometheus.Registerer, state State, chats ChatCounter) {
	initOnce.Do(func() {
		reg.MustRegister(searches, searchDuration, externalCalls, payments, updates)
		reg.MustRegister(&StateCollector{state: state, chats: chats})
	})
}

// RecordSearch counts one search.
func RecordSearch(mode, outcome string, elapsed time.Duration) {
	searches.WithLabelValues(mode, outcome).Inc()
	searchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// RecordExternal counts one call to service.
func RecordExternal(service, outcome string) {
	externalCalls.WithLabelValues(service, outcome).Inc()
}

// RecordPayment counts one payment gate event (order_created, confirmed, ...).
func RecordPayment(event string) {
	payments.WithLabelValues(event).Inc()
}

// RecordUpdate counts one Telegram update.
func RecordUpdate(kind string) {
	updates.WithLabelValues(kind).Inc()
}
