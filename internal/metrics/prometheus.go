package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "study_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"route"},
	)

	DocumentsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "study_documents_uploaded_total",
			Help: "Total documents uploaded",
		},
	)

	MaterialsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_materials_generated_total",
			Help: "Total study material items generated",
		},
		[]string{"kind", "status"},
	)

	ReviewsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_reviews_recorded_total",
			Help: "Total review outcomes recorded",
		},
		[]string{"item_type", "result"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_sessions_started_total",
			Help: "Total study sessions started",
		},
		[]string{"kind"},
	)

	QuestionsAsked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_questions_asked_total",
			Help: "Total chat questions processed",
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "study_retrieval_results_count",
			Help:    "Number of chunks retrieved per question",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DocumentsUploaded)
	prometheus.MustRegister(MaterialsGenerated)
	prometheus.MustRegister(ReviewsRecorded)
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(QuestionsAsked)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RequestTimer records per-route request duration. Registered routes report
// their pattern (e.g. /api/v1/flashcards/:id/review), unmatched paths fall
// under "unmatched" to keep the label set bounded.
func RequestTimer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		if route == "" || (route == "/" && c.Path() != "/") {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		return err
	}
}
