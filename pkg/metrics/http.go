package metrics

// HTTP request metrics, adapted from github.com/zsais/go-gin-prometheus:
// the push gateway and the embedded listener are gone; the metrics endpoint
// is served by whoever owns the listen address.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url"},
}

var reqSz = &Metric{
	ID:          "reqSz",
	Name:        "req_sz_bytes",
	Description: "The HTTP request sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url"},
}

// URLLabelFn controls the cardinality of the "url" label. The default uses
// the matched route template and falls back to "unmatched".
type URLLabelFn func(c *gin.Context) string

type HTTPMetrics struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec
	urlLabel     URLLabelFn
	skipPaths    map[string]struct{}
}

func NewHTTPMetrics(urlLabel URLLabelFn, skipPaths ...string) *HTTPMetrics {
	if urlLabel == nil {
		urlLabel = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		}
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &HTTPMetrics{
		reqCnt:    mustRegister(reqCnt).(*prometheus.CounterVec),
		reqDur:    mustRegister(reqDur).(*prometheus.HistogramVec),
		reqSz:     mustRegister(reqSz).(*prometheus.SummaryVec),
		resSz:     mustRegister(resSz).(*prometheus.SummaryVec),
		urlLabel:  urlLabel,
		skipPaths: skip,
	}
}

// HandlerFunc defines handler function for middleware
func (p *HTTPMetrics) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := p.skipPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		reqBytes := computeApproximateRequestSize(c.Request)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.urlLabel(c)

		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(reqBytes))
		p.resSz.WithLabelValues(status, c.Request.Method, url).Observe(float64(c.Writer.Size()))
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// computeApproximateRequestSize estimates the wire size of r's head plus
// its declared body length.
func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}
	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)
	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
