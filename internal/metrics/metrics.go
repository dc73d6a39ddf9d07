package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated prometheus.Counter
	Confirmations *prometheus.CounterVec
	SweptOrders   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jewelshop",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jewelshop",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"path"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jewelshop",
			Name:      "orders_created_total",
			Help:      "Orders created with stock reserved.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jewelshop",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmation attempts by outcome.",
		}, []string{"outcome"}),
		SweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jewelshop",
			Name:      "swept_orders_total",
			Help:      "Pending orders cancelled by the timeout sweep.",
		}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersCreated, m.Confirmations, m.SweptOrders)
	return m
}

func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.Requests.WithLabelValues(c.Path(), strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(c.Path()).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
