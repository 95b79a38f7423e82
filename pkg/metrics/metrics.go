// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集应用和系统指标.
//
// Example:
//
//	import "github.com/yeisme/photovault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/photos", "200").Inc()
//	metrics.StorageOperations.WithLabelValues("minio", "upload", "success").Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/photovault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// InFlightRequests 正在处理的请求数.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)

	// PhotoTransitions 照片状态迁移计数.
	PhotoTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_photo_transitions_total",
			Help: "Photo status transitions",
		},
		[]string{"from", "to"},
	)

	// SagaDuration 单次处理流程耗时.
	SagaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photovault_saga_duration_seconds",
			Help:    "Processing saga run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// StorageOperations 对象存储操作计数.
	StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_storage_operations_total",
			Help: "Storage operations by backend, operation and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	// BreakerState 熔断器状态：0 关闭，1 半开，2 打开.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photovault_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// EventsPublished 事件发布计数.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_events_published_total",
			Help: "Published events by provider, topic and outcome",
		},
		[]string{"provider", "topic", "outcome"},
	)

	// QueueItems 回退队列处理结果计数.
	QueueItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photovault_queue_items_total",
			Help: "Fallback queue items by outcome",
		},
		[]string{"outcome"},
	)

	// WorkerPool 工作池状态.
	WorkerPool = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photovault_worker_pool",
			Help: "Worker pool workers and queued tasks",
		},
		[]string{"state"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	registerOnce sync.Once
)

// InitMetrics 注册运行时与业务指标，metrics.labels 作为常量标签附加到业务指标上.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration, InFlightRequests,
			PhotoTransitions, SagaDuration, StorageOperations, BreakerState,
			EventsPublished, QueueItems, WorkerPool,
		} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// StartMetricsServer 启动Metrics HTTP服务器.
func StartMetricsServer(config configs.MetricsConfig, debugEngine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	// 默认注册表自带 Go 运行时与进程指标，gorm 插件也注册在那里
	var gatherer prometheus.Gatherer = registry
	if config.RuntimeMetrics {
		gatherer = prometheus.Gatherers{registry, prometheus.DefaultGatherer}
	}

	debugEngine.GET(path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		debugEngine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}
