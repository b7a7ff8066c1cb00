package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SystemMetrics периодический снимок рантайма процесса
type SystemMetrics interface {
	Record()
	StartRecording(interval time.Duration)
	Stop()
}

type systemMetrics struct {
	log         *logger.Logger
	goroutines  prometheus.Gauge
	heapAlloc   prometheus.Gauge
	sysBytes    prometheus.Gauge
	gcCycles    prometheus.Counter
	lastNumGC   uint32
	stopCh      chan struct{}
	stopOnce    sync.Once
	recordMutex sync.Mutex
}

// NewSystemMetrics создает системные метрики с префиксом процесса (server, sweeper)
func NewSystemMetrics(registry *prometheus.Registry, process string, log *logger.Logger) SystemMetrics {
	factory := promauto.With(registry)
	labels := prometheus.Labels{"process": process}

	return &systemMetrics{
		log: log,
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "system_goroutines",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
		heapAlloc: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "system_memory_alloc_bytes",
			Help:        "Currently allocated heap memory in bytes",
			ConstLabels: labels,
		}),
		sysBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "system_memory_system_bytes",
			Help:        "Total memory obtained from system in bytes",
			ConstLabels: labels,
		}),
		gcCycles: factory.NewCounter(prometheus.CounterOpts{
			Name:        "system_gc_cycles_total",
			Help:        "Completed garbage collection cycles",
			ConstLabels: labels,
		}),
		stopCh: make(chan struct{}),
	}
}

// Record снимает значения один раз
func (m *systemMetrics) Record() {
	m.recordMutex.Lock()
	defer m.recordMutex.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.heapAlloc.Set(float64(memStats.HeapAlloc))
	m.sysBytes.Set(float64(memStats.Sys))

	// NumGC накопительный, в счётчик добавляем только прирост
	if memStats.NumGC > m.lastNumGC {
		m.gcCycles.Add(float64(memStats.NumGC - m.lastNumGC))
		m.lastNumGC = memStats.NumGC
	}
}

// StartRecording начинает запись метрик с заданным интервалом
func (m *systemMetrics) StartRecording(interval time.Duration) {
	m.Record()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Record()
			case <-m.stopCh:
				return
			}
		}
	}()
	m.log.Infow("System metrics recording started", "interval", interval.String())
}

// Stop останавливает запись метрик; повторный вызов безопасен
func (m *systemMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.log.Infow("System metrics recording stopped")
	})
}
