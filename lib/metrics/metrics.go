package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/xuperchain/xregister/lib/timer"
)

const (
	Namespace = "xregister"

	SubsystemContract  = "contract"
	SubsystemCondition = "condition"
	SubsystemScope     = "scope"
	SubsystemStorage   = "storage"
	SubsystemTimer     = "timer"

	LabelOpcode    = "opcode"
	LabelStage     = "stage"
	LabelErrorCode = "code"
	LabelMode      = "mode"
	LabelResult    = "result"
	LabelCache     = "cache"
	LabelTimerMark = "mark"
)

// contract
var (
	ContractCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemContract,
			Name:      "processed_total",
			Help:      "Total number of processed contracts.",
		},
		[]string{LabelOpcode, LabelStage, LabelErrorCode})
	ContractHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemContract,
			Name:      "process_seconds",
			Help:      "Histogram of contract processing latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelOpcode})
)

// condition
var (
	ConditionCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCondition,
			Name:      "evaluated_total",
			Help:      "Total number of evaluated conditions.",
		},
		[]string{LabelResult})
	ConditionCostHistogram = prom.NewHistogram(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemCondition,
			Name:      "cost",
			Help:      "Histogram of condition evaluation cost.",
			Buckets:   prom.ExponentialBuckets(8, 2, 10),
		})
)

// scope
var (
	ScopeCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemScope,
			Name:      "finished_total",
			Help:      "Total number of finished scopes.",
		},
		[]string{LabelMode, LabelResult})
	ScopeGauge = prom.NewGaugeVec(
		prom.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemScope,
			Name:      "open",
			Help:      "Number of open scopes.",
		},
		[]string{LabelMode})
)

// storage
var (
	CacheCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemStorage,
			Name:      "cache_total",
			Help:      "Total number of storage cache lookups.",
		},
		[]string{LabelCache, LabelResult})
)

// timer
var (
	TimerHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemTimer,
			Name:      "mark_seconds",
			Help:      "Histogram of time spent between timer marks.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelTimerMark})
)

var registerOnce sync.Once

// RegisterMetrics registers every collector with the default registry.
// Calling it more than once is a no-op.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prom.MustRegister(ContractCounter)
		prom.MustRegister(ContractHistogram)
		prom.MustRegister(ConditionCounter)
		prom.MustRegister(ConditionCostHistogram)
		prom.MustRegister(ScopeCounter)
		prom.MustRegister(ScopeGauge)
		prom.MustRegister(CacheCounter)
		prom.MustRegister(TimerHistogram)
	})
}

// ObserveTimer feeds every mark of tm into TimerHistogram.
func ObserveTimer(tm *timer.XTimer) {
	if tm == nil {
		return
	}
	for _, p := range tm.Points() {
		TimerHistogram.WithLabelValues(p.Tag).Observe(p.Delta.Seconds())
	}
}

// Result renders a boolean outcome as a label value.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
