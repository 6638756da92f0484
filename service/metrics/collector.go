package metrics

import (
	"sync"

	"PLedger/module/seq"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pledger"

var (
	nextDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "seq", "next_to_issue"),
		"Next sequence number the allocator will hand out.",
		[]string{"account"}, nil,
	)
	observedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "seq", "last_observed_committed"),
		"Last committed sequence number read from the ledger.",
		[]string{"account"}, nil,
	)
	inFlightDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "seq", "in_flight"),
		"Issued sequence numbers not yet observed committed.",
		[]string{"account"}, nil,
	)
	resyncDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "seq", "forced_resyncs_total"),
		"Forced resynchronizations with the ledger.",
		[]string{"account"}, nil,
	)
)

// AllocatorCollector reads allocator stats at scrape time.
type AllocatorCollector struct {
	mu     sync.RWMutex
	allocs map[string]*seq.Allocator
}

func NewAllocatorCollector() *AllocatorCollector {
	return &AllocatorCollector{allocs: make(map[string]*seq.Allocator)}
}

// Track adds a, replacing any allocator already tracked for the same account.
func (c *AllocatorCollector) Track(a *seq.Allocator) {
	c.mu.Lock()
	c.allocs[a.Address()] = a
	c.mu.Unlock()
}

func (c *AllocatorCollector) Untrack(address string) {
	c.mu.Lock()
	delete(c.allocs, address)
	c.mu.Unlock()
}

func (c *AllocatorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- nextDesc
	ch <- observedDesc
	ch <- inFlightDesc
	ch <- resyncDesc
}

func (c *AllocatorCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for addr, a := range c.allocs {
		st := a.Stats()
		if !st.Ready {
			continue
		}
		ch <- prometheus.MustNewConstMetric(nextDesc, prometheus.GaugeValue, float64(st.NextToIssue), addr)
		ch <- prometheus.MustNewConstMetric(observedDesc, prometheus.GaugeValue, float64(st.LastObserved), addr)
		ch <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(st.InFlight), addr)
		ch <- prometheus.MustNewConstMetric(resyncDesc, prometheus.CounterValue, float64(st.Resyncs), addr)
	}
}
