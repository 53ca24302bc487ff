package metrics

import (
	"sync"
	"time"
)

// Metrics holds a snapshot of runtime counters
type Metrics struct {
	ToolCalls        map[string]int64 `json:"tool_calls"`
	ToolErrors       int64            `json:"tool_errors"`
	RPCCalls         int64            `json:"rpc_calls"`
	RPCRetries       int64            `json:"rpc_retries"`
	RPCFailures      int64            `json:"rpc_failures"`
	RPCTotalDuration time.Duration    `json:"rpc_total_duration"`
	TxCreated        int64            `json:"tx_created"`
	TxDeduplicated   int64            `json:"tx_deduplicated"`
	TxConfirmed      int64            `json:"tx_confirmed"`
	TxFailed         int64            `json:"tx_failed"`
	TxExpired        int64            `json:"tx_expired"`
	RateLimited      int64            `json:"rate_limited"`
}

// Collector accumulates counters for the tool surface, the RPC gateway
// and the pending-transaction lifecycle.
type Collector struct {
	mutex   sync.Mutex
	metrics Metrics
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics: Metrics{
			ToolCalls: make(map[string]int64),
		},
	}
}

// RecordToolCall records one invocation of the named tool
func (c *Collector) RecordToolCall(tool string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.ToolCalls[tool]++
}

// RecordToolError records a tool call that surfaced an error
func (c *Collector) RecordToolError() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.ToolErrors++
}

// RecordRPCCall records one gateway call with its duration and outcome
func (c *Collector) RecordRPCCall(duration time.Duration, success bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.RPCCalls++
	c.metrics.RPCTotalDuration += duration
	if !success {
		c.metrics.RPCFailures++
	}
}

// RecordRPCRetry records one retry attempt inside the gateway
func (c *Collector) RecordRPCRetry() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.RPCRetries++
}

// RecordTxCreated records a newly created pending transaction
func (c *Collector) RecordTxCreated() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.TxCreated++
}

// RecordTxDeduplicated records a transfer call answered by an existing record
func (c *Collector) RecordTxDeduplicated() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.TxDeduplicated++
}

// RecordTxOutcome records a terminal transition
func (c *Collector) RecordTxOutcome(status string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch status {
	case "confirmed":
		c.metrics.TxConfirmed++
	case "failed":
		c.metrics.TxFailed++
	case "expired":
		c.metrics.TxExpired++
	}
}

// RecordRateLimited records a denied request
func (c *Collector) RecordRateLimited() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.metrics.RateLimited++
}

// GetMetrics returns a copy of the current counters
func (c *Collector) GetMetrics() Metrics {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	snapshot := c.metrics
	snapshot.ToolCalls = make(map[string]int64, len(c.metrics.ToolCalls))
	for tool, count := range c.metrics.ToolCalls {
		snapshot.ToolCalls[tool] = count
	}
	return snapshot
}

// AverageRPCDuration returns the mean RPC call duration
func (c *Collector) AverageRPCDuration() time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.metrics.RPCCalls == 0 {
		return 0
	}
	return c.metrics.RPCTotalDuration / time.Duration(c.metrics.RPCCalls)
}
