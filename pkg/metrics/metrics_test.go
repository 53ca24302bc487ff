package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	collector := NewCollector()

	t.Run("InitialState", func(t *testing.T) {
		metrics := collector.GetMetrics()
		assert.Empty(t, metrics.ToolCalls)
		assert.Equal(t, int64(0), metrics.RPCCalls)
		assert.Equal(t, int64(0), metrics.TxCreated)
		assert.Equal(t, int64(0), metrics.RateLimited)
	})

	t.Run("ToolCalls", func(t *testing.T) {
		collector.RecordToolCall("get_balance")
		collector.RecordToolCall("get_balance")
		collector.RecordToolCall("transfer_sol")
		collector.RecordToolError()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.ToolCalls["get_balance"])
		assert.Equal(t, int64(1), metrics.ToolCalls["transfer_sol"])
		assert.Equal(t, int64(1), metrics.ToolErrors)
	})

	t.Run("RPCMetrics", func(t *testing.T) {
		duration := 50 * time.Millisecond
		collector.RecordRPCCall(duration, true)
		collector.RecordRPCCall(duration*3, false)
		collector.RecordRPCRetry()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.RPCCalls)
		assert.Equal(t, int64(1), metrics.RPCFailures)
		assert.Equal(t, int64(1), metrics.RPCRetries)
		assert.Equal(t, duration*2, collector.AverageRPCDuration())
	})

	t.Run("TransactionLifecycle", func(t *testing.T) {
		collector.RecordTxCreated()
		collector.RecordTxDeduplicated()
		collector.RecordTxOutcome("confirmed")
		collector.RecordTxOutcome("failed")
		collector.RecordTxOutcome("expired")

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(1), metrics.TxCreated)
		assert.Equal(t, int64(1), metrics.TxDeduplicated)
		assert.Equal(t, int64(1), metrics.TxConfirmed)
		assert.Equal(t, int64(1), metrics.TxFailed)
		assert.Equal(t, int64(1), metrics.TxExpired)
	})

	t.Run("SnapshotIsACopy", func(t *testing.T) {
		metrics := collector.GetMetrics()
		metrics.ToolCalls["get_balance"] = 999

		assert.NotEqual(t, int64(999), collector.GetMetrics().ToolCalls["get_balance"])
	})
}
