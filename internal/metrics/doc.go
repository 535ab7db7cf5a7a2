// Package metrics provides Prometheus instrumentation for vidqueue.
//
// Metrics are registered with the default registry through promauto and are
// prefixed with "vidqueue_". The daemon mounts promhttp.Handler() on /metrics.
//
// Queue metrics track accepted and finished jobs, the pending depth, whether a
// job is running, and end-to-end job duration. Pipeline metrics record per-tier
// encode time and artifact store handoffs. The registry gauge reports how many
// snapshots are held in memory between retention sweeps.
//
// Example PromQL:
//
//	sum(rate(vidqueue_jobs_finished_total{status="failed"}[1h])) / sum(rate(vidqueue_jobs_finished_total[1h]))
//	histogram_quantile(0.95, sum(rate(vidqueue_tier_encode_duration_seconds_bucket[1h])) by (le, tier))
package metrics
