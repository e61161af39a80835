// Package statsnet is a client for shipping application metrics to a
// statsd.net style HTTP collector.
//
// Counts, gauges and timings are aggregated in memory and posted as one
// batch of StatsD lines per flush:
//
//	<namespace>.<name>:<value>|c
//	<namespace>.<name>:<value>|ms
//	<namespace>.<name>:<value>|g
//
// Design goals:
//   - Recording never blocks on the network
//   - One flush in flight at a time, snapshot and reset in a single step
//   - Best-effort delivery: a failed post is dropped, never retried
//   - Bounded payloads through MaxBufferSize
//
// Basic usage:
//
//	client, err := statsnet.New(statsnet.Config{
//	  TargetURL:     "http://collector:12000/",
//	  Namespace:     "myapp",
//	  FlushInterval: 10 * time.Second,
//	})
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Increment("requests")
//	client.Gauge("queue_depth", 42)
//	client.Timing("db.query", 12)
//	<-client.Flush()
package statsnet
