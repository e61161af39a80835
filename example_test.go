package statsnet_test

import (
	"context"
	"fmt"

	"github.com/nikiz24/statsnet"
)

// Example of recording measurements and flushing them by hand
func Example() {
	printPost := statsnet.PostFunc(func(_ context.Context, target string, p statsnet.Payload) error {
		fmt.Printf("POST %s metrics=%s\n", target, p)
		return nil
	})

	client, err := statsnet.New(statsnet.Config{
		TargetURL:              "http://collector:12000/",
		Namespace:              "myapp",
		FlushInterval:          statsnet.NoFlushInterval,
		DisableInternalMetrics: true,
		Transport:              printPost,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	client.Increment("requests")
	client.Increment("requests")
	client.Timing("db.query", 12)
	client.Gauge("queue_depth", 42)
	<-client.Flush()

	// Output: POST http://collector:12000/ metrics=myapp.requests:2|c,myapp.db.query:12|ms,myapp.queue_depth:42|g
}

// Example of capping the batch size; the oldest entries are dropped
func ExampleConfig_maxBufferSize() {
	client, _ := statsnet.New(statsnet.Config{
		TargetURL:     "http://collector:12000/",
		FlushInterval: statsnet.NoFlushInterval,
		MaxBufferSize: 2,
		Transport: statsnet.PostFunc(func(_ context.Context, _ string, p statsnet.Payload) error {
			fmt.Println(p.Lines())
			return nil
		}),
	})
	defer client.Close()

	client.Increment("a")
	client.Increment("b")
	client.Gauge("c", 1)
	<-client.Flush()

	// Output: [b:1|c c:1|g]
}
