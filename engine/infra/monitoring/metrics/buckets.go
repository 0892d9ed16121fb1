package metrics

// HTTPDurationBuckets defines latency buckets for HTTP request duration metrics.
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// AnswerDurationBuckets covers webhook handling, which waits on retrieval and generation.
var AnswerDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
