package metrics

// Prometheus metric namespaces
const (
	namespaceBenchmark = "benchmark"
)

// Prometheus metric subsystems
const (
	subsystemParser     = "parser"
	subsystemRunStats   = "runstats"
	subsystemAggregator = "aggregator"
	subsystemPlot       = "plot"
)

const (
	LabelFigure = "figure"
)
