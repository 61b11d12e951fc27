package metrics

import "github.com/jcaesar/prometheus-nvml-exporter/internal/errors"

const (
	ErrUnknownMetric      = errors.ErrorCode("metrics_unknown_metric")
	ErrSeriesLookupFailed = errors.ErrorCode("metrics_series_lookup_failed")
	ErrCounterReadFailed  = errors.ErrorCode("metrics_counter_read_failed")
	ErrNegativeIncrement  = errors.ErrorCode("metrics_negative_increment")
)
