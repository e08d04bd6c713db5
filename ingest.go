package main

import (
	"github.com/ktrzcinx/rtls-app/metrics"
	"github.com/ktrzcinx/rtls-app/zone"
)

// meteredZone counts every submission that reaches the zone, whether it came
// from the scenario script or the HTTP API.
type meteredZone struct {
	*zone.Zone
	metrics *metrics.Metrics
}

func (z meteredZone) AddDevice(id int, x, y, zc float64) error {
	err := z.Zone.AddDevice(id, x, y, zc)
	z.metrics.ObserveIngest("device", err)
	return err
}

func (z meteredZone) AddMeasurement(from, to int, distance float64, timestampMs int64) error {
	err := z.Zone.AddMeasurement(from, to, distance, timestampMs)
	z.metrics.ObserveIngest("measurement", err)
	return err
}
