// Package event decodes the newline-delimited JSON stream written by the load
// engine into typed events.
//
// Every line maps to exactly one of three variants:
//
//	switch ev := event.Parse(line).(type) {
//	case event.MetricDefinition:
//		// declares a metric and its type
//	case event.Sample:
//		// a single sampled value
//	case event.Unrecognized:
//		// malformed or unknown line, skip it
//	}
//
// Parse never fails; lines that cannot be decoded come back as Unrecognized.
package event

import (
	"time"

	"github.com/tidwall/gjson"
)

// MetricType is the engine-declared kind of a metric.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeRate    MetricType = "rate"
	MetricTypeTrend   MetricType = "trend"
)

// Event is implemented by MetricDefinition, Sample and Unrecognized only.
type Event interface {
	isEvent()
}

// MetricDefinition is decoded from a "Metric" line.
type MetricDefinition struct {
	Name     string
	Type     MetricType
	Contains string // "time", "data" or "default"
}

// Sample is decoded from a "Point" line.
type Sample struct {
	Metric string
	Value  float64
	Tags   map[string]string
	Time   time.Time
}

// Unrecognized marks a line that carries nothing usable.
type Unrecognized struct {
	Reason string
}

func (MetricDefinition) isEvent() {}
func (Sample) isEvent()           {}
func (Unrecognized) isEvent()     {}

const (
	lineTypeMetric = "Metric"
	lineTypePoint  = "Point"
)

// Parse converts one raw output line into an event. It has no side effects.
func Parse(line []byte) Event {
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return Unrecognized{Reason: "invalid json"}
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return Unrecognized{Reason: "not an object"}
	}

	switch doc.Get("type").String() {
	case lineTypeMetric:
		return parseDefinition(doc)
	case lineTypePoint:
		return parseSample(doc)
	default:
		return Unrecognized{Reason: "unknown type"}
	}
}

func parseDefinition(doc gjson.Result) Event {
	name := doc.Get("metric")
	if name.Type != gjson.String || name.String() == "" {
		// Older engine builds put the name under data.name.
		name = doc.Get("data.name")
		if name.Type != gjson.String || name.String() == "" {
			return Unrecognized{Reason: "metric without name"}
		}
	}
	return MetricDefinition{
		Name:     name.String(),
		Type:     MetricType(doc.Get("data.type").String()),
		Contains: doc.Get("data.contains").String(),
	}
}

func parseSample(doc gjson.Result) Event {
	name := doc.Get("metric")
	if name.Type != gjson.String || name.String() == "" {
		return Unrecognized{Reason: "point without metric"}
	}
	value := doc.Get("data.value")
	if value.Type != gjson.Number {
		return Unrecognized{Reason: "non-numeric value"}
	}

	sample := Sample{
		Metric: name.String(),
		Value:  value.Float(),
		Tags:   map[string]string{},
	}
	if tags := doc.Get("data.tags"); tags.IsObject() {
		tags.ForEach(func(key, val gjson.Result) bool {
			if val.Type == gjson.Null {
				return true
			}
			sample.Tags[key.String()] = val.String()
			return true
		})
	}
	if raw := doc.Get("data.time").String(); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			sample.Time = ts
		}
	}
	return sample
}
