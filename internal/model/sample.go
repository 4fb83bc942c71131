package model

type Sample struct {
	DeviceID  string  `json:"device_id,omitempty"`
	CPU       float64 `json:"cpu"`
	RPS       float64 `json:"rps"`
	Timestamp int64   `json:"timestamp"`
}

// Metric selects one numeric field of a Sample.
type Metric string

const (
	MetricCPU Metric = "cpu"
	MetricRPS Metric = "rps"
)

func (m Metric) Valid() bool {
	return m == MetricCPU || m == MetricRPS
}

// Value returns the field of s named by m.
func (m Metric) Value(s Sample) float64 {
	if m == MetricRPS {
		return s.RPS
	}
	return s.CPU
}
