package model

// ExtremaRequest asks for the sliding window minimum or maximum of Values.
type ExtremaRequest struct {
	Values []float64 `json:"values"`
	Window int       `json:"window"`
	Mode   string    `json:"mode"`
}

type ExtremaResponse struct {
	Mode    string    `json:"mode"`
	Window  int       `json:"window"`
	Metric  Metric    `json:"metric,omitempty"`
	Samples int       `json:"samples"`
	Extrema []float64 `json:"extrema"`
}
