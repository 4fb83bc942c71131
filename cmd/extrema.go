package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/vitaly-z/Nayuki-web-published-code/internal/minmax"
	"github.com/vitaly-z/Nayuki-web-published-code/internal/model"
)

func (a *app) extremaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req model.ExtremaRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		a.prom.badReqTotal.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid json"))
		return
	}

	a.respondExtrema(w, req.Values, req.Window, req.Mode, "")
}

func (a *app) historyExtremaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	metric := model.Metric(query.Get("metric"))
	if metric == "" {
		metric = model.MetricCPU
	}
	if !metric.Valid() {
		a.prom.badReqTotal.Inc()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("unknown metric"))
		return
	}

	window := a.windowSize
	if v := query.Get("window"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			a.prom.badReqTotal.Inc()
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid window"))
			return
		}
		window = parsed
	}

	limit := 0
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			a.prom.badReqTotal.Inc()
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid limit"))
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	samples, err := a.store.FetchRecent(ctx, limit)
	if err != nil {
		a.prom.redisErrTotal.Inc()
		log.Printf("redis history error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("redis error"))
		return
	}

	values := lo.Map(samples, func(s model.Sample, _ int) float64 {
		return metric.Value(s)
	})
	a.respondExtrema(w, values, window, query.Get("mode"), metric)
}

func (a *app) respondExtrema(w http.ResponseWriter, values []float64, window int, rawMode string, metric model.Metric) {
	mode := minmax.Max
	if rawMode != "" {
		parsed, err := minmax.ParseMode(rawMode)
		if err != nil {
			a.prom.badReqTotal.Inc()
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid mode"))
			return
		}
		mode = parsed
	}

	extrema, err := minmax.Compute(values, window, mode)
	if err != nil {
		a.prom.badReqTotal.Inc()
		w.WriteHeader(http.StatusBadRequest)
		if errors.Is(err, minmax.ErrInvalidWindow) {
			_, _ = w.Write([]byte("invalid window"))
		} else {
			_, _ = w.Write([]byte(err.Error()))
		}
		return
	}
	a.prom.extremaTotal.WithLabelValues(mode.String()).Inc()

	respondJSON(w, model.ExtremaResponse{
		Mode:    mode.String(),
		Window:  window,
		Metric:  metric,
		Samples: len(values),
		Extrema: extrema,
	})
}
