package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/metrics"
	"github.com/jmylchreest/memmux/internal/remux"
)

// ProbeHandler reports what an uploaded container holds.
type ProbeHandler struct {
	converter    *remux.Converter
	maxInput     int64
	maxBodyBytes int64
}

// NewProbeHandler creates a probe handler.
func NewProbeHandler(converter *remux.Converter, cfg *config.Config) *ProbeHandler {
	return &ProbeHandler{
		converter:    converter,
		maxInput:     cfg.Convert.MaxInputSize.Bytes(),
		maxBodyBytes: cfg.Server.MaxBodySize.Bytes(),
	}
}

// ProbeInput carries the raw media bytes.
type ProbeInput struct {
	RawBody []byte
}

// ProbeOutput is the probe result.
type ProbeOutput struct {
	Body *remux.ProbeResult
}

// Register registers the probe route with the API.
func (h *ProbeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:  "probe",
		Method:       http.MethodPost,
		Path:         "/api/v1/probe",
		Summary:      "Probe media",
		Description:  "Reports the container format, streams, duration and tags of the request body",
		Tags:         []string{"Convert"},
		MaxBodyBytes: h.maxBodyBytes,
		RequestBody: &huma.RequestBody{
			Required: true,
			Content:  map[string]*huma.MediaType{"application/octet-stream": {}},
		},
		SkipValidateBody: true,
	}, h.Probe)
}

// Probe inspects the request body.
func (h *ProbeHandler) Probe(ctx context.Context, input *ProbeInput) (*ProbeOutput, error) {
	if len(input.RawBody) == 0 {
		return nil, badRequest(ctx, http.StatusBadRequest, "empty request body")
	}
	data, err := readMedia(bytes.NewReader(input.RawBody), h.maxInput)
	if err != nil {
		return nil, readError(ctx, err)
	}

	res, err := h.converter.Probe(ctx, data)
	format := ""
	if res != nil {
		format = res.Format
	}
	metrics.ObserveProbe(format, err)
	if err != nil {
		return nil, newAPIError(ctx, err)
	}
	return &ProbeOutput{Body: res}, nil
}
