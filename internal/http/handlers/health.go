// Package handlers provides HTTP API handlers for memmux.
package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/jmylchreest/memmux/internal/remux"
)

const megabyte = 1024 * 1024

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	converter *remux.Converter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, converter *remux.Converter) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		converter: converter,
	}
}

// HealthResponse is the health report.
type HealthResponse struct {
	Status        string     `json:"status"`
	Timestamp     string     `json:"timestamp"`
	Version       string     `json:"version"`
	Uptime        string     `json:"uptime"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	CPUInfo       CPUInfo    `json:"cpu_info"`
	Memory        MemoryInfo `json:"memory"`
	Runtime       Runtime    `json:"runtime"`
	// Formats and Codecs count what the converter is wired with.
	Formats int `json:"formats"`
	Codecs  int `json:"codecs"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory in megabytes.
type MemoryInfo struct {
	TotalMemoryMB      float64 `json:"total_memory_mb"`
	UsedMemoryMB       float64 `json:"used_memory_mb"`
	AvailableMemoryMB  float64 `json:"available_memory_mb"`
	ProcessMemoryMB    float64 `json:"process_memory_mb"`
	PercentageOfSystem float64 `json:"percentage_of_system"`
}

// Runtime holds Go runtime figures. Conversions buffer whole files, so
// heap size is the figure to watch.
type Runtime struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapSysMB   float64 `json:"heap_sys_mb"`
	NumGC       uint32  `json:"num_gc"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPUInfo:       cpuInfo(),
		Memory:        memoryInfo(),
		Runtime:       runtimeInfo(),
	}
	if h.converter != nil {
		cat := h.converter.Catalog()
		resp.Formats = len(cat.Formats)
		resp.Codecs = len(cat.Codecs)
	}
	return &HealthOutput{Body: resp}, nil
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	avg, err := load.Avg()
	if err != nil || avg == nil {
		return info
	}
	info.Load1Min = avg.Load1
	info.Load5Min = avg.Load5
	info.Load15Min = avg.Load15
	if info.Cores > 0 {
		info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
	}
	return info
}

func memoryInfo() MemoryInfo {
	var info MemoryInfo
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / megabyte
		info.UsedMemoryMB = float64(vm.Used) / megabyte
		info.AvailableMemoryMB = float64(vm.Available) / megabyte
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if pm, err := proc.MemoryInfo(); err == nil && pm != nil {
		info.ProcessMemoryMB = float64(pm.RSS) / megabyte
		if info.TotalMemoryMB > 0 {
			info.PercentageOfSystem = info.ProcessMemoryMB / info.TotalMemoryMB * 100
		}
	}
	return info
}

func runtimeInfo() Runtime {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Runtime{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / megabyte,
		HeapSysMB:   float64(ms.HeapSys) / megabyte,
		NumGC:       ms.NumGC,
	}
}
