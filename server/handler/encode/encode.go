// Package encode exposes the agent's HTTP surface: the capability report and
// the websocket encode stream.
package encode

import (
	"encoding/binary"
	"net/http"

	"github.com/denisbrodbeck/machineid"
	"github.com/gin-gonic/gin"
	"github.com/kataras/golog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"Prism/server/config"
	"Prism/service/codec"
	"Prism/service/codec/dxgi"
	"Prism/utils"
)

var logger = golog.Child("[encode-api]")

// capabilitySchemaVersion tags the report layout so controllers can detect
// agents running older builds.
const capabilitySchemaVersion = "2026.08"

// Probe and inventory hooks, swappable in tests.
var (
	discoverFeatures = codec.Discover
	enumAdapters     = dxgi.Adapters
	protectedID      = machineid.ProtectedID
)

// Handler serves the capability and encode endpoints for one agent process.
type Handler struct {
	cfg config.Config
}

func New(cfg config.Config) *Handler {
	return &Handler{cfg: cfg}
}

// Register mounts the API routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/capabilities", h.requireKey, h.Capabilities)
	r.GET("/api/encode", h.requireKey, h.EncodeStream)
}

// requireKey gates every endpoint behind the configured API key.
func (h *Handler) requireKey(ctx *gin.Context) {
	key := ctx.GetHeader("X-API-Key")
	if key == "" {
		key, _ = ctx.GetQuery("key")
	}
	if !h.cfg.CheckKey(key) {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Next()
}

type hostReport struct {
	Hostname    string `json:"hostname"`
	Platform    string `json:"platform"`
	KernelArch  string `json:"kernelArch"`
	TotalMemory uint64 `json:"totalMemory"`
}

type capabilityReport struct {
	Schema    string                 `json:"schema"`
	MachineID string                 `json:"machineId,omitempty"`
	Host      hostReport             `json:"host"`
	Adapters  []dxgi.Adapter         `json:"adapters"`
	Baseline  config.Baseline        `json:"baseline"`
	Features  []codec.FeatureContext `json:"features"`
}

// Capabilities runs a live discovery pass against the configured baseline and
// reports every working backend/format/adapter combination, alongside the
// machine identity a controller needs to route encode jobs here.
func (h *Handler) Capabilities(ctx *gin.Context) {
	baseline := codec.DynamicContext{
		Width:     h.cfg.Baseline.Width,
		Height:    h.cfg.Baseline.Height,
		KBitrate:  h.cfg.Baseline.KBitrate,
		Framerate: h.cfg.Baseline.Framerate,
		GOP:       h.cfg.Baseline.GOP,
	}
	report := capabilityReport{
		Schema:   capabilitySchemaVersion,
		Baseline: h.cfg.Baseline,
		Features: discoverFeatures(baseline),
	}
	if id, err := protectedID("prism"); err == nil {
		report.MachineID = id
	}
	if info, err := host.Info(); err == nil {
		report.Host.Hostname = info.Hostname
		report.Host.Platform = info.Platform
		report.Host.KernelArch = info.KernelArch
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.Host.TotalMemory = vm.Total
	}
	if adapters, err := enumAdapters(); err == nil {
		report.Adapters = adapters
	}
	body, err := utils.JSON.Marshal(report)
	if err != nil {
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	logger.Debugf("capability report: %d features, %d adapters",
		len(report.Features), len(report.Adapters))
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Output frame packet layout: 8 bytes big-endian PTS, 1 byte keyframe flag,
// then the payload.
const framePacketHeader = 9

func packFrame(frame codec.EncodeFrame) []byte {
	buf := make([]byte, framePacketHeader+len(frame.Data))
	binary.BigEndian.PutUint64(buf, uint64(frame.PTS))
	if frame.Key {
		buf[8] = 1
	}
	copy(buf[framePacketHeader:], frame.Data)
	return buf
}

func unpackFrame(buf []byte) (codec.EncodeFrame, bool) {
	if len(buf) < framePacketHeader {
		return codec.EncodeFrame{}, false
	}
	return codec.EncodeFrame{
		PTS:  int64(binary.BigEndian.Uint64(buf)),
		Key:  buf[8] == 1,
		Data: buf[framePacketHeader:],
	}, true
}
