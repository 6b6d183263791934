package controlplane

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/openmined/fimsync/internal/integrity"
	"github.com/openmined/fimsync/internal/transport"
	"github.com/openmined/fimsync/internal/version"
)

// SyncEngine is the part of the integrity engine the control plane drives
type SyncEngine interface {
	Status() integrity.Status
	TriggerSync() bool
}

// TransportStats reports the manager connection
type TransportStats interface {
	Stats() transport.Stats
}

// StoreStats reports the monitored entry count
type StoreStats interface {
	Len() int
}

type StatusResponse struct {
	Version   string           `json:"version"`
	AgentID   string           `json:"agentId"`
	Uptime    string           `json:"uptime"`
	Entries   int              `json:"entries"`
	Sync      integrity.Status `json:"sync"`
	LastSeen  string           `json:"lastSeen,omitempty"`
	Transport *transport.Stats `json:"transport,omitempty"`
	Host      *HostInfo        `json:"host,omitempty"`
}

type handlers struct {
	agentID   string
	started   time.Time
	engine    SyncEngine
	transport TransportStats
	store     StoreStats
	host      *HostInfo
}

func (h *handlers) index(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) status(c *gin.Context) {
	resp := StatusResponse{
		Version: version.Short(),
		AgentID: h.agentID,
		Uptime:  humanize.RelTime(h.started, time.Now(), "", ""),
		Entries: h.store.Len(),
		Sync:    h.engine.Status(),
		Host:    h.host,
	}
	if !resp.Sync.LastMessage.IsZero() {
		resp.LastSeen = humanize.Time(resp.Sync.LastMessage)
	}
	if h.transport != nil {
		stats := h.transport.Stats()
		resp.Transport = &stats
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) syncNow(c *gin.Context) {
	if !h.engine.TriggerSync() {
		c.JSON(http.StatusConflict, gin.H{"error": "sync engine is not waiting for a round"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"triggered": true})
}
