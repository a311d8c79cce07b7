package server

import (
	"net/http"
	"strings"

	"mcpbridge/internal/api"

	"github.com/gin-gonic/gin"
)

type nameRequest struct {
	Name string `json:"name"`
}

type createRequest struct {
	Name         string `json:"name"`
	ServerConfig any    `json:"serverConfig"`
}

type parseRequest struct {
	Command string `json:"command"`
}

type invokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// statusFor maps a failure kind to an HTTP status.
func statusFor(kind api.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case api.KindConfig, api.KindParse:
		return http.StatusBadRequest
	case api.KindNotFound:
		return http.StatusNotFound
	case api.KindDuplicateName:
		return http.StatusConflict
	case api.KindProcessStart, api.KindProcessTimeout, api.KindToolExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorField renders a result's failure as the "error" field: null on
// success.
func errorField[T any](r api.Result[T]) any {
	if r.OK() {
		return nil
	}
	return r.Message()
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleList(c *gin.Context) {
	s.respondServers(c, s.bridge.Status(c.Request.Context()))
}

func (s *Server) handleForceReload(c *gin.Context) {
	s.respondServers(c, s.bridge.ForceReload(c.Request.Context()))
}

func (s *Server) respondServers(c *gin.Context, res api.Result[[]api.ServerStatus]) {
	servers := res.Value()
	if servers == nil {
		servers = []api.ServerStatus{}
	}
	c.JSON(statusFor(res.Kind()), gin.H{
		"success": res.OK(),
		"error":   errorField(res),
		"servers": servers,
	})
}

func (s *Server) handleToggle(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.bridge.Toggle(c.Request.Context(), req.Name)
	c.JSON(statusFor(res.Kind()), gin.H{"success": res.OK(), "error": errorField(res)})
}

func (s *Server) handleDelete(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.bridge.Delete(c.Request.Context(), req.Name)
	c.JSON(statusFor(res.Kind()), gin.H{"success": res.OK(), "error": errorField(res)})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.bridge.Add(c.Request.Context(), req.Name, req.ServerConfig)

	var server any
	if res.OK() {
		server = res.Value()
	}
	c.JSON(statusFor(res.Kind()), gin.H{"success": res.OK(), "error": errorField(res), "server": server})
}

func (s *Server) handleParseInstallCommand(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := s.bridge.ParseCommand(req.Command)

	var parsed any
	if res.OK() {
		parsed = res.Value()
	}
	c.JSON(statusFor(res.Kind()), gin.H{"success": res.OK(), "error": errorField(res), "config": parsed})
}

// handlePlugins exports the plugins of every active server.
func (s *Server) handlePlugins(c *gin.Context) {
	ctx := c.Request.Context()
	ids := s.bridge.ActiveServerIDs(ctx)
	if !ids.OK() {
		c.JSON(statusFor(ids.Kind()), gin.H{"success": false, "error": ids.Message(), "plugins": []api.Plugin{}})
		return
	}

	plugins := []api.Plugin{}
	for _, id := range ids.Value() {
		name, ok := s.bridge.ServerNameFromID(id)
		if !ok {
			continue
		}
		res := s.bridge.ExportPlugins(ctx, name)
		if !res.OK() {
			continue
		}
		plugins = append(plugins, res.Value()...)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "error": nil, "plugins": plugins})
}

// handleInvoke always answers 200: tool failures are part of the result text.
func (s *Server) handleInvoke(c *gin.Context) {
	var req invokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	name := strings.TrimSpace(c.Param("name"))
	result := s.bridge.InvokeByName(c.Request.Context(), name, req.Arguments)
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (s *Server) handleMetrics(c *gin.Context) {
	metrics, err := s.config.Metrics.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "error": nil, "metrics": metrics})
}
