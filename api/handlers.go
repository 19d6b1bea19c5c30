// Package api serves the Lynkr agent tools over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
	"github.com/lynkr-ai/lynkr-go-sdk/config"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/logger"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/metrics"
)

// Chatter answers free-form messages, typically an LLM agent.
type Chatter interface {
	Chat(ctx context.Context, input string) (string, error)
}

// Gateway holds the state shared by the HTTP handlers. Tool calls and chat
// turns are serialised because the client keeps per-conversation state.
type Gateway struct {
	client    *lynkr.Client
	tools     []lynkr.Tool
	collector *metrics.Collector
	chatter   Chatter
	logger    *logrus.Logger

	mu sync.Mutex
}

// NewGateway creates a gateway over the client's agent tools. collector and
// chatter may be nil.
func NewGateway(client *lynkr.Client, collector *metrics.Collector, chatter Chatter) *Gateway {
	return &Gateway{
		client:    client,
		tools:     client.AgentTools(),
		collector: collector,
		chatter:   chatter,
		logger:    client.Logger(),
	}
}

// NewRouter builds a gin engine with recovery, CORS and the gateway routes.
// CORS is only enabled for the configured origins, and cfg.AuthToken, when
// set, guards the routes that execute actions or reveal key state.
func NewRouter(cfg config.HTTPConfig, gw *Gateway) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	if origins := cfg.CORSOrigins; len(origins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}
		if len(origins) == 1 && origins[0] == "*" {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = origins
		}
		r.Use(cors.New(corsCfg))
	}

	var guards []gin.HandlerFunc
	if cfg.AuthToken != "" {
		guards = append(guards, RequireToken(cfg.AuthToken))
	}
	RegisterRoutes(r, gw, guards...)
	return r
}

// RequireToken rejects requests whose Authorization header is not
// "Bearer <token>".
func RequireToken(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="lynkr"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// NewServer wraps handler in an http.Server listening on cfg's address.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RegisterRoutes registers the gateway routes on r. guards run before the
// routes that invoke tools, chat, or expose keys and the execution context.
func RegisterRoutes(r *gin.Engine, gw *Gateway, guards ...gin.HandlerFunc) {
	r.GET("/health", gw.getHealth)
	r.GET("/tools", gw.listTools)

	protected := r.Group("/", guards...)
	protected.POST("/tools/:name", gw.invokeTool)
	protected.GET("/keys", gw.listKeys)
	protected.GET("/context", gw.getContext)
	protected.POST("/chat", gw.chat)

	if gw.collector != nil {
		r.GET("/metrics", gin.WrapH(gw.collector.Handler()))
	}
}

func (g *Gateway) getHealth(c *gin.Context) {
	g.mu.Lock()
	state := g.client.State()
	g.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": lynkr.Version,
		"state":   state.String(),
		"api_key": g.client.APIKeyMasked(),
	})
}

func (g *Gateway) listTools(c *gin.Context) {
	out := make([]gin.H, 0, len(g.tools))
	for _, t := range g.tools {
		out = append(out, gin.H{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.JSONSchema(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out})
}

func (g *Gateway) invokeTool(c *gin.Context) {
	name := c.Param("name")
	tool, ok := lynkr.FindTool(g.tools, name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown tool %q", name)})
		return
	}

	args := map[string]interface{}{}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}

	g.mu.Lock()
	res := tool.Invoke(c.Request.Context(), args)
	g.mu.Unlock()

	log := logger.NewContextualLogger(g.logger, "", name)
	if res.Failed() {
		log.Warnf("Tool call failed: %v", res.Err)
		c.JSON(http.StatusOK, gin.H{"tool": name, "result": res.Text(), "is_error": true})
		return
	}
	log.Debug("Tool call completed")
	c.JSON(http.StatusOK, gin.H{"tool": name, "result": res.Value, "is_error": false})
}

func (g *Gateway) listKeys(c *gin.Context) {
	g.mu.Lock()
	masked := g.client.Keys().ListMasked()
	g.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"keys": masked})
}

func (g *Gateway) getContext(c *gin.Context) {
	g.mu.Lock()
	ec := g.client.Context()
	state := g.client.State()
	g.mu.Unlock()

	resp := gin.H{
		"ref_id":   ec.RefID,
		"state":    state.String(),
		"metadata": ec.Metadata,
	}
	if ec.Schema != nil {
		resp["required_fields"] = ec.Schema.RequiredFields()
		resp["sensitive_fields"] = ec.Schema.SensitiveFields()
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) chat(c *gin.Context) {
	if g.chatter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not configured"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	g.mu.Lock()
	reply, err := g.chatter.Chat(c.Request.Context(), req.Message)
	g.mu.Unlock()

	if err != nil {
		g.logger.WithError(err).Warn("Chat turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
