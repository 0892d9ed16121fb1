package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janus-koncepts/wabot/engine/infra/monitoring"
	"github.com/janus-koncepts/wabot/engine/webhook"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const (
	PathHome   = "/"
	PathHealth = "/healthz"
)

// Deps are the assembled services the router exposes.
type Deps struct {
	Knowledge *Knowledge
	Sender    webhook.Sender
	// Monitoring is optional; without it no metrics are exported.
	Monitoring *monitoring.Service
}

// NewRouter builds the gin engine with the home, health, webhook and metrics routes.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) (*gin.Engine, error) {
	if deps == nil || deps.Knowledge == nil || deps.Knowledge.Answerer == nil {
		return nil, errors.New("router: knowledge is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("router: sender is required")
	}
	log := logger.FromContext(ctx)
	r := gin.New()
	r.Use(gin.Recovery())
	mon := deps.Monitoring
	if mon != nil && mon.IsInitialized() {
		r.Use(mon.GinMiddleware())
	}
	r.Use(LoggerMiddleware(log))
	hook, err := newWebhookHandler(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	home := cfg.Replies.Home
	r.GET(PathHome, func(c *gin.Context) {
		c.String(http.StatusOK, home)
	})
	r.GET(PathHealth, healthHandler(deps.Knowledge))
	hook.Register(r)
	if mon != nil && mon.IsInitialized() {
		r.GET(mon.Path(), gin.WrapH(mon.ExporterHandler()))
	}
	return r, nil
}

func newWebhookHandler(ctx context.Context, cfg *config.Config, deps *Deps) (*webhook.Handler, error) {
	hc := &webhook.Config{
		Answerer:    deps.Knowledge.Answerer,
		Sender:      deps.Sender,
		VerifyToken: cfg.WhatsApp.VerifyToken.Value(),
		Replies: webhook.Replies{
			NotReady: cfg.Replies.NotReady,
			Error:    cfg.Replies.Error,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if secret := cfg.WhatsApp.AppSecret.Value(); secret != "" {
		verifier, err := webhook.NewSignatureVerifier(secret)
		if err != nil {
			return nil, fmt.Errorf("webhook signature: %w", err)
		}
		hc.Verifier = verifier
	}
	if cfg.WhatsApp.VerifyToken.Value() == "" {
		logger.FromContext(ctx).Warn("VERIFY_TOKEN is not set; webhook verification will always fail")
	}
	if mon := deps.Monitoring; mon != nil && mon.IsInitialized() {
		metrics, err := webhook.NewMetrics(ctx, mon.Meter())
		if err != nil {
			return nil, err
		}
		hc.Metrics = metrics
	}
	return webhook.NewHandler(hc)
}
