package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janus-koncepts/wabot/engine/knowledge/qa"
	"github.com/janus-koncepts/wabot/engine/whatsapp"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const (
	Path              = "/webhook"
	modeSubscribe     = "subscribe"
	verificationError = "verification failed"
	receiveAck        = "ok"
	defaultMaxBody    = 1 << 20
)

// Sender delivers a text reply to a WhatsApp user.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// Replies are the fixed texts used instead of a generated answer.
type Replies struct {
	NotReady string
	Error    string
}

// Config assembles a Handler.
type Config struct {
	Answerer    qa.Answerer
	Sender      Sender
	VerifyToken string
	// Verifier is optional. When set, deliveries with a bad signature are dropped.
	Verifier     Verifier
	Replies      Replies
	MaxBodyBytes int64
	Metrics      *Metrics
}

// Handler serves the WhatsApp webhook verification and receive endpoints.
type Handler struct {
	answerer    qa.Answerer
	sender      Sender
	verifyToken string
	verifier    Verifier
	replies     Replies
	maxBody     int64
	metrics     *Metrics
}

func NewHandler(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, errors.New("webhook: config is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("webhook: answerer is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("webhook: sender is required")
	}
	if cfg.Replies.NotReady == "" || cfg.Replies.Error == "" {
		return nil, errors.New("webhook: fallback replies are required")
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Handler{
		answerer:    cfg.Answerer,
		sender:      cfg.Sender,
		verifyToken: cfg.VerifyToken,
		verifier:    cfg.Verifier,
		replies:     cfg.Replies,
		maxBody:     maxBody,
		metrics:     cfg.Metrics,
	}, nil
}

// Register mounts GET and POST /webhook.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(Path, h.Verify)
	r.POST(Path, h.Receive)
}

// Verify answers the subscription handshake. An unset verify token never matches.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if mode == modeSubscribe && h.tokenMatches(token) {
		logger.FromContext(c.Request.Context()).Info("Webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	logger.FromContext(c.Request.Context()).Warn("Webhook verification failed", "mode", mode)
	c.String(http.StatusForbidden, verificationError)
}

func (h *Handler) tokenMatches(token string) bool {
	if h.verifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) == 1
}

// Receive handles a delivery and always acknowledges with 200 "ok".
// Answering runs on a context detached from the client so a platform
// disconnect does not abort the reply.
func (h *Handler) Receive(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	start := time.Now()
	outcome := h.process(ctx, c.Request)
	h.metrics.ObserveOutcome(ctx, outcome, time.Since(start))
	c.String(http.StatusOK, receiveAck)
}

func (h *Handler) process(ctx context.Context, r *http.Request) (outcome string) {
	log := logger.FromContext(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Panic while handling webhook", "panic", rec)
			h.metrics.OnFailed(ctx, reasonPanic)
			outcome = OutcomeIgnored
		}
	}()
	body, err := h.readBody(r)
	if err != nil {
		log.Error("Failed to read webhook body", "error", err)
		h.metrics.OnFailed(ctx, reasonReadBody)
		return OutcomeIgnored
	}
	h.metrics.OnReceived(ctx, len(body))
	if h.verifier != nil {
		if err := h.verifier.Verify(ctx, r, body); err != nil {
			log.Warn("Dropping webhook with invalid signature", "error", err)
			h.metrics.OnFailed(ctx, reasonSignature)
			return OutcomeIgnored
		}
		h.metrics.OnVerified(ctx)
	}
	return h.handleMessage(ctx, body)
}

func (h *Handler) handleMessage(ctx context.Context, body []byte) string {
	log := logger.FromContext(ctx)
	in, err := whatsapp.ParseInbound(body)
	switch {
	case err == nil:
	case errors.Is(err, whatsapp.ErrUnsupportedMessage):
		log.Error("Cannot answer message", "from", in.From, "type", in.Type, "error", err)
		h.metrics.OnFailed(ctx, reasonUnsupported)
		h.reply(ctx, in.From, h.replies.Error)
		return OutcomeErrorReply
	default:
		// The sender is unknown here, so there is nobody to reply to.
		log.Error("Failed to extract message from webhook payload", "error", err)
		h.metrics.OnFailed(ctx, reasonParse)
		return OutcomeIgnored
	}
	log = log.With("from", in.From, "message_id", in.MessageID)
	log.Info("Message received", "length", len(in.Text))
	text, outcome := h.answer(logger.ContextWithLogger(ctx, log), in.Text)
	h.reply(ctx, in.From, text)
	return outcome
}

func (h *Handler) answer(ctx context.Context, question string) (string, string) {
	answer, err := h.safeAnswer(ctx, question)
	switch {
	case err == nil:
		return answer, OutcomeAnswered
	case errors.Is(err, qa.ErrNotReady):
		logger.FromContext(ctx).Warn("Answerer not ready; sending fallback reply")
		return h.replies.NotReady, OutcomeNotReady
	default:
		logger.FromContext(ctx).Error("Failed to answer message", "error", err)
		h.metrics.OnFailed(ctx, reasonAnswer)
		return h.replies.Error, OutcomeErrorReply
	}
}

// safeAnswer turns a panic in the answerer into an error so the sender still
// gets the fallback reply.
func (h *Handler) safeAnswer(ctx context.Context, question string) (answer string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("answerer panicked: %v", rec)
		}
	}()
	return h.answerer.Answer(ctx, question)
}

// reply sends text and discards the result after logging it.
func (h *Handler) reply(ctx context.Context, to, text string) {
	log := logger.FromContext(ctx)
	if err := h.sender.Send(ctx, to, text); err != nil {
		log.Error("Failed to send reply", "to", to, "error", err)
		h.metrics.OnFailed(ctx, reasonSend)
		return
	}
	log.Debug("Reply sent", "to", to, "length", len(text))
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.New("webhook: empty body")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("webhook: read body: %w", err)
	}
	if int64(len(body)) > h.maxBody {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, h.maxBody)
	}
	return body, nil
}
