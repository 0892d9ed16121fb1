package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/janus-koncepts/wabot/engine/knowledge/qa"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const textPayload = `{"entry":[{"changes":[{"value":{"messages":[{"from":"15551234567","id":"wamid.1","type":"text","text":{"body":"What are your opening hours?"}}]}}]}]}`

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerer) Ready() bool {
	return m.Called().Bool(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to, text string) error {
	return m.Called(ctx, to, text).Error(0)
}

type panicAnswerer struct{}

func (panicAnswerer) Answer(context.Context, string) (string, error) { panic("boom") }
func (panicAnswerer) Ready() bool                                     { return true }

var testReplies = Replies{NotReady: "not ready", Error: "sorry"}

func newTestRouter(t *testing.T, cfg *Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.Replies == (Replies{}) {
		cfg.Replies = testReplies
	}
	h, err := NewHandler(cfg)
	require.NoError(t, err)
	r := gin.New()
	h.Register(r)
	return r
}

func postWebhook(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Verify(t *testing.T) {
	newRouter := func(t *testing.T, token string) *gin.Engine {
		return newTestRouter(t, &Config{
			Answerer:    &MockAnswerer{},
			Sender:      &MockSender{},
			VerifyToken: token,
		})
	}
	get := func(r http.Handler, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, Path+"?"+query, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("Should echo the challenge when mode and token match", func(t *testing.T) {
		r := newRouter(t, "secret-token")
		w := get(r, "hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12345", w.Body.String())
	})

	t.Run("Should reject a wrong token", func(t *testing.T) {
		r := newRouter(t, "secret-token")
		w := get(r, "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "verification failed", w.Body.String())
	})

	t.Run("Should reject a mode other than subscribe", func(t *testing.T) {
		r := newRouter(t, "secret-token")
		w := get(r, "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=1")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Should reject every request when no token is configured", func(t *testing.T) {
		r := newRouter(t, "")
		w := get(r, "hub.mode=subscribe&hub.challenge=1")
		assert.Equal(t, http.StatusForbidden, w.Code)
		w = get(r, "hub.mode=subscribe&hub.verify_token=&hub.challenge=1")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Should reject requests without parameters", func(t *testing.T) {
		r := newRouter(t, "secret-token")
		w := get(r, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_Receive(t *testing.T) {
	t.Run("Should answer a text message and reply to the sender", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		answerer.On("Answer", mock.Anything, "What are your opening hours?").Return("9 to 5", nil).Once()
		sender.On("Send", mock.Anything, "15551234567", "9 to 5").Return(nil).Once()
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		answerer.AssertExpectations(t)
		sender.AssertExpectations(t)
	})

	t.Run("Should send the not-ready reply when the answerer is disabled", func(t *testing.T) {
		sender := &MockSender{}
		sender.On("Send", mock.Anything, "15551234567", "not ready").Return(nil).Once()
		r := newTestRouter(t, &Config{
			Answerer: qa.Disabled(errors.New("index missing")),
			Sender:   sender,
		})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		sender.AssertExpectations(t)
	})

	t.Run("Should send the error reply when answering fails", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		answerer.On("Answer", mock.Anything, mock.Anything).Return("", errors.New("llm down")).Once()
		sender.On("Send", mock.Anything, "15551234567", "sorry").Return(nil).Once()
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		sender.AssertExpectations(t)
	})

	t.Run("Should acknowledge even when the reply cannot be sent", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		answerer.On("Answer", mock.Anything, mock.Anything).Return("hi", nil).Once()
		sender.On("Send", mock.Anything, "15551234567", "hi").Return(errors.New("graph api 500")).Once()
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		sender.AssertExpectations(t)
	})

	t.Run("Should not reply when the payload carries no message", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		var logs bytes.Buffer
		h, err := NewHandler(&Config{Answerer: answerer, Sender: sender, Replies: testReplies})
		require.NoError(t, err)
		gin.SetMode(gin.TestMode)
		logged := gin.New()
		logged.Use(func(c *gin.Context) {
			log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: &logs, JSON: true})
			c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
			c.Next()
		})
		h.Register(logged)

		for _, body := range []string{
			`{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`,
			`{}`,
			`not json`,
			``,
		} {
			logs.Reset()
			w := postWebhook(logged, body, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok", w.Body.String())
			assert.Contains(t, logs.String(), "Failed to extract message from webhook payload", "body %q", body)
		}
		answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should send the error reply for a non-text message", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		sender.On("Send", mock.Anything, "15551234567", "sorry").Return(nil).Once()
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender})
		body := `{"entry":[{"changes":[{"value":{"messages":[{"from":"15551234567","type":"image","image":{"id":"m1"}}]}}]}]}`

		w := postWebhook(r, body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
		sender.AssertExpectations(t)
	})

	t.Run("Should send the error reply when answering panics", func(t *testing.T) {
		sender := &MockSender{}
		sender.On("Send", mock.Anything, "15551234567", "sorry").Return(nil).Once()
		r := newTestRouter(t, &Config{Answerer: panicAnswerer{}, Sender: sender})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		sender.AssertExpectations(t)
	})

	t.Run("Should answer on a context that survives client cancellation", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		answerer.On("Answer", mock.MatchedBy(func(ctx context.Context) bool {
			return ctx.Err() == nil
		}), mock.Anything).Return("still here", nil).Once()
		sender.On("Send", mock.Anything, "15551234567", "still here").Return(nil).Once()
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(textPayload)).WithContext(ctx)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		answerer.AssertExpectations(t)
		sender.AssertExpectations(t)
	})

	t.Run("Should drop oversized bodies without replying", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		r := newTestRouter(t, &Config{Answerer: answerer, Sender: sender, MaxBodyBytes: 16})

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_ReceiveWithSignature(t *testing.T) {
	newRouter := func(t *testing.T, answerer *MockAnswerer, sender *MockSender) *gin.Engine {
		verifier, err := NewSignatureVerifier("app-secret")
		require.NoError(t, err)
		return newTestRouter(t, &Config{Answerer: answerer, Sender: sender, Verifier: verifier})
	}

	t.Run("Should process a correctly signed delivery", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		answerer.On("Answer", mock.Anything, mock.Anything).Return("signed", nil).Once()
		sender.On("Send", mock.Anything, "15551234567", "signed").Return(nil).Once()
		r := newRouter(t, answerer, sender)
		sig := "sha256=" + hex.EncodeToString(Sign([]byte("app-secret"), []byte(textPayload)))

		w := postWebhook(r, textPayload, map[string]string{HeaderSignature: sig})

		assert.Equal(t, http.StatusOK, w.Code)
		sender.AssertExpectations(t)
	})

	t.Run("Should drop an unsigned delivery but still acknowledge", func(t *testing.T) {
		answerer := &MockAnswerer{}
		sender := &MockSender{}
		r := newRouter(t, answerer, sender)

		w := postWebhook(r, textPayload, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
		answerer.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNewHandler(t *testing.T) {
	t.Run("Should require an answerer and a sender", func(t *testing.T) {
		_, err := NewHandler(&Config{Sender: &MockSender{}, Replies: testReplies})
		assert.ErrorContains(t, err, "answerer")
		_, err = NewHandler(&Config{Answerer: &MockAnswerer{}, Replies: testReplies})
		assert.ErrorContains(t, err, "sender")
	})

	t.Run("Should require fallback replies", func(t *testing.T) {
		_, err := NewHandler(&Config{Answerer: &MockAnswerer{}, Sender: &MockSender{}})
		assert.Error(t, err)
	})
}
