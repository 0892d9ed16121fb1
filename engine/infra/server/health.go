package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/janus-koncepts/wabot/pkg/version"
)

const (
	answererReady    = "ready"
	answererDisabled = "disabled"
)

// healthHandler always answers 200; a disabled answerer still serves fallback replies.
func healthHandler(k *Knowledge) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := answererDisabled
		if k.Answerer.Ready() {
			state = answererReady
		}
		body := gin.H{
			"status":   "ok",
			"answerer": state,
			"version":  version.Get().Version,
		}
		if k.Index != nil {
			body["index"] = gin.H{
				"dir":     k.Index.Dir,
				"records": k.Index.Records,
				"source":  k.Index.Source,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
