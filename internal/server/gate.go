package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ginlogrus "github.com/toorop/gin-logrus"

	"github.com/DeFiCh/jsonrpsee/internal/router"
	"github.com/DeFiCh/jsonrpsee/internal/utils"
)

// Distinct denial bodies so clients can tell which allowlist rejected them.
const (
	hostNotAllowedBody   = "Provided Host header is not whitelisted.\n"
	originNotAllowedBody = "Origin of the request is not whitelisted.\n"
	headerNotAllowedBody = "Header of the request is not whitelisted.\n"
)

// buildEngine assembles the gin engine: request-id tagging, access logging,
// panic recovery, then the gate as the catch-all route.
func (s *Server) buildEngine(processor *router.Processor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestIDMiddleware())
	engine.Use(ginlogrus.Logger(s.logger))
	engine.Use(gin.Recovery())

	g := &gate{srv: s, processor: processor}
	engine.NoRoute(g.handle)

	return engine
}

// requestIDMiddleware propagates or generates an X-Request-ID per request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// gate screens HTTP requests before they reach the processor: host header,
// access control, method/content-type matrix, CORS preflight, health path.
type gate struct {
	srv       *Server
	processor *router.Processor
}

func (g *gate) handle(c *gin.Context) {
	req := c.Request

	host := req.Host
	if host == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	origin := req.Header.Get("Origin")
	corsRequestHeaders := utils.CORSRequestHeaders(req.Header.Get("Access-Control-Request-Headers"))

	policy := g.srv.accessControl
	if err := policy.VerifyHost(host); err != nil {
		g.deny(c, err, hostNotAllowedBody)
		return
	}
	if err := policy.VerifyOrigin(origin, host); err != nil {
		g.deny(c, err, originNotAllowedBody)
		return
	}
	if err := policy.VerifyHeaders(corsRequestHeaders); err != nil {
		g.deny(c, err, headerNotAllowedBody)
		return
	}

	switch req.Method {
	case http.MethodOptions:
		// CORS preflight. The access checks above already passed, so just
		// tell the browser what is allowed. A preflight without an origin
		// is malformed.
		if origin == "" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "POST")
		c.Header("Access-Control-Allow-Headers", policy.AllowedHeadersCORSValue())
		c.Status(http.StatusOK)

	case http.MethodPost:
		if !utils.IsJSONContentType(req.Header.Get("Content-Type")) {
			c.String(http.StatusUnsupportedMediaType,
				"Supplied content type is not allowed. Content-Type: application/json is required\n")
			return
		}
		g.post(c, origin, host)

	case http.MethodGet:
		health := g.srv.health
		if health != nil && req.URL.Path == health.Path {
			g.health(c, health.Method)
			return
		}
		c.Status(http.StatusMethodNotAllowed)

	default:
		c.Status(http.StatusMethodNotAllowed)
	}
}

func (g *gate) post(c *gin.Context, origin, host string) {
	limit := g.srv.maxRequestBodySize
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, int64(limit)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge,
				"Payload size exceeds the limit of %d bytes\n", limit)
			return
		}
		g.srv.logger.WithError(err).Error("Failed to read request body")
		c.Status(http.StatusInternalServerError)
		return
	}

	out := g.processor.Process(c.Request.Context(), c.Request.URL.Path, body)

	// Despite the preflight, browsers only expose the response when the
	// allow-origin header is present on the actual request too. Echo it
	// when an origin header is present and differs byte-wise from the host
	// header.
	if origin != "" && origin != host {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Data(http.StatusOK, "application/json", out)
}

func (g *gate) health(c *gin.Context, method string) {
	result, ok := g.processor.ProcessHealth(c.Request.Context(), method)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

func (g *gate) deny(c *gin.Context, err error, body string) {
	g.srv.logger.WithError(err).Warn("Denied request")
	c.String(http.StatusForbidden, body)
}
