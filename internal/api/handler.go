package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/config"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/reconciler"
)

// EnsureRequest is the body of POST /v1/recordsets/ensure. Omitted optional
// fields take the same defaults as the command line.
type EnsureRequest struct {
	Zone      string   `json:"zone" binding:"required"`
	Name      string   `json:"name"`
	Type      string   `json:"type" binding:"required"`
	Content   []string `json:"content"`
	TTL       *int     `json:"ttl"`
	Disabled  bool     `json:"disabled"`
	Exclusive *bool    `json:"exclusive"`
	SetPTR    bool     `json:"set_ptr"`
	State     string   `json:"state"`
	Check     bool     `json:"check"`
}

func (r EnsureRequest) spec() config.RecordSpec {
	spec := config.DefaultRecordSpec()
	spec.Zone = r.Zone
	spec.Name = r.Name
	spec.Type = r.Type
	spec.Content = r.Content
	spec.Disabled = r.Disabled
	spec.SetPTR = r.SetPTR
	if r.TTL != nil {
		spec.TTL = *r.TTL
	}
	if r.Exclusive != nil {
		spec.Exclusive = *r.Exclusive
	}
	if r.State != "" {
		spec.State = r.State
	}
	return spec
}

// RecordsetHandler handles recordset reconcile endpoints.
type RecordsetHandler struct {
	provider dns.Provider
	log      logr.Logger
}

// NewRecordsetHandler creates a RecordsetHandler backed by provider.
func NewRecordsetHandler(log logr.Logger, provider dns.Provider) *RecordsetHandler {
	return &RecordsetHandler{provider: provider, log: log}
}

// Ensure handles POST /v1/recordsets/ensure.
func (h *RecordsetHandler) Ensure(c *gin.Context) {
	var req EnsureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, err.Error(), 0)
		return
	}

	desired, err := req.spec().DesiredState()
	if err != nil {
		writeError(c, err)
		return
	}

	rec := reconciler.New(h.log, h.provider, reconciler.WithCheckMode(req.Check))
	res, err := rec.Reconcile(c.Request.Context(), desired)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Changed: res.Changed, Action: string(res.Action), Record: res.Record})
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		invalid   *dns.InvalidRequestError
		malformed *dns.MalformedContentError
		upstream  *dns.UpstreamError
	)
	switch {
	case errors.As(err, &invalid):
		Fail(c, http.StatusBadRequest, err.Error(), 0)
	case errors.As(err, &malformed):
		Fail(c, http.StatusUnprocessableEntity, err.Error(), 0)
	case errors.As(err, &upstream):
		Fail(c, http.StatusBadGateway, err.Error(), upstream.StatusCode)
	default:
		Fail(c, http.StatusInternalServerError, err.Error(), 0)
	}
}
