package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/access"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type RoleHandler struct {
	guard *access.Guard
	log   *otelzap.SugaredLogger
}

func NewRoleHandler(guard *access.Guard, log *otelzap.SugaredLogger) *RoleHandler {
	return &RoleHandler{
		guard: guard,
		log:   log,
	}
}

type meResponse struct {
	Identity slotleads.Identity `json:"identity"`
	Role     slotleads.Role     `json:"role"`
	IsAdmin  bool               `json:"is_admin"`
}

func (rh RoleHandler) Me(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	role, err := rh.guard.Role(ctx)
	if err != nil {
		rh.log.Ctx(ctx).Errorw("Me", "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}

	respond(ctx, rw, http.StatusOK, meResponse{
		Identity: slotleads.CallerFrom(ctx),
		Role:     role,
		IsAdmin:  role == slotleads.RoleAdmin,
	})
}

type assignRequest struct {
	Role slotleads.Role `json:"role" validate:"required"`
}

func (rh RoleHandler) Assign(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, err := url.PathUnescape(chi.URLParam(r, "identity"))
	if err != nil {
		err = fmt.Errorf("%w: identity is not in its proper form", slotleads.ErrInvalidInput)
		rh.log.Ctx(ctx).Errorw("Assign", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	var req assignRequest
	if err := decode(r, &req); err != nil {
		rh.log.Ctx(ctx).Errorw("Assign", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	if err := rh.guard.Assign(ctx, slotleads.Identity(target), req.Role); err != nil {
		rh.log.Ctx(ctx).Errorw("Assign", "target", target, "error", err.Error())
		respondErr(ctx, rw, statusOf(err), err)
		return
	}

	rh.log.Ctx(ctx).Infow("Assign", "target", target, "role", req.Role, "by", slotleads.CallerFrom(ctx))
	respond(ctx, rw, http.StatusNoContent, nil)
}
