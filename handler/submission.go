package handler

import (
	"net/http"

	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/submission"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

type SubmissionHandler struct {
	service *submission.Service
	log     *otelzap.SugaredLogger
}

func NewSubmissionHandler(service *submission.Service, log *otelzap.SugaredLogger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		log:     log,
	}
}

type createRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	WhatsApp string `json:"whatsapp" validate:"required"`
}

type createResponse struct {
	ID slotleads.SubmissionID `json:"id"`
}

func (sh SubmissionHandler) Create(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := decode(r, &req); err != nil {
		sh.log.Ctx(ctx).Errorw("Create", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	id, err := sh.service.Create(ctx, submission.Input{
		Name:     req.Name,
		Email:    req.Email,
		WhatsApp: req.WhatsApp,
	})
	if err != nil {
		sh.log.Ctx(ctx).Errorw("Create", "error", err.Error())
		respondErr(ctx, rw, statusOf(err), err)
		return
	}

	respond(ctx, rw, http.StatusCreated, createResponse{ID: id})
}

func (sh SubmissionHandler) List(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := sh.service.All(ctx)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("List", "error", err.Error())
		respondErr(ctx, rw, statusOf(err), err)
		return
	}

	respond(ctx, rw, http.StatusOK, subs)
}

func (sh SubmissionHandler) GetByID(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := submissionID(r)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("GetByID", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	sub, found, err := sh.service.Get(ctx, id)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("GetByID", "error", err.Error())
		respondErr(ctx, rw, statusOf(err), err)
		return
	}
	if !found {
		respondErr(ctx, rw, http.StatusNotFound, slotleads.ErrNotFound)
		return
	}

	respond(ctx, rw, http.StatusOK, sub)
}

func (sh SubmissionHandler) MarkPaid(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := submissionID(r)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("MarkPaid", "error", err.Error())
		respondErr(ctx, rw, http.StatusBadRequest, err)
		return
	}

	sub, err := sh.service.MarkPaid(ctx, id)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("MarkPaid", "error", err.Error())
		respondErr(ctx, rw, statusOf(err), err)
		return
	}

	respond(ctx, rw, http.StatusOK, sub)
}

type slotsResponse struct {
	Remaining int `json:"remaining"`
}

func (sh SubmissionHandler) Slots(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := sh.service.RemainingSlots(ctx)
	if err != nil {
		sh.log.Ctx(ctx).Errorw("Slots", "error", err.Error())
		respondErr(ctx, rw, http.StatusInternalServerError, err)
		return
	}

	respond(ctx, rw, http.StatusOK, slotsResponse{Remaining: n})
}

type offerResponse struct {
	slotleads.Offer
	Price string `json:"price"`
}

func (sh SubmissionHandler) Offer(rw http.ResponseWriter, r *http.Request) {
	offer := sh.service.Offer()
	respond(r.Context(), rw, http.StatusOK, offerResponse{Offer: offer, Price: offer.Price()})
}
