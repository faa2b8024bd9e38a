package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chcemvediet/portal/src/application/service"
	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

// Web is the JSON API. It does no lifecycle logic of its own; every write
// goes through the services so the same invariants hold no matter where a
// request comes from.
type Web struct {
	Config config.WebConfig

	Logger              zerolog.Logger
	Engine              *config.Engine
	InforequestService  service.InforequestService
	CorrelationService  service.CorrelationService
	ObligeeService      service.ObligeeService
	DraftService        service.DraftService
	MessageService      service.MessageService
	Metrics             *config.Metrics
	Db                  config.PgxIface
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Config.Listen).Msg("Starting")

	router := mux.NewRouter().StrictSlash(true)
	router.NotFoundHandler = http.NotFoundHandler()

	router.HandleFunc("/api/health", self.HealthGet).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(self.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.HandleFunc("/api/obligee", self.ObligeeList).Methods(http.MethodGet)
	router.HandleFunc("/api/obligee", self.ObligeeCreate).Methods(http.MethodPost)
	router.HandleFunc("/api/obligee/{id}", self.ObligeeGet).Methods(http.MethodGet)
	router.HandleFunc("/api/obligee/{id}", self.ObligeeUpdate).Methods(http.MethodPut)
	router.HandleFunc("/api/obligee/{id}", self.ObligeeDissolve).Methods(http.MethodDelete)

	router.HandleFunc("/api/inforequest", self.InforequestList).Methods(http.MethodGet)
	router.HandleFunc("/api/inforequest", self.InforequestSubmit).Methods(http.MethodPost)
	router.HandleFunc("/api/inforequest/{id}", self.InforequestGet).Methods(http.MethodGet)
	router.HandleFunc("/api/inforequest/{id}/close", self.InforequestClose).Methods(http.MethodPost)
	router.HandleFunc("/api/inforequest/{id}/branch/{branch}/action", self.ActionAppend).Methods(http.MethodPost)

	router.HandleFunc("/api/link/{id}/decide", self.LinkDecide).Methods(http.MethodPost)

	router.HandleFunc("/api/draft", self.DraftList).Methods(http.MethodGet)
	router.HandleFunc("/api/draft", self.DraftSave).Methods(http.MethodPost)
	router.HandleFunc("/api/draft/{id}", self.DraftDelete).Methods(http.MethodDelete)
	router.HandleFunc("/api/draft/{id}/submit", self.DraftSubmit).Methods(http.MethodPost)

	router.HandleFunc("/api/inforequest/{id}/action-draft", self.ActionDraftList).Methods(http.MethodGet)
	router.HandleFunc("/api/inforequest/{id}/action-draft", self.ActionDraftSave).Methods(http.MethodPost)
	router.HandleFunc("/api/action-draft/{id}", self.ActionDraftDelete).Methods(http.MethodDelete)
	router.HandleFunc("/api/action-draft/{id}/submit", self.ActionDraftSubmit).Methods(http.MethodPost)

	server := &http.Server{Addr: self.Config.Listen, Handler: router}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			self.Logger.Err(err).Msgf("Failed to start web server on %s", self.Config.Listen)
		}
	}()

	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		self.Logger.Err(err).Msg("Failed to stop web server")
	}

	return nil
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Int("status", status).Err(err).Msg("Handler error")

	var msg string
	if err != nil {
		msg = err.Error()
	}
	http.Error(w, msg, status)
}

// domainError picks the HTTP status for an error coming out of the
// services.
func (self *Web) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		self.Error(w, HandlerError{err, http.StatusNotFound})
	case errors.Is(err, domain.ErrIllegalAction),
		errors.Is(err, domain.ErrOutOfOrderDate),
		errors.Is(err, domain.ErrDuplicateUniqueEmail):
		self.Error(w, HandlerError{err, http.StatusConflict})
	case errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrForbiddenField):
		self.Error(w, HandlerError{err, http.StatusBadRequest})
	default:
		self.Error(w, HandlerError{err, http.StatusInternalServerError})
	}
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) ClientError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusBadRequest})
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.Logger.Err(err).Msg("While encoding response")
	}
}

func (self *Web) decode(w http.ResponseWriter, req *http.Request, into any) bool {
	if err := json.NewDecoder(req.Body).Decode(into); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding request body"))
		return false
	}
	return true
}

func pathId(req *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(req)[name], 10, 64)
	return id, errors.WithMessagef(err, "Could not parse %q", name)
}

func pageOf(req *http.Request) *repository.Page {
	page := &repository.Page{Limit: 50}
	if v, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		page.Limit = v
	}
	if v, err := strconv.Atoi(req.URL.Query().Get("offset")); err == nil && v >= 0 {
		page.Offset = v
	}
	return page
}

func (self *Web) HealthGet(w http.ResponseWriter, req *http.Request) {
	self.json(w, map[string]any{"status": "ok", "build": domain.BuildInfo}, http.StatusOK)
}

func (self *Web) ObligeeList(w http.ResponseWriter, req *http.Request) {
	page := pageOf(req)
	obligees, err := self.ObligeeService.GetAll(page)
	if err != nil {
		self.ServerError(w, err)
		return
	}
	self.json(w, map[string]any{"obligees": obligees, "page": page}, http.StatusOK)
}

func (self *Web) ObligeeCreate(w http.ResponseWriter, req *http.Request) {
	obligee := domain.Obligee{}
	if !self.decode(w, req, &obligee) {
		return
	}
	if err := self.ObligeeService.Create(&obligee); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, obligee, http.StatusCreated)
}

func (self *Web) ObligeeGet(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	obligee, err := self.ObligeeService.GetById(id)
	if err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, obligee, http.StatusOK)
}

func (self *Web) ObligeeUpdate(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	obligee := domain.Obligee{}
	if !self.decode(w, req, &obligee) {
		return
	}
	obligee.ID = id
	if err := self.ObligeeService.Update(&obligee); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, obligee, http.StatusOK)
}

func (self *Web) ObligeeDissolve(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	if err := self.ObligeeService.Dissolve(id); err != nil {
		self.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (self *Web) InforequestList(w http.ResponseWriter, req *http.Request) {
	page := pageOf(req)

	var inforequests []domain.Inforequest
	var err error
	if raw := req.URL.Query().Get("applicant"); raw != "" {
		applicantId, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			self.ClientError(w, errors.WithMessage(parseErr, "Could not parse applicant id"))
			return
		}
		inforequests, err = self.InforequestService.GetByApplicantId(applicantId, page)
	} else {
		inforequests, err = self.InforequestService.GetAll(page)
	}
	if err != nil {
		self.ServerError(w, err)
		return
	}
	self.json(w, map[string]any{"inforequests": inforequests, "page": page}, http.StatusOK)
}

type submitRequest struct {
	ApplicantId     int64  `json:"applicant_id"`
	ApplicantName   string `json:"applicant_name"`
	ApplicantStreet string `json:"applicant_street"`
	ApplicantCity   string `json:"applicant_city"`
	ApplicantZip    string `json:"applicant_zip"`
	ApplicantEmail  string `json:"applicant_email"`
	ObligeeId       int64  `json:"obligee_id"`
	Subject         string `json:"subject"`
	Content         string `json:"content"`
}

func (self *submitRequest) inforequest() *domain.Inforequest {
	return &domain.Inforequest{
		ApplicantID:     self.ApplicantId,
		ApplicantName:   self.ApplicantName,
		ApplicantStreet: self.ApplicantStreet,
		ApplicantCity:   self.ApplicantCity,
		ApplicantZip:    self.ApplicantZip,
		ApplicantEmail:  self.ApplicantEmail,
		Subject:         self.Subject,
		Content:         self.Content,
	}
}

func (self *Web) InforequestSubmit(w http.ResponseWriter, req *http.Request) {
	submit := submitRequest{}
	if !self.decode(w, req, &submit) {
		return
	}
	inforequest := submit.inforequest()
	if err := self.InforequestService.Submit(inforequest, submit.ObligeeId); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, inforequest, http.StatusCreated)
}

type apiDeadline struct {
	Kind      string     `json:"kind"`
	Date      *time.Time `json:"date,omitempty"`
	Remaining *int       `json:"remaining,omitempty"`
	Missed    bool       `json:"missed"`
}

type apiBranch struct {
	Id                int64                   `json:"id"`
	Main              bool                    `json:"main"`
	Obligee           *domain.ObligeeSnapshot `json:"obligee"`
	Actions           []*domain.Action        `json:"actions"`
	Terminal          bool                    `json:"terminal"`
	ObligeeDeadline   *apiDeadline            `json:"obligee_deadline,omitempty"`
	ApplicantDeadline *apiDeadline            `json:"applicant_deadline,omitempty"`
	ExpectedNext      []string                `json:"expected_next"`
}

func (self *Web) apiDeadline(deadline *domain.Deadline, today time.Time) (*apiDeadline, error) {
	if deadline == nil {
		return nil, nil
	}
	date, err := deadline.Date(self.Engine.Calendar)
	if err != nil {
		return nil, err
	}
	remaining, err := deadline.RemainingAt(self.Engine.Calendar, today)
	if err != nil {
		return nil, err
	}
	return &apiDeadline{
		Kind:      deadline.Kind.String(),
		Date:      &date,
		Remaining: &remaining,
		Missed:    remaining < 0,
	}, nil
}

func (self *Web) apiBranch(detail *service.BranchDetail, today time.Time) (*apiBranch, error) {
	branch := &apiBranch{
		Id:      detail.Branch.ID,
		Main:    detail.Branch.IsMain(),
		Obligee: detail.Obligee,
		Actions: detail.State.Actions,
	}
	if branch.Actions == nil {
		branch.Actions = []*domain.Action{}
	}
	branch.Terminal = detail.State.Terminal

	var err error
	if branch.ObligeeDeadline, err = self.apiDeadline(detail.State.ObligeeDeadline, today); err != nil {
		return nil, err
	}
	if branch.ApplicantDeadline, err = self.apiDeadline(detail.State.ApplicantDeadline, today); err != nil {
		return nil, err
	}

	expected, err := detail.State.ExpectedNext(today)
	if err != nil {
		return nil, err
	}
	branch.ExpectedNext = []string{}
	for _, typ := range expected {
		branch.ExpectedNext = append(branch.ExpectedNext, typ.String())
	}
	return branch, nil
}

func (self *Web) InforequestGet(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	detail, err := self.InforequestService.Detail(id)
	if err != nil {
		self.domainError(w, err)
		return
	}

	today := self.Engine.Calendar.Today()
	branches := []*apiBranch{}
	for i := range detail.Branches {
		branch, err := self.apiBranch(&detail.Branches[i], today)
		if err != nil {
			self.ServerError(w, err)
			return
		}
		branches = append(branches, branch)
	}
	self.json(w, map[string]any{
		"inforequest": detail.Inforequest,
		"branches":    branches,
	}, http.StatusOK)
}

func (self *Web) InforequestClose(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	if err := self.InforequestService.Close(id); err != nil {
		self.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type actionRequest struct {
	Type            string   `json:"type"`
	Subject         string   `json:"subject"`
	Content         string   `json:"content"`
	EffectiveDate   string   `json:"effective_date"`
	FileNumber      string   `json:"file_number"`
	ExtensionDays   *int     `json:"extension_days"`
	DisclosureLevel *int16   `json:"disclosure_level"`
	RefusalReasons  []string `json:"refusal_reasons"`
	AdvanceTo       []int64  `json:"advance_to"`
}

func (self *actionRequest) action() (*domain.Action, error) {
	var typ domain.ActionType
	if err := typ.FromString(self.Type); err != nil {
		return nil, err
	}

	action := &domain.Action{
		Type:        typ,
		Subject:     self.Subject,
		Content:     self.Content,
		ContentType: domain.ContentTypePlain,
		FileNumber:  self.FileNumber,
	}
	if self.EffectiveDate != "" {
		date, err := time.Parse("2006-01-02", self.EffectiveDate)
		if err != nil {
			return nil, errors.WithMessagef(err, "Could not parse effective date %q", self.EffectiveDate)
		}
		action.EffectiveDate = date
	}
	action.ExtensionDays = self.ExtensionDays
	if self.DisclosureLevel != nil {
		level := domain.DisclosureLevel(*self.DisclosureLevel)
		action.DisclosureLevel = &level
	}
	if self.RefusalReasons != nil {
		reasons, err := domain.ParseReasonSet(strings.Join(self.RefusalReasons, ","))
		if err != nil {
			return nil, err
		}
		action.RefusalReasons = reasons
	}
	return action, nil
}

// ActionAppend records an applicant action, or an obligee action received
// on paper, on a branch.
func (self *Web) ActionAppend(w http.ResponseWriter, req *http.Request) {
	inforequestId, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	branchId, err := pathId(req, "branch")
	if err != nil {
		self.ClientError(w, err)
		return
	}

	request := actionRequest{}
	if !self.decode(w, req, &request) {
		return
	}
	action, err := request.action()
	if err != nil {
		self.ClientError(w, err)
		return
	}

	if action.Type.IsObligee() {
		err = self.InforequestService.AppendObligeeAction(inforequestId, branchId, action, request.AdvanceTo)
	} else {
		err = self.InforequestService.AppendApplicantAction(inforequestId, branchId, action)
	}
	if err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, action, http.StatusCreated)
}

type decideRequest struct {
	Decision string `json:"decision"`
	BranchId int64  `json:"branch_id"`
	actionRequest
}

// LinkDecide resolves an undecided inbound message: as an obligee action
// on a branch, or by setting it aside as unrelated or unknown.
func (self *Web) LinkDecide(w http.ResponseWriter, req *http.Request) {
	linkId, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	request := decideRequest{}
	if !self.decode(w, req, &request) {
		return
	}

	switch request.Decision {
	case "unrelated":
		err = self.CorrelationService.DecideUnrelated(linkId)
	case "unknown":
		err = self.CorrelationService.DecideUnknown(linkId)
	case "obligee-action":
		var action *domain.Action
		if action, err = request.action(); err != nil {
			self.ClientError(w, err)
			return
		}
		err = self.CorrelationService.DecideObligeeAction(linkId, request.BranchId, action, request.AdvanceTo)
	default:
		self.ClientError(w, errors.Errorf("unknown decision %q", request.Decision))
		return
	}

	if err != nil {
		self.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (self *Web) DraftList(w http.ResponseWriter, req *http.Request) {
	applicantId, err := strconv.ParseInt(req.URL.Query().Get("applicant"), 10, 64)
	if err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not parse applicant id"))
		return
	}
	drafts, err := self.DraftService.GetInforequestDraftsByApplicantId(applicantId)
	if err != nil {
		self.ServerError(w, err)
		return
	}
	if drafts == nil {
		drafts = []domain.InforequestDraft{}
	}
	self.json(w, drafts, http.StatusOK)
}

func (self *Web) DraftSave(w http.ResponseWriter, req *http.Request) {
	draft := domain.InforequestDraft{}
	if !self.decode(w, req, &draft) {
		return
	}
	if err := self.DraftService.SaveInforequestDraft(&draft); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, draft, http.StatusCreated)
}

func (self *Web) DraftDelete(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	if err := self.DraftService.DeleteInforequestDraft(id); err != nil {
		self.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (self *Web) DraftSubmit(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	submit := submitRequest{}
	if !self.decode(w, req, &submit) {
		return
	}
	inforequest := submit.inforequest()
	if err := self.InforequestService.SubmitDraft(id, inforequest); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, inforequest, http.StatusCreated)
}

func (self *Web) ActionDraftList(w http.ResponseWriter, req *http.Request) {
	inforequestId, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	drafts, err := self.DraftService.GetActionDraftsByInforequestId(inforequestId)
	if err != nil {
		self.ServerError(w, err)
		return
	}
	if drafts == nil {
		drafts = []domain.ActionDraft{}
	}
	self.json(w, drafts, http.StatusOK)
}

func (self *Web) ActionDraftSave(w http.ResponseWriter, req *http.Request) {
	inforequestId, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	draft := domain.ActionDraft{}
	if !self.decode(w, req, &draft) {
		return
	}
	draft.InforequestID = inforequestId
	if err := self.DraftService.SaveActionDraft(&draft); err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, draft, http.StatusCreated)
}

func (self *Web) ActionDraftDelete(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	if err := self.DraftService.DeleteActionDraft(id); err != nil {
		self.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActionDraftSubmit turns the draft into a real action on its branch.
func (self *Web) ActionDraftSubmit(w http.ResponseWriter, req *http.Request) {
	id, err := pathId(req, "id")
	if err != nil {
		self.ClientError(w, err)
		return
	}
	action, err := self.InforequestService.SubmitActionDraft(id)
	if err != nil {
		self.domainError(w, err)
		return
	}
	self.json(w, action, http.StatusCreated)
}
