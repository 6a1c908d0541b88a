package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/evals"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/jobs"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/server/middleware"
	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/types"
)

// CreateJobRequest is the payload for POST /jobs.
type CreateJobRequest struct {
	Keyword       string         `json:"keyword" validate:"required,min=2,max=200"`
	MaxIterations int            `json:"max_iterations" validate:"omitempty,min=1,max=10"`
	Priority      int            `json:"priority" validate:"omitempty,min=0,max=100"`
	Settings      map[string]any `json:"settings"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	createdBy, err := middleware.GetSubject(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	job, err := s.jobService.Create(r.Context(), jobs.CreateParams{
		Keyword:       req.Keyword,
		MaxIterations: req.MaxIterations,
		Priority:      req.Priority,
		Settings:      req.Settings,
		CreatedBy:     createdBy,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var status *types.JobStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := types.JobStatus(v)
		switch st {
		case types.JobStatusPending, types.JobStatusProcessing, types.JobStatusCompleted,
			types.JobStatusFailed, types.JobStatusCancelled:
			status = &st
		default:
			s.errorResponse(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}
	keyword := r.URL.Query().Get("keyword")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	listed, err := s.jobService.List(r.Context(), status, keyword, limit, offset)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if listed == nil {
		listed = []*types.Job{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": listed})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	detail, err := s.jobService.GetDetail(r.Context(), jobID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, detail)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	job, err := s.jobService.Cancel(r.Context(), jobID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleJobStream streams job progress as Server-Sent Events until the job
// reaches a terminal status or the client disconnects.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	// Reject before hijacking the response for SSE.
	if _, err := s.jobService.Get(r.Context(), jobID); err != nil {
		s.serviceError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	for ev := range s.watcher.Watch(r.Context(), jobID) {
		if err := sse.WriteEvent(string(ev.Type), ev); err != nil {
			return
		}
	}
}

// CreateEvalRequest is the payload for POST /jobs/{id}/evals.
type CreateEvalRequest struct {
	Scores   types.DimensionScores `json:"scores"`
	Issues   []types.EvalIssue     `json:"issues"`
	Feedback string                `json:"feedback" validate:"max=5000"`
}

func (s *Server) handleCreateEval(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req CreateEvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ratedBy, err := middleware.GetSubject(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	eval, err := s.evalService.RecordHumanEval(r.Context(), jobID, evals.HumanEvalParams{
		Scores:   req.Scores,
		Issues:   req.Issues,
		Feedback: req.Feedback,
		RatedBy:  ratedBy,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, eval)
}

// PromoteGoldenRequest is the payload for POST /jobs/{id}/golden.
type PromoteGoldenRequest struct {
	Title       string   `json:"title" validate:"omitempty,max=200"`
	Description string   `json:"description" validate:"omitempty,max=1000"`
	Tags        []string `json:"tags" validate:"max=10,dive,min=1,max=50"`
}

func (s *Server) handlePromoteGolden(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req PromoteGoldenRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := s.validator.Struct(req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, validationMessage(err))
			return
		}
	}

	createdBy, err := middleware.GetSubject(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	promoted, err := s.evalService.PromoteGoldenExamples(r.Context(), jobID, evals.PromoteParams{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedBy:   createdBy,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{"golden_examples": promoted})
}

func (s *Server) handleListGoldenExamples(w http.ResponseWriter, r *http.Request) {
	var agentType *types.AgentType
	if v := r.URL.Query().Get("agent_type"); v != "" {
		at := types.AgentType(v)
		if !at.Valid() {
			s.errorResponse(w, http.StatusBadRequest, "Invalid agent_type filter")
			return
		}
		agentType = &at
	}

	examples, err := s.catalog.ListGoldenExamples(r.Context(), agentType)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if examples == nil {
		examples = []*types.GoldenExample{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"golden_examples": examples})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.catalog.ListPersonas(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if personas == nil {
		personas = []*types.Persona{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"personas": personas})
}

// pathID parses the {id} path segment, writing a 400 on failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// validationMessage flattens validator errors into a readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag()+" validation")
	}
	return strings.Join(parts, "; ")
}
