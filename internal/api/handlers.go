package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"equiminer/internal/miner"
	"equiminer/pkg/equihash"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Mining    bool   `json:"mining"`
	Workers   int    `json:"workers"`
	HasJob    bool   `json:"has_job"`
	Params    string `json:"params"`
	Uptime    string `json:"uptime"`
	UserAgent string `json:"user_agent"`
}

// JobResponse describes the current job
type JobResponse struct {
	ID          string `json:"id"`
	Clean       bool   `json:"clean"`
	Target      string `json:"target"`
	PartialHash string `json:"partial_hash"`
	Time        string `json:"time"`
	Nonce1      string `json:"nonce1"`
}

// NotifyRequest carries raw mining.notify params
type NotifyRequest struct {
	Params []interface{} `json:"params" binding:"required"`
}

// Nonce1Request sets the server nonce
type Nonce1Request struct {
	Nonce1 string `json:"nonce1" binding:"required"`
}

// VerifyRequest asks for an Equihash check of solution against header,
// both hex encoded. header is the full preimage including the nonce.
type VerifyRequest struct {
	Header   string `json:"header" binding:"required"`
	Solution string `json:"solution" binding:"required"`
}

// VerifyResponse is the verification outcome
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Round  int    `json:"round,omitempty"`
}

// ResultRequest reports the pool's answer to a submission
type ResultRequest struct {
	Accepted bool `json:"accepted"`
	Stale    bool `json:"stale"`
	Failed   bool `json:"failed"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "idle"
	mining := s.miner.IsMining()
	hasJob := s.miner.CurrentJob() != nil
	if mining {
		status = "waiting"
		if hasJob {
			status = "mining"
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Version:   miner.Version,
		Mining:    mining,
		Workers:   s.miner.WorkerCount(),
		HasJob:    hasJob,
		Params:    s.miner.Params().String(),
		Uptime:    time.Since(s.startTime).String(),
		UserAgent: s.miner.UserAgent(),
	})
}

func (s *Server) handleSpeed(c *gin.Context) {
	c.JSON(http.StatusOK, s.miner.Speed().Snapshot())
}

func (s *Server) handleWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workers": s.miner.Workers()})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.miner.CurrentJob()
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no job"})
		return
	}
	sn, _ := s.miner.ServerNonce()
	c.JSON(http.StatusOK, JobResponse{
		ID:          job.ID,
		Clean:       job.Clean,
		Target:      job.Target.Hex(),
		PartialHash: hex.EncodeToString(job.Header.PartialHash[:]),
		Time:        job.Time,
		Nonce1:      sn.Hex(),
	})
}

func (s *Server) handleNotify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	job, err := s.miner.Notify(req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "clean": job.Clean})
}

func (s *Server) handlePause(c *gin.Context) {
	s.miner.SetJob(nil)
	c.JSON(http.StatusOK, gin.H{"message": "mining paused"})
}

func (s *Server) handleNonce1(c *gin.Context) {
	var req Nonce1Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.miner.SetServerNonce(req.Nonce1); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce1": req.Nonce1})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	header, err := hex.DecodeString(req.Header)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hex in header"})
		return
	}
	sol, err := hex.DecodeString(req.Solution)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hex in solution"})
		return
	}
	c.JSON(http.StatusOK, verifyResponse(s.verifier.Validate(header, sol)))
}

func verifyResponse(err error) VerifyResponse {
	if err == nil {
		return VerifyResponse{Valid: true}
	}
	resp := VerifyResponse{Reason: err.Error()}
	var serr *equihash.SolutionError
	if errors.As(err, &serr) {
		resp.Reason = string(serr.Reason)
		resp.Round = serr.Round
	}
	return resp
}

func (s *Server) handleShare(c *gin.Context) {
	var req miner.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := miner.CheckShare(s.verifier, s.miner.CurrentJob(), req, s.registry)
	if err != nil {
		var serr *miner.ShareError
		if errors.As(err, &serr) {
			c.JSON(http.StatusOK, gin.H{"result": nil, "error": []interface{}{serr.Code, serr.Message, nil}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Debugf("Accepted share %s for job %s", res.Hash, res.JobID)
	c.JSON(http.StatusOK, gin.H{"result": true, "hash": res.Hash, "error": nil})
}

func (s *Server) handleSolutions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal not enabled"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	records, err := s.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"solutions": records})
}

func (s *Server) handleResult(c *gin.Context) {
	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch {
	case req.Failed:
		s.miner.FailedSolution()
	case req.Accepted:
		s.miner.AcceptedSolution(req.Stale)
	default:
		s.miner.RejectedSolution(req.Stale)
	}
	c.JSON(http.StatusOK, s.miner.Speed().Snapshot())
}
