package apitest

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"childbehavior/internal/models"
	"childbehavior/internal/security"
	"childbehavior/internal/validation"
)

type rewardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Image       string `json:"image"`
	Stock       *int   `json:"stock"`
	IsActive    *bool  `json:"is_active"`
}

// catalogOwner returns the parent whose catalog the caller sees. Callers hold s.mu.
func (s *Server) catalogOwner(claims *Claims) int64 {
	if claims.Role == string(models.RoleParent) {
		return claims.UserID
	}
	if acc, ok := s.accounts[claims.UserID]; ok && acc.user.ParentID != nil {
		return *acc.user.ParentID
	}
	return 0
}

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	activeFilter := r.URL.Query().Get("is_active")

	s.mu.RLock()
	owner := s.catalogOwner(claimsFrom(r.Context()))
	rewards := []models.Reward{}
	for _, rw := range s.rewards {
		if rw.CreatedBy != owner {
			continue
		}
		if activeFilter != "" && rw.IsActive != (activeFilter == "true") {
			continue
		}
		rewards = append(rewards, *rw)
	}
	s.mu.RUnlock()

	sort.Slice(rewards, func(i, j int) bool { return rewards[i].ID < rewards[j].ID })

	writeJSON(w, map[string]interface{}{
		"rewards":    paginate(rewards, page, limit),
		"pagination": pagination{Page: page, Limit: limit, Total: int64(len(rewards))},
	})
}

func (s *Server) handleCreateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive points cost are required", nil)
		return
	}

	reward := &models.Reward{
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		Image:       req.Image,
		IsActive:    true,
		CreatedBy:   claimsFrom(r.Context()).UserID,
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}

	s.mu.Lock()
	reward.ID = s.newID()
	reward.CreatedAt = s.now()
	s.rewards[reward.ID] = reward
	created := *reward
	s.mu.Unlock()

	writeJSON(w, created)
}

func (s *Server) ownedReward(w http.ResponseWriter, r *http.Request) (*models.Reward, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reward ID", nil)
		return nil, false
	}
	reward, ok := s.rewards[id]
	if !ok || reward.CreatedBy != claimsFrom(r.Context()).UserID {
		writeError(w, http.StatusNotFound, "Reward not found", nil)
		return nil, false
	}
	return reward, true
}

func (s *Server) handleUpdateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reward, ok := s.ownedReward(w, r)
	if !ok {
		return
	}
	if req.Name != "" {
		reward.Name = req.Name
	}
	if req.Description != "" {
		reward.Description = req.Description
	}
	if req.Points > 0 {
		reward.Points = req.Points
	}
	if req.Image != "" {
		reward.Image = req.Image
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}

	writeJSON(w, map[string]string{"message": "Reward updated successfully"})
}

func (s *Server) handleDeleteReward(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reward, ok := s.ownedReward(w, r)
	if !ok {
		return
	}

	for _, ex := range s.exchanges {
		if ex.RewardID == reward.ID {
			reward.IsActive = false
			writeJSON(w, map[string]string{"message": "Reward deactivated successfully"})
			return
		}
	}
	delete(s.rewards, reward.ID)
	writeJSON(w, map[string]string{"message": "Reward deleted successfully"})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RewardID   int64 `json:"reward_id"`
		PointsUsed int   `json:"points_used"`
		ChildID    int64 `json:"child_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	redeemer := claims.UserID
	if claims.Role == string(models.RoleParent) {
		if !s.ownsChild(claims.UserID, req.ChildID) {
			writeError(w, http.StatusBadRequest, "child_id is required when redeeming for a child", nil)
			return
		}
		redeemer = req.ChildID
	}

	reward, ok := s.rewards[req.RewardID]
	if !ok || reward.CreatedBy != s.catalogOwner(claims) {
		writeError(w, http.StatusNotFound, "Reward not found", nil)
		return
	}
	if !reward.InStock() {
		writeError(w, http.StatusBadRequest, "Reward is not available", nil)
		return
	}
	if req.PointsUsed != reward.Points {
		writeError(w, http.StatusBadRequest, "Points do not match reward cost", nil)
		return
	}

	acc := s.accounts[redeemer]
	if acc.user.AvailablePoints < reward.Points {
		writeError(w, http.StatusBadRequest, "Insufficient points", nil)
		return
	}
	acc.user.AvailablePoints -= reward.Points
	reward.Stock--

	snapshot := *reward
	record := models.ExchangeRecord{
		ID:          s.newID(),
		UserID:      redeemer,
		RewardID:    reward.ID,
		PointsUsed:  reward.Points,
		Status:      models.ExchangeCompleted,
		ExchangedAt: s.now(),
		Reward:      &snapshot,
	}
	s.exchanges = append(s.exchanges, record)

	writeJSON(w, record)
}

func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	claims := claimsFrom(r.Context())

	s.mu.RLock()
	visible := map[int64]bool{claims.UserID: true}
	if claims.Role == string(models.RoleParent) {
		for _, c := range s.childrenOf(claims.UserID) {
			visible[c.ID] = true
		}
	}
	records := []models.ExchangeRecord{}
	for i := len(s.exchanges) - 1; i >= 0; i-- {
		if visible[s.exchanges[i].UserID] {
			records = append(records, s.exchanges[i])
		}
	}
	s.mu.RUnlock()

	writeJSON(w, map[string]interface{}{
		"exchanges":  paginate(records, page, limit),
		"pagination": pagination{Page: page, Limit: limit, Total: int64(len(records))},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxUploadSize+1024*1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", nil)
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	contentType := http.DetectContentType(head[:n])
	size := int64(n)
	rest, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", nil)
		return
	}
	size += rest

	if err := validation.ValidateUpload(contentType, size); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filename := fmt.Sprintf("%s%s", security.GenerateRequestID(), filepath.Ext(header.Filename))
	writeJSON(w, map[string]interface{}{
		"filename":      filename,
		"original_name": header.Filename,
		"size":          size,
		"content_type":  contentType,
		"url":           "/uploads/" + filename,
		"uploaded_at":   s.now(),
	})
}
