package apitest

import (
	"net/http"
	"sort"
	"strconv"

	"childbehavior/internal/models"
)

type childRequest struct {
	Nickname string `json:"nickname"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Avatar   string `json:"avatar"`
}

func childView(acc *account) models.Child {
	return models.Child{
		ID:              acc.user.ID,
		ParentID:        *acc.user.ParentID,
		Nickname:        acc.user.Nickname,
		Avatar:          acc.user.Avatar,
		Age:             acc.age,
		Gender:          acc.gender,
		AvailablePoints: acc.user.AvailablePoints,
		TotalPoints:     acc.user.TotalPoints,
		CreatedAt:       acc.user.CreatedAt,
		UpdatedAt:       acc.user.UpdatedAt,
	}
}

// childrenOf returns a parent's children ordered by ID. Callers hold s.mu.
func (s *Server) childrenOf(parentID int64) []models.Child {
	children := []models.Child{}
	for id, acc := range s.accounts {
		if s.ownsChild(parentID, id) {
			children = append(children, childView(acc))
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	children := s.childrenOf(claimsFrom(r.Context()).UserID)
	s.mu.RUnlock()

	writeJSON(w, children)
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Nickname == "" {
		writeError(w, http.StatusBadRequest, "nickname is required", nil)
		return
	}

	parentID := claimsFrom(r.Context()).UserID

	s.mu.Lock()
	now := s.now()
	acc := &account{
		user: models.User{
			ID:        s.newID(),
			Nickname:  req.Nickname,
			Avatar:    req.Avatar,
			Role:      models.RoleChild,
			ParentID:  &parentID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		age:    req.Age,
		gender: req.Gender,
	}
	s.accounts[acc.user.ID] = acc
	child := childView(acc)
	s.mu.Unlock()

	writeJSON(w, child)
}

func (s *Server) childForRequest(w http.ResponseWriter, r *http.Request) (*account, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid child ID", nil)
		return nil, false
	}
	if !s.ownsChild(claimsFrom(r.Context()).UserID, id) {
		writeError(w, http.StatusNotFound, "Child not found", nil)
		return nil, false
	}
	return s.accounts[id], true
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.childForRequest(w, r)
	if !ok {
		return
	}
	if req.Nickname != "" {
		acc.user.Nickname = req.Nickname
	}
	if req.Avatar != "" {
		acc.user.Avatar = req.Avatar
	}
	if req.Age > 0 {
		acc.age = req.Age
	}
	if req.Gender != "" {
		acc.gender = req.Gender
	}
	acc.user.UpdatedAt = s.now()

	writeJSON(w, childView(acc))
}

func (s *Server) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.childForRequest(w, r)
	if !ok {
		return
	}
	delete(s.accounts, acc.user.ID)

	writeJSON(w, map[string]string{"message": "Child deleted successfully"})
}
