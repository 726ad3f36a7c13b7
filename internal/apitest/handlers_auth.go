package apitest

import (
	"net/http"
	"strconv"

	"childbehavior/internal/models"
	"childbehavior/internal/security"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

func (s *Server) findByPhone(phone string) *account {
	for _, acc := range s.accounts {
		if acc.user.Phone != "" && acc.user.Phone == phone {
			return acc
		}
	}
	return nil
}

func (s *Server) loginResponse(w http.ResponseWriter, acc *account) {
	token, err := s.IssueToken(acc.user.ID, string(acc.user.Role), s.opts.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"user_id": acc.user.ID,
		"token":   token,
		"user":    acc.user,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Phone == "" || len(req.Password) < 6 || req.Nickname == "" {
		writeError(w, http.StatusBadRequest, "phone, nickname and a password of at least 6 characters are required", nil)
		return
	}

	hash, err := security.HashPassword(req.Password, s.opts.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	s.mu.Lock()
	if s.findByPhone(req.Phone) != nil {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Phone number already exists", nil)
		return
	}
	now := s.now()
	acc := &account{
		user: models.User{
			ID:        s.newID(),
			Phone:     req.Phone,
			Nickname:  req.Nickname,
			Role:      models.RoleParent,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.accounts[acc.user.ID] = acc
	s.mu.Unlock()

	s.loginResponse(w, acc)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.RLock()
	acc := s.findByPhone(req.Phone)
	s.mu.RUnlock()

	if acc == nil || acc.passwordHash == "" || !security.CheckPassword(req.Password, acc.passwordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid phone or password", nil)
		return
	}
	s.loginResponse(w, acc)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	writeJSON(w, map[string]interface{}{"valid": true, "user_id": claims.UserID})
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required", nil)
		return
	}

	s.mu.RLock()
	acc := s.accounts[claimsFrom(r.Context()).UserID]
	s.mu.RUnlock()

	if acc.passwordHash == "" || !security.CheckPassword(req.Password, acc.passwordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid password", nil)
		return
	}
	writeJSON(w, map[string]interface{}{"valid": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "new password must be at least 6 characters", nil)
		return
	}

	s.mu.RLock()
	acc := s.accounts[claimsFrom(r.Context()).UserID]
	s.mu.RUnlock()

	if !security.CheckPassword(req.OldPassword, acc.passwordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid old password", nil)
		return
	}

	hash, err := security.HashPassword(req.NewPassword, s.opts.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	s.mu.Lock()
	acc.passwordHash = hash
	s.mu.Unlock()

	writeJSON(w, map[string]string{"message": "Password changed successfully"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	user := s.accounts[claimsFrom(r.Context()).UserID].user
	s.mu.RUnlock()

	writeJSON(w, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Avatar   string `json:"avatar"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	acc := s.accounts[claimsFrom(r.Context()).UserID]
	if req.Nickname != "" {
		acc.user.Nickname = req.Nickname
	}
	if req.Email != "" {
		acc.user.Email = req.Email
	}
	if req.Phone != "" {
		acc.user.Phone = req.Phone
	}
	if req.Avatar != "" {
		acc.user.Avatar = req.Avatar
	}
	acc.user.UpdatedAt = s.now()
	s.mu.Unlock()

	writeJSON(w, map[string]string{"message": "Profile updated successfully"})
}

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", nil)
		return
	}
	claims := claimsFrom(r.Context())

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if id != claims.UserID && !s.ownsChild(claims.UserID, id) {
		writeError(w, http.StatusForbidden, "Permission denied", nil)
		return
	}
	writeJSON(w, models.Points{
		TotalPoints:     acc.user.TotalPoints,
		AvailablePoints: acc.user.AvailablePoints,
		UpdatedAt:       acc.user.UpdatedAt,
	})
}

// ownsChild reports whether childID belongs to parentID. Callers hold s.mu.
func (s *Server) ownsChild(parentID, childID int64) bool {
	acc, ok := s.accounts[childID]
	return ok && acc.user.Role == models.RoleChild && acc.user.ParentID != nil && *acc.user.ParentID == parentID
}
