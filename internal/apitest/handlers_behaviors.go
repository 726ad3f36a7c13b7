package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"childbehavior/internal/models"
	"childbehavior/internal/validation"
)

type behaviorRequest struct {
	ChildID      int64  `json:"child_id"`
	BehaviorType string `json:"behavior_type"`
	BehaviorDesc string `json:"behavior_desc"`
	ScoreChange  int    `json:"score_change"`
	ImageURL     string `json:"image_url"`
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return page, limit
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// visibleChildIDs returns the child IDs the caller may read. Callers hold s.mu.
func (s *Server) visibleChildIDs(claims *Claims, requested int64) (map[int64]bool, bool) {
	ids := make(map[int64]bool)
	if claims.Role != string(models.RoleParent) {
		if requested != 0 && requested != claims.UserID {
			return nil, false
		}
		ids[claims.UserID] = true
		return ids, true
	}
	if requested != 0 {
		if !s.ownsChild(claims.UserID, requested) {
			return nil, false
		}
		ids[requested] = true
		return ids, true
	}
	for _, c := range s.childrenOf(claims.UserID) {
		ids[c.ID] = true
	}
	return ids, true
}

func (s *Server) handleRecordBehavior(w http.ResponseWriter, r *http.Request) {
	var req behaviorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateScore(req.ScoreChange); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	claims := claimsFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsChild(claims.UserID, req.ChildID) {
		writeError(w, http.StatusForbidden, "Child not found or permission denied", nil)
		return
	}

	child := s.accounts[req.ChildID]
	child.user.TotalPoints += req.ScoreChange
	child.user.AvailablePoints += req.ScoreChange
	if child.user.AvailablePoints < 0 {
		child.user.AvailablePoints = 0
	}

	record := models.BehaviorRecord{
		ID:           s.newID(),
		ChildID:      req.ChildID,
		ChildName:    child.user.Nickname,
		RecorderID:   claims.UserID,
		RecorderName: s.accounts[claims.UserID].user.Nickname,
		BehaviorType: req.BehaviorType,
		BehaviorDesc: validation.SanitizeInput(req.BehaviorDesc),
		ScoreChange:  req.ScoreChange,
		ImageURL:     req.ImageURL,
		RecordedAt:   s.now(),
	}
	s.behaviors = append(s.behaviors, record)

	writeJSON(w, record)
}

func (s *Server) handleListBehaviors(w http.ResponseWriter, r *http.Request) {
	requested, _ := strconv.ParseInt(r.URL.Query().Get("child_id"), 10, 64)
	page, limit := pageParams(r)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.visibleChildIDs(claimsFrom(r.Context()), requested)
	if !ok {
		writeError(w, http.StatusForbidden, "Child not found or permission denied", nil)
		return
	}

	records := []models.BehaviorRecord{}
	for i := len(s.behaviors) - 1; i >= 0; i-- {
		if ids[s.behaviors[i].ChildID] {
			records = append(records, s.behaviors[i])
		}
	}

	writeJSON(w, map[string]interface{}{
		"behaviors":  paginate(records, page, limit),
		"pagination": pagination{Page: page, Limit: limit, Total: int64(len(records))},
	})
}

// dailyTrend aggregates records on or after since into one point per day. Callers hold s.mu.
func (s *Server) dailyTrend(ids map[int64]bool, since time.Time) []models.TrendPoint {
	byDay := make(map[string]*models.TrendPoint)
	for _, b := range s.behaviors {
		if !ids[b.ChildID] || b.RecordedAt.Before(since) {
			continue
		}
		day := b.RecordedAt.Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &models.TrendPoint{Date: day}
			byDay[day] = p
		}
		if b.ScoreChange > 0 {
			p.PositiveBehaviors++
		} else {
			p.NegativeBehaviors++
		}
		p.TotalPoints += b.ScoreChange
	}

	trend := make([]models.TrendPoint, 0, len(byDay))
	for _, p := range byDay {
		trend = append(trend, *p)
	}
	sort.Slice(trend, func(i, j int) bool { return trend[i].Date < trend[j].Date })
	return trend
}

func (s *Server) handleBehaviorTrend(w http.ResponseWriter, r *http.Request) {
	requested, _ := strconv.ParseInt(r.URL.Query().Get("child_id"), 10, 64)
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 1 {
		days = 7
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.visibleChildIDs(claimsFrom(r.Context()), requested)
	if !ok {
		writeError(w, http.StatusForbidden, "Child not found or permission denied", nil)
		return
	}

	writeJSON(w, map[string]interface{}{
		"trend_data": s.dailyTrend(ids, s.now().AddDate(0, 0, -days)),
		"period":     strconv.Itoa(days) + " days",
	})
}

func periodDays(period string) int {
	switch period {
	case "month":
		return 30
	case "quarter":
		return 90
	case "year":
		return 365
	default:
		return 7
	}
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	requested, _ := strconv.ParseInt(r.URL.Query().Get("child_id"), 10, 64)
	since := s.now().AddDate(0, 0, -periodDays(r.URL.Query().Get("period")))

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.visibleChildIDs(claimsFrom(r.Context()), requested)
	if !ok {
		writeError(w, http.StatusForbidden, "Child not found or permission denied", nil)
		return
	}

	type tally struct{ total, positive, points int }
	perChild := make(map[int64]*tally)
	categories := make(map[string]*models.CategoryStat)
	var overall tally

	for _, b := range s.behaviors {
		if !ids[b.ChildID] || b.RecordedAt.Before(since) {
			continue
		}
		t, ok := perChild[b.ChildID]
		if !ok {
			t = &tally{}
			perChild[b.ChildID] = t
		}
		t.total++
		t.points += b.ScoreChange
		overall.total++
		overall.points += b.ScoreChange
		if b.ScoreChange > 0 {
			t.positive++
			overall.positive++
		}

		cat, ok := categories[b.BehaviorType]
		if !ok {
			cat = &models.CategoryStat{Category: b.BehaviorType}
			categories[b.BehaviorType] = cat
		}
		cat.Count++
		cat.Points += b.ScoreChange
	}

	rate := func(t tally) int {
		if t.total == 0 {
			return 0
		}
		return t.positive * 100 / t.total
	}

	stats := models.Statistics{
		DailyStats:    s.dailyTrend(ids, since),
		CategoryStats: []models.CategoryStat{},
		ChildrenStats: []models.ChildStat{},
	}
	for _, cat := range categories {
		stats.CategoryStats = append(stats.CategoryStats, *cat)
	}
	sort.Slice(stats.CategoryStats, func(i, j int) bool { return stats.CategoryStats[i].Category < stats.CategoryStats[j].Category })

	for id := range ids {
		acc, ok := s.accounts[id]
		if !ok {
			continue
		}
		t := perChild[id]
		if t == nil {
			t = &tally{}
		}
		child := models.Child{TotalPoints: acc.user.TotalPoints}
		stats.ChildrenStats = append(stats.ChildrenStats, models.ChildStat{
			ChildID:        id,
			ChildName:      acc.user.Nickname,
			TotalBehaviors: t.total,
			PositiveRate:   rate(*t),
			TotalPoints:    acc.user.TotalPoints,
			Level:          child.Level(),
		})
	}
	sort.Slice(stats.ChildrenStats, func(i, j int) bool { return stats.ChildrenStats[i].ChildID < stats.ChildrenStats[j].ChildID })

	stats.OverallStats = models.OverallStat{
		TotalBehaviors: overall.total,
		PositiveRate:   rate(overall),
		TotalPoints:    overall.points,
		ActiveChildren: len(perChild),
	}

	writeJSON(w, stats)
}
