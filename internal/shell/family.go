package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"childbehavior/internal/client"
	"childbehavior/internal/models"
	"childbehavior/internal/router"
	"childbehavior/internal/service"
	"childbehavior/internal/validation"
)

// ErrPageClosed is returned when the route guard sends a command away from the page it works on
var ErrPageClosed = errors.New("not available in the current view")

var statsPeriods = []string{"week", "month", "quarter", "year"}

const (
	defaultBehaviorType = "learning"
	defaultTrendDays    = 7
	maxTrendDays        = 365
	behaviorPageSize    = 20
)

func (s *Shell) signedIn() (models.Session, error) {
	snap := s.session.Snapshot()
	if !snap.Authenticated() {
		return snap, &service.AuthError{Reason: service.ReasonUnauthenticated, Err: service.ErrNotAuthenticated}
	}
	return snap, nil
}

// open navigates like the go command and fails when the guard redirected away from path
func (s *Shell) open(path string) error {
	d, trail, err := s.nav.Navigate(path)
	s.show(d, trail, err)
	if err != nil {
		return err
	}
	if len(trail) > 1 {
		return fmt.Errorf("%s: %w", path, ErrPageClosed)
	}
	return nil
}

// requireParentView applies the guard's parent-page rule without leaving the current page
func requireParentView(snap models.Session) error {
	if !router.DefaultTable.Check(router.StateOf(snap), router.PathParentHome).Allowed() {
		return fmt.Errorf("managing the family: %w", ErrPageClosed)
	}
	return nil
}

// subject is the child a command acts on: the account itself when a child is signed in,
// otherwise the id given or the selected child
func subject(snap models.Session, args []string) (int64, error) {
	if snap.CurrentUser.IsChild() {
		return snap.CurrentUser.ID, nil
	}
	if len(args) > 0 {
		return parseID("child", args[0])
	}
	if snap.SelectedChild == nil {
		return 0, errors.New("no child selected, use 'select <child-id>'")
	}
	return snap.SelectedChild.ID, nil
}

func parseID(what, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id: %s", what, raw)
	}
	return id, nil
}

// parseFields reads key=value arguments, rejecting keys outside allowed
func parseFields(args []string, allowed ...string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.ToLower(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if !slices.Contains(allowed, key) {
			return nil, fmt.Errorf("unknown field %q (use %s)", key, strings.Join(allowed, ", "))
		}
		fields[key] = value
	}
	return fields, nil
}

// uploadPhoto checks a local image against the upload limits and stores it on the backend
func (s *Shell) uploadPhoto(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	if err := validation.ValidateUpload(http.DetectContentType(head[:n]), info.Size()); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}

	result, err := s.api.UploadImage(ctx, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	s.printf("Uploaded %s\n", result.OriginalName)
	return result.URL, nil
}

// refreshChildren reloads balances after a change. A failure only leaves them stale.
func (s *Shell) refreshChildren(ctx context.Context) {
	if err := s.session.RefreshChildren(ctx); err != nil {
		s.printf("Warning: children not refreshed: %s\n", describe(err))
	}
}

// newPassword reads a password twice and checks its strength
func (s *Shell) newPassword(prompt string) (string, error) {
	password, err := s.readPassword(prompt)
	if err != nil {
		return "", err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}
	repeat, err := s.readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if repeat != password {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func (s *Shell) cmdRegister(ctx context.Context, args []string) error {
	if s.session.Snapshot().Authenticated() {
		return errors.New("sign out before registering a new account")
	}

	phone, nickname := args[0], args[1]
	if err := validation.ValidatePhone(phone); err != nil {
		return err
	}
	if err := validation.ValidateNickname(nickname); err != nil {
		return err
	}
	password, err := s.newPassword("Password: ")
	if err != nil {
		return err
	}

	req := client.RegisterRequest{Phone: phone, Nickname: nickname, Password: password}
	if _, err := s.api.Register(ctx, req); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}
	if err := s.session.Login(ctx, phone, password); err != nil {
		return err
	}

	s.printf("Registered and signed in as %s\n", nickname)
	s.show(s.nav.Navigate(router.PathRoot))
	return nil
}

func (s *Shell) cmdPasswd(ctx context.Context, args []string) error {
	if _, err := s.signedIn(); err != nil {
		return err
	}

	current, err := s.readPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := s.newPassword("New password: ")
	if err != nil {
		return err
	}
	if next == current {
		return errors.New("the new password must differ from the current one")
	}

	if err := s.api.ChangePassword(ctx, current, next); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	s.printf("Password changed\n")
	return nil
}

func (s *Shell) cmdProfile(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		user := snap.CurrentUser
		s.printf("Nickname: %s\n", user.Nickname)
		s.printf("Phone:    %s\n", user.Phone)
		if user.Email != "" {
			s.printf("Email:    %s\n", user.Email)
		}
		if user.Avatar != "" {
			s.printf("Avatar:   %s\n", user.Avatar)
		}
		return nil
	}

	fields, err := parseFields(args, "nickname", "email", "phone", "avatar")
	if err != nil {
		return err
	}

	var update client.ProfileUpdate
	if v, ok := fields["nickname"]; ok {
		if err := validation.ValidateNickname(v); err != nil {
			return err
		}
		update.Nickname = v
	}
	if v, ok := fields["email"]; ok {
		if err := validation.ValidateEmail(v); err != nil {
			return err
		}
		update.Email = v
	}
	if v, ok := fields["phone"]; ok {
		if err := validation.ValidatePhone(v); err != nil {
			return err
		}
		update.Phone = v
	}
	if v, ok := fields["avatar"]; ok {
		if update.Avatar, err = s.uploadPhoto(ctx, v); err != nil {
			return err
		}
	}

	if err := s.api.UpdateProfile(ctx, update); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if err := s.session.RefreshProfile(ctx); err != nil {
		return err
	}
	s.printf("Profile updated\n")
	return nil
}

func (s *Shell) cmdPoints(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}
	id, err := subject(snap, args)
	if err != nil {
		return err
	}

	points, err := s.api.GetUserPoints(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load points: %w", err)
	}
	s.printf("%d available, %d earned in total\n", points.AvailablePoints, points.TotalPoints)
	return nil
}

func (s *Shell) cmdChild(ctx context.Context, args []string) error {
	if _, err := s.signedIn(); err != nil {
		return err
	}

	sub, rest := strings.ToLower(args[0]), args[1:]
	switch {
	case sub == "add" && len(rest) >= 2:
	case sub == "edit" && len(rest) >= 2:
	case sub == "rm" && len(rest) == 1:
	default:
		return errors.New("usage: child add <nickname> <age> [male|female] | child edit <child-id> field=value... | child rm <child-id>")
	}

	// Children are managed from the parent home page
	if err := s.open(router.PathParentHome); err != nil {
		return err
	}

	switch sub {
	case "add":
		return s.addChild(ctx, rest)
	case "edit":
		return s.editChild(ctx, rest)
	default:
		return s.removeChild(ctx, rest[0])
	}
}

func checkGender(gender string) error {
	if gender != "male" && gender != "female" {
		return validation.ValidationError{Field: "gender", Message: "gender must be male or female"}
	}
	return nil
}

func (s *Shell) addChild(ctx context.Context, args []string) error {
	in := client.ChildInput{Nickname: args[0]}
	if err := validation.ValidateNickname(in.Nickname); err != nil {
		return err
	}
	age, err := validation.ValidateAge(args[1])
	if err != nil {
		return err
	}
	in.Age = age
	if len(args) > 2 {
		in.Gender = strings.ToLower(args[2])
		if err := checkGender(in.Gender); err != nil {
			return err
		}
	}

	child, err := s.api.CreateChild(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to add child: %w", err)
	}
	s.refreshChildren(ctx)
	s.printf("Added %s (id %d)\n", child.Nickname, child.ID)
	return nil
}

func (s *Shell) editChild(ctx context.Context, args []string) error {
	id, err := parseID("child", args[0])
	if err != nil {
		return err
	}
	fields, err := parseFields(args[1:], "nickname", "age", "gender", "avatar")
	if err != nil {
		return err
	}

	var in client.ChildInput
	if v, ok := fields["nickname"]; ok {
		if err := validation.ValidateNickname(v); err != nil {
			return err
		}
		in.Nickname = v
	}
	if v, ok := fields["age"]; ok {
		if in.Age, err = validation.ValidateAge(v); err != nil {
			return err
		}
	}
	if v, ok := fields["gender"]; ok {
		in.Gender = strings.ToLower(v)
		if err := checkGender(in.Gender); err != nil {
			return err
		}
	}
	if v, ok := fields["avatar"]; ok {
		if in.Avatar, err = s.uploadPhoto(ctx, v); err != nil {
			return err
		}
	}

	child, err := s.api.UpdateChild(ctx, id, in)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	s.refreshChildren(ctx)
	s.printf("Updated %s (id %d)\n", child.Nickname, child.ID)
	return nil
}

func (s *Shell) removeChild(ctx context.Context, raw string) error {
	id, err := parseID("child", raw)
	if err != nil {
		return err
	}
	if err := s.api.DeleteChild(ctx, id); err != nil {
		return fmt.Errorf("failed to remove child: %w", err)
	}
	s.refreshChildren(ctx)
	s.printf("Removed child %d\n", id)
	return nil
}

func (s *Shell) cmdRecord(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}
	childID, err := parseID("child", args[0])
	if err != nil {
		return err
	}
	if err := s.open(router.BehaviorPath(childID)); err != nil {
		return err
	}
	child := models.FindChild(snap.Children, childID)
	if child == nil {
		return service.ErrChildNotFound
	}

	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid score: %s", args[1])
	}
	if err := validation.ValidateScore(score); err != nil {
		return err
	}
	desc := validation.SanitizeInput(args[2])
	if desc == "" {
		return validation.ValidationError{Field: "behavior_desc", Message: "description is required"}
	}

	fields, err := parseFields(args[3:], "type", "photo")
	if err != nil {
		return err
	}
	in := client.BehaviorInput{ChildID: childID, BehaviorType: defaultBehaviorType, BehaviorDesc: desc, ScoreChange: score}
	if v, ok := fields["type"]; ok {
		if err := validation.ValidateBehaviorType(v); err != nil {
			return err
		}
		in.BehaviorType = v
	}
	if v, ok := fields["photo"]; ok {
		if in.ImageURL, err = s.uploadPhoto(ctx, v); err != nil {
			return err
		}
	}

	record, err := s.api.RecordBehavior(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to record behavior: %w", err)
	}
	s.printf("Recorded %+d for %s: %s\n", record.ScoreChange, child.Nickname, record.BehaviorDesc)

	s.refreshChildren(ctx)
	if updated := models.FindChild(s.session.Snapshot().Children, childID); updated != nil {
		s.printf("%s now has %d points\n", updated.Nickname, updated.AvailablePoints)
	}
	return nil
}

// listedChild is the child a listing narrows to. Zero lists every child the account can see.
func listedChild(snap models.Session, args []string) (int64, error) {
	if snap.CurrentUser.IsChild() || len(args) > 0 {
		return subject(snap, args)
	}
	if snap.SelectedChild != nil {
		return snap.SelectedChild.ID, nil
	}
	return 0, nil
}

func (s *Shell) cmdBehaviors(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}
	childID, err := listedChild(snap, args)
	if err != nil {
		return err
	}

	page, err := s.api.ListBehaviors(ctx, client.BehaviorFilter{ChildID: childID, Limit: behaviorPageSize})
	if err != nil {
		return fmt.Errorf("failed to load behaviors: %w", err)
	}
	if len(page.Behaviors) == 0 {
		s.printf("No behaviors recorded yet\n")
		return nil
	}
	for _, b := range page.Behaviors {
		s.printf("%s  %-12s %+4d  %-9s %s\n", b.RecordedAt.Format("2006-01-02"), b.ChildName, b.ScoreChange, b.BehaviorType, b.BehaviorDesc)
	}
	if total := page.Pagination.Total; total > int64(len(page.Behaviors)) {
		s.printf("Showing %d of %d\n", len(page.Behaviors), total)
	}
	return nil
}

func (s *Shell) cmdTrend(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}

	days := defaultTrendDays
	if len(args) > 0 {
		days, err = strconv.Atoi(args[0])
		if err != nil || days < 1 || days > maxTrendDays {
			return fmt.Errorf("days must be a number between 1 and %d", maxTrendDays)
		}
	}
	childID, err := listedChild(snap, nil)
	if err != nil {
		return err
	}

	trend, err := s.api.BehaviorTrend(ctx, childID, days)
	if err != nil {
		return fmt.Errorf("failed to load trend: %w", err)
	}
	if len(trend) == 0 {
		s.printf("No behaviors in the last %d days\n", days)
		return nil
	}
	for _, p := range trend {
		s.printf("%s  +%d -%d  %+d points\n", p.Date, p.PositiveBehaviors, p.NegativeBehaviors, p.TotalPoints)
	}
	return nil
}

func (s *Shell) cmdStats(ctx context.Context, args []string) error {
	if _, err := s.signedIn(); err != nil {
		return err
	}

	period := "week"
	if len(args) > 0 {
		period = strings.ToLower(args[0])
	}
	if !slices.Contains(statsPeriods, period) {
		return fmt.Errorf("period must be one of %s", strings.Join(statsPeriods, ", "))
	}
	if err := s.open(router.PathReports); err != nil {
		return err
	}

	stats, err := s.api.GetStatistics(ctx, period, 0)
	if err != nil {
		return fmt.Errorf("failed to load statistics: %w", err)
	}

	o := stats.OverallStats
	s.printf("This %s: %d behaviors, %d%% positive, %+d points, %d active children\n", period, o.TotalBehaviors, o.PositiveRate, o.TotalPoints, o.ActiveChildren)
	for _, c := range stats.ChildrenStats {
		s.printf("  %-12s %3d behaviors  %3d%% positive  %+5d points  level %d\n", c.ChildName, c.TotalBehaviors, c.PositiveRate, c.TotalPoints, c.Level)
	}
	for _, c := range stats.CategoryStats {
		s.printf("  %-12s %3d times  %+5d points\n", c.Category, c.Count, c.Points)
	}
	return nil
}

func (s *Shell) cmdReward(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}

	sub, rest := strings.ToLower(args[0]), args[1:]
	switch {
	case sub == "add" && len(rest) >= 2:
	case sub == "edit" && len(rest) >= 2:
	case sub == "rm" && len(rest) == 1:
	default:
		return errors.New("usage: reward add <name> <points> [field=value...] | reward edit <reward-id> field=value... | reward rm <reward-id>")
	}

	if err := s.open(router.PathRewards); err != nil {
		return err
	}
	if err := requireParentView(snap); err != nil {
		return err
	}

	switch sub {
	case "add":
		return s.addReward(ctx, rest)
	case "edit":
		return s.editReward(ctx, rest)
	default:
		return s.removeReward(ctx, rest[0])
	}
}

// rewardInput builds a reward body from key=value fields
func (s *Shell) rewardInput(ctx context.Context, fields map[string]string) (client.RewardInput, error) {
	var in client.RewardInput
	if v, ok := fields["name"]; ok {
		in.Name = validation.SanitizeInput(v)
		if in.Name == "" {
			return in, validation.ValidationError{Field: "name", Message: "name is required"}
		}
	}
	if v, ok := fields["points"]; ok {
		points, err := strconv.Atoi(v)
		if err != nil || points <= 0 {
			return in, validation.ValidationError{Field: "points", Message: "points must be a positive number"}
		}
		in.Points = points
	}
	if v, ok := fields["stock"]; ok {
		stock, err := strconv.Atoi(v)
		if err != nil || stock < 0 {
			return in, validation.ValidationError{Field: "stock", Message: "stock must be zero or more"}
		}
		in.Stock = &stock
	}
	if v, ok := fields["desc"]; ok {
		in.Description = validation.SanitizeInput(v)
	}
	if v, ok := fields["active"]; ok {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return in, validation.ValidationError{Field: "active", Message: "active must be true or false"}
		}
		in.IsActive = &active
	}
	if v, ok := fields["photo"]; ok {
		url, err := s.uploadPhoto(ctx, v)
		if err != nil {
			return in, err
		}
		in.Image = url
	}
	return in, nil
}

func (s *Shell) addReward(ctx context.Context, args []string) error {
	fields, err := parseFields(args[2:], "stock", "desc", "photo")
	if err != nil {
		return err
	}
	fields["name"], fields["points"] = args[0], args[1]

	in, err := s.rewardInput(ctx, fields)
	if err != nil {
		return err
	}
	reward, err := s.api.CreateReward(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to add reward: %w", err)
	}
	s.printf("Added reward %s (id %d, %d points)\n", reward.Name, reward.ID, reward.Points)
	return nil
}

func (s *Shell) editReward(ctx context.Context, args []string) error {
	id, err := parseID("reward", args[0])
	if err != nil {
		return err
	}
	fields, err := parseFields(args[1:], "name", "points", "stock", "desc", "active", "photo")
	if err != nil {
		return err
	}

	in, err := s.rewardInput(ctx, fields)
	if err != nil {
		return err
	}
	if err := s.api.UpdateReward(ctx, id, in); err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	s.printf("Updated reward %d\n", id)
	return nil
}

func (s *Shell) removeReward(ctx context.Context, raw string) error {
	id, err := parseID("reward", raw)
	if err != nil {
		return err
	}
	if err := s.api.DeleteReward(ctx, id); err != nil {
		return fmt.Errorf("failed to remove reward: %w", err)
	}
	s.printf("Removed reward %d\n", id)
	return nil
}

func (s *Shell) cmdRedeem(ctx context.Context, args []string) error {
	snap, err := s.signedIn()
	if err != nil {
		return err
	}
	rewardID, err := parseID("reward", args[0])
	if err != nil {
		return err
	}

	// A child redeems for itself; a parent redeems on behalf of a child
	var childID int64
	if snap.CurrentUser.IsParent() {
		if childID, err = subject(snap, args[1:]); err != nil {
			return err
		}
	}
	if err := s.open(router.PathRewards); err != nil {
		return err
	}

	catalog, err := s.api.ListRewards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rewards: %w", err)
	}
	i := slices.IndexFunc(catalog.Rewards, func(r models.Reward) bool { return r.ID == rewardID })
	if i < 0 {
		return fmt.Errorf("reward %d not found", rewardID)
	}
	reward := catalog.Rewards[i]
	if !reward.InStock() {
		return fmt.Errorf("%s is not available", reward.Name)
	}

	record, err := s.api.ExchangeReward(ctx, client.ExchangeInput{RewardID: reward.ID, PointsUsed: reward.Points, ChildID: childID})
	if err != nil {
		return fmt.Errorf("failed to redeem reward: %w", err)
	}
	if snap.CurrentUser.IsParent() {
		s.refreshChildren(ctx)
	}
	s.printf("Redeemed %s for %d points\n", reward.Name, record.PointsUsed)
	return nil
}

func (s *Shell) cmdExchanges(ctx context.Context, args []string) error {
	if _, err := s.signedIn(); err != nil {
		return err
	}

	page, err := s.api.ListExchanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to load exchanges: %w", err)
	}
	if len(page.Exchanges) == 0 {
		s.printf("No rewards redeemed yet\n")
		return nil
	}
	for _, ex := range page.Exchanges {
		name := fmt.Sprintf("reward %d", ex.RewardID)
		if ex.Reward != nil {
			name = ex.Reward.Name
		}
		s.printf("%s  %-20s %4d points  %s\n", ex.ExchangedAt.Format("2006-01-02"), name, ex.PointsUsed, ex.Status)
	}
	return nil
}
