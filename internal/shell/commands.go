package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"childbehavior/internal/router"
	"childbehavior/internal/service"
)

type command struct {
	name      string
	syntax    string
	shortDesc string
	minArgs   int
	run       func(s *Shell, ctx context.Context, args []string) error
}

var (
	commandList []command
	commands    map[string]command
)

func init() {
	commandList = []command{
		{name: "login", syntax: "login <phone>", shortDesc: "Sign in; the password is read without echo", minArgs: 1, run: (*Shell).cmdLogin},
		{name: "logout", syntax: "logout", shortDesc: "Sign out and forget the session", run: (*Shell).cmdLogout},
		{name: "whoami", syntax: "whoami", shortDesc: "Show the signed-in user and view", run: (*Shell).cmdWhoami},
		{name: "children", syntax: "children", shortDesc: "Reload and list your children", run: (*Shell).cmdChildren},
		{name: "select", syntax: "select <child-id>", shortDesc: "Select the child to act on", minArgs: 1, run: (*Shell).cmdSelect},
		{name: "child-view", syntax: "child-view", shortDesc: "Switch to child view", run: (*Shell).cmdChildView},
		{name: "parent-view", syntax: "parent-view", shortDesc: "Switch back to parent view, verifying if needed", run: (*Shell).cmdParentView},
		{name: "reauth", syntax: "reauth password|biometric", shortDesc: "Verify that you are the parent", minArgs: 1, run: (*Shell).cmdReauth},
		{name: "biometric", syntax: "biometric on|off", shortDesc: "Enable or disable biometric verification", minArgs: 1, run: (*Shell).cmdBiometric},
		{name: "go", syntax: "go <path>", shortDesc: "Open a page", minArgs: 1, run: (*Shell).cmdGo},
		{name: "register", syntax: "register <phone> <nickname>", shortDesc: "Create a parent account and sign in", minArgs: 2, run: (*Shell).cmdRegister},
		{name: "passwd", syntax: "passwd", shortDesc: "Change your password", run: (*Shell).cmdPasswd},
		{name: "profile", syntax: "profile [field=value...]", shortDesc: "Show or edit nickname, email, phone or avatar", run: (*Shell).cmdProfile},
		{name: "points", syntax: "points [child-id]", shortDesc: "Show a points balance", run: (*Shell).cmdPoints},
		{name: "child", syntax: "child add|edit|rm ...", shortDesc: "Add, edit or remove a child (parent view)", minArgs: 1, run: (*Shell).cmdChild},
		{name: "record", syntax: "record <child-id> <score> <description> [type=..] [photo=..]", shortDesc: "Record a behavior (parent view)", minArgs: 3, run: (*Shell).cmdRecord},
		{name: "behaviors", syntax: "behaviors [child-id]", shortDesc: "List recent behaviors", run: (*Shell).cmdBehaviors},
		{name: "trend", syntax: "trend [days]", shortDesc: "Show the daily behavior trend", run: (*Shell).cmdTrend},
		{name: "stats", syntax: "stats [week|month|quarter|year]", shortDesc: "Show the behavior report (parent view)", run: (*Shell).cmdStats},
		{name: "rewards", syntax: "rewards", shortDesc: "List the rewards catalog", run: (*Shell).cmdRewards},
		{name: "reward", syntax: "reward add|edit|rm ...", shortDesc: "Manage the rewards catalog (parent view)", minArgs: 1, run: (*Shell).cmdReward},
		{name: "redeem", syntax: "redeem <reward-id> [child-id]", shortDesc: "Redeem a reward with points", minArgs: 1, run: (*Shell).cmdRedeem},
		{name: "exchanges", syntax: "exchanges", shortDesc: "List redeemed rewards", run: (*Shell).cmdExchanges},
		{name: "help", syntax: "help [command]", shortDesc: "Show help", run: (*Shell).cmdHelp},
		{name: "exit", syntax: "exit", shortDesc: "Leave the shell", run: (*Shell).cmdExit},
		{name: "quit", syntax: "quit", shortDesc: "Leave the shell", run: (*Shell).cmdExit},
	}

	commands = make(map[string]command, len(commandList))
	for _, c := range commandList {
		commands[c.name] = c
	}
}

func (s *Shell) cmdLogin(ctx context.Context, args []string) error {
	password, err := s.readPassword("Password: ")
	if err != nil {
		return err
	}

	if err := s.session.Login(ctx, args[0], password); err != nil {
		return err
	}

	snap := s.session.Snapshot()
	s.printf("Signed in as %s (%s)\n", snap.CurrentUser.Nickname, snap.CurrentUser.Role)
	s.show(s.nav.Navigate(router.PathRoot))
	return nil
}

func (s *Shell) cmdLogout(ctx context.Context, args []string) error {
	s.flow.Cancel()
	s.session.Logout()
	s.printf("Signed out\n")
	s.show(s.nav.Navigate(router.PathLogin))
	return nil
}

func (s *Shell) cmdWhoami(ctx context.Context, args []string) error {
	snap := s.session.Snapshot()
	if !snap.Authenticated() {
		s.printf("Not signed in\n")
		return nil
	}

	user := snap.CurrentUser
	s.printf("User:  %s (id %d, %s)\n", user.Nickname, user.ID, user.Role)
	s.printf("View:  %s\n", snap.ViewMode)
	if snap.SelectedChild != nil {
		s.printf("Child: %s (id %d, %d points)\n", snap.SelectedChild.Nickname, snap.SelectedChild.ID, snap.SelectedChild.AvailablePoints)
	}
	if snap.LastParentAuthAt != nil {
		s.printf("Verified: %s ago\n", time.Since(*snap.LastParentAuthAt).Round(time.Second))
	}
	s.printf("Biometric: %v\n", snap.Biometric.Enabled)
	if page := s.nav.Current().Path; page != "" {
		s.printf("Page:  %s\n", page)
	}
	return nil
}

func (s *Shell) cmdChildren(ctx context.Context, args []string) error {
	if err := s.session.RefreshChildren(ctx); err != nil {
		return err
	}

	snap := s.session.Snapshot()
	if len(snap.Children) == 0 {
		s.printf("No children yet\n")
		return nil
	}
	for _, child := range snap.Children {
		marker := " "
		if snap.SelectedChild != nil && snap.SelectedChild.ID == child.ID {
			marker = "*"
		}
		s.printf("%s %d  %-12s level %d  %d/%d points\n", marker, child.ID, child.Nickname, child.Level(), child.AvailablePoints, child.TotalPoints)
	}
	return nil
}

func (s *Shell) cmdSelect(ctx context.Context, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid child id: %s", args[0])
	}
	if err := s.session.SelectChild(id); err != nil {
		return err
	}
	s.printf("Selected child %d\n", id)
	return nil
}

func (s *Shell) cmdChildView(ctx context.Context, args []string) error {
	if err := s.session.SwitchToChildView(); err != nil {
		return err
	}
	if s.session.Snapshot().SelectedChild == nil {
		s.printf("No child selected\n")
	}
	s.show(s.nav.Navigate(router.PathRoot))
	return nil
}

func (s *Shell) cmdParentView(ctx context.Context, args []string) error {
	if s.session.RequestParentView(false) == service.Allowed {
		s.show(s.nav.Navigate(router.PathRoot))
		return nil
	}

	snap := s.session.Snapshot()
	if !snap.CurrentUser.IsParent() {
		return errors.New("parent view is not available for this account")
	}

	s.printf("Please verify that you are the parent\n")
	if err := s.verify(ctx, snap.Biometric.Enabled); err != nil {
		return err
	}

	if s.session.RequestParentView(false) != service.Allowed {
		return errors.New("parent view denied")
	}
	s.show(s.nav.Navigate(router.PathRoot))
	return nil
}

func (s *Shell) cmdReauth(ctx context.Context, args []string) error {
	var biometric bool
	switch strings.ToLower(args[0]) {
	case "password":
	case "biometric":
		biometric = true
	default:
		return errors.New("usage: reauth password|biometric")
	}

	if err := s.verify(ctx, biometric); err != nil {
		return err
	}
	s.printf("Verified\n")
	return nil
}

// verify runs the re-authentication flow, falling back from biometric to password once
func (s *Shell) verify(ctx context.Context, biometric bool) error {
	if biometric {
		err := s.verifyBiometric(ctx)
		if err == nil {
			return nil
		}
		if s.flow.State() != service.StateFailure {
			return err
		}
		s.printf("Biometric verification failed: %s\n", describe(err))
		s.printf("Falling back to password\n")
	}
	return s.verifyPassword(ctx)
}

func (s *Shell) verifyBiometric(ctx context.Context) error {
	if err := s.flow.BeginBiometric(); err != nil {
		return err
	}
	s.printf("Waiting for biometric verification...\n")
	return s.flow.VerifyBiometric(ctx)
}

func (s *Shell) verifyPassword(ctx context.Context) error {
	if err := s.flow.BeginPassword(); err != nil {
		return err
	}
	password, err := s.readPassword("Parent password: ")
	if err != nil {
		s.flow.Cancel()
		return err
	}
	err = s.flow.VerifyPassword(ctx, password)
	if err != nil && s.flow.State() == service.StatePasswordEntry {
		// Rejected before any request was made
		s.flow.Cancel()
	}
	return err
}

func (s *Shell) cmdBiometric(ctx context.Context, args []string) error {
	switch strings.ToLower(args[0]) {
	case "on":
		s.printf("Waiting for biometric verification...\n")
		if err := s.session.EnableBiometric(ctx); err != nil {
			return err
		}
		s.printf("Biometric verification enabled\n")
	case "off":
		s.session.DisableBiometric()
		s.printf("Biometric verification disabled\n")
	default:
		return errors.New("usage: biometric on|off")
	}
	return nil
}

func (s *Shell) cmdGo(ctx context.Context, args []string) error {
	s.show(s.nav.Navigate(args[0]))
	return nil
}

func (s *Shell) cmdRewards(ctx context.Context, args []string) error {
	if !s.session.Snapshot().Authenticated() {
		return &service.AuthError{Reason: service.ReasonUnauthenticated, Err: service.ErrNotAuthenticated}
	}

	page, err := s.api.ListRewards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rewards: %w", err)
	}
	if len(page.Rewards) == 0 {
		s.printf("No rewards yet\n")
		return nil
	}
	for _, r := range page.Rewards {
		stock := fmt.Sprintf("%d left", r.Stock)
		if !r.InStock() {
			stock = "unavailable"
		}
		s.printf("%d  %-20s %4d points  %s\n", r.ID, r.Name, r.Points, stock)
	}
	return nil
}

func (s *Shell) cmdHelp(ctx context.Context, args []string) error {
	if len(args) > 0 {
		c, ok := commands[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("no help for %s", args[0])
		}
		s.printf("%s\n  %s\n", c.syntax, c.shortDesc)
		return nil
	}

	s.printf("Available commands:\n")
	for _, c := range commandList {
		s.printf("  %-34s %s\n", c.syntax, c.shortDesc)
	}
	return nil
}

func (s *Shell) cmdExit(ctx context.Context, args []string) error {
	return ErrExit
}

func (s *Shell) readPassword(prompt string) (string, error) {
	if s.passwords == nil {
		return "", errors.New("no terminal to read a password from")
	}
	b, err := s.passwords.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
