// Package shell is an interactive command line for the session controller.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"childbehavior/internal/client"
	"childbehavior/internal/models"
	"childbehavior/internal/router"
	"childbehavior/internal/service"
	"childbehavior/internal/validation"
)

// ErrExit is returned by Execute when the user asks to leave
var ErrExit = errors.New("exit requested")

// PasswordReader reads a line without echoing it. *readline.Instance satisfies it.
type PasswordReader interface {
	ReadPassword(prompt string) ([]byte, error)
}

// FamilyAPI is the part of the backend the family commands call. *client.Client satisfies it.
type FamilyAPI interface {
	Register(ctx context.Context, req client.RegisterRequest) (*client.LoginResult, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, update client.ProfileUpdate) error
	GetUserPoints(ctx context.Context, userID int64) (*models.Points, error)

	CreateChild(ctx context.Context, in client.ChildInput) (*models.Child, error)
	UpdateChild(ctx context.Context, childID int64, in client.ChildInput) (*models.Child, error)
	DeleteChild(ctx context.Context, childID int64) error

	RecordBehavior(ctx context.Context, in client.BehaviorInput) (*models.BehaviorRecord, error)
	ListBehaviors(ctx context.Context, filter client.BehaviorFilter) (*client.BehaviorPage, error)
	BehaviorTrend(ctx context.Context, childID int64, days int) ([]models.TrendPoint, error)
	GetStatistics(ctx context.Context, period string, childID int64) (*models.Statistics, error)

	ListRewards(ctx context.Context) (*client.RewardPage, error)
	CreateReward(ctx context.Context, in client.RewardInput) (*models.Reward, error)
	UpdateReward(ctx context.Context, rewardID int64, in client.RewardInput) error
	DeleteReward(ctx context.Context, rewardID int64) error
	ExchangeReward(ctx context.Context, in client.ExchangeInput) (*models.ExchangeRecord, error)
	ListExchanges(ctx context.Context) (*client.ExchangePage, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (*client.UploadResult, error)
}

// Shell dispatches typed commands to the session controller and re-runs the route guard
// after every command that can change the page
type Shell struct {
	session   *service.SessionController
	flow      *service.ReauthFlow
	api       FamilyAPI
	nav       *router.Navigator
	passwords PasswordReader
	out       io.Writer
}

// New creates a shell writing to out
func New(session *service.SessionController, flow *service.ReauthFlow, api FamilyAPI, passwords PasswordReader, out io.Writer) *Shell {
	return &Shell{
		session:   session,
		flow:      flow,
		api:       api,
		passwords: passwords,
		out:       out,
		nav: router.NewNavigator(router.DefaultTable, func() router.State {
			return router.StateOf(session.Snapshot())
		}),
	}
}

// Prompt reflects the signed-in user and view
func (s *Shell) Prompt() string {
	snap := s.session.Snapshot()
	if !snap.Authenticated() {
		return "> "
	}
	page := s.nav.Current().Path
	if page == "" {
		page = router.PathRoot
	}
	return fmt.Sprintf("%s[%s] %s> ", snap.CurrentUser.Nickname, snap.ViewMode, page)
}

// Run reads commands from rl until exit or EOF
func (s *Shell) Run(ctx context.Context, rl *readline.Instance) error {
	s.printf("Type 'help' for a list of commands or 'exit' to quit.\n")
	s.show(s.nav.Navigate(router.PathRoot))

	for {
		rl.SetPrompt(s.Prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.printf("Use 'exit' or 'quit' to exit the program.\n")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			s.printf("Error: %v\n", describe(err))
		}
	}
}

// Execute runs one command line
func (s *Shell) Execute(ctx context.Context, line string) error {
	args := ParseArgs(strings.TrimSpace(line))
	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (try 'help')", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.syntax)
	}
	return cmd.run(s, ctx, args[1:])
}

// ParseArgs splits input on spaces, keeping double-quoted runs together
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false

	for _, char := range input {
		switch {
		case char == '"':
			inQuotes = !inQuotes
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

func (s *Shell) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.out, format, a...)
}

// show prints where a navigation ended up
func (s *Shell) show(d router.Decision, trail []string, err error) {
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	if len(trail) > 1 {
		s.printf("Redirected: %s\n", strings.Join(trail, " -> "))
	}
	title := d.Page.Title
	if title == "" {
		title = d.Page.Name
	}
	s.printf("Page: %s (%s)\n", title, d.Path)
}

// describe turns an error into a message for the user
func describe(err error) string {
	var authErr *service.AuthError
	if !errors.As(err, &authErr) {
		var apiErr *client.APIError
		var invalid validation.ValidationError
		switch {
		case errors.As(err, &invalid):
			return invalid.Error()
		case errors.As(err, &apiErr) && apiErr.Message != "":
			return apiErr.Message
		case errors.Is(err, client.ErrNetwork):
			return "cannot reach the server, check your connection"
		}
		return err.Error()
	}

	switch authErr.Reason {
	case service.ReasonUnauthenticated:
		return "please log in first"
	case service.ReasonUnsupportedBrowser:
		return "biometric verification is not available here"
	case service.ReasonUnsupportedDevice:
		return "this device has no usable biometric authenticator"
	case service.ReasonUserCancelled:
		return "verification cancelled"
	case service.ReasonTimeout:
		return "verification timed out"
	case service.ReasonNetworkFailure:
		return "cannot reach the server, check your connection"
	case service.ReasonRateLimited:
		return "too many attempts, wait a moment and try again"
	case service.ReasonServerRejected:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "the server rejected the request"
	default:
		if authErr.Err != nil {
			return authErr.Err.Error()
		}
		return string(authErr.Reason)
	}
}
