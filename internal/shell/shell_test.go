package shell

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"childbehavior/internal/apitest"
	"childbehavior/internal/client"
	"childbehavior/internal/database"
	"childbehavior/internal/models"
	"childbehavior/internal/repository"
	"childbehavior/internal/router"
	"childbehavior/internal/service"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// scriptedPasswords answers password prompts from a queue
type scriptedPasswords struct {
	answers []string
	prompts []string
}

func (p *scriptedPasswords) ReadPassword(prompt string) ([]byte, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.answers) == 0 {
		return nil, errors.New("no more input")
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return []byte(answer), nil
}

type harness struct {
	shell     *Shell
	session   *service.SessionController
	api       *client.Client
	passwords *scriptedPasswords
	clock     *testClock
	out       *bytes.Buffer
	prefs     *repository.PreferencesRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend, err := apitest.NewSeeded(apitest.Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to seed backend: %v", err)
	}
	srv := backend.Start()
	t.Cleanup(srv.Close)

	db, err := database.Initialize(filepath.Join(t.TempDir(), "shell.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	prefs := repository.NewPreferencesRepository(db)

	api := client.New(srv.URL+"/api", 5*time.Second)
	clock := &testClock{now: time.Now()}
	session := service.NewSessionController(api, prefs, nil, clock, 0)
	api.SetTokenSource(session.Token)
	flow := service.NewReauthFlow(session, api, nil, nil)

	passwords := &scriptedPasswords{}
	out := &bytes.Buffer{}
	return &harness{
		shell:     New(session, flow, api, passwords, out),
		session:   session,
		api:       api,
		passwords: passwords,
		clock:     clock,
		out:       out,
		prefs:     prefs,
	}
}

func (h *harness) run(t *testing.T, line string) {
	t.Helper()
	if err := h.shell.Execute(context.Background(), line); err != nil {
		t.Fatalf("Execute(%q) error = %v", line, err)
	}
}

func (h *harness) page() string {
	return h.shell.nav.Current().Path
}

func (h *harness) loginParent(t *testing.T) {
	t.Helper()
	h.passwords.answers = append(h.passwords.answers, apitest.SeedParentPassword)
	h.run(t, "login "+apitest.SeedParentPhone)
}

func (h *harness) loginChild(t *testing.T) {
	t.Helper()
	h.passwords.answers = append(h.passwords.answers, apitest.SeedChildPassword)
	h.run(t, "login "+apitest.SeedChildPhone)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: "whoami", want: []string{"whoami"}},
		{input: "go   /reports ", want: []string{"go", "/reports"}},
		{input: `reauth "pass word"`, want: []string{"reauth", "pass word"}},
		{input: "select\t12", want: []string{"select", "12"}},
	}

	for _, tt := range tests {
		if got := ParseArgs(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseArgs(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		line    string
		wantErr string
	}{
		{line: "dance", wantErr: "unknown command"},
		{line: "login", wantErr: "usage: login <phone>"},
		{line: "select abc", wantErr: "invalid child id"},
		{line: "biometric maybe", wantErr: "usage: biometric on|off"},
	}

	for _, tt := range tests {
		err := h.shell.Execute(context.Background(), tt.line)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("Execute(%q) error = %v, want %q", tt.line, err, tt.wantErr)
		}
	}

	if err := h.shell.Execute(context.Background(), "exit"); !errors.Is(err, ErrExit) {
		t.Errorf("Execute(exit) error = %v, want ErrExit", err)
	}
	if err := h.shell.Execute(context.Background(), "   "); err != nil {
		t.Errorf("Execute(blank) error = %v, want nil", err)
	}
}

func TestLoginLandsOnParentHome(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)

	if h.page() != router.PathParentHome {
		t.Errorf("page after login = %q, want %q", h.page(), router.PathParentHome)
	}
	if len(h.passwords.prompts) != 1 {
		t.Errorf("password prompts = %v, want one", h.passwords.prompts)
	}
	if !strings.Contains(h.out.String(), "Signed in as") {
		t.Errorf("output = %q, want sign-in message", h.out.String())
	}

	stored, err := h.prefs.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.AuthToken == "" {
		t.Error("token was not persisted")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.passwords.answers = []string{"wrong1"}

	err := h.shell.Execute(context.Background(), "login "+apitest.SeedParentPhone)
	if service.ReasonOf(err) != service.ReasonServerRejected {
		t.Fatalf("login error = %v, want server_rejected", err)
	}
	if describe(err) == "" {
		t.Error("describe() returned an empty message")
	}
	if h.session.Snapshot().Authenticated() {
		t.Error("session authenticated after a failed login")
	}
}

func TestViewSwitchRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)

	h.run(t, "child-view")
	if h.page() != router.PathChildHome {
		t.Fatalf("page after child-view = %q, want %q", h.page(), router.PathChildHome)
	}
	if snap := h.session.Snapshot(); snap.SelectedChild == nil || snap.SelectedChild.ID != apitest.SeedChild1ID {
		t.Errorf("SelectedChild = %+v, want first child", snap.SelectedChild)
	}

	// Parent pages stay closed in child view
	h.run(t, "go /reports")
	if h.page() != router.PathChildHome {
		t.Errorf("page after go /reports = %q, want %q", h.page(), router.PathChildHome)
	}

	// Inside the grace window no password is asked
	h.run(t, "parent-view")
	if h.page() != router.PathParentHome {
		t.Errorf("page after parent-view = %q, want %q", h.page(), router.PathParentHome)
	}
	if len(h.passwords.prompts) != 1 {
		t.Errorf("password prompts = %v, want only the login prompt", h.passwords.prompts)
	}
}

func TestParentViewAfterGraceAsksForPassword(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)
	h.run(t, "child-view")
	h.clock.now = h.clock.now.Add(10 * time.Minute)

	h.passwords.answers = []string{"wrong1"}
	err := h.shell.Execute(context.Background(), "parent-view")
	if service.ReasonOf(err) != service.ReasonServerRejected {
		t.Fatalf("parent-view with wrong password error = %v, want server_rejected", err)
	}
	if mode := h.session.Snapshot().ViewMode; mode != models.ViewChild {
		t.Errorf("ViewMode after failed verification = %v, want child", mode)
	}

	h.passwords.answers = []string{apitest.SeedParentPassword}
	h.run(t, "parent-view")
	if h.page() != router.PathParentHome {
		t.Errorf("page after verified parent-view = %q, want %q", h.page(), router.PathParentHome)
	}
	if len(h.passwords.prompts) != 3 {
		t.Errorf("password prompts = %d, want 3", len(h.passwords.prompts))
	}
}

func TestChildAccountCannotReachParentView(t *testing.T) {
	h := newHarness(t)
	h.passwords.answers = []string{apitest.SeedChildPassword}
	h.run(t, "login "+apitest.SeedChildPhone)

	if h.page() != router.PathChildHome {
		t.Fatalf("page after child login = %q, want %q", h.page(), router.PathChildHome)
	}
	if err := h.shell.Execute(context.Background(), "parent-view"); err == nil {
		t.Error("parent-view as child succeeded")
	}
	h.run(t, "go /parent")
	if h.page() != router.PathChildHome {
		t.Errorf("page after go /parent = %q, want %q", h.page(), router.PathChildHome)
	}
}

func TestChildrenSelectAndRewards(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)
	h.out.Reset()

	h.run(t, "children")
	if !strings.Contains(h.out.String(), "Xiaoming") || !strings.Contains(h.out.String(), "Xiaohong") {
		t.Errorf("children output = %q, want both seed children", h.out.String())
	}

	h.run(t, "select 3")
	if snap := h.session.Snapshot(); snap.SelectedChild == nil || snap.SelectedChild.ID != apitest.SeedChild2ID {
		t.Errorf("SelectedChild = %+v, want %d", snap.SelectedChild, apitest.SeedChild2ID)
	}

	h.out.Reset()
	h.run(t, "rewards")
	if !strings.Contains(h.out.String(), "Extra story time") {
		t.Errorf("rewards output = %q, want seed reward", h.out.String())
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)

	h.run(t, "logout")
	if h.page() != router.PathLogin {
		t.Errorf("page after logout = %q, want %q", h.page(), router.PathLogin)
	}
	h.run(t, "go /settings")
	if h.page() != router.PathLogin {
		t.Errorf("page after go /settings = %q, want %q", h.page(), router.PathLogin)
	}
	if err := h.shell.Execute(context.Background(), "rewards"); service.ReasonOf(err) != service.ReasonUnauthenticated {
		t.Errorf("rewards after logout error = %v, want unauthenticated", err)
	}
}

func TestBiometricWithoutPlatform(t *testing.T) {
	h := newHarness(t)
	h.loginParent(t)

	err := h.shell.Execute(context.Background(), "biometric on")
	if service.ReasonOf(err) != service.ReasonUnsupportedBrowser {
		t.Errorf("biometric on error = %v, want unsupported_browser", err)
	}
	if got := describe(err); got != "biometric verification is not available here" {
		t.Errorf("describe() = %q", got)
	}
}

func TestHelp(t *testing.T) {
	h := newHarness(t)

	h.run(t, "help")
	for _, name := range []string{"login", "parent-view", "reauth", "go <path>"} {
		if !strings.Contains(h.out.String(), name) {
			t.Errorf("help output missing %q", name)
		}
	}

	h.out.Reset()
	h.run(t, "help reauth")
	if !strings.Contains(h.out.String(), "reauth password|biometric") {
		t.Errorf("help reauth = %q", h.out.String())
	}
}

func TestPrompt(t *testing.T) {
	h := newHarness(t)
	if got := h.shell.Prompt(); got != "> " {
		t.Errorf("Prompt() signed out = %q", got)
	}

	h.loginParent(t)
	if got := h.shell.Prompt(); !strings.Contains(got, "[parent] /parent") {
		t.Errorf("Prompt() = %q, want view and page", got)
	}
}
