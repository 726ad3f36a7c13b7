package biometric

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePlatform struct {
	supported  bool
	capable    bool
	capableErr error
	assertErr  error
	block      bool

	assertCalls int
	lastReq     AssertionRequest
}

func (f *fakePlatform) IsSupported() bool { return f.supported }

func (f *fakePlatform) IsDeviceCapable(context.Context) (bool, error) {
	return f.capable, f.capableErr
}

func (f *fakePlatform) RequestAssertion(ctx context.Context, req AssertionRequest) error {
	f.assertCalls++
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.assertErr
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		platform   *fakePlatform
		wantReason Reason
		wantAssert bool
	}{
		{
			name:       "success",
			platform:   &fakePlatform{supported: true, capable: true},
			wantAssert: true,
		},
		{
			name:       "api missing",
			platform:   &fakePlatform{supported: false, capable: true},
			wantReason: ReasonUnsupportedBrowser,
		},
		{
			name:       "no authenticator",
			platform:   &fakePlatform{supported: true, capable: false},
			wantReason: ReasonUnsupportedDevice,
		},
		{
			name:       "capability check errors",
			platform:   &fakePlatform{supported: true, capable: true, capableErr: errors.New("capability check failed")},
			wantReason: ReasonUnsupportedDevice,
		},
		{
			name:       "user dismissed prompt",
			platform:   &fakePlatform{supported: true, capable: true, assertErr: ErrUserCancelled},
			wantReason: ReasonUserCancelled,
			wantAssert: true,
		},
		{
			name:       "platform timeout",
			platform:   &fakePlatform{supported: true, capable: true, assertErr: ErrTimeout},
			wantReason: ReasonTimeout,
			wantAssert: true,
		},
		{
			name:       "authenticator refused",
			platform:   &fakePlatform{supported: true, capable: true, assertErr: ErrNotSupported},
			wantReason: ReasonUnsupportedDevice,
			wantAssert: true,
		},
		{
			name:       "unexpected failure",
			platform:   &fakePlatform{supported: true, capable: true, assertErr: errors.New("boom")},
			wantReason: ReasonOther,
			wantAssert: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(tt.platform, time.Second)
			err := v.Verify(context.Background(), 42)

			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v, want nil", err)
				}
			} else {
				var bErr *Error
				if !errors.As(err, &bErr) {
					t.Fatalf("Verify() error = %v, want *Error", err)
				}
				if bErr.Reason != tt.wantReason {
					t.Errorf("Verify() reason = %q, want %q", bErr.Reason, tt.wantReason)
				}
			}

			if got := tt.platform.assertCalls > 0; got != tt.wantAssert {
				t.Errorf("assertion requested = %v, want %v", got, tt.wantAssert)
			}
		})
	}
}

func TestVerifyRequestShape(t *testing.T) {
	p := &fakePlatform{supported: true, capable: true}
	if err := NewVerifier(p, 0).Verify(context.Background(), 7); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if p.lastReq.UserID != 7 {
		t.Errorf("UserID = %d, want 7", p.lastReq.UserID)
	}
	if len(p.lastReq.Challenge) != 32 {
		t.Errorf("challenge length = %d, want 32", len(p.lastReq.Challenge))
	}
	if p.lastReq.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.lastReq.Timeout, DefaultTimeout)
	}
}

func TestVerifyDeadline(t *testing.T) {
	p := &fakePlatform{supported: true, capable: true, block: true}
	err := NewVerifier(p, 20*time.Millisecond).Verify(context.Background(), 1)

	var bErr *Error
	if !errors.As(err, &bErr) || bErr.Reason != ReasonTimeout {
		t.Fatalf("Verify() error = %v, want timeout", err)
	}
}

func TestVerifyCallerCancels(t *testing.T) {
	p := &fakePlatform{supported: true, capable: true, block: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := NewVerifier(p, time.Minute).Verify(ctx, 1)
	var bErr *Error
	if !errors.As(err, &bErr) || bErr.Reason != ReasonUserCancelled {
		t.Fatalf("Verify() error = %v, want user_cancelled", err)
	}
}

func TestVerifyCallerDeadlineIsTimeout(t *testing.T) {
	p := &fakePlatform{supported: true, capable: true, block: true}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewVerifier(p, time.Minute).Verify(ctx, 1)
	var bErr *Error
	if !errors.As(err, &bErr) || bErr.Reason != ReasonTimeout {
		t.Fatalf("Verify() error = %v, want timeout", err)
	}
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		want     bool
	}{
		{name: "unavailable", platform: Unavailable{}, want: false},
		{name: "nil platform", platform: nil, want: false},
		{name: "capable", platform: &fakePlatform{supported: true, capable: true}, want: true},
		{name: "capability error", platform: &fakePlatform{supported: true, capable: true, capableErr: errors.New("x")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewVerifier(tt.platform, 0).Available(context.Background()); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}
