package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{name: "valid phone", phone: "13800138000", wantErr: false},
		{name: "valid 19x phone", phone: "19912345678", wantErr: false},
		{name: "second digit too low", phone: "12800138000", wantErr: true},
		{name: "too short", phone: "1380013800", wantErr: true},
		{name: "too long", phone: "138001380001", wantErr: true},
		{name: "letters", phone: "1380013800a", wantErr: true},
		{name: "empty string", phone: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePhone(%q) error = %v, wantErr %v", tt.phone, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNickname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid nickname",
			input:   "Xiao Ming",
			wantErr: false,
		},
		{
			name:    "two CJK characters",
			input:   "小明",
			wantErr: false,
		},
		{
			name:    "empty nickname",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "nickname too short",
			input:   "J",
			wantErr: true,
		},
		{
			name:    "nickname too long",
			input:   strings.Repeat("a", 21),
			wantErr: true,
		},
		{
			name:    "nickname with apostrophe",
			input:   "O'Brien",
			wantErr: true,
		},
		{
			name:    "nickname with markup",
			input:   "<b>Tom</b>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNickname(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNickname(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "password123",
			wantErr:  false,
		},
		{
			name:     "password exactly 6 characters",
			password: "pass12",
			wantErr:  false,
		},
		{
			name:     "password too short",
			password: "pas12",
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "password too long",
			password: "thisIsAVeryLongPassword123",
			wantErr:  true,
		},
		{
			name:     "letters only",
			password: "password",
			wantErr:  true,
		},
		{
			name:     "digits only",
			password: "12345678",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAge(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "1", want: 1},
		{input: " 18 ", want: 18},
		{input: "0", wantErr: true},
		{input: "19", wantErr: true},
		{input: "ten", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidateAge(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAge(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateAge(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestValidateScore(t *testing.T) {
	tests := []struct {
		score   int
		wantErr bool
	}{
		{score: 0, wantErr: true},
		{score: 5},
		{score: -50},
		{score: 50},
		{score: -51, wantErr: true},
		{score: 51, wantErr: true},
	}

	for _, tt := range tests {
		if err := ValidateScore(tt.score); (err != nil) != tt.wantErr {
			t.Errorf("ValidateScore(%d) error = %v, wantErr %v", tt.score, err, tt.wantErr)
		}
	}
}

func TestValidateBehaviorType(t *testing.T) {
	tests := []struct {
		behaviorType string
		wantErr      bool
	}{
		{behaviorType: "learning"},
		{behaviorType: "eating"},
		{behaviorType: "", wantErr: true},
		{behaviorType: "Learning", wantErr: true},
		{behaviorType: "chores", wantErr: true},
	}

	for _, tt := range tests {
		if err := ValidateBehaviorType(tt.behaviorType); (err != nil) != tt.wantErr {
			t.Errorf("ValidateBehaviorType(%q) error = %v, wantErr %v", tt.behaviorType, err, tt.wantErr)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{name: "png within limit", contentType: "image/png", size: 1024},
		{name: "webp at limit", contentType: "image/webp", size: MaxUploadSize},
		{name: "too large", contentType: "image/jpeg", size: MaxUploadSize + 1, wantErr: true},
		{name: "pdf", contentType: "application/pdf", size: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.contentType, tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUpload() error = %v, wantErr %v", err, tt.wantErr)
			}
			var ve ValidationError
			if err != nil && !errors.As(err, &ve) {
				t.Errorf("ValidateUpload() error type = %T, want ValidationError", err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  hello  ", want: "hello"},
		{name: "strips markup", input: `<script>alert("x")</script>`, want: "scriptalert(x)/script"},
		{name: "strips ampersand and quotes", input: `Tom & 'Jerry'`, want: "Tom  Jerry"},
		{name: "caps length", input: strings.Repeat("a", 1500), want: strings.Repeat("a", MaxSanitizedLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeInput(tt.input); got != tt.want {
				t.Errorf("SanitizeInput() = %q, want %q", got, tt.want)
			}
		})
	}
}
