package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "Akredoc",
		UserName: "Budi Santoso",
		ResetURL: "https://example.com/reset?token=xyz789",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Akredoc") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Budi Santoso") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/reset?token=xyz789") {
		t.Error("template should contain reset URL")
	}
	if !strings.Contains(html, "60 menit") {
		t.Error("template should mention expiration time")
	}
}

func TestRenderEventAnnouncementTemplate(t *testing.T) {
	data := EventAnnouncementData{
		AppName:     "Akredoc",
		EventTitle:  "Rapat Persiapan Akreditasi",
		Description: "Pembahasan kelengkapan dokumen C1-C9.",
		StartDate:   "2026-09-15 09:00",
	}

	html, err := renderTemplate(eventAnnouncementTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Rapat Persiapan Akreditasi") {
		t.Error("template should contain event title")
	}
	if !strings.Contains(html, "2026-09-15 09:00") {
		t.Error("template should contain the start date")
	}
}
