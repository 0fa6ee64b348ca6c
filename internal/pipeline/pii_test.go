package pipeline

import (
	"reflect"
	"testing"
)

func TestDetectPII(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "clean text",
			text:     "Led migration of 12 services to Kubernetes",
			expected: nil,
		},
		{
			name:     "email address",
			text:     "Contact jane.doe@example.com for details",
			expected: []string{"PII detected: email address"},
		},
		{
			name:     "phone number",
			text:     "Reached 555-867-5309 customers",
			expected: []string{"PII detected: phone number"},
		},
		{
			name:     "phone number with dots",
			text:     "Call 555.867.5309 anytime",
			expected: []string{"PII detected: phone number"},
		},
		{
			name:     "ssn",
			text:     "Processed records for 123-45-6789",
			expected: []string{"PII detected: SSN"},
		},
		{
			name: "multiple kinds",
			text: "jane@example.com or 555-867-5309",
			expected: []string{
				"PII detected: email address",
				"PII detected: phone number",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPII(tt.text)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("DetectPII(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}

func TestApplySafeFixes(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "strips responsible for",
			text:     "Responsible for managing a team of 8 engineers",
			expected: "Managing a team of 8 engineers",
		},
		{
			name:     "strips duties included",
			text:     "Duties included weekly reporting to leadership",
			expected: "Weekly reporting to leadership",
		},
		{
			name:     "strips tasked with",
			text:     "tasked with migrating the billing system",
			expected: "Migrating the billing system",
		},
		{
			name:     "strips worked on",
			text:     "Worked on improving API latency by 40%",
			expected: "Improving API latency by 40%",
		},
		{
			name:     "collapses doubled spaces",
			text:     "Shipped  the  new  dashboard",
			expected: "Shipped the new dashboard",
		},
		{
			name:     "leaves strong bullets alone",
			text:     "Reduced deploy time from 45m to 6m",
			expected: "Reduced deploy time from 45m to 6m",
		},
		{
			name:     "only strips leading filler",
			text:     "Led the team responsible for billing",
			expected: "Led the team responsible for billing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplySafeFixes(tt.text); got != tt.expected {
				t.Errorf("ApplySafeFixes(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}
