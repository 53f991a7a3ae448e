package utils

import "testing"

func TestIsValidUsername(t *testing.T) {
	cases := map[string]bool{
		"ana":          true,
		"ana_maria_99": true,
		"ab":           false,
		"has space":    false,
		"accént":       false,
	}
	for in, want := range cases {
		if got := IsValidUsername(in); got != want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsValidPassword(t *testing.T) {
	if IsValidPassword("abc") {
		t.Error("short password accepted")
	}
	if IsValidPassword("abcdefgh") {
		t.Error("single character class accepted")
	}
	if !IsValidPassword("abcdef12") {
		t.Error("letters and digits rejected")
	}
}

func TestIsValidWebsite(t *testing.T) {
	if !IsValidWebsite("") || !IsValidWebsite("https://klik.app/about") {
		t.Error("valid website rejected")
	}
	if IsValidWebsite("javascript:alert(1)") || IsValidWebsite("klik.app") {
		t.Error("invalid website accepted")
	}
}
