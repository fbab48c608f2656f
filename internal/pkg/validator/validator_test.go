package validator

import (
	"errors"
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // valid UUIDv7
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B", // valid UUIDv7 (uppercase)
	}
	invalid := []string{
		"123e4567-e89b-12d3-a456-426614174000", // not v7
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",     // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // invalid hex
		"",                                     // empty
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2023-01-01", "2000-12-31"}
	invalid := []string{"2023-13-01", "2023-01-32", "2023/01/01", "01-01-2023", ""}
	for _, s := range valid {
		if _, ok := IsValidDate(s); !ok {
			t.Errorf("IsValidDate(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if _, ok := IsValidDate(s); ok {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

func TestIsValidDateTime(t *testing.T) {
	valid := []string{"2024-01-15T10:30:00Z", "2024-01-15T10:30:00+07:00", "2024-01-15T10:30:00.123Z"}
	invalid := []string{"2024-01-15", "10:30", "2024-01-15 10:30:00", ""}
	for _, s := range valid {
		if _, ok := IsValidDateTime(s); !ok {
			t.Errorf("IsValidDateTime(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if _, ok := IsValidDateTime(s); ok {
			t.Errorf("IsValidDateTime(%q) = true, want false", s)
		}
	}
}

func TestIsValidClock(t *testing.T) {
	valid := []string{"00:00", "09:00", "23:59"}
	invalid := []string{"24:00", "9:00", "09:60", "0900", ""}
	for _, s := range valid {
		if !IsValidClock(s) {
			t.Errorf("IsValidClock(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidClock(s) {
			t.Errorf("IsValidClock(%q) = true, want false", s)
		}
	}
}

func TestIsValidTimezone(t *testing.T) {
	if !IsValidTimezone("UTC") {
		t.Errorf("IsValidTimezone(UTC) = false, want true")
	}
	if IsValidTimezone("Mars/Olympus") {
		t.Errorf("IsValidTimezone(Mars/Olympus) = true, want false")
	}
	if IsValidTimezone(" ") {
		t.Errorf("IsValidTimezone(blank) = true, want false")
	}
}

func TestIsInSlice(t *testing.T) {
	slice := []string{"a", "b", "c"}
	if !IsInSlice("a", slice) {
		t.Errorf("IsInSlice('a') = false, want true")
	}
	if IsInSlice("d", slice) {
		t.Errorf("IsInSlice('d') = true, want false")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "reason", Message: "invalid"},
		{Field: "units", Message: "required"},
	}
	got := errs.Error()
	want := "reason: invalid; units: required"
	if got != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_ToMap(t *testing.T) {
	errs := ValidationErrors{
		{Field: "reason", Message: "invalid"},
		{Field: "units", Message: "required"},
	}
	got := errs.ToMap()
	want := map[string]string{"reason": "invalid", "units": "required"}
	if len(got) != len(want) {
		t.Errorf("ValidationErrors.ToMap() length = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ValidationErrors.ToMap()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

type sampleRequest struct {
	UserID     string `json:"-" validate:"required"`
	WorkTypeID string `json:"work_type_id" validate:"omitempty,uuid"`
	Start      string `json:"scheduled_start" validate:"omitempty,hhmm"`
	Timezone   string `json:"timezone" validate:"omitempty,iana_tz"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sampleRequest{UserID: "u1", Start: "08:30", Timezone: "UTC"}); err != nil {
		t.Fatalf("Struct(valid) = %v, want nil", err)
	}

	err := Struct(sampleRequest{WorkTypeID: "nope", Start: "8:30", Timezone: "Nowhere/City"})
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("Struct(invalid) error type = %T, want ValidationErrors", err)
	}
	got := errs.ToMap()
	want := map[string]string{
		"user_id":         "user_id is required",
		"work_type_id":    "work_type_id must be a valid UUID",
		"scheduled_start": "scheduled_start must be in HH:MM format",
		"timezone":        "timezone must be a valid IANA timezone",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Struct(invalid)[%q] = %q, want %q", k, got[k], v)
		}
	}
}
