package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"
)

func TestParseDate(t *testing.T) {
	valid := []string{"2024-02-29", "1999-12-31", " 2024-01-01 "}
	for _, s := range valid {
		if _, err := domain.ParseDate(s); err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "2023-02-29", "2024-13-01", "24-01-01", "2024/01/01", "01-02-2024", "2024-01-01T10:00:00"}
	for _, s := range invalid {
		_, err := domain.ParseDate(s)
		var bad *domain.ErrInvalidDate
		if !errors.As(err, &bad) {
			t.Errorf("ParseDate(%q) expected ErrInvalidDate, got %v", s, err)
		}
	}
}

func TestDate_Arithmetic(t *testing.T) {
	d := domain.MustParseDate("2024-03-01")
	if got := d.AddDays(-1).String(); got != "2024-02-29" {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
	if got := domain.MustParseDate("2024-03-31").DaysSince(d); got != 30 {
		t.Errorf("expected 30, got %d", got)
	}
	if !d.InRange(d, d) {
		t.Error("expected date to be inside its own single-day range")
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D   domain.Date  `json:"d"`
		Opt *domain.Date `json:"opt,omitempty"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-05-06"}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.D.String() != "2024-05-06" || v.Opt != nil {
		t.Errorf("unexpected decode: %+v", v)
	}

	out, _ := json.Marshal(v)
	if string(out) != `{"d":"2024-05-06"}` {
		t.Errorf("unexpected encode: %s", out)
	}

	if err := json.Unmarshal([]byte(`{"d":"06/05/2024"}`), &v); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
