package wire

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

type sample struct {
	Name      string   `json:"name"`
	Patient   *int64   `json:"patient"`
	Allergies *[]int64 `json:"allergies"`
	Pressure  *int32   `json:"blood_pressure_sys"`
	DOB       *Date    `json:"dob"`
	Weight    *Decimal `json:"weight"`
}

func fieldMessage(t *testing.T, err error, field string) string {
	t.Helper()
	var verr *apierror.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T (%v)", err, err)
	}
	msgs := verr.Fields[field]
	if len(msgs) == 0 {
		t.Fatalf("expected message on %q, got %v", field, verr.Fields)
	}
	return msgs[0]
}

func TestDecode_NestedObjectOnIDField(t *testing.T) {
	var s sample
	err := Decode([]byte(`{"patient": {"id": 1, "first_name": "Ann"}}`), &s)
	if got := fieldMessage(t, err, "patient"); got != "Incorrect type. Expected pk value, received object." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDecode_NestedObjectInIDList(t *testing.T) {
	var s sample
	err := Decode([]byte(`{"allergies": [{"id": 1, "name": "Peanuts"}]}`), &s)
	if got := fieldMessage(t, err, "allergies"); got != "Incorrect type. Expected pk value, received object." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDecode_ScalarForList(t *testing.T) {
	var s sample
	err := Decode([]byte(`{"allergies": 3}`), &s)
	if got := fieldMessage(t, err, "allergies"); got != `Expected a list of items but got type "int".` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDecode_IntegerField(t *testing.T) {
	var s sample
	err := Decode([]byte(`{"blood_pressure_sys": "high"}`), &s)
	if got := fieldMessage(t, err, "blood_pressure_sys"); got != "A valid integer is required." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDecode_QuotedIntegers(t *testing.T) {
	var s sample
	body := `{"patient": "5", "blood_pressure_sys": " 120 ", "allergies": ["3", 4], "weight": "72.5", "name": "7"}`
	if err := Decode([]byte(body), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Patient == nil || *s.Patient != 5 {
		t.Errorf("expected patient 5, got %v", s.Patient)
	}
	if s.Pressure == nil || *s.Pressure != 120 {
		t.Errorf("expected pressure 120, got %v", s.Pressure)
	}
	if s.Allergies == nil || len(*s.Allergies) != 2 || (*s.Allergies)[0] != 3 || (*s.Allergies)[1] != 4 {
		t.Errorf("expected allergies [3 4], got %v", s.Allergies)
	}
	if s.Weight == nil || s.Weight.Fixed(2) != "72.50" || s.Name != "7" {
		t.Errorf("expected other fields untouched, got %v %q", s.Weight, s.Name)
	}
}

func TestDecode_QuotedNonInteger(t *testing.T) {
	tests := []struct {
		body, field, want string
	}{
		{`{"patient": "5x"}`, "patient", "Incorrect type. Expected pk value, received str."},
		{`{"patient": "1.5"}`, "patient", "Incorrect type. Expected pk value, received str."},
		{`{"blood_pressure_sys": ""}`, "blood_pressure_sys", "A valid integer is required."},
		{`{"allergies": ["one"]}`, "allergies", "Incorrect type. Expected pk value, received str."},
	}
	for _, tt := range tests {
		var s sample
		err := Decode([]byte(tt.body), &s)
		if got := fieldMessage(t, err, tt.field); got != tt.want {
			t.Errorf("%s: unexpected message %q", tt.body, got)
		}
	}
}

func TestDecode_NotAnObject(t *testing.T) {
	var s sample
	err := Decode([]byte(`[1,2]`), &s)
	if got := fieldMessage(t, err, apierror.NonFieldErrors); got != "Invalid data. Expected a dictionary, but got list." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	var s sample
	err := Decode([]byte(`{"name": `), &s)
	var perr *apierror.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func TestDecode_EmptyBodyIsEmptyObject(t *testing.T) {
	var s sample
	if err := Decode(nil, &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Patient != nil {
		t.Error("expected zero value")
	}
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	var s sample
	if err := Decode([]byte(`{"id": 99, "name": "x", "created_at": "now"}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "x" {
		t.Errorf("expected name x, got %q", s.Name)
	}
}

func TestDate_Formats(t *testing.T) {
	for _, in := range []string{`"03/14/1990"`, `"1990-03-14"`} {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !d.Valid() {
			t.Fatalf("%s: expected valid date", in)
		}
		if !d.Time().Equal(time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("%s: got %v", in, d.Time())
		}
	}
}

func TestDate_Invalid(t *testing.T) {
	for _, in := range []string{`"14/03/1990"`, `"soon"`, `12`, `{}`} {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if d.Valid() {
			t.Errorf("%s: expected invalid", in)
		}
	}
}

func TestDate_Blank(t *testing.T) {
	var d Date
	_ = json.Unmarshal([]byte(`""`), &d)
	if !d.Blank() || !d.Valid() {
		t.Error("expected blank, valid date")
	}
}

func TestDate_Marshal(t *testing.T) {
	b, err := json.Marshal(NewDate(time.Date(2001, 12, 5, 15, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"12/05/2001"` {
		t.Errorf("got %s", b)
	}
}

func TestDecimal_Check(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`72.5`, ""},
		{`"72.50"`, ""},
		{`9999.99`, ""},
		{`0.5`, ""},
		{`"007.5"`, ""},
		{`72.555`, "Ensure that there are no more than 2 decimal places."},
		{`1234567`, "Ensure that there are no more than 6 digits in total."},
		{`12345.6`, "Ensure that there are no more than 4 digits before the decimal point."},
		{`"1234.567"`, "Ensure that there are no more than 6 digits in total."},
		{`"0.001"`, "Ensure that there are no more than 2 decimal places."},
		{`"0.00"`, ""},
		{`"1.2.3"`, "A valid number is required."},
		{`1e2`, "A valid number is required."},
		{`"abc"`, "A valid number is required."},
		{`"1e5"`, "A valid number is required."},
		{`{}`, "A valid number is required."},
		{`true`, "A valid number is required."},
		{`""`, "A valid number is required."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Decimal
			if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := d.Check(6, 2); got != tt.want {
				t.Errorf("Check(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func strp(s string) *string { return &s }

func TestRequiredText(t *testing.T) {
	v := apierror.NewValidation()
	if got := RequiredText(v, "name", strp("  Acme  "), 10); got != "Acme" {
		t.Errorf("expected trimmed value, got %q", got)
	}
	if v.Err() != nil {
		t.Fatalf("unexpected errors %v", v.Fields)
	}

	RequiredText(v, "missing", nil, 10)
	RequiredText(v, "blank", strp("   "), 10)
	RequiredText(v, "long", strp("abcdefghijk"), 10)
	want := map[string]string{
		"missing": MsgRequired,
		"blank":   MsgBlank,
		"long":    "Ensure this field has no more than 10 characters.",
	}
	for f, msg := range want {
		if len(v.Fields[f]) != 1 || v.Fields[f][0] != msg {
			t.Errorf("%s: got %v, want %q", f, v.Fields[f], msg)
		}
	}
}

func TestRequiredText_CountsCharactersNotBytes(t *testing.T) {
	v := apierror.NewValidation()
	RequiredText(v, "name", strp("ééééé"), 5)
	if v.Err() != nil {
		t.Errorf("expected five runes to fit, got %v", v.Fields)
	}
}

func TestOptionalTextAndBlankToNull(t *testing.T) {
	v := apierror.NewValidation()
	if OptionalText(v, "notes", nil, 0) != nil {
		t.Error("expected nil to stay nil")
	}
	if got := OptionalText(v, "notes", strp(""), 0); got == nil || *got != "" {
		t.Error("expected blank to be kept")
	}
	if BlankToNull(strp("  ")) != nil {
		t.Error("expected blank to become null")
	}
	if got := BlankToNull(strp(" a@b.c ")); got == nil || *got != "a@b.c" {
		t.Errorf("unexpected %v", got)
	}
}

func TestPathID(t *testing.T) {
	e := echo.New()
	for _, tt := range []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"7", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(tt.raw)
		id, err := PathID(c)
		if tt.ok {
			if err != nil || id != tt.want {
				t.Errorf("PathID(%q) = %d, %v", tt.raw, id, err)
			}
			continue
		}
		if !errors.Is(err, apierror.ErrNotFound) {
			t.Errorf("PathID(%q): expected not found, got %v", tt.raw, err)
		}
	}
}

func TestQueryID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?patient=5", nil), httptest.NewRecorder())
	id, err := QueryID(c, "patient")
	if err != nil || id == nil || *id != 5 {
		t.Fatalf("QueryID = %v, %v", id, err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if id, err := QueryID(c, "patient"); id != nil || err != nil {
		t.Errorf("expected absent filter, got %v, %v", id, err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?patient=x", nil), httptest.NewRecorder())
	_, err = QueryID(c, "patient")
	if got := fieldMessage(t, err, "patient"); got != "Enter a number." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2021, 3, 15, 14, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2021-03-15T14:30:00Z",
		"2021-03-15T10:30:00-04:00",
		"2021-03-15T14:30:00.000Z",
		"2021-03-15T14:30",
		"2021-03-15 14:30:00",
		"2021-03-15T16:30+02:00",
	} {
		got, ok := ParseTimestamp(s)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v", s, got, ok)
		}
	}
	for _, s := range []string{"", "03/15/2021", "2021-03-15", "tomorrow"} {
		if _, ok := ParseTimestamp(s); ok {
			t.Errorf("ParseTimestamp(%q) should fail", s)
		}
	}
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var s struct {
		Start *Timestamp `json:"start"`
	}
	if err := json.Unmarshal([]byte(`{"start": 12}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Start == nil || s.Start.Valid() {
		t.Errorf("expected invalid timestamp, got %+v", s.Start)
	}
}

func TestTimestamp_Marshal(t *testing.T) {
	ts := NewTimestamp(time.Date(2021, 3, 15, 10, 30, 0, 0, time.FixedZone("EDT", -4*3600)))
	b, _ := json.Marshal(ts)
	if string(b) != `"2021-03-15T14:30:00Z"` {
		t.Errorf("unexpected encoding %s", b)
	}
}

func TestDecimal_Fixed(t *testing.T) {
	for in, want := range map[string]string{
		"72.5":   "72.50",
		"007.5":  "7.50",
		".5":     "0.50",
		"150":    "150.00",
		"+1.25":  "1.25",
		"-3.1":   "-3.10",
		"-0.0":   "0.00",
		"100.00": "100.00",
		"0":      "0.00",
		"abc":    "abc",
	} {
		if got := ParseDecimal(in).Fixed(2); got != want {
			t.Errorf("Fixed(%q) = %q, want %q", in, got, want)
		}
	}
}
