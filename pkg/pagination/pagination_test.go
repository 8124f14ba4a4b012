package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestFromContext_NoLimitMeansUnpaginated(t *testing.T) {
	c, _ := contextFor("/api/patients?offset=10")

	p := FromContext(c)

	if p.Paginated {
		t.Error("expected unpaginated params without limit")
	}
	if p.LimitArg() != nil {
		t.Errorf("expected nil limit arg, got %v", p.LimitArg())
	}
	if p.OffsetArg() != 0 {
		t.Errorf("expected offset ignored without limit, got %d", p.OffsetArg())
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	c, _ := contextFor("/?limit=50&offset=10")

	p := FromContext(c)

	if !p.Paginated || p.Limit != 50 || p.Offset != 10 {
		t.Errorf("unexpected params %+v", p)
	}
	if p.LimitArg() != 50 || p.OffsetArg() != 10 {
		t.Errorf("unexpected bind args %v %d", p.LimitArg(), p.OffsetArg())
	}
}

func TestFromContext_InvalidLimit(t *testing.T) {
	for _, q := range []string{"limit=0", "limit=-3", "limit=abc"} {
		c, _ := contextFor("/?" + q)
		if p := FromContext(c); p.Paginated {
			t.Errorf("%s: expected unpaginated", q)
		}
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	c, _ := contextFor("/?limit=500")

	if p := FromContext(c); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	c, _ := contextFor("/?limit=5&offset=-5")

	if p := FromContext(c); p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"first page with more", Params{Limit: 10, Offset: 0}, 25, true},
		{"last page", Params{Limit: 10, Offset: 20}, 25, false},
		{"exact boundary", Params{Limit: 10, Offset: 10}, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParams_PreviousOffset(t *testing.T) {
	if got := (Params{Limit: 10, Offset: 5}).PreviousOffset(); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := (Params{Limit: 10, Offset: 30}).PreviousOffset(); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
}

func TestNewPage_Links(t *testing.T) {
	base, _ := url.Parse("http://example.test/api/patients?search=ann&limit=10&offset=10")
	page := NewPage(base, Params{Limit: 10, Offset: 10, Paginated: true}, []int{1}, 35)

	if page.Count != 35 {
		t.Errorf("expected count 35, got %d", page.Count)
	}
	if page.Next == nil || *page.Next != "http://example.test/api/patients?limit=10&offset=20&search=ann" {
		t.Errorf("unexpected next %v", page.Next)
	}
	// previous page is the first one, so offset is dropped
	if page.Previous == nil || *page.Previous != "http://example.test/api/patients?limit=10&search=ann" {
		t.Errorf("unexpected previous %v", page.Previous)
	}
}

func TestNewPage_FirstPageHasNoPrevious(t *testing.T) {
	base, _ := url.Parse("http://example.test/api/allergies?limit=5")
	page := NewPage(base, Params{Limit: 5, Paginated: true}, []int{}, 3)

	if page.Next != nil || page.Previous != nil {
		t.Errorf("expected no links, got next=%v previous=%v", page.Next, page.Previous)
	}
}

func TestRender_BareArray(t *testing.T) {
	c, rec := contextFor("/api/allergies")

	if err := Render(c, FromContext(c), []string{"a", "b"}, 2); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var body []string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected bare array, got %s", rec.Body.String())
	}
	if len(body) != 2 {
		t.Errorf("expected 2 items, got %d", len(body))
	}
}

func TestRender_Envelope(t *testing.T) {
	c, rec := contextFor("/api/allergies?limit=1")

	if err := Render(c, FromContext(c), []string{"a"}, 2); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var body struct {
		Count    int      `json:"count"`
		Next     *string  `json:"next"`
		Previous *string  `json:"previous"`
		Results  []string `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.Count != 2 || len(body.Results) != 1 || body.Next == nil || body.Previous != nil {
		t.Errorf("unexpected envelope %s", rec.Body.String())
	}
}
