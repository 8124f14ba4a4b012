package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func doRequest(h echo.HandlerFunc, e *echo.Echo, method, target, body, id string) (*httptest.ResponseRecorder, error) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return rec, h(c)
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	body := `{"first_name":"Ann","last_name":"Lee","email":"","phone":"","dob":"1980-04-09","insurance_provider":1,"sex":"F"}`
	rec, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", body, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["dob"] != "04/09/1980" {
		t.Errorf("expected dob rendered MM/DD/YYYY, got %v", got["dob"])
	}
	if got["email"] != nil || got["phone"] != nil {
		t.Errorf("expected blank email and phone rendered null, got %v %v", got["email"], got["phone"])
	}
	provider, ok := got["insurance_provider"].(map[string]interface{})
	if !ok || provider["name"] != "Acme Health" {
		t.Errorf("expected nested insurance provider, got %v", got["insurance_provider"])
	}
	if got["is_new"] != true {
		t.Errorf("expected is_new true, got %v", got["is_new"])
	}
}

func TestHandler_CreatePatient_RejectsNestedProvider(t *testing.T) {
	h, e := newTestHandler()
	body := `{"first_name":"Ann","last_name":"Lee","insurance_provider":{"id":1,"name":"Acme Health"}}`
	_, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", body, "")

	code, payload := apierror.Status(err)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	fields, ok := payload.(map[string][]string)
	if !ok || len(fields["insurance_provider"]) != 1 ||
		fields["insurance_provider"][0] != "Incorrect type. Expected pk value, received object." {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestHandler_CreatePatient_NullProvider(t *testing.T) {
	h, e := newTestHandler()
	rec, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients",
		`{"first_name":"Ann","last_name":"Lee","insurance_provider":null}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"insurance_provider":null`) {
		t.Errorf("expected null provider, got %s", rec.Body.String())
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	if _, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", `{"first_name":"Ann","last_name":"Lee"}`, ""); err != nil {
		t.Fatal(err)
	}

	rec, err := doRequest(h.GetPatient, e, http.MethodGet, "/api/patients/1", "", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got PatientRead
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != 1 || got.FirstName != "Ann" {
		t.Errorf("unexpected patient %+v", got)
	}

	for _, id := range []string{"2", "abc"} {
		_, err := doRequest(h.GetPatient, e, http.MethodGet, "/api/patients/"+id, "", id)
		if !errors.Is(err, apierror.ErrNotFound) {
			t.Errorf("id %s: expected not found, got %v", id, err)
		}
	}
}

func TestHandler_UpdatePatient(t *testing.T) {
	h, e := newTestHandler()
	if _, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", `{"first_name":"Ann","last_name":"Lee","insurance_provider":1}`, ""); err != nil {
		t.Fatal(err)
	}

	rec, err := doRequest(h.UpdatePatient, e, http.MethodPut, "/api/patients/1",
		`{"id":7,"first_name":"Anne","last_name":"Lee","insurance_provider":null,"is_new":false}`, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got PatientRead
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != 1 || got.FirstName != "Anne" || got.InsuranceProvider != nil || got.IsNew {
		t.Errorf("unexpected patient %+v", got)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	for _, body := range []string{
		`{"first_name":"Ann","last_name":"Lee"}`,
		`{"first_name":"Bob","last_name":"Stone"}`,
	} {
		if _, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", body, ""); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := doRequest(h.ListPatients, e, http.MethodGet, "/api/patients?search=stone", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []PatientRead
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("expected bare array: %s", rec.Body.String())
	}
	if len(items) != 1 || items[0].LastName != "Stone" {
		t.Errorf("unexpected results %+v", items)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	routes := map[string]bool{}
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/patients", "POST /api/patients",
		"GET /api/patients/:id", "PUT /api/patients/:id", "PATCH /api/patients/:id",
	} {
		if !routes[want] {
			t.Errorf("missing route %s", want)
		}
	}
	if routes["DELETE /api/patients/:id"] {
		t.Error("patient deletion must not be routed")
	}
}

func TestHandler_PatchPatient(t *testing.T) {
	h, e := newTestHandler()
	if _, err := doRequest(h.CreatePatient, e, http.MethodPost, "/api/patients", `{"first_name":"Ann","last_name":"Lee","dob":"04/09/1980"}`, ""); err != nil {
		t.Fatal(err)
	}

	rec, err := doRequest(h.PatchPatient, e, http.MethodPatch, "/api/patients/1", `{"is_new":false}`, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["is_new"] != false || got["dob"] != "04/09/1980" || got["first_name"] != "Ann" {
		t.Errorf("unexpected patient %v", got)
	}
}
