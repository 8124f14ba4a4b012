// Package openapi describes the registered API routes as an OpenAPI 3.0
// document.
package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Generator builds the document from the routes echo knows about at request
// time, so it never drifts from what is actually mounted.
type Generator struct {
	version string
	routes  func() []*echo.Route
	public  func(path string) bool
}

// NewGenerator creates a generator. public reports the routes that need no
// credentials.
func NewGenerator(version string, routes func() []*echo.Route, public func(path string) bool) *Generator {
	return &Generator{version: version, routes: routes, public: public}
}

var documented = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

type param struct {
	name, desc, typ string
}

// resource describes one collection mounted under /api.
type resource struct {
	tag     string
	read    string
	write   string
	filters []param
}

var searchParam = param{name: "search", desc: "Case-insensitive substring; every term must match", typ: "string"}

var resources = map[string]resource{
	"/api/insurance_providers": {tag: "Insurance providers", read: "ReferenceItem", write: "ReferenceItemWrite", filters: []param{searchParam}},
	"/api/allergies":           {tag: "Allergies", read: "ReferenceItem", write: "ReferenceItemWrite", filters: []param{searchParam}},
	"/api/medication":          {tag: "Medication", read: "ReferenceItem", write: "ReferenceItemWrite", filters: []param{searchParam}},
	"/api/diagnoses":           {tag: "Diagnoses", read: "ReferenceItem", write: "ReferenceItemWrite", filters: []param{searchParam}},
	"/api/patients": {tag: "Patients", read: "Patient", write: "PatientWrite", filters: []param{
		{name: "search", desc: "Matches dob, first_name, last_name and email", typ: "string"},
	}},
	"/api/appointments": {tag: "Appointments", read: "Appointment", write: "AppointmentWrite", filters: []param{
		{name: "id", typ: "integer"},
		{name: "patient", desc: "Patient id", typ: "integer"},
		{name: "start_after", desc: "Inclusive lower bound; a date covers the whole day", typ: "string"},
		{name: "start_before", desc: "Inclusive upper bound; a date covers the whole day", typ: "string"},
		{name: "ordering", desc: "start, -start, id or -id", typ: "string"},
	}},
	"/api/progress_notes": {tag: "Progress notes", read: "ProgressNote", write: "ProgressNoteWrite", filters: []param{
		{name: "patient", desc: "Patient id", typ: "integer"},
		{name: "ordering", desc: "id or -id", typ: "string"},
	}},
}

// GenerateSpec produces the document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := map[string]map[string]interface{}{}
	for _, r := range g.routes() {
		if !documented[r.Method] || strings.HasSuffix(r.Path, "/*") {
			continue
		}
		op := g.operation(r)
		if op == nil {
			continue
		}
		key := openAPIPath(r.Path)
		if paths[key] == nil {
			paths[key] = map[string]interface{}{}
		}
		paths[key][strings.ToLower(r.Method)] = op
	}

	var tags []map[string]string
	seen := map[string]bool{}
	for _, res := range resources {
		if !seen[res.tag] {
			seen[res.tag] = true
			tags = append(tags, map[string]string{"name": res.tag})
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i]["name"] < tags[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   "Practice Management API",
			"version": g.version,
		},
		"tags":     tags,
		"paths":    paths,
		"security": []map[string][]string{{"bearerAuth": {}}},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": componentSchemas(),
		},
	}
}

// operation returns nil for routes it does not document.
func (g *Generator) operation(r *echo.Route) map[string]interface{} {
	collection, item := r.Path, false
	if strings.HasSuffix(r.Path, "/:id") {
		collection, item = strings.TrimSuffix(r.Path, "/:id"), true
	}

	res, ok := resources[collection]
	if !ok {
		return g.plainOperation(r)
	}

	op := map[string]interface{}{
		"tags":        []string{res.tag},
		"operationId": operationID(r.Method, collection, item),
	}
	var params []map[string]interface{}
	if item {
		params = append(params, map[string]interface{}{
			"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "integer"},
		})
	}

	responses := map[string]interface{}{
		"400": errorResponse("Validation failed; messages are keyed by field"),
		"401": errorResponse("Missing or invalid credentials"),
	}
	if item {
		responses["404"] = errorResponse("Not found")
	}

	switch {
	case r.Method == http.MethodGet && !item:
		op["summary"] = "List " + strings.ToLower(res.tag)
		for _, f := range res.filters {
			params = append(params, queryParam(f))
		}
		params = append(params,
			queryParam(param{name: "limit", desc: "Page size (max 100); enables the paginated envelope", typ: "integer"}),
			queryParam(param{name: "offset", typ: "integer"}),
		)
		responses["200"] = jsonResponse("A bare array, or a paginated envelope when limit is given", map[string]interface{}{
			"oneOf": []interface{}{
				map[string]interface{}{"type": "array", "items": ref(res.read)},
				pageSchema(res.read),
			},
		})
	case r.Method == http.MethodGet:
		op["summary"] = "Retrieve"
		responses["200"] = jsonResponse("OK", ref(res.read))
	case r.Method == http.MethodPost:
		op["summary"] = "Create"
		op["requestBody"] = requestBody(res.write)
		responses["201"] = jsonResponse("Created", ref(res.read))
	case r.Method == http.MethodPut:
		op["summary"] = "Replace"
		op["requestBody"] = requestBody(res.write)
		responses["200"] = jsonResponse("OK", ref(res.read))
	case r.Method == http.MethodPatch:
		op["summary"] = "Partial update"
		op["requestBody"] = requestBody(res.write)
		responses["200"] = jsonResponse("OK", ref(res.read))
	case r.Method == http.MethodDelete:
		op["summary"] = "Delete"
		responses["204"] = map[string]interface{}{"description": "Deleted"}
	default:
		return nil
	}

	if len(params) > 0 {
		op["parameters"] = params
	}
	op["responses"] = responses
	return op
}

// plainOperation documents operational routes without a resource schema.
func (g *Generator) plainOperation(r *echo.Route) map[string]interface{} {
	op := map[string]interface{}{
		"tags":        []string{"Operations"},
		"operationId": operationID(r.Method, r.Path, false),
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "OK"},
		},
	}
	if g.public != nil && g.public(r.Path) {
		op["security"] = []map[string][]string{}
	}
	return op
}

func openAPIPath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		if strings.HasPrefix(s, ":") {
			parts[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// operationID turns GET /api/progress_notes/:id into getProgressNotesItem.
func operationID(method, path string, item bool) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '_' || r == '.' }) {
		if seg == "api" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	if item {
		b.WriteString("Item")
	}
	return b.String()
}

func queryParam(p param) map[string]interface{} {
	m := map[string]interface{}{
		"name":   p.name,
		"in":     "query",
		"schema": map[string]string{"type": p.typ},
	}
	if p.desc != "" {
		m["description"] = p.desc
	}
	return m
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func requestBody(schema string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": ref(schema)},
		},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func errorResponse(description string) map[string]interface{} {
	return jsonResponse(description, ref("Error"))
}

func pageSchema(item string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count":    map[string]string{"type": "integer"},
			"next":     nullable("string"),
			"previous": nullable("string"),
			"results":  map[string]interface{}{"type": "array", "items": ref(item)},
		},
	}
}

func nullable(typ string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "nullable": true}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	m := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		m["required"] = required
	}
	return m
}

func idList() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": map[string]string{"type": "integer"}}
}

func itemList() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": ref("ReferenceItem")}
}

func enum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values}
}

func componentSchemas() map[string]interface{} {
	patientProps := func(provider interface{}) map[string]interface{} {
		return map[string]interface{}{
			"first_name":          map[string]interface{}{"type": "string", "maxLength": 50},
			"last_name":           map[string]interface{}{"type": "string", "maxLength": 50},
			"email":               nullable("string"),
			"phone":               nullable("string"),
			"dob":                 map[string]interface{}{"type": "string", "nullable": true, "example": "04/09/1980"},
			"insurance_provider":  provider,
			"insurance_member_id": nullable("string"),
			"is_new":              map[string]string{"type": "boolean"},
			"sex":                 map[string]interface{}{"type": "string", "enum": []string{"M", "F"}, "nullable": true},
		}
	}
	withID := func(props map[string]interface{}) map[string]interface{} {
		props["id"] = map[string]interface{}{"type": "integer", "readOnly": true}
		return props
	}

	noteProps := func(linked func() map[string]interface{}, patient interface{}) map[string]interface{} {
		return map[string]interface{}{
			"patient":            patient,
			"weight":             map[string]interface{}{"type": "string", "example": "72.50"},
			"height":             map[string]interface{}{"type": "string", "example": "180.00"},
			"blood_pressure_sys": map[string]string{"type": "integer"},
			"blood_pressure_dia": map[string]string{"type": "integer"},
			"chief_complaint":    nullable("string"),
			"medical_history":    nullable("string"),
			"treatment":          nullable("string"),
			"doctors_orders":     nullable("string"),
			"allergies":          linked(),
			"medication":         linked(),
			"diagnoses":          linked(),
		}
	}

	appointment := withID(map[string]interface{}{
		"start":       map[string]string{"type": "string", "format": "date-time"},
		"end":         map[string]string{"type": "string", "format": "date-time"},
		"status":      enum("SC", "CI", "DO"),
		"status_text": map[string]interface{}{"type": "string", "readOnly": true},
		"patient":     ref("Patient"),
		"created_at":  map[string]interface{}{"type": "string", "format": "date-time", "readOnly": true},
		"notes":       nullable("string"),
	})
	note := withID(noteProps(itemList, map[string]string{"type": "integer"}))
	note["created_at"] = map[string]interface{}{"type": "string", "format": "date-time", "readOnly": true}

	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": true,
			"properties":           map[string]interface{}{"detail": map[string]string{"type": "string"}},
		},
		"ReferenceItem":      object(withID(map[string]interface{}{"name": map[string]string{"type": "string"}})),
		"ReferenceItemWrite": object(map[string]interface{}{"name": map[string]string{"type": "string"}}, "name"),
		"Patient":            object(withID(patientProps(map[string]interface{}{"allOf": []interface{}{ref("ReferenceItem")}, "nullable": true}))),
		"PatientWrite":       object(patientProps(nullable("integer")), "first_name", "last_name"),
		"Appointment":        object(appointment),
		"AppointmentWrite": object(map[string]interface{}{
			"start":   map[string]string{"type": "string", "format": "date-time"},
			"end":     map[string]string{"type": "string", "format": "date-time"},
			"status":  enum("SC", "CI", "DO"),
			"patient": map[string]string{"type": "integer"},
			"notes":   nullable("string"),
		}, "start", "end", "patient"),
		"ProgressNote": object(note),
		"ProgressNoteWrite": object(noteProps(idList, map[string]string{"type": "integer"}),
			"patient", "weight", "height", "blood_pressure_sys", "blood_pressure_dia"),
	}
}

// RegisterRoutes serves the document at /openapi.json on g.
func (g *Generator) RegisterRoutes(api *echo.Group) {
	api.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
}
