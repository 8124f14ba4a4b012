// Package sandbox fills a tenant with reproducible demo data: reference
// lookups, patients, their appointments and progress notes. Everything goes
// through the domain services so seeded rows obey the same validation as API
// writes.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/medoffice/practice/internal/domain/clinical"
	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/domain/scheduling"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	PatientCount           int
	AppointmentsPerPatient int
	NotesPerPatient        int
	// FirstDay is the day the first appointments are booked on. Each
	// further appointment of a patient lands one week later.
	FirstDay time.Time
	Seed     int64
}

func DefaultSeedConfig() SeedConfig {
	now := time.Now().UTC()
	return SeedConfig{
		PatientCount:           20,
		AppointmentsPerPatient: 2,
		NotesPerPatient:        1,
		FirstDay:               time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// SeedResult counts what was written. References counts both created and
// reused items, keyed by table.
type SeedResult struct {
	References   map[string]int `json:"references"`
	Patients     int            `json:"patients"`
	Appointments int            `json:"appointments"`
	Notes        int            `json:"notes"`
	Duration     string         `json:"duration"`
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda",
		"David", "Elizabeth", "William", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
		"Thomas", "Sarah", "Daniel", "Karen", "Maria", "Wei", "Aisha", "Carlos",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson",
		"Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson",
	}
	complaints = []string{
		"Persistent cough", "Lower back pain", "Headache", "Annual physical",
		"Seasonal allergies", "Sore throat", "Fatigue", "Follow-up visit",
	}
	treatments = []string{
		"Rest and fluids", "Physical therapy referral", "Prescribed antibiotics",
		"Ibuprofen as needed", "No treatment required",
	}

	// Lookup names seeded per table. Lengths respect each kind's limit.
	referenceNames = map[string][]string{
		reference.InsuranceProvider.Table: {"Blue Cross Blue Shield", "Aetna", "Cigna", "UnitedHealthcare", "Humana", "Kaiser Permanente"},
		reference.Allergy.Table:           {"Peanuts", "Penicillin", "Latex", "Shellfish", "Pollen", "Sulfa drugs"},
		reference.Medication.Table:        {"Lisinopril", "Metformin", "Amoxicillin", "Atorvastatin", "Albuterol", "Omeprazole"},
		reference.Diagnosis.Table:         {"Hypertension", "Type 2 diabetes", "Asthma", "Acute bronchitis", "Migraine", "GERD"},
	}
)

// DataGenerator produces deterministic write bodies.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// pickIDs returns up to max distinct ids from pool, possibly none.
func (g *DataGenerator) pickIDs(pool []int64, max int) []int64 {
	n := g.rng.Intn(max + 1)
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]int64, 0, n)
	for _, i := range g.rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func (g *DataGenerator) randomDate(minYear, maxYear int) time.Time {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := time.Month(1 + g.rng.Intn(12))
	d := 1 + g.rng.Intn(28) // safe for all months
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Patient builds a patient body. Email and phone embed a running counter so
// they never collide within one run.
func (g *DataGenerator) Patient(providers []int64) patient.PatientWrite {
	g.counter++
	first, last := g.pick(firstNames), g.pick(lastNames)
	email := fmt.Sprintf("%s.%s.%d%04x@example.com",
		strings.ToLower(first), strings.ToLower(last), g.counter, g.rng.Intn(0x10000))
	phone := fmt.Sprintf("(%03d) 555-%04d", 200+g.rng.Intn(800), g.counter%10000)
	dob := wire.NewDate(g.randomDate(1940, 2015))
	sex := patient.SexMale
	if g.rng.Intn(2) == 0 {
		sex = patient.SexFemale
	}
	isNew := g.rng.Intn(4) == 0

	w := patient.PatientWrite{
		FirstName: &first,
		LastName:  &last,
		Email:     &email,
		Phone:     &phone,
		DOB:       &dob,
		IsNew:     &isNew,
		Sex:       &sex,
	}
	// One in five patients is uninsured.
	if len(providers) > 0 && g.rng.Intn(5) != 0 {
		id := providers[g.rng.Intn(len(providers))]
		member := fmt.Sprintf("MBR%09d", g.rng.Intn(1000000000))
		w.InsuranceProvider = &id
		w.InsuranceMemberID = &member
	}
	return w
}

// Appointment books a 30 minute slot between 09:00 and 16:30 on day.
func (g *DataGenerator) Appointment(patientID int64, day time.Time) scheduling.AppointmentWrite {
	start := day.Add(9*time.Hour + time.Duration(g.rng.Intn(16))*30*time.Minute)
	s, e := wire.NewTimestamp(start), wire.NewTimestamp(start.Add(30*time.Minute))
	status := scheduling.StatusScheduled
	return scheduling.AppointmentWrite{Start: &s, End: &e, Status: &status, Patient: &patientID}
}

// Note builds a progress note linking a random subset of the seeded lookups.
func (g *DataGenerator) Note(patientID int64, refs map[string][]int64) clinical.ProgressNoteWrite {
	weight := wire.ParseDecimal(fmt.Sprintf("%d.%d", 45+g.rng.Intn(70), g.rng.Intn(10)))
	height := wire.ParseDecimal(fmt.Sprintf("%d.%d", 150+g.rng.Intn(50), g.rng.Intn(10)))
	sys := int32(100 + g.rng.Intn(50))
	dia := int32(60 + g.rng.Intn(30))
	complaint, treatment := g.pick(complaints), g.pick(treatments)
	allergies := g.pickIDs(refs[reference.Allergy.Table], 2)
	medication := g.pickIDs(refs[reference.Medication.Table], 2)
	diagnoses := g.pickIDs(refs[reference.Diagnosis.Table], 1)

	return clinical.ProgressNoteWrite{
		Patient:          &patientID,
		Weight:           &weight,
		Height:           &height,
		BloodPressureSys: &sys,
		BloodPressureDia: &dia,
		ChiefComplaint:   &complaint,
		Treatment:        &treatment,
		Allergies:        &allergies,
		Medication:       &medication,
		Diagnoses:        &diagnoses,
	}
}

// ReferenceStore is the part of reference.Service the seeder needs.
type ReferenceStore interface {
	Kind() reference.Kind
	Create(ctx context.Context, w reference.ItemWrite) (*reference.Item, error)
	List(ctx context.Context, search string, pg pagination.Params) ([]*reference.Item, int, error)
}

type PatientStore interface {
	Create(ctx context.Context, w patient.PatientWrite) (*patient.Patient, error)
}

type AppointmentStore interface {
	Create(ctx context.Context, w scheduling.AppointmentWrite) (*scheduling.AppointmentRead, error)
}

type NoteStore interface {
	Create(ctx context.Context, w clinical.ProgressNoteWrite) (*clinical.ProgressNoteRead, error)
}

// Targets are the stores seeded data is written to.
type Targets struct {
	References   []ReferenceStore
	Patients     PatientStore
	Appointments AppointmentStore
	Notes        NoteStore
}

// Seeder writes one batch of generated data.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	targets   Targets
}

func NewSeeder(config SeedConfig, targets Targets) *Seeder {
	return &Seeder{
		generator: NewDataGenerator(config.Seed),
		config:    config,
		targets:   targets,
	}
}

// Run seeds every lookup name, then the patients and their records. Lookup
// names that already exist are reused, so seeding a tenant twice only adds
// patients. The first failing write aborts the run.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{References: map[string]int{}}

	refs := map[string][]int64{}
	for _, store := range s.targets.References {
		table := store.Kind().Table
		for _, name := range referenceNames[table] {
			item, err := ensureItem(ctx, store, name)
			if err != nil {
				return nil, fmt.Errorf("seed %s %q: %w", store.Kind().Label, name, err)
			}
			refs[table] = append(refs[table], item.ID)
		}
		result.References[table] = len(refs[table])
	}

	day := s.config.FirstDay
	if day.IsZero() {
		day = DefaultSeedConfig().FirstDay
	}
	providers := refs[reference.InsuranceProvider.Table]

	for i := 0; i < s.config.PatientCount; i++ {
		p, err := s.targets.Patients.Create(ctx, s.generator.Patient(providers))
		if err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		result.Patients++

		for j := 0; j < s.config.AppointmentsPerPatient; j++ {
			w := s.generator.Appointment(p.ID, day.AddDate(0, 0, 7*j+i%5))
			if _, err := s.targets.Appointments.Create(ctx, w); err != nil {
				return nil, fmt.Errorf("seed appointment for patient %d: %w", p.ID, err)
			}
			result.Appointments++
		}
		for j := 0; j < s.config.NotesPerPatient; j++ {
			if _, err := s.targets.Notes.Create(ctx, s.generator.Note(p.ID, refs)); err != nil {
				return nil, fmt.Errorf("seed progress note for patient %d: %w", p.ID, err)
			}
			result.Notes++
		}
	}

	result.Duration = time.Since(start).String()
	return result, nil
}

// ensureItem creates name or returns the existing item of the same name.
func ensureItem(ctx context.Context, store ReferenceStore, name string) (*reference.Item, error) {
	item, err := store.Create(ctx, reference.ItemWrite{Name: &name})
	var dup *apierror.DuplicateError
	if !errors.As(err, &dup) {
		return item, err
	}

	matches, _, err := store.List(ctx, name, pagination.Params{})
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%q reported as duplicate but not found", name)
}
