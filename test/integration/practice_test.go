//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medoffice/practice/internal/domain/clinical"
	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/domain/scheduling"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/wire"
	"github.com/medoffice/practice/pkg/pagination"
)

func createItem(t *testing.T, ctx context.Context, svc *reference.Service, name string) *reference.Item {
	t.Helper()
	item, err := svc.Create(ctx, reference.ItemWrite{Name: ptrStr(name)})
	if err != nil {
		t.Fatalf("create %s %q: %v", svc.Kind().Label, name, err)
	}
	return item
}

func createPatient(t *testing.T, ctx context.Context, s *stack, first, email string, provider *int64) *patient.Patient {
	t.Helper()
	p, err := s.patients.Create(ctx, patient.PatientWrite{
		FirstName:         ptrStr(first),
		LastName:          ptrStr("Tester"),
		Email:             ptrStr(email),
		InsuranceProvider: provider,
	})
	if err != nil {
		t.Fatalf("create patient %s: %v", first, err)
	}
	return p
}

func timestamp(s string) *wire.Timestamp {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	ts := wire.NewTimestamp(t)
	return &ts
}

func decimal(s string) *wire.Decimal {
	d := wire.ParseDecimal(s)
	return &d
}

func noteWrite(patientID int64) clinical.ProgressNoteWrite {
	return clinical.ProgressNoteWrite{
		Patient:          ptrInt64(patientID),
		Weight:           decimal("72.5"),
		Height:           decimal("180"),
		BloodPressureSys: ptrInt32(120),
		BloodPressureDia: ptrInt32(80),
	}
}

func TestReferenceNamesUniqueIgnoringCase(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		allergies := s.refs[reference.Allergy.Table]
		createItem(t, ctx, allergies, "Peanuts")

		_, err := allergies.Create(ctx, reference.ItemWrite{Name: ptrStr("PEANUTS")})
		var dup *apierror.DuplicateError
		if !errors.As(err, &dup) {
			t.Fatalf("expected duplicate error, got %v", err)
		}
		if dup.Message() != "allergy with this name already exists." {
			t.Errorf("unexpected message %q", dup.Message())
		}

		// Separate kinds do not collide.
		createItem(t, ctx, s.refs[reference.Medication.Table], "Peanuts")

		items, total, err := allergies.List(ctx, "pea", pagination.Params{})
		if err != nil {
			return err
		}
		if total != 1 || len(items) != 1 || items[0].Name != "Peanuts" {
			t.Errorf("expected one match, got %d %+v", total, items)
		}
		return nil
	})
}

func TestPatientUniqueness(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		// Blank email and phone are stored as NULL and never collide.
		createPatient(t, ctx, s, "Ann", "", nil)
		createPatient(t, ctx, s, "Bob", "  ", nil)

		first := createPatient(t, ctx, s, "Cat", "cat@example.com", nil)
		if first.Email == nil || *first.Email != "cat@example.com" {
			t.Fatalf("expected email stored, got %v", first.Email)
		}

		_, err := s.patients.Create(ctx, patient.PatientWrite{
			FirstName: ptrStr("Dup"),
			LastName:  ptrStr("Tester"),
			Email:     ptrStr("CAT@Example.com"),
		})
		var dup *apierror.DuplicateError
		if !errors.As(err, &dup) || dup.Field != "email" {
			t.Fatalf("expected duplicate email, got %v", err)
		}

		// A patient may keep its own email on update.
		if _, err := s.patients.Update(ctx, first.ID, patient.PatientWrite{
			FirstName: ptrStr("Cat"),
			LastName:  ptrStr("Renamed"),
			Email:     ptrStr("Cat@example.com"),
		}); err != nil {
			t.Fatalf("update own email: %v", err)
		}
		return nil
	})
}

func TestInsuranceProviderDeleteClearsPatients(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		providers := s.refs[reference.InsuranceProvider.Table]
		acme := createItem(t, ctx, providers, "Acme Health")
		p := createPatient(t, ctx, s, "Ann", "ann@example.com", ptrInt64(acme.ID))
		if p.InsuranceProvider == nil || p.InsuranceProvider.Name != "Acme Health" {
			t.Fatalf("expected nested provider, got %+v", p.InsuranceProvider)
		}

		if err := providers.Delete(ctx, acme.ID); err != nil {
			return err
		}

		got, err := s.patients.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("patient should survive its provider: %v", err)
		}
		if got.InsuranceProviderID != nil || got.InsuranceProvider != nil {
			t.Errorf("expected provider cleared, got %v", got.InsuranceProviderID)
		}
		return nil
	})
}

func TestPatientDeleteCascades(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		p := createPatient(t, ctx, s, "Ann", "ann@example.com", nil)

		appt, err := s.scheduling.Create(ctx, scheduling.AppointmentWrite{
			Start:   timestamp("2021-03-15T14:00:00Z"),
			End:     timestamp("2021-03-15T14:30:00Z"),
			Patient: ptrInt64(p.ID),
		})
		if err != nil {
			t.Fatalf("create appointment: %v", err)
		}
		note, err := s.clinical.Create(ctx, noteWrite(p.ID))
		if err != nil {
			t.Fatalf("create progress note: %v", err)
		}

		if err := s.patients.Delete(ctx, p.ID); err != nil {
			return err
		}

		if _, err := s.scheduling.Get(ctx, appt.ID); !errors.Is(err, apierror.ErrNotFound) {
			t.Errorf("expected appointment deleted, got %v", err)
		}
		if _, err := s.clinical.Get(ctx, note.ID); !errors.Is(err, apierror.ErrNotFound) {
			t.Errorf("expected progress note deleted, got %v", err)
		}
		return nil
	})
}

func TestAppointmentFilters(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		ann := createPatient(t, ctx, s, "Ann", "ann@example.com", nil)
		bob := createPatient(t, ctx, s, "Bob", "bob@example.com", nil)

		for _, a := range []struct {
			start, end string
			patient    int64
		}{
			{"2021-03-15T16:00:00Z", "2021-03-15T16:30:00Z", ann.ID},
			{"2021-03-15T09:00:00Z", "2021-03-15T09:30:00Z", bob.ID},
			{"2021-03-16T09:00:00Z", "2021-03-16T09:30:00Z", ann.ID},
		} {
			if _, err := s.scheduling.Create(ctx, scheduling.AppointmentWrite{
				Start: timestamp(a.start), End: timestamp(a.end), Patient: ptrInt64(a.patient),
			}); err != nil {
				t.Fatalf("create appointment: %v", err)
			}
		}

		after, ok := scheduling.ParseBound("03/15/2021", false)
		if !ok {
			t.Fatal("expected a valid lower bound")
		}
		before, ok := scheduling.ParseBound("03/15/2021", true)
		if !ok {
			t.Fatal("expected a valid upper bound")
		}

		items, total, err := s.scheduling.List(ctx, scheduling.Filter{StartAfter: &after, StartBefore: &before}, pagination.Params{})
		if err != nil {
			return err
		}
		if total != 2 || len(items) != 2 {
			t.Fatalf("expected 2 appointments on 03/15, got %d", total)
		}
		if items[0].Patient.FirstName != "Bob" || items[1].Patient.FirstName != "Ann" {
			t.Errorf("expected start order with nested patients, got %s then %s",
				items[0].Patient.FirstName, items[1].Patient.FirstName)
		}

		items, total, err = s.scheduling.List(ctx, scheduling.Filter{PatientID: ptrInt64(ann.ID)}, pagination.Params{Limit: 1, Paginated: true})
		if err != nil {
			return err
		}
		if total != 2 || len(items) != 1 {
			t.Errorf("expected page of 1 out of 2, got %d of %d", len(items), total)
		}
		return nil
	})
}

func TestProgressNoteAssociations(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		p := createPatient(t, ctx, s, "Ann", "ann@example.com", nil)
		allergies := s.refs[reference.Allergy.Table]
		peanuts := createItem(t, ctx, allergies, "Peanuts")
		latex := createItem(t, ctx, allergies, "Latex")
		flu := createItem(t, ctx, s.refs[reference.Diagnosis.Table], "Influenza")

		w := noteWrite(p.ID)
		w.Allergies = &[]int64{latex.ID, peanuts.ID, latex.ID}
		w.Diagnoses = &[]int64{flu.ID}
		note, err := s.clinical.Create(ctx, w)
		if err != nil {
			t.Fatalf("create progress note: %v", err)
		}
		if note.Weight != "72.50" || note.Height != "180.00" {
			t.Errorf("expected two decimal places, got %s/%s", note.Weight, note.Height)
		}
		if len(note.Allergies) != 2 || note.Allergies[0].ID != peanuts.ID || note.Allergies[1].ID != latex.ID {
			t.Errorf("expected deduplicated allergies ordered by id, got %+v", note.Allergies)
		}

		// Lists absent from the body keep their stored sets.
		upd := noteWrite(p.ID)
		upd.Treatment = ptrStr("rest")
		note, err = s.clinical.Update(ctx, note.ID, upd)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(note.Allergies) != 2 || len(note.Diagnoses) != 1 {
			t.Errorf("expected associations kept, got %d allergies %d diagnoses", len(note.Allergies), len(note.Diagnoses))
		}

		note, err = s.clinical.Patch(ctx, note.ID, func(w *clinical.ProgressNoteWrite) error {
			w.Allergies = &[]int64{}
			return nil
		})
		if err != nil {
			t.Fatalf("patch: %v", err)
		}
		if len(note.Allergies) != 0 || len(note.Diagnoses) != 1 {
			t.Errorf("expected allergies cleared only, got %d allergies %d diagnoses", len(note.Allergies), len(note.Diagnoses))
		}

		// Deleting a diagnosis drops it from every note.
		if err := s.refs[reference.Diagnosis.Table].Delete(ctx, flu.ID); err != nil {
			return err
		}
		note, err = s.clinical.Get(ctx, note.ID)
		if err != nil {
			return err
		}
		if len(note.Diagnoses) != 0 {
			t.Errorf("expected diagnosis association removed, got %+v", note.Diagnoses)
		}
		return nil
	})
}

func TestProgressNoteUnitOfWork(t *testing.T) {
	tenant := newTenant(t)
	s := newStack()

	inTenant(t, tenant, func(ctx context.Context) error {
		p := createPatient(t, ctx, s, "Ann", "ann@example.com", nil)

		w := noteWrite(p.ID)
		w.Diagnoses = &[]int64{999}
		_, err := s.clinical.Create(ctx, w)
		var v *apierror.ValidationError
		if !errors.As(err, &v) || len(v.Fields["diagnoses"]) == 0 {
			t.Fatalf("expected diagnoses error, got %v", err)
		}

		_, total, err := s.clinical.List(ctx, clinical.Filter{PatientID: ptrInt64(p.ID)}, pagination.Params{})
		if err != nil {
			return err
		}
		if total != 0 {
			t.Errorf("expected nothing written, found %d notes", total)
		}
		return nil
	})
}
