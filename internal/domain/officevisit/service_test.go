package officevisit

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/audit"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/db"
)

// -- Mock Repository --

type mockRepo struct {
	rows   map[int64]OfficeVisit
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{rows: make(map[int64]OfficeVisit), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, v *OfficeVisit) error {
	if v.ID == 0 {
		v.ID = m.nextID
		m.nextID++
	}
	if _, ok := m.rows[v.ID]; ok {
		return apperr.Conflict("office visit %d already exists", v.ID)
	}
	m.rows[v.ID] = *v
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*OfficeVisit, error) {
	v, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("office visit %d not found", id)
	}
	return &v, nil
}

func (m *mockRepo) List(context.Context) ([]OfficeVisit, error) {
	out := make([]OfficeVisit, 0, len(m.rows))
	for _, v := range m.rows {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, id int64, v *OfficeVisit) error {
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("office visit %d not found", id)
	}
	m.rows[id] = *v
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type mockUsers map[string][]auth.Role

func (m mockUsers) Roles(_ context.Context, username string) ([]auth.Role, error) {
	roles, ok := m[username]
	if !ok {
		return nil, apperr.NotFound("user %q not found", username)
	}
	return roles, nil
}

type mockHospitals map[string]bool

func (m mockHospitals) Exists(_ context.Context, name string) (bool, error) {
	return m[name], nil
}

var testRefs = References{
	Users: mockUsers{
		"patient1": {auth.RolePatient},
		"patient2": {auth.RolePatient},
		"hcp1":     {auth.RoleHCP},
		"oph1":     {auth.RoleOPH},
		"admin1":   {auth.RoleAdmin},
	},
	Hospitals: mockHospitals{"St. Mary": true},
}

func newTestService() (*Service, *mockRepo, *audit.MemoryStore) {
	repo := newMockRepo()
	store := audit.NewMemoryStore()
	svc := NewService(repo, db.NoTx{}, audit.NewLogger(store, nil, zerolog.Nop()), testRefs)
	return svc, repo, store
}

func ctxAs(username string, roles ...auth.Role) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{Username: username, Roles: roles})
}

func hcpCtx() context.Context { return ctxAs("hcp1", auth.RoleHCP) }

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func checkupForm() Form {
	return Form{
		Patient:              "patient1",
		HCP:                  "hcp1",
		Hospital:             "St. Mary",
		Date:                 "2024-03-01T10:00:00Z",
		Type:                 string(GeneralCheckup),
		Notes:                "annual physical",
		Height:               floatPtr(170.5),
		Weight:               floatPtr(150.2),
		Systolic:             intPtr(120),
		Diastolic:            intPtr(80),
		HDL:                  intPtr(55),
		LDL:                  intPtr(100),
		Tri:                  intPtr(150),
		HouseSmokingStatus:   "NONSMOKING",
		PatientSmokingStatus: "NEVER",
	}
}

func lastEntry(store *audit.MemoryStore) audit.Entry {
	entries := store.Entries()
	return entries[len(entries)-1]
}

func TestService_CreateAndGetRoundTrip(t *testing.T) {
	svc, _, store := newTestService()
	f := checkupForm()
	created, err := svc.Create(hcpCtx(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected an assigned id")
	}
	if e := lastEntry(store); e.Type != "OFFICE_VISIT_CREATE" || e.Target != "patient1" || e.Actor != "hcp1" {
		t.Errorf("unexpected create entry %+v", e)
	}

	got, err := svc.Get(hcpCtx(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := f
	want.ID = FormOf(created).ID
	if !reflect.DeepEqual(FormOf(got), want) {
		t.Errorf("read back %+v, want %+v", FormOf(got), want)
	}
	if e := lastEntry(store); e.Type != "OFFICE_VISIT_HCP_VIEW" || e.Target != "patient1" {
		t.Errorf("expected hcp view entry, got %+v", e)
	}
}

func TestService_CreateInvalid(t *testing.T) {
	svc, repo, store := newTestService()
	f := checkupForm()
	f.HDL = intPtr(91)
	f.Patient = ""

	_, err := svc.Create(hcpCtx(), f)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !ae.HasField("hdl") || !ae.HasField("patient") {
		t.Errorf("expected hdl and patient violations, got %+v", ae.Violations)
	}
	if len(repo.rows) != 0 || len(store.Entries()) != 0 {
		t.Error("invalid visit persisted or audited")
	}
}

func TestService_CreateRejectsExtraPrecision(t *testing.T) {
	svc, repo, _ := newTestService()
	f := checkupForm()
	f.Height = floatPtr(65.25)
	f.Weight = floatPtr(150.2)

	_, err := svc.Create(hcpCtx(), f)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ae.Violations) != 1 || ae.Violations[0].Field != "height" || ae.Violations[0].Constraint != "scale" {
		t.Errorf("expected a single height scale violation, got %+v", ae.Violations)
	}
	if len(repo.rows) != 0 {
		t.Error("visit with unstorable height persisted")
	}
}

func TestService_CreateRejectsSurgeryType(t *testing.T) {
	svc, _, _ := newTestService()
	f := checkupForm()
	f.Type = string(OphthalmologySurgery)

	_, err := svc.Create(hcpCtx(), f)
	var ae *apperr.Error
	if !errors.As(err, &ae) || !ae.HasField("type") {
		t.Fatalf("expected type violation, got %v", err)
	}
}

func TestService_CreateDanglingReferences(t *testing.T) {
	svc, repo, _ := newTestService()
	f := checkupForm()
	f.Patient = "hcp1"
	f.HCP = "admin1"
	f.Hospital = "Nowhere"

	_, err := svc.Create(hcpCtx(), f)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"patient", "hcp", "hospital"} {
		if !ae.HasField(field) {
			t.Errorf("expected %s violation, got %+v", field, ae.Violations)
		}
	}
	if len(repo.rows) != 0 {
		t.Error("visit with dangling references persisted")
	}
}

func TestService_CreateAssignedIDConflict(t *testing.T) {
	svc, repo, _ := newTestService()
	f := checkupForm()
	f.ID = "7"
	if _, err := svc.Create(hcpCtx(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Create(hcpCtx(), f); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.rows) != 1 {
		t.Errorf("expected one row, got %d", len(repo.rows))
	}
}

func TestService_GetMissingIsNotAudited(t *testing.T) {
	svc, _, store := newTestService()
	if _, err := svc.Get(hcpCtx(), 42); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.Entries()) != 0 {
		t.Errorf("expected no audit entries, got %+v", store.Entries())
	}
}

func TestService_PatientSeesOnlyOwnVisits(t *testing.T) {
	svc, _, store := newTestService()
	mine, _ := svc.Create(hcpCtx(), checkupForm())
	other := checkupForm()
	other.Patient = "patient2"
	theirs, _ := svc.Create(hcpCtx(), other)

	patient := ctxAs("patient1", auth.RolePatient)
	if _, err := svc.Get(patient, theirs.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for another patient's visit, got %v", err)
	}
	if _, err := svc.Get(patient, mine.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := lastEntry(store); e.Type != "OFFICE_VISIT_PATIENT_VIEW" || e.Actor != "patient1" {
		t.Errorf("expected patient view entry, got %+v", e)
	}

	items, err := svc.List(patient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != mine.ID {
		t.Errorf("expected only own visit, got %+v", items)
	}

	all, _ := svc.List(hcpCtx())
	if len(all) != 2 {
		t.Errorf("expected clinician to see 2 visits, got %d", len(all))
	}
}

func TestService_UpdateRecordsMetricsChange(t *testing.T) {
	svc, _, store := newTestService()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	f := checkupForm()
	f.Weight = floatPtr(160)
	if _, err := svc.Update(hcpCtx(), created.ID, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := store.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected create, change and edit entries, got %+v", entries)
	}
	change := entries[1]
	want := "hcp1 updated basic health metrics for patient1 from 2024-03-01T10:00:00Z"
	if change.Type != "OFFICE_VISIT_EDIT" || change.Actor != "hcp1" || change.Target != "patient1" || change.Detail != want {
		t.Errorf("unexpected change entry %+v", change)
	}
	if entries[2].Type != "OFFICE_VISIT_EDIT" || entries[2].Detail != "" {
		t.Errorf("unexpected edit entry %+v", entries[2])
	}
}

func TestService_UpdateWithoutMetricsChange(t *testing.T) {
	svc, _, store := newTestService()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	f := checkupForm()
	f.Notes = "follow-up scheduled"
	if _, err := svc.Update(hcpCtx(), created.ID, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(store.Entries()); n != 2 {
		t.Errorf("expected create and edit entries only, got %d", n)
	}
}

func TestService_UpdateMismatchedID(t *testing.T) {
	svc, _, _ := newTestService()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	f := checkupForm()
	f.ID = "999"
	_, err := svc.Update(hcpCtx(), created.ID, f)
	var ae *apperr.Error
	if !errors.As(err, &ae) || !ae.HasField("id") {
		t.Fatalf("expected id violation, got %v", err)
	}
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Update(hcpCtx(), 5, checkupForm()); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo, store := newTestService()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	id, err := svc.Delete(hcpCtx(), created.ID)
	if err != nil || id != created.ID {
		t.Fatalf("expected %d, got %d, %v", created.ID, id, err)
	}
	if len(repo.rows) != 0 {
		t.Error("row not deleted")
	}
	if e := lastEntry(store); e.Type != "OFFICE_VISIT_DELETE" || e.Target != "patient1" {
		t.Errorf("unexpected delete entry %+v", e)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Delete(hcpCtx(), created.ID); !apperr.IsNotFound(err) {
			t.Errorf("attempt %d: expected not found, got %v", i, err)
		}
	}
}

func TestService_ViewMarkers(t *testing.T) {
	svc, _, store := newTestService()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	if err := svc.MarkHCPView(ctxAs("someone-else", auth.RoleHCP), created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := lastEntry(store)
	if e.Type != "OFFICE_VISIT_HCP_VIEW" || e.Actor != "hcp1" ||
		e.Detail != "hcp1 viewed basic health metrics for patient1 from 2024-03-01T10:00:00Z" {
		t.Errorf("unexpected hcp marker %+v", e)
	}

	if err := svc.MarkPatientView(ctxAs("patient1", auth.RolePatient), created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e = lastEntry(store)
	if e.Type != "OFFICE_VISIT_PATIENT_VIEW" || e.Detail != "patient1 viewed their basic health metrics from 2024-03-01T10:00:00Z" {
		t.Errorf("unexpected patient marker %+v", e)
	}

	before := len(store.Entries())
	if err := svc.MarkPatientView(ctxAs("patient2", auth.RolePatient), created.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found for another patient, got %v", err)
	}
	if err := svc.MarkHCPView(hcpCtx(), 404); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(store.Entries()) != before {
		t.Error("rejected markers should not be audited")
	}
}

func TestMetricsEqual(t *testing.T) {
	a := BasicHealthMetrics{HDL: intPtr(50), Height: floatPtr(10)}
	b := BasicHealthMetrics{HDL: intPtr(50), Height: floatPtr(10)}
	if !a.Equal(b) {
		t.Error("expected equal metrics")
	}
	b.HDL = nil
	if a.Equal(b) {
		t.Error("expected nil and set values to differ")
	}
	if !(BasicHealthMetrics{}).Empty() {
		t.Error("expected zero metrics to be empty")
	}
}
