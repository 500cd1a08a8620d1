package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestWorker_Fields(t *testing.T) {
	typ := reflect.TypeOf(Worker{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:32")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Department", "index")
	assertGormTag(t, typ, "Role", "default:standard")
	assertGormTag(t, typ, "TargetHoursPerDay", "decimal")
	assertGormTag(t, typ, "ShiftStart", "size:5")
	assertGormTag(t, typ, "Tasks", "OnDelete:CASCADE")

	assertFieldType(t, typ, "TargetHoursPerDay", "decimal.Decimal")
}

func TestTaskRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(TaskRecord{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "WorkerID", "idx_worker_date")
	assertGormTag(t, typ, "Date", "idx_worker_date")
	assertGormTag(t, typ, "Date", "size:10")
	assertGormTag(t, typ, "Hours", "decimal(8,6)")

	assertFieldType(t, typ, "ID", "uint")
	assertFieldType(t, typ, "Hours", "decimal.Decimal")
}

func TestJustification_UniquePerWorkerDay(t *testing.T) {
	typ := reflect.TypeOf(Justification{})

	assertGormTag(t, typ, "WorkerID", "uniqueIndex:idx_worker_day")
	assertGormTag(t, typ, "Date", "uniqueIndex:idx_worker_day")
	assertGormTag(t, typ, "Type", "default:holiday_vacation")
	assertGormTag(t, typ, "Status", "default:pending")
}

func TestAlertStatus_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(AlertStatus{})

	for _, f := range []string{"WorkerID", "Date", "Severity"} {
		assertGormTag(t, typ, f, "primaryKey")
	}
	assertGormTag(t, typ, "Status", "default:active")
}

func TestCategory_UniquePerDepartment(t *testing.T) {
	typ := reflect.TypeOf(Category{})

	assertGormTag(t, typ, "Department", "uniqueIndex:idx_department_category")
	assertGormTag(t, typ, "Name", "uniqueIndex:idx_department_category")
}

func TestWorker_IsSupervisor(t *testing.T) {
	if (&Worker{Role: RoleStandard}).IsSupervisor() {
		t.Error("standard worker reported as supervisor")
	}
	if !(&Worker{Role: RoleSupervisor}).IsSupervisor() {
		t.Error("supervisor not reported as supervisor")
	}
}

func TestTimerClaim_FixedSlot(t *testing.T) {
	typ := reflect.TypeOf(TimerClaim{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement:false")
	assertGormTag(t, typ, "TaskID", "index")
	if TimerClaimSlot != 1 {
		t.Errorf("TimerClaimSlot = %d, want 1", TimerClaimSlot)
	}
}
