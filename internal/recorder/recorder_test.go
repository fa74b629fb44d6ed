package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mpataki/arena/internal/models"
)

func battle(id string, ts float64) *models.BattleRecord {
	return &models.BattleRecord{
		ID: id, Task: "t", AgentA: "a", AgentB: "b",
		OutcomeA:  models.Succeeded("a", "x"),
		OutcomeB:  models.Succeeded("b", "y"),
		Timestamp: ts,
	}
}

func TestAppend_KeepsOrderAndDuplicates(t *testing.T) {
	r := New()
	b := battle("1", 10)
	c := &models.CollaborationRecord{ID: "2", Objective: "o"}

	r.Append(b)
	r.Append(c)
	r.Append(b)
	r.Append(nil)

	got := r.Records()
	want := []models.Record{b, c, b}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestRecords_IsSnapshot(t *testing.T) {
	r := New()
	r.Append(battle("1", 1))

	snap := r.Records()
	r.Append(battle("2", 2))

	if len(snap) != 1 {
		t.Errorf("snapshot changed after append: %d", len(snap))
	}
}

func TestAppend_TimestampsNonDecreasing(t *testing.T) {
	r := New()
	r.Append(battle("1", 100))
	r.Append(battle("2", 90))
	r.Append(&models.WorkflowRun{ID: "w"})
	r.Append(battle("3", 120))

	var last float64
	for _, rec := range r.Records() {
		b, ok := rec.(*models.BattleRecord)
		if !ok {
			continue
		}
		if b.Timestamp < last {
			t.Fatalf("timestamp went backwards: %v after %v", b.Timestamp, last)
		}
		last = b.Timestamp
	}
	if last != 120 {
		t.Errorf("last timestamp = %v", last)
	}
}

func TestAppend_Concurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Append(&models.CollaborationRecord{ID: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len = %d, want 50", r.Len())
	}
}

func TestPersist_EmptyLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")

	if err := New().Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("empty log written as %q", data)
	}

	records, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", records)
	}
}

func TestPersist_RoundTrip(t *testing.T) {
	r := New()
	r.Append(battle("1", 5))
	r.Append(&models.CollaborationRecord{ID: "2", Objective: "o", Steps: []models.CollaborationStep{{Agent: "a", Output: "x"}}})
	r.Append(&models.WorkflowRun{ID: "3", WorkflowID: "w", Results: []models.Outcome{models.Failed("a", "boom")}})

	path := filepath.Join(t.TempDir(), "runs.json")
	if err := r.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, r.Records()) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got, r.Records())
	}
}

func TestPersist_FullOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0644); err != nil {
		t.Fatal(err)
	}

	r := New()
	r.Append(battle("1", 1))
	if err := r.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records", len(got))
	}
}

func TestPersist_UnwritableDestination(t *testing.T) {
	r := New()
	r.Append(battle("1", 1))

	path := filepath.Join(t.TempDir(), "missing", "runs.json")
	err := r.Persist(path)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if r.Len() != 1 {
		t.Error("in-memory log must survive a failed persist")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := r.Persist(path); err != nil {
		t.Errorf("retry after fixing destination failed: %v", err)
	}
}

type fakeExporter struct {
	got []models.Record
	err error
}

func (f *fakeExporter) ExportRecords(_ context.Context, records []models.Record) error {
	f.got = records
	return f.err
}

func TestPersistTo(t *testing.T) {
	r := New()
	r.Append(battle("1", 1))

	exp := &fakeExporter{}
	if err := r.PersistTo(context.Background(), exp); err != nil {
		t.Fatalf("PersistTo: %v", err)
	}
	if len(exp.got) != 1 {
		t.Errorf("exporter got %d records", len(exp.got))
	}

	exp.err = errors.New("disk full")
	if err := r.PersistTo(context.Background(), exp); !errors.Is(err, ErrPersist) {
		t.Errorf("expected ErrPersist, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"kind":"duel"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestAppend_CommittedRecordsAreImmutable(t *testing.T) {
	r := New()

	b := battle("1", 10)
	c := &models.CollaborationRecord{ID: "2", Objective: "o", Steps: []models.CollaborationStep{{Agent: "a", Output: "draft"}}}
	w := &models.WorkflowRun{ID: "3", WorkflowID: "wf", Results: []models.Outcome{models.Succeeded("a", "ok")}}
	r.Append(b)
	r.Append(c)
	r.Append(w)

	// Changes through the appended pointers.
	b.Task = "tampered"
	b.OutcomeA.Status = models.OutcomeFailure
	c.Steps[0].Output = "rewritten"
	w.Results[0] = models.Failed("a", "nope")

	// Changes through a snapshot.
	snap := r.Records()
	snap[1].(*models.CollaborationRecord).Steps[0].Output = "rewritten again"
	snap[2].(*models.WorkflowRun).Results[0].Output = "edited"

	got := r.Records()
	gb := got[0].(*models.BattleRecord)
	if gb.Task != "t" || gb.OutcomeA.Status != models.OutcomeSuccess {
		t.Errorf("committed battle changed: %+v", gb)
	}
	if out := got[1].(*models.CollaborationRecord).Steps[0].Output; out != "draft" {
		t.Errorf("committed step output = %q, want draft", out)
	}
	if res := got[2].(*models.WorkflowRun).Results[0]; res.Output != "ok" || !res.Succeeded() {
		t.Errorf("committed workflow result changed: %+v", res)
	}
}

func TestAppend_PreservesEmptySlices(t *testing.T) {
	r := New()
	r.Append(&models.CollaborationRecord{ID: "c", Steps: []models.CollaborationStep{}})

	data, err := Marshal(r.Records())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"steps": []`) {
		t.Errorf("empty steps should stay an empty list:\n%s", data)
	}
}
