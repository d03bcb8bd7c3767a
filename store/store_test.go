package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/macroplay/insights/analyze"
	"github.com/macroplay/insights/segment"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleResult() *analyze.Result {
	return &analyze.Result{
		TotalRecords: 2,
		Columns:      []string{"MSISDN", "Consumo MB"},
		Summary: map[string]analyze.FieldSummary{
			"Consumo MB": {Total: 300, Average: 150, Max: 200, Min: 100},
		},
	}
}

func TestSaveAndLoadDataset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ds, err := s.SaveDataset(ctx, "julio-2024", "tarificacion.csv", "recargas.xlsx", sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	if ds.ID == uuid.Nil {
		t.Fatal("dataset should get an ID")
	}
	if ds.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", ds.RecordCount)
	}

	loaded, err := s.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "julio-2024" || loaded.RechargeFile != "recargas.xlsx" {
		t.Errorf("loaded = %+v", loaded)
	}

	res, err := loaded.AnalysisResult()
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary["Consumo MB"].Average != 150 {
		t.Errorf("analysis round trip lost data: %+v", res.Summary)
	}
}

func TestGetDatasetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetDataset(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDatasetsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.SaveDataset(ctx, "junio", "a.csv", "b.csv", sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SaveDataset(ctx, "julio", "c.csv", "d.csv", sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.ListDatasets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("datasets = %d, want 2", len(all))
	}
	ids := map[uuid.UUID]bool{all[0].ID: true, all[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("listing missing saved datasets: %+v", all)
	}
}

func TestSaveAndListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ds, err := s.SaveDataset(ctx, "julio", "a.csv", "b.csv", sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	outcome := &segment.Outcome{
		Source: "fallback",
		Segments: []segment.Segment{
			{Name: "VIP Activos", Description: "Alto consumo MB y recarga reciente", Color: "#FFD700"},
		},
		Records: []segment.Labeled{{Segment: "VIP Activos", Color: "#FFD700"}},
	}
	run, err := s.SaveRun(ctx, ds.ID, "prioriza prepago", outcome)
	if err != nil {
		t.Fatal(err)
	}
	if run.Source != "fallback" || run.RecordCount != 1 {
		t.Errorf("run = %+v", run)
	}

	runs, err := s.RunsForDataset(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	segs, err := runs[0].SegmentList()
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 || segs[0].Color != "#FFD700" {
		t.Errorf("segments round trip = %+v", segs)
	}

	other, err := s.RunsForDataset(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated dataset should have no runs, got %d", len(other))
	}
}
