package restore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vortex-go/internal/restore"
	"vortex-go/internal/testutil"
)

const (
	listPointsFragment  = "SystemRestore | Select-Object"
	listShadowsFragment = "Win32_ShadowCopy | Select-Object"
	deleteShadowFrag    = "Win32_ShadowCopy | Where-Object"
	deleteSequenceFrag  = "SystemRestore | Where-Object"
	checkpointFragment  = "Checkpoint-Computer"
	storageFragment     = "Win32_ShadowStorage"
	volumesFragment     = "Win32_Volume |"
)

const (
	shadowA = "{11111111-1111-1111-1111-111111111111}"
	shadowB = "{22222222-2222-2222-2222-222222222222}"
	shadowC = "{33333333-3333-3333-3333-333333333333}"
)

const pointsJSON = `[
	{"SequenceNumber":10,"Description":"Alpha","CreationTime":"20260124162444.000000-000","RestorePointType":12},
	{"SequenceNumber":11,"Description":"Beta","CreationTime":"20260125080000.000000-000","RestorePointType":0}
]`

// shadowA is 46s after Alpha, shadowB 76s after Alpha, shadowC 300s after Beta.
const shadowsJSON = `[
	{"ID":"{11111111-1111-1111-1111-111111111111}","InstallDate":"20260124162530.000000-000"},
	{"ID":"{22222222-2222-2222-2222-222222222222}","InstallDate":"20260124162600.000000-000"},
	{"ID":"{33333333-3333-3333-3333-333333333333}","InstallDate":"20260125080500.000000-000"}
]`

func newCatalog(gw restore.CommandGateway) *restore.Catalog {
	return restore.NewCatalog(gw, restore.NewNopLogger(), 0, "")
}

func TestCatalog_ScanCorrelatesAndSorts(t *testing.T) {
	gw := testutil.NewFakeGateway().
		On(listPointsFragment, pointsJSON).
		On(listShadowsFragment, shadowsJSON)

	points, err := newCatalog(gw).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Scan() returned %d points, want 2", len(points))
	}

	if points[0].SequenceNumber != 11 || points[1].SequenceNumber != 10 {
		t.Errorf("order = [%d %d], want [11 10]", points[0].SequenceNumber, points[1].SequenceNumber)
	}
	if points[0].ShadowID != "" {
		t.Errorf("Beta ShadowID = %q, want none (closest shadow is 300s away)", points[0].ShadowID)
	}
	if points[1].ShadowID != shadowA {
		t.Errorf("Alpha ShadowID = %q, want closest shadow %q", points[1].ShadowID, shadowA)
	}
	if points[1].RestorePointType != 12 {
		t.Errorf("Alpha RestorePointType = %d, want 12", points[1].RestorePointType)
	}
	if got := points[1].DisplayTime(); got != "24.01.2026 | 16:24" {
		t.Errorf("Alpha DisplayTime() = %q", got)
	}
}

func TestCatalog_ScanShadowAssignment(t *testing.T) {
	tests := []struct {
		name        string
		installDate string
		want        string
	}{
		{name: "exactly at tolerance", installDate: "20260124162644.000000-000", want: shadowC},
		{name: "just beyond tolerance", installDate: "20260124162645.000000-000", want: ""},
		{name: "before creation", installDate: "20260124162344.000000-000", want: shadowC},
		{name: "unparseable install date", installDate: "garbage", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway().
				On(listPointsFragment, `{"SequenceNumber":1,"Description":"x","CreationTime":"20260124162444.000000-000"}`).
				On(listShadowsFragment, `{"ID":"`+shadowC+`","InstallDate":"`+tt.installDate+`"}`)

			points, err := newCatalog(gw).Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan() failed: %v", err)
			}
			if len(points) != 1 {
				t.Fatalf("Scan() returned %d points, want 1", len(points))
			}
			if points[0].ShadowID != tt.want {
				t.Errorf("ShadowID = %q, want %q", points[0].ShadowID, tt.want)
			}
		})
	}
}

func TestCatalog_ScanCustomTolerance(t *testing.T) {
	gw := testutil.NewFakeGateway().
		On(listPointsFragment, pointsJSON).
		On(listShadowsFragment, shadowsJSON)

	points, err := restore.NewCatalog(gw, restore.NewNopLogger(), 10*time.Minute, "").Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if points[0].ShadowID != shadowC {
		t.Errorf("Beta ShadowID = %q, want %q with a ten minute window", points[0].ShadowID, shadowC)
	}
}

func TestCatalog_ScanUnparseableTimesSortLast(t *testing.T) {
	gw := testutil.NewFakeGateway().On(listPointsFragment, `[
		{"SequenceNumber":1,"Description":"bad one","CreationTime":"not a date"},
		{"SequenceNumber":2,"Description":"old","CreationTime":"20250101000000.000000-000"},
		{"SequenceNumber":3,"Description":"bad two","CreationTime":null},
		{"SequenceNumber":4,"Description":"new","CreationTime":"20260101000000.000000-000"}
	]`)

	points, err := newCatalog(gw).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	want := []int64{4, 2, 3, 1}
	if len(points) != len(want) {
		t.Fatalf("Scan() returned %d points, want %d", len(points), len(want))
	}
	for i, seq := range want {
		if points[i].SequenceNumber != seq {
			t.Errorf("points[%d].SequenceNumber = %d, want %d", i, points[i].SequenceNumber, seq)
		}
	}
	if got := points[3].DisplayTime(); got != restore.UnknownDate {
		t.Errorf("DisplayTime() = %q, want %q", got, restore.UnknownDate)
	}
}

func TestCatalog_ScanSkipsMalformedRecords(t *testing.T) {
	gw := testutil.NewFakeGateway().On(listPointsFragment, `[
		{"SequenceNumber":null,"Description":"no sequence"},
		{"Description":"missing sequence"},
		{"SequenceNumber":"abc","Description":"bad sequence"},
		"not an object",
		{"SequenceNumber":"7","Description":null,"CreationTime":"20260124162444.000000-000"}
	]`)

	points, err := newCatalog(gw).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Scan() returned %d points, want 1", len(points))
	}
	if points[0].SequenceNumber != 7 {
		t.Errorf("SequenceNumber = %d, want 7", points[0].SequenceNumber)
	}
	if points[0].Description != "Unknown Point" {
		t.Errorf("Description = %q, want %q", points[0].Description, "Unknown Point")
	}
}

func TestCatalog_ScanToleratesOddRestorePointType(t *testing.T) {
	gw := testutil.NewFakeGateway().On(listPointsFragment, `[
		{"SequenceNumber":8,"Description":"text type","CreationTime":"20260124162444.000000-000","RestorePointType":"APPLICATION_INSTALL"},
		{"SequenceNumber":9,"Description":"object type","CreationTime":"20260124172444.000000-000","RestorePointType":{"x":1}}
	]`)

	points, err := newCatalog(gw).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Scan() returned %d points, want 2", len(points))
	}
	for _, p := range points {
		if p.RestorePointType != 0 {
			t.Errorf("point %d RestorePointType = %d, want 0", p.SequenceNumber, p.RestorePointType)
		}
	}
}

func TestCatalog_SingleObjectOutput(t *testing.T) {
	gw := testutil.NewFakeGateway().
		On(listPointsFragment, `{"SequenceNumber":5,"Description":"only","CreationTime":"20260124162444.000000-000"}`)

	points := newCatalog(gw).List(context.Background())
	if len(points) != 1 || points[0].Description != "only" {
		t.Errorf("List() = %+v, want the single point", points)
	}
}

func TestCatalog_Failures(t *testing.T) {
	t.Run("restore point query fails", func(t *testing.T) {
		gw := testutil.NewFakeGateway().
			Fail(listPointsFragment, testutil.CommandFailure("Get-WmiObject : Invalid namespace")).
			On(listShadowsFragment, shadowsJSON)
		catalog := newCatalog(gw)

		points, err := catalog.Scan(context.Background())
		if !errors.Is(err, restore.ErrCommandFailure) {
			t.Errorf("Scan() error = %v, want ErrCommandFailure", err)
		}
		if points == nil || len(points) != 0 {
			t.Errorf("Scan() points = %v, want empty", points)
		}

		listed := catalog.List(context.Background())
		if listed == nil || len(listed) != 0 {
			t.Errorf("List() = %v, want empty", listed)
		}
	})

	t.Run("malformed output", func(t *testing.T) {
		gw := testutil.NewFakeGateway().On(listPointsFragment, "WARNING: something odd")

		_, err := newCatalog(gw).Scan(context.Background())
		if !errors.Is(err, restore.ErrMalformedOutput) {
			t.Errorf("Scan() error = %v, want ErrMalformedOutput", err)
		}
	})

	t.Run("empty output", func(t *testing.T) {
		gw := testutil.NewFakeGateway().On(listPointsFragment, "")

		points, err := newCatalog(gw).Scan(context.Background())
		if err != nil {
			t.Errorf("Scan() error = %v, want nil", err)
		}
		if len(points) != 0 {
			t.Errorf("Scan() returned %d points, want 0", len(points))
		}
	})

	t.Run("shadow query fails", func(t *testing.T) {
		gw := testutil.NewFakeGateway().
			On(listPointsFragment, pointsJSON).
			Fail(listShadowsFragment, testutil.CommandFailure("VSS service stopped"))

		points, err := newCatalog(gw).Scan(context.Background())
		if err != nil {
			t.Fatalf("Scan() failed: %v", err)
		}
		if len(points) != 2 {
			t.Fatalf("Scan() returned %d points, want 2", len(points))
		}
		for _, p := range points {
			if p.HasShadow() {
				t.Errorf("point %d has shadow %q, want none", p.SequenceNumber, p.ShadowID)
			}
		}
	})
}

func TestCatalog_GenerateNextName(t *testing.T) {
	fourPoints := `[
		{"SequenceNumber":1,"CreationTime":"20260101000000.000000-000"},
		{"SequenceNumber":2,"CreationTime":"20260102000000.000000-000"},
		{"SequenceNumber":3,"CreationTime":"20260103000000.000000-000"},
		{"SequenceNumber":4,"CreationTime":"20260104000000.000000-000"}
	]`

	tests := []struct {
		name   string
		output string
		prefix string
		want   string
	}{
		{name: "four existing points", output: fourPoints, want: "Vortex Restore Point #5"},
		{name: "no points", output: "", want: "Vortex Restore Point #1"},
		{name: "custom prefix", output: fourPoints, prefix: "Nightly", want: "Nightly #5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewFakeGateway().On(listPointsFragment, tt.output)
			catalog := restore.NewCatalog(gw, restore.NewNopLogger(), 0, tt.prefix)

			if got := catalog.GenerateNextName(context.Background()); got != tt.want {
				t.Errorf("GenerateNextName() = %q, want %q", got, tt.want)
			}
		})
	}
}
