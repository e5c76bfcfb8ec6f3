package spots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var spotColumns = []string{"id", "name", "description", "type", "lat", "lng", "created_by", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestSpotCRUD(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now()

	mock.ExpectQuery(`INSERT INTO spots`).
		WithArgs(pgxmock.AnyArg(), "Green Lakes", "swim spot", "nature", 25.0108, 54.7465, "device-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	svc := NewService(mock, nil)
	spot, err := svc.Create(context.Background(), Spot{
		Name:        "Green Lakes",
		Description: "swim spot",
		Type:        Nature,
		Lat:         54.7465,
		Lng:         25.0108,
		CreatedBy:   "device-1",
	})
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}

	mock.ExpectQuery(`SELECT id, name, description, type, ST_Y\(location::geometry\)`).
		WithArgs(spot.ID).
		WillReturnRows(pgxmock.NewRows(spotColumns).
			AddRow(spot.ID, spot.Name, spot.Description, "nature", spot.Lat, spot.Lng, spot.CreatedBy, createdAt))

	loaded, err := svc.Get(context.Background(), spot.ID)
	if err != nil {
		t.Fatalf("get spot: %v", err)
	}
	if loaded.ID != spot.ID || loaded.Type != Nature {
		t.Fatalf("unexpected spot %+v", loaded)
	}

	mock.ExpectExec(`DELETE FROM spots`).WithArgs(spot.ID, "device-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := svc.Delete(context.Background(), spot.ID, "device-1"); err != nil {
		t.Fatalf("delete spot: %v", err)
	}
	mock.ExpectExec(`DELETE FROM spots`).WithArgs(spot.ID, "device-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := svc.Delete(context.Background(), spot.ID, "device-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery(`SELECT id, name`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSpotValidation(t *testing.T) {
	svc := NewService(newMock(t), nil)
	bad := []Spot{
		{Type: Camping, Lat: 1, Lng: 1},
		{Name: "x", Type: "museum", Lat: 1, Lng: 1},
		{Name: "x", Type: Hiking, Lat: 100, Lng: 1},
	}
	for _, sp := range bad {
		if _, err := svc.Create(context.Background(), sp); !errors.Is(err, ErrInvalidSpot) {
			t.Fatalf("expected invalid spot for %+v, got %v", sp, err)
		}
	}
}

func TestNearby(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(25.28, 54.68, 5000.0, "", searchLimit).
		WillReturnRows(pgxmock.NewRows(append(spotColumns, "distance")).
			AddRow("s1", "Camp", "", "camping", 54.681, 25.281, "", time.Now(), 130.5))
	results, err := svc.Nearby(context.Background(), 54.68, 25.28, 0, "")
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(results) != 1 || results[0].Type != Camping || results[0].DistanceM == nil || *results[0].DistanceM != 130.5 {
		t.Fatalf("unexpected results %+v", results)
	}

	mock.ExpectQuery(`ST_DWithin`).
		WithArgs(25.28, 54.68, MaxRadiusKm*1000, "hiking", searchLimit).
		WillReturnError(errors.New("db down"))
	if _, err := svc.Nearby(context.Background(), 54.68, 25.28, 500, Hiking); err == nil {
		t.Fatalf("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
