package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/stylebot/core/conversation"
)

type fakeDB struct {
	runs    []Run
	queries []string
	execErr error
	totals  Totals
}

func (f *fakeDB) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, query)
	f.runs = append(f.runs, arg.(Run))
	return driver.RowsAffected(1), nil
}

func (f *fakeDB) GetContext(_ context.Context, dest any, query string, _ ...any) error {
	f.queries = append(f.queries, query)
	*(dest.(*Totals)) = f.totals
	return nil
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	id, err := j.Record(context.Background(), Run{UserID: 7, Technology: "nst", StyleKey: "mosaic", Outcome: OutcomeOK})
	require.NoError(t, err)
	require.Len(t, db.runs, 1)

	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, db.runs[0].ID)
	assert.Equal(t, fixed, db.runs[0].CreatedAt)
	assert.Contains(t, db.queries[0], "INSERT INTO transform_runs")
}

func TestRecordWrapsError(t *testing.T) {
	cause := errors.New("connection reset")
	j := NewJournal(&fakeDB{execErr: cause})
	_, err := j.Record(context.Background(), Run{})
	assert.ErrorIs(t, err, cause)
}

func TestObserveDispatch(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db)

	// a cancelled update context must not prevent the write
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j.ObserveDispatch(ctx, conversation.DispatchRecord{
		UserID:     3,
		Technology: "cyclegan",
		StyleLabel: "Из зимы в лето",
		StyleKey:   "winter2summer_yosemite",
		Model:      "winter2summer_yosemite_pretrained_pepilica_dls",
		Bytes:      1024,
		Duration:   1500 * time.Millisecond,
	})
	j.ObserveDispatch(context.Background(), conversation.DispatchRecord{
		UserID:     3,
		Technology: "nst",
		StyleKey:   "mosaic",
		Err:        errors.New("status 503"),
	})

	require.Len(t, db.runs, 2)
	ok, failed := db.runs[0], db.runs[1]
	assert.Equal(t, OutcomeOK, ok.Outcome)
	assert.Equal(t, int64(1500), ok.DurationMS)
	assert.Equal(t, "Из зимы в лето", ok.StyleLabel)
	assert.Empty(t, ok.Error)
	assert.Equal(t, OutcomeFail, failed.Outcome)
	assert.Equal(t, "status 503", failed.Error)
}

func TestObserveDispatchSwallowsWriteErrors(t *testing.T) {
	j := NewJournal(&fakeDB{execErr: errors.New("down")})
	assert.NotPanics(t, func() {
		j.ObserveDispatch(context.Background(), conversation.DispatchRecord{UserID: 1})
	})
}

func TestTotals(t *testing.T) {
	db := &fakeDB{totals: Totals{Runs: 10, Failed: 2, Users: 4}}
	got, err := NewJournal(db).Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Totals{Runs: 10, Failed: 2, Users: 4}, got)
	assert.Contains(t, db.queries[0], "COUNT(DISTINCT user_id)")
}
