package availability

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

// jsonRow fills the three JSONB columns in order and leaves the rest zero.
type jsonRow struct {
	docs [3]string
	err  error
}

func (r jsonRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	i := 0
	for _, d := range dest {
		if p, ok := d.(*[]byte); ok {
			*p = []byte(r.docs[i])
			i++
		}
	}
	return nil
}

func TestScanAvailability(t *testing.T) {
	a, err := scanAvailability(jsonRow{docs: [3]string{`{"tue":[{"start":"09:00","end":"10:00"}]}`, `[]`, `[]`}})
	require.NoError(t, err)
	assert.Equal(t, []schedule.Range{{Start: "09:00", End: "10:00"}}, a.WeeklyHours[schedule.Tue])

	_, err = scanAvailability(jsonRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScanAvailability_CorruptJSONIsStorageFailure(t *testing.T) {
	cases := map[string][3]string{
		"weekly_hours": {`{"tue":`, `[]`, `[]`},
		"breaks":       {`{}`, `[{]`, `[]`},
		"blocks":       {`{}`, `[]`, `"nope"`},
	}
	for name, docs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scanAvailability(jsonRow{docs: docs})
			require.Error(t, err)
			assert.ErrorIs(t, err, db.ErrStorageFailure)
			assert.Contains(t, err.Error(), name)
		})
	}
}
