package postgres

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

// newDB returns a DB backed by pgxmock for repository tests.
func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	return &DB{Pool: mock}, mock
}

// anyArgs returns n pgxmock.AnyArg matchers, for expectations that do not
// constrain argument values.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
