package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const testEmail = "alice@example.com"

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeQuerier routes the limiter's two queries without a database.
type fakeQuerier struct {
	rowErr       error
	blockedUntil *time.Time
	updatedAt    time.Time
	failCount    int

	lastExecSQL string
	execErr     error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.rowErr != nil {
				return f.rowErr
			}
			if f.blockedUntil != nil {
				*(dest[0].(*time.Time)) = *f.blockedUntil
			} else {
				*(dest[0].(*time.Time)) = time.Time{} // 'epoch'
			}
			*(dest[1].(*time.Time)) = f.updatedAt
			return nil
		}}
	case strings.Contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.rowErr != nil {
				return f.rowErr
			}
			*(dest[0].(*int)) = f.failCount
			return nil
		}}
	default:
		return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
	}
}

func TestAllow_NoRow_Allows(t *testing.T) {
	fq := &fakeQuerier{rowErr: pgx.ErrNoRows}
	l := NewPGWithQuerier(fq, 15*time.Minute, 5, 15*time.Minute)

	ok, dur, err := l.Allow(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow no-row: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_BlockedUntilFuture(t *testing.T) {
	fut := time.Now().Add(10 * time.Minute)
	fq := &fakeQuerier{blockedUntil: &fut, updatedAt: time.Now()}
	l := NewPGWithQuerier(fq, 15*time.Minute, 5, 15*time.Minute)

	ok, dur, err := l.Allow(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err != nil || ok || dur <= 0 {
		t.Fatalf("Allow blocked: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_ExpiredBlock_Allows(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	fq := &fakeQuerier{blockedUntil: &past, updatedAt: time.Now()}
	l := NewPGWithQuerier(fq, 15*time.Minute, 5, 15*time.Minute)

	ok, dur, err := l.Allow(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("Allow past block: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllow_DBError_Propagates(t *testing.T) {
	fq := &fakeQuerier{rowErr: errors.New("db boom")}
	l := NewPGWithQuerier(fq, 15*time.Minute, 5, 15*time.Minute)

	ok, _, err := l.Allow(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err == nil || ok {
		t.Fatalf("want error propagated, got ok=%v err=%v", ok, err)
	}
}

func TestSuccess_ResetsCounters(t *testing.T) {
	fq := &fakeQuerier{}
	l := NewPGWithQuerier(fq, 15*time.Minute, 5, 15*time.Minute)

	if err := l.Success(context.Background(), testEmail, HashIP("1.2.3.4")); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if !strings.Contains(fq.lastExecSQL, "INSERT INTO auth_limiter") {
		t.Fatalf("unexpected exec: %s", fq.lastExecSQL)
	}

	fq.execErr = errors.New("exec fail")
	if err := l.Success(context.Background(), testEmail, HashIP("1.2.3.4")); err == nil {
		t.Fatalf("want exec error")
	}
}

func TestFailure_Increments_NoBlock(t *testing.T) {
	fq := &fakeQuerier{failCount: 2}
	l := NewPGWithQuerier(fq, 5*time.Minute, 5, 15*time.Minute)

	blocked, dur, err := l.Failure(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err != nil || blocked || dur != 0 {
		t.Fatalf("Failure below threshold: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	fq := &fakeQuerier{failCount: 5}
	l := NewPGWithQuerier(fq, 5*time.Minute, 5, 10*time.Minute)

	blocked, dur, err := l.Failure(context.Background(), testEmail, HashIP("1.2.3.4"))
	if err != nil || !blocked || dur != 10*time.Minute {
		t.Fatalf("Failure at threshold: blocked=%v dur=%v err=%v", blocked, dur, err)
	}
	if !strings.Contains(fq.lastExecSQL, "UPDATE auth_limiter SET blocked_until") {
		t.Fatalf("must update blocked_until, exec=%s", fq.lastExecSQL)
	}
}

func TestFailure_DBErrorOnReturning(t *testing.T) {
	fq := &fakeQuerier{rowErr: errors.New("query error")}
	l := NewPGWithQuerier(fq, 5*time.Minute, 5, 10*time.Minute)

	if _, _, err := l.Failure(context.Background(), testEmail, HashIP("1.2.3.4")); err == nil {
		t.Fatalf("want error from returning fail_count")
	}
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4:123")
	b := HashIP("1.2.3.4:123")
	c := HashIP("5.6.7.8:321")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}
