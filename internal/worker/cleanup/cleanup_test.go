package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はExecutorのモック実装。SQLクエリの内容と引数を記録する。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログから指定キーを持つ最初のエントリの値を返す。
func findLogField(t *testing.T, buf *bytes.Buffer, key string) (any, bool) {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func TestNewCleanupJob_RetentionDays(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "default when zero", in: 0, want: DefaultRetentionDays},
		{name: "default when negative", in: -5, want: DefaultRetentionDays},
		{name: "custom", in: 30, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf), tt.in)
			if job.RetentionDays != tt.want {
				t.Errorf("RetentionDays = %d, want %d", job.RetentionDays, tt.want)
			}
		})
	}
}

func TestCleanupJob_Run_DeletesOnlyStaleRejectedPosts(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, newTestLogger(&buf), 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	for _, want := range []string{"DELETE FROM posts", "status = 'rejected'", "updated_at"} {
		if !strings.Contains(mock.query, want) {
			t.Errorf("クエリに %q が含まれていない: %s", want, mock.query)
		}
	}
	if strings.Contains(mock.query, "created_at") {
		t.Errorf("クエリがcreated_atで判定している: %s", mock.query)
	}
}

func TestCleanupJob_Run_UsesIntervalParameter(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{days: 0, want: "180 days"},
		{days: 90, want: "90 days"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			mock := &mockExecutor{result: &fakeResult{}}
			job := NewCleanupJob(mock, newTestLogger(&buf), tt.days)

			_ = job.Run(context.Background())

			if len(mock.args) != 1 {
				t.Fatalf("args = %v, want 1 arg", mock.args)
			}
			if got, _ := mock.args[0].(string); got != tt.want {
				t.Errorf("interval引数 = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanupJob_Run_Logs(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 42}}
	job := NewCleanupJob(mock, newTestLogger(&buf), 0)

	_ = job.Run(context.Background())

	if v, ok := findLogField(t, &buf, "deleted_count"); !ok || v != float64(42) {
		t.Errorf("deleted_count = %v, want 42. ログ出力: %s", v, buf.String())
	}
	if v, ok := findLogField(t, &buf, "retention_days"); !ok || v != float64(180) {
		t.Errorf("retention_days = %v, want 180", v)
	}
	if _, ok := findLogField(t, &buf, "duration_ms"); !ok {
		t.Error("ログに duration_ms が記録されていない")
	}
}

func TestCleanupJob_Run_ZeroRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 0}}
	job := NewCleanupJob(mock, newTestLogger(&buf), 0)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
	if v, ok := findLogField(t, &buf, "deleted_count"); !ok || v != float64(0) {
		t.Errorf("deleted_count = %v, want 0", v)
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := NewCleanupJob(mock, newTestLogger(&buf), 0)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("ERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mock.callCount() != 1 {
		t.Fatalf("calls = %d, want 1 immediately after start", mock.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
