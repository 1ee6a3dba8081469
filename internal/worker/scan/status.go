package scan

import "time"

// CycleResult は1回のスキャンサイクルの集計。
type CycleResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Feeds     int
	Succeeded int
	Failed    int
	Skipped   int
	Inserted  int
	Updated   int
}

// FeedStatus はフィードごとの取得状態。
type FeedStatus struct {
	Name              string
	URL               string
	ConsecutiveErrors int
	LastError         string
	LastErrorCode     string
	LastSuccessAt     *time.Time
	NextAttemptAt     *time.Time
}

// Status はスキャナーの状態のスナップショット。
type Status struct {
	Running    bool
	Interval   time.Duration
	LastRunAt  *time.Time
	LastResult *CycleResult
	Feeds      []FeedStatus
}

// Status は現在の状態を返す。フィードは設定順に並ぶ。
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:  s.running,
		Interval: s.opts.Interval,
		Feeds:    make([]FeedStatus, 0, len(s.sources)),
	}
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		status.LastRunAt = &t
	}
	if s.lastResult != nil {
		r := *s.lastResult
		status.LastResult = &r
	}

	for _, src := range s.sources {
		fs := FeedStatus{Name: src.Name, URL: src.URL}
		if st, ok := s.states[src.URL]; ok {
			fs.ConsecutiveErrors = st.consecutiveErrors
			fs.LastError = st.lastError
			fs.LastErrorCode = st.lastErrorCode
			fs.LastSuccessAt = timePtr(st.lastSuccessAt)
			fs.NextAttemptAt = timePtr(st.nextAttemptAt)
		}
		status.Feeds = append(status.Feeds, fs)
	}
	return status
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
