package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/repository"
	appErrors "promptvault-backend/pkg/errors"
)

// fragmentStats aggregates one fragment's usage within the trailing window.
type fragmentStats struct {
	Count     int
	Successes int
}

func (fs fragmentStats) successRate() float64 {
	if fs.Count == 0 {
		return 0
	}
	return float64(fs.Successes) / float64(fs.Count)
}

// GetPredictions mines the owner's usage history with up to four independent
// strategies run concurrently. A strategy that fails or exceeds its timeout
// is omitted from the merge rather than failing the request.
func (s *service) GetPredictions(ctx context.Context, params PredictionParams) ([]domain.Suggestion, error) {
	if params.Limit < 0 {
		return nil, appErrors.NewFieldValidation("limit", "must not be negative")
	}
	cfg := s.cfg()
	limit := params.Limit
	if limit == 0 {
		limit = cfg.DefaultSuggestionLimit
	}

	now := s.now()
	events, err := s.events.FindEvents(ctx, repository.EventQuery{
		OwnerID: params.OwnerID,
		Since:   now.Add(-cfg.EventWindow),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load usage events")
	}
	if len(events) == 0 {
		return []domain.Suggestion{}, nil
	}

	stats := make(map[string]fragmentStats, len(events))
	for _, event := range events {
		st := stats[event.FragmentID]
		st.Count++
		if event.Success {
			st.Successes++
		}
		stats[event.FragmentID] = st
	}

	type strategyResult struct {
		source      domain.SuggestionSource
		suggestions []domain.Suggestion
		err         error
	}

	strategies := []struct {
		source domain.SuggestionSource
		run    func(context.Context) ([]domain.Suggestion, error)
	}{
		{domain.SourceTime, func(sctx context.Context) ([]domain.Suggestion, error) {
			return s.predictByTime(sctx, events, stats, now)
		}},
		{domain.SourceActivity, func(sctx context.Context) ([]domain.Suggestion, error) {
			return s.predictByActivity(sctx, cfg, params.OwnerID, params.CurrentActivity, stats)
		}},
		{domain.SourceSequential, func(sctx context.Context) ([]domain.Suggestion, error) {
			return s.predictBySequence(sctx, cfg, events, stats, params.RecentFragmentIDs)
		}},
	}

	results := make(chan strategyResult, len(strategies))
	var wg sync.WaitGroup
	for _, strategy := range strategies {
		wg.Add(1)
		go func(source domain.SuggestionSource, run func(context.Context) ([]domain.Suggestion, error)) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, cfg.StrategyTimeout)
			defer cancel()

			suggestions, err := run(sctx)
			results <- strategyResult{source: source, suggestions: suggestions, err: err}
		}(strategy.source, strategy.run)
	}
	wg.Wait()
	close(results)

	merged := make([]domain.Suggestion, 0)
	for result := range results {
		if result.err != nil {
			s.logger.Warn("prediction strategy failed",
				zap.String("strategy", string(result.source)),
				zap.Error(result.err),
			)
			if s.metrics != nil {
				s.metrics.StrategyFailures.WithLabelValues(string(result.source)).Inc()
			}
			continue
		}
		merged = append(merged, result.suggestions...)
	}

	// Frequency is a fallback, not a peer: it fires only when nothing else did.
	if len(merged) == 0 {
		merged = s.predictByFrequency(cfg, stats)
	}

	merged, err = s.attachNames(ctx, params.OwnerID, merged)
	if err != nil {
		return nil, err
	}

	return s.ranker.Rank(merged, limit), nil
}

// predictByTime ranks fragments used in the same hour and weekday bucket as
// the current moment.
func (s *service) predictByTime(ctx context.Context, events []domain.UsageEvent, stats map[string]fragmentStats, now time.Time) ([]domain.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hour := now.Hour()
	weekday := now.Weekday()

	bucket := make(map[string]fragmentStats)
	for _, event := range events {
		if event.Timestamp.Hour() != hour || event.Timestamp.Weekday() != weekday {
			continue
		}
		st := bucket[event.FragmentID]
		st.Count++
		if event.Success {
			st.Successes++
		}
		bucket[event.FragmentID] = st
	}

	suggestions := make([]domain.Suggestion, 0, len(bucket))
	for fragmentID, st := range bucket {
		confidence := math.Min(0.95, float64(st.Count)/10+st.successRate()/2)
		suggestions = append(suggestions, domain.Suggestion{
			FragmentID: fragmentID,
			Confidence: confidence,
			Reason:     fmt.Sprintf("used %d times around %d:00 on %ss", st.Count, hour, weekday),
			Source:     domain.SourceTime,
		})
	}
	return suggestions, nil
}

// predictByActivity embeds the free-text current activity and scores
// historically used fragments by similarity to it, blended with each
// fragment's success rate.
func (s *service) predictByActivity(ctx context.Context, cfg *Config, ownerID, activity string, stats map[string]fragmentStats) ([]domain.Suggestion, error) {
	if activity == "" {
		return nil, nil
	}

	vector, err := s.embed(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to embed activity text: %w", err)
	}

	matches, err := s.index.Search(ctx, ownerID, vector, cfg.CandidatePoolSize, 0)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	suggestions := make([]domain.Suggestion, 0, len(matches))
	for _, match := range matches {
		st, used := stats[match.FragmentID]
		if !used {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			FragmentID: match.FragmentID,
			Confidence: match.Similarity*0.6 + st.successRate()*0.4,
			Reason:     fmt.Sprintf("matches your current activity %q", activity),
			Source:     domain.SourceActivity,
		})
	}
	return suggestions, nil
}

// predictBySequence finds fragments historically used within the same short
// time window as the recently used ones.
func (s *service) predictBySequence(ctx context.Context, cfg *Config, events []domain.UsageEvent, stats map[string]fragmentStats, recentIDs []string) ([]domain.Suggestion, error) {
	if len(recentIDs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recent := make(map[string]bool, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = true
	}

	// Events sharing a minute bucket count as co-used.
	byWindow := make(map[int64][]domain.UsageEvent)
	for _, event := range events {
		key := event.Timestamp.Truncate(cfg.SequentialWindow).Unix()
		byWindow[key] = append(byWindow[key], event)
	}

	companions := make(map[string]fragmentStats)
	for _, window := range byWindow {
		anchored := false
		for _, event := range window {
			if recent[event.FragmentID] {
				anchored = true
				break
			}
		}
		if !anchored {
			continue
		}
		for _, event := range window {
			if recent[event.FragmentID] {
				continue
			}
			st := companions[event.FragmentID]
			st.Count++
			if event.Success {
				st.Successes++
			}
			companions[event.FragmentID] = st
		}
	}

	suggestions := make([]domain.Suggestion, 0, len(companions))
	for fragmentID, st := range companions {
		confidence := math.Min(0.9, float64(st.Count)/10+st.successRate()/2)
		suggestions = append(suggestions, domain.Suggestion{
			FragmentID: fragmentID,
			Confidence: confidence,
			Reason:     fmt.Sprintf("used together with recent fragments %d times", st.Count),
			Source:     domain.SourceSequential,
		})
	}
	return suggestions, nil
}

// predictByFrequency falls back to the owner's most used fragments in the
// trailing window.
func (s *service) predictByFrequency(cfg *Config, stats map[string]fragmentStats) []domain.Suggestion {
	suggestions := make([]domain.Suggestion, 0, len(stats))
	for fragmentID, st := range stats {
		confidence := math.Min(0.8, float64(st.Count)/20+st.successRate()/4)
		suggestions = append(suggestions, domain.Suggestion{
			FragmentID: fragmentID,
			Confidence: confidence,
			Reason:     fmt.Sprintf("used %d times in the last %d days", st.Count, int(cfg.EventWindow.Hours()/24)),
			Source:     domain.SourceFrequency,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].FragmentID < suggestions[j].FragmentID
	})
	return suggestions
}

// attachNames resolves fragment names for display and drops suggestions
// whose fragment no longer exists.
func (s *service) attachNames(ctx context.Context, ownerID string, suggestions []domain.Suggestion) ([]domain.Suggestion, error) {
	if len(suggestions) == 0 {
		return []domain.Suggestion{}, nil
	}

	ids := make([]string, 0, len(suggestions))
	seen := make(map[string]bool, len(suggestions))
	for _, suggestion := range suggestions {
		if !seen[suggestion.FragmentID] {
			seen[suggestion.FragmentID] = true
			ids = append(ids, suggestion.FragmentID)
		}
	}

	fragments, err := s.fragments.FindFragments(ctx, repository.FragmentQuery{
		OwnerID: ownerID,
		IDs:     ids,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load suggested fragments")
	}

	names := make(map[string]string, len(fragments))
	for _, fragment := range fragments {
		names[fragment.ID] = fragment.Name
	}

	named := make([]domain.Suggestion, 0, len(suggestions))
	for _, suggestion := range suggestions {
		name, ok := names[suggestion.FragmentID]
		if !ok {
			continue
		}
		suggestion.Name = name
		named = append(named, suggestion)
	}
	return named, nil
}
