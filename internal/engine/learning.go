package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Analyzer attributes settlement outcomes to the signals that justified each
// entry and aggregates the results into a LearningProfile. The profile is a
// cache over the full history, rebuilt after every settlement; it feeds
// prompt context back to the signal source but never touches model weights.
type Analyzer struct {
	// MinTrades is the history size required before any profile is produced.
	MinTrades int
	// MinSignalSamples is the non-neutral sample size a signal needs before
	// its accuracy is reported.
	MinSignalSamples int
	// BucketLate and BucketEarly split time-remaining-at-entry into three
	// buckets: under BucketLate minutes, between, and over BucketEarly.
	BucketLate  float64
	BucketEarly float64
	// AgreementSplit is the inter-signal agreement ratio separating the high
	// and low agreement cohorts.
	AgreementSplit float64
}

// NewAnalyzer returns an Analyzer with the default thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		MinTrades:        3,
		MinSignalSamples: 2,
		BucketLate:       5,
		BucketEarly:      10,
		AgreementSplit:   0.75,
	}
}

// stanceCorrect reports whether a directional stance matched the realized
// settlement direction. Neutral stances are not scored.
func stanceCorrect(stance domain.Stance, delta float64) (correct, scored bool) {
	switch stance {
	case domain.StanceBullish:
		return delta > 0, true
	case domain.StanceBearish:
		return delta < 0, true
	default:
		return false, false
	}
}

// agreementRatio is the share of the majority directional stance among the
// non-neutral contributions, or 0 when none are directional.
func agreementRatio(signals []domain.SignalContribution) float64 {
	var bulls, bears int
	for _, s := range signals {
		switch s.Stance {
		case domain.StanceBullish:
			bulls++
		case domain.StanceBearish:
			bears++
		}
	}
	total := bulls + bears
	if total == 0 {
		return 0
	}
	major := bulls
	if bears > major {
		major = bears
	}
	return float64(major) / float64(total)
}

// Profile aggregates the full settled history into a LearningProfile.
// It returns nil until MinTrades trades have settled.
func (a *Analyzer) Profile(history []domain.SettledTrade, now time.Time) *domain.LearningProfile {
	if len(history) < a.MinTrades {
		return nil
	}

	p := &domain.LearningProfile{
		SampleSize:  len(history),
		GeneratedAt: now,
	}

	type tally struct{ correct, total int }
	signalTallies := map[string]*tally{}
	regimeTallies := map[string]*struct{ wins, total int }{}
	providerTallies := map[string]*struct{ correct, total, agree, agreeTotal int }{}

	var (
		confWinSum, confLossSum   float64
		confWins, confLosses      int
		bucketWins, bucketTotals  [3]int
		highAgrWins, highAgrTotal int
		lowAgrWins, lowAgrTotal   int
	)

	for _, t := range history {
		if t.Outcome == domain.OutcomeVoid {
			continue
		}
		won := t.Outcome == domain.OutcomeWin

		// Per-signal and per-provider attribution against the realized
		// settlement direction.
		for _, s := range t.Position.Signals {
			correct, scored := stanceCorrect(s.Stance, t.Delta)
			if !scored {
				continue
			}
			tl, ok := signalTallies[s.Name]
			if !ok {
				tl = &tally{}
				signalTallies[s.Name] = tl
			}
			tl.total++
			if correct {
				tl.correct++
			}

			if s.Kind == domain.SignalKindModel && s.Provider != "" {
				pt, ok := providerTallies[s.Provider]
				if !ok {
					pt = &struct{ correct, total, agree, agreeTotal int }{}
					providerTallies[s.Provider] = pt
				}
				pt.total++
				if correct {
					pt.correct++
				}
				if multiProvider(t.Position.Signals) {
					pt.agreeTotal++
					if stanceMatchesSide(s.Stance, t.Position.Side) {
						pt.agree++
					}
				}
			}
		}

		// Regime win rates.
		regime := t.Position.Regime
		if regime == "" {
			regime = "unlabeled"
		}
		rt, ok := regimeTallies[regime]
		if !ok {
			rt = &struct{ wins, total int }{}
			regimeTallies[regime] = rt
		}
		rt.total++
		if won {
			rt.wins++
		}

		// Confidence calibration.
		if won {
			confWinSum += t.Position.Confidence
			confWins++
		} else {
			confLossSum += t.Position.Confidence
			confLosses++
		}

		// Time buckets.
		b := a.bucketFor(t.Position.TimeRemaining)
		bucketTotals[b]++
		if won {
			bucketWins[b]++
		}

		// Agreement split.
		if agreementRatio(t.Position.Signals) >= a.AgreementSplit {
			highAgrTotal++
			if won {
				highAgrWins++
			}
		} else {
			lowAgrTotal++
			if won {
				lowAgrWins++
			}
		}
	}

	for name, tl := range signalTallies {
		if tl.total < a.MinSignalSamples {
			continue
		}
		p.Signals = append(p.Signals, domain.SignalAccuracy{
			Name:     name,
			Correct:  tl.correct,
			Total:    tl.total,
			Accuracy: float64(tl.correct) / float64(tl.total),
		})
	}
	sort.Slice(p.Signals, func(i, j int) bool { return p.Signals[i].Name < p.Signals[j].Name })

	for regime, rt := range regimeTallies {
		p.Regimes = append(p.Regimes, domain.RegimeWinRate{
			Regime:  regime,
			Wins:    rt.wins,
			Total:   rt.total,
			WinRate: float64(rt.wins) / float64(rt.total),
		})
	}
	sort.Slice(p.Regimes, func(i, j int) bool { return p.Regimes[i].Regime < p.Regimes[j].Regime })

	for provider, pt := range providerTallies {
		stat := domain.ProviderStat{
			Provider: provider,
			Correct:  pt.correct,
			Total:    pt.total,
		}
		if pt.total > 0 {
			stat.Accuracy = float64(pt.correct) / float64(pt.total)
		}
		if pt.agreeTotal > 0 {
			stat.Agreement = float64(pt.agree) / float64(pt.agreeTotal)
		}
		p.Providers = append(p.Providers, stat)
	}
	sort.Slice(p.Providers, func(i, j int) bool { return p.Providers[i].Provider < p.Providers[j].Provider })

	if confWins > 0 {
		p.AvgConfidenceWins = confWinSum / float64(confWins)
	}
	if confLosses > 0 {
		p.AvgConfidenceLosses = confLossSum / float64(confLosses)
	}

	labels := a.bucketLabels()
	for i := range labels {
		if bucketTotals[i] == 0 {
			continue
		}
		p.Buckets = append(p.Buckets, domain.TimeBucketWinRate{
			Label:   labels[i],
			Wins:    bucketWins[i],
			Total:   bucketTotals[i],
			WinRate: float64(bucketWins[i]) / float64(bucketTotals[i]),
		})
	}

	p.HighAgreementTotal = highAgrTotal
	if highAgrTotal > 0 {
		p.HighAgreementWinRate = float64(highAgrWins) / float64(highAgrTotal)
	}
	p.LowAgreementTotal = lowAgrTotal
	if lowAgrTotal > 0 {
		p.LowAgreementWinRate = float64(lowAgrWins) / float64(lowAgrTotal)
	}

	p.RecentWinRate, p.EarlierWinRate = trendSplit(history)
	p.Lessons = a.lessons(p)
	p.RecentMistakes = recentMistakes(history, 3)

	return p
}

// multiProvider reports whether more than one AI provider contributed a model
// prediction to the snapshot.
func multiProvider(signals []domain.SignalContribution) bool {
	seen := ""
	for _, s := range signals {
		if s.Kind != domain.SignalKindModel || s.Provider == "" {
			continue
		}
		if seen == "" {
			seen = s.Provider
		} else if seen != s.Provider {
			return true
		}
	}
	return false
}

func stanceMatchesSide(stance domain.Stance, side domain.Side) bool {
	return (stance == domain.StanceBullish && side == domain.SideLong) ||
		(stance == domain.StanceBearish && side == domain.SideShort)
}

func (a *Analyzer) bucketFor(minutes float64) int {
	switch {
	case minutes < a.BucketLate:
		return 0
	case minutes < a.BucketEarly:
		return 1
	default:
		return 2
	}
}

func (a *Analyzer) bucketLabels() [3]string {
	return [3]string{
		fmt.Sprintf("under %.0fm", a.BucketLate),
		fmt.Sprintf("%.0f-%.0fm", a.BucketLate, a.BucketEarly),
		fmt.Sprintf("over %.0fm", a.BucketEarly),
	}
}

// trendSplit returns the win rate of the five most recent decided trades and
// of everything earlier.
func trendSplit(history []domain.SettledTrade) (recent, earlier float64) {
	var recentWins, recentTotal, earlierWins, earlierTotal int
	seen := 0
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Outcome == domain.OutcomeVoid {
			continue
		}
		if seen < 5 {
			recentTotal++
			if t.Outcome == domain.OutcomeWin {
				recentWins++
			}
			seen++
		} else {
			earlierTotal++
			if t.Outcome == domain.OutcomeWin {
				earlierWins++
			}
		}
	}
	if recentTotal > 0 {
		recent = float64(recentWins) / float64(recentTotal)
	}
	if earlierTotal > 0 {
		earlier = float64(earlierWins) / float64(earlierTotal)
	}
	return recent, earlier
}

// lessons renders the fixed-threshold rules into short natural-language
// strings, ordered from most to least actionable.
func (a *Analyzer) lessons(p *domain.LearningProfile) []string {
	var out []string

	for _, r := range p.Regimes {
		if r.Total >= 2 && r.WinRate < 0.35 {
			out = append(out, fmt.Sprintf("avoid trading in %s regime (win rate %.0f%% over %d trades)", r.Regime, r.WinRate*100, r.Total))
		}
	}
	for _, s := range p.Signals {
		if s.Accuracy >= 0.60 {
			out = append(out, fmt.Sprintf("%s has been reliable (%d/%d correct)", s.Name, s.Correct, s.Total))
		} else if s.Accuracy <= 0.40 {
			out = append(out, fmt.Sprintf("%s has been unreliable (%d/%d correct), weigh it less", s.Name, s.Correct, s.Total))
		}
	}
	for _, b := range p.Buckets {
		if b.Total >= 2 && b.WinRate < 0.35 {
			out = append(out, fmt.Sprintf("entries with %s remaining have done poorly (win rate %.0f%%)", b.Label, b.WinRate*100))
		}
	}
	if p.AvgConfidenceLosses > 0 && p.AvgConfidenceLosses >= p.AvgConfidenceWins {
		out = append(out, "stated confidence has not separated wins from losses; treat high confidence skeptically")
	}
	if p.HighAgreementTotal >= 2 && p.LowAgreementTotal >= 2 && p.LowAgreementWinRate > p.HighAgreementWinRate {
		out = append(out, "signal agreement has not improved results; do not overweight unanimous calls")
	}
	if p.EarlierWinRate > 0 && p.RecentWinRate < p.EarlierWinRate-0.15 {
		out = append(out, fmt.Sprintf("recent form is deteriorating (%.0f%% last 5 vs %.0f%% before)", p.RecentWinRate*100, p.EarlierWinRate*100))
	}
	return out
}

// recentMistakes summarizes the most recent losing trades, newest first.
func recentMistakes(history []domain.SettledTrade, limit int) []string {
	var out []string
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		t := history[i]
		if t.Outcome != domain.OutcomeLoss {
			continue
		}
		out = append(out, fmt.Sprintf("lost %.2f going %s at %.2f with confidence %.0f (%s)",
			-t.PnL, t.Position.Side, t.Position.Entry, t.Position.Confidence, t.Position.Regime))
	}
	return out
}

// RenderContext renders the profile into the natural-language block handed to
// the signal source with its next prediction request.
func (a *Analyzer) RenderContext(p *domain.LearningProfile) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Performance context from %d settled trades:\n", p.SampleSize)
	fmt.Fprintf(&b, "- recent win rate (last 5): %.0f%%, earlier: %.0f%%\n", p.RecentWinRate*100, p.EarlierWinRate*100)
	fmt.Fprintf(&b, "- avg confidence on wins %.0f vs losses %.0f\n", p.AvgConfidenceWins, p.AvgConfidenceLosses)
	for _, s := range p.Signals {
		fmt.Fprintf(&b, "- signal %s: %.0f%% accurate (%d samples)\n", s.Name, s.Accuracy*100, s.Total)
	}
	for _, r := range p.Regimes {
		fmt.Fprintf(&b, "- regime %s: %.0f%% win rate (%d trades)\n", r.Regime, r.WinRate*100, r.Total)
	}
	if len(p.Lessons) > 0 {
		b.WriteString("Lessons:\n")
		for _, l := range p.Lessons {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	if len(p.RecentMistakes) > 0 {
		b.WriteString("Recent mistakes:\n")
		for _, m := range p.RecentMistakes {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	return b.String()
}

// analysisNote is the short journal note written at settlement time for the
// paper journal's richer per-trade record.
func analysisNote(t domain.SettledTrade) string {
	agr := agreementRatio(t.Position.Signals)
	switch t.Outcome {
	case domain.OutcomeWin:
		return fmt.Sprintf("won %.2f on %s entry at %.2f; confidence %.0f, agreement %.0f%%",
			t.PnL, t.Position.Side, t.Position.Entry, t.Position.Confidence, agr*100)
	case domain.OutcomeLoss:
		return fmt.Sprintf("lost %.2f on %s entry at %.2f; confidence %.0f, agreement %.0f%%, martingale level %d",
			-t.PnL, t.Position.Side, t.Position.Entry, t.Position.Confidence, agr*100, t.Position.MartingaleLevel)
	default:
		return "window voided, stake returned"
	}
}
