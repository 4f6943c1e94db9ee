// internal/eligibility/engine.go
package eligibility

import (
	"fmt"
	"time"
)

// Config is the user-controlled trading configuration, passed whole to
// every evaluation and never mutated by the engine.
type Config struct {
	AutoBuyEnabled       bool
	FollowerCheckEnabled bool
	MinFollowers         int
	AgeCheckEnabled      bool
	MaxAgeMinutes        int
	BuyAmountSol         float64
	SlippagePercent      float64
	Buylist              *HandleList
	Blacklist            *HandleList
}

// DecisionInput is everything the engine looks at for one evaluation.
type DecisionInput struct {
	Handle           string
	FollowerCount    int
	TokenCreatedUnix int64     // epoch seconds
	Now              time.Time // injected so the function stays pure
}

// Decision is the engine's verdict with a human-readable reason.
type Decision struct {
	Buy    bool
	Reason string
}

// Decide applies the auto-buy rule table. Rules are evaluated in order
// and the first match wins:
//
//  1. master switch off            -> no-buy
//  2. handle blacklisted           -> no-buy (blacklist beats buylist)
//  3. handle buylisted             -> buy
//  4. both checks enabled          -> buy iff followers >= min AND age <= max
//  5. only follower check enabled  -> buy iff followers >= min
//  6. only age check enabled       -> buy iff age <= max
//  7. neither check enabled        -> no-buy
//
// Rule 7 looks surprising but matches observed behavior: there is no
// unconditional auto-buy without a buylist match.
func Decide(in DecisionInput, cfg Config) Decision {
	if !cfg.AutoBuyEnabled {
		return Decision{Buy: false, Reason: "auto-buy is disabled"}
	}

	if d, settled := ScreenHandle(in.Handle, cfg); settled {
		return d
	}

	if !cfg.FollowerCheckEnabled && !cfg.AgeCheckEnabled {
		return Decision{Buy: false, Reason: "both follower and age checks are disabled"}
	}

	followerOK := in.FollowerCount >= cfg.MinFollowers
	ageMinutes := in.Now.Sub(time.Unix(in.TokenCreatedUnix, 0)).Minutes()
	ageOK := ageMinutes <= float64(cfg.MaxAgeMinutes)

	switch {
	case cfg.FollowerCheckEnabled && cfg.AgeCheckEnabled:
		if !followerOK {
			return Decision{Buy: false, Reason: fmt.Sprintf("follower count %d below minimum %d", in.FollowerCount, cfg.MinFollowers)}
		}
		if !ageOK {
			return Decision{Buy: false, Reason: fmt.Sprintf("token age %.0f minutes exceeds maximum %d", ageMinutes, cfg.MaxAgeMinutes)}
		}
		return Decision{Buy: true, Reason: "follower and age checks passed"}
	case cfg.FollowerCheckEnabled:
		if !followerOK {
			return Decision{Buy: false, Reason: fmt.Sprintf("follower count %d below minimum %d", in.FollowerCount, cfg.MinFollowers)}
		}
		return Decision{Buy: true, Reason: "follower check passed"}
	default: // age check only
		if !ageOK {
			return Decision{Buy: false, Reason: fmt.Sprintf("token age %.0f minutes exceeds maximum %d", ageMinutes, cfg.MaxAgeMinutes)}
		}
		return Decision{Buy: true, Reason: "age check passed"}
	}
}

// ScreenHandle applies the list rules, which depend on the handle
// alone. The second return reports whether the handle settled the
// decision; when false the follower and age checks still apply.
//
// Callers that pay a cost per evaluation (rate-limit slots, market
// lookups) should screen the handle first: a blacklisted handle must
// never consume any of that.
func ScreenHandle(handle string, cfg Config) (Decision, bool) {
	if cfg.Blacklist.Contains(handle) {
		return Decision{Buy: false, Reason: fmt.Sprintf("user @%s is blacklisted", handle)}, true
	}
	if cfg.Buylist.Contains(handle) {
		return Decision{Buy: true, Reason: fmt.Sprintf("user @%s is buylisted", handle)}, true
	}
	return Decision{}, false
}
