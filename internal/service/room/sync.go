package room

import "time"

// DefaultDriftThreshold is the largest divergence between a follower's
// local position and the authoritative one tolerated before a hard
// seek. Below it, minor network jitter is left alone.
const DefaultDriftThreshold = 1.5

// PlaybackCorrection tells a follower how to converge on the owner's
// broadcast state. SeekTo is nil when the local position is within the
// drift threshold; IsPlaying is always authoritative.
type PlaybackCorrection struct {
	SeekTo    *float64 `json:"seek_to,omitempty"`
	IsPlaying bool     `json:"is_playing"`
}

// ExpectedPosition extrapolates the authoritative position to now: a
// playing room keeps advancing from the moment the owner stamped it, a
// paused room does not.
func ExpectedPosition(player Player, now time.Time) float64 {
	if !player.IsPlaying {
		return player.Position
	}

	elapsed := float64(now.UnixMilli()-player.UpdatedAt) / 1000
	if elapsed < 0 {
		elapsed = 0
	}

	return player.Position + elapsed
}

// Reconcile computes the follower-side correction for a broadcast
// playback state. Discrete threshold-bounded seeks are used instead of
// playback-rate adjustment, which streaming players do not support
// reliably.
func Reconcile(player Player, localPosition float64, now time.Time, driftThreshold float64) PlaybackCorrection {
	correction := PlaybackCorrection{IsPlaying: player.IsPlaying}

	expected := ExpectedPosition(player, now)
	drift := localPosition - expected
	if drift < 0 {
		drift = -drift
	}

	if drift > driftThreshold {
		correction.SeekTo = &expected
	}

	return correction
}
