package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedPosition(t *testing.T) {
	stamped := time.UnixMilli(1_000_000)

	playing := Player{IsPlaying: true, Position: 100, UpdatedAt: stamped.UnixMilli()}
	assert.Equal(t, 105.0, ExpectedPosition(playing, stamped.Add(5*time.Second)))

	paused := Player{IsPlaying: false, Position: 100, UpdatedAt: stamped.UnixMilli()}
	assert.Equal(t, 100.0, ExpectedPosition(paused, stamped.Add(5*time.Second)))

	// a stamp from the future must not rewind the position
	assert.Equal(t, 100.0, ExpectedPosition(playing, stamped.Add(-time.Second)))
}

func TestReconcileSeeksPastThreshold(t *testing.T) {
	stamped := time.UnixMilli(1_000_000)
	player := Player{IsPlaying: true, Position: 100, UpdatedAt: stamped.UnixMilli()}

	// 5s after the stamp the expected position is 105; a local player at
	// 101.2 has drifted 3.8s and must hard-seek
	correction := Reconcile(player, 101.2, stamped.Add(5*time.Second), DefaultDriftThreshold)
	require.NotNil(t, correction.SeekTo)
	assert.Equal(t, 105.0, *correction.SeekTo)
	assert.True(t, correction.IsPlaying)
}

func TestReconcileLeavesSmallDriftAlone(t *testing.T) {
	stamped := time.UnixMilli(1_000_000)
	player := Player{IsPlaying: true, Position: 100, UpdatedAt: stamped.UnixMilli()}

	// 0.5s after the stamp the expected position is 100.5; a local
	// player at 100.3 is within the threshold
	correction := Reconcile(player, 100.3, stamped.Add(500*time.Millisecond), DefaultDriftThreshold)
	assert.Nil(t, correction.SeekTo)
	assert.True(t, correction.IsPlaying)
}

func TestReconcileAlwaysCorrectsPlayState(t *testing.T) {
	stamped := time.UnixMilli(1_000_000)
	player := Player{IsPlaying: false, Position: 100, UpdatedAt: stamped.UnixMilli()}

	// play/pause mismatch is corrected even with zero positional drift
	correction := Reconcile(player, 100, stamped, DefaultDriftThreshold)
	assert.Nil(t, correction.SeekTo)
	assert.False(t, correction.IsPlaying)

	// drift ahead of a paused player still triggers a seek back
	correction = Reconcile(player, 103, stamped.Add(10*time.Second), DefaultDriftThreshold)
	require.NotNil(t, correction.SeekTo)
	assert.Equal(t, 100.0, *correction.SeekTo)
}
