package chrono

import (
	"testing"
	"time"
	"vkusync-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestFixedTime(t *testing.T) {
	at := time.Date(2024, 9, 2, 1, 0, 0, 0, time.UTC)
	now := FixedTime{At: at}.Now()
	require.True(t, now.Equal(at))
	require.Equal(t, 8, now.Hour())
	require.Equal(t, Portal(), now.Location())
}

func TestStandardCron(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	cron := NewStandardCron(tel)
	defer cron.Stop()

	require.Error(t, cron.Cron("every now and then", func() {}))

	ran := make(chan struct{}, 1)
	require.NoError(t, cron.Cron("@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("cron job did not run")
	}
}
