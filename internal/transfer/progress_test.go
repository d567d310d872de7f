package transfer

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pt := NewProgressTracker(time.Second, logger)
	clock := time.Unix(1_700_000_000, 0)
	pt.now = func() time.Time { return clock }

	pt.StartTracking("b.bin", 4096)
	clock = clock.Add(500 * time.Millisecond)
	pt.UpdateProgress("b.bin", 1024)

	p, ok := pt.GetProgress("b.bin")
	require.True(t, ok)
	require.Equal(t, StatusInProgress, p.Status)
	require.InDelta(t, 25.0, p.Percent(), 0.001)
	require.InDelta(t, 2048.0, p.Speed, 0.001)
	require.Equal(t, 1500*time.Millisecond, p.EstimatedTime)
	require.Len(t, hook.AllEntries(), 1, "updates inside the interval are not logged")

	clock = clock.Add(time.Second)
	pt.UpdateProgress("b.bin", 3072)
	require.Len(t, hook.AllEntries(), 2)

	pt.Finish("b.bin", StatusCompleted)
	p, _ = pt.GetProgress("b.bin")
	require.Equal(t, StatusCompleted, p.Status)
	require.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	pt.RemoveTransfer("b.bin")
	_, ok = pt.GetProgress("b.bin")
	require.False(t, ok)
}

func TestPercentEdgeCases(t *testing.T) {
	require.Zero(t, TransferProgress{TotalBytes: 0}.Percent())
	require.Equal(t, 100.0, TransferProgress{TotalBytes: 0, Status: StatusCompleted}.Percent())
	// the advertised size may understate the real file
	require.Equal(t, 100.0, TransferProgress{TotalBytes: 10, BytesReceived: 25}.Percent())
}
