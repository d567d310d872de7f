package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
)

// ProgressTracker tracks the progress of file downloads. The advertised
// catalog size is the denominator; received bytes are what was written.
type ProgressTracker struct {
	transfers map[string]*TransferProgress
	interval  time.Duration
	log       logrus.FieldLogger
	now       func() time.Time
	mu        sync.RWMutex
}

// TransferProgress represents the progress of a single download
type TransferProgress struct {
	FileName       string
	Status         TransferStatus
	BytesReceived  int64
	TotalBytes     uint64
	StartTime      time.Time
	LastUpdateTime time.Time
	Speed          float64 // bytes per second
	EstimatedTime  time.Duration
	lastLogged     time.Time
}

// NewProgressTracker creates a tracker that logs at most once per interval
// per file (plus start and finish lines).
func NewProgressTracker(interval time.Duration, log logrus.FieldLogger) *ProgressTracker {
	if log == nil {
		log = logging.Logger()
	}
	return &ProgressTracker{
		transfers: make(map[string]*TransferProgress),
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// StartTracking starts (or restarts from zero) tracking a download.
func (pt *ProgressTracker) StartTracking(fileName string, totalBytes uint64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := pt.now()
	pt.transfers[fileName] = &TransferProgress{
		FileName:       fileName,
		Status:         StatusInProgress,
		TotalBytes:     totalBytes,
		StartTime:      now,
		LastUpdateTime: now,
		lastLogged:     now,
	}
	pt.log.WithFields(logrus.Fields{"file": fileName, "size": humanize.IBytes(totalBytes)}).Info("📥 download started")
}

// UpdateProgress records the running byte count of a download.
func (pt *ProgressTracker) UpdateProgress(fileName string, bytesReceived int64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	progress, exists := pt.transfers[fileName]
	if !exists {
		return
	}

	now := pt.now()
	progress.BytesReceived = bytesReceived
	progress.LastUpdateTime = now

	if elapsed := now.Sub(progress.StartTime).Seconds(); elapsed > 0 {
		progress.Speed = float64(bytesReceived) / elapsed
	}
	progress.EstimatedTime = 0
	if progress.Speed > 0 && progress.TotalBytes > uint64(bytesReceived) {
		remaining := float64(progress.TotalBytes - uint64(bytesReceived))
		progress.EstimatedTime = time.Duration(remaining / progress.Speed * float64(time.Second))
	}

	if pt.interval > 0 && now.Sub(progress.lastLogged) >= pt.interval {
		progress.lastLogged = now
		pt.log.WithField("file", fileName).Info(progress.String())
	}
}

// Finish marks a download completed, failed or cancelled.
func (pt *ProgressTracker) Finish(fileName string, status TransferStatus) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	progress, exists := pt.transfers[fileName]
	if !exists {
		return
	}
	progress.Status = status
	progress.LastUpdateTime = pt.now()
	progress.EstimatedTime = 0

	entry := pt.log.WithField("file", fileName)
	switch status {
	case StatusCompleted:
		entry.Info("✅ " + progress.String())
	case StatusCancelled:
		entry.Warn("⏹️ " + progress.String())
	default:
		entry.Error("❌ " + progress.String())
	}
}

// GetProgress returns a snapshot of a download's progress.
func (pt *ProgressTracker) GetProgress(fileName string) (TransferProgress, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	progress, exists := pt.transfers[fileName]
	if !exists {
		return TransferProgress{}, false
	}
	return *progress, true
}

// RemoveTransfer removes a download from tracking
func (pt *ProgressTracker) RemoveTransfer(fileName string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	delete(pt.transfers, fileName)
}

// Percent is the received share of the advertised size, capped at 100. A
// zero-size entry reads 100% once completed.
func (p TransferProgress) Percent() float64 {
	if p.TotalBytes == 0 {
		if p.Status == StatusCompleted {
			return 100
		}
		return 0
	}
	pct := float64(p.BytesReceived) / float64(p.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (p TransferProgress) String() string {
	s := fmt.Sprintf("%s: %s/%s (%.1f%%) %s",
		p.FileName,
		humanize.IBytes(uint64(p.BytesReceived)),
		humanize.IBytes(p.TotalBytes),
		p.Percent(),
		p.Status)
	if p.Speed > 0 {
		s += fmt.Sprintf(" %s/s", humanize.IBytes(uint64(p.Speed)))
	}
	if p.EstimatedTime > 0 {
		s += " ETA " + formatDuration(p.EstimatedTime)
	}
	return s
}

// formatDuration formats duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	return fmt.Sprintf("%.0fh", d.Hours())
}
