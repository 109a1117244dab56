package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"

	"fetcharr/internal/queue"
)

type queueView struct {
	Title           string  `json:"title"`
	Cat             string  `json:"cat"`
	Status          string  `json:"status"`
	Progress        *int    `json:"progress"`
	BytesTotal      int64   `json:"bytes_total"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	SourceID        string  `json:"source_id"`
	SpeedText       string  `json:"speed_text"`
	SpeedBPS        float64 `json:"speed_bps"`
	ETAText         string  `json:"eta_text"`
}

type historyView struct {
	Title   string `json:"title"`
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

const historyTail = 20

// DashboardStatus returns a point-in-time snapshot for the status page. Every
// collection is copied before rendering; no lock is held across the encode.
func (a *App) DashboardStatus(w http.ResponseWriter, r *http.Request) {
	jobs := a.Queue.Jobs()

	var queueDisplay []queueView
	var completeCount, failedCount int
	for _, j := range jobs {
		switch j.State {
		case queue.StateComplete:
			completeCount++
		case queue.StateFailed:
			failedCount++
		default:
			queueDisplay = append(queueDisplay, queueView{
				Title:           j.Title,
				Cat:             j.Category,
				Status:          string(j.State),
				Progress:        j.Progress,
				BytesTotal:      j.SizeTotalBytes,
				BytesDownloaded: j.BytesDownloaded,
				SourceID:        j.SourceID,
				SpeedText:       formatSpeed(j.SpeedBPS),
				SpeedBPS:        j.SpeedBPS,
				ETAText:         formatETA(j),
			})
		}
	}

	terminal := lo.Filter(jobs, func(j queue.Job, _ int) bool { return j.State.Terminal() })
	if len(terminal) > historyTail {
		terminal = terminal[len(terminal)-historyTail:]
	}
	history := lo.Map(terminal, func(j queue.Job, _ int) historyView {
		return historyView{Title: j.Title, Status: string(j.State), Storage: j.ResultLocation}
	})
	lo.Reverse(history)

	a.json(w, http.StatusOK, map[string]any{
		"queue":          queueDisplay,
		"queue_count":    len(queueDisplay),
		"history":        history,
		"complete_count": completeCount,
		"failed_count":   failedCount,
		"updated":        time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
		"uptime_seconds": int(time.Since(a.StartedAt).Seconds()),
		"health_summary": a.Monitor.SummaryView(),
		"source_health":  a.Monitor.SourceHealthMap(),
		"mirror_health":  a.Monitor.EndpointHealthMap(),
		"activity":       a.Monitor.Activity(50),
	})
}

func formatSpeed(bps float64) string {
	if bps <= 0 {
		return ""
	}
	units := []string{"B/s", "KiB/s", "MiB/s", "GiB/s"}
	value := bps
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", int(value), units[idx])
	}
	return fmt.Sprintf("%.1f %s", value, units[idx])
}

func formatETA(j queue.Job) string {
	if j.State != queue.StateDownloading || j.SpeedBPS <= 0 || j.SizeTotalBytes <= j.BytesDownloaded {
		return ""
	}
	secs := int(float64(j.SizeTotalBytes-j.BytesDownloaded) / j.SpeedBPS)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%dh %02dm", secs/3600, secs%3600/60)
}
