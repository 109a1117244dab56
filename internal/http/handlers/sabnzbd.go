package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"fetcharr/internal/capsule"
	"fetcharr/internal/queue"
)

const nzoPrefix = "SABnzbd_nzo_"

type sabQueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Cat        string `json:"cat"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	MB         string `json:"mb"`
	MBLeft     string `json:"mbleft"`
	Timeleft   string `json:"timeleft"`
}

type sabHistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Bytes       int64  `json:"bytes"`
	FailMessage string `json:"fail_message"`
}

func (a *App) sabVersion(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"version": "4.2.0"})
}

func (a *App) sabGetConfig(w http.ResponseWriter, r *http.Request) {
	categories := lo.Map(a.Config.ClientCategories, func(name string, i int) map[string]any {
		return map[string]any{"name": name, "order": i, "dir": name}
	})
	a.json(w, http.StatusOK, map[string]any{
		"config": map[string]any{
			"misc": map[string]any{
				"complete_dir": a.Config.DownloadDir,
				"api_key":      a.Config.APIKey,
			},
			"categories": categories,
		},
	})
}

// sabAddURL accepts the URL form of the capsule in the name parameter and
// queues the referenced download.
func (a *App) sabAddURL(w http.ResponseWriter, r *http.Request) {
	name := firstParam(r, "name")
	if name == "" {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": "Missing 'name' parameter"})
		return
	}
	c, err := capsule.DecodeURL(name)
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": "Invalid NZB URL format"})
		return
	}
	a.submitCapsule(w, r, c)
}

// sabAddFile accepts the document form of the capsule as an uploaded file.
func (a *App) sabAddFile(w http.ResponseWriter, r *http.Request) {
	upload, _, err := r.FormFile("name")
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": "Missing 'name' upload"})
		return
	}
	defer upload.Close()
	c, err := capsule.DecodeDocument(upload)
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": "Invalid NZB document"})
		return
	}
	a.submitCapsule(w, r, c)
}

func (a *App) submitCapsule(w http.ResponseWriter, r *http.Request, c capsule.Capsule) {
	cat := firstParam(r, "cat")
	id, err := a.Queue.Submit(c.SourceID, c.OriginURL, c.Title, cat, c.SizeBytes)
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"status": true, "nzo_ids": []string{nzoPrefix + id}})
}

func (a *App) sabQueue(w http.ResponseWriter, r *http.Request) {
	if a.handleDelete(w, r) {
		return
	}
	slots := []sabQueueSlot{}
	for _, j := range a.Queue.Jobs() {
		if j.State.Terminal() {
			continue
		}
		slots = append(slots, sabQueueSlot{
			NzoID:      nzoPrefix + j.ID,
			Filename:   j.Title,
			Cat:        j.Category,
			Status:     string(j.State),
			Percentage: percentage(j),
			MB:         megabytes(j.SizeTotalBytes),
			MBLeft:     megabytes(remainingBytes(j)),
			Timeleft:   timeleft(j),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"queue": map[string]any{"paused": false, "slots": slots}})
}

func (a *App) sabHistory(w http.ResponseWriter, r *http.Request) {
	if a.handleDelete(w, r) {
		return
	}
	slots := []sabHistorySlot{}
	for _, j := range a.Queue.Jobs() {
		if !j.State.Terminal() {
			continue
		}
		slot := sabHistorySlot{
			NzoID:    nzoPrefix + j.ID,
			Name:     j.Title,
			Category: j.Category,
			Status:   historyStatus(j.State),
			Storage:  j.ResultLocation,
			Bytes:    j.SizeTotalBytes,
		}
		if j.State == queue.StateFailed {
			slot.FailMessage = "Download failed"
		}
		slots = append(slots, slot)
	}
	a.json(w, http.StatusOK, map[string]any{"history": map[string]any{"slots": slots}})
}

// handleDelete serves the name=delete&value=<nzo_id> form shared by the queue
// and history modes. Returns true when the request was a deletion.
func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) bool {
	if firstParam(r, "name") != "delete" {
		return false
	}
	id := strings.TrimPrefix(firstParam(r, "value"), nzoPrefix)
	a.Queue.Delete(id)
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
	return true
}

func historyStatus(s queue.State) string {
	if s == queue.StateComplete {
		return "Completed"
	}
	return "Failed"
}

func percentage(j queue.Job) string {
	if j.Progress == nil {
		return "0"
	}
	return fmt.Sprintf("%d", *j.Progress)
}

func remainingBytes(j queue.Job) int64 {
	left := j.SizeTotalBytes - j.BytesDownloaded
	if left < 0 {
		left = 0
	}
	return left
}

func megabytes(b int64) string {
	return fmt.Sprintf("%.2f", float64(b)/1024/1024)
}

func timeleft(j queue.Job) string {
	if j.SpeedBPS <= 0 {
		return "0:00:00"
	}
	secs := int64(float64(remainingBytes(j)) / j.SpeedBPS)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
