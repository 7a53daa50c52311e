package dashboard

import (
	"time"

	"github.com/gin-gonic/gin"

	"OutLight/internal/domain"
	"OutLight/internal/render"
)

// StatusResponse is the body of /api/status: the snapshot with a summary that
// health checks can read without walking every target.
type StatusResponse struct {
	Healthy   bool            `json:"healthy"`
	Uptime    string          `json:"uptime"`
	Targets   int             `json:"targets"`
	Connected int             `json:"connected"`
	Failing   []string        `json:"failing"`
	Snapshot  domain.Snapshot `json:"snapshot"`
}

func newStatusResponse(snap domain.Snapshot) StatusResponse {
	resp := StatusResponse{
		Uptime:   render.FormatUptime(snap.Uptime()),
		Targets:  len(snap.Statuses),
		Failing:  []string{},
		Snapshot: snap,
	}
	for _, st := range snap.Statuses {
		if st.State == domain.StateConnected {
			resp.Connected++
		} else {
			resp.Failing = append(resp.Failing, st.Name)
		}
	}
	resp.Healthy = resp.Targets > 0 && len(resp.Failing) == 0
	return resp
}

// HistoryResponse is one page of stored transitions of a target, newest
// first. Transitions counts the page by destination state.
type HistoryResponse struct {
	Target      string               `json:"target"`
	Count       int                  `json:"count"`
	Transitions map[domain.State]int `json:"transitions"`
	Events      []domain.StatusEvent `json:"events"`
}

func newHistoryResponse(target string, events []domain.StatusEvent) HistoryResponse {
	if events == nil {
		events = []domain.StatusEvent{}
	}
	resp := HistoryResponse{
		Target:      target,
		Count:       len(events),
		Transitions: make(map[domain.State]int),
		Events:      events,
	}
	for _, ev := range events {
		resp.Transitions[ev.To]++
	}
	return resp
}

type ErrorBody struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: code, Message: message, Timestamp: time.Now().UTC()})
}
