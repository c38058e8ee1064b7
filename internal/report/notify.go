package report

import (
	"context"
	"encoding/json"
	"time"

	"backend-barrierfree/internal/stream"
)

type EventType string

const (
	EventSubmitted EventType = "report.submitted"
	EventUpdated   EventType = "report.updated"
	EventReviewed  EventType = "report.reviewed"
	EventDeleted   EventType = "report.deleted"
)

// Event tells listeners that a report changed. Clients treat it as a refetch
// signal; the full report stays server side.
type Event struct {
	Type     EventType `json:"type"`
	ReportID string    `json:"report_id"`
	Status   string    `json:"status,omitempty"`
	At       time.Time `json:"at"`
	Report   Report    `json:"-"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// HubNotifier pushes events to websocket subscribers of the reports topic.
type HubNotifier struct {
	Hub *stream.Hub
}

func (n HubNotifier) Notify(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	n.Hub.Broadcast(stream.TopicReports, payload)
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// PublisherNotifier writes events to a message log keyed by report id so
// consumers see changes to one report in order.
type PublisherNotifier struct {
	Publisher Publisher
}

func (n PublisherNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(struct {
		Event
		Report *Report `json:"report,omitempty"`
	}{Event: ev, Report: reportForEvent(ev)})
	if err != nil {
		return err
	}
	return n.Publisher.Publish(ctx, []byte(ev.ReportID), payload)
}

func reportForEvent(ev Event) *Report {
	if ev.Type == EventDeleted {
		return nil
	}
	r := ev.Report
	return &r
}

type Indexer interface {
	IndexReport(ctx context.Context, r Report) error
	Remove(ctx context.Context, id string) error
}

// IndexNotifier keeps the search index equal to the set of approved reports.
type IndexNotifier struct {
	Index Indexer
}

func (n IndexNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.Type != EventDeleted && ev.Status == StatusApproved {
		return n.Index.IndexReport(ctx, ev.Report)
	}
	if ev.Type == EventSubmitted {
		return nil
	}
	return n.Index.Remove(ctx, ev.ReportID)
}
