// Package handlers holds the conversation handlers registered with the
// router: main menu, documents, HR contact, free-text questions and
// feedback.
package handlers

import (
	"errors"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/answer"
	"github.com/nextlevelbuilder/hrdesk/internal/docs"
	"github.com/nextlevelbuilder/hrdesk/internal/notify"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/session"
)

// Dispatch priorities, highest first.
const (
	PriorityMenu      = 100
	PriorityDocuments = 80
	PriorityHRContact = 75
	PriorityQuery     = 70
	PriorityFeedback  = 50
)

// Defaults applied when Deps leaves a field zero.
const (
	DefaultPresignTTL  = time.Hour
	DefaultMaxSelect   = 3
	DefaultMaxQueryLen = 1000
	DefaultParallelism = 4
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Docs     docs.Store // usually a *docs.Cache
	Engine   answer.Engine
	Notifier notify.Notifier
	Queries  session.QueryLog

	PresignTTL  time.Duration
	MaxSelect   int // documents the model may pick per question
	MaxQueryLen int // longer questions are refused, in runes
	Parallelism int // concurrent document reads and summaries
}

func (d *Deps) applyDefaults() error {
	if d.Docs == nil || d.Engine == nil || d.Queries == nil {
		return errors.New("handlers: docs, engine and query log are required")
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.PresignTTL <= 0 {
		d.PresignTTL = DefaultPresignTTL
	}
	if d.MaxSelect <= 0 {
		d.MaxSelect = DefaultMaxSelect
	}
	if d.MaxQueryLen <= 0 {
		d.MaxQueryLen = DefaultMaxQueryLen
	}
	if d.Parallelism <= 0 {
		d.Parallelism = DefaultParallelism
	}
	return nil
}

// All returns the full handler registry in registration order.
func All(d Deps) ([]router.Handler, error) {
	if err := d.applyDefaults(); err != nil {
		return nil, err
	}
	return []router.Handler{
		&Menu{},
		&Documents{deps: d},
		&HRContact{deps: d},
		&Query{deps: d},
		&Feedback{deps: d},
	}, nil
}
