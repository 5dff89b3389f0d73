// Package sla computes service-level deadlines and breach flags for cases.
//
// Evaluation is pure and stateless: breach flags are derived at read time
// from stored timestamps and never persisted, so they can not go stale.
package sla

import (
	"time"

	"casedesk.io/internal/cases"
)

// Threshold holds the configured response and resolution limits for one
// priority. At most one active row exists per priority.
type Threshold struct {
	ID                  int64          `json:"id"`
	Priority            cases.Priority `json:"priority"`
	ResponseTimeHours   int            `json:"response_time_hours"`
	ResolutionTimeHours int            `json:"resolution_time_hours"`
	IsActive            bool           `json:"is_active"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Evaluation is the computed SLA view of a case.
type Evaluation struct {
	ResponseSLAMinutes   *int64     `json:"response_sla_minutes,omitempty"`
	ResolutionSLAMinutes *int64     `json:"resolution_sla_minutes,omitempty"`
	ResponseDeadline     *time.Time `json:"response_deadline,omitempty"`
	ResolutionDeadline   *time.Time `json:"resolution_deadline,omitempty"`
	ResponseBreached     bool       `json:"response_breached"`
	ResolutionBreached   bool       `json:"resolution_breached"`
}

// Evaluate computes deadlines and breach flags for a case under the given
// threshold. A nil threshold means no SLA applies: minutes stay nil and
// nothing breaches. Only cases in Open or InProgress are evaluated for
// breach; once a case moves to Pending, Resolved or Closed the clock stops
// and it never shows as breached regardless of timing. Deadlines use strict
// inequality: a case evaluated exactly at its deadline has not breached.
func Evaluate(c cases.Case, t *Threshold, now time.Time) Evaluation {
	if t == nil || !t.IsActive {
		return Evaluation{}
	}

	responseDeadline := c.CreatedAt.Add(time.Duration(t.ResponseTimeHours) * time.Hour)
	resolutionDeadline := c.CreatedAt.Add(time.Duration(t.ResolutionTimeHours) * time.Hour)
	responseMinutes := int64(t.ResponseTimeHours) * 60
	resolutionMinutes := int64(t.ResolutionTimeHours) * 60

	ev := Evaluation{
		ResponseSLAMinutes:   &responseMinutes,
		ResolutionSLAMinutes: &resolutionMinutes,
		ResponseDeadline:     &responseDeadline,
		ResolutionDeadline:   &resolutionDeadline,
	}

	if !c.Status.Active() {
		return ev
	}

	ev.ResponseBreached = c.FirstResponseAt == nil && now.After(responseDeadline)
	ev.ResolutionBreached = c.ResolvedAt == nil && now.After(resolutionDeadline)
	return ev
}
