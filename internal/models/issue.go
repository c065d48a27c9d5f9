package models

import "time"

// IssueStatus values are stored verbatim by the backend.
type IssueStatus string

const (
	IssuePending    IssueStatus = "待处理"
	IssueInProgress IssueStatus = "处理中"
	IssueResolved   IssueStatus = "已解决"
)

// IssuePriority values are stored verbatim by the backend.
type IssuePriority string

const (
	IssueHigh   IssuePriority = "高"
	IssueMedium IssuePriority = "中"
	IssueLow    IssuePriority = "低"
)

// Issue is a problem encountered while studying, with its resolution notes.
type Issue struct {
	IssueID            int64         `json:"issue_id"`
	Title              string        `json:"title"`
	IssueType          string        `json:"issue_type"`
	Description        string        `json:"description"`
	Status             IssueStatus   `json:"status"`
	Priority           IssuePriority `json:"priority"`
	Solution           *string       `json:"solution"`
	Cause              *string       `json:"cause"`
	PreventiveMeasures *string       `json:"preventive_measures"`
	ResolutionTime     *time.Time    `json:"resolution_time"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (i Issue) Identity() int64 { return i.IssueID }

// IssueInput carries the fields of a new issue. An empty status or priority
// is left to the backend default.
type IssueInput struct {
	Title              string        `json:"title"`
	IssueType          string        `json:"issue_type"`
	Description        string        `json:"description"`
	Status             IssueStatus   `json:"status,omitempty"`
	Priority           IssuePriority `json:"priority,omitempty"`
	Solution           *string       `json:"solution,omitempty"`
	Cause              *string       `json:"cause,omitempty"`
	PreventiveMeasures *string       `json:"preventive_measures,omitempty"`
	ResolutionTime     *time.Time    `json:"resolution_time,omitempty"`
}

// IssuePatch is a partial issue update. Nullable fields can be cleared with
// Null, e.g. the resolution of a reopened issue.
type IssuePatch struct {
	Title              *string             `json:"title,omitempty"`
	IssueType          *string             `json:"issue_type,omitempty"`
	Description        *string             `json:"description,omitempty"`
	Status             *IssueStatus        `json:"status,omitempty"`
	Priority           *IssuePriority      `json:"priority,omitempty"`
	Solution           Nullable[string]    `json:"solution,omitzero"`
	Cause              Nullable[string]    `json:"cause,omitzero"`
	PreventiveMeasures Nullable[string]    `json:"preventive_measures,omitzero"`
	ResolutionTime     Nullable[time.Time] `json:"resolution_time,omitzero"`
}
