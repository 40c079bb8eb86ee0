/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sprintboard/internal/domain"
)

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			tt := t.UTC()
			return &tt
		}
	}
	return nil
}

func strOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// labelString normalizes the labeled-value shapes the API produces for the
// same field across deployments: a bare string, a {"value": ...} option
// object, or a {"name": ...} entity object. Arrays of those are joined.
func labelString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if s, ok := t["value"].(string); ok {
			return s
		}
		if name, ok := t["name"].(string); ok {
			return name
		}
		return strOf(v)
	case []any:
		vals := make([]string, 0, len(t))
		for _, it := range t {
			if s := labelString(it); s != "" {
				vals = append(vals, s)
			}
		}
		return strings.Join(vals, ", ")
	default:
		return strOf(v)
	}
}

func floatOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

func displayName(v any) string {
	if m, ok := v.(map[string]any); ok {
		if s, ok := m["displayName"].(string); ok {
			return s
		}
	}
	return labelString(v)
}

// workItem maps one wire issue into the single WorkItem shape; every field
// variant is resolved here so nothing downstream re-interprets raw fields.
func (c *Client) workItem(iw issueWire) domain.WorkItem {
	f := iw.Fields
	return domain.WorkItem{
		Key:        iw.Key,
		Summary:    strOf(f["summary"]),
		Status:     labelString(f["status"]),
		Points:     floatOf(f[c.pointsField]),
		Customer:   labelString(f[c.customerField]),
		Type:       labelString(f["issuetype"]),
		Assignee:   displayName(f["assignee"]),
		CreatedAt:  parseTime(strOf(f["created"])),
		DueAt:      parseTime(strOf(f["duedate"])),
		ResolvedAt: parseTime(strOf(f["resolutiondate"])),
	}
}
