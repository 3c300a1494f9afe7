package entity

import (
	"maps"
	"math"
)

// Entity is one immutable snapshot of a content item
// Known fields are typed; anything else, including a known field whose wire
// type did not match, is kept in Extra so nothing is silently lost
type Entity struct {
	Name          string
	CreatedUTC    float64
	Author        string
	Subreddit     string
	Body          string
	BannedBy      string
	RemovalReason string
	ReportReason  string
	NumReports    *int
	ModReports    []any
	UserReports   []any

	Extra map[string]any
}

// Created returns CreatedUTC as seconds and whether it is set
func (e Entity) Created() (float64, bool) {
	return e.CreatedUTC, e.CreatedUTC > 0
}

// Get returns the value stored under a wire field name
// Empty typed fields report ok=false so callers can treat missing and empty alike
func (e Entity) Get(field string) (any, bool) {
	switch field {
	case FieldName:
		return e.Name, e.Name != ""
	case FieldCreatedUTC:
		if e.CreatedUTC != 0 {
			return e.CreatedUTC, true
		}
	case FieldAuthor:
		if e.Author != "" {
			return e.Author, true
		}
	case FieldSubreddit:
		if e.Subreddit != "" {
			return e.Subreddit, true
		}
	case FieldBody:
		if e.Body != "" {
			return e.Body, true
		}
	case FieldBannedBy:
		if e.BannedBy != "" {
			return e.BannedBy, true
		}
	case FieldRemovalReason:
		if e.RemovalReason != "" {
			return e.RemovalReason, true
		}
	case FieldReportReason:
		if e.ReportReason != "" {
			return e.ReportReason, true
		}
	case FieldNumReports:
		if e.NumReports != nil {
			return *e.NumReports, true
		}
	case FieldModReports:
		if len(e.ModReports) > 0 {
			return e.ModReports, true
		}
	case FieldUserReports:
		if len(e.UserReports) > 0 {
			return e.UserReports, true
		}
	}
	v, ok := e.Extra[field]
	return v, ok
}

// Raw flattens the entity back into a generic JSON object
func (e Entity) Raw() map[string]any {
	m := make(map[string]any, len(e.Extra)+8)
	maps.Copy(m, e.Extra)
	putStr := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	putStr(FieldName, e.Name)
	putStr(FieldAuthor, e.Author)
	putStr(FieldSubreddit, e.Subreddit)
	putStr(FieldBody, e.Body)
	putStr(FieldBannedBy, e.BannedBy)
	putStr(FieldRemovalReason, e.RemovalReason)
	putStr(FieldReportReason, e.ReportReason)
	if e.CreatedUTC != 0 {
		m[FieldCreatedUTC] = e.CreatedUTC
	}
	if e.NumReports != nil {
		m[FieldNumReports] = float64(*e.NumReports)
	}
	if len(e.ModReports) > 0 {
		m[FieldModReports] = e.ModReports
	}
	if len(e.UserReports) > 0 {
		m[FieldUserReports] = e.UserReports
	}
	return m
}

// WithExtra returns a copy of e with key set in Extra
// Known field names are rejected so typed and extra values never collide
func (e Entity) WithExtra(key string, v any) Entity {
	if isKnown(key) {
		return e
	}
	c := e
	c.Extra = make(map[string]any, len(e.Extra)+1)
	maps.Copy(c.Extra, e.Extra)
	c.Extra[key] = v
	return c
}

func isKnown(k string) bool {
	switch k {
	case FieldName, FieldCreatedUTC, FieldAuthor, FieldSubreddit, FieldBody,
		FieldBannedBy, FieldRemovalReason, FieldReportReason,
		FieldNumReports, FieldModReports, FieldUserReports:
		return true
	}
	return false
}

// fromMap assigns known keys to typed fields and keeps the rest in Extra
// m must already hold JSON generic values
func fromMap(m map[string]any) Entity {
	var e Entity
	extra := map[string]any{}
	for k, v := range m {
		if !assign(&e, k, v) {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		e.Extra = extra
	}
	return e
}

// assign stores v into the typed field for k and reports whether it fit
func assign(e *Entity, k string, v any) bool {
	switch k {
	case FieldName:
		return setStr(&e.Name, v)
	case FieldAuthor:
		return setStr(&e.Author, v)
	case FieldSubreddit:
		return setStr(&e.Subreddit, v)
	case FieldBody:
		return setStr(&e.Body, v)
	case FieldBannedBy:
		return setStr(&e.BannedBy, v)
	case FieldRemovalReason:
		return setStr(&e.RemovalReason, v)
	case FieldReportReason:
		return setStr(&e.ReportReason, v)
	case FieldCreatedUTC:
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		e.CreatedUTC = f
		return true
	case FieldNumReports:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return false
		}
		n := int(f)
		e.NumReports = &n
		return true
	case FieldModReports:
		s, ok := v.([]any)
		if ok {
			e.ModReports = s
		}
		return ok
	case FieldUserReports:
		s, ok := v.([]any)
		if ok {
			e.UserReports = s
		}
		return ok
	}
	return false
}

func setStr(dst *string, v any) bool {
	s, ok := v.(string)
	if ok {
		*dst = s
	}
	return ok
}
