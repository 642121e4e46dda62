package syncer

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/cache"
	"backend-cragmap/internal/feed"
	"backend-cragmap/internal/remote"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Style string

const (
	StyleOnsight  Style = "Onsight"
	StyleRedpoint Style = "Redpoint"
	StyleFlash    Style = "Flash"
	StyleAttempt  Style = "Attempt"
)

// Log is one recorded ascent. Several logs may exist for the same route.
type Log struct {
	ID         string      `json:"id"`
	RouteID    string      `json:"routeId,omitempty"`
	SiteName   string      `json:"siteName" validate:"required"`
	RouteName  string      `json:"routeName" validate:"required"`
	RouteGrade string      `json:"routeGrade,omitempty"`
	CragName   string      `json:"cragName,omitempty"`
	Date       remote.Time `json:"date"`
	Style      Style       `json:"climbingStyle" validate:"oneof=Onsight Redpoint Flash Attempt"`
	Rating     int         `json:"rating" validate:"min=1,max=3"`
	Partner    string      `json:"partner,omitempty"`
	Notes      string      `json:"notes,omitempty"`
	DateAdded  remote.Time `json:"dateAdded"`
	UserID     string      `json:"userId,omitempty"`
}

func (l Log) RecordID() string { return l.ID }

// newerLog orders by ascent date, newest first, then by creation time.
func newerLog(a, b Log) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.After(b.Date.Time)
	}
	return a.DateAdded.After(b.DateAdded.Time)
}

var logValidator = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Logs is the climbing-log collection.
type Logs struct {
	*Engine[Log]
}

func NewLogs(local cache.Store, store remote.DocumentStore, identity auth.Provider, opts ...Option) *Logs {
	col := Collection[Log]{
		Name:     "logs",
		CacheKey: cache.KeyLogs,
		Remote:   remote.CollectionLogs,
		Less:     newerLog,
		SetID:    func(l *Log, id string) { l.ID = id },
		Event: func(l Log) feed.Event {
			return feed.Event{Kind: feed.KindLog, SiteName: l.SiteName, RouteName: l.RouteName, Difficulty: l.RouteGrade, Notes: l.Notes}
		},
	}
	return &Logs{Engine: NewEngine(col, local, store, identity, opts...)}
}

// NewLogID builds site_route_<unix ms>_<random>, unique per call.
func NewLogID(siteName, routeName string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return siteName + "_" + routeName + "_" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + suffix
}

// Add validates in, assigns an id and creation time, and stores it. A zero
// ascent date defaults to today.
func (l *Logs) Add(ctx context.Context, in Log) (Log, error) {
	if err := logValidator.Struct(in); err != nil {
		return Log{}, wrapInvalid(describe(err))
	}
	now := l.now()
	in.ID = NewLogID(in.SiteName, in.RouteName, now)
	in.DateAdded = remote.NewTime(now)
	if in.Date.IsZero() {
		in.Date = remote.NewTime(now)
	}
	stored, _ := l.Engine.Add(ctx, in)
	return stored, nil
}

func (l *Logs) HasClimbed(siteName, routeName string) bool {
	for _, lg := range l.Records() {
		if lg.SiteName == siteName && lg.RouteName == routeName {
			return true
		}
	}
	return false
}

func (l *Logs) ForRoute(siteName, routeName string) []Log {
	var out []Log
	for _, lg := range l.Records() {
		if lg.SiteName == siteName && lg.RouteName == routeName {
			out = append(out, lg)
		}
	}
	return out
}

func wrapInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, reason)
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "climbingStyle":
		return "climbingStyle must be one of Onsight, Redpoint, Flash, Attempt"
	case "rating":
		return "rating must be between 1 and 3"
	default:
		return fe.Field() + " is required"
	}
}
