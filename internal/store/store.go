// Package store persists completed analyses.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/resilience"
)

// ErrNotFound is returned by updates that address a missing record.
var ErrNotFound = eris.New("store: analysis not found")

// SaveRequest is a record to persist. Empty ID gets a fresh UUID and a
// zero Timestamp is replaced with the save time.
type SaveRequest struct {
	ID          string             `json:"id,omitempty"`
	Timestamp   time.Time          `json:"timestamp,omitempty"`
	FileName    string             `json:"fileName,omitempty"`
	Fields      model.CreditFields `json:"fields"`
	Flags       []model.RuleFlag   `json:"flags"`
	RiskProfile model.RiskProfile  `json:"riskProfile"`
	Tags        []string           `json:"tags,omitempty"`
}

// FromRecord builds a SaveRequest that reproduces r, ID included.
func FromRecord(r model.AnalysisRecord) SaveRequest {
	return SaveRequest{
		ID:          r.ID,
		Timestamp:   r.Timestamp,
		FileName:    r.FileName,
		Fields:      r.Fields,
		Flags:       r.Flags,
		RiskProfile: r.RiskProfile,
		Tags:        r.Tags,
	}
}

// Store persists analysis records.
type Store interface {
	// Save inserts a record and returns its ID.
	Save(ctx context.Context, req SaveRequest) (string, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]model.AnalysisRecord, error)
	// Get returns nil, nil when id is unknown.
	Get(ctx context.Context, id string) (*model.AnalysisRecord, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	UpdateTags(ctx context.Context, id string, tags []string) error
	// Import upserts records by ID and returns how many were written.
	Import(ctx context.Context, reqs []SaveRequest) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		st, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("store", "connect")
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (Store, error) {
			return NewPostgres(ctx, dsn, nil)
		})
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

// row is the column form shared by both backends.
type row struct {
	id        string
	createdAt time.Time
	fileName  string
	fields    []byte
	flags     []byte
	risk      []byte
	tags      []byte
}

// encode fills defaults on req and marshals its JSON columns.
func encode(req SaveRequest, now time.Time) (row, error) {
	r := row{id: req.ID, createdAt: req.Timestamp.UTC(), fileName: req.FileName}
	if r.id == "" {
		r.id = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		r.createdAt = now.UTC()
	}

	fields := req.Fields
	if fields == nil {
		fields = model.CreditFields{}
	}
	flags := req.Flags
	if flags == nil {
		flags = []model.RuleFlag{}
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	var err error
	if r.fields, err = json.Marshal(fields); err != nil {
		return row{}, eris.Wrap(err, "store: marshal fields")
	}
	if r.flags, err = json.Marshal(flags); err != nil {
		return row{}, eris.Wrap(err, "store: marshal flags")
	}
	if r.risk, err = json.Marshal(req.RiskProfile); err != nil {
		return row{}, eris.Wrap(err, "store: marshal risk profile")
	}
	if r.tags, err = json.Marshal(tags); err != nil {
		return row{}, eris.Wrap(err, "store: marshal tags")
	}
	return r, nil
}

// decode unmarshals the JSON columns and validates the result. Corrupt
// data is an error, never a silently empty record.
func (r row) decode() (*model.AnalysisRecord, error) {
	rec := &model.AnalysisRecord{ID: r.id, Timestamp: r.createdAt.UTC(), FileName: r.fileName}
	if err := json.Unmarshal(r.fields, &rec.Fields); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal fields of %s", r.id)
	}
	if err := json.Unmarshal(r.flags, &rec.Flags); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal flags of %s", r.id)
	}
	if err := json.Unmarshal(r.risk, &rec.RiskProfile); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal risk profile of %s", r.id)
	}
	if err := json.Unmarshal(r.tags, &rec.Tags); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal tags of %s", r.id)
	}
	if rec.Fields == nil {
		rec.Fields = model.CreditFields{}
	}
	if len(rec.Tags) == 0 {
		rec.Tags = nil
	}
	if err := rec.Validate(); err != nil {
		return nil, eris.Wrap(err, "store: invalid record")
	}
	return rec, nil
}

func marshalTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return b, eris.Wrap(err, "store: marshal tags")
}
